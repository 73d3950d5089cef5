package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/services"
)

// PackageCatalog exposes bookable packages
type PackageCatalog interface {
	ListPackages(ctx context.Context, packageType string, onlyAvailable bool) ([]*models.Package, error)
	GetPackage(ctx context.Context, ref models.PackageRef) (*models.Package, error)
	CheckAvailability(ctx context.Context, ref models.PackageRef, q services.AvailabilityQuery) (*models.Availability, error)
}

// PackageReviewLister lists public reviews of a package
type PackageReviewLister interface {
	ListByPackage(ctx context.Context, ref models.PackageRef, limit, offset int) (*services.PackageReviews, error)
}

// PackageHandler handles public catalog endpoints
type PackageHandler struct {
	catalog PackageCatalog
	reviews PackageReviewLister
	logger  *logrus.Logger
}

// NewPackageHandler creates a new PackageHandler
func NewPackageHandler(catalog PackageCatalog, reviews PackageReviewLister, logger *logrus.Logger) *PackageHandler {
	return &PackageHandler{
		catalog: catalog,
		reviews: reviews,
		logger:  logger,
	}
}

// packageRef parses :type and :id or writes the error
func (h *PackageHandler) packageRef(c *gin.Context) (models.PackageRef, bool) {
	ref, err := services.ParsePackageRef(c.Param("type"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return models.PackageRef{}, false
	}
	return ref, true
}

// ListPackages lists packages of one type
// @Summary List packages
// @Tags Packages
// @Produce json
// @Param type path string true "tour, activity or rental"
// @Param available query bool false "Only bookable packages (default true)"
// @Success 200 {object} map[string]interface{}
// @Router /packages/{type} [get]
func (h *PackageHandler) ListPackages(c *gin.Context) {
	onlyAvailable := true
	if v := c.Query("available"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_query",
				Message: "available must be true or false",
				Code:    "INVALID_QUERY",
			})
			return
		}
		onlyAvailable = parsed
	}

	packages, err := h.catalog.ListPackages(c.Request.Context(), c.Param("type"), onlyAvailable)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"packages": packages,
		"count":    len(packages),
	})
}

// GetPackage returns one package
// @Summary Get package
// @Tags Packages
// @Produce json
// @Param type path string true "tour, activity or rental"
// @Param id path string true "Package ID"
// @Success 200 {object} models.Package
// @Failure 404 {object} ErrorResponse "Package not found"
// @Router /packages/{type}/{id} [get]
func (h *PackageHandler) GetPackage(c *gin.Context) {
	ref, ok := h.packageRef(c)
	if !ok {
		return
	}

	pkg, err := h.catalog.GetPackage(c.Request.Context(), ref)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pkg)
}

// CheckAvailability reports whether a package can be booked for given dates
// @Summary Check availability
// @Tags Packages
// @Produce json
// @Param type path string true "tour, activity or rental"
// @Param id path string true "Package ID"
// @Param start_date query string true "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD, rentals only"
// @Param quantity query int false "Persons or units"
// @Success 200 {object} models.Availability
// @Router /packages/{type}/{id}/availability [get]
func (h *PackageHandler) CheckAvailability(c *gin.Context) {
	ref, ok := h.packageRef(c)
	if !ok {
		return
	}

	quantity := 1
	if v := c.Query("quantity"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_query",
				Message: "quantity must be a number",
				Code:    "INVALID_QUERY",
			})
			return
		}
		quantity = parsed
	}

	availability, err := h.catalog.CheckAvailability(c.Request.Context(), ref, services.AvailabilityQuery{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Quantity:  quantity,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

// ListReviews returns reviews and the rating summary of a package
// @Summary List package reviews
// @Tags Packages
// @Produce json
// @Param type path string true "tour, activity or rental"
// @Param id path string true "Package ID"
// @Success 200 {object} services.PackageReviews
// @Router /packages/{type}/{id}/reviews [get]
func (h *PackageHandler) ListReviews(c *gin.Context) {
	ref, ok := h.packageRef(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	page, err := h.reviews.ListByPackage(c.Request.Context(), ref, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
