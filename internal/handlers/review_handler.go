package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/services"
)

// BookingReviewer writes and reads reviews of completed bookings
type BookingReviewer interface {
	Create(ctx context.Context, actor models.Actor, bookingID uuid.UUID, req *models.CreateReviewRequest) (*models.Review, error)
	CanReview(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*services.ReviewEligibility, error)
	ListMine(ctx context.Context, actor models.Actor) ([]*models.Review, error)
}

// ReviewHandler handles review endpoints
type ReviewHandler struct {
	reviewer BookingReviewer
	logger   *logrus.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviewer BookingReviewer, logger *logrus.Logger) *ReviewHandler {
	return &ReviewHandler{reviewer: reviewer, logger: logger}
}

// Create reviews a confirmed or completed booking
// @Summary Review booking
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.CreateReviewRequest true "Rating and comment"
// @Success 201 {object} models.Review
// @Failure 409 {object} ErrorResponse "Already reviewed"
// @Router /bookings/{id}/review [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	review, err := h.reviewer.Create(c.Request.Context(), actor, bookingID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// CanReview reports whether the caller can still review a booking
// @Summary Review eligibility
// @Tags Reviews
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} services.ReviewEligibility
// @Router /bookings/{id}/can-review [get]
func (h *ReviewHandler) CanReview(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	eligibility, err := h.reviewer.CanReview(c.Request.Context(), actor, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, eligibility)
}

// ListMine returns the caller's reviews
// @Summary List my reviews
// @Tags Reviews
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /reviews/me [get]
func (h *ReviewHandler) ListMine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	reviews, err := h.reviewer.ListMine(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}
