package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
)

// PackageService serves the read-only package catalog and availability checks
type PackageService struct {
	packageRepo *database.PackageRepository
	bookingRepo *database.BookingRepository
	location    *time.Location
	logger      *logrus.Logger

	now func() time.Time
}

// NewPackageService creates a new package service
func NewPackageService(
	packageRepo *database.PackageRepository,
	bookingRepo *database.BookingRepository,
	location *time.Location,
	logger *logrus.Logger,
) *PackageService {
	if location == nil {
		location = time.UTC
	}
	return &PackageService{
		packageRepo: packageRepo,
		bookingRepo: bookingRepo,
		location:    location,
		logger:      logger,
		now:         time.Now,
	}
}

// ParsePackageType validates a package type path segment
func ParsePackageType(value string) (models.PackageType, error) {
	t := models.PackageType(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", fieldError("package_type", "must be one of tour, activity, rental")
	}
	return t, nil
}

// ParsePackageRef validates a type and id pair
func ParsePackageRef(typeValue, idValue string) (models.PackageRef, error) {
	verr := NewValidationError()

	t := models.PackageType(strings.ToLower(strings.TrimSpace(typeValue)))
	if !t.Valid() {
		verr.Add("package_type", "must be one of tour, activity, rental")
	}
	id, err := uuid.Parse(idValue)
	if err != nil {
		verr.Add("package_id", "must be a valid id")
	}

	if err := verr.OrNil(); err != nil {
		return models.PackageRef{}, err
	}
	return models.PackageRef{Type: t, ID: id}, nil
}

// ListPackages lists one catalog
func (s *PackageService) ListPackages(ctx context.Context, packageType string, onlyAvailable bool) ([]*models.Package, error) {
	t, err := ParsePackageType(packageType)
	if err != nil {
		return nil, err
	}

	packages, err := s.packageRepo.List(ctx, t, onlyAvailable)
	if err != nil {
		return nil, systemError("list packages", err)
	}
	return packages, nil
}

// GetPackage returns one package
func (s *PackageService) GetPackage(ctx context.Context, ref models.PackageRef) (*models.Package, error) {
	pkg, err := s.packageRepo.Get(ctx, ref)
	if err != nil {
		return nil, systemError("load package", err)
	}
	if pkg == nil {
		return nil, &NotFoundError{Resource: string(ref.Type) + " package", ID: ref.ID.String()}
	}
	return pkg, nil
}

// AvailabilityQuery is an advisory availability request
type AvailabilityQuery struct {
	StartDate string
	EndDate   string
	Quantity  int
}

// CheckAvailability reports whether a package could be booked for the
// given dates. It is advisory; booking creation does not call it.
func (s *PackageService) CheckAvailability(ctx context.Context, ref models.PackageRef, q AvailabilityQuery) (*models.Availability, error) {
	quantity := q.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, fieldError("quantity", "must be at least 1")
	}

	start, err := ParseDate(q.StartDate, s.location)
	if err != nil {
		return nil, fieldError("start_date", "must be a date in YYYY-MM-DD format")
	}
	var end *time.Time
	if q.EndDate != "" {
		e, err := ParseDate(q.EndDate, s.location)
		if err != nil {
			return nil, fieldError("end_date", "must be a date in YYYY-MM-DD format")
		}
		end = &e
	}

	pkg, err := s.GetPackage(ctx, ref)
	if err != nil {
		return nil, err
	}

	result := &models.Availability{Available: true, Reasons: []string{}}
	unavailable := func(reason string) {
		result.Available = false
		result.Reasons = append(result.Reasons, reason)
	}

	if !pkg.IsAvailable {
		unavailable("package is not available for booking")
	}
	if start.Before(Today(s.now(), s.location)) {
		unavailable("start date is in the past")
	}
	if pkg.Type != models.PackageTypeRental && pkg.MinPersons != nil && quantity < *pkg.MinPersons {
		unavailable(fmt.Sprintf("minimum %d persons required", *pkg.MinPersons))
	}

	quote, err := QuotePrice(pkg, quantity, start, end)
	if err != nil {
		return nil, err
	}

	// Activities are point-in-time and do not block dates
	if pkg.Type != models.PackageTypeActivity && quote.EndDate != nil {
		overlap, err := s.bookingRepo.HasOverlap(ctx, ref, quote.StartDate, *quote.EndDate)
		if err != nil {
			return nil, systemError("check overlap", err)
		}
		if overlap {
			unavailable("already booked for the selected dates")
		}
	}

	return result, nil
}
