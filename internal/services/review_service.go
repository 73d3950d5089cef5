package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
)

const maxReviewComment = 1000

// ReviewService handles package reviews written by customers
type ReviewService struct {
	reviewRepo  *database.ReviewRepository
	bookingRepo *database.BookingRepository
	logger      *logrus.Logger
}

// NewReviewService creates a new review service
func NewReviewService(reviewRepo *database.ReviewRepository, bookingRepo *database.BookingRepository, logger *logrus.Logger) *ReviewService {
	return &ReviewService{
		reviewRepo:  reviewRepo,
		bookingRepo: bookingRepo,
		logger:      logger,
	}
}

// PackageReviews is a page of reviews plus the package's rating summary
type PackageReviews struct {
	Reviews []*models.Review        `json:"reviews"`
	Summary *database.RatingSummary `json:"summary"`
}

// ReviewEligibility says whether a booking can still be reviewed
type ReviewEligibility struct {
	CanReview bool   `json:"can_review"`
	Reason    string `json:"reason,omitempty"`
}

// eligibility checks everything except ownership
func (s *ReviewService) eligibility(ctx context.Context, booking *models.Booking) (*ReviewEligibility, error) {
	if booking.Status != models.BookingConfirmed && booking.Status != models.BookingCompleted {
		return &ReviewEligibility{Reason: "only confirmed or completed bookings can be reviewed"}, nil
	}

	exists, err := s.reviewRepo.ExistsForBooking(ctx, booking.ID)
	if err != nil {
		return nil, systemError("check review", err)
	}
	if exists {
		return &ReviewEligibility{Reason: "booking has already been reviewed"}, nil
	}
	return &ReviewEligibility{CanReview: true}, nil
}

func (s *ReviewService) loadOwned(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, systemError("load booking", err)
	}
	if booking == nil {
		return nil, &NotFoundError{Resource: "booking", ID: bookingID.String()}
	}
	if booking.UserID != actor.UserID {
		return nil, &ForbiddenError{Message: "only the booking owner can review it"}
	}
	return booking, nil
}

// CanReview reports whether the actor may review a booking
func (s *ReviewService) CanReview(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*ReviewEligibility, error) {
	booking, err := s.loadOwned(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	return s.eligibility(ctx, booking)
}

// Create stores a review for a confirmed or completed booking
func (s *ReviewService) Create(ctx context.Context, actor models.Actor, bookingID uuid.UUID, req *models.CreateReviewRequest) (*models.Review, error) {
	verr := NewValidationError()
	if req.Rating < 1 || req.Rating > 5 {
		verr.Add("rating", "must be between 1 and 5")
	}
	var comment *string
	if req.Comment != nil {
		if c := strings.TrimSpace(*req.Comment); c != "" {
			if utf8.RuneCountInString(c) > maxReviewComment {
				verr.Add("comment", "must be at most 1000 characters")
			}
			comment = &c
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	booking, err := s.loadOwned(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingConfirmed && booking.Status != models.BookingCompleted {
		return nil, fieldError("booking", "only confirmed or completed bookings can be reviewed")
	}

	review := &models.Review{
		BookingID:   booking.ID,
		UserID:      actor.UserID,
		PackageType: booking.PackageType,
		PackageID:   booking.PackageID,
		Rating:      req.Rating,
		Comment:     comment,
	}
	if err := s.reviewRepo.Insert(ctx, review); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, &ConflictError{Message: "booking has already been reviewed"}
		}
		return nil, systemError("create review", err)
	}

	s.logger.WithFields(logrus.Fields{
		"review_id":  review.ID,
		"booking_id": booking.ID,
		"rating":     review.Rating,
	}).Info("Review created")

	return review, nil
}

// ListByPackage returns a page of a package's reviews with its rating summary
func (s *ReviewService) ListByPackage(ctx context.Context, ref models.PackageRef, limit, offset int) (*PackageReviews, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	reviews, err := s.reviewRepo.ListByPackage(ctx, ref, limit, offset)
	if err != nil {
		return nil, systemError("list reviews", err)
	}
	summary, err := s.reviewRepo.Summary(ctx, ref)
	if err != nil {
		return nil, systemError("summarize reviews", err)
	}

	return &PackageReviews{Reviews: reviews, Summary: summary}, nil
}

// ListMine returns the actor's reviews
func (s *ReviewService) ListMine(ctx context.Context, actor models.Actor) ([]*models.Review, error) {
	reviews, err := s.reviewRepo.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, systemError("list reviews", err)
	}
	return reviews, nil
}
