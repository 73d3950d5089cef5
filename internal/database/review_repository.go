package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tripnest/booking-backend/internal/models"
)

const reviewColumns = `id, booking_id, user_id, package_type, package_id, rating, comment, created_at`

// ReviewRepository handles package reviews
type ReviewRepository struct {
	db sqlx.ExtContext
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db sqlx.ExtContext) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Insert creates a review. Returns ErrDuplicate if the booking was already reviewed.
func (r *ReviewRepository) Insert(ctx context.Context, review *models.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}

	query := `
		INSERT INTO reviews (id, booking_id, user_id, package_type, package_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		review.ID, review.BookingID, review.UserID, review.PackageType, review.PackageID,
		review.Rating, review.Comment,
	).Scan(&review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}

	return nil
}

// ExistsForBooking reports whether a booking already has a review
func (r *ReviewRepository) ExistsForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM reviews WHERE booking_id = $1)`
	if err := sqlx.GetContext(ctx, r.db, &exists, query, bookingID); err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return exists, nil
}

// ListByPackage returns a package's reviews, newest first
func (r *ReviewRepository) ListByPackage(ctx context.Context, ref models.PackageRef, limit, offset int) ([]*models.Review, error) {
	reviews := []*models.Review{}

	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE package_type = $1 AND package_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	if err := sqlx.SelectContext(ctx, r.db, &reviews, query, ref.Type, ref.ID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list package reviews: %w", err)
	}

	return reviews, nil
}

// ListByUser returns the reviews a user has written, newest first
func (r *ReviewRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Review, error) {
	reviews := []*models.Review{}

	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	if err := sqlx.SelectContext(ctx, r.db, &reviews, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user reviews: %w", err)
	}

	return reviews, nil
}

// RatingSummary aggregates a package's ratings
type RatingSummary struct {
	Count   int     `json:"count" db:"count"`
	Average float64 `json:"average" db:"average"`
}

// Summary returns the review count and mean rating of a package
func (r *ReviewRepository) Summary(ctx context.Context, ref models.PackageRef) (*RatingSummary, error) {
	var summary RatingSummary

	query := `
		SELECT COUNT(*) AS count, COALESCE(AVG(rating), 0)::float8 AS average
		FROM reviews
		WHERE package_type = $1 AND package_id = $2
	`

	if err := sqlx.GetContext(ctx, r.db, &summary, query, ref.Type, ref.ID); err != nil {
		return nil, fmt.Errorf("failed to summarise reviews: %w", err)
	}

	return &summary, nil
}
