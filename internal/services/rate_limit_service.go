package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tripnest/booking-backend/internal/database"
)

// RateLimitService throttles booking creation and payment retries using
// the rows those actions already write
type RateLimitService struct {
	db     database.DB
	config RateLimitConfig

	now func() time.Time
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxUserBookings    int           // Max bookings a user may create
	BookingWindow      time.Duration // Time window for the booking limit
	MaxPaymentAttempts int           // Max payment sessions per booking
	PaymentWindow      time.Duration // Time window for the payment limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxUserBookings:    10,        // 10 bookings
		BookingWindow:      time.Hour, // per hour
		MaxPaymentAttempts: 5,         // 5 sessions
		PaymentWindow:      time.Hour, // per hour
	}
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB, config RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		db:     db,
		config: config,
		now:    time.Now,
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "booking" or "payment"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// CheckBookingLimit checks whether a user may create another booking
func (s *RateLimitService) CheckBookingLimit(ctx context.Context, userID uuid.UUID) error {
	if s.config.MaxUserBookings <= 0 {
		return nil
	}

	query := `
		SELECT COUNT(*), COALESCE(MIN(created_at), NOW())
		FROM bookings
		WHERE user_id = $1
		  AND created_at > $2
	`

	count, oldest, err := s.countSince(ctx, query, userID, s.config.BookingWindow)
	if err != nil {
		return fmt.Errorf("failed to check booking rate limit: %w", err)
	}

	if count >= s.config.MaxUserBookings {
		retryAfter := oldest.Add(s.config.BookingWindow)
		return &RateLimitError{
			Message:    fmt.Sprintf("Too many bookings. Please try again after %s", retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
			Type:       "booking",
		}
	}

	return nil
}

// CheckPaymentLimit checks whether another payment session may be opened
// for a booking
func (s *RateLimitService) CheckPaymentLimit(ctx context.Context, bookingID uuid.UUID) error {
	if s.config.MaxPaymentAttempts <= 0 {
		return nil
	}

	query := `
		SELECT COUNT(*), COALESCE(MIN(created_at), NOW())
		FROM payment_transactions
		WHERE booking_id = $1
		  AND type = 'payment'
		  AND created_at > $2
	`

	count, oldest, err := s.countSince(ctx, query, bookingID, s.config.PaymentWindow)
	if err != nil {
		return fmt.Errorf("failed to check payment rate limit: %w", err)
	}

	if count >= s.config.MaxPaymentAttempts {
		retryAfter := oldest.Add(s.config.PaymentWindow)
		return &RateLimitError{
			Message:    fmt.Sprintf("Too many payment attempts for this booking. Please try again after %s", retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
			Type:       "payment",
		}
	}

	return nil
}

// countSince counts rows within the window and returns the oldest one's time
func (s *RateLimitService) countSince(ctx context.Context, query string, id uuid.UUID, window time.Duration) (int, time.Time, error) {
	windowStart := s.now().Add(-window)

	var count int
	var oldest time.Time

	err := s.db.QueryRowxContext(ctx, query, id, windowStart).Scan(&count, &oldest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, err
	}

	return count, oldest, nil
}
