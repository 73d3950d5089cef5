package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tripnest/booking-backend/internal/models"
)

const bookingColumns = `id, booking_code, user_id, package_type, package_id, quantity,
	start_date, end_date, unit_price_at_booking, total_price, reward_total_applied,
	final_price, notes, status, created_at, updated_at`

// BookingRepository handles bookings and their reward join rows
type BookingRepository struct {
	db sqlx.ExtContext
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db sqlx.ExtContext) *BookingRepository {
	return &BookingRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *BookingRepository) WithTx(tx *sqlx.Tx) *BookingRepository {
	return &BookingRepository{db: tx}
}

// GenerateCode generates a unique, human-shareable booking code
// Format: BK-XXXXXXXX (8 char uppercase hex)
// Example: BK-9F3A61C2
func (r *BookingRepository) GenerateCode(ctx context.Context) (string, error) {
	for attempts := 0; attempts < 10; attempts++ {
		randomBytes := make([]byte, 4)
		if _, err := rand.Read(randomBytes); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		code := "BK-" + strings.ToUpper(hex.EncodeToString(randomBytes))

		var count int
		err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM bookings WHERE booking_code = $1`, code)
		if err != nil {
			return "", fmt.Errorf("failed to check booking code uniqueness: %w", err)
		}

		if count == 0 {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique booking code after 10 attempts")
}

// Insert creates a booking row. Timestamps are filled from the database.
func (r *BookingRepository) Insert(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, booking_code, user_id, package_type, package_id, quantity,
			start_date, end_date, unit_price_at_booking, total_price,
			reward_total_applied, final_price, notes, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		b.ID, b.Code, b.UserID, b.PackageType, b.PackageID, b.Quantity,
		b.StartDate, b.EndDate, b.UnitPriceAtBooking, b.TotalPrice,
		b.RewardTotalApplied, b.FinalPrice, b.Notes, b.Status,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking. Returns nil, nil when absent.
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	if err := sqlx.GetContext(ctx, r.db, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &booking, nil
}

// ListByUser returns a user's bookings, newest first
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	bookings := []*models.Booking{}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	if err := sqlx.SelectContext(ctx, r.db, &bookings, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return bookings, nil
}

// UpdateStatus moves a booking from one status to another. It reports false
// when the booking was no longer in the expected status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rows == 1, nil
}

// InsertRewards records the rewards applied to a booking
func (r *BookingRepository) InsertRewards(ctx context.Context, rows []models.BookingReward) error {
	query := `
		INSERT INTO booking_rewards (booking_id, reward_id, applied_amount)
		VALUES ($1, $2, $3)
	`

	for _, row := range rows {
		if _, err := r.db.ExecContext(ctx, query, row.BookingID, row.RewardID, row.AppliedAmount); err != nil {
			return fmt.Errorf("failed to insert booking reward: %w", err)
		}
	}

	return nil
}

// ListRewards returns the reward join rows of a booking
func (r *BookingRepository) ListRewards(ctx context.Context, bookingID uuid.UUID) ([]models.BookingReward, error) {
	rows := []models.BookingReward{}

	query := `
		SELECT booking_id, reward_id, applied_amount, created_at
		FROM booking_rewards
		WHERE booking_id = $1
		ORDER BY created_at
	`

	if err := sqlx.SelectContext(ctx, r.db, &rows, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list booking rewards: %w", err)
	}

	return rows, nil
}

// HasOverlap reports whether a pending or confirmed booking of the same
// package intersects [start, end]. Bookings without an end date occupy
// only their start date.
func (r *BookingRepository) HasOverlap(ctx context.Context, ref models.PackageRef, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE package_type = $1 AND package_id = $2
			  AND status IN ('pending', 'confirmed')
			  AND start_date <= $4
			  AND COALESCE(end_date, start_date) >= $3
		)
	`

	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, ref.Type, ref.ID, start, end); err != nil {
		return false, fmt.Errorf("failed to check booking overlap: %w", err)
	}

	return exists, nil
}

// AppendLog inserts one append-only booking log row
func (r *BookingRepository) AppendLog(ctx context.Context, entry *models.BookingLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO booking_logs (id, booking_id, user_id, actor_role, old_status, new_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.BookingID, entry.UserID, entry.ActorRole,
		entry.OldStatus, entry.NewStatus, entry.Notes,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append booking log: %w", err)
	}

	return nil
}

// ListLogs returns a booking's status history in insertion order
func (r *BookingRepository) ListLogs(ctx context.Context, bookingID uuid.UUID) ([]*models.BookingLog, error) {
	logs := []*models.BookingLog{}

	query := `
		SELECT id, booking_id, user_id, actor_role, old_status, new_status, notes, created_at
		FROM booking_logs
		WHERE booking_id = $1
		ORDER BY created_at, id
	`

	if err := sqlx.SelectContext(ctx, r.db, &logs, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list booking logs: %w", err)
	}

	return logs, nil
}
