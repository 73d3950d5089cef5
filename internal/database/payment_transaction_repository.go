package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tripnest/booking-backend/internal/models"
)

const paymentTransactionColumns = `id, booking_id, type, amount, method, status, gateway_reference,
	session_token, redirect_url, raw_response, confirmed_at, confirmed_by, transacted_at,
	created_at, updated_at`

// PaymentTransactionRepository handles payment attempts and refunds
type PaymentTransactionRepository struct {
	db sqlx.ExtContext
}

// NewPaymentTransactionRepository creates a new payment transaction repository
func NewPaymentTransactionRepository(db sqlx.ExtContext) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *PaymentTransactionRepository) WithTx(tx *sqlx.Tx) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: tx}
}

// Insert creates a payment transaction
func (r *PaymentTransactionRepository) Insert(ctx context.Context, t *models.PaymentTransaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	query := `
		INSERT INTO payment_transactions (
			id, booking_id, type, amount, method, status, gateway_reference, raw_response
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING transacted_at, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		t.ID, t.BookingID, t.Type, t.Amount, t.Method, t.Status, t.GatewayReference, t.RawResponse,
	).Scan(&t.TransactedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert payment transaction: %w", err)
	}

	return nil
}

// GetByReference looks a transaction up by its gateway reference.
// Returns nil, nil when no transaction carries the reference.
func (r *PaymentTransactionRepository) GetByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction

	query := `SELECT ` + paymentTransactionColumns + ` FROM payment_transactions WHERE gateway_reference = $1`

	if err := sqlx.GetContext(ctx, r.db, &txn, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}

	return &txn, nil
}

// ListByBooking returns every transaction of a booking, newest first
func (r *PaymentTransactionRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentTransaction, error) {
	txns := []*models.PaymentTransaction{}

	query := `
		SELECT ` + paymentTransactionColumns + `
		FROM payment_transactions
		WHERE booking_id = $1
		ORDER BY created_at DESC
	`

	if err := sqlx.SelectContext(ctx, r.db, &txns, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}

	return txns, nil
}

// CountByBooking returns how many transactions a booking has
func (r *PaymentTransactionRepository) CountByBooking(ctx context.Context, bookingID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM payment_transactions WHERE booking_id = $1`
	if err := sqlx.GetContext(ctx, r.db, &count, query, bookingID); err != nil {
		return 0, fmt.Errorf("failed to count payment transactions: %w", err)
	}
	return count, nil
}

// LatestPaymentID returns the id of the booking's most recent payment attempt
func (r *PaymentTransactionRepository) LatestPaymentID(ctx context.Context, bookingID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID

	query := `
		SELECT id FROM payment_transactions
		WHERE booking_id = $1 AND type = 'payment'
		ORDER BY created_at DESC
		LIMIT 1
	`

	if err := sqlx.GetContext(ctx, r.db, &id, query, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to get latest payment: %w", err)
	}

	return id, nil
}

// AttachSession stores the gateway session returned for a pending transaction
func (r *PaymentTransactionRepository) AttachSession(ctx context.Context, id uuid.UUID, token, redirectURL string, raw models.JSONB) error {
	query := `
		UPDATE payment_transactions
		SET session_token = $2, redirect_url = $3, raw_response = $4, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, token, redirectURL, raw); err != nil {
		return fmt.Errorf("failed to attach payment session: %w", err)
	}

	return nil
}

// MarkFailed records that the gateway refused to open a session
func (r *PaymentTransactionRepository) MarkFailed(ctx context.Context, id uuid.UUID, raw models.JSONB) error {
	query := `
		UPDATE payment_transactions
		SET status = 'failed', raw_response = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	if _, err := r.db.ExecContext(ctx, query, id, raw); err != nil {
		return fmt.Errorf("failed to mark payment transaction failed: %w", err)
	}

	return nil
}

// StatusUpdate carries the fields a gateway notification may change
type StatusUpdate struct {
	Status      models.TransactionStatus
	Method      *string
	RawResponse models.JSONB
	ConfirmedAt *time.Time
	ConfirmedBy *string
}

// TransitionStatus applies a gateway status change only if the transaction is
// still in the status the caller read. It reports false when a concurrent
// delivery got there first.
func (r *PaymentTransactionRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from models.TransactionStatus, update StatusUpdate) (bool, error) {
	query := `
		UPDATE payment_transactions
		SET status = $3,
		    method = COALESCE($4, method),
		    raw_response = $5,
		    confirmed_at = COALESCE($6, confirmed_at),
		    confirmed_by = COALESCE($7, confirmed_by),
		    transacted_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		id, from, update.Status, update.Method, update.RawResponse, update.ConfirmedAt, update.ConfirmedBy,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rows == 1, nil
}
