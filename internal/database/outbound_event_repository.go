package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tripnest/booking-backend/internal/models"
)

const outboundEventColumns = `id, event_type, aggregate_id, payload, status, attempts,
	last_error, next_attempt_at, created_at, sent_at`

// OutboundEventRepository is the notification outbox
type OutboundEventRepository struct {
	db sqlx.ExtContext
}

// NewOutboundEventRepository creates a new outbound event repository
func NewOutboundEventRepository(db sqlx.ExtContext) *OutboundEventRepository {
	return &OutboundEventRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *OutboundEventRepository) WithTx(tx *sqlx.Tx) *OutboundEventRepository {
	return &OutboundEventRepository{db: tx}
}

// Publish queues an event for the notifier worker
func (r *OutboundEventRepository) Publish(ctx context.Context, event *models.OutboundEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = models.OutboundPending
	}

	query := `
		INSERT INTO outbound_events (id, event_type, aggregate_id, payload, status, attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	nextAttempt := event.NextAttemptAt
	if nextAttempt.IsZero() {
		nextAttempt = time.Now()
	}

	err := r.db.QueryRowxContext(ctx, query,
		event.ID, event.Type, event.AggregateID, event.Payload, event.Status, event.Attempts, nextAttempt,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to publish outbound event: %w", err)
	}
	event.NextAttemptAt = nextAttempt

	return nil
}

// ClaimDue leases up to limit pending events whose next attempt is due by
// pushing next_attempt_at to leaseUntil. The statement commits on its own, so
// no row stays locked while events are delivered. An event whose worker dies
// becomes due again when the lease runs out.
func (r *OutboundEventRepository) ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*models.OutboundEvent, error) {
	events := []*models.OutboundEvent{}

	query := `
		UPDATE outbound_events
		SET next_attempt_at = $2
		WHERE id IN (
			SELECT id
			FROM outbound_events
			WHERE status = 'pending' AND next_attempt_at <= $1
			ORDER BY next_attempt_at, created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboundEventColumns

	if err := sqlx.SelectContext(ctx, r.db, &events, query, now, leaseUntil, limit); err != nil {
		return nil, fmt.Errorf("failed to claim outbound events: %w", err)
	}

	return events, nil
}

// MarkSent records a successful delivery
func (r *OutboundEventRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE outbound_events
		SET status = 'sent', attempts = attempts + 1, last_error = NULL, sent_at = $2
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, sentAt); err != nil {
		return fmt.Errorf("failed to mark outbound event sent: %w", err)
	}

	return nil
}

// MarkRetry records a failed delivery attempt. When giveUp is set the event
// is parked as failed instead of being rescheduled.
func (r *OutboundEventRepository) MarkRetry(ctx context.Context, id uuid.UUID, lastError string, nextAttempt time.Time, giveUp bool) error {
	status := models.OutboundPending
	if giveUp {
		status = models.OutboundFailed
	}

	query := `
		UPDATE outbound_events
		SET status = $2, attempts = attempts + 1, last_error = $3, next_attempt_at = $4
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, status, lastError, nextAttempt); err != nil {
		return fmt.Errorf("failed to reschedule outbound event: %w", err)
	}

	return nil
}

// DeleteSentBefore removes delivered events older than the cutoff
func (r *OutboundEventRepository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM outbound_events WHERE status = 'sent' AND sent_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sent outbound events: %w", err)
	}

	return result.RowsAffected()
}
