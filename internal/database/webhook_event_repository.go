package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
)

// WebhookEventRepository stores the audit trail of inbound gateway callbacks
type WebhookEventRepository struct {
	db     sqlx.ExtContext
	logger *logrus.Logger
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db sqlx.ExtContext, logger *logrus.Logger) *WebhookEventRepository {
	return &WebhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// Log stores a received callback before it is processed.
// Callbacks must always be recorded, so failures are logged loudly.
func (r *WebhookEventRepository) Log(ctx context.Context, event *models.WebhookEvent) error {
	if event == nil {
		return fmt.Errorf("webhook event cannot be nil")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	query := `
		INSERT INTO payment_webhook_events (
			id, provider, gateway_reference, transaction_status, fraud_status,
			payload, signature_valid, outcome, error_message,
			ip_address, user_agent, device_info,
			received_at, processed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14
		)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Provider, event.GatewayReference, event.TransactionStatus, event.FraudStatus,
		event.Payload, event.SignatureValid, event.Outcome, event.ErrorMessage,
		event.IPAddress, event.UserAgent, event.DeviceInfo,
		event.ReceivedAt, event.ProcessedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"provider":          event.Provider,
			"gateway_reference": event.GatewayReference,
		}).Error("CRITICAL: Failed to record webhook event")
		return fmt.Errorf("failed to log webhook event: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"webhook_event_id": event.ID,
		"provider":         event.Provider,
	}).Debug("Webhook event recorded")

	return nil
}

// Complete records how a callback was handled
func (r *WebhookEventRepository) Complete(ctx context.Context, id uuid.UUID, outcome models.WebhookOutcome, errorMessage string) error {
	var errMsg *string
	if errorMessage != "" {
		errMsg = &errorMessage
	}

	query := `
		UPDATE payment_webhook_events
		SET outcome = $2, error_message = $3, processed_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, outcome, errMsg); err != nil {
		return fmt.Errorf("failed to complete webhook event: %w", err)
	}

	return nil
}
