package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/notification"
	"github.com/tripnest/booking-backend/internal/utils"
	"github.com/tripnest/booking-backend/pkg/payment"
)

// WebhookAuditor records every inbound gateway callback
type WebhookAuditor interface {
	Log(ctx context.Context, event *models.WebhookEvent) error
	Complete(ctx context.Context, id uuid.UUID, outcome models.WebhookOutcome, errorMessage string) error
}

// WebhookReconcilerConfig holds gateway notification settings
type WebhookReconcilerConfig struct {
	Provider        string
	ServerKey       string
	VerifySignature bool
}

// WebhookReconcilerService applies gateway payment notifications to local
// transactions and bookings
type WebhookReconcilerService struct {
	tx          *database.Transactor
	bookingRepo *database.BookingRepository
	paymentRepo *database.PaymentTransactionRepository
	rewardRepo  *database.RewardRepository
	audit       WebhookAuditor
	events      EventPublisher
	config      WebhookReconcilerConfig
	logger      *logrus.Logger

	now func() time.Time
}

// NewWebhookReconcilerService creates a new reconciler
func NewWebhookReconcilerService(
	tx *database.Transactor,
	bookingRepo *database.BookingRepository,
	paymentRepo *database.PaymentTransactionRepository,
	rewardRepo *database.RewardRepository,
	audit WebhookAuditor,
	events EventPublisher,
	config WebhookReconcilerConfig,
	logger *logrus.Logger,
) *WebhookReconcilerService {
	if config.Provider == "" {
		config.Provider = "midtrans"
	}
	return &WebhookReconcilerService{
		tx:          tx,
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		rewardRepo:  rewardRepo,
		audit:       audit,
		events:      events,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// WebhookRequest is one raw callback as received over HTTP
type WebhookRequest struct {
	Body      []byte
	IPAddress string
	UserAgent string
}

// ReconcileResult describes what a callback changed
type ReconcileResult struct {
	Outcome           models.WebhookOutcome    `json:"outcome"`
	GatewayReference  string                   `json:"gateway_reference"`
	TransactionStatus models.TransactionStatus `json:"transaction_status"`
	BookingStatus     models.BookingStatus     `json:"booking_status,omitempty"`
	BookingChanged    bool                     `json:"booking_changed"`
}

// ============================================================================
// STATUS MAPPING
// ============================================================================

// MapGatewayStatus translates Midtrans vocabulary into transaction statuses
func MapGatewayStatus(transactionStatus, fraudStatus string) (models.TransactionStatus, error) {
	switch transactionStatus {
	case "capture":
		switch fraudStatus {
		case "challenge":
			return models.TransactionPending, nil
		case "deny":
			return models.TransactionFailed, nil
		}
		return models.TransactionSuccess, nil
	case "settlement":
		if fraudStatus == "deny" {
			return models.TransactionFailed, nil
		}
		return models.TransactionSuccess, nil
	case "pending", "authorize":
		return models.TransactionPending, nil
	case "deny", "failure":
		return models.TransactionFailed, nil
	case "expire", "cancel":
		return models.TransactionCanceled, nil
	case "refund", "partial_refund":
		return models.TransactionRefunded, nil
	}
	return "", fmt.Errorf("unknown transaction status %q", transactionStatus)
}

// transitionAllowed reports whether a transaction may move between statuses.
// Nothing returns to pending; canceled and refunded are final.
func transitionAllowed(from, to models.TransactionStatus) bool {
	if to == models.TransactionPending {
		return false
	}
	switch from {
	case models.TransactionPending:
		return true
	case models.TransactionFailed:
		// Snap lets the customer pick another method after a deny
		return to == models.TransactionSuccess || to == models.TransactionCanceled
	case models.TransactionSuccess:
		return to == models.TransactionRefunded
	}
	return false
}

// ============================================================================
// HANDLE NOTIFICATION
// ============================================================================

// HandleNotification verifies, audits and applies one gateway callback.
// Replays of an already-applied status are no-ops.
func (s *WebhookReconcilerService) HandleNotification(ctx context.Context, req WebhookRequest) (*ReconcileResult, error) {
	device := utils.ParseUserAgent(req.UserAgent)
	event := models.NewWebhookEvent(s.config.Provider, req.Body).
		SetCaller(req.IPAddress, req.UserAgent, models.JSONB(device.Map()))

	// 1. Parse
	n, err := payment.ParseNotification(req.Body)
	if err != nil {
		s.reject(ctx, event, err.Error())
		return nil, fieldError("payload", err.Error())
	}
	event.SetNotification(n.OrderID, n.TransactionStatus, n.FraudStatus)

	log := s.logger.WithFields(logrus.Fields{
		"gateway_reference":  n.OrderID,
		"transaction_status": n.TransactionStatus,
		"fraud_status":       n.FraudStatus,
		"ip":                 req.IPAddress,
	})

	// 2. Authenticate
	if s.config.VerifySignature {
		valid := n.VerifySignature(s.config.ServerKey)
		event.SignatureValid = &valid
		if !valid {
			log.Warn("Rejected webhook with invalid signature")
			s.reject(ctx, event, "invalid signature")
			return nil, &ForbiddenError{Message: "invalid signature"}
		}
	}

	// 3. Map vocabulary
	newStatus, err := MapGatewayStatus(n.TransactionStatus, n.FraudStatus)
	if err != nil {
		log.Warn("Rejected webhook with unknown status")
		s.reject(ctx, event, err.Error())
		return nil, fieldError("transaction_status", err.Error())
	}

	// 4. Audit before any business write
	audited := s.record(ctx, event)
	finish := func(outcome models.WebhookOutcome, message string) {
		if audited {
			s.complete(ctx, event.ID, outcome, message)
		}
	}

	// 5. Apply
	result, published, err := s.apply(ctx, n, newStatus, event.Payload)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			log.Warn("Webhook for unknown gateway reference")
			finish(models.WebhookUnknownRef, err.Error())
			return nil, err
		}
		log.WithError(err).Error("Failed to apply webhook")
		finish(models.WebhookProcessingError, err.Error())
		return nil, systemError("apply payment notification", err)
	}

	// 6. Notify after commit
	publishAll(ctx, s.events, s.logger, published...)

	finish(result.Outcome, "")

	log.WithFields(logrus.Fields{
		"outcome":         result.Outcome,
		"mapped_status":   result.TransactionStatus,
		"booking_status":  result.BookingStatus,
		"booking_changed": result.BookingChanged,
	}).Info("Webhook processed")

	return result, nil
}

// apply runs the state machine inside one transaction
func (s *WebhookReconcilerService) apply(
	ctx context.Context,
	n *payment.Notification,
	newStatus models.TransactionStatus,
	raw models.JSONB,
) (*ReconcileResult, []*models.OutboundEvent, error) {
	result := &ReconcileResult{
		Outcome:           models.WebhookDuplicate,
		GatewayReference:  n.OrderID,
		TransactionStatus: newStatus,
	}
	var published []*models.OutboundEvent

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		payments := s.paymentRepo.WithTx(tx)
		bookings := s.bookingRepo.WithTx(tx)
		rewards := s.rewardRepo.WithTx(tx)

		txn, err := payments.GetByReference(ctx, n.OrderID)
		if err != nil {
			return err
		}
		if txn == nil {
			return &NotFoundError{Resource: "payment transaction", ID: n.OrderID}
		}

		// Idempotency guard
		if txn.Status == newStatus || !transitionAllowed(txn.Status, newStatus) {
			result.TransactionStatus = txn.Status
			return nil
		}

		update := database.StatusUpdate{
			Status:      newStatus,
			RawResponse: raw,
		}
		if n.PaymentType != "" {
			update.Method = &n.PaymentType
		}
		if newStatus == models.TransactionSuccess {
			now := s.now()
			update.ConfirmedAt = &now
			update.ConfirmedBy = &s.config.Provider
		}

		moved, err := payments.TransitionStatus(ctx, txn.ID, txn.Status, update)
		if err != nil {
			return err
		}
		if !moved {
			// A concurrent delivery applied it first
			return nil
		}
		result.Outcome = models.WebhookApplied

		if txn.Type != models.TransactionPayment {
			return nil
		}

		booking, err := bookings.GetByID(ctx, txn.BookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return fmt.Errorf("booking %s of transaction %s is missing", txn.BookingID, txn.ID)
		}
		result.BookingStatus = booking.Status

		target, change := deriveBookingStatus(booking.Status, newStatus)
		if !change {
			if newStatus == models.TransactionSuccess {
				s.logger.WithFields(logrus.Fields{
					"booking_id":        booking.ID,
					"booking_status":    booking.Status,
					"gateway_reference": n.OrderID,
				}).Warn("Payment succeeded for a booking that is no longer pending")
			}
			return nil
		}

		// Only the latest attempt may cancel; an older session expiring must
		// not cancel a booking the customer is paying through a newer one
		if target == models.BookingCancelled {
			latest, err := payments.LatestPaymentID(ctx, booking.ID)
			if err != nil {
				return err
			}
			if latest != txn.ID {
				return nil
			}
		}

		changed, err := bookings.UpdateStatus(ctx, booking.ID, booking.Status, target)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		system := models.SystemActor()
		old := booking.Status
		note := fmt.Sprintf("%s %s for %s", s.config.Provider, n.TransactionStatus, n.OrderID)
		if err := bookings.AppendLog(ctx, &models.BookingLog{
			BookingID: booking.ID,
			UserID:    system.LogUserID(),
			ActorRole: system.Role,
			OldStatus: &old,
			NewStatus: target,
			Notes:     &note,
		}); err != nil {
			return err
		}

		if target == models.BookingCancelled {
			if _, err := rewards.ReleaseForBooking(ctx, booking.ID); err != nil {
				return err
			}
		}

		booking.Status = target
		result.BookingStatus = target
		result.BookingChanged = true

		extra := models.JSONB{
			notification.KeyReference: n.OrderID,
			notification.KeyOldStatus: string(old),
			notification.KeyNewStatus: string(target),
		}
		switch target {
		case models.BookingConfirmed:
			published = append(published, bookingEvent(models.EventPaymentConfirmed, booking, "", extra))
		case models.BookingCancelled:
			extra[notification.KeyReason] = "payment " + n.TransactionStatus
			published = append(published, bookingEvent(models.EventBookingCancelled, booking, "", extra))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return result, published, nil
}

// deriveBookingStatus decides what a transaction status does to its booking.
// Only pending bookings move.
func deriveBookingStatus(current models.BookingStatus, txnStatus models.TransactionStatus) (models.BookingStatus, bool) {
	if current != models.BookingPending {
		return current, false
	}
	switch txnStatus {
	case models.TransactionSuccess:
		return models.BookingConfirmed, true
	case models.TransactionCanceled:
		return models.BookingCancelled, true
	}
	return current, false
}

func (s *WebhookReconcilerService) reject(ctx context.Context, event *models.WebhookEvent, reason string) {
	now := s.now()
	event.Outcome = models.WebhookRejected
	event.ErrorMessage = &reason
	event.ProcessedAt = &now
	s.record(ctx, event)
}

// record writes the audit entry. A failed audit insert never blocks
// reconciliation; it reports false so the entry is not completed later.
func (s *WebhookReconcilerService) record(ctx context.Context, event *models.WebhookEvent) bool {
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.WithError(err).WithField("webhook_event_id", event.ID).Warn("Failed to write webhook audit entry")
		return false
	}
	return true
}

func (s *WebhookReconcilerService) complete(ctx context.Context, id uuid.UUID, outcome models.WebhookOutcome, message string) {
	if err := s.audit.Complete(ctx, id, outcome, message); err != nil {
		s.logger.WithError(err).WithField("webhook_event_id", id).Warn("Failed to complete webhook audit entry")
	}
}
