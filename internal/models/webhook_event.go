package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookOutcome records what processing an inbound gateway callback did
type WebhookOutcome string

const (
	WebhookReceived        WebhookOutcome = "received"
	WebhookApplied         WebhookOutcome = "applied"
	WebhookDuplicate       WebhookOutcome = "duplicate"
	WebhookUnknownRef      WebhookOutcome = "unknown_reference"
	WebhookRejected        WebhookOutcome = "rejected"
	WebhookProcessingError WebhookOutcome = "error"
)

// WebhookEvent is an immutable audit entry for one inbound gateway callback
type WebhookEvent struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	Provider          string         `json:"provider" db:"provider"`
	GatewayReference  *string        `json:"gateway_reference,omitempty" db:"gateway_reference"`
	TransactionStatus *string        `json:"transaction_status,omitempty" db:"transaction_status"`
	FraudStatus       *string        `json:"fraud_status,omitempty" db:"fraud_status"`
	Payload           JSONB          `json:"payload,omitempty" db:"payload"`
	SignatureValid    *bool          `json:"signature_valid,omitempty" db:"signature_valid"`
	Outcome           WebhookOutcome `json:"outcome" db:"outcome"`
	ErrorMessage      *string        `json:"error_message,omitempty" db:"error_message"`

	// Caller metadata
	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceInfo JSONB   `json:"device_info,omitempty" db:"device_info"`

	ReceivedAt  time.Time  `json:"received_at" db:"received_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// NewWebhookEvent creates an audit entry for a freshly received callback
func NewWebhookEvent(provider string, payload []byte) *WebhookEvent {
	return &WebhookEvent{
		ID:         uuid.New(),
		Provider:   provider,
		Payload:    RawJSON(payload),
		Outcome:    WebhookReceived,
		ReceivedAt: time.Now(),
	}
}

// SetCaller records where the callback came from
func (e *WebhookEvent) SetCaller(ip, userAgent string, device JSONB) *WebhookEvent {
	if ip != "" {
		e.IPAddress = &ip
	}
	if userAgent != "" {
		e.UserAgent = &userAgent
	}
	e.DeviceInfo = device
	return e
}

// SetNotification records the parsed gateway fields
func (e *WebhookEvent) SetNotification(reference, status, fraud string) *WebhookEvent {
	if reference != "" {
		e.GatewayReference = &reference
	}
	if status != "" {
		e.TransactionStatus = &status
	}
	if fraud != "" {
		e.FraudStatus = &fraud
	}
	return e
}
