package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboundEventType names a notification-worthy domain event
type OutboundEventType string

const (
	EventBookingCreated       OutboundEventType = "booking.created"
	EventBookingCancelled     OutboundEventType = "booking.cancelled"
	EventBookingStatusChanged OutboundEventType = "booking.status_changed"
	EventPaymentConfirmed     OutboundEventType = "payment.confirmed"
)

// OutboundEventStatus tracks delivery of an outbound event
type OutboundEventStatus string

const (
	OutboundPending OutboundEventStatus = "pending"
	OutboundSent    OutboundEventStatus = "sent"
	OutboundFailed  OutboundEventStatus = "failed"
)

// OutboundEvent is a queued notification emitted after a commit and
// consumed by the notifier worker
type OutboundEvent struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	Type          OutboundEventType   `json:"type" db:"event_type"`
	AggregateID   uuid.UUID           `json:"aggregate_id" db:"aggregate_id"`
	Payload       JSONB               `json:"payload" db:"payload"`
	Status        OutboundEventStatus `json:"status" db:"status"`
	Attempts      int                 `json:"attempts" db:"attempts"`
	LastError     *string             `json:"last_error,omitempty" db:"last_error"`
	NextAttemptAt time.Time           `json:"next_attempt_at" db:"next_attempt_at"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	SentAt        *time.Time          `json:"sent_at,omitempty" db:"sent_at"`
}

// NewOutboundEvent creates a pending event due immediately
func NewOutboundEvent(eventType OutboundEventType, aggregateID uuid.UUID, payload JSONB) *OutboundEvent {
	now := time.Now()
	return &OutboundEvent{
		ID:            uuid.New(),
		Type:          eventType,
		AggregateID:   aggregateID,
		Payload:       payload,
		Status:        OutboundPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

// PayloadString returns a string field from the payload, or "" when absent
func (e *OutboundEvent) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}
