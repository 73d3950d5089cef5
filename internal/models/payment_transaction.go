package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType distinguishes payments from refunds
type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionRefund  TransactionType = "refund"
)

// TransactionStatus is the internal payment status vocabulary
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionSuccess  TransactionStatus = "success"
	TransactionFailed   TransactionStatus = "failed"
	TransactionRefunded TransactionStatus = "refunded"
	TransactionCanceled TransactionStatus = "canceled"
)

// IsTerminal reports whether no further gateway event should move the
// transaction back to pending
func (s TransactionStatus) IsTerminal() bool {
	return s != TransactionPending
}

// PaymentTransaction is one payment attempt (or refund) against a booking.
// GatewayReference is the order id sent to the gateway and is unique.
type PaymentTransaction struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	BookingID        uuid.UUID         `json:"booking_id" db:"booking_id"`
	Type             TransactionType   `json:"type" db:"type"`
	Amount           int64             `json:"amount" db:"amount"`
	Method           *string           `json:"method,omitempty" db:"method"`
	Status           TransactionStatus `json:"status" db:"status"`
	GatewayReference string            `json:"gateway_reference" db:"gateway_reference"`
	SessionToken     *string           `json:"session_token,omitempty" db:"session_token"`
	RedirectURL      *string           `json:"redirect_url,omitempty" db:"redirect_url"`
	RawResponse      JSONB             `json:"-" db:"raw_response"`
	ConfirmedAt      *time.Time        `json:"confirmed_at,omitempty" db:"confirmed_at"`
	ConfirmedBy      *string           `json:"confirmed_by,omitempty" db:"confirmed_by"`
	TransactedAt     time.Time         `json:"transacted_at" db:"transacted_at"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// PaymentSession is what the customer needs to complete payment on the gateway
type PaymentSession struct {
	TransactionID    uuid.UUID `json:"transaction_id"`
	GatewayReference string    `json:"gateway_reference"`
	Amount           int64     `json:"amount"`
	SessionToken     string    `json:"session_token"`
	RedirectURL      string    `json:"redirect_url"`
}
