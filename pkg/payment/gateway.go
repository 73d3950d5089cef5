package payment

import (
	"context"
	"fmt"
)

// Customer identifies the payer on the hosted checkout page
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Item is one line on the checkout summary. Discounts are negative lines.
type Item struct {
	ID       string
	Name     string
	Price    int64
	Quantity int
}

// SessionRequest describes a checkout session to open
type SessionRequest struct {
	OrderID  string
	Amount   int64
	Customer Customer
	Items    []Item
}

// Session is what the gateway returns for an opened checkout
type Session struct {
	Token       string
	RedirectURL string
	Raw         map[string]interface{}
}

// Gateway opens remote payment sessions
type Gateway interface {
	CreateSession(ctx context.Context, req *SessionRequest) (*Session, error)
}

// GatewayError is returned when the provider is unreachable or rejects a request
type GatewayError struct {
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment gateway returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payment gateway error: %s", e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
