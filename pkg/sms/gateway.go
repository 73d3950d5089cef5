package sms

import "context"

// Gateway defines the interface for sending SMS messages
type Gateway interface {
	// Send delivers a text message to a phone number
	Send(ctx context.Context, phone, message string) error

	// GetName returns the name of the SMS gateway implementation
	GetName() string
}
