package notification

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/pkg/sms"
)

// SMSChannel texts the customer about events that concern them
type SMSChannel struct {
	gateway sms.Gateway
	logger  *logrus.Logger
}

// NewSMSChannel creates an SMS channel
func NewSMSChannel(gateway sms.Gateway, logger *logrus.Logger) *SMSChannel {
	return &SMSChannel{gateway: gateway, logger: logger}
}

// Name returns the channel name
func (s *SMSChannel) Name() string {
	return "sms:" + s.gateway.GetName()
}

// Deliver texts the customer. Events without customer text, and customers
// without a phone number, are skipped.
func (s *SMSChannel) Deliver(ctx context.Context, event *models.OutboundEvent, customer *models.User) error {
	text := CustomerText(event)
	if text == "" {
		return nil
	}

	if customer == nil || !customer.Phone.Valid || customer.Phone.String == "" {
		s.logger.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Debug("SMS skipped (no customer phone)")
		return nil
	}

	return s.gateway.Send(ctx, customer.Phone.String, text)
}
