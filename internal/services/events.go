package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/notification"
)

// EventPublisher queues outbound events for the notifier worker
type EventPublisher interface {
	Publish(ctx context.Context, event *models.OutboundEvent) error
}

// bookingEvent builds an outbound event describing a booking
func bookingEvent(eventType models.OutboundEventType, booking *models.Booking, packageName string, extra models.JSONB) *models.OutboundEvent {
	payload := models.JSONB{
		notification.KeyBookingCode: booking.Code,
		notification.KeyUserID:      booking.UserID.String(),
		notification.KeyPackageType: string(booking.PackageType),
		notification.KeyStartDate:   booking.StartDate.Format(DateLayout),
		notification.KeyFinalPrice:  booking.FinalPrice,
	}
	if packageName != "" {
		payload[notification.KeyPackageName] = packageName
	}
	for k, v := range extra {
		payload[k] = v
	}
	return models.NewOutboundEvent(eventType, booking.ID, payload)
}

// publishAll emits events after a commit. Failures are logged and never
// surface to the caller.
func publishAll(ctx context.Context, publisher EventPublisher, logger *logrus.Logger, events ...*models.OutboundEvent) {
	if publisher == nil {
		return
	}
	for _, event := range events {
		if err := publisher.Publish(ctx, event); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"event_type":   event.Type,
				"aggregate_id": event.AggregateID,
			}).Error("Failed to publish outbound event")
		}
	}
}
