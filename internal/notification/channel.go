// Package notification delivers outbound booking events to people.
package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tripnest/booking-backend/internal/models"
)

// Channel delivers one outbound event. Returning an error schedules a retry.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, event *models.OutboundEvent, customer *models.User) error
}

// Payload keys written by the services that publish events
const (
	KeyBookingCode = "booking_code"
	KeyUserID      = "user_id"
	KeyPackageType = "package_type"
	KeyPackageName = "package_name"
	KeyStartDate   = "start_date"
	KeyFinalPrice  = "final_price"
	KeyOldStatus   = "old_status"
	KeyNewStatus   = "new_status"
	KeyReason      = "reason"
	KeyReference   = "gateway_reference"
)

// FormatIDR renders a whole-rupiah amount as "Rp 1.800.000"
func FormatIDR(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "Rp " + b.String()
}

func payloadAmount(event *models.OutboundEvent, key string) (int64, bool) {
	switch v := event.Payload[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// StaffText renders an event for the operations chat
func StaffText(event *models.OutboundEvent) string {
	code := event.PayloadString(KeyBookingCode)

	switch event.Type {
	case models.EventBookingCreated:
		text := fmt.Sprintf("*New booking* %s\nPackage: %s (%s)\nStart: %s",
			code, event.PayloadString(KeyPackageName), event.PayloadString(KeyPackageType),
			event.PayloadString(KeyStartDate))
		if amount, ok := payloadAmount(event, KeyFinalPrice); ok {
			text += "\nTotal: " + FormatIDR(amount)
		}
		return text
	case models.EventPaymentConfirmed:
		text := fmt.Sprintf("*Payment confirmed* %s", code)
		if amount, ok := payloadAmount(event, KeyFinalPrice); ok {
			text += "\nAmount: " + FormatIDR(amount)
		}
		return text
	case models.EventBookingCancelled:
		text := fmt.Sprintf("*Booking cancelled* %s", code)
		if reason := event.PayloadString(KeyReason); reason != "" {
			text += "\nReason: " + reason
		}
		return text
	case models.EventBookingStatusChanged:
		return fmt.Sprintf("*Booking %s* %s → %s", code,
			event.PayloadString(KeyOldStatus), event.PayloadString(KeyNewStatus))
	}

	return fmt.Sprintf("%s %s", event.Type, code)
}

// CustomerText renders an event for the customer, or "" when the customer
// is not told about this event type
func CustomerText(event *models.OutboundEvent) string {
	code := event.PayloadString(KeyBookingCode)

	switch event.Type {
	case models.EventPaymentConfirmed:
		return fmt.Sprintf("TripNest: payment received for booking %s. Your %s on %s is confirmed.",
			code, event.PayloadString(KeyPackageName), event.PayloadString(KeyStartDate))
	case models.EventBookingCancelled:
		return fmt.Sprintf("TripNest: booking %s has been cancelled.", code)
	}

	return ""
}
