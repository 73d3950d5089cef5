package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Booking is a point-in-time priced reservation of a package.
// Pricing fields never change after creation.
type Booking struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	Code               string        `json:"code" db:"booking_code"`
	UserID             uuid.UUID     `json:"user_id" db:"user_id"`
	PackageType        PackageType   `json:"package_type" db:"package_type"`
	PackageID          uuid.UUID     `json:"package_id" db:"package_id"`
	Quantity           int           `json:"quantity" db:"quantity"`
	StartDate          time.Time     `json:"start_date" db:"start_date"`
	EndDate            *time.Time    `json:"end_date,omitempty" db:"end_date"`
	UnitPriceAtBooking int64         `json:"unit_price_at_booking" db:"unit_price_at_booking"`
	TotalPrice         int64         `json:"total_price" db:"total_price"`
	RewardTotalApplied int64         `json:"reward_total_applied" db:"reward_total_applied"`
	FinalPrice         int64         `json:"final_price" db:"final_price"`
	Notes              *string       `json:"notes,omitempty" db:"notes"`
	Status             BookingStatus `json:"status" db:"status"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// PackageRef returns the tagged reference to the booked package
func (b *Booking) PackageRef() PackageRef {
	return PackageRef{Type: b.PackageType, ID: b.PackageID}
}

// BookingReward records the discount a reward actually granted to a booking
type BookingReward struct {
	BookingID     uuid.UUID `json:"booking_id" db:"booking_id"`
	RewardID      uuid.UUID `json:"reward_id" db:"reward_id"`
	AppliedAmount int64     `json:"applied_amount" db:"applied_amount"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// BookingLog is an append-only audit row for one booking status transition
type BookingLog struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	BookingID uuid.UUID      `json:"booking_id" db:"booking_id"`
	UserID    *uuid.UUID     `json:"user_id,omitempty" db:"user_id"`
	ActorRole string         `json:"actor_role" db:"actor_role"`
	OldStatus *BookingStatus `json:"old_status,omitempty" db:"old_status"`
	NewStatus BookingStatus  `json:"new_status" db:"new_status"`
	Notes     *string        `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// CreateBookingRequest is the inbound booking payload
type CreateBookingRequest struct {
	PackageType string   `json:"package_type"`
	PackageID   string   `json:"package_id"`
	Quantity    int      `json:"quantity"`
	StartDate   string   `json:"start_date"`
	EndDate     *string  `json:"end_date,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
	RewardIDs   []string `json:"reward_ids,omitempty"`
}

// CancelBookingRequest carries an optional cancellation reason
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// UpdateBookingStatusRequest is the admin status change payload
type UpdateBookingStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// BookingDetail is a booking with its applied rewards and payment attempts
type BookingDetail struct {
	Booking  *Booking              `json:"booking"`
	Package  *Package              `json:"package,omitempty"`
	Rewards  []BookingReward       `json:"rewards"`
	Payments []*PaymentTransaction `json:"payments"`
	Logs     []*BookingLog         `json:"logs,omitempty"`
}
