package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a customer's rating of a package they booked
type Review struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	BookingID   uuid.UUID   `json:"booking_id" db:"booking_id"`
	UserID      uuid.UUID   `json:"user_id" db:"user_id"`
	PackageType PackageType `json:"package_type" db:"package_type"`
	PackageID   uuid.UUID   `json:"package_id" db:"package_id"`
	Rating      int         `json:"rating" db:"rating"`
	Comment     *string     `json:"comment,omitempty" db:"comment"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// CreateReviewRequest is the inbound review payload
type CreateReviewRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}
