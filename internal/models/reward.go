package models

import (
	"time"

	"github.com/google/uuid"
)

// RewardStatus represents whether a reward can still be spent
type RewardStatus string

const (
	RewardAvailable RewardStatus = "available"
	RewardUsed      RewardStatus = "used"
	RewardExpired   RewardStatus = "expired"
)

// RewardScope restricts which package types a reward applies to
type RewardScope string

const (
	RewardScopeAll      RewardScope = "all"
	RewardScopeTour     RewardScope = "tour"
	RewardScopeActivity RewardScope = "activity"
	RewardScopeRental   RewardScope = "rental"
)

// Reward is a discount credit owned by a user
type Reward struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	UserID         uuid.UUID    `json:"user_id" db:"user_id"`
	Origin         string       `json:"origin" db:"origin"`
	Amount         int64        `json:"amount" db:"amount"`
	Status         RewardStatus `json:"status" db:"status"`
	AppliesTo      RewardScope  `json:"applies_to" db:"applies_to"`
	MinTransaction *int64       `json:"min_transaction,omitempty" db:"min_transaction"`
	Description    *string      `json:"description,omitempty" db:"description"`
	UsedAt         *time.Time   `json:"used_at,omitempty" db:"used_at"`
	ExpiredAt      *time.Time   `json:"expired_at,omitempty" db:"expired_at"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// AppliesToPackage reports whether the reward scope covers the package type
func (r *Reward) AppliesToPackage(t PackageType) bool {
	return r.AppliesTo == RewardScopeAll || string(r.AppliesTo) == string(t)
}

// IsExpired reports whether the reward has passed its expiry at the given instant
func (r *Reward) IsExpired(now time.Time) bool {
	return r.ExpiredAt != nil && !r.ExpiredAt.After(now)
}

// PreviewRewardRequest asks whether a reward would apply to an amount
type PreviewRewardRequest struct {
	RewardID      string `json:"reward_id" binding:"required"`
	BookingAmount int64  `json:"booking_amount"`
	PackageType   string `json:"package_type"`
}

// RewardPreview is the answer to a PreviewRewardRequest
type RewardPreview struct {
	Reward         *Reward `json:"reward"`
	Applicable     bool    `json:"applicable"`
	DiscountAmount int64   `json:"discount_amount"`
	FinalAmount    int64   `json:"final_amount"`
	Reason         string  `json:"reason,omitempty"`
}
