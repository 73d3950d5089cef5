package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/tripnest/booking-backend/internal/models"
)

// Reasons a reward is left out of a booking
const (
	ReasonNotOwned       = "reward does not belong to this user"
	ReasonNotAvailable   = "reward is no longer available"
	ReasonExpired        = "reward has expired"
	ReasonWrongScope     = "reward does not apply to this package type"
	ReasonBelowMinimum   = "booking total is below the reward's minimum transaction"
	ReasonLostConcurrent = "reward was used by another booking"
)

// RewardSelection is the outcome of filtering a user's candidate rewards
type RewardSelection struct {
	Applied []*models.Reward
	Total   int64
	Skipped map[uuid.UUID]string
}

// SelectRewards filters candidates down to the rewards that apply to a
// booking and sums their amounts. The sum is not capped at totalPrice.
// It has no side effects.
func SelectRewards(candidates []*models.Reward, userID uuid.UUID, packageType models.PackageType, totalPrice int64, now time.Time) *RewardSelection {
	selection := &RewardSelection{
		Applied: []*models.Reward{},
		Skipped: map[uuid.UUID]string{},
	}

	seen := map[uuid.UUID]bool{}
	for _, reward := range candidates {
		if seen[reward.ID] {
			continue
		}
		seen[reward.ID] = true

		if reason := rewardIneligibility(reward, userID, packageType, totalPrice, now); reason != "" {
			selection.Skipped[reward.ID] = reason
			continue
		}

		selection.Applied = append(selection.Applied, reward)
		selection.Total += reward.Amount
	}

	return selection
}

// rewardIneligibility returns why a reward cannot apply, or "" if it can
func rewardIneligibility(reward *models.Reward, userID uuid.UUID, packageType models.PackageType, totalPrice int64, now time.Time) string {
	switch {
	case reward.UserID != userID:
		return ReasonNotOwned
	case reward.Status != models.RewardAvailable:
		return ReasonNotAvailable
	case reward.IsExpired(now):
		return ReasonExpired
	case packageType != "" && !reward.AppliesToPackage(packageType):
		return ReasonWrongScope
	case reward.MinTransaction != nil && *reward.MinTransaction > totalPrice:
		return ReasonBelowMinimum
	}
	return ""
}
