package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripnest/booking-backend/internal/models"
)

func newReward(userID uuid.UUID, amount int64) *models.Reward {
	return &models.Reward{
		ID:        uuid.New(),
		UserID:    userID,
		Origin:    "referral",
		Amount:    amount,
		Status:    models.RewardAvailable,
		AppliesTo: models.RewardScopeAll,
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestSelectRewards_AppliesEligibleReward(t *testing.T) {
	userID := uuid.New()
	reward := newReward(userID, 200000)
	reward.MinTransaction = int64Ptr(500000)

	selection := SelectRewards([]*models.Reward{reward}, userID, models.PackageTypeTour, 2000000, fixedNow)

	require.Len(t, selection.Applied, 1)
	assert.Equal(t, int64(200000), selection.Total)
	assert.Empty(t, selection.Skipped)
	assert.Equal(t, int64(1800000), FinalPrice(2000000, selection.Total))
}

func TestSelectRewards_FiltersIneligible(t *testing.T) {
	userID := uuid.New()
	past := fixedNow.Add(-time.Hour)

	used := newReward(userID, 10000)
	used.Status = models.RewardUsed

	expired := newReward(userID, 10000)
	expired.ExpiredAt = &past

	wrongScope := newReward(userID, 10000)
	wrongScope.AppliesTo = models.RewardScopeRental

	belowMin := newReward(userID, 10000)
	belowMin.MinTransaction = int64Ptr(5000000)

	foreign := newReward(uuid.New(), 10000)

	good := newReward(userID, 25000)
	good.AppliesTo = models.RewardScopeTour

	candidates := []*models.Reward{used, expired, wrongScope, belowMin, foreign, good}
	selection := SelectRewards(candidates, userID, models.PackageTypeTour, 1000000, fixedNow)

	require.Len(t, selection.Applied, 1)
	assert.Equal(t, good.ID, selection.Applied[0].ID)
	assert.Equal(t, int64(25000), selection.Total)

	assert.Equal(t, ReasonNotAvailable, selection.Skipped[used.ID])
	assert.Equal(t, ReasonExpired, selection.Skipped[expired.ID])
	assert.Equal(t, ReasonWrongScope, selection.Skipped[wrongScope.ID])
	assert.Equal(t, ReasonBelowMinimum, selection.Skipped[belowMin.ID])
	assert.Equal(t, ReasonNotOwned, selection.Skipped[foreign.ID])
}

func TestSelectRewards_SumIsNotCapped(t *testing.T) {
	userID := uuid.New()
	a := newReward(userID, 80000)
	b := newReward(userID, 50000)

	selection := SelectRewards([]*models.Reward{a, b}, userID, models.PackageTypeActivity, 100000, fixedNow)

	assert.Equal(t, int64(130000), selection.Total)
	assert.Equal(t, int64(0), FinalPrice(100000, selection.Total))
}

func TestSelectRewards_MinTransactionBoundary(t *testing.T) {
	userID := uuid.New()
	reward := newReward(userID, 10000)
	reward.MinTransaction = int64Ptr(100000)

	selection := SelectRewards([]*models.Reward{reward}, userID, models.PackageTypeTour, 100000, fixedNow)
	assert.Len(t, selection.Applied, 1)
}

func TestSelectRewards_ExpiryInFutureStillApplies(t *testing.T) {
	userID := uuid.New()
	future := fixedNow.Add(24 * time.Hour)
	reward := newReward(userID, 10000)
	reward.ExpiredAt = &future

	selection := SelectRewards([]*models.Reward{reward}, userID, models.PackageTypeTour, 100000, fixedNow)
	assert.Len(t, selection.Applied, 1)
}

func TestSelectRewards_Deduplicates(t *testing.T) {
	userID := uuid.New()
	reward := newReward(userID, 10000)

	selection := SelectRewards([]*models.Reward{reward, reward}, userID, models.PackageTypeTour, 100000, fixedNow)

	assert.Len(t, selection.Applied, 1)
	assert.Equal(t, int64(10000), selection.Total)
}

func TestSelectRewards_NoCandidates(t *testing.T) {
	selection := SelectRewards(nil, uuid.New(), models.PackageTypeTour, 100000, fixedNow)

	assert.Empty(t, selection.Applied)
	assert.Equal(t, int64(0), selection.Total)
}
