package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
)

func setupRewardServiceTest(t *testing.T) (*RewardService, sqlmock.Sqlmock, func()) {
	db, sqlMock, cleanup := setupTestDB(t)
	service := NewRewardService(database.NewRewardRepository(db), testLogger())
	service.now = func() time.Time { return fixedNow }
	return service, sqlMock, cleanup
}

func TestPreviewReward_Applicable(t *testing.T) {
	service, sqlMock, cleanup := setupRewardServiceTest(t)
	defer cleanup()

	actor := customerActor()
	rewardID := uuid.New()

	sqlMock.ExpectQuery("SELECT (.+) FROM rewards WHERE id").
		WithArgs(rewardID.String(), actor.UserID.String()).
		WillReturnRows(sqlmock.NewRows(rewardCols).AddRow(
			rewardID.String(), actor.UserID.String(), "referral", int64(200000), "available", "tour",
			int64(500000), nil, nil, nil, fixedNow))

	preview, err := service.Preview(context.Background(), actor, &models.PreviewRewardRequest{
		RewardID:      rewardID.String(),
		BookingAmount: 2000000,
		PackageType:   "tour",
	})
	require.NoError(t, err)

	assert.True(t, preview.Applicable)
	assert.Equal(t, int64(200000), preview.DiscountAmount)
	assert.Equal(t, int64(1800000), preview.FinalAmount)
	assert.Empty(t, preview.Reason)
}

func TestPreviewReward_DiscountLimitedByAmount(t *testing.T) {
	service, sqlMock, cleanup := setupRewardServiceTest(t)
	defer cleanup()

	actor := customerActor()
	rewardID := uuid.New()

	sqlMock.ExpectQuery("SELECT (.+) FROM rewards WHERE id").
		WillReturnRows(sqlmock.NewRows(rewardCols).AddRow(
			rewardID.String(), actor.UserID.String(), "promo", int64(150000), "available", "all",
			nil, nil, nil, nil, fixedNow))

	preview, err := service.Preview(context.Background(), actor, &models.PreviewRewardRequest{
		RewardID:      rewardID.String(),
		BookingAmount: 100000,
	})
	require.NoError(t, err)

	assert.True(t, preview.Applicable)
	assert.Equal(t, int64(100000), preview.DiscountAmount)
	assert.Equal(t, int64(0), preview.FinalAmount)
}

func TestPreviewReward_BelowMinimum(t *testing.T) {
	service, sqlMock, cleanup := setupRewardServiceTest(t)
	defer cleanup()

	actor := customerActor()
	rewardID := uuid.New()

	sqlMock.ExpectQuery("SELECT (.+) FROM rewards WHERE id").
		WillReturnRows(sqlmock.NewRows(rewardCols).AddRow(
			rewardID.String(), actor.UserID.String(), "referral", int64(200000), "available", "all",
			int64(500000), nil, nil, nil, fixedNow))

	preview, err := service.Preview(context.Background(), actor, &models.PreviewRewardRequest{
		RewardID:      rewardID.String(),
		BookingAmount: 400000,
	})
	require.NoError(t, err)

	assert.False(t, preview.Applicable)
	assert.Equal(t, ReasonBelowMinimum, preview.Reason)
	assert.Equal(t, int64(400000), preview.FinalAmount)
}

func TestPreviewReward_Errors(t *testing.T) {
	service, sqlMock, cleanup := setupRewardServiceTest(t)
	defer cleanup()

	_, err := service.Preview(context.Background(), customerActor(), &models.PreviewRewardRequest{
		RewardID:      "abc",
		BookingAmount: -1,
		PackageType:   "cruise",
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)

	sqlMock.ExpectQuery("SELECT (.+) FROM rewards WHERE id").
		WillReturnRows(sqlmock.NewRows(rewardCols))

	_, err = service.Preview(context.Background(), customerActor(), &models.PreviewRewardRequest{RewardID: uuid.NewString()})
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestExpireOverdueRewards(t *testing.T) {
	service, sqlMock, cleanup := setupRewardServiceTest(t)
	defer cleanup()

	sqlMock.ExpectExec("UPDATE rewards SET status = 'expired'").
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 4))

	count, err := service.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
