package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
)

// RewardService exposes a customer's rewards
type RewardService struct {
	rewardRepo *database.RewardRepository
	logger     *logrus.Logger

	now func() time.Time
}

// NewRewardService creates a new reward service
func NewRewardService(rewardRepo *database.RewardRepository, logger *logrus.Logger) *RewardService {
	return &RewardService{
		rewardRepo: rewardRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// ListAvailable returns the actor's spendable rewards
func (s *RewardService) ListAvailable(ctx context.Context, actor models.Actor) ([]*models.Reward, error) {
	rewards, err := s.rewardRepo.ListAvailable(ctx, actor.UserID, s.now())
	if err != nil {
		return nil, systemError("list rewards", err)
	}
	return rewards, nil
}

// Preview says whether a reward would apply to an amount, using the same
// rules as booking creation
func (s *RewardService) Preview(ctx context.Context, actor models.Actor, req *models.PreviewRewardRequest) (*models.RewardPreview, error) {
	verr := NewValidationError()

	rewardID, err := uuid.Parse(req.RewardID)
	if err != nil {
		verr.Add("reward_id", "must be a valid id")
	}
	if req.BookingAmount < 0 {
		verr.Add("booking_amount", "must not be negative")
	}
	var packageType models.PackageType
	if req.PackageType != "" {
		packageType = models.PackageType(req.PackageType)
		if !packageType.Valid() {
			verr.Add("package_type", "must be one of tour, activity, rental")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	reward, err := s.rewardRepo.GetOwned(ctx, actor.UserID, rewardID)
	if err != nil {
		return nil, systemError("load reward", err)
	}
	if reward == nil {
		return nil, &NotFoundError{Resource: "reward", ID: rewardID.String()}
	}

	preview := &models.RewardPreview{
		Reward:      reward,
		FinalAmount: req.BookingAmount,
	}
	if reason := rewardIneligibility(reward, actor.UserID, packageType, req.BookingAmount, s.now()); reason != "" {
		preview.Reason = reason
		return preview, nil
	}

	preview.Applicable = true
	preview.FinalAmount = FinalPrice(req.BookingAmount, reward.Amount)
	preview.DiscountAmount = req.BookingAmount - preview.FinalAmount
	return preview, nil
}

// ExpireOverdue marks rewards past their expiry as expired
func (s *RewardService) ExpireOverdue(ctx context.Context) (int64, error) {
	count, err := s.rewardRepo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, systemError("expire rewards", err)
	}
	if count > 0 {
		s.logger.WithField("count", count).Info("Expired overdue rewards")
	}
	return count, nil
}
