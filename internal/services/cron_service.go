package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/database"
)

// CronConfig holds the schedules of background jobs.
// Cron format: second minute hour day month weekday
type CronConfig struct {
	RewardExpirySpec  string        // e.g. "0 */15 * * * *" = every 15 minutes
	OutboxCleanupSpec string        // e.g. "0 30 3 * * *" = 3:30 AM every day
	OutboxRetention   time.Duration // how long sent events are kept
}

// CronService manages scheduled background jobs
type CronService struct {
	cron      *cron.Cron
	rewardSvc *RewardService
	eventRepo *database.OutboundEventRepository
	config    CronConfig
	logger    *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(rewardSvc *RewardService, eventRepo *database.OutboundEventRepository, config CronConfig, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:      cron.New(cron.WithSeconds()),
		rewardSvc: rewardSvc,
		eventRepo: eventRepo,
		config:    config,
		logger:    logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// Job 1: Expire rewards past their expiry
	if _, err := s.cron.AddFunc(s.config.RewardExpirySpec, s.expireRewardsJob); err != nil {
		return fmt.Errorf("failed to schedule reward expiry job: %w", err)
	}
	s.logger.WithField("spec", s.config.RewardExpirySpec).Info("Scheduled: Expire rewards")

	// Job 2: Delete delivered outbound events
	if _, err := s.cron.AddFunc(s.config.OutboxCleanupSpec, s.cleanupOutboxJob); err != nil {
		return fmt.Errorf("failed to schedule outbox cleanup job: %w", err)
	}
	s.logger.WithField("spec", s.config.OutboxCleanupSpec).Info("Scheduled: Clean up sent outbound events")

	s.cron.Start()
	s.logger.Info("Cron service started successfully")

	return nil
}

// Stop stops all cron jobs and waits for running ones
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// expireRewardsJob marks overdue rewards expired
func (s *CronService) expireRewardsJob() {
	startTime := time.Now()

	count, err := s.rewardSvc.ExpireOverdue(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to expire rewards")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"expired":  count,
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Reward expiry finished")
}

// cleanupOutboxJob deletes sent events older than the retention window
func (s *CronService) cleanupOutboxJob() {
	startTime := time.Now()
	cutoff := startTime.Add(-s.config.OutboxRetention)

	count, err := s.eventRepo.DeleteSentBefore(context.Background(), cutoff)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to clean up outbound events")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deleted":  count,
		"cutoff":   cutoff.Format(time.RFC3339),
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Outbox cleanup finished")
}

// RunRewardExpiryNow runs the reward expiry job immediately
func (s *CronService) RunRewardExpiryNow() {
	s.logger.Info("[MANUAL] Running reward expiry now...")
	s.expireRewardsJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
