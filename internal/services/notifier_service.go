package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/notification"
)

// NotifierConfig tunes the outbound event worker
type NotifierConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts   int
	RetryBackoff  time.Duration // multiplied by the attempt number
	LeaseDuration time.Duration // how long a claimed event is hidden from other workers
}

// DefaultNotifierConfig returns default configuration
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    20,
		MaxAttempts:   5,
		RetryBackoff:  time.Minute,
		LeaseDuration: 2 * time.Minute,
	}
}

// NotifierService drains the outbound event queue into notification channels.
// Delivery is at-least-once: a failure on any channel retries the event on
// every channel.
type NotifierService struct {
	eventRepo *database.OutboundEventRepository
	userRepo  *database.UserRepository
	channels  []notification.Channel
	config    NotifierConfig
	logger    *logrus.Logger

	now func() time.Time
}

// NewNotifierService creates a new notifier worker
func NewNotifierService(
	eventRepo *database.OutboundEventRepository,
	userRepo *database.UserRepository,
	channels []notification.Channel,
	config NotifierConfig,
	logger *logrus.Logger,
) *NotifierService {
	defaults := DefaultNotifierConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.LeaseDuration <= 0 {
		config.LeaseDuration = defaults.LeaseDuration
	}
	return &NotifierService{
		eventRepo: eventRepo,
		userRepo:  userRepo,
		channels:  channels,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled
func (s *NotifierService) Run(ctx context.Context) {
	names := make([]string, 0, len(s.channels))
	for _, ch := range s.channels {
		names = append(names, ch.Name())
	}
	s.logger.WithFields(logrus.Fields{
		"channels":      names,
		"poll_interval": s.config.PollInterval.String(),
	}).Info("Notifier worker started")

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Notifier worker stopped")
			return
		case <-ticker.C:
			// Keep draining while full batches come back
			for {
				n, err := s.ProcessBatch(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						s.logger.WithError(err).Error("Notifier batch failed")
					}
					break
				}
				if n < s.config.BatchSize {
					break
				}
			}
		}
	}
}

// ProcessBatch leases one batch of due events, delivers them and returns how
// many it handled. Channels are called with no database lock held.
func (s *NotifierService) ProcessBatch(ctx context.Context) (int, error) {
	handled := 0

	claimedAt := s.now()
	due, err := s.eventRepo.ClaimDue(ctx, claimedAt, claimedAt.Add(s.config.LeaseDuration), s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to process outbound events: %w", err)
	}

	for _, event := range due {
		deliveryErr := s.deliver(ctx, event)
		now := s.now()

		if deliveryErr == nil {
			if err := s.eventRepo.MarkSent(ctx, event.ID, now); err != nil {
				return handled, fmt.Errorf("failed to process outbound events: %w", err)
			}
			handled++
			continue
		}

		attempt := event.Attempts + 1
		giveUp := attempt >= s.config.MaxAttempts
		next := now.Add(time.Duration(attempt) * s.config.RetryBackoff)

		log := s.logger.WithError(deliveryErr).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"attempt":    attempt,
		})
		if giveUp {
			log.Error("Giving up on outbound event")
		} else {
			log.Warn("Outbound event delivery failed, will retry")
		}

		if err := s.eventRepo.MarkRetry(ctx, event.ID, deliveryErr.Error(), next, giveUp); err != nil {
			return handled, fmt.Errorf("failed to process outbound events: %w", err)
		}
		handled++
	}

	return handled, nil
}

// deliver sends one event on every channel and joins their errors
func (s *NotifierService) deliver(ctx context.Context, event *models.OutboundEvent) error {
	customer := s.customerOf(ctx, event)

	var failures []string
	for _, ch := range s.channels {
		if err := ch.Deliver(ctx, event, customer); err != nil {
			failures = append(failures, ch.Name()+": "+err.Error())
		}
	}

	if len(failures) > 0 {
		return errors.New(strings.Join(failures, "; "))
	}
	return nil
}

// customerOf loads the booking owner named in the payload, if any
func (s *NotifierService) customerOf(ctx context.Context, event *models.OutboundEvent) *models.User {
	raw := event.PayloadString(notification.KeyUserID)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", id).Warn("Failed to load customer for notification")
		return nil
	}
	return user
}
