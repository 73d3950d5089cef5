package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/notification"
)

// adminTransitions lists the status changes staff may make by hand
var adminTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPending:   {models.BookingConfirmed, models.BookingCancelled},
	models.BookingConfirmed: {models.BookingCompleted, models.BookingCancelled},
}

// BookingService handles reads and manual status changes of existing bookings
type BookingService struct {
	tx          *database.Transactor
	bookingRepo *database.BookingRepository
	packageRepo *database.PackageRepository
	paymentRepo *database.PaymentTransactionRepository
	rewardRepo  *database.RewardRepository
	events      EventPublisher
	logger      *logrus.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	tx *database.Transactor,
	bookingRepo *database.BookingRepository,
	packageRepo *database.PackageRepository,
	paymentRepo *database.PaymentTransactionRepository,
	rewardRepo *database.RewardRepository,
	events EventPublisher,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		tx:          tx,
		bookingRepo: bookingRepo,
		packageRepo: packageRepo,
		paymentRepo: paymentRepo,
		rewardRepo:  rewardRepo,
		events:      events,
		logger:      logger,
	}
}

// loadVisible returns a booking the actor is allowed to see
func (s *BookingService) loadVisible(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, systemError("load booking", err)
	}
	if booking == nil {
		return nil, &NotFoundError{Resource: "booking", ID: id.String()}
	}
	if booking.UserID != actor.UserID && !actor.IsStaff() {
		return nil, &ForbiddenError{Message: "you do not have access to this booking"}
	}
	return booking, nil
}

// GetBooking returns a booking with its rewards, payments and history
func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.BookingDetail, error) {
	booking, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	pkg, err := s.packageRepo.Get(ctx, booking.PackageRef())
	if err != nil {
		return nil, systemError("load package", err)
	}
	rewards, err := s.bookingRepo.ListRewards(ctx, booking.ID)
	if err != nil {
		return nil, systemError("load booking rewards", err)
	}
	payments, err := s.paymentRepo.ListByBooking(ctx, booking.ID)
	if err != nil {
		return nil, systemError("load payments", err)
	}
	logs, err := s.bookingRepo.ListLogs(ctx, booking.ID)
	if err != nil {
		return nil, systemError("load booking logs", err)
	}

	return &models.BookingDetail{
		Booking:  booking,
		Package:  pkg,
		Rewards:  rewards,
		Payments: payments,
		Logs:     logs,
	}, nil
}

// ListMyBookings returns the actor's bookings, newest first
func (s *BookingService) ListMyBookings(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	bookings, err := s.bookingRepo.ListByUser(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, systemError("list bookings", err)
	}
	return bookings, nil
}

// ListPayments returns every payment attempt of a booking
func (s *BookingService) ListPayments(ctx context.Context, actor models.Actor, id uuid.UUID) ([]*models.PaymentTransaction, error) {
	booking, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	payments, err := s.paymentRepo.ListByBooking(ctx, booking.ID)
	if err != nil {
		return nil, systemError("list payments", err)
	}
	return payments, nil
}

// CancelBooking lets the owner cancel a booking that is still awaiting
// payment. Rewards spent on it become available again.
func (s *BookingService) CancelBooking(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Booking, error) {
	var booking *models.Booking
	var released int64

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		bookings := s.bookingRepo.WithTx(tx)

		b, err := bookings.GetByID(ctx, id)
		if err != nil {
			return systemError("load booking", err)
		}
		if b == nil {
			return &NotFoundError{Resource: "booking", ID: id.String()}
		}
		if b.UserID != actor.UserID {
			return &ForbiddenError{Message: "only the booking owner can cancel it"}
		}
		if b.Status != models.BookingPending {
			return &ConflictError{Message: fmt.Sprintf("booking is %s, only pending bookings can be cancelled", b.Status)}
		}

		released, err = s.transition(ctx, tx, b, models.BookingCancelled, actor, cancelNote(reason))
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":       booking.ID,
		"user_id":          actor.UserID,
		"rewards_released": released,
	}).Info("Booking cancelled by customer")

	publishAll(ctx, s.events, s.logger, bookingEvent(models.EventBookingCancelled, booking, "", models.JSONB{
		notification.KeyOldStatus: string(models.BookingPending),
		notification.KeyNewStatus: string(models.BookingCancelled),
		notification.KeyReason:    strings.TrimSpace(reason),
	}))

	return booking, nil
}

// UpdateBookingStatus applies a manual status change made by staff
func (s *BookingService) UpdateBookingStatus(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	req *models.UpdateBookingStatusRequest,
) (*models.Booking, error) {
	target := models.BookingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !target.Valid() {
		return nil, fieldError("status", "must be one of pending, confirmed, completed, cancelled")
	}

	var booking *models.Booking
	var old models.BookingStatus
	unchanged := false

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.bookingRepo.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return systemError("load booking", err)
		}
		if b == nil {
			return &NotFoundError{Resource: "booking", ID: id.String()}
		}
		if b.Status == target {
			booking = b
			unchanged = true
			return nil
		}
		if !adminTransitionAllowed(b.Status, target) {
			return fieldError("status", fmt.Sprintf("cannot move a %s booking to %s", b.Status, target))
		}

		old = b.Status
		var notes *string
		if n := strings.TrimSpace(req.Notes); n != "" {
			notes = &n
		}
		if _, err := s.transition(ctx, tx, b, target, actor, notes); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if unchanged {
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"actor_id":   actor.UserID,
			"status":     target,
		}).Info("Booking already has the requested status")
		return booking, nil
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"actor_id":   actor.UserID,
		"actor_role": actor.Role,
		"old_status": old,
		"new_status": target,
	}).Info("Booking status updated")

	eventType := models.EventBookingStatusChanged
	if target == models.BookingCancelled {
		eventType = models.EventBookingCancelled
	}
	publishAll(ctx, s.events, s.logger, bookingEvent(eventType, booking, "", models.JSONB{
		notification.KeyOldStatus: string(old),
		notification.KeyNewStatus: string(target),
	}))

	return booking, nil
}

// transition moves b to target, logs it and releases rewards on
// cancellation. b.Status is updated in place.
func (s *BookingService) transition(
	ctx context.Context,
	tx *sqlx.Tx,
	b *models.Booking,
	target models.BookingStatus,
	actor models.Actor,
	notes *string,
) (int64, error) {
	bookings := s.bookingRepo.WithTx(tx)

	moved, err := bookings.UpdateStatus(ctx, b.ID, b.Status, target)
	if err != nil {
		return 0, systemError("update booking status", err)
	}
	if !moved {
		return 0, &ConflictError{Message: "booking was changed concurrently"}
	}

	old := b.Status
	if err := bookings.AppendLog(ctx, &models.BookingLog{
		BookingID: b.ID,
		UserID:    actor.LogUserID(),
		ActorRole: actor.Role,
		OldStatus: &old,
		NewStatus: target,
		Notes:     notes,
	}); err != nil {
		return 0, systemError("append booking log", err)
	}

	var released int64
	if target == models.BookingCancelled {
		released, err = s.rewardRepo.WithTx(tx).ReleaseForBooking(ctx, b.ID)
		if err != nil {
			return 0, systemError("release rewards", err)
		}
	}

	b.Status = target
	return released, nil
}

func adminTransitionAllowed(from, to models.BookingStatus) bool {
	for _, allowed := range adminTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func cancelNote(reason string) *string {
	note := "cancelled by customer"
	if r := strings.TrimSpace(reason); r != "" {
		note += ": " + r
	}
	return &note
}
