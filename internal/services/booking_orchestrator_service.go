package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/notification"
	"github.com/tripnest/booking-backend/pkg/payment"
)

// BookingOrchestratorConfig holds configuration for the orchestrator
type BookingOrchestratorConfig struct {
	Location *time.Location // business timezone deciding what "today" is
}

// DefaultOrchestratorConfig returns default configuration
func DefaultOrchestratorConfig() BookingOrchestratorConfig {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		loc = time.UTC
	}
	return BookingOrchestratorConfig{
		Location: loc,
	}
}

// BookingOrchestratorService handles the Price → Reward → Book → Pay flow
type BookingOrchestratorService struct {
	tx          *database.Transactor
	packageRepo *database.PackageRepository
	bookingRepo *database.BookingRepository
	rewardRepo  *database.RewardRepository
	paymentRepo *database.PaymentTransactionRepository
	userRepo    *database.UserRepository
	gateway     payment.Gateway
	events      EventPublisher
	config      BookingOrchestratorConfig
	logger      *logrus.Logger

	now func() time.Time
}

// NewBookingOrchestratorService creates a new orchestrator service
func NewBookingOrchestratorService(
	tx *database.Transactor,
	packageRepo *database.PackageRepository,
	bookingRepo *database.BookingRepository,
	rewardRepo *database.RewardRepository,
	paymentRepo *database.PaymentTransactionRepository,
	userRepo *database.UserRepository,
	gateway payment.Gateway,
	events EventPublisher,
	config BookingOrchestratorConfig,
	logger *logrus.Logger,
) *BookingOrchestratorService {
	if config.Location == nil {
		config.Location = DefaultOrchestratorConfig().Location
	}
	return &BookingOrchestratorService{
		tx:          tx,
		packageRepo: packageRepo,
		bookingRepo: bookingRepo,
		rewardRepo:  rewardRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		gateway:     gateway,
		events:      events,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateBookingResult is what a successful booking creation returns. The
// booking exists even when PaymentSession is nil; PaymentError then says why
// the gateway could not open a session.
type CreateBookingResult struct {
	Booking        *models.Booking        `json:"booking"`
	AppliedRewards []models.BookingReward `json:"applied_rewards"`
	SkippedRewards map[string]string      `json:"skipped_rewards,omitempty"`
	PaymentSession *models.PaymentSession `json:"payment_session,omitempty"`
	PaymentError   string                 `json:"payment_error,omitempty"`
}

// validatedBooking is a CreateBookingRequest after parsing
type validatedBooking struct {
	ref       models.PackageRef
	quantity  int
	start     time.Time
	end       *time.Time
	notes     *string
	rewardIDs []uuid.UUID
}

// ============================================================================
// CREATE BOOKING
// ============================================================================

// CreateBooking prices, books and opens a payment session in one call.
// Everything up to the booking log commits atomically; the payment session
// is a separate outcome.
func (s *BookingOrchestratorService) CreateBooking(
	ctx context.Context,
	actor models.Actor,
	req *models.CreateBookingRequest,
) (*CreateBookingResult, error) {
	now := s.now()

	// 1. Validate request shape
	input, err := s.validateCreateRequest(req, now)
	if err != nil {
		return nil, err
	}

	// 2. Resolve the bookable
	pkg, err := s.packageRepo.Get(ctx, input.ref)
	if err != nil {
		return nil, systemError("load package", err)
	}
	if pkg == nil {
		return nil, &NotFoundError{Resource: string(input.ref.Type) + " package", ID: input.ref.ID.String()}
	}

	// 3. Price it
	quote, err := QuotePrice(pkg, input.quantity, input.start, input.end)
	if err != nil {
		return nil, err
	}

	// 4. Requested rewards must all belong to the caller
	candidates, err := s.rewardRepo.ListOwnedByIDs(ctx, actor.UserID, input.rewardIDs)
	if err != nil {
		return nil, systemError("load rewards", err)
	}
	if len(candidates) != len(input.rewardIDs) {
		return nil, fieldError("reward_ids", "one or more rewards do not belong to you")
	}

	// 5. Select (no side effects)
	selection := SelectRewards(candidates, actor.UserID, pkg.Type, quote.TotalPrice, now)

	booking := &models.Booking{
		ID:                 uuid.New(),
		UserID:             actor.UserID,
		PackageType:        pkg.Type,
		PackageID:          pkg.ID,
		Quantity:           input.quantity,
		StartDate:          quote.StartDate,
		EndDate:            quote.EndDate,
		UnitPriceAtBooking: quote.UnitPrice,
		TotalPrice:         quote.TotalPrice,
		Notes:              input.notes,
		Status:             models.BookingPending,
	}
	applied := []models.BookingReward{}
	skipped := map[string]string{}
	for id, reason := range selection.Skipped {
		skipped[id.String()] = reason
	}

	// 6. Claim rewards, insert booking, joins and log atomically
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		bookings := s.bookingRepo.WithTx(tx)
		rewards := s.rewardRepo.WithTx(tx)

		applied = applied[:0]
		var rewardTotal int64
		for _, reward := range selection.Applied {
			claimed, err := rewards.Claim(ctx, reward.ID, now)
			if err != nil {
				return err
			}
			if !claimed {
				skipped[reward.ID.String()] = ReasonLostConcurrent
				s.logger.WithFields(logrus.Fields{
					"reward_id": reward.ID,
					"user_id":   actor.UserID,
				}).Warn("Reward claimed by a concurrent booking, dropping it")
				continue
			}
			applied = append(applied, models.BookingReward{
				BookingID:     booking.ID,
				RewardID:      reward.ID,
				AppliedAmount: reward.Amount,
			})
			rewardTotal += reward.Amount
		}

		booking.RewardTotalApplied = rewardTotal
		booking.FinalPrice = FinalPrice(booking.TotalPrice, rewardTotal)

		code, err := bookings.GenerateCode(ctx)
		if err != nil {
			return err
		}
		booking.Code = code

		if err := bookings.Insert(ctx, booking); err != nil {
			return err
		}
		if err := bookings.InsertRewards(ctx, applied); err != nil {
			return err
		}

		return bookings.AppendLog(ctx, &models.BookingLog{
			BookingID: booking.ID,
			UserID:    actor.LogUserID(),
			ActorRole: actor.Role,
			NewStatus: models.BookingPending,
			Notes:     stringPtr("booking created"),
		})
	})
	if err != nil {
		return nil, systemError("create booking", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"booking_code": booking.Code,
		"user_id":      actor.UserID,
		"package_type": booking.PackageType,
		"total_price":  booking.TotalPrice,
		"final_price":  booking.FinalPrice,
		"rewards":      len(applied),
	}).Info("Booking created")

	// 7. Notify (fire-and-forget)
	publishAll(ctx, s.events, s.logger, bookingEvent(models.EventBookingCreated, booking, pkg.Name, nil))

	result := &CreateBookingResult{
		Booking:        booking,
		AppliedRewards: applied,
	}
	if len(skipped) > 0 {
		result.SkippedRewards = skipped
	}

	// 8. Open the payment session
	session, err := s.openPaymentSession(ctx, booking, pkg.Name)
	if err != nil {
		var sysErr *SystemError
		if errors.As(err, &sysErr) {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to record payment attempt")
		}
		result.PaymentError = err.Error()
		return result, nil
	}
	result.PaymentSession = session

	return result, nil
}

// validateCreateRequest checks the request before anything is read
func (s *BookingOrchestratorService) validateCreateRequest(req *models.CreateBookingRequest, now time.Time) (*validatedBooking, error) {
	verr := NewValidationError()
	input := &validatedBooking{quantity: req.Quantity}

	pkgType := models.PackageType(strings.ToLower(strings.TrimSpace(req.PackageType)))
	if !pkgType.Valid() {
		verr.Add("package_type", "must be one of tour, activity, rental")
	}
	input.ref.Type = pkgType

	pkgID, err := uuid.Parse(req.PackageID)
	if err != nil {
		verr.Add("package_id", "must be a valid id")
	}
	input.ref.ID = pkgID

	if req.Quantity < 1 {
		verr.Add("quantity", "must be at least 1")
	}

	start, err := ParseDate(req.StartDate, s.config.Location)
	if err != nil {
		verr.Add("start_date", "must be a date in YYYY-MM-DD format")
	} else if start.Before(Today(now, s.config.Location)) {
		verr.Add("start_date", "must be today or later")
	}
	input.start = start

	if req.EndDate != nil && *req.EndDate != "" {
		end, err := ParseDate(*req.EndDate, s.config.Location)
		if err != nil {
			verr.Add("end_date", "must be a date in YYYY-MM-DD format")
		} else {
			if !start.IsZero() && end.Before(start) {
				verr.Add("end_date", "must be on or after start_date")
			}
			input.end = &end
		}
	}
	if pkgType == models.PackageTypeRental && input.end == nil {
		verr.Add("end_date", "is required for rentals")
	}
	// Only rentals take a caller-supplied end date
	if pkgType != models.PackageTypeRental {
		input.end = nil
	}

	if req.Notes != nil {
		if notes := strings.TrimSpace(*req.Notes); notes != "" {
			if len(notes) > 1000 {
				verr.Add("notes", "must be at most 1000 characters")
			}
			input.notes = &notes
		}
	}

	seen := map[uuid.UUID]bool{}
	for _, raw := range req.RewardIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			verr.Add("reward_ids", "must contain valid ids")
			continue
		}
		if !seen[id] {
			seen[id] = true
			input.rewardIDs = append(input.rewardIDs, id)
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return input, nil
}

// ============================================================================
// RETRY PAYMENT
// ============================================================================

// RetryPayment opens a new payment session for a pending booking. Gateway
// failures come back as *payment.GatewayError.
func (s *BookingOrchestratorService) RetryPayment(
	ctx context.Context,
	actor models.Actor,
	bookingID uuid.UUID,
) (*models.PaymentSession, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, systemError("load booking", err)
	}
	if booking == nil {
		return nil, &NotFoundError{Resource: "booking", ID: bookingID.String()}
	}
	if booking.UserID != actor.UserID {
		return nil, &ForbiddenError{Message: "only the booking owner can pay for it"}
	}
	if booking.Status != models.BookingPending {
		return nil, &ConflictError{Message: fmt.Sprintf("booking is %s, not awaiting payment", booking.Status)}
	}

	packageName := ""
	pkg, err := s.packageRepo.Get(ctx, booking.PackageRef())
	if err != nil {
		return nil, systemError("load package", err)
	}
	if pkg != nil {
		packageName = pkg.Name
	}

	return s.openPaymentSession(ctx, booking, packageName)
}

// ============================================================================
// PAYMENT SESSION
// ============================================================================

// openPaymentSession records a pending attempt and asks the gateway for a
// hosted checkout session. The attempt is marked failed when the gateway
// refuses.
func (s *BookingOrchestratorService) openPaymentSession(
	ctx context.Context,
	booking *models.Booking,
	packageName string,
) (*models.PaymentSession, error) {
	if booking.FinalPrice == 0 {
		return s.settleWithoutGateway(ctx, booking, packageName)
	}

	txn, err := s.recordAttempt(ctx, booking)
	if err != nil {
		return nil, err
	}

	req := &payment.SessionRequest{
		OrderID:  txn.GatewayReference,
		Amount:   booking.FinalPrice,
		Customer: s.customerFor(ctx, booking.UserID),
		Items:    sessionItems(booking, packageName),
	}

	session, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":        booking.ID,
			"gateway_reference": txn.GatewayReference,
		}).Warn("Payment gateway refused session")

		if markErr := s.paymentRepo.MarkFailed(ctx, txn.ID, models.JSONB{"error": err.Error()}); markErr != nil {
			s.logger.WithError(markErr).WithField("transaction_id", txn.ID).Error("Failed to mark payment attempt failed")
		}
		return nil, err
	}

	if err := s.paymentRepo.AttachSession(ctx, txn.ID, session.Token, session.RedirectURL, models.JSONB(session.Raw)); err != nil {
		return nil, systemError("attach payment session", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"gateway_reference": txn.GatewayReference,
		"amount":            txn.Amount,
	}).Info("Payment session created")

	return &models.PaymentSession{
		TransactionID:    txn.ID,
		GatewayReference: txn.GatewayReference,
		Amount:           txn.Amount,
		SessionToken:     session.Token,
		RedirectURL:      session.RedirectURL,
	}, nil
}

// recordAttempt inserts the next pending attempt for booking. A concurrent
// attempt can take the same reference first; the count is read again once,
// and a second collision is reported as a conflict.
func (s *BookingOrchestratorService) recordAttempt(ctx context.Context, booking *models.Booking) (*models.PaymentTransaction, error) {
	for try := 0; try < 2; try++ {
		attempts, err := s.paymentRepo.CountByBooking(ctx, booking.ID)
		if err != nil {
			return nil, systemError("count payment attempts", err)
		}

		txn := &models.PaymentTransaction{
			BookingID:        booking.ID,
			Type:             models.TransactionPayment,
			Amount:           booking.FinalPrice,
			Status:           models.TransactionPending,
			GatewayReference: fmt.Sprintf("%s-%d", booking.Code, attempts+1),
		}
		err = s.paymentRepo.Insert(ctx, txn)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, database.ErrDuplicate) {
			return nil, systemError("record payment attempt", err)
		}

		s.logger.WithFields(logrus.Fields{
			"booking_id":        booking.ID,
			"gateway_reference": txn.GatewayReference,
		}).Warn("Payment attempt reference taken by a concurrent request")
	}

	return nil, &ConflictError{Message: "another payment attempt for this booking is in progress"}
}

// settleWithoutGateway confirms a booking that rewards fully paid for.
// Gateways reject zero-amount orders, so a settled zero-amount transaction
// is recorded locally instead.
func (s *BookingOrchestratorService) settleWithoutGateway(
	ctx context.Context,
	booking *models.Booking,
	packageName string,
) (*models.PaymentSession, error) {
	now := s.now()
	method := "reward"
	confirmedBy := models.RoleSystem
	system := models.SystemActor()

	txn := &models.PaymentTransaction{
		BookingID:        booking.ID,
		Type:             models.TransactionPayment,
		Amount:           0,
		Method:           &method,
		Status:           models.TransactionPending,
		GatewayReference: booking.Code + "-0",
	}

	confirmed := false
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		payments := s.paymentRepo.WithTx(tx)
		bookings := s.bookingRepo.WithTx(tx)

		if err := payments.Insert(ctx, txn); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return &ConflictError{Message: "booking already settled"}
			}
			return err
		}
		ok, err := payments.TransitionStatus(ctx, txn.ID, models.TransactionPending, database.StatusUpdate{
			Status:      models.TransactionSuccess,
			Method:      &method,
			RawResponse: models.JSONB{"settled_by": "rewards"},
			ConfirmedAt: &now,
			ConfirmedBy: &confirmedBy,
		})
		if err != nil {
			return err
		}
		if ok {
			txn.Status = models.TransactionSuccess
		}

		moved, err := bookings.UpdateStatus(ctx, booking.ID, models.BookingPending, models.BookingConfirmed)
		if err != nil || !moved {
			return err
		}
		confirmed = true

		old := models.BookingPending
		return bookings.AppendLog(ctx, &models.BookingLog{
			BookingID: booking.ID,
			UserID:    system.LogUserID(),
			ActorRole: system.Role,
			OldStatus: &old,
			NewStatus: models.BookingConfirmed,
			Notes:     stringPtr("fully paid by rewards"),
		})
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return nil, conflict
		}
		return nil, systemError("settle zero-amount booking", err)
	}

	if confirmed {
		booking.Status = models.BookingConfirmed
		publishAll(ctx, s.events, s.logger, bookingEvent(models.EventPaymentConfirmed, booking, packageName, models.JSONB{
			notification.KeyReference: txn.GatewayReference,
		}))
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"booking_code": booking.Code,
	}).Info("Booking fully covered by rewards, confirmed without gateway")

	return &models.PaymentSession{
		TransactionID:    txn.ID,
		GatewayReference: txn.GatewayReference,
		Amount:           0,
	}, nil
}

// customerFor builds gateway customer details. A missing profile only
// leaves the fields blank.
func (s *BookingOrchestratorService) customerFor(ctx context.Context, userID uuid.UUID) payment.Customer {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to load customer for payment session")
		return payment.Customer{}
	}
	if user == nil {
		return payment.Customer{}
	}
	return payment.Customer{
		Name:  user.Name,
		Email: user.Email.String,
		Phone: user.Phone.String,
	}
}

// sessionItems itemises the order so the lines sum to the final price
func sessionItems(booking *models.Booking, packageName string) []payment.Item {
	if packageName == "" {
		packageName = string(booking.PackageType) + " package"
	}

	units := booking.TotalPrice / max(booking.UnitPriceAtBooking, 1)
	items := []payment.Item{{
		ID:       booking.PackageID.String(),
		Name:     packageName,
		Price:    booking.UnitPriceAtBooking,
		Quantity: int(units),
	}}

	if discount := booking.TotalPrice - booking.FinalPrice; discount > 0 {
		items = append(items, payment.Item{
			ID:       "REWARD",
			Name:     "Reward discount",
			Price:    -discount,
			Quantity: 1,
		})
	}
	return items
}

func stringPtr(s string) *string {
	return &s
}
