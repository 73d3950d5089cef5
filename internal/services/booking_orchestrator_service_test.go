package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/pkg/payment"
)

type orchestratorFixture struct {
	service   *BookingOrchestratorService
	mock      sqlmock.Sqlmock
	gateway   *MockGateway
	publisher *MockPublisher
	cleanup   func()
}

func setupOrchestratorTest(t *testing.T) *orchestratorFixture {
	db, sqlMock, cleanup := setupTestDB(t)

	gateway := new(MockGateway)
	publisher := new(MockPublisher)

	service := NewBookingOrchestratorService(
		database.NewTransactor(db),
		database.NewPackageRepository(db),
		database.NewBookingRepository(db),
		database.NewRewardRepository(db),
		database.NewPaymentTransactionRepository(db),
		database.NewUserRepository(db),
		gateway,
		publisher,
		BookingOrchestratorConfig{Location: jakarta},
		testLogger(),
	)
	service.now = func() time.Time { return fixedNow }

	return &orchestratorFixture{
		service:   service,
		mock:      sqlMock,
		gateway:   gateway,
		publisher: publisher,
		cleanup:   cleanup,
	}
}

func customerActor() models.Actor {
	return models.Actor{UserID: uuid.New(), Role: models.RoleCustomer}
}

// expectPaymentSession queues the queries of a successful session opening
func expectPaymentSession(f *orchestratorFixture, userID uuid.UUID, previousAttempts int) {
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM payment_transactions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(previousAttempts))
	f.mock.ExpectQuery("INSERT INTO payment_transactions").
		WillReturnRows(insertedRow("transacted_at", "created_at", "updated_at"))
	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(userID.String()).
		WillReturnRows(userRow(userID))
}

func TestCreateBooking_TourWithReward(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	packageID := uuid.New()
	rewardID := uuid.New()

	// Resolve, price and load rewards
	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WithArgs(packageID.String()).
		WillReturnRows(tourRow(packageID, 1000000, 3))
	f.mock.ExpectQuery("SELECT (.+) FROM rewards").
		WillReturnRows(sqlmock.NewRows(rewardCols).AddRow(
			rewardID.String(), actor.UserID.String(), "referral", int64(200000), "available", "all",
			int64(500000), nil, nil, nil, fixedNow))

	// Atomic unit
	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE rewards SET status = 'used'").
		WithArgs(rewardID.String(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(insertedRow("created_at", "updated_at"))
	f.mock.ExpectExec("INSERT INTO booking_rewards").
		WithArgs(sqlmock.AnyArg(), rewardID.String(), int64(200000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("INSERT INTO booking_logs").
		WillReturnRows(insertedRow("created_at"))
	f.mock.ExpectCommit()

	// Payment session
	expectPaymentSession(f, actor.UserID, 0)
	f.mock.ExpectExec("UPDATE payment_transactions SET session_token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f.publisher.On("Publish", mock.Anything, eventOfType(models.EventBookingCreated)).Return(nil)
	f.gateway.On("CreateSession", mock.Anything, mock.MatchedBy(func(req *payment.SessionRequest) bool {
		var sum int64
		for _, item := range req.Items {
			sum += item.Price * int64(item.Quantity)
		}
		return req.Amount == 1800000 &&
			sum == req.Amount &&
			strings.HasPrefix(req.OrderID, "BK-") &&
			strings.HasSuffix(req.OrderID, "-1") &&
			req.Customer.Email == "siti@example.com"
	})).Return(&payment.Session{Token: "snap-token", RedirectURL: "https://pay.example/snap-token"}, nil)

	result, err := f.service.CreateBooking(context.Background(), actor, &models.CreateBookingRequest{
		PackageType: "tour",
		PackageID:   packageID.String(),
		Quantity:    2,
		StartDate:   "2025-01-10",
		RewardIDs:   []string{rewardID.String()},
	})
	require.NoError(t, err)

	booking := result.Booking
	assert.Equal(t, models.BookingPending, booking.Status)
	assert.Equal(t, int64(1000000), booking.UnitPriceAtBooking)
	assert.Equal(t, int64(2000000), booking.TotalPrice)
	assert.Equal(t, int64(200000), booking.RewardTotalApplied)
	assert.Equal(t, int64(1800000), booking.FinalPrice)
	require.NotNil(t, booking.EndDate)
	assert.Equal(t, "2025-01-12", booking.EndDate.Format(DateLayout))
	assert.Regexp(t, `^BK-[0-9A-F]{8}$`, booking.Code)

	require.Len(t, result.AppliedRewards, 1)
	assert.Equal(t, int64(200000), result.AppliedRewards[0].AppliedAmount)

	require.NotNil(t, result.PaymentSession)
	assert.Equal(t, "snap-token", result.PaymentSession.SessionToken)
	assert.Equal(t, booking.Code+"-1", result.PaymentSession.GatewayReference)
	assert.Empty(t, result.PaymentError)

	assert.NoError(t, f.mock.ExpectationsWereMet())
	f.gateway.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestCreateBooking_RentalPricedPerDay(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	packageID := uuid.New()
	end := "2025-01-03"

	f.mock.ExpectQuery("SELECT (.+) FROM rental_packages").
		WillReturnRows(rentalRow(packageID, 50000))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(insertedRow("created_at", "updated_at"))
	f.mock.ExpectQuery("INSERT INTO booking_logs").
		WillReturnRows(insertedRow("created_at"))
	f.mock.ExpectCommit()
	expectPaymentSession(f, actor.UserID, 0)
	f.mock.ExpectExec("UPDATE payment_transactions SET session_token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CreateSession", mock.Anything, mock.MatchedBy(func(req *payment.SessionRequest) bool {
		return req.Amount == 150000 && len(req.Items) == 1 && req.Items[0].Quantity == 3
	})).Return(&payment.Session{Token: "tok", RedirectURL: "https://pay.example/tok"}, nil)

	result, err := f.service.CreateBooking(context.Background(), actor, &models.CreateBookingRequest{
		PackageType: "rental",
		PackageID:   packageID.String(),
		Quantity:    1,
		StartDate:   "2025-01-01",
		EndDate:     &end,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(150000), result.Booking.TotalPrice)
	assert.Equal(t, int64(150000), result.Booking.FinalPrice)
	assert.Equal(t, "2025-01-03", result.Booking.EndDate.Format(DateLayout))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateBooking_ValidationErrors(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	before := "2025-01-05"

	tests := []struct {
		name   string
		req    *models.CreateBookingRequest
		fields []string
	}{
		{
			name:   "rental without end date",
			req:    &models.CreateBookingRequest{PackageType: "rental", PackageID: uuid.NewString(), Quantity: 1, StartDate: "2025-01-10"},
			fields: []string{"end_date"},
		},
		{
			name:   "end date before start",
			req:    &models.CreateBookingRequest{PackageType: "rental", PackageID: uuid.NewString(), Quantity: 1, StartDate: "2025-01-10", EndDate: &before},
			fields: []string{"end_date"},
		},
		{
			name:   "start date in the past",
			req:    &models.CreateBookingRequest{PackageType: "tour", PackageID: uuid.NewString(), Quantity: 1, StartDate: "2024-12-31"},
			fields: []string{"start_date"},
		},
		{
			name:   "bad shape",
			req:    &models.CreateBookingRequest{PackageType: "cruise", PackageID: "nope", Quantity: 0, StartDate: "soon", RewardIDs: []string{"x"}},
			fields: []string{"package_type", "package_id", "quantity", "start_date", "reward_ids"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateBooking(context.Background(), customerActor(), tt.req)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			for _, field := range tt.fields {
				assert.Contains(t, verr.Fields, field)
			}
		})
	}

	// Nothing touched the database
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateBooking_TodayIsAllowed(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	packageID := uuid.New()
	f.mock.ExpectQuery("SELECT (.+) FROM activity_packages").
		WillReturnRows(sqlmock.NewRows(packageCols))

	_, err := f.service.CreateBooking(context.Background(), customerActor(), &models.CreateBookingRequest{
		PackageType: "activity",
		PackageID:   packageID.String(),
		Quantity:    1,
		StartDate:   "2025-01-01",
	})

	// Passed validation and reached the lookup
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestCreateBooking_PackageNotFound(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	packageID := uuid.New()
	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WithArgs(packageID.String()).
		WillReturnRows(sqlmock.NewRows(packageCols))

	_, err := f.service.CreateBooking(context.Background(), customerActor(), &models.CreateBookingRequest{
		PackageType: "tour",
		PackageID:   packageID.String(),
		Quantity:    1,
		StartDate:   "2025-01-10",
	})

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, packageID.String(), notFound.ID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreateBooking_RewardOfAnotherUser(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	packageID := uuid.New()
	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(tourRow(packageID, 1000000, 1))
	f.mock.ExpectQuery("SELECT (.+) FROM rewards").
		WillReturnRows(sqlmock.NewRows(rewardCols))

	_, err := f.service.CreateBooking(context.Background(), customerActor(), &models.CreateBookingRequest{
		PackageType: "tour",
		PackageID:   packageID.String(),
		Quantity:    1,
		StartDate:   "2025-01-10",
		RewardIDs:   []string{uuid.NewString()},
	})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "reward_ids")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateBooking_RewardLostToConcurrentBooking(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	packageID := uuid.New()
	rewardID := uuid.New()

	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(tourRow(packageID, 1000000, 1))
	f.mock.ExpectQuery("SELECT (.+) FROM rewards").
		WillReturnRows(sqlmock.NewRows(rewardCols).AddRow(
			rewardID.String(), actor.UserID.String(), "promo", int64(100000), "available", "all",
			nil, nil, nil, nil, fixedNow))

	f.mock.ExpectBegin()
	// Another booking spent it between selection and claim
	f.mock.ExpectExec("UPDATE rewards SET status = 'used'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(insertedRow("created_at", "updated_at"))
	f.mock.ExpectQuery("INSERT INTO booking_logs").
		WillReturnRows(insertedRow("created_at"))
	f.mock.ExpectCommit()
	expectPaymentSession(f, actor.UserID, 0)
	f.mock.ExpectExec("UPDATE payment_transactions SET session_token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CreateSession", mock.Anything, mock.Anything).
		Return(&payment.Session{Token: "tok"}, nil)

	result, err := f.service.CreateBooking(context.Background(), actor, &models.CreateBookingRequest{
		PackageType: "tour",
		PackageID:   packageID.String(),
		Quantity:    1,
		StartDate:   "2025-01-10",
		RewardIDs:   []string{rewardID.String()},
	})
	require.NoError(t, err)

	assert.Empty(t, result.AppliedRewards)
	assert.Equal(t, int64(0), result.Booking.RewardTotalApplied)
	assert.Equal(t, int64(1000000), result.Booking.FinalPrice)
	assert.Equal(t, ReasonLostConcurrent, result.SkippedRewards[rewardID.String()])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateBooking_GatewayFailureKeepsBooking(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	packageID := uuid.New()

	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(tourRow(packageID, 750000, 1))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(insertedRow("created_at", "updated_at"))
	f.mock.ExpectQuery("INSERT INTO booking_logs").
		WillReturnRows(insertedRow("created_at"))
	f.mock.ExpectCommit()
	expectPaymentSession(f, actor.UserID, 0)
	f.mock.ExpectExec("UPDATE payment_transactions SET status = 'failed'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CreateSession", mock.Anything, mock.Anything).
		Return(nil, &payment.GatewayError{StatusCode: 503, Message: "service unavailable"})

	result, err := f.service.CreateBooking(context.Background(), actor, &models.CreateBookingRequest{
		PackageType: "tour",
		PackageID:   packageID.String(),
		Quantity:    1,
		StartDate:   "2025-01-10",
	})
	require.NoError(t, err)

	assert.NotNil(t, result.Booking)
	assert.Equal(t, models.BookingPending, result.Booking.Status)
	assert.Nil(t, result.PaymentSession)
	assert.Contains(t, result.PaymentError, "service unavailable")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateBooking_NotificationFailureDoesNotFailBooking(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	packageID := uuid.New()

	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(tourRow(packageID, 100000, 1))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(insertedRow("created_at", "updated_at"))
	f.mock.ExpectQuery("INSERT INTO booking_logs").
		WillReturnRows(insertedRow("created_at"))
	f.mock.ExpectCommit()
	expectPaymentSession(f, actor.UserID, 0)
	f.mock.ExpectExec("UPDATE payment_transactions SET session_token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("outbox unavailable"))
	f.gateway.On("CreateSession", mock.Anything, mock.Anything).Return(&payment.Session{Token: "tok"}, nil)

	result, err := f.service.CreateBooking(context.Background(), actor, &models.CreateBookingRequest{
		PackageType: "tour",
		PackageID:   packageID.String(),
		Quantity:    1,
		StartDate:   "2025-01-10",
	})
	require.NoError(t, err)
	assert.NotNil(t, result.PaymentSession)
}

func TestCreateBooking_InsertFailureRollsBack(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	packageID := uuid.New()
	rewardID := uuid.New()

	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(tourRow(packageID, 1000000, 1))
	f.mock.ExpectQuery("SELECT (.+) FROM rewards").
		WillReturnRows(sqlmock.NewRows(rewardCols).AddRow(
			rewardID.String(), actor.UserID.String(), "promo", int64(100000), "available", "all",
			nil, nil, nil, nil, fixedNow))
	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE rewards SET status = 'used'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectQuery("INSERT INTO bookings").
		WillReturnError(errors.New("connection reset"))
	f.mock.ExpectRollback()

	_, err := f.service.CreateBooking(context.Background(), actor, &models.CreateBookingRequest{
		PackageType: "tour",
		PackageID:   packageID.String(),
		Quantity:    1,
		StartDate:   "2025-01-10",
		RewardIDs:   []string{rewardID.String()},
	})

	var sysErr *SystemError
	require.True(t, errors.As(err, &sysErr))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestCreateBooking_FullyCoveredByRewards(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	packageID := uuid.New()
	rewardID := uuid.New()

	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(tourRow(packageID, 100000, 1))
	f.mock.ExpectQuery("SELECT (.+) FROM rewards").
		WillReturnRows(sqlmock.NewRows(rewardCols).AddRow(
			rewardID.String(), actor.UserID.String(), "promo", int64(150000), "available", "all",
			nil, nil, nil, nil, fixedNow))
	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE rewards SET status = 'used'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(insertedRow("created_at", "updated_at"))
	f.mock.ExpectExec("INSERT INTO booking_rewards").
		WithArgs(sqlmock.AnyArg(), rewardID.String(), int64(150000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("INSERT INTO booking_logs").
		WillReturnRows(insertedRow("created_at"))
	f.mock.ExpectCommit()

	// Settled locally, no gateway
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO payment_transactions").
		WillReturnRows(insertedRow("transacted_at", "created_at", "updated_at"))
	f.mock.ExpectExec("UPDATE payment_transactions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("INSERT INTO booking_logs").
		WillReturnRows(insertedRow("created_at"))
	f.mock.ExpectCommit()

	f.publisher.On("Publish", mock.Anything, eventOfType(models.EventBookingCreated)).Return(nil)
	f.publisher.On("Publish", mock.Anything, eventOfType(models.EventPaymentConfirmed)).Return(nil)

	result, err := f.service.CreateBooking(context.Background(), actor, &models.CreateBookingRequest{
		PackageType: "tour",
		PackageID:   packageID.String(),
		Quantity:    1,
		StartDate:   "2025-01-10",
		RewardIDs:   []string{rewardID.String()},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(150000), result.Booking.RewardTotalApplied)
	assert.Equal(t, int64(0), result.Booking.FinalPrice)
	assert.Equal(t, models.BookingConfirmed, result.Booking.Status)
	require.NotNil(t, result.PaymentSession)
	assert.Equal(t, int64(0), result.PaymentSession.Amount)

	assert.NoError(t, f.mock.ExpectationsWereMet())
	f.publisher.AssertExpectations(t)
	f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func pendingBooking(userID uuid.UUID) *models.Booking {
	return &models.Booking{
		ID:                 uuid.New(),
		Code:               "BK-1A2B3C4D",
		UserID:             userID,
		PackageType:        models.PackageTypeTour,
		PackageID:          uuid.New(),
		Quantity:           2,
		StartDate:          date(2025, 1, 10),
		UnitPriceAtBooking: 1000000,
		TotalPrice:         2000000,
		RewardTotalApplied: 200000,
		FinalPrice:         1800000,
		Status:             models.BookingPending,
	}
}

func TestRetryPayment_OpensNewAttempt(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	booking := pendingBooking(actor.UserID)

	f.mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WithArgs(booking.ID.String()).
		WillReturnRows(bookingRow(booking))
	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(tourRow(booking.PackageID, 1000000, 1))
	expectPaymentSession(f, actor.UserID, 1)
	f.mock.ExpectExec("UPDATE payment_transactions SET session_token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f.gateway.On("CreateSession", mock.Anything, mock.MatchedBy(func(req *payment.SessionRequest) bool {
		var sum int64
		for _, item := range req.Items {
			sum += item.Price * int64(item.Quantity)
		}
		return req.OrderID == "BK-1A2B3C4D-2" && req.Amount == 1800000 && sum == req.Amount
	})).Return(&payment.Session{Token: "tok-2", RedirectURL: "https://pay.example/tok-2"}, nil)

	session, err := f.service.RetryPayment(context.Background(), actor, booking.ID)
	require.NoError(t, err)

	assert.Equal(t, "BK-1A2B3C4D-2", session.GatewayReference)
	assert.Equal(t, "tok-2", session.SessionToken)
	assert.NoError(t, f.mock.ExpectationsWereMet())
	f.gateway.AssertExpectations(t)
}

func TestRetryPayment_ReferenceTakenConcurrently(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	booking := pendingBooking(actor.UserID)

	f.mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WillReturnRows(bookingRow(booking))
	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(tourRow(booking.PackageID, 1000000, 1))
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM payment_transactions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectQuery("INSERT INTO payment_transactions").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "BK-1A2B3C4D-2", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM payment_transactions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	f.mock.ExpectQuery("INSERT INTO payment_transactions").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "BK-1A2B3C4D-3", sqlmock.AnyArg()).
		WillReturnRows(insertedRow("transacted_at", "created_at", "updated_at"))
	f.mock.ExpectQuery("SELECT (.+) FROM users").
		WillReturnRows(userRow(actor.UserID))
	f.mock.ExpectExec("UPDATE payment_transactions SET session_token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f.gateway.On("CreateSession", mock.Anything, mock.MatchedBy(func(req *payment.SessionRequest) bool {
		return req.OrderID == "BK-1A2B3C4D-3"
	})).Return(&payment.Session{Token: "tok-3", RedirectURL: "https://pay.example/tok-3"}, nil)

	session, err := f.service.RetryPayment(context.Background(), actor, booking.ID)
	require.NoError(t, err)

	assert.Equal(t, "BK-1A2B3C4D-3", session.GatewayReference)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRetryPayment_RepeatedReferenceCollisionIsConflict(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	booking := pendingBooking(actor.UserID)

	f.mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WillReturnRows(bookingRow(booking))
	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(tourRow(booking.PackageID, 1000000, 1))
	for i := 0; i < 2; i++ {
		f.mock.ExpectQuery("SELECT COUNT(.+) FROM payment_transactions").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		f.mock.ExpectQuery("INSERT INTO payment_transactions").
			WillReturnError(&pq.Error{Code: "23505"})
	}

	_, err := f.service.RetryPayment(context.Background(), actor, booking.ID)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	var sysErr *SystemError
	assert.False(t, errors.As(err, &sysErr))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestRetryPayment_Rejections(t *testing.T) {
	owner := uuid.New()

	t.Run("not found", func(t *testing.T) {
		f := setupOrchestratorTest(t)
		defer f.cleanup()

		f.mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
			WillReturnRows(sqlmock.NewRows(bookingCols))

		_, err := f.service.RetryPayment(context.Background(), models.Actor{UserID: owner, Role: models.RoleCustomer}, uuid.New())
		var notFound *NotFoundError
		assert.True(t, errors.As(err, &notFound))
	})

	t.Run("not the owner", func(t *testing.T) {
		f := setupOrchestratorTest(t)
		defer f.cleanup()

		booking := pendingBooking(owner)
		f.mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
			WillReturnRows(bookingRow(booking))

		_, err := f.service.RetryPayment(context.Background(), customerActor(), booking.ID)
		var forbidden *ForbiddenError
		assert.True(t, errors.As(err, &forbidden))
	})

	t.Run("not pending", func(t *testing.T) {
		f := setupOrchestratorTest(t)
		defer f.cleanup()

		booking := pendingBooking(owner)
		booking.Status = models.BookingConfirmed
		f.mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
			WillReturnRows(bookingRow(booking))

		_, err := f.service.RetryPayment(context.Background(), models.Actor{UserID: owner, Role: models.RoleCustomer}, booking.ID)
		var conflict *ConflictError
		assert.True(t, errors.As(err, &conflict))
		f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	})
}

func TestRetryPayment_GatewayErrorIsReturned(t *testing.T) {
	f := setupOrchestratorTest(t)
	defer f.cleanup()

	actor := customerActor()
	booking := pendingBooking(actor.UserID)

	f.mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WillReturnRows(bookingRow(booking))
	f.mock.ExpectQuery("SELECT (.+) FROM tour_packages").
		WillReturnRows(sqlmock.NewRows(packageCols))
	expectPaymentSession(f, actor.UserID, 1)
	f.mock.ExpectExec("UPDATE payment_transactions SET status = 'failed'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f.gateway.On("CreateSession", mock.Anything, mock.Anything).
		Return(nil, &payment.GatewayError{StatusCode: 400, Message: "transaction_details.gross_amount is not equal"})

	_, err := f.service.RetryPayment(context.Background(), actor, booking.ID)

	var gwErr *payment.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, 400, gwErr.StatusCode)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSessionItems_SumToFinalPrice(t *testing.T) {
	booking := pendingBooking(uuid.New())

	items := sessionItems(booking, "Bromo Sunrise")
	require.Len(t, items, 2)

	var sum int64
	for _, item := range items {
		sum += item.Price * int64(item.Quantity)
	}
	assert.Equal(t, booking.FinalPrice, sum)
	assert.Equal(t, int64(-200000), items[1].Price)
}

func TestSessionItems_DiscountCappedAtTotal(t *testing.T) {
	booking := pendingBooking(uuid.New())
	booking.TotalPrice = 100000
	booking.UnitPriceAtBooking = 100000
	booking.RewardTotalApplied = 150000
	booking.FinalPrice = 0

	items := sessionItems(booking, "")
	require.Len(t, items, 2)
	assert.Equal(t, "tour package", items[0].Name)
	assert.Equal(t, int64(-100000), items[1].Price)
}
