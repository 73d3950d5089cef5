package services

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/pkg/payment"
)

var jakarta = mustLoadLocation("Asia/Jakarta")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}

// fixedNow is 2025-01-01 10:00 in Jakarta
var fixedNow = time.Date(2025, 1, 1, 10, 0, 0, 0, jakarta)

func setupTestDB(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	postgresDB := &database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}
	cleanup := func() {
		db.Close()
	}
	return postgresDB, mock, cleanup
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// MockGateway is a mock payment gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(ctx context.Context, req *payment.SessionRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

// MockPublisher is a mock outbound event publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event *models.OutboundEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockAuditor is a mock webhook auditor
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Log(ctx context.Context, event *models.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditor) Complete(ctx context.Context, id uuid.UUID, outcome models.WebhookOutcome, errorMessage string) error {
	args := m.Called(ctx, id, outcome, errorMessage)
	return args.Error(0)
}

func eventOfType(t models.OutboundEventType) interface{} {
	return mock.MatchedBy(func(e *models.OutboundEvent) bool {
		return e.Type == t
	})
}

var (
	packageCols = []string{"id", "name", "description", "unit_price", "min_persons",
		"duration_days", "image_url", "is_available", "created_at", "updated_at"}
	rentalCols = []string{"id", "name", "description", "unit_price", "vehicle_type", "brand",
		"model", "plate_number", "is_available", "created_at", "updated_at"}
	rewardCols = []string{"id", "user_id", "origin", "amount", "status", "applies_to",
		"min_transaction", "description", "used_at", "expired_at", "created_at"}
	bookingCols = []string{"id", "booking_code", "user_id", "package_type", "package_id", "quantity",
		"start_date", "end_date", "unit_price_at_booking", "total_price", "reward_total_applied",
		"final_price", "notes", "status", "created_at", "updated_at"}
	paymentCols = []string{"id", "booking_id", "type", "amount", "method", "status", "gateway_reference",
		"session_token", "redirect_url", "raw_response", "confirmed_at", "confirmed_by", "transacted_at",
		"created_at", "updated_at"}
	userCols = []string{"id", "name", "email", "phone", "roles", "status", "created_at", "updated_at"}
)

func tourRow(id uuid.UUID, price int64, durationDays int) *sqlmock.Rows {
	return sqlmock.NewRows(packageCols).
		AddRow(id.String(), "Bromo Sunrise", nil, price, 2, durationDays, nil, true, fixedNow, fixedNow)
}

func rentalRow(id uuid.UUID, pricePerDay int64) *sqlmock.Rows {
	return sqlmock.NewRows(rentalCols).
		AddRow(id.String(), "Avanza with driver", nil, pricePerDay, "car", "Toyota", "Avanza", "B 1234 XY", true, fixedNow, fixedNow)
}

func bookingRow(b *models.Booking) *sqlmock.Rows {
	return sqlmock.NewRows(bookingCols).
		AddRow(b.ID.String(), b.Code, b.UserID.String(), string(b.PackageType), b.PackageID.String(), b.Quantity,
			b.StartDate, nil, b.UnitPriceAtBooking, b.TotalPrice, b.RewardTotalApplied,
			b.FinalPrice, nil, string(b.Status), fixedNow, fixedNow)
}

func paymentRow(txn *models.PaymentTransaction) *sqlmock.Rows {
	return sqlmock.NewRows(paymentCols).
		AddRow(txn.ID.String(), txn.BookingID.String(), string(txn.Type), txn.Amount, nil, string(txn.Status),
			txn.GatewayReference, nil, nil, nil, nil, nil, fixedNow, fixedNow, fixedNow)
}

func userRow(id uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow(id.String(), "Siti Rahma", "siti@example.com", "081234567890", "{customer}", "active", fixedNow, fixedNow)
}

func insertedRow(cols ...string) *sqlmock.Rows {
	values := make([]driver.Value, len(cols))
	for i := range values {
		values[i] = fixedNow
	}
	return sqlmock.NewRows(cols).AddRow(values...)
}
