package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tripnest/booking-backend/internal/middleware"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/services"
)

// MockBookingCreator is a mock implementation of BookingCreator
type MockBookingCreator struct {
	mock.Mock
}

func (m *MockBookingCreator) CreateBooking(ctx context.Context, actor models.Actor, req *models.CreateBookingRequest) (*services.CreateBookingResult, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CreateBookingResult), args.Error(1)
}

func (m *MockBookingCreator) RetryPayment(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.PaymentSession, error) {
	args := m.Called(ctx, actor, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentSession), args.Error(1)
}

// MockBookingManager is a mock implementation of BookingManager
type MockBookingManager struct {
	mock.Mock
}

func (m *MockBookingManager) GetBooking(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.BookingDetail, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDetail), args.Error(1)
}

func (m *MockBookingManager) ListMyBookings(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Booking, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *MockBookingManager) ListPayments(ctx context.Context, actor models.Actor, id uuid.UUID) ([]*models.PaymentTransaction, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PaymentTransaction), args.Error(1)
}

func (m *MockBookingManager) CancelBooking(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Booking, error) {
	args := m.Called(ctx, actor, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingManager) UpdateBookingStatus(ctx context.Context, actor models.Actor, id uuid.UUID, req *models.UpdateBookingStatusRequest) (*models.Booking, error) {
	args := m.Called(ctx, actor, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

// MockBookingLimiter is a mock implementation of BookingLimiter
type MockBookingLimiter struct {
	mock.Mock
}

func (m *MockBookingLimiter) CheckBookingLimit(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockBookingLimiter) CheckPaymentLimit(ctx context.Context, bookingID uuid.UUID) error {
	return m.Called(ctx, bookingID).Error(0)
}

// MockReconciler is a mock implementation of NotificationReconciler
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) HandleNotification(ctx context.Context, req services.WebhookRequest) (*services.ReconcileResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReconcileResult), args.Error(1)
}

// MockCatalog is a mock implementation of PackageCatalog and PackageReviewLister
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ListPackages(ctx context.Context, packageType string, onlyAvailable bool) ([]*models.Package, error) {
	args := m.Called(ctx, packageType, onlyAvailable)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Package), args.Error(1)
}

func (m *MockCatalog) GetPackage(ctx context.Context, ref models.PackageRef) (*models.Package, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Package), args.Error(1)
}

func (m *MockCatalog) CheckAvailability(ctx context.Context, ref models.PackageRef, q services.AvailabilityQuery) (*models.Availability, error) {
	args := m.Called(ctx, ref, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Availability), args.Error(1)
}

func (m *MockCatalog) ListByPackage(ctx context.Context, ref models.PackageRef, limit, offset int) (*services.PackageReviews, error) {
	args := m.Called(ctx, ref, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PackageReviews), args.Error(1)
}

// MockRewardWallet is a mock implementation of RewardWallet
type MockRewardWallet struct {
	mock.Mock
}

func (m *MockRewardWallet) ListAvailable(ctx context.Context, actor models.Actor) ([]*models.Reward, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reward), args.Error(1)
}

func (m *MockRewardWallet) Preview(ctx context.Context, actor models.Actor, req *models.PreviewRewardRequest) (*models.RewardPreview, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RewardPreview), args.Error(1)
}

// MockReviewer is a mock implementation of BookingReviewer
type MockReviewer struct {
	mock.Mock
}

func (m *MockReviewer) Create(ctx context.Context, actor models.Actor, bookingID uuid.UUID, req *models.CreateReviewRequest) (*models.Review, error) {
	args := m.Called(ctx, actor, bookingID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewer) CanReview(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*services.ReviewEligibility, error) {
	args := m.Called(ctx, actor, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReviewEligibility), args.Error(1)
}

func (m *MockReviewer) ListMine(ctx context.Context, actor models.Actor) ([]*models.Review, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Review), args.Error(1)
}

// ============================================================================
// HELPERS
// ============================================================================

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestRouter returns a router that authenticates every request as userCtx
// unless userCtx is nil
func newTestRouter(userCtx *middleware.UserContext) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if userCtx != nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.UserContextKey, *userCtx)
			c.Next()
		})
	}
	return router
}

func customerContext() *middleware.UserContext {
	return &middleware.UserContext{
		UserID: uuid.New(),
		Email:  "ayu@example.com",
		Roles:  []string{models.RoleCustomer},
		Role:   models.RoleCustomer,
	}
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			payload, _ := json.Marshal(b)
			reader = bytes.NewBuffer(payload)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
