package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/services"
)

// BookingCreator creates bookings and reopens payment sessions
type BookingCreator interface {
	CreateBooking(ctx context.Context, actor models.Actor, req *models.CreateBookingRequest) (*services.CreateBookingResult, error)
	RetryPayment(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.PaymentSession, error)
}

// BookingManager reads and changes existing bookings
type BookingManager interface {
	GetBooking(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.BookingDetail, error)
	ListMyBookings(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Booking, error)
	ListPayments(ctx context.Context, actor models.Actor, id uuid.UUID) ([]*models.PaymentTransaction, error)
	CancelBooking(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, actor models.Actor, id uuid.UUID, req *models.UpdateBookingStatusRequest) (*models.Booking, error)
}

// BookingLimiter throttles booking and payment attempts
type BookingLimiter interface {
	CheckBookingLimit(ctx context.Context, userID uuid.UUID) error
	CheckPaymentLimit(ctx context.Context, bookingID uuid.UUID) error
}

// BookingHandler handles booking endpoints
type BookingHandler struct {
	creator BookingCreator
	manager BookingManager
	limiter BookingLimiter
	logger  *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	creator BookingCreator,
	manager BookingManager,
	limiter BookingLimiter,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		creator: creator,
		manager: manager,
		limiter: limiter,
		logger:  logger,
	}
}

// ============================================================================
// CREATE BOOKING - POST /api/v1/bookings
// ============================================================================

// CreateBooking prices a package, applies rewards and opens a payment session
// @Summary Create booking
// @Description Creates a pending booking and returns a Midtrans Snap session
// @Tags Bookings
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} services.CreateBookingResult
// @Failure 400 {object} ErrorResponse "Malformed body"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Package not found"
// @Failure 422 {object} ErrorResponse "Validation error"
// @Failure 429 {object} ErrorResponse "Too many bookings"
// @Router /bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.limiter.CheckBookingLimit(c.Request.Context(), actor.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.creator.CreateBooking(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"booking_code": result.Booking.Code,
		"user_id":      actor.UserID,
		"final_price":  result.Booking.FinalPrice,
	}).Info("Booking created")

	c.JSON(http.StatusCreated, result)
}

// ============================================================================
// LIST / GET - GET /api/v1/bookings, GET /api/v1/bookings/:id
// ============================================================================

// ListMyBookings returns the caller's bookings, newest first
// @Summary List my bookings
// @Tags Bookings
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Router /bookings [get]
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	bookings, err := h.manager.ListMyBookings(c.Request.Context(), actor, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// GetBooking returns a booking with its rewards, payments and history
// @Summary Get booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.BookingDetail
// @Failure 403 {object} ErrorResponse "Not the owner"
// @Failure 404 {object} ErrorResponse "Booking not found"
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.manager.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// ============================================================================
// CANCEL - POST /api/v1/bookings/:id/cancel
// ============================================================================

// CancelBooking cancels a pending booking and releases its rewards
// @Summary Cancel booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.CancelBookingRequest false "Cancellation reason"
// @Success 200 {object} models.Booking
// @Failure 409 {object} ErrorResponse "Booking can no longer be cancelled"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	// Body is optional
	var req models.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	booking, err := h.manager.CancelBooking(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ============================================================================
// PAYMENTS - POST /api/v1/bookings/:id/payment, GET /api/v1/bookings/:id/payments
// ============================================================================

// RetryPayment opens a fresh payment session for a pending booking
// @Summary Retry payment
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 201 {object} models.PaymentSession
// @Failure 409 {object} ErrorResponse "Booking is not awaiting payment"
// @Failure 429 {object} ErrorResponse "Too many payment attempts"
// @Failure 502 {object} ErrorResponse "Gateway unavailable"
// @Router /bookings/{id}/payment [post]
func (h *BookingHandler) RetryPayment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.limiter.CheckPaymentLimit(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	session, err := h.creator.RetryPayment(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListPayments returns every payment attempt for a booking
// @Summary List booking payments
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} map[string]interface{}
// @Router /bookings/{id}/payments [get]
func (h *BookingHandler) ListPayments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	payments, err := h.manager.ListPayments(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// ============================================================================
// ADMIN - PUT /api/v1/admin/bookings/:id/status
// ============================================================================

// UpdateBookingStatus applies a manual status change
// @Summary Update booking status
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.UpdateBookingStatusRequest true "New status"
// @Success 200 {object} models.Booking
// @Failure 409 {object} ErrorResponse "Booking changed concurrently"
// @Router /admin/bookings/{id}/status [put]
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	booking, err := h.manager.UpdateBookingStatus(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"booking_id": id,
		"status":     booking.Status,
		"actor":      actor.UserID,
	}).Info("Booking status updated by staff")

	c.JSON(http.StatusOK, booking)
}
