package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/middleware"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/services"
	"github.com/tripnest/booking-backend/pkg/payment"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// respondError translates a service error into an HTTP response
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		forbiddenErr  *services.ForbiddenError
		conflictErr   *services.ConflictError
		rateLimitErr  *services.RateLimitError
		gatewayErr    *payment.GatewayError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_error",
			Message: "Request validation failed",
			Code:    "VALIDATION_FAILED",
			Fields:  validationErr.Fields,
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: notFoundErr.Error(),
			Code:    "NOT_FOUND",
		})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: forbiddenErr.Message,
			Code:    "FORBIDDEN",
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: conflictErr.Message,
			Code:    "CONFLICT",
		})
	case errors.As(err, &rateLimitErr):
		retryAfter := int(time.Until(rateLimitErr.RetryAfter).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "rate_limited",
			Message: rateLimitErr.Message,
			Code:    "RATE_LIMITED",
		})
	case errors.As(err, &gatewayErr):
		logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("Payment gateway error")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "payment_gateway_error",
			Message: "Payment provider is unavailable, please try again",
			Code:    "GATEWAY_ERROR",
		})
	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Internal error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Something went wrong, please try again later",
			Code:    "INTERNAL_ERROR",
		})
	}
}

// requireActor returns the authenticated actor or writes a 401
func requireActor(c *gin.Context) (models.Actor, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
			Code:    "MISSING_USER_CONTEXT",
		})
		return models.Actor{}, false
	}
	return userCtx.Actor(), true
}

// uuidParam parses a path parameter or writes a 400
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid " + name,
			Code:    "INVALID_ID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// badRequest reports an unreadable request body
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request body: " + err.Error(),
		Code:    "INVALID_REQUEST",
	})
}

// pagination reads limit and offset query parameters
func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
