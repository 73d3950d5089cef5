package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/services"
	"github.com/tripnest/booking-backend/internal/utils"
)

const maxWebhookBody = 1 << 20

// NotificationReconciler applies gateway callbacks
type NotificationReconciler interface {
	HandleNotification(ctx context.Context, req services.WebhookRequest) (*services.ReconcileResult, error)
}

// PaymentWebhookHandler receives Midtrans HTTP notifications
type PaymentWebhookHandler struct {
	reconciler NotificationReconciler
	logger     *logrus.Logger
}

// NewPaymentWebhookHandler creates a new PaymentWebhookHandler
func NewPaymentWebhookHandler(reconciler NotificationReconciler, logger *logrus.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleNotification processes a payment status callback
// @Summary Midtrans payment notification
// @Description Verifies the callback signature and reconciles the payment and booking
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} ErrorResponse "Invalid signature"
// @Failure 404 {object} ErrorResponse "Unknown gateway reference"
// @Failure 422 {object} ErrorResponse "Malformed payload or unknown status"
// @Router /payments/webhook [post]
func (h *PaymentWebhookHandler) HandleNotification(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.reconciler.HandleNotification(c.Request.Context(), services.WebhookRequest{
		Body:      body,
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"result": result,
	})
}
