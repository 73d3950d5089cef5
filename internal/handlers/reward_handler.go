package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
)

// RewardWallet reads a customer's rewards
type RewardWallet interface {
	ListAvailable(ctx context.Context, actor models.Actor) ([]*models.Reward, error)
	Preview(ctx context.Context, actor models.Actor, req *models.PreviewRewardRequest) (*models.RewardPreview, error)
}

// RewardHandler handles reward wallet endpoints
type RewardHandler struct {
	wallet RewardWallet
	logger *logrus.Logger
}

// NewRewardHandler creates a new RewardHandler
func NewRewardHandler(wallet RewardWallet, logger *logrus.Logger) *RewardHandler {
	return &RewardHandler{wallet: wallet, logger: logger}
}

// ListAvailable returns the caller's unused, unexpired rewards
// @Summary List my rewards
// @Tags Rewards
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /rewards [get]
func (h *RewardHandler) ListAvailable(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	rewards, err := h.wallet.ListAvailable(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var total int64
	for _, r := range rewards {
		total += r.Amount
	}

	c.JSON(http.StatusOK, gin.H{
		"rewards":      rewards,
		"count":        len(rewards),
		"total_amount": total,
	})
}

// Preview shows what a reward would take off a booking amount
// @Summary Preview reward discount
// @Tags Rewards
// @Accept json
// @Produce json
// @Param request body models.PreviewRewardRequest true "Reward and amount"
// @Success 200 {object} models.RewardPreview
// @Failure 404 {object} ErrorResponse "Reward not found"
// @Router /rewards/preview [post]
func (h *RewardHandler) Preview(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req models.PreviewRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	preview, err := h.wallet.Preview(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}
