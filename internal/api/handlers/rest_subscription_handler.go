package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
)

// RestSubscriptionHandler handles premium plan requests.
type RestSubscriptionHandler struct {
	cfg                 *config.Config
	subscriptionService services.ISubscriptionService
}

// NewRestSubscriptionHandler creates a new RestSubscriptionHandler.
func NewRestSubscriptionHandler(cfg *config.Config, subscriptionService services.ISubscriptionService) *RestSubscriptionHandler {
	return &RestSubscriptionHandler{
		cfg:                 cfg,
		subscriptionService: subscriptionService,
	}
}

// GetSubscription handles GET /v1/subscription
func (h *RestSubscriptionHandler) GetSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription":      sub,
		"premium_price_eur": h.cfg.PremiumPriceEUR,
	})
}

// Subscribe handles POST /v1/subscription. Checkout is simulated: the premium
// period starts immediately.
func (h *RestSubscriptionHandler) Subscribe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Subscribe(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// Cancel handles DELETE /v1/subscription. Entitlements remain until the paid
// period runs out.
func (h *RestSubscriptionHandler) Cancel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.subscriptionService.Cancel(c.Request.Context(), userID); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
