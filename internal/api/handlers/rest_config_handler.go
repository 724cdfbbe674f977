package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rodrigomacsantos/PieceSwap/internal/services"
)

// RestConfigHandler handles requests for the /settings REST endpoint.
type RestConfigHandler struct {
	configService services.IConfigService
}

// NewRestConfigHandler creates a new RestConfigHandler.
func NewRestConfigHandler(configService services.IConfigService) *RestConfigHandler {
	return &RestConfigHandler{configService: configService}
}

// GetPublicConfig returns the publicly accessible configuration parameters
// (app name, free swipe limit, premium price, commission rate).
// Handles GET /v1/settings
func (h *RestConfigHandler) GetPublicConfig(c *gin.Context) {
	publicConfig, err := h.configService.GetAllPublic(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve configuration"})
		return
	}

	c.JSON(http.StatusOK, publicConfig)
}
