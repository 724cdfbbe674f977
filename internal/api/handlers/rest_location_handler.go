package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
)

// RestLocationHandler handles geolocation requests.
type RestLocationHandler struct {
	cfg             *config.Config
	locationService services.ILocationService
}

// NewRestLocationHandler creates a new RestLocationHandler.
func NewRestLocationHandler(cfg *config.Config, locationService services.ILocationService) *RestLocationHandler {
	return &RestLocationHandler{cfg: cfg, locationService: locationService}
}

type saveLocationRequest struct {
	Lat float64 `json:"lat" binding:"required"`
	Lon float64 `json:"lon" binding:"required"`
}

// SaveLocation handles PUT /v1/location
func (h *RestLocationHandler) SaveLocation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req saveLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	profile, err := h.locationService.SaveLocation(c.Request.Context(), userID, req.Lat, req.Lon)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCoordinates):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save location"})
		}
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetNearbyUsers handles GET /v1/location/nearby
func (h *RestLocationHandler) GetNearbyUsers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon query parameters are required"})
		return
	}

	radiusKM := h.cfg.NearbyRadiusKM
	if radiusStr := c.Query("radius_km"); radiusStr != "" {
		if parsed, err := strconv.Atoi(radiusStr); err == nil && parsed > 0 && parsed <= h.cfg.NearbyRadiusKM {
			radiusKM = parsed
		}
	}

	nearby, err := h.locationService.NearbyUsers(c.Request.Context(), userID, lat, lon, radiusKM)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCoordinates) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find nearby users"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": nearby, "radius_km": radiusKM})
}
