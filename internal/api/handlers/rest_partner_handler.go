package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rodrigomacsantos/PieceSwap/internal/services"
)

// RestPartnerHandler handles partnership applications and commission queries.
type RestPartnerHandler struct {
	partnershipService services.IPartnershipService
}

// NewRestPartnerHandler creates a new RestPartnerHandler.
func NewRestPartnerHandler(partnershipService services.IPartnershipService) *RestPartnerHandler {
	return &RestPartnerHandler{partnershipService: partnershipService}
}

type partnershipApplyRequest struct {
	Name         string `json:"name" binding:"required"`
	PartnerType  string `json:"partner_type" binding:"required"` // e.g. store, influencer, event
	ContactEmail string `json:"contact_email" binding:"required"`
	Description  string `json:"description"`
}

// Apply handles POST /v1/partnership/apply
func (h *RestPartnerHandler) Apply(c *gin.Context) {
	var req partnershipApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	partnership, err := h.partnershipService.Apply(c.Request.Context(), req.Name, req.PartnerType, req.ContactEmail, req.Description)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPartnerEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contact email"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit application"})
		}
		return
	}

	c.JSON(http.StatusCreated, partnership)
}

// GetMyCommissions handles GET /v1/partnership/commissions
func (h *RestPartnerHandler) GetMyCommissions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	commissions, err := h.partnershipService.ListCommissionsBySeller(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list commissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": commissions})
}
