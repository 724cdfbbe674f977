package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// RestSwapHandler handles the swipe feed and swipe actions.
type RestSwapHandler struct {
	swapService         services.ISwapService
	subscriptionService services.ISubscriptionService
}

// NewRestSwapHandler creates a new RestSwapHandler.
func NewRestSwapHandler(swapService services.ISwapService, subscriptionService services.ISubscriptionService) *RestSwapHandler {
	return &RestSwapHandler{
		swapService:         swapService,
		subscriptionService: subscriptionService,
	}
}

// GetFeed handles GET /v1/swap/feed
func (h *RestSwapHandler) GetFeed(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	feed, err := h.swapService.GetSwipeFeed(c.Request.Context(), userID, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build swipe feed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": feed})
}

type swipeRequest struct {
	ListingID string                 `json:"listing_id" binding:"required"`
	Action    models.SwipeActionType `json:"action" binding:"required"`
}

// Swipe handles POST /v1/swap/swipe
func (h *RestSwapHandler) Swipe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req swipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	listingID, err := utils.ParseSixID(req.ListingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}
	if req.Action != models.SwipeLike && req.Action != models.SwipeDislike {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Action must be like or dislike"})
		return
	}

	result, err := h.swapService.RecordSwipe(c.Request.Context(), userID, listingID, req.Action)
	if err != nil {
		h.renderSwipeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type superlikeRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
}

// Superlike handles POST /v1/swap/superlike
func (h *RestSwapHandler) Superlike(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req superlikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	listingID, err := utils.ParseSixID(req.ListingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	result, err := h.swapService.UseSuperlike(c.Request.Context(), userID, listingID)
	if err != nil {
		h.renderSwipeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLimits handles GET /v1/swap/limits
func (h *RestSwapHandler) GetLimits(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limits, err := h.subscriptionService.GetLimits(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve limits"})
		return
	}

	c.JSON(http.StatusOK, limits)
}

// renderSwipeError maps swipe/superlike failures to HTTP responses.
func (h *RestSwapHandler) renderSwipeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSwipeLimitReached):
		c.JSON(http.StatusForbidden, gin.H{"error": "Daily swipe limit reached", "code": "swipe_limit"})
	case errors.Is(err, services.ErrSuperlikeLimitReached):
		c.JSON(http.StatusForbidden, gin.H{"error": "Daily superlike limit reached", "code": "superlike_limit"})
	case errors.Is(err, services.ErrPremiumRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "Premium subscription required", "code": "premium_required"})
	case errors.Is(err, services.ErrAlreadySwiped):
		c.JSON(http.StatusConflict, gin.H{"error": "Already swiped on this listing"})
	case errors.Is(err, services.ErrOwnListing):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot swipe on your own listing"})
	case errors.Is(err, mongo.ErrNoDocuments):
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record swipe"})
	}
}
