package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
	"github.com/rodrigomacsantos/PieceSwap/internal/storage"
	"github.com/rodrigomacsantos/PieceSwap/internal/tasks"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// RestListingHandler handles REST requests for marketplace listings.
type RestListingHandler struct {
	listingService services.IListingService
	s3Storage      storage.IS3Storage
	enqueuer       services.IImageEnqueuer
}

// NewRestListingHandler creates a new RestListingHandler. s3Storage and
// enqueuer may be nil when image uploads are disabled.
func NewRestListingHandler(listingService services.IListingService, s3Storage storage.IS3Storage, enqueuer services.IImageEnqueuer) *RestListingHandler {
	return &RestListingHandler{
		listingService: listingService,
		s3Storage:      s3Storage,
		enqueuer:       enqueuer,
	}
}

// CreateListing handles POST /v1/listing
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var input services.NewListingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if input.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}
	switch input.Condition {
	case models.ConditionNew, models.ConditionLikeNew, models.ConditionUsed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Condition must be one of: new, like-new, used"})
		return
	}
	if input.PriceEUR != nil && *input.PriceEUR < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price cannot be negative"})
		return
	}
	if input.PriceSwapCoins != nil && *input.PriceSwapCoins < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Swap coin price cannot be negative"})
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), userID, input)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create listing"})
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// GetListingByID handles GET /v1/listing/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	listing, err := h.listingService.GetListingWithSeller(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		}
		return
	}

	c.JSON(http.StatusOK, listing)
}

// SearchListings handles GET /v1/listing/search
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	search := services.ListingSearch{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Limit:    limit,
	}

	listings, err := h.listingService.SearchListings(c.Request.Context(), search)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// GetMyListings handles GET /v1/listing/mine
func (h *RestListingHandler) GetMyListings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	listings, err := h.listingService.FindListingsByUserID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": listings})
}

type listingStatusRequest struct {
	Status models.ListingStatus `json:"status" binding:"required"`
}

// SetListingStatus handles PUT /v1/listing/:id/status
func (h *RestListingHandler) SetListingStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	var req listingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	switch req.Status {
	case models.ListingStatusActive, models.ListingStatusRemoved:
	case models.ListingStatusSold:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Use the sold endpoint to mark a listing sold"})
		return
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be one of: active, removed"})
		return
	}

	if err := h.listingService.SetListingStatus(c.Request.Context(), listingID, userID, req.Status); err != nil {
		if errors.Is(err, services.ErrNotListingOwner) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update listing"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

type markSoldRequest struct {
	BuyerID string `json:"buyer_id" binding:"required"`
}

// MarkListingSold handles POST /v1/listing/:id/sold
func (h *RestListingHandler) MarkListingSold(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	var req markSoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	buyerID, err := utils.ParseSixID(req.BuyerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid buyer ID format"})
		return
	}

	if err := h.listingService.MarkListingSold(c.Request.Context(), listingID, userID, buyerID); err != nil {
		if errors.Is(err, services.ErrNotListingOwner) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark listing sold"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.ListingStatusSold})
}

type listingUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// GetListingUploadURL handles POST /v1/listing/:id/upload-url
func (h *RestListingHandler) GetListingUploadURL(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if h.s3Storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image uploads are not available"})
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	// Only the owner may attach images.
	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		}
		return
	}
	if listing.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the listing owner"})
		return
	}

	var req listingUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	url, key, err := h.s3Storage.GenerateListingUploadURL(c.Request.Context(), userID.String(), listingID.String(), req.Filename, req.ContentType)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate upload URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}

type listingConfirmRequest struct {
	Key string `json:"key" binding:"required"`
}

// ConfirmListingUpload handles POST /v1/listing/:id/upload-confirm. The image
// worker validates, resizes and attaches the image asynchronously.
func (h *RestListingHandler) ConfirmListingUpload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if h.enqueuer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image processing is not available"})
		return
	}

	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		}
		return
	}
	if listing.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the listing owner"})
		return
	}

	var req listingConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.enqueuer.EnqueueImageProcess(c.Request.Context(), req.Key, tasks.ImageTargetListing, listingID.String()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue image processing"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
}
