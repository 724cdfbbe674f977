package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rodrigomacsantos/PieceSwap/internal/services"
	"github.com/rodrigomacsantos/PieceSwap/internal/storage"
	"github.com/rodrigomacsantos/PieceSwap/internal/tasks"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// RestProfileHandler handles profile and swap-coin wallet requests.
type RestProfileHandler struct {
	userService services.IUserService
	s3Storage   storage.IS3Storage
	enqueuer    services.IImageEnqueuer
}

// NewRestProfileHandler creates a new RestProfileHandler. s3Storage and
// enqueuer may be nil when avatar uploads are disabled.
func NewRestProfileHandler(userService services.IUserService, s3Storage storage.IS3Storage, enqueuer services.IImageEnqueuer) *RestProfileHandler {
	return &RestProfileHandler{
		userService: userService,
		s3Storage:   s3Storage,
		enqueuer:    enqueuer,
	}
}

// GetMyProfile handles GET /v1/profile
func (h *RestProfileHandler) GetMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		}
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetProfileByID handles GET /v1/profile/:id
func (h *RestProfileHandler) GetProfileByID(c *gin.Context) {
	profileUserID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), profileUserID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		}
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateMyProfile handles PUT /v1/profile
func (h *RestProfileHandler) UpdateMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var upd services.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	profile, err := h.userService.UpdateProfile(c.Request.Context(), userID, upd)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		}
		return
	}

	c.JSON(http.StatusOK, profile)
}

type avatarUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// GetAvatarUploadURL handles POST /v1/profile/avatar/upload-url
func (h *RestProfileHandler) GetAvatarUploadURL(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if h.s3Storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image uploads are not available"})
		return
	}

	var req avatarUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	url, key, err := h.s3Storage.GenerateAvatarUploadURL(c.Request.Context(), userID.String(), req.Filename, req.ContentType)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate upload URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}

type avatarConfirmRequest struct {
	Key string `json:"key" binding:"required"`
}

// ConfirmAvatarUpload handles POST /v1/profile/avatar/confirm. Queues the
// uploaded object for validation and resizing; the avatar URL is set once the
// image worker finishes.
func (h *RestProfileHandler) ConfirmAvatarUpload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if h.enqueuer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image processing is not available"})
		return
	}

	var req avatarConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.enqueuer.EnqueueImageProcess(c.Request.Context(), req.Key, tasks.ImageTargetAvatar, userID.String()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue image processing"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
}

// GetCoinPackages handles GET /v1/wallet/packages
func (h *RestProfileHandler) GetCoinPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": services.CoinPackages()})
}

type purchaseCoinsRequest struct {
	PackageID string `json:"package_id" binding:"required"`
}

// PurchaseCoins handles POST /v1/wallet/purchase
func (h *RestProfileHandler) PurchaseCoins(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req purchaseCoinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	balance, err := h.userService.PurchaseCoins(c.Request.Context(), userID, req.PackageID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownCoinPackage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown coin package"})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purchase coins"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"swap_coins": balance})
}
