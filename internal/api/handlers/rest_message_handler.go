package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rodrigomacsantos/PieceSwap/internal/services"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// RestMessageHandler handles conversation and chat message requests.
type RestMessageHandler struct {
	messageService services.IMessageService
}

// NewRestMessageHandler creates a new RestMessageHandler.
func NewRestMessageHandler(messageService services.IMessageService) *RestMessageHandler {
	return &RestMessageHandler{messageService: messageService}
}

// ListConversations handles GET /v1/conversations
func (h *RestMessageHandler) ListConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	summaries, err := h.messageService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

// GetMessages handles GET /v1/conversations/:id/messages
func (h *RestMessageHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID format"})
		return
	}

	messages, err := h.messageService.GetMessages(c.Request.Context(), conversationID, userID)
	if err != nil {
		h.renderMessageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": messages})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage handles POST /v1/conversations/:id/messages
func (h *RestMessageHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID format"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	message, err := h.messageService.SendMessage(c.Request.Context(), conversationID, userID, req.Content)
	if err != nil {
		h.renderMessageError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// MarkAsRead handles POST /v1/conversations/:id/read
func (h *RestMessageHandler) MarkAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversationID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID format"})
		return
	}

	count, err := h.messageService.MarkAsRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		h.renderMessageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked_read": count})
}

func (h *RestMessageHandler) renderMessageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this conversation"})
	case errors.Is(err, services.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message content is empty"})
	case errors.Is(err, services.ErrMessageTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message content is too long"})
	case errors.Is(err, mongo.ErrNoDocuments):
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message request"})
	}
}
