package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rodrigomacsantos/PieceSwap/internal/auth"
	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/realtime"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot set Authorization headers on websocket dials, so the
	// token arrives as a query parameter and origin checks stay permissive.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WsHandler upgrades connections for realtime push (new messages, matches).
type WsHandler struct {
	cfg *config.Config
	hub *realtime.Hub
}

// NewWsHandler creates a new WsHandler.
func NewWsHandler(cfg *config.Config, hub *realtime.Hub) *WsHandler {
	return &WsHandler{cfg: cfg, hub: hub}
}

// Connect handles GET /v1/ws?token=<jwt>
func (h *WsHandler) Connect(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token query parameter required"})
		return
	}

	claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	userID, err := utils.ParseSixID(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user identity"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("Websocket upgrade failed for user %s: %v", userID.String(), err)
		return
	}

	// Register blocks until the connection drops; the request goroutine is
	// dedicated to this client.
	h.hub.Register(userID, conn)
}
