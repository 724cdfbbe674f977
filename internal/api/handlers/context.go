package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rodrigomacsantos/PieceSwap/internal/api/middleware"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// currentUserID extracts the authenticated user's ID from the Gin context.
// Aborts with 401 when the auth middleware did not run or the stored value is
// malformed; callers must return immediately when ok is false.
func currentUserID(c *gin.Context) (utils.SixID, bool) {
	raw, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return utils.SixID{}, false
	}

	idStr, ok := raw.(string)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return utils.SixID{}, false
	}

	userID, err := utils.ParseSixID(idStr)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user identity"})
		return utils.SixID{}, false
	}
	return userID, true
}
