package handlers

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/rodrigomacsantos/PieceSwap/internal/auth"
	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// RestAuthHandler handles account registration and sign-in.
type RestAuthHandler struct {
	cfg         *config.Config
	userService services.IUserService
	enqueuer    services.IEmailEnqueuer
	passwordRe  *regexp.Regexp
}

// NewRestAuthHandler creates a new RestAuthHandler. enqueuer may be nil, in
// which case no welcome email is queued.
func NewRestAuthHandler(cfg *config.Config, userService services.IUserService, enqueuer services.IEmailEnqueuer) *RestAuthHandler {
	return &RestAuthHandler{
		cfg:         cfg,
		userService: userService,
		enqueuer:    enqueuer,
		passwordRe:  regexp.MustCompile(cfg.PasswordRegexp),
	}
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username" binding:"required"`
	FullName string `json:"full_name"`
}

type signInRequest struct {
	Identifier string `json:"identifier" binding:"required"` // email or username
	Password   string `json:"password" binding:"required"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// SignUp handles POST /v1/auth/signup
func (h *RestAuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !emailRegex.MatchString(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
		return
	}
	if !usernameRegex.MatchString(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be 3-30 characters (letters, digits, underscore)"})
		return
	}
	if !h.passwordRe.MatchString(req.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password does not meet the minimum requirements"})
		return
	}

	user, _, err := h.userService.SignUp(c.Request.Context(), req.Email, req.Password, req.Username, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
		case errors.Is(err, services.ErrUsernameExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		}
		return
	}

	if h.enqueuer != nil {
		body := "Welcome to " + h.cfg.AppName + "! Your account is ready. List a set, start swiping, and find your next trade."
		if err := h.enqueuer.EnqueueEmail(c.Request.Context(), req.Email, "Welcome to "+h.cfg.AppName, body); err != nil {
			// Account exists either way; the welcome email is best-effort.
			_ = c.Error(err)
		}
	}

	token, err := auth.GenerateJWT(user.ID, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, authResponse{Token: token, UserID: user.ID.String()})
}

// SignIn handles POST /v1/auth/signin
func (h *RestAuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
		}
		return
	}

	token, err := auth.GenerateJWT(user.ID, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, UserID: user.ID.String()})
}
