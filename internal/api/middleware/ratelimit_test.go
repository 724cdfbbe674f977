package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rodrigomacsantos/PieceSwap/internal/api/middleware"
	"github.com/rodrigomacsantos/PieceSwap/internal/captcha"
	"github.com/rodrigomacsantos/PieceSwap/internal/config"
)

// MockTurnstileVerifier implements captcha.ITurnstileVerifier
type MockTurnstileVerifier struct {
	mock.Mock
}

func (m *MockTurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	args := m.Called(ctx, token, remoteIP)
	return args.Bool(0), args.Error(1)
}
func (m *MockTurnstileVerifier) GenerateHumanToken(userID, ip, fingerprint, spaSession string, ttl time.Duration) (string, error) {
	args := m.Called(userID, ip, fingerprint, spaSession, ttl)
	return args.String(0), args.Error(1)
}
func (m *MockTurnstileVerifier) ValidateHumanToken(tokenString, ip, fingerprint, spaSession string) bool {
	args := m.Called(tokenString, ip, fingerprint, spaSession)
	return args.Bool(0)
}

func setupTestEngine(cfg *config.Config, verifier captcha.ITurnstileVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CaptchaMiddleware(cfg, verifier))
	r.Use(rateLimiter.Limit())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

func TestRateLimiterMiddleware_HardLimit(t *testing.T) {
	cfg := &config.Config{
		RateLimitHardRefillRate: 1,  // 1 token per second
		RateLimitHardBucketSize: 1,  // Bucket size 1
		RateLimitSoftRefillRate: 10, // High soft limit
		RateLimitSoftBucketSize: 10,
	}
	mockVerifier := new(MockTurnstileVerifier)
	router := setupTestEngine(cfg, mockVerifier)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "1.2.3.4:12345" // Identify client

	// First request should pass
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second request immediately should fail (hard limit)
	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/test", nil)
	req2.RemoteAddr = "1.2.3.4:12345"
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}

func TestRateLimiterMiddleware_SoftLimit_CaptchaRequired(t *testing.T) {
	cfg := &config.Config{
		RateLimitHardRefillRate: 10, // High hard limit
		RateLimitHardBucketSize: 10,
		RateLimitSoftRefillRate: 1, // 1 token per second
		RateLimitSoftBucketSize: 1, // Bucket size 1
	}
	mockVerifier := new(MockTurnstileVerifier)
	router := setupTestEngine(cfg, mockVerifier)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "5.6.7.8:12345"

	// First request should pass
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second request immediately should hit soft limit (418)
	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/test", nil)
	req2.RemoteAddr = "5.6.7.8:12345"
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTeapot, w2.Code)
	var respBody map[string]interface{}
	err := json.Unmarshal(w2.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	assert.Contains(t, respBody["error"], "Captcha validation required")
}

func TestRateLimiterMiddleware_SoftLimit_BypassWithCaptchaHeader(t *testing.T) {
	cfg := &config.Config{
		RateLimitHardRefillRate: 10,
		RateLimitHardBucketSize: 10,
		RateLimitSoftRefillRate: 1,
		RateLimitSoftBucketSize: 1,
	}
	mockVerifier := new(MockTurnstileVerifier)
	// Expect ValidateHumanToken to be called and return true for the second request
	mockVerifier.On("ValidateHumanToken", mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(true)
	router := setupTestEngine(cfg, mockVerifier)

	// First request (consumes the single soft token)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "9.1.2.3:12345"
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second request with a valid captcha token skips the soft limit
	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/test", nil)
	req2.RemoteAddr = "9.1.2.3:12345"
	req2.Header.Set("X-C-T", "valid-turnstile-token")
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
}
