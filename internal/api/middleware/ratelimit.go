package middleware

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
)

// clientLimiter stores rate limiters for a specific client.
type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiterMiddleware manages rate limiting for API endpoints.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	cfg     *config.Config
}

// NewRateLimiterMiddleware creates a new RateLimiterMiddleware.
func NewRateLimiterMiddleware(cfg *config.Config) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
	}
	// Start a background goroutine to clean up old client entries
	go rm.cleanupClients()
	return rm
}

// getClientIdentifier creates a unique key based on IP, Fingerprint, and SPA Session ID.
func getClientIdentifier(c *gin.Context) string {
	ip := c.ClientIP()
	fingerprint := c.GetHeader("X-BFP")
	spaSession := c.GetHeader("X-SPA")
	return fmt.Sprintf("%s|%s|%s", ip, fingerprint, spaSession)
}

// getClientLimiter retrieves or creates the rate limiters for a given client identifier.
func (rm *RateLimiterMiddleware) getClientLimiter(identifier string, softRate, softBurst int, hardRate, hardBurst int) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(softRate), softBurst),
			hardLimiter: rate.NewLimiter(rate.Limit(hardRate), hardBurst),
		}
		rm.clients[identifier] = limiter
		log.Printf("Created new rate limiter entry for client: %s", identifier)
	}
	limiter.lastSeen = time.Now()
	return limiter
}

// cleanupClients periodically removes old client entries from the map.
func (rm *RateLimiterMiddleware) cleanupClients() {
	for {
		time.Sleep(10 * time.Minute)
		rm.mu.Lock()
		count := 0
		for id, client := range rm.clients {
			if time.Since(client.lastSeen) > 30*time.Minute {
				delete(rm.clients, id)
				count++
			}
		}
		rm.mu.Unlock()
		if count > 0 {
			log.Printf("Rate limiter cleanup removed %d old client entries.", count)
		}
	}
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := getClientIdentifier(c)

		softRate := rm.cfg.RateLimitSoftRefillRate
		softBurst := rm.cfg.RateLimitSoftBucketSize
		hardRate := rm.cfg.RateLimitHardRefillRate
		hardBurst := rm.cfg.RateLimitHardBucketSize

		limiter := rm.getClientLimiter(clientKey, softRate, softBurst, hardRate, hardBurst)

		// Hard limit applies to everyone, human or not.
		if !limiter.hardLimiter.Allow() {
			log.Printf("Hard rate limit exceeded for client: %s on %s", clientKey, c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		// Check if CaptchaMiddleware verified the client as human
		isHuman := c.GetBool(ContextKeyIsHumanVerified)

		// Soft limit only applies until the client proves it is human.
		if !isHuman && !limiter.softLimiter.Allow() {
			log.Printf("Soft rate limit exceeded for client: %s on %s (captcha required)", clientKey, c.FullPath())
			c.AbortWithStatusJSON(http.StatusTeapot, gin.H{"error": "Captcha validation required"})
			return
		}

		c.Next()
	}
}
