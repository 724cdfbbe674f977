package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rodrigomacsantos/PieceSwap/internal/api/handlers"
	"github.com/rodrigomacsantos/PieceSwap/internal/api/middleware"
	"github.com/rodrigomacsantos/PieceSwap/internal/captcha"
	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/realtime"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
	"github.com/rodrigomacsantos/PieceSwap/internal/storage"
	"github.com/rodrigomacsantos/PieceSwap/internal/tasks"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, asynqClient *asynq.Client, configSvc services.IConfigService, hub *realtime.Hub) *gin.Engine {
	// Initialize services needed by API handlers HERE
	enqueuer := tasks.NewEnqueuer(asynqClient)

	userService := services.NewUserService(db)
	subscriptionService := services.NewSubscriptionService(db, cfg)
	partnershipService := services.NewPartnershipService(db, cfg, enqueuer)
	listingService := services.NewListingService(db, cfg, userService, partnershipService)
	messageService := services.NewMessageService(db, userService, hub)
	swapService := services.NewSwapService(db, cfg, userService, subscriptionService, messageService)
	locationService := services.NewLocationService(db, cfg, nil)
	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	// Initialize Captcha Verifier
	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	restAuthHandler := handlers.NewRestAuthHandler(cfg, userService, enqueuer)
	restConfigHandler := handlers.NewRestConfigHandler(configSvc)
	restProfileHandler := handlers.NewRestProfileHandler(userService, s3StorageService, enqueuer)
	restListingHandler := handlers.NewRestListingHandler(listingService, s3StorageService, enqueuer)
	restSwapHandler := handlers.NewRestSwapHandler(swapService, subscriptionService)
	restSubscriptionHandler := handlers.NewRestSubscriptionHandler(cfg, subscriptionService)
	restMessageHandler := handlers.NewRestMessageHandler(messageService)
	restLocationHandler := handlers.NewRestLocationHandler(cfg, locationService)
	restPartnerHandler := handlers.NewRestPartnerHandler(partnershipService)
	wsHandler := handlers.NewWsHandler(cfg, hub)

	v1 := r.Group("/v1")
	{
		// Public Routes (Rate limiting already applied globally)
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		v1.GET("/settings", restConfigHandler.GetPublicConfig)

		v1.POST("/auth/signup", restAuthHandler.SignUp)
		v1.POST("/auth/signin", restAuthHandler.SignIn)

		// Listing routes - keep /search before /:id to avoid conflicts
		v1.GET("/listing/search", restListingHandler.SearchListings)
		v1.GET("/listing/:id", restListingHandler.GetListingByID)

		v1.POST("/partnership/apply", restPartnerHandler.Apply)

		// Websocket push channel authenticates via ?token=<jwt>
		v1.GET("/ws", wsHandler.Connect)

		// Authenticated Routes (already have rate limiting from global middleware)
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/profile", restProfileHandler.GetMyProfile)
			authRequired.PUT("/profile", restProfileHandler.UpdateMyProfile)
			authRequired.GET("/profile/:id", restProfileHandler.GetProfileByID)
			authRequired.POST("/profile/avatar/upload-url", restProfileHandler.GetAvatarUploadURL)
			authRequired.POST("/profile/avatar/confirm", restProfileHandler.ConfirmAvatarUpload)

			authRequired.GET("/wallet/packages", restProfileHandler.GetCoinPackages)
			authRequired.POST("/wallet/purchase", restProfileHandler.PurchaseCoins)

			authRequired.POST("/listing", restListingHandler.CreateListing)
			authRequired.GET("/listing", restListingHandler.GetMyListings)
			authRequired.PUT("/listing/:id/status", restListingHandler.SetListingStatus)
			authRequired.POST("/listing/:id/sold", restListingHandler.MarkListingSold)
			authRequired.POST("/listing/:id/upload-url", restListingHandler.GetListingUploadURL)
			authRequired.POST("/listing/:id/confirm-upload", restListingHandler.ConfirmListingUpload)

			authRequired.GET("/swap/feed", restSwapHandler.GetFeed)
			authRequired.POST("/swap/swipe", restSwapHandler.Swipe)
			authRequired.POST("/swap/superlike", restSwapHandler.Superlike)
			authRequired.GET("/swap/limits", restSwapHandler.GetLimits)

			authRequired.GET("/subscription", restSubscriptionHandler.GetSubscription)
			authRequired.POST("/subscription", restSubscriptionHandler.Subscribe)
			authRequired.DELETE("/subscription", restSubscriptionHandler.Cancel)

			authRequired.GET("/conversations", restMessageHandler.ListConversations)
			authRequired.GET("/conversations/:id/messages", restMessageHandler.GetMessages)
			authRequired.POST("/conversations/:id/messages", restMessageHandler.SendMessage)
			authRequired.POST("/conversations/:id/read", restMessageHandler.MarkAsRead)

			authRequired.PUT("/location", restLocationHandler.SaveLocation)
			authRequired.GET("/location/nearby", restLocationHandler.GetNearbyUsers)

			authRequired.GET("/partnership/commissions", restPartnerHandler.GetMyCommissions)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine.
// Requires Redis client for the getTestEmail endpoint.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["kind", "email"], e.g. ["welcome", "a@b.c"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			kind := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, kind)

			// Poll Redis briefly for the key
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ { // Poll up to ~2 seconds
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey) // Delete after fetching
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				// If redis.Nil, wait and retry
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
