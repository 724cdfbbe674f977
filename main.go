package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hibiken/asynq"

	"github.com/rodrigomacsantos/PieceSwap/internal/api"
	"github.com/rodrigomacsantos/PieceSwap/internal/cache"
	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/db"
	"github.com/rodrigomacsantos/PieceSwap/internal/email"
	"github.com/rodrigomacsantos/PieceSwap/internal/realtime"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
	"github.com/rodrigomacsantos/PieceSwap/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	if err := db.EnsureIndexes(mongoDb); err != nil {
		log.Fatalf("Failed to ensure MongoDB indexes: %v", err)
	}

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Initialize S3 Client (needed by the image task processor)
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		log.Fatalf("Failed to load AWS config for S3 client: %v", err)
	}
	s3Client := s3.NewFromConfig(awsCfg)

	// Initialize Email Sender
	var primaryEmailSender email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg)
	} else {
		log.Println("MOCK_SERVICES disabled or not set: Using SMTP email sender.")
		primaryEmailSender = email.NewSMTPSender(cfg)
	}

	// Setup Composite Email Sender
	// The composite sender will always include the primary sender.
	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)

	// Optionally add FileEmailSender if LOG_EMAILS is set
	logEmailsPath := os.Getenv("LOG_EMAILS")
	if logEmailsPath != "" {
		log.Printf("LOG_EMAILS set to '%s', enabling file email logger.", logEmailsPath)
		fileSender, err := email.NewFileEmailSender(logEmailsPath, cfg)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", logEmailsPath, err)
		} else {
			compositeSender.AddSender(fileSender)
			log.Println("File email logger added to composite sender.")
		}
	}

	finalEmailSender := email.Sender(compositeSender)

	// Services needed by the task processor. The API router wires its own.
	configSvc := services.NewConfigService(mongoDb, cfg, redisClient)
	userService := services.NewUserService(mongoDb)
	subscriptionService := services.NewSubscriptionService(mongoDb, cfg)
	partnershipService := services.NewPartnershipService(mongoDb, cfg, nil)
	listingService := services.NewListingService(mongoDb, cfg, userService, partnershipService)

	// Initialize Task Client
	taskClient := tasks.NewClient(redisClient)

	// Initialize Task Processor
	taskProcessor := tasks.NewTaskProcessor(cfg, finalEmailSender, listingService, userService, subscriptionService, s3Client)

	// Websocket hub shared by the API router and the message service.
	hub := realtime.NewHub()

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceRouter := api.SetupServiceRouter(cfg, redisClient, shutdownChan)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: serviceRouter,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on :%s\n", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
		fmt.Println("Service API server stopped.")
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server
	var imageTaskSrv *asynq.Server
	var scheduler *asynq.Scheduler

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		fmt.Println("Starting main API server...")
		// Router initializes its own needed services
		mainApiRouter := api.SetupRouter(cfg, mongoDb, redisClient, taskClient, configSvc, hub)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	bgMode := func() {
		fmt.Println("Starting background worker...")
		srv, mux := tasks.SetupServer(redisClient, taskProcessor, false, true)
		backgroundTaskSrv = srv
		if backgroundTaskSrv != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fmt.Println("Background task server starting...")
				if err := backgroundTaskSrv.Run(mux); err != nil {
					log.Fatalf("Background task server error: %v", err)
				}
				fmt.Println("Background task server stopped.")
			}()
		}

		scheduler = tasks.SetupScheduler(redisClient)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Println("Task scheduler starting...")
			if err := scheduler.Run(); err != nil {
				log.Fatalf("Task scheduler error: %v", err)
			}
			fmt.Println("Task scheduler stopped.")
		}()
	}

	imgMode := func() {
		fmt.Println("Starting image processing worker...")
		srv, mux := tasks.SetupServer(redisClient, taskProcessor, true, false)
		imageTaskSrv = srv
		if imageTaskSrv != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fmt.Println("Image processing task server starting...")
				if err := imageTaskSrv.Run(mux); err != nil {
					log.Fatalf("Image processing server error: %v", err)
				}
				fmt.Println("Image processing server stopped.")
			}()
		}
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "img":
		imgMode()
	case "all":
		apiMode()
		bgMode()
		imgMode()
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan: // Listen for shutdown signal from Service API
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	// Create context with timeout for shutdown
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	// Shutdown servers
	fmt.Println("Shutting down Service API server...")
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}

	if scheduler != nil {
		fmt.Println("Shutting down task scheduler...")
		scheduler.Shutdown()
	}
	if backgroundTaskSrv != nil {
		fmt.Println("Shutting down Background Task server...")
		backgroundTaskSrv.Shutdown()
	}
	if imageTaskSrv != nil {
		fmt.Println("Shutting down Image Processing server...")
		imageTaskSrv.Shutdown()
	}

	// Wait for all server goroutines to finish
	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}
