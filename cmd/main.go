package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guildhub/docs/swagger"
	"guildhub/internal/api"
	"guildhub/internal/api/registry"
	"guildhub/internal/cache"
	"guildhub/internal/config"
	"guildhub/internal/db"
	"guildhub/internal/derived"
	"guildhub/internal/discord"
	"guildhub/internal/groups"
	"guildhub/internal/handlers"
	"guildhub/internal/lookup"
	"guildhub/internal/models"
	"guildhub/internal/perms"
	"guildhub/internal/recruit"
	"guildhub/internal/services"
	"guildhub/internal/store"
	"guildhub/internal/tasks"
	"guildhub/internal/tasks/rate"
	"guildhub/internal/utils/logger"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// 🚀 Main function
// @Summary Main function
// @Description Main function
// @title GuildHub API
// @version 1.0
// @description Group membership, permissions and recruitment engine
// @host api.guildhub.dev
// @BasePath /
// @schemes https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {

	logger := logger.New("guildhub")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := db.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		err := db.Close()
		if err != nil {
			log.Fatalf("Failed to close database connection: %v", err)
		}
	}()

	db_instance := db.GetDB()

	// Redis client backs the edge and durable cache tiers
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Cache tiers: edge (category lists), durable (auto-recruit aggregate),
	// hot (process-local member lists and resolved permissions)
	edgeCache := cache.NewRedisCache(redisClient, "edge")
	durableCache := cache.NewRedisCache(redisClient, "durable")
	hotCache := cache.NewMemoryCache()

	// Wire the engine services
	st := store.NewGormStore(db_instance)
	groupsSvc := groups.NewService(st, edgeCache, hotCache, cfg.Cache.CategoryTTL, cfg.Cache.HotTTL)
	permsSvc := perms.NewService(st, hotCache, cfg.Cache.HotTTL)
	recruitSvc := recruit.NewService(st, groupsSvc, lookup.NewResolver(st))
	derivedSvc := derived.NewService(st, hotCache)
	bridge := discord.NewBridge(st, durableCache, cfg.Cache.AutoRecruitTTL, cfg.Discord.InviteRatePerMinute)

	// Initialize task client and the shared invite rate limiter
	taskClient := tasks.NewTaskClient(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error("Failed to close task client", err)
		}
	}()

	inviteLimiter := rate.NewQueueRateLimiter(taskClient.GetRedisClient(), rate.QueueConfig{
		Name: "discord",
		RateLimit: rate.RateLimit{
			Window:  time.Minute,
			MaxJobs: cfg.Discord.InviteRatePerMinute,
		},
	})

	// Initialize task handlers
	taskHandler := tasks.NewTaskHandler(recruitSvc, derivedSvc, bridge, inviteLimiter)

	// Initialize task server
	taskServer := tasks.NewServer(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Worker.Concurrency,
		taskHandler,
		logger,
	)

	// Create a context for task server
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	// Start task server
	go func() {
		if err := taskServer.Start(serverCtx); err != nil {
			logger.Error("Task server error", err)
		}
	}()

	// Initialize task scheduler
	taskScheduler := tasks.NewScheduler(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		logger,
	)

	// Start task scheduler
	go func() {
		if err := taskScheduler.Start(); err != nil {
			logger.Error("Task scheduler error", err)
		}
	}()

	// Initialize API server
	apiServer := api.NewServer(cfg, db_instance, registry.Services{
		Groups:  groupsSvc,
		Perms:   permsSvc,
		Recruit: recruitSvc,
		Derived: derivedSvc,
		Bridge:  bridge,
	})
	go func() {

		if cfg.Storage.Provider == "s3" || cfg.Storage.Provider == "r2" {
			// Initialize S3 service
			s3Service, err := services.NewS3Service(
				cfg.Storage.S3.BucketName,
				cfg.Storage.S3.Endpoint,
				cfg.Storage.S3.Region,
				cfg.Storage.S3.AccessKey,
				cfg.Storage.S3.SecretKey,
			)
			if err != nil {
				log.Fatalf("Failed to initialize S3 service: %v", err)
			}

			// Register the URL generator
			models.RegisterFileURLGenerator(s3Service)
			handlers.RegisterStorageHandler(s3Service)
		}

		logger.Success("API server started")

		// Swagger documentation
		swagger.SwaggerInfo.Title = "GuildHub API Documentation"
		swagger.SwaggerInfo.Description = "Group membership, permissions and recruitment engine"
		swagger.SwaggerInfo.Version = "1.0"
		swagger.SwaggerInfo.Host = "api.guildhub.dev"
		swagger.SwaggerInfo.Schemes = []string{"https"}

		if err := apiServer.Start(); err != nil {
			logger.Error("API server error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop task scheduler
	taskScheduler.Stop()

	// Stop task server
	serverCancel()

	// Shutdown API server
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown API server", err)
	}

	logger.Info("Servers shutdown gracefully")
}
