// Package main provides the main entry point for the Susanoo campaign orchestrator
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Susanoo/app/handlers"
	"github.com/amirphl/Susanoo/app/middleware"
	"github.com/amirphl/Susanoo/app/router"
	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/app/stream"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/config"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Susanoo application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger to stdout and/or a rotated file
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(rotated)
	default:
		log.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if !cfg.Enabled {
		log.Println("Database disabled, falling back to in-memory stores")
		return nil, nil
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(&models.TargetSendState{}, &models.DeliveryLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// initializeBackendClient picks the configured send backend implementation
func initializeBackendClient(cfg config.BackendConfig) services.BackendClient {
	if cfg.UseMock {
		log.Println("Using mock send backend")
		return services.NewMockBackendClient()
	}
	return services.NewHTTPBackendClient(cfg.BaseURL, cfg.APIKey)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	var sendStateRepo repository.SendStateRepository
	var deliveryLogRepo repository.DeliveryLogRepository
	if db != nil {
		sendStateRepo = repository.NewSendStateRepository(db)
		deliveryLogRepo = repository.NewDeliveryLogRepository(db)
	} else {
		sendStateRepo = repository.NewMemorySendStateRepository()
		deliveryLogRepo = repository.NewMemoryDeliveryLogRepository()
	}

	// Initialize services
	backendClient := initializeBackendClient(cfg.Backend)

	tokenService, err := services.NewTokenService(
		cfg.JWT.SecretKey,
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	registry := businessflow.NewTargetRegistry(sendStateRepo, deliveryLogRepo, db)

	// Seed cooldown and block facts from the durable store. A failure here
	// is not fatal: the registry starts permissive and fills in as events
	// arrive.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := registry.LoadSendStates(loadCtx); err != nil {
		log.Printf("Failed to load send states, starting cold: %v", err)
	}
	loadCancel()

	dispatchFlow := businessflow.NewDispatchFlow(registry, backendClient, cfg.Dispatch.Cooldown, cfg.Dispatch.BatchSize)
	verificationFlow := businessflow.NewVerificationFlow(registry, backendClient, cfg.Dispatch.ConfirmDuration)
	reportFlow := businessflow.NewReportFlow(deliveryLogRepo)

	// Start the status stream listener
	if rc != nil {
		source := stream.NewRedisSource(rc, cfg.Stream.Channel)
		listener := stream.NewStatusListener(source, dispatchFlow, cfg.Stream.StaleTimeout, cfg.Stream.BackoffMin, cfg.Stream.BackoffMax)
		stopListener := listener.Start(context.Background())
		stopFuncs = append(stopFuncs, stopListener)
		log.Printf("Status stream listener started on channel %s", cfg.Stream.Channel)
	} else {
		log.Println("Redis disabled, status stream listener not started")
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(tokenService, cfg.JWT.ConsoleKey, int64(cfg.JWT.AccessTokenTTL.Seconds()))
	consoleHandler := handlers.NewConsoleHandler(registry, dispatchFlow, verificationFlow, reportFlow)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authHandler,
		consoleHandler,
		authMiddleware,
		cfg.Metrics.Enabled,
		cfg.Metrics.Path,
	)

	application := &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
