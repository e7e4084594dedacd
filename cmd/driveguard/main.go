package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/driveguard/driveguard/internal/config"
	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/feed"
	"github.com/driveguard/driveguard/internal/handlers"
	"github.com/driveguard/driveguard/internal/jobs"
	"github.com/driveguard/driveguard/internal/livestatus"
	"github.com/driveguard/driveguard/internal/middleware"
	"github.com/driveguard/driveguard/internal/notify"
	"github.com/driveguard/driveguard/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting DriveGuard monitor...")

	// Initialize JWT authentication middleware
	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	// Hash the admin password
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
			"/ingest/*",
			"/ws/*",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Device API keys guard the ingestion endpoints; every other surface
	// is either public or behind JWT
	deviceAuthMiddleware := middleware.NewDeviceAuthMiddleware(&middleware.DeviceAuthConfig{
		APIKeys: cfg.DeviceAPIKeys,
		Enabled: cfg.DeviceAuthOn,
		SkipPaths: []string{
			"/health",
			"/auth/*",
			"/api/*",
			"/ws/*",
		},
	})
	if cfg.DeviceAuthOn {
		log.Printf("Device authentication enabled with %d key(s)", len(cfg.DeviceAPIKeys))
	} else {
		log.Printf("Device authentication DISABLED (set DEVICE_API_KEYS to enable)")
	}

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize default database records
	if err := database.InitializeDefaults(); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}

	// Live status store and change feed: NATS when configured, in-memory otherwise
	var liveStore livestatus.Store
	var bus feed.Bus
	if cfg.NATSURL != "" {
		natsStore, err := livestatus.NewNATSStore(cfg.NATSURL, cfg.LiveStatusKV)
		if err != nil {
			log.Fatalf("Failed to connect live status store to NATS: %v", err)
		}
		defer natsStore.Close()
		liveStore = natsStore

		natsBus, err := feed.NewNATSBus(cfg.NATSURL)
		if err != nil {
			log.Fatalf("Failed to connect change feed to NATS: %v", err)
		}
		defer natsBus.Close()
		bus = natsBus
		log.Printf("Live status and change feed backed by NATS at %s", cfg.NATSURL)
	} else {
		memStore := livestatus.NewMemoryStore(time.Now)
		defer memStore.Close()
		liveStore = memStore

		memBus := feed.NewMemoryBus()
		defer memBus.Close()
		bus = memBus
		log.Printf("Live status and change feed running in-memory (set NATS_URL for clustering)")
	}

	// Initialize services
	db := database.GetDB()
	eventService := services.NewEventService(db, bus)
	alertService := services.NewAlertService(db, bus)
	statsService := services.NewStatsService(db)
	driverService := services.NewDriverService(db, bus)
	auditService := services.NewAuditService(db)
	rosterService := services.NewRosterService(driverService, liveStore)
	pipeline := services.NewPipeline(eventService, alertService, liveStore, auditService)
	log.Printf("Services initialized")

	// Slack notifier for critical alerts
	slackNotifier := notify.NewSlackNotifier(alertService)
	if err := slackNotifier.Start(); err != nil {
		log.Printf("Warning: Failed to start Slack notifier: %v", err)
	}
	defer slackNotifier.Stop()

	// Background jobs
	stopJobs := make(chan struct{})
	defer close(stopJobs)

	statsRollup := jobs.NewStatsRollup(eventService, driverService, statsService)
	go statsRollup.Start(cfg.StatsRollupInterval, stopJobs)
	go rosterService.Start(cfg.RosterPollInterval, stopJobs)
	log.Printf("Background jobs started (stats rollup every %s, roster poll every %s)",
		cfg.StatsRollupInterval, cfg.RosterPollInterval)

	// Initialize handlers
	httpHandler := handlers.NewHTTPHandler()
	apiHandler := handlers.NewAPIHandler(
		eventService,
		alertService,
		statsService,
		driverService,
		auditService,
		rosterService,
		pipeline,
	)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)
	liveWSHandler := handlers.NewLiveWSHandler(liveStore, alertService)
	ingestHandler := handlers.NewIngestHandler(pipeline, eventService)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)
	liveWSHandler.SetupRoutes(mux)
	ingestHandler.SetupRoutes(mux)

	// Middleware chain: CORS, then request IDs, then JWT for the API
	// surface and device keys for the ingestion surface
	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := corsMiddleware.Wrap(
		middleware.RequestIDMiddleware(
			jwtAuthMiddleware.Wrap(
				deviceAuthMiddleware.Wrap(mux))))

	// Start HTTP server in goroutine
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Monitor is running! Press Ctrl+C to exit.")
	log.Printf("Device ingestion endpoint: http://localhost:%d/ingest/events", cfg.HTTPPort)
	log.Printf("Live status WebSocket: ws://localhost:%d/ws/live", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("\nReceived shutdown signal, cleaning up...")
	log.Println("Shutting down HTTP server...")
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	log.Println("Shutdown complete")
}
