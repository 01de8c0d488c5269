package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/Ananth-NQI/pbx-ivr-backend/database"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/config"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/dialog"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/jobs"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/metrics"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/middleware"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/routes"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/services"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/session"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	metrics.Init()

	// Initialize storage
	var store storage.Store
	if cfg.UseMemoryStore {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore(cfg.SubscriptionDays)
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		db, err := database.Connect(cfg)
		if err != nil {
			log.Fatal(err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatal(err)
		}
		store = storage.NewDatabaseStore(db, cfg.SubscriptionDays)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Initialize sessions
	sessions, err := newSessionStore(cfg)
	if err != nil {
		log.Fatal("Failed to initialize session store: ", err)
	}
	defer sessions.Close()

	// Initialize dialogue engine
	opts := []dialog.Option{}
	if cfg.TwilioConfigured() {
		twilioService, err := services.NewTwilioService(cfg)
		if err != nil {
			log.Fatal("Failed to initialize Twilio service: ", err)
		}
		opts = append(opts, dialog.WithNotifier(twilioService))
		log.Println("✅ Twilio service initialized")
	} else {
		log.Println("⚠️  Twilio credentials not found - receipt SMS disabled")
	}

	engine := dialog.NewEngine(sessions, store, dialog.Config{
		MaxAttempts: cfg.MaxAttempts,
		Extensions:  cfg.Extensions,
	}, opts...)

	// Start session sweep
	sweepJob := jobs.NewSessionSweepJob(sessions, cfg.SessionSweepInterval)
	sweepJob.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "PBX IVR Backend v" + routes.Version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg, engine, store, sessions)

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping session sweep...")
		sweepJob.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 PBX IVR Backend starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", getStorageType(cfg))
	log.Printf("🗂️  Sessions: %s (ttl %v)", cfg.SessionBackend, cfg.SessionTTL)
	log.Printf("🌍 Environment: %s", getEnvironment(cfg))
	log.Printf("☎️  Extensions: login %s, register %s, receipts %s, menu %s",
		cfg.Extensions.Login, cfg.Extensions.Register, cfg.Extensions.ReceiptMenu, cfg.Extensions.CustomerMenu)
	log.Println("========================================")

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	if cfg.SessionBackend != config.SessionBackendRedis {
		return session.NewMemoryStore(cfg.SessionTTL).WithLockWait(cfg.SessionLockWait), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Printf("✅ Redis session store connected at %s", cfg.RedisAddr)
	return session.NewRedisStore(client, cfg.SessionTTL,
		session.WithLockWait(cfg.SessionLockWait),
		session.WithLockTTL(cfg.SessionLockTTL),
	), nil
}

func getEnvironment(cfg *config.Config) string {
	if cfg.IsProduction() {
		return "Production (Cloud Run)"
	}
	return "Development (Local)"
}

func getStorageType(cfg *config.Config) string {
	if cfg.UseMemoryStore {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}
