package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/passbi/ridepool/internal/api"
	"github.com/passbi/ridepool/internal/cache"
	"github.com/passbi/ridepool/internal/db"
	"github.com/passbi/ridepool/internal/dispatch"
	"github.com/passbi/ridepool/internal/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.Println("Starting ridepool API server...")

	// Both backends are optional: without them runs are neither cached nor archived
	var runs api.RunArchive
	if pool, err := db.GetDB(); err != nil {
		log.Printf("Warning: database unavailable, runs will not be archived: %v", err)
	} else {
		defer db.Close()
		store := db.NewRunStore(pool)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := store.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to prepare database schema: %v", err)
		}
		runs = store
		log.Println("✓ Database connection established")
	}

	var resultCache api.ResultCache
	var rdb *redis.Client
	if client, err := cache.GetClient(); err != nil {
		log.Printf("Warning: Redis unavailable, caching and rate limiting disabled: %v", err)
	} else {
		defer cache.Close()
		rdb = client
		resultCache = cache.NewStore(client, cache.LoadConfigFromEnv())
		log.Println("✓ Redis connection established")
	}

	limits := dispatch.LoadLimitsFromEnv()
	log.Printf("Run limits: %d rides, %d events", limits.MaxRides, limits.MaxEvents)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ridepool API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: api.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use("/v1", middleware.RateLimit(rdb, middleware.LoadRateLimitConfigFromEnv()))

	// Routes
	handler := api.NewHandler(resultCache, runs, limits)
	handler.Register(app)

	// 404 handler
	app.Use(api.NotFound)

	// Get port from environment
	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	// Start server
	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("🚕 Simulations: POST http://localhost%s/v1/simulations", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
