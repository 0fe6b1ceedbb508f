/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the accrual engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Load the community configuration file
  3. Initialize SQLite store and the record locker
  4. Create services, API handler and router
  5. Start the contribution scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port       HTTP server port (PORT, default: 8080)
  -db         SQLite database path (DATABASE_PATH, default: accrual.db)
              Use ":memory:" for in-memory database
  -community  Community JSON path (COMMUNITY_CONFIG, default: community.json)

ENVIRONMENT:
  JWT_SECRET          Admin token secret (empty disables the admin guard)
  REDIS_ADDR          Redis for record locks across instances
  RATE_LIMIT_RPS      Requests per second per client IP
  RATE_LIMIT_BURST    Burst size per client IP
  SCHEDULER_INTERVAL  Contribution housekeeping interval (e.g. 1h)
  SCHEDULER_ENABLED   Set false to disable housekeeping
  ALLOWED_ORIGINS     Comma-separated CORS origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database and Redis connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/accrual.db" -community="./community.json"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - factory/community.go: Community configuration format
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/accrual-engine/api"
	"github.com/warp/accrual-engine/config"
	"github.com/warp/accrual-engine/contribution"
	"github.com/warp/accrual-engine/factory"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
	"github.com/warp/accrual-engine/store/redislock"
	"github.com/warp/accrual-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path")
	flag.StringVar(&cfg.CommunityConfig, "community", cfg.CommunityConfig, "Community configuration JSON path")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	community, policy, err := factory.NewCommunityFactory().LoadFile(cfg.CommunityConfig)
	if err != nil {
		log.Fatalf("Failed to load community config: %v", err)
	}
	log.Printf("[Config] community %q opened %s, contribution %s, loan rate %s%%, settlement %s/%s",
		community.Name, generic.FormatDate(community.OpeningDate),
		community.DefaultContribution.StringFixed(2), community.StandardLoanRate.Percent, policy.Guard, policy.Basis)

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize locker
	var locker generic.Locker = generic.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()

		rl := redislock.New(client, redislock.Options{})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rl.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to reach Redis at %s: %v", cfg.RedisAddr, err)
		}
		locker = rl
		log.Printf("[Lock] using Redis at %s", cfg.RedisAddr)
	}

	// Initialize services
	loans := loan.NewService(store, locker, community, policy)
	contributions := contribution.NewService(store, locker, community)
	handler := api.NewHandler(loans, contributions)
	handler.Reset = store.Reset

	if cfg.JWTSecret == "" {
		log.Println("[Auth] JWT_SECRET not set, admin endpoints are open")
	}

	// Create router
	router := api.NewRouter(handler, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	// Start scheduler
	scheduler := api.NewScheduler(contributions)
	scheduler.CheckInterval = cfg.SchedulerInterval
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
