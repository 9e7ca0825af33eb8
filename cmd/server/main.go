/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rank progression server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Resolve ladders and point table (LADDER_CONFIG or built-in presets)
  3. Open the store (SQLite or Postgres)
  4. Build the progression service and backfill legacy records
  5. Configure HTTP router and start the job scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port          HTTP server port (default: 8080)
  -driver        sqlite | postgres (default: sqlite)
  -db            SQLite database path (default: ranks.db)
                 Use ":memory:" for in-memory database
  -dsn           Postgres connection string
  -tz            Time zone for day and week boundaries (default: UTC)
  -ladders       Ladder config file (YAML or JSON)
  -scheduler     Run scheduled jobs (default: true)
  -dump-ladders  Print the effective ladder config and exit

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (running jobs stop between records)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ranks.db"

  # Run against Postgres with a custom ladder
  DATABASE_URL=postgres://... ./server -driver=postgres -ladders=ladders.yaml

  # Start a ladder file from the presets
  ./server -dump-ladders > ladders.yaml

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - api/scheduler.go: Scheduled jobs
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/rank-engine/api"
	"github.com/warp/rank-engine/config"
	"github.com/warp/rank-engine/factory"
	"github.com/warp/rank-engine/progression"
	"github.com/warp/rank-engine/ranks"
	"github.com/warp/rank-engine/store/postgres"
	"github.com/warp/rank-engine/store/sqlite"
)

// store is what both database backends provide.
type store interface {
	progression.Store
	Close() error
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ladders, points, err := loadLadders(cfg.LadderConfig)
	if err != nil {
		log.Fatalf("Failed to load ladders: %v", err)
	}
	if cfg.DumpLadders {
		out, err := factory.FromLadders(ladders, points).EncodeYAML()
		if err != nil {
			log.Fatalf("Failed to encode ladders: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	// Initialize store
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer st.Close()

	svc, err := progression.NewService(progression.Config{
		Members:  st,
		Events:   st,
		Runs:     st,
		Ladders:  ladders,
		Points:   points,
		Location: cfg.Location,
	})
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	// Backfill records written before the current ladder
	sum, err := svc.MigrateAll(context.Background(), progression.SystemActor)
	if err != nil {
		log.Printf("Warning: backfill incomplete: %v", err)
	} else if sum.Updated > 0 {
		log.Printf("Backfilled %d of %d members", sum.Updated, sum.Scanned)
	}

	scheduler := api.NewJobScheduler(svc)
	scheduler.WeeklyCron = cfg.WeeklyCron
	scheduler.DailyCron = cfg.DailyCron
	scheduler.LockSweepInterval = cfg.LockSweepInterval
	scheduler.Enabled = cfg.SchedulerEnabled
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	router := api.NewRouter(api.NewHandler(svc), cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d (%s store, zone %s)", cfg.Port, cfg.Driver, cfg.Location)
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

func loadLadders(path string) (*progression.Ladders, *progression.PointTable, error) {
	if path == "" {
		return ranks.StandardLadders(), ranks.StandardPoints(), nil
	}
	doc, err := factory.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Using ladder config %s", path)
	return doc.Build()
}

func openStore(cfg config.Config) (store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(cfg.DatabaseURL)
	default:
		return sqlite.New(cfg.DBPath)
	}
}
