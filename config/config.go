/*
Package config resolves the server configuration.

PRECEDENCE (lowest to highest):
  1. Built-in defaults
  2. .env file in the working directory (joho/godotenv, optional)
  3. Process environment
  4. Command-line flags

ENVIRONMENT:
  PORT                 HTTP port (default 8080)
  DB_DRIVER            sqlite | postgres (default sqlite)
  DB_PATH              SQLite database path (default ranks.db)
  DATABASE_URL         Postgres DSN, required when DB_DRIVER=postgres
  TIMEZONE             IANA zone for day/week boundaries (default UTC)
  WEEKLY_RESET_CRON    Weekly reset schedule (default "0 0 * * 1")
  DAILY_RESET_CRON     Daily reset schedule (default "0 0 * * *")
  LOCK_SWEEP_INTERVAL  Go duration, 0 disables (default 15m)
  LADDER_CONFIG        YAML/JSON ladder file; empty uses the built-in presets
  ALLOWED_ORIGINS      Comma-separated CORS origins
  SCHEDULER_ENABLED    true | false (default true)
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal images

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the resolved server configuration.
type Config struct {
	Port              int
	Driver            string
	DBPath            string
	DatabaseURL       string
	Location          *time.Location
	WeeklyCron        string
	DailyCron         string
	LockSweepInterval time.Duration
	LadderConfig      string
	AllowedOrigins    []string
	SchedulerEnabled  bool

	// DumpLadders prints the effective ladder config as YAML and exits.
	DumpLadders bool
}

// Load reads .env (if present), the environment and then args.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Println("[Config] No .env file found, reading environment variables directly")
		} else {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}
	return Parse(args, os.Getenv)
}

// Parse resolves a Config from getenv and command-line args.
func Parse(args []string, getenv func(string) string) (Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	port, err := strconv.Atoi(env("PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("PORT: %w", err)
	}
	sweep, err := time.ParseDuration(env("LOCK_SWEEP_INTERVAL", "15m"))
	if err != nil {
		return Config{}, fmt.Errorf("LOCK_SWEEP_INTERVAL: %w", err)
	}
	schedOn, err := strconv.ParseBool(env("SCHEDULER_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("SCHEDULER_ENABLED: %w", err)
	}

	cfg := Config{}
	var zone, origins string

	fsFlags := flag.NewFlagSet("server", flag.ContinueOnError)
	fsFlags.IntVar(&cfg.Port, "port", port, "HTTP server port")
	fsFlags.StringVar(&cfg.Driver, "driver", env("DB_DRIVER", DriverSQLite), "Storage driver (sqlite, postgres)")
	fsFlags.StringVar(&cfg.DBPath, "db", env("DB_PATH", "ranks.db"), "SQLite database path")
	fsFlags.StringVar(&cfg.DatabaseURL, "dsn", env("DATABASE_URL", ""), "Postgres connection string")
	fsFlags.StringVar(&zone, "tz", env("TIMEZONE", "UTC"), "Time zone for day and week boundaries")
	fsFlags.StringVar(&cfg.WeeklyCron, "weekly-cron", env("WEEKLY_RESET_CRON", "0 0 * * 1"), "Weekly reset cron expression")
	fsFlags.StringVar(&cfg.DailyCron, "daily-cron", env("DAILY_RESET_CRON", "0 0 * * *"), "Daily reset cron expression")
	fsFlags.DurationVar(&cfg.LockSweepInterval, "lock-sweep", sweep, "Lock expiry sweep interval (0 disables)")
	fsFlags.StringVar(&cfg.LadderConfig, "ladders", env("LADDER_CONFIG", ""), "Ladder config file (YAML or JSON)")
	fsFlags.StringVar(&origins, "origins", env("ALLOWED_ORIGINS", ""), "Comma-separated CORS origins")
	fsFlags.BoolVar(&cfg.SchedulerEnabled, "scheduler", schedOn, "Run scheduled jobs")
	fsFlags.BoolVar(&cfg.DumpLadders, "dump-ladders", false, "Print the effective ladder config as YAML and exit")
	if err := fsFlags.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Driver = strings.ToLower(cfg.Driver)
	switch cfg.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return Config{}, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}

	cfg.Location, err = time.LoadLocation(zone)
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE: %w", err)
	}
	if cfg.LockSweepInterval < 0 {
		return Config{}, fmt.Errorf("LOCK_SWEEP_INTERVAL must not be negative, got %v", cfg.LockSweepInterval)
	}

	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg, nil
}
