/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Ink ledger service.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse flags
  2. Load TOML config + environment overrides
  3. Build the zap logger
  4. Open the SQLite store
  5. Wire the ledger service and HTTP router
  6. Serve with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the TOML config file (default: ink.toml; a missing
           file falls back to built-in defaults)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database
  4. Exit

SEE ALSO:
  - config/config.go: Configuration precedence
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/verseloft/ink-engine/api"
	"github.com/verseloft/ink-engine/config"
	"github.com/verseloft/ink-engine/ink"
	"github.com/verseloft/ink-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "ink.toml", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	svc := ink.NewService(store, ink.Policy{
		WelcomeBonus:   cfg.Ink.WelcomeBonus,
		DailyFreeCap:   cfg.Ink.DailyFreeCap,
		MonthlyFreeCap: cfg.Ink.MonthlyFreeCap,
	})

	router := api.NewRouter(api.NewHandler(svc, log))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.Database.Path),
			zap.Int64("welcome_bonus", cfg.Ink.WelcomeBonus),
			zap.Int("daily_free_cap", cfg.Ink.DailyFreeCap),
			zap.Int("monthly_free_cap", cfg.Ink.MonthlyFreeCap))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
