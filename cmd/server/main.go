/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, SHIFT_* environment, flags)
  2. Build the logger
  3. Initialize SQLite store (migrations run on open)
  4. Load the policy and the holiday calendar
  5. Create API handler and router
  6. Start the payroll scheduler when enabled
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SHIFT_HTTP_PORT)
  -db      SQLite database path (overrides SHIFT_DB_PATH)
           Use ":memory:" for in-memory database
  -policy  Policy JSON file (overrides SHIFT_POLICY_FILE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the payroll scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/shifts.db"

  # Run with in-memory database and a custom policy
  ./server -db=":memory:" -policy=./policy.json

  # Run on different port
  SHIFT_HTTP_PORT=3000 ./server

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/shift-engine/api"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/logging"
	"github.com/warp/shift-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.HTTPPort, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	policyFile := flag.String("policy", cfg.PolicyFile, "Policy JSON file")
	flag.Parse()
	cfg.HTTPPort, cfg.DBPath, cfg.PolicyFile = *port, *dbPath, *policyFile
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	policy, err := factory.NewPolicyFactory().LoadFile(cfg.PolicyFile)
	if err != nil {
		return err
	}
	cal, err := calendar.NewProvider(cfg.Region)
	if err != nil {
		return err
	}

	// Initialize handler
	handler := api.NewHandler(store, cal, *policy, logger)
	handler.Payroll.Workers = cfg.PayrollWorkers

	// Create router
	router := api.NewRouter(handler, cfg.CORSOrigins)

	scheduler := api.NewPayrollScheduler(handler.Payroll, logger)
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.CheckInterval = cfg.SchedulerInterval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", server.Addr,
			"db", cfg.DBPath,
			"region", string(cal.DefaultRegion()),
			"policy", policy.ID)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
