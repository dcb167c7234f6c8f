package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/castleryder/dividend-harvest/internal/api"
	"github.com/castleryder/dividend-harvest/internal/api/handlers"
	"github.com/castleryder/dividend-harvest/internal/search"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                     - Health check
  GET  /api/harvest                - Ranked result set (cached up to HARVEST_CACHE_TTL)
  POST /api/harvest/refresh        - Force a fresh run
  GET  /api/harvest/summary        - Dashboard metrics
  GET  /api/harvest/export.csv     - CSV export of the latest run
  GET  /api/harvest/search?q=      - Search the latest run
  GET  /api/harvest/records/{code} - One record of the latest run
  GET  /api/runs                   - Run history (DATABASE_URL only)
  GET  /api/runs/{id}              - Records of one run
  GET  /ws                         - Refresh events

Example:
  go run ./cmd/harvest api
  go run ./cmd/harvest api --port 9090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default $PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// Search index, seeded from the last persisted run
	index, err := search.NewIndex(log)
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	defer index.Close()
	if latest, err := a.service.Latest(cmd.Context()); err == nil {
		if err := index.Publish(cmd.Context(), latest.ResultSet); err != nil {
			log.WithError(err).Warn("Failed to seed search index")
		}
	}
	a.service.AddSink(index)

	hub := api.NewHub(log)
	defer hub.Close()
	a.service.AddSink(hub)

	var runs handlers.RunHistory
	if a.history != nil {
		runs = a.history
	}

	harvestHandler := handlers.NewHarvestHandler(a.service, index, runs, log)
	if a.mirror != nil {
		harvestHandler.WithMirror(a.mirror, a.service.Provider())
	}

	var dbHealth api.HealthChecker
	if a.db != nil {
		dbHealth = a.db
	}
	router := api.NewRouter(harvestHandler, hub, dbHealth, log)
	server := api.New(cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	out := cmd.OutOrStdout()
	PrintSuccess(out, fmt.Sprintf("Server running on http://localhost:%s", cfg.Port))
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
