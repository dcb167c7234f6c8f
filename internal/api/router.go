package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/castleryder/dividend-harvest/internal/api/handlers"
	"github.com/castleryder/dividend-harvest/pkg/database"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// healthTimeout bounds the dependency checks of /health
const healthTimeout = 3 * time.Second

// HealthChecker reports the state of an optional dependency on /health
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// NewRouter creates and configures the HTTP router. hub and db may be nil.
// ⭐ SSOT: routes are declared in this function only
func NewRouter(harvestHandler *handlers.HarvestHandler, hub *Hub, db HealthChecker, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(db, log)).Methods("GET")

	if hub != nil {
		r.HandleFunc("/ws", hub.ServeWS).Methods("GET")
	}

	// Harvest endpoints. Registered with full paths on the root router so a
	// wrong method answers 405 rather than 404.
	r.HandleFunc("/api/harvest", harvestHandler.GetHarvest).Methods("GET")
	r.HandleFunc("/api/harvest/refresh", harvestHandler.Refresh).Methods("POST")
	r.HandleFunc("/api/harvest/summary", harvestHandler.GetSummary).Methods("GET")
	r.HandleFunc("/api/harvest/export.csv", harvestHandler.ExportCSV).Methods("GET")
	r.HandleFunc("/api/harvest/search", harvestHandler.Search).Methods("GET")
	r.HandleFunc("/api/harvest/records/{code}", harvestHandler.GetRecord).Methods("GET")

	// Run history
	if harvestHandler.HasHistory() {
		r.HandleFunc("/api/runs", harvestHandler.ListRuns).Methods("GET")
		r.HandleFunc("/api/runs/{id}", harvestHandler.GetRun).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status. With a database
// configured, a failed ping reports "degraded" with 503.
func healthCheckHandler(db HealthChecker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "dividend-harvest-api",
		}
		status := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()

			health, err := db.HealthCheck(ctx)
			if err != nil {
				log.WithError(err).Warn("Database health check failed")
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
			body["database"] = health
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
