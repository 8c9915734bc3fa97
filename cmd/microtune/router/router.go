// Package router configures the status server's HTTP routes.
//
// Routes configured:
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//   - GET /runs - All registered benchmark runs
//   - GET /runs/current?deployment=<name> - Latest run for a deployment
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/microtune/microtune/pkg/httpx"
	"github.com/microtune/microtune/pkg/storage"
)

var deploymentNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// SetupRoutes configures the status endpoints over the run registry.
func SetupRoutes(registry storage.Store, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandlerWithCheck(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := registry.List(ctx)
		return err
	}))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/runs", handleListRuns(registry, logger))
	mux.HandleFunc("/runs/current", handleCurrentRun(registry, logger))

	return mux
}

// handleListRuns returns a handler for GET /runs.
func handleListRuns(registry storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		records, err := registry.List(ctx)
		if err != nil {
			logger.Error("failed to list runs", "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if records == nil {
			records = []storage.RunRecord{}
		}

		if err := httpx.WriteJSON(w, http.StatusOK, records); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleCurrentRun returns a handler for GET /runs/current?deployment=<name>.
func handleCurrentRun(registry storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deployment := r.URL.Query().Get("deployment")
		if deployment == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "deployment parameter required")
			return
		}

		if !deploymentNameRegex.MatchString(deployment) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid deployment name format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		record, found, err := registry.GetLatest(ctx, deployment)
		if err != nil {
			logger.Error("failed to get run", "deployment", deployment, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no runs recorded for deployment %q", deployment))
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, record); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
