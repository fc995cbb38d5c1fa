package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessFunc reports whether dependencies are reachable.
type ReadinessFunc func(ctx context.Context) error

// NewAdminRouter serves Prometheus metrics and liveness/readiness probes.
func NewAdminRouter(metrics http.Handler, ready ReadinessFunc) *mux.Router {
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	router := mux.NewRouter()
	router.Handle("/metrics", metrics).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok", "")
	}).Methods(http.MethodGet)
	router.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "unavailable", err.Error())
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready", "")
	}).Methods(http.MethodGet)
	return router
}

func writeStatus(w http.ResponseWriter, code int, status, detail string) {
	body := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
	}
	if detail != "" {
		body["error"] = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
