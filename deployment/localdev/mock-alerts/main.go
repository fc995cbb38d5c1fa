package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/stoicmail/reflection-guard/internal/alerting"
)

// maxKept bounds the notifications kept for GET /alerts.
const maxKept = 100

type inbox struct {
	mu       sync.Mutex
	received []alerting.Notification
}

func (in *inbox) add(n alerting.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.received = append(in.received, n)
	if len(in.received) > maxKept {
		in.received = in.received[len(in.received)-maxKept:]
	}
}

func (in *inbox) list() []alerting.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]alerting.Notification{}, in.received...)
}

func newMux(logger *log.Logger, box *inbox) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/alerts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var n alerting.Notification
			if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			box.add(n)
			logger.Printf("%s\n%s", n.Subject, n.Body)
			w.WriteHeader(http.StatusAccepted)
		case http.MethodGet:
			writeJSON(w, map[string]any{"alerts": box.list()})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func main() {
	addr := os.Getenv("MOCK_ALERTS_ADDR")
	if addr == "" {
		addr = ":8089"
	}

	logger := log.New(log.Writer(), "alerts-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, newMux(logger, &inbox{})),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s (point notifications.webhook.url at http://localhost%s/alerts)", addr, addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
