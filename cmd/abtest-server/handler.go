package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	abtest "github.com/tracklab/abtest-go"
)

const maxRequestBody = 64 << 10

// Executor decides creatives for page views. *abtest.Client implements it.
type Executor interface {
	Execute(ctx context.Context, req abtest.ExecuteRequest) (*abtest.Decision, error)
}

type handler struct {
	executor Executor
	log      *slog.Logger
}

// newRouter wires the HTTP surface: the execute endpoint used by the tracker
// script, a health check and the metrics of gatherer.
func newRouter(executor Executor, log *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	h := &handler{executor: executor, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/abtests", func(r chi.Router) {
		r.Use(cors)
		r.Options("/*", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/execute", h.execute)
	})
	return r
}

// cors allows the tracker script to call the API from any site.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

func (h *handler) execute(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req abtest.ExecuteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}
	if req.Language == "" {
		req.Language = r.Header.Get("Accept-Language")
	}

	decision, err := h.executor.Execute(ctx, req)
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("execute failed", "error", err, slog.String("project", req.ProjectID))
		} else {
			h.log.Warn("execute rejected", "error", err, slog.String("project", req.ProjectID))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, abtest.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, abtest.ErrURLMismatch):
		return http.StatusForbidden
	case errors.Is(err, abtest.ErrSnapshotNotLoaded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
