// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and keep transport concerns out of business logic.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/export"
	"rollcall/internal/ledger"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/platform/middleware"
	"rollcall/internal/roster"
)

// requestTimeout bounds every handler; remote-store latency included.
const requestTimeout = 30 * time.Second

// Handler carries the domain services the routes delegate to.
type Handler struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	cache         *roster.Cache
	ledger        *ledger.Service
	aggregator    *export.Aggregator
	shortlistSize int
	health        func(ctx context.Context) error
}

type Option func(*Handler)

// WithHealthCheck adds a backing-store probe to /healthz.
func WithHealthCheck(probe func(ctx context.Context) error) Option {
	return func(h *Handler) {
		h.health = probe
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func NewHandler(
	cache *roster.Cache,
	ledgerSvc *ledger.Service,
	aggregator *export.Aggregator,
	shortlistSize int,
	logger *slog.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		logger:        logger,
		cache:         cache,
		ledger:        ledgerSvc,
		aggregator:    aggregator,
		shortlistSize: shortlistSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires all endpoints with the shared middleware chain.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(requestTimeout))
	if h.metrics != nil {
		r.Use(middleware.Latency(h.metrics))
	}

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/search", h.handleSearch)
	r.Post("/checkin", h.handleCheckIn)

	r.Get("/attendance/dates", h.handleListDates)
	r.Get("/attendance/{date}", h.handleAttendanceForDate)
	r.Get("/export.csv", h.handleExport)

	r.Route("/admin/users", func(r chi.Router) {
		r.Get("/", h.handleListUsers)
		r.Post("/", h.handleAddUser)
		r.Put("/{id}", h.handleUpdateUser)
		r.Delete("/{id}", h.handleDeleteUser)
	})
	r.Post("/admin/roster/refresh", h.handleRefreshRoster)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
