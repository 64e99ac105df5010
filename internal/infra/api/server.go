package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"premium-order-sync/internal/usecase"
)

// Limiter is satisfied by the Redis fixed-window rate limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// HealthInfo is reported by GET /health.
type HealthInfo struct {
	Provider           string
	GatewayConfigured  bool
	NotifierConfigured bool
	CacheConfigured    bool
	Version            string
}

type ServerOptions struct {
	RequestTimeout time.Duration
	// Limits apply per operator to the write routes. Zero disables limiting.
	SyncPerWindow int
	Window        time.Duration
	Health        HealthInfo
}

// Server is the operator HTTP surface over the reconciliation use case.
type Server struct {
	uc      usecase.ReconcileUseCase
	auth    *AuthManager
	limiter Limiter
	opts    ServerOptions
	log     *zerolog.Logger
}

// NewServer wires the API. limiter may be nil.
func NewServer(uc usecase.ReconcileUseCase, auth *AuthManager, limiter Limiter, opts ServerOptions, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{uc: uc, auth: auth, limiter: limiter, opts: opts, log: &l}
}

// Routes builds the full handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), CountRequests(), Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware, Timeout(s.opts.RequestTimeout))

		r.Get("/pending-orders", s.handlePendingOrders)
		r.With(s.rateLimit("sync")).Post("/sync-pending-orders", s.handleSyncPending)
		r.Get("/orders", s.handleListOrders)
		r.With(s.rateLimit("refresh")).Post("/orders/refresh", s.handleRefreshOrders)
		r.Get("/orders/{orderID}/status", s.handleOrderStatus)
		r.Get("/orders/{orderID}/payments", s.handleOrderPayments)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.opts.Health
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": h.Provider,
		"version":  h.Version,
		"checks": map[string]bool{
			"gateway_configured":  h.GatewayConfigured,
			"notifier_configured": h.NotifierConfigured,
			"cache_configured":    h.CacheConfigured,
		},
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}
