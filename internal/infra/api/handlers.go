package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/infra/logging"
	"premium-order-sync/internal/infra/metrics"
	red "premium-order-sync/internal/infra/redis"
)

// envelope is the body of every /api/v1 response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

type refreshRequest struct {
	OrderIDs []string `json:"orderIds"`
}

func (s *Server) handlePendingOrders(w http.ResponseWriter, r *http.Request) {
	report, err := s.uc.PendingOrders(r.Context())
	if err != nil {
		s.fail(w, r, "pending_orders", err)
		return
	}
	metrics.SetPendingOrders(report.Summary.TotalPending)
	writeData(w, report)
}

func (s *Server) handleSyncPending(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := s.uc.SyncPending(r.Context())
	if err != nil {
		outcome := "failed"
		if errors.Is(err, domain.ErrSyncInProgress) {
			outcome = "skipped"
		}
		metrics.IncBatchRun("sync", outcome)
		s.fail(w, r, "sync", err)
		return
	}
	metrics.ObserveBatch("sync", time.Since(start), res)
	s.logBatch(r, "sync", res)
	writeData(w, res)
}

func (s *Server) handleRefreshOrders(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	start := time.Now()
	res, err := s.uc.RefreshOrders(r.Context(), req.OrderIDs)
	if err != nil {
		s.fail(w, r, "refresh", err)
		return
	}
	metrics.ObserveBatch("refresh", time.Since(start), res)
	s.logBatch(r, "refresh", res)
	writeData(w, res)
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	out, err := s.uc.OrderStatus(logging.WithOrderID(r.Context(), orderID), orderID)
	if err != nil {
		s.fail(w, r, "order_status", err)
		return
	}
	writeData(w, out)
}

func (s *Server) handleOrderPayments(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	payments, err := s.uc.OrderPayments(logging.WithOrderID(r.Context(), orderID), orderID)
	if err != nil {
		s.fail(w, r, "order_payments", err)
		return
	}
	writeData(w, map[string]any{"orderId": orderID, "count": len(payments), "payments": payments})
}

// listParams mirrors the query string of GET /orders.
type listParams struct {
	Count  *int       `json:"count,omitempty"`
	Skip   *int       `json:"skip,omitempty"`
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
	Status *string    `json:"status,omitempty"`
}

func bindListParams(r *http.Request) (model.OrderFilter, error) {
	var p listParams
	q := r.URL.Query()
	for name, dst := range map[string]any{
		"count":  &p.Count,
		"skip":   &p.Skip,
		"from":   &p.From,
		"to":     &p.To,
		"status": &p.Status,
	} {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dst); err != nil {
			return model.OrderFilter{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, name, err)
		}
	}

	f := model.OrderFilter{From: p.From, To: p.To}
	if p.Count != nil {
		f.Count = *p.Count
	}
	if p.Skip != nil {
		f.Skip = *p.Skip
	}
	if p.Status != nil && *p.Status != "" {
		st := model.OrderStatus(*p.Status)
		switch st {
		case model.OrderStatusCreated, model.OrderStatusAttempted, model.OrderStatusPaid,
			model.OrderStatusCancelled, model.OrderStatusFailed:
			f.Status = st
		default:
			return model.OrderFilter{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, *p.Status)
		}
	}
	return f, nil
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	f, err := bindListParams(r)
	if err != nil {
		s.fail(w, r, "list_orders", err)
		return
	}
	listing, err := s.uc.ListGatewayOrders(r.Context(), f)
	if err != nil {
		s.fail(w, r, "list_orders", err)
		return
	}
	writeData(w, listing)
}

// rateLimit caps write routes per operator subject. Limiter errors fail open.
func (s *Server) rateLimit(route string) Middleware {
	return func(next http.Handler) http.Handler {
		if s.limiter == nil || s.opts.SyncPerWindow <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := "anonymous"
			if c, ok := ClaimsFrom(r.Context()); ok && c.Subject != "" {
				subject = c.Subject
			}
			ok, err := s.limiter.Allow(r.Context(), red.OperatorRouteKey(subject, route), s.opts.SyncPerWindow, s.opts.Window)
			if err != nil {
				l := logging.With(r.Context(), s.log)
				l.Warn().Err(err).Str("route", route).Msg("rate limiter unavailable")
			} else if !ok {
				metrics.IncRateLimitTriggered(route)
				writeError(w, http.StatusTooManyRequests, "rate limited", fmt.Sprintf("at most %d calls per %s", s.opts.SyncPerWindow, s.opts.Window))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) logBatch(r *http.Request, trigger string, res *model.BatchResult) {
	l := logging.With(logging.WithRunID(r.Context(), res.RunID), s.log)
	l.Info().
		Str("trigger", trigger).
		Int("requested", res.Summary.TotalRequested).
		Int("fetched", res.Summary.SuccessfulFetches).
		Int("errors", res.Summary.Errors).
		Int("activations", res.Summary.ActivationsApplied).
		Int("deferred", res.Summary.Deferred).
		Msg("batch finished")
}

// fail maps err onto the response status and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	status, msg := statusFor(err)
	if status >= 500 {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("route", route).Msg("request failed")
	}
	writeError(w, status, msg, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case domain.IsPrecondition(err):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrGatewayNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict, "sync already running"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, envelope{Success: false, Error: msg, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
