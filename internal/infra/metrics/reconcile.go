package metrics

import (
	"time"

	"premium-order-sync/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		batchRunsTotal,
		batchDuration,
		batchOrdersTotal,
		batchErrorsTotal,
		activationsTotal,
		pendingOrdersGauge,
	)
}

var (
	// trigger: refresh | sync | worker
	batchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_batch_runs_total",
			Help: "Batch reconciliation runs by trigger and outcome.",
		},
		[]string{"trigger", "outcome"}, // outcome: ok | partial | failed | skipped
	)

	batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_batch_duration_seconds",
			Help:    "Wall time of a batch reconciliation run.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"trigger"},
	)

	batchOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_orders_total",
			Help: "Orders fetched during reconciliation, by remote status.",
		},
		[]string{"status"},
	)

	batchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_order_errors_total",
			Help: "Per-order reconciliation failures by stage and kind.",
		},
		[]string{"stage", "kind"},
	)

	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_activations_total",
			Help: "Local writes produced by reconciliation, by action.",
		},
		[]string{"action"}, // granted | cancelled
	)

	pendingOrdersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_pending_orders",
			Help: "Pending orders located on the last scan.",
		},
	)
)

// ObserveBatch records one finished run.
func ObserveBatch(trigger string, d time.Duration, res *model.BatchResult) {
	batchRunsTotal.WithLabelValues(norm(trigger), BatchOutcome(res)).Inc()
	batchDuration.WithLabelValues(norm(trigger)).Observe(d.Seconds())

	b := res.Summary.StatusBreakdown
	for status, n := range map[string]int{
		"created":   b.Created,
		"attempted": b.Attempted,
		"paid":      b.Paid,
		"cancelled": b.Cancelled,
		"failed":    b.Failed,
		"other":     b.Other,
	} {
		if n > 0 {
			batchOrdersTotal.WithLabelValues(status).Add(float64(n))
		}
	}
	for _, e := range res.Errors {
		batchErrorsTotal.WithLabelValues(norm(e.Stage), norm(e.Kind)).Inc()
	}
	for _, o := range res.Orders {
		if o.Activation != nil && o.Activation.Action.Wrote() {
			activationsTotal.WithLabelValues(string(o.Activation.Action)).Inc()
		}
	}
}

// BatchOutcome collapses a result into ok | partial | failed.
func BatchOutcome(res *model.BatchResult) string {
	switch {
	case len(res.Errors) == 0:
		return "ok"
	case len(res.Orders) == 0:
		return "failed"
	default:
		return "partial"
	}
}

func IncBatchRun(trigger, outcome string) {
	batchRunsTotal.WithLabelValues(norm(trigger), norm(outcome)).Inc()
}

func SetPendingOrders(n int) {
	pendingOrdersGauge.Set(float64(n))
}
