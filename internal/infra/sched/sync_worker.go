package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/infra/logging"
	"premium-order-sync/internal/infra/metrics"
)

// Syncer is the slice of the reconcile use case the worker drives.
type Syncer interface {
	SyncPending(ctx context.Context) (*model.BatchResult, error)
}

// SyncWorker periodically reconciles every pending order. It covers orders
// whose checkout callback never reached the platform.
type SyncWorker struct {
	uc         Syncer
	interval   time.Duration
	runTimeout time.Duration
	log        *zerolog.Logger
}

// NewSyncWorker returns nil when interval is zero; a nil worker's Start returns at once.
func NewSyncWorker(uc Syncer, interval, runTimeout time.Duration, logger *zerolog.Logger) *SyncWorker {
	if interval <= 0 {
		return nil
	}
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	l := logger.With().Str("component", "sync_worker").Logger()
	return &SyncWorker{uc: uc, interval: interval, runTimeout: runTimeout, log: &l}
}

// Start blocks until ctx is cancelled.
func (w *SyncWorker) Start(ctx context.Context) {
	if w == nil {
		return
	}
	w.log.Info().Dur("interval", w.interval).Msg("periodic sync started")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("periodic sync stopped")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *SyncWorker) tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	start := time.Now()
	res, err := w.uc.SyncPending(runCtx)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		metrics.IncBatchRun("worker", "skipped")
		w.log.Debug().Msg("another sync holds the lock, skipping tick")
		return
	case err != nil:
		metrics.IncBatchRun("worker", "failed")
		w.log.Error().Err(err).Msg("periodic sync failed")
		return
	}

	metrics.ObserveBatch("worker", time.Since(start), res)
	l := logging.With(logging.WithRunID(ctx, res.RunID), w.log)
	ev := l.Info()
	if res.Summary.Errors > 0 {
		ev = l.Warn().Strs("failed_orders", res.FailedOrderIDs())
	}
	ev.Int("requested", res.Summary.TotalRequested).
		Int("activations", res.Summary.ActivationsApplied).
		Int("errors", res.Summary.Errors).
		Int("deferred", res.Summary.Deferred).
		Dur("took", time.Since(start)).
		Msg("periodic sync finished")
}
