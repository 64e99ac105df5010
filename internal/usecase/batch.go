package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/adapter"
	"premium-order-sync/internal/infra/logging"
)

// Activator applies a terminal gateway order to its owner's document.
type Activator interface {
	Apply(ctx context.Context, order *model.GatewayOrder) (*model.ActivationResult, error)
}

// BatchConfig bounds gateway load for one run.
type BatchConfig struct {
	ChunkSize  int
	ChunkDelay time.Duration
}

// BatchOptions are per-call settings.
type BatchOptions struct {
	// Max rejects the whole call when more ids are given. 0 means unbounded.
	Max int
	// Activate hands paid and cancelled orders to the activator.
	Activate bool
	// Local is the known local status per order id, used for mismatch reporting.
	Local map[string]model.LocalPaymentStatus
}

// BatchRunner fetches orders in fixed-size chunks: chunks run one after another,
// calls inside a chunk run concurrently and a fixed delay separates chunks.
type BatchRunner struct {
	gateway   adapter.PaymentGateway
	activator Activator
	cfg       BatchConfig
	log       *zerolog.Logger
}

func NewBatchRunner(gateway adapter.PaymentGateway, activator Activator, cfg BatchConfig, logger *zerolog.Logger) *BatchRunner {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	return &BatchRunner{gateway: gateway, activator: activator, cfg: cfg, log: logger}
}

// slot holds the result for one input position; each goroutine owns exactly one.
type slot struct {
	outcome *model.OrderOutcome
	errs    []model.OrderError
}

// Run reconciles ids and returns partial results. Only precondition violations
// (empty list, too many ids, blank id) fail the whole call, and they do so
// before any gateway call is made.
func (b *BatchRunner) Run(ctx context.Context, ids []string, opt BatchOptions) (*model.BatchResult, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptyOrderList
	}
	if opt.Max > 0 && len(ids) > opt.Max {
		return nil, fmt.Errorf("%w: got %d, maximum is %d", domain.ErrTooManyOrders, len(ids), opt.Max)
	}
	unique, err := normalizeOrderIDs(ids)
	if err != nil {
		return nil, err
	}

	runID := ulid.Make().String()
	ctx = logging.WithRunID(ctx, runID)
	log := logging.With(ctx, b.log)
	defer logging.TraceDuration(log, "BatchRunner.Run")()

	slots := make([]slot, len(unique))
	size := b.cfg.ChunkSize
	for start := 0; start < len(unique); start += size {
		end := min(start+size, len(unique))
		if start > 0 && !b.pause(ctx) {
			markAborted(slots[start:], unique[start:], ctx.Err())
			log.Warn().Int("remaining", len(unique)-start).Msg("batch aborted between chunks")
			break
		}

		var g errgroup.Group
		g.SetLimit(size)
		for i := start; i < end; i++ {
			g.Go(func() error {
				slots[i] = b.process(ctx, unique[i], opt)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := assemble(runID, len(ids), slots)
	log.Info().
		Int("requested", res.Summary.TotalRequested).
		Int("fetched", res.Summary.SuccessfulFetches).
		Int("errors", res.Summary.Errors).
		Int("activations", res.Summary.ActivationsApplied).
		Msg("batch finished")
	return res, nil
}

// pause waits out the inter-chunk delay; false means ctx ended first.
func (b *BatchRunner) pause(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if b.cfg.ChunkDelay <= 0 {
		return true
	}
	t := time.NewTimer(b.cfg.ChunkDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (b *BatchRunner) process(ctx context.Context, id string, opt BatchOptions) slot {
	octx := logging.WithOrderID(ctx, id)
	order, err := b.gateway.FetchOrder(octx, id)
	if err != nil {
		logging.With(octx, b.log).Debug().Err(err).Msg("fetch failed")
		return slot{errs: []model.OrderError{model.NewOrderError(id, model.StageFetch, domain.Kind(err), err)}}
	}

	out := &model.OrderOutcome{
		Order:   order,
		WasPaid: order.Status == model.OrderStatusPaid,
	}
	if local, ok := opt.Local[id]; ok {
		out.LocalStatus = local
		out.StatusChanged = model.StatusDiverges(local, order.Status)
	}

	s := slot{outcome: out}
	if !opt.Activate || !order.Status.Activates() || b.activator == nil {
		return s
	}
	act, err := b.activator.Apply(octx, order)
	if err != nil {
		logging.With(octx, b.log).Warn().Err(err).Str("status", string(order.Status)).Msg("activation failed")
		s.errs = append(s.errs, model.NewOrderError(id, model.StageActivate, domain.Kind(err), err))
		return s
	}
	out.Activation = act
	if act.Action.Wrote() {
		out.LocalStatus = act.NewStatus
	}
	return s
}

func markAborted(slots []slot, ids []string, cause error) {
	err := domain.ErrBatchAborted
	if cause != nil {
		err = fmt.Errorf("%w: %w", domain.ErrBatchAborted, cause)
	}
	for i := range slots {
		slots[i] = slot{errs: []model.OrderError{model.NewOrderError(ids[i], model.StageFetch, domain.KindAborted, err)}}
	}
}

func assemble(runID string, requested int, slots []slot) *model.BatchResult {
	res := &model.BatchResult{
		RunID:  runID,
		Orders: make([]model.OrderOutcome, 0, len(slots)),
		Errors: []model.OrderError{},
	}
	res.Summary.TotalRequested = requested
	for _, s := range slots {
		res.Errors = append(res.Errors, s.errs...)
		if s.outcome == nil {
			continue
		}
		o := *s.outcome
		res.Orders = append(res.Orders, o)
		res.Summary.StatusBreakdown.Add(o.Order.Status)
		if o.StatusChanged {
			res.Summary.StatusMismatches++
		}
		if o.Activation != nil && o.Activation.Action.Wrote() {
			res.Summary.ActivationsApplied++
		}
	}
	res.Summary.SuccessfulFetches = len(res.Orders)
	res.Summary.Errors = len(res.Errors)
	return res
}

// normalizeOrderIDs trims ids and drops repeats, keeping first occurrence.
func normalizeOrderIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for i, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, fmt.Errorf("%w: order id at position %d is blank", domain.ErrInvalidArgument, i)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
