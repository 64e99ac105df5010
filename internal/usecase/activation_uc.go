package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/adapter"
	"premium-order-sync/internal/domain/ports/repository"
	"premium-order-sync/internal/infra/logging"
)

// Compile-time check
var _ ActivationUseCase = (*activationUC)(nil)

// ActivationUseCase turns a paid or cancelled gateway order into a local state change.
type ActivationUseCase interface {
	Apply(ctx context.Context, order *model.GatewayOrder) (*model.ActivationResult, error)
}

type activationUC struct {
	users    repository.UserRepository
	tm       repository.TransactionManager
	cache    repository.CacheInvalidator
	notifier adapter.Notifier
	timeout  time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

// NewActivationUseCase wires the activator. cache and notifier may be nil.
func NewActivationUseCase(
	users repository.UserRepository,
	tm repository.TransactionManager,
	cache repository.CacheInvalidator,
	notifier adapter.Notifier,
	timeout time.Duration,
	logger *zerolog.Logger,
) *activationUC {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &activationUC{
		users:    users,
		tm:       tm,
		cache:    cache,
		notifier: notifier,
		timeout:  timeout,
		now:      time.Now,
		log:      logger,
	}
}

// WithClock overrides the time source.
func (a *activationUC) WithClock(now func() time.Time) *activationUC {
	a.now = now
	return a
}

// Apply resolves the owner, then inside one transaction moves the local record
// out of pending and, for paid orders, grants the plan in the same write.
// A record that already left pending is never rewritten.
func (a *activationUC) Apply(ctx context.Context, order *model.GatewayOrder) (*model.ActivationResult, error) {
	if order == nil || order.ID == "" || !order.Status.Activates() {
		return nil, fmt.Errorf("%w: only paid or cancelled orders can be applied", domain.ErrInvalidArgument)
	}
	log := logging.With(logging.WithOrderID(ctx, order.ID), a.log)
	defer logging.TraceDuration(log, "ActivationUC.Apply")()

	// Once started the write runs to commit or rollback even if the batch is cancelled.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	var (
		res   *model.ActivationResult
		owner *model.User
	)
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	err := a.tm.WithTx(wctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		u, err := a.users.FindByOrderID(ctx, tx, order.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: order %s", domain.ErrUserNotResolved, order.ID)
		}
		if err != nil {
			return err
		}
		owner = u
		res, err = a.applyTo(ctx, tx, u, order)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotResolved) {
			log.Warn().Str("phone", logging.Redact(order.Notes.UserPhone(), false)).Msg("no user owns paid order")
			return nil, err
		}
		log.Error().Err(err).Msg("activation write failed")
		return nil, fmt.Errorf("%w: order %s: %w", domain.ErrActivation, order.ID, err)
	}

	if res.Action.Wrote() {
		a.afterCommit(ctx, log, owner, order, res)
	}
	return res, nil
}

func (a *activationUC) applyTo(ctx context.Context, tx repository.Tx, u *model.User, order *model.GatewayOrder) (*model.ActivationResult, error) {
	res := &model.ActivationResult{OrderID: order.ID, UserID: u.ID}

	rec, tracked := u.Order(order.ID)
	if tracked {
		res.PreviousStatus = rec.PaymentStatus
		if !rec.IsPending() {
			res.NewStatus = rec.PaymentStatus
			res.Action = model.ActionSkipped
			if order.Status == model.OrderStatusPaid && rec.PaymentStatus == model.LocalStatusCompleted {
				res.Action = model.ActionAlreadyApplied
				res.Entitlement = u.PremiumPlan
			}
			return res, nil
		}
	}

	now := a.now()
	if !tracked {
		rec = model.NewLocalOrderRecord(order, now)
	}
	rec.ApplyGateway(order, now)
	u.PutOrder(rec)

	switch order.Status {
	case model.OrderStatusPaid:
		plan := model.DerivePlan(order.ID, order.Notes, now)
		u.GrantEntitlement(plan, order.ID)
		res.Action = model.ActionGranted
		res.Entitlement = plan
	default:
		res.Action = model.ActionCancelled
	}
	res.NewStatus = rec.PaymentStatus
	u.Touch(now)

	if err := a.users.Save(ctx, tx, u); err != nil {
		return nil, err
	}
	return res, nil
}

// afterCommit runs side effects that must never fail the activation.
func (a *activationUC) afterCommit(ctx context.Context, log *zerolog.Logger, u *model.User, order *model.GatewayOrder, res *model.ActivationResult) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	if a.cache != nil {
		keys := append(repository.UserCacheKeys(u.ID, u.Phone), repository.PendingOrdersCacheKey)
		if err := a.cache.Invalidate(sctx, keys...); err != nil {
			log.Warn().Err(err).Msg("cache invalidation failed")
		}
	}

	log.Info().
		Str("user_id", u.ID).
		Str("action", string(res.Action)).
		Str("status", string(res.NewStatus)).
		Msg("order applied")

	if res.Action != model.ActionGranted || a.notifier == nil {
		return
	}
	notice := model.ActivationNotice{
		UserID:     u.ID,
		Name:       u.Name,
		Phone:      u.Phone,
		OrderID:    order.ID,
		Plan:       res.Entitlement.Plan,
		PlanTitle:  res.Entitlement.PlanTitle,
		Amount:     order.Amount,
		Currency:   order.Currency,
		ExpiryDate: res.Entitlement.ExpiryDate,
	}
	if err := a.notifier.NotifyActivation(sctx, notice); err != nil {
		log.Warn().Err(err).Msg("activation notice not delivered")
	}
}
