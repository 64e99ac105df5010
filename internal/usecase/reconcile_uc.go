package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/adapter"
	"premium-order-sync/internal/domain/ports/repository"
	"premium-order-sync/internal/infra/logging"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

const (
	syncLockKey = "lock:sync_pending_orders"

	maxListCount     = 100
	defaultListCount = 10
)

// ReconcileUseCase is the operator-facing surface of the reconciliation engine.
type ReconcileUseCase interface {
	// PendingOrders lists local pending orders worth reconciling, with totals.
	PendingOrders(ctx context.Context) (*model.PendingReport, error)
	// SyncPending reconciles every located pending order and applies terminal ones.
	SyncPending(ctx context.Context) (*model.BatchResult, error)
	// OrderStatus fetches one order without applying it.
	OrderStatus(ctx context.Context, orderID string) (*model.OrderOutcome, error)
	// RefreshOrders reconciles caller-supplied ids and applies terminal ones.
	RefreshOrders(ctx context.Context, orderIDs []string) (*model.BatchResult, error)
	// ListGatewayOrders pages through gateway orders with status tallies.
	ListGatewayOrders(ctx context.Context, filter model.OrderFilter) (*model.OrderListing, error)
	// OrderPayments lists capture attempts for one order.
	OrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error)
}

type ReconcileConfig struct {
	MaxOrders           int
	SyncLimit           int
	SyncLockTTL         time.Duration
	ExcludeNamePatterns []string
}

type reconcileUC struct {
	users   repository.UserRepository
	gateway adapter.PaymentGateway
	runner  *BatchRunner
	locker  repository.Locker
	cfg     ReconcileConfig
	now     func() time.Time
	log     *zerolog.Logger
}

// NewReconcileUseCase wires the engine. locker may be nil for single-instance deployments.
func NewReconcileUseCase(
	users repository.UserRepository,
	gateway adapter.PaymentGateway,
	runner *BatchRunner,
	locker repository.Locker,
	cfg ReconcileConfig,
	logger *zerolog.Logger,
) *reconcileUC {
	if cfg.MaxOrders <= 0 {
		cfg.MaxOrders = 50
	}
	if cfg.SyncLimit <= 0 {
		cfg.SyncLimit = 500
	}
	if cfg.SyncLockTTL <= 0 {
		cfg.SyncLockTTL = 5 * time.Minute
	}
	return &reconcileUC{
		users:   users,
		gateway: gateway,
		runner:  runner,
		locker:  locker,
		cfg:     cfg,
		now:     time.Now,
		log:     logger,
	}
}

func (u *reconcileUC) PendingOrders(ctx context.Context) (*model.PendingReport, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.PendingOrders")()

	orders, err := u.locate(ctx)
	if err != nil {
		return nil, err
	}
	return &model.PendingReport{Orders: orders, Summary: SummarizePending(orders)}, nil
}

func (u *reconcileUC) locate(ctx context.Context) ([]model.PendingOrder, error) {
	users, err := u.users.ListWithPendingOrders(ctx, repository.NoTX)
	if err != nil {
		return nil, fmt.Errorf("list users with pending orders: %w", err)
	}
	return LocatePendingOrders(users, u.cfg.ExcludeNamePatterns, u.now()), nil
}

func (u *reconcileUC) SyncPending(ctx context.Context) (*model.BatchResult, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.SyncPending")()

	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, syncLockKey, u.cfg.SyncLockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), syncLockKey, token); err != nil {
				u.log.Warn().Err(err).Msg("release sync lock")
			}
		}()
	}

	pending, err := u.locate(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		u.log.Info().Msg("no pending orders found")
		return &model.BatchResult{RunID: ulid.Make().String(), Orders: []model.OrderOutcome{}, Errors: []model.OrderError{}}, nil
	}

	deferred := 0
	if len(pending) > u.cfg.SyncLimit {
		deferred = len(pending) - u.cfg.SyncLimit
		pending = pending[:u.cfg.SyncLimit]
	}

	ids := make([]string, len(pending))
	local := make(map[string]model.LocalPaymentStatus, len(pending))
	for i, p := range pending {
		ids[i] = p.OrderID
		local[p.OrderID] = model.LocalStatusPending
	}

	res, err := u.runner.Run(ctx, ids, BatchOptions{Activate: true, Local: local})
	if err != nil {
		return nil, err
	}
	res.Summary.Deferred = deferred
	return res, nil
}

func (u *reconcileUC) OrderStatus(ctx context.Context, orderID string) (*model.OrderOutcome, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.OrderStatus")()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalidArgument)
	}
	local, err := u.localStatuses(ctx, []string{orderID})
	if err != nil {
		return nil, err
	}
	res, err := u.runner.Run(ctx, []string{orderID}, BatchOptions{Max: 1, Local: local})
	if err != nil {
		return nil, err
	}
	if len(res.Orders) == 1 {
		return &res.Orders[0], nil
	}
	if len(res.Errors) > 0 {
		return nil, res.Errors[0]
	}
	return nil, domain.ErrGatewayNotFound
}

func (u *reconcileUC) RefreshOrders(ctx context.Context, orderIDs []string) (*model.BatchResult, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.RefreshOrders")()

	if len(orderIDs) == 0 {
		return nil, domain.ErrEmptyOrderList
	}
	if len(orderIDs) > u.cfg.MaxOrders {
		return nil, fmt.Errorf("%w: got %d, maximum is %d", domain.ErrTooManyOrders, len(orderIDs), u.cfg.MaxOrders)
	}
	local, err := u.localStatuses(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	return u.runner.Run(ctx, orderIDs, BatchOptions{Max: u.cfg.MaxOrders, Activate: true, Local: local})
}

func (u *reconcileUC) ListGatewayOrders(ctx context.Context, filter model.OrderFilter) (*model.OrderListing, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.ListGatewayOrders")()

	if filter.Count <= 0 {
		filter.Count = defaultListCount
	}
	filter.Count = min(filter.Count, maxListCount)
	if filter.Skip < 0 {
		return nil, fmt.Errorf("%w: skip must not be negative", domain.ErrInvalidArgument)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: to is before from", domain.ErrInvalidArgument)
	}

	page, err := u.gateway.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}

	filtered := page.Orders
	if filter.Status != "" {
		filtered = make([]*model.GatewayOrder, 0, len(page.Orders))
		for _, o := range page.Orders {
			if o.Status == filter.Status {
				filtered = append(filtered, o)
			}
		}
	}

	ids := make([]string, len(filtered))
	for i, o := range filtered {
		ids[i] = o.ID
	}
	var owners []*model.User
	if len(ids) > 0 {
		owners, err = u.users.FindByOrderIDs(ctx, repository.NoTX, ids)
		if err != nil {
			return nil, fmt.Errorf("local status lookup: %w", err)
		}
	}

	return &model.OrderListing{
		Orders:         filtered,
		Count:          len(filtered),
		TotalAvailable: len(page.Orders),
		Skip:           filter.Skip,
		HasMore:        len(page.Orders) >= filter.Count,
		StatusSummary:  BreakdownStatuses(page.Orders),
		LocalStatus:    TallyLocalStatuses(owners, ids),
	}, nil
}

func (u *reconcileUC) OrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.OrderPayments")()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalidArgument)
	}
	payments, err := u.gateway.FetchOrderPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*model.GatewayPayment{}
	}
	return payments, nil
}

// localStatuses looks up the current local status of ids. A store failure is
// logged and treated as unknown so that a refresh can still report gateway truth.
func (u *reconcileUC) localStatuses(ctx context.Context, ids []string) (map[string]model.LocalPaymentStatus, error) {
	owners, err := u.users.FindByOrderIDs(ctx, repository.NoTX, ids)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		u.log.Warn().Err(err).Msg("local status lookup failed")
		return map[string]model.LocalPaymentStatus{}, nil
	}
	return localStatusIndex(owners), nil
}
