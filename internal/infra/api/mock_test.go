//go:build !integration

package api_test

import (
	"context"
	"sync"
	"time"

	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/usecase"
)

var _ usecase.ReconcileUseCase = (*mockReconcileUC)(nil)

type mockReconcileUC struct {
	PendingOrdersFunc     func(ctx context.Context) (*model.PendingReport, error)
	SyncPendingFunc       func(ctx context.Context) (*model.BatchResult, error)
	OrderStatusFunc       func(ctx context.Context, orderID string) (*model.OrderOutcome, error)
	RefreshOrdersFunc     func(ctx context.Context, orderIDs []string) (*model.BatchResult, error)
	ListGatewayOrdersFunc func(ctx context.Context, filter model.OrderFilter) (*model.OrderListing, error)
	OrderPaymentsFunc     func(ctx context.Context, orderID string) ([]*model.GatewayPayment, error)
}

func (m *mockReconcileUC) PendingOrders(ctx context.Context) (*model.PendingReport, error) {
	return m.PendingOrdersFunc(ctx)
}
func (m *mockReconcileUC) SyncPending(ctx context.Context) (*model.BatchResult, error) {
	return m.SyncPendingFunc(ctx)
}
func (m *mockReconcileUC) OrderStatus(ctx context.Context, orderID string) (*model.OrderOutcome, error) {
	return m.OrderStatusFunc(ctx, orderID)
}
func (m *mockReconcileUC) RefreshOrders(ctx context.Context, orderIDs []string) (*model.BatchResult, error) {
	return m.RefreshOrdersFunc(ctx, orderIDs)
}
func (m *mockReconcileUC) ListGatewayOrders(ctx context.Context, filter model.OrderFilter) (*model.OrderListing, error) {
	return m.ListGatewayOrdersFunc(ctx, filter)
}
func (m *mockReconcileUC) OrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error) {
	return m.OrderPaymentsFunc(ctx, orderID)
}

// mockLimiter counts calls per key against the requested limit.
type mockLimiter struct {
	mu    sync.Mutex
	seen  map[string]int
	Err   error
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]int{}
	}
	m.seen[key]++
	return m.seen[key] <= limit, nil
}
