package payment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev runs and tests.
// Orders are seeded with Put and moved with SetStatus.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	orders   map[string]*model.GatewayOrder
	payments map[string][]*model.GatewayPayment
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		orders:   make(map[string]*model.GatewayOrder),
		payments: make(map[string][]*model.GatewayPayment),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) Put(o *model.GatewayOrder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *o
	cp.Notes = o.Notes.Clone()
	g.orders[o.ID] = &cp
}

func (g *NoopPaymentGateway) SetStatus(orderID string, s model.OrderStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return fmt.Errorf("noop: %w", domain.ErrGatewayNotFound)
	}
	o.Status = s
	if s == model.OrderStatusPaid {
		o.AmountPaid, o.AmountDue = o.Amount, 0
	}
	return nil
}

func (g *NoopPaymentGateway) AddPayment(p *model.GatewayPayment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *p
	g.payments[p.OrderID] = append(g.payments[p.OrderID], &cp)
}

func (g *NoopPaymentGateway) FetchOrder(ctx context.Context, orderID string) (*model.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("noop: order %s: %w", orderID, domain.ErrGatewayNotFound)
	}
	cp := *o
	cp.Notes = o.Notes.Clone()
	return &cp, nil
}

func (g *NoopPaymentGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[orderID]; !ok {
		return nil, fmt.Errorf("noop: order %s: %w", orderID, domain.ErrGatewayNotFound)
	}
	out := make([]*model.GatewayPayment, 0, len(g.payments[orderID]))
	for _, p := range g.payments[orderID] {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ListOrders returns orders newest first, like the real API.
func (g *NoopPaymentGateway) ListOrders(ctx context.Context, f model.OrderFilter) (*model.OrderPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	all := make([]*model.GatewayOrder, 0, len(g.orders))
	for _, o := range g.orders {
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		cp := *o
		all = append(all, &cp)
	}
	g.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if f.Skip >= len(all) {
		return &model.OrderPage{Orders: []*model.GatewayOrder{}}, nil
	}
	all = all[f.Skip:]
	if f.Count > 0 && len(all) > f.Count {
		all = all[:f.Count]
	}
	return &model.OrderPage{Orders: all, Count: len(all)}, nil
}
