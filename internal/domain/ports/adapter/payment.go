package adapter

import (
	"context"

	"premium-order-sync/internal/domain/model"
)

// PaymentGateway is the hex port for the order API of a payment provider.
// Every method is a single round trip with no retry. Errors unwrap to
// domain.ErrGatewayNotFound, domain.ErrGatewayTransient or domain.ErrGatewayRejected.
type PaymentGateway interface {
	Name() string

	// FetchOrder returns the provider's current view of one order.
	FetchOrder(ctx context.Context, orderID string) (*model.GatewayOrder, error)
	// FetchOrderPayments lists capture attempts made against an order.
	FetchOrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error)
	// ListOrders returns one page of orders. Status filtering is the caller's job.
	ListOrders(ctx context.Context, filter model.OrderFilter) (*model.OrderPage, error)
}
