package repository

import (
	"context"

	"premium-order-sync/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	// Save writes the whole document. A stale Version yields domain.ErrConflict.
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// FindByOrderID resolves the owner of an order by order-id membership first,
	// then by current order id. Returns domain.ErrNotFound when nobody owns it.
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.User, error)
	// FindByOrderIDs returns every user holding at least one of ids.
	FindByOrderIDs(ctx context.Context, tx Tx, ids []string) ([]*model.User, error)
	// ListWithPendingOrders is the indexed pre-filter for the pending-order locator.
	ListWithPendingOrders(ctx context.Context, tx Tx) ([]*model.User, error)
}
