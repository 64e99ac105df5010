package adapter

import (
	"context"

	"premium-order-sync/internal/domain/model"
)

// Notifier pushes a message to operators or the customer after an activation.
// Delivery failures are reported but never undo the activation.
type Notifier interface {
	NotifyActivation(ctx context.Context, n model.ActivationNotice) error
}
