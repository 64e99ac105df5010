package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/adapter"
	"premium-order-sync/internal/infra/metrics"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs notices instead of sending them. Used when no bot token is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &NoopNotifier{log: &l}
}

func (n *NoopNotifier) NotifyActivation(ctx context.Context, a model.ActivationNotice) error {
	metrics.IncNotification("disabled")
	n.log.Debug().Str("order_id", a.OrderID).Str("user_id", a.UserID).Str("plan", a.Plan).Msg("activation notice (noop)")
	return nil
}
