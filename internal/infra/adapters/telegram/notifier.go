package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"premium-order-sync/internal/config"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/adapter"
	"premium-order-sync/internal/infra/logging"
	"premium-order-sync/internal/infra/metrics"
)

var _ adapter.Notifier = (*TelegramNotifier)(nil)

// sender is the subset of *tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a short message to every configured operator chat
// after an entitlement is granted.
type TelegramNotifier struct {
	bot     sender
	chatIDs []int64
	dev     bool
	log     *zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, dev bool, logger *zerolog.Logger) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, errors.New("telegram chat_ids is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return newTelegramNotifier(bot, cfg.ChatIDs, dev, logger), nil
}

func newTelegramNotifier(bot sender, chatIDs []int64, dev bool, logger *zerolog.Logger) *TelegramNotifier {
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, dev: dev, log: &l}
}

// NotifyActivation tries every chat and returns the joined send errors.
func (n *TelegramNotifier) NotifyActivation(ctx context.Context, a model.ActivationNotice) error {
	text := formatActivation(a, n.dev)
	var errs []error
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			metrics.IncNotification("error")
			n.log.Warn().Err(err).Int64("chat_id", chatID).Str("order_id", a.OrderID).Msg("activation notice failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		metrics.IncNotification("sent")
	}
	return errors.Join(errs...)
}

func formatActivation(a model.ActivationNotice, dev bool) string {
	var b strings.Builder
	b.WriteString("Premium activated\n")
	fmt.Fprintf(&b, "User: %s (%s)\n", a.Name, logging.Redact(a.Phone, dev))
	plan := a.Plan
	if a.PlanTitle != "" && a.PlanTitle != a.Plan {
		plan = a.PlanTitle + " / " + a.Plan
	}
	fmt.Fprintf(&b, "Plan: %s\n", plan)
	fmt.Fprintf(&b, "Order: %s\n", a.OrderID)
	if a.Amount > 0 {
		fmt.Fprintf(&b, "Amount: %s %s\n", formatMinor(a.Amount), a.Currency)
	}
	if !a.ExpiryDate.IsZero() {
		fmt.Fprintf(&b, "Expires: %s", a.ExpiryDate.Format("2006-01-02"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatMinor renders paise as rupees with two decimals.
func formatMinor(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
