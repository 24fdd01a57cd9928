package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/internal/shop"
)

// notifyAdmins alerts every subscribed admin about a new order.
// A failing recipient is logged and skipped.
func (e *Engine) notifyAdmins(ctx context.Context, o shop.Order) {
	subs, err := e.Catalog.ListSubscribers(ctx)
	if err != nil {
		logger.Error(ctx, logger.CompBot, "notify.subscribers_failed",
			slog.String("order_id", o.ID),
			logger.Err(err),
		)
		return
	}
	text := newOrderText(o)
	kb := &Keyboard{Inline: orderActionRows(o, []shop.OrderState{shop.OrderCancelled, shop.OrderConfirmed})}

	delivered := 0
	for _, chatID := range subs {
		if err := e.Notifier.Notify(ctx, chatID, text, kb); err != nil {
			logger.Warn(ctx, logger.CompBot, "notify.admin_failed",
				slog.String("order_id", o.ID),
				slog.Int64("recipient", chatID),
				logger.Err(err),
			)
			continue
		}
		delivered++
	}
	logger.Info(ctx, logger.CompBot, "notify.order_created",
		slog.String("status", statusFor(delivered, len(subs))),
		slog.String("order_id", o.ID),
		slog.Int("recipients", len(subs)),
		slog.Int("delivered", delivered),
	)
}

// notifyPurchaser tells the buyer about a state change.
func (e *Engine) notifyPurchaser(ctx context.Context, o shop.Order) {
	text := fmt.Sprintf(textOrderState, o.ID, o.State)
	if err := e.Notifier.Notify(ctx, o.UserID, text, nil); err != nil {
		logger.Warn(ctx, logger.CompBot, "notify.purchaser_failed",
			slog.String("order_id", o.ID),
			slog.String("order_state", string(o.State)),
			logger.Err(err),
		)
	}
}

func statusFor(delivered, total int) string {
	if delivered < total {
		return "partial"
	}
	return "ok"
}
