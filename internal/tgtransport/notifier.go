package tgtransport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/telegram/sender"
	"github.com/m3rciful/storebot/internal/bot"
)

// QueuedNotifier delivers notifications through the outbound dispatcher so a slow
// or blocked recipient does not hold up the chat that triggered them.
type QueuedNotifier struct {
	queue     *sender.Dispatcher
	transport bot.Transport
}

var _ bot.Notifier = (*QueuedNotifier)(nil)

// NewQueuedNotifier sends through t using the workers of d.
func NewQueuedNotifier(d *sender.Dispatcher, t bot.Transport) *QueuedNotifier {
	return &QueuedNotifier{queue: d, transport: t}
}

// Notify enqueues the message. A full or closed queue falls back to a direct send.
func (n *QueuedNotifier) Notify(ctx context.Context, chatID int64, text string, kb *bot.Keyboard) error {
	run := func(ctx context.Context) error {
		return n.transport.SendText(ctx, chatID, text, kb)
	}
	err := n.queue.Enqueue(ctx, "notify", "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.Int64("recipient", chatID),
			logger.Err(err),
		)
		return run(ctx)
	}
	return err
}
