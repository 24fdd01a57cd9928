package navigation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/storebot/core/logger"
)

// Store persists navigation state per chat.
// Load returns a zero State and no error for unseen chats.
type Store interface {
	Load(ctx context.Context, chatID int64) (State, error)
	// Reset replaces the whole record with current=step, path=[step].
	Reset(ctx context.Context, chatID int64, step Step) error
	// Append sets current=step and appends it to the path.
	Append(ctx context.Context, chatID int64, step Step) error
}

// Navigator validates steps before they reach the store.
// Callers serialize access per chat; the navigator itself holds no per-chat lock.
type Navigator struct {
	store Store
}

// New returns a navigator over store.
func New(store Store) *Navigator {
	return &Navigator{store: store}
}

// Advance moves the chat to step. With reset the history is discarded and the path becomes [step].
func (n *Navigator) Advance(ctx context.Context, chatID int64, step Step, reset bool) error {
	if !step.Valid() {
		return fmt.Errorf("advance to %q: %w", step, ErrUnknownStep)
	}
	var err error
	if reset {
		err = n.store.Reset(ctx, chatID, step)
	} else {
		err = n.store.Append(ctx, chatID, step)
	}
	if err != nil {
		return fmt.Errorf("navigation: advance chat %d: %w", chatID, err)
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, logger.CompNav, "nav.advance",
			slog.String("step", string(step)),
			slog.Bool("reset", reset),
		)
	}
	return nil
}

// Current returns the chat's step, or StepNone when the chat is unseen.
func (n *Navigator) Current(ctx context.Context, chatID int64) (Step, error) {
	st, err := n.store.Load(ctx, chatID)
	if err != nil {
		return StepNone, fmt.Errorf("navigation: load chat %d: %w", chatID, err)
	}
	return st.Current, nil
}

// Path returns the visited steps since the last reset.
func (n *Navigator) Path(ctx context.Context, chatID int64) ([]Step, error) {
	st, err := n.store.Load(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("navigation: load chat %d: %w", chatID, err)
	}
	return st.Path, nil
}
