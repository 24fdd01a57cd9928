package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/internal/cart"
	"github.com/m3rciful/storebot/internal/media"
	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/orders"
	"github.com/m3rciful/storebot/internal/shop"
	"github.com/m3rciful/storebot/internal/staging"
	"github.com/m3rciful/storebot/internal/storage"
)

// ErrNoChat rejects messages without a chat id.
var ErrNoChat = errors.New("bot: message without chat id")

// Catalog is the part of the store the engine reads and writes directly.
type Catalog interface {
	storage.Users
	storage.Products
	storage.Subscribers
}

// Deps are the collaborators of the engine. Notifier defaults to sending through Transport.
type Deps struct {
	Transport     Transport
	Notifier      Notifier
	Catalog       Catalog
	Carts         *cart.Ledger
	Orders        *orders.Ledger
	Navigator     *navigation.Navigator
	Staging       staging.Store
	Media         media.Store
	AdminPassword string
}

// Engine routes inbound messages. Messages of one chat are handled one at a time.
type Engine struct {
	Deps
	router *Router
	locks  chatLocks
}

// New validates deps and builds the routing table.
func New(deps Deps) (*Engine, error) {
	switch {
	case deps.Transport == nil:
		return nil, errors.New("bot: transport is required")
	case deps.Catalog == nil:
		return nil, errors.New("bot: catalog is required")
	case deps.Carts == nil || deps.Orders == nil:
		return nil, errors.New("bot: cart and order ledgers are required")
	case deps.Navigator == nil:
		return nil, errors.New("bot: navigator is required")
	case deps.Staging == nil:
		return nil, errors.New("bot: staging store is required")
	case deps.Media == nil:
		return nil, errors.New("bot: media store is required")
	case deps.AdminPassword == "":
		return nil, errors.New("bot: admin password is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = directNotifier{t: deps.Transport}
	}
	e := &Engine{Deps: deps, locks: chatLocks{m: make(map[int64]*chatLock)}}
	e.router = NewRouter().Add(e.rules()...)
	logger.TWire.Info("bot.wire",
		slog.String("event", "router.ready"),
		slog.Int("count", e.router.Len()),
	)
	return e, nil
}

// Router exposes the routing table.
func (e *Engine) Router() *Router { return e.router }

// Handle processes one inbound message. A failing collaborator gets the user an apology,
// leaves navigation where it was and is returned to the caller.
func (e *Engine) Handle(ctx context.Context, msg Message) error {
	if msg.ChatID == 0 {
		return ErrNoChat
	}
	if msg.UserID == 0 {
		msg.UserID = msg.ChatID
	}
	unlock := e.locks.lock(msg.ChatID)
	defer unlock()

	start := time.Now()
	if logger.RIDFrom(ctx) == "" {
		ctx = logger.WithRID(ctx, logger.BuildRID(msg.UpdateID, msg.ChatID, msg.UserID))
	}
	ctx = logger.WithUpdateMeta(ctx, msg.UpdateID, msg.UserID, msg.ChatID)

	user, created, err := e.Catalog.EnsureUser(ctx, shop.User{ID: msg.ChatID, DisplayName: msg.DisplayName})
	if err != nil {
		return e.fail(ctx, msg.ChatID, "ensure_user", err)
	}
	if created {
		logger.Info(ctx, logger.CompBot, "user.created")
	}

	if msg.Callback != nil {
		ctx = logger.WithHandler(ctx, "bot.order_callback")
		err := e.orderCallback(ctx, user, msg)
		e.logHandled(ctx, "order_callback", navigation.StepNone, start, err)
		if err != nil {
			return e.fail(ctx, msg.ChatID, "order_callback", err)
		}
		return nil
	}

	step, err := e.Navigator.Current(ctx, msg.ChatID)
	if err != nil {
		return e.fail(ctx, msg.ChatID, "navigation", err)
	}
	in := newInput(msg, user, step)

	rule, ok := e.router.Resolve(in)
	if !ok {
		ctx = logger.WithHandler(ctx, "bot.catch_all")
		logger.Debug(ctx, logger.CompBot, "route.unmatched", slog.String("step", step.String()))
		if err := e.showMainMenu(ctx, in.ChatID, textNotUnderstood); err != nil {
			return e.fail(ctx, msg.ChatID, "catch_all", err)
		}
		return nil
	}

	ctx = logger.WithHandler(ctx, "bot."+rule.Name)
	err = rule.Handle(ctx, in)
	e.logHandled(ctx, rule.Name, step, start, err)
	if err != nil {
		return e.fail(ctx, msg.ChatID, rule.Name, err)
	}
	return nil
}

func (e *Engine) logHandled(ctx context.Context, rule string, step navigation.Step, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("rule", rule),
		slog.String("step", step.String()),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs, logger.Err(err))
		logger.Warn(ctx, logger.CompBot, "handler.handled", attrs...)
		return
	}
	logger.Info(ctx, logger.CompBot, "handler.handled", attrs...)
}

// fail apologizes to the chat and returns err wrapped with op.
func (e *Engine) fail(ctx context.Context, chatID int64, op string, err error) error {
	logger.Error(ctx, logger.CompBot, "handler.failed",
		slog.String("op", op),
		logger.Err(err),
	)
	if sendErr := e.Transport.SendText(ctx, chatID, textFailure, nil); sendErr != nil {
		logger.Warn(ctx, logger.CompBot, "handler.apology_failed", logger.Err(sendErr))
	}
	return fmt.Errorf("bot: %s: %w", op, err)
}

func (e *Engine) send(ctx context.Context, chatID int64, text string, kb *Keyboard) error {
	if err := e.Transport.SendText(ctx, chatID, text, kb); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (e *Engine) advance(ctx context.Context, chatID int64, step navigation.Step) error {
	return e.Navigator.Advance(ctx, chatID, step, false)
}

// showMainMenu resets navigation to the start step and sends the main menu.
func (e *Engine) showMainMenu(ctx context.Context, chatID int64, text string) error {
	if err := e.Navigator.Advance(ctx, chatID, navigation.StepStart, true); err != nil {
		return err
	}
	return e.send(ctx, chatID, text, mainMenuKeyboard())
}

// showAdminMenu resets navigation to the admin step and sends the admin menu.
func (e *Engine) showAdminMenu(ctx context.Context, chatID int64, text string) error {
	if err := e.Navigator.Advance(ctx, chatID, navigation.StepAdmin, true); err != nil {
		return err
	}
	return e.send(ctx, chatID, text, adminMenuKeyboard())
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

// chatLocks serializes handlers per chat and forgets idle chats.
type chatLocks struct {
	mu sync.Mutex
	m  map[int64]*chatLock
}

func (c *chatLocks) lock(chatID int64) func() {
	c.mu.Lock()
	l, ok := c.m[chatID]
	if !ok {
		l = &chatLock{}
		c.m[chatID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.m, chatID)
		}
		c.mu.Unlock()
	}
}
