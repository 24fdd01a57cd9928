// Package orders is the order ledger: placed orders and their state machine.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/internal/shop"
	"github.com/m3rciful/storebot/internal/storage"
)

var (
	// ErrInvalidTransition is wrapped by every *TransitionError.
	ErrInvalidTransition = errors.New("orders: invalid state transition")
	// ErrEmptyOrder rejects orders without items.
	ErrEmptyOrder = errors.New("orders: no items")
)

// TransitionError describes a refused state change.
type TransitionError struct {
	OrderID string
	From    shop.OrderState
	To      shop.OrderState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("orders: order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// transitions lists the allowed target states per source state.
// Completed is terminal.
var transitions = map[shop.OrderState][]shop.OrderState{
	shop.OrderPending:   {shop.OrderConfirmed, shop.OrderCancelled},
	shop.OrderConfirmed: {shop.OrderPending, shop.OrderCancelled, shop.OrderCompleted},
	shop.OrderCancelled: {shop.OrderPending},
}

// CanTransition reports whether an order in from may move to to.
func CanTransition(from, to shop.OrderState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Allowed returns the states reachable from from.
func Allowed(from shop.OrderState) []shop.OrderState {
	return append([]shop.OrderState(nil), transitions[from]...)
}

// Ledger creates and updates orders through a storage.Orders collection.
type Ledger struct {
	store storage.Orders
	now   func() time.Time
	newID func() string
}

// NewLedger returns a ledger backed by store.
func NewLedger(store storage.Orders) *Ledger {
	return &Ledger{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Create records a pending order holding a copy of items and the purchaser snapshot.
func (l *Ledger) Create(ctx context.Context, userID int64, purchaser shop.Purchaser, total decimal.Decimal, items []shop.LineItem) (shop.Order, error) {
	o, err := l.newOrder(userID, purchaser, total, items)
	if err != nil {
		return shop.Order{}, err
	}
	if err := l.store.CreateOrder(ctx, o); err != nil {
		return shop.Order{}, fmt.Errorf("orders: create: %w", err)
	}
	l.logCreated(ctx, o)
	return o, nil
}

// Place turns the cart snapshot c into a pending order and removes exactly its
// line items from the cart. Either both happen or neither does.
func (l *Ledger) Place(ctx context.Context, userID int64, purchaser shop.Purchaser, c shop.Cart) (shop.Order, error) {
	o, err := l.newOrder(userID, purchaser, c.Total(), c.Items)
	if err != nil {
		return shop.Order{}, err
	}
	if err := l.store.PlaceOrder(ctx, o, c.IDs()); err != nil {
		return shop.Order{}, fmt.Errorf("orders: place: %w", err)
	}
	l.logCreated(ctx, o)
	return o, nil
}

func (l *Ledger) newOrder(userID int64, purchaser shop.Purchaser, total decimal.Decimal, items []shop.LineItem) (shop.Order, error) {
	if len(items) == 0 {
		return shop.Order{}, ErrEmptyOrder
	}
	now := l.now()
	return shop.Order{
		ID:        l.newID(),
		UserID:    userID,
		Items:     append([]shop.LineItem(nil), items...),
		Total:     total,
		State:     shop.OrderPending,
		Purchaser: purchaser,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (l *Ledger) logCreated(ctx context.Context, o shop.Order) {
	logger.Info(ctx, logger.CompOrders, "order.create",
		slog.String("order_id", o.ID),
		slog.Int("count", len(o.Items)),
		slog.String("total", o.Total.String()),
	)
}

// UpdateState moves the order to state when the transition table allows it.
func (l *Ledger) UpdateState(ctx context.Context, orderID string, state shop.OrderState) (shop.Order, error) {
	if !state.Valid() {
		return shop.Order{}, fmt.Errorf("orders: unknown state %q: %w", state, ErrInvalidTransition)
	}
	current, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return shop.Order{}, fmt.Errorf("orders: update state: %w", err)
	}
	if !CanTransition(current.State, state) {
		logger.Warn(ctx, logger.CompOrders, "order.transition_refused",
			slog.String("order_id", orderID),
			slog.String("order_state", string(current.State)),
			slog.String("status", "denied"),
			slog.String("cause", string(state)),
		)
		return shop.Order{}, &TransitionError{OrderID: orderID, From: current.State, To: state}
	}
	updated, err := l.store.UpdateOrderState(ctx, orderID, current.State, state, l.now())
	if err != nil {
		return shop.Order{}, fmt.Errorf("orders: update state: %w", err)
	}
	logger.Info(ctx, logger.CompOrders, "order.state",
		slog.String("order_id", orderID),
		slog.String("order_state", string(updated.State)),
		slog.String("cause", string(current.State)),
	)
	return updated, nil
}

// Get returns one order.
func (l *Ledger) Get(ctx context.Context, orderID string) (shop.Order, error) {
	o, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return shop.Order{}, fmt.Errorf("orders: get: %w", err)
	}
	return o, nil
}

// List returns orders oldest first. A nil filter returns every order.
func (l *Ledger) List(ctx context.Context, filter *shop.OrderState) ([]shop.Order, error) {
	list, err := l.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	return list, nil
}
