// Package storage defines the persistence contract used by the ledgers and the bot,
// with an in-process implementation and a PostgreSQL one.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/storebot/internal/shop"
)

var (
	// ErrNotFound reports a missing user, product, line item or order.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict reports a unique key clash or a lost compare-and-set.
	ErrConflict = errors.New("storage: conflict")
)

// Users persists chat participants.
type Users interface {
	GetUser(ctx context.Context, id int64) (shop.User, error)
	// EnsureUser inserts u when no user with u.ID exists and reports whether it did.
	// An existing record is returned unchanged.
	EnsureUser(ctx context.Context, u shop.User) (shop.User, bool, error)
	UpdateUser(ctx context.Context, id int64, patch shop.UserPatch) (shop.User, error)
}

// Products persists the catalog.
type Products interface {
	CreateProduct(ctx context.Context, p shop.Product) (shop.Product, error)
	GetProduct(ctx context.Context, id int64) (shop.Product, error)
	GetProductByName(ctx context.Context, name string) (shop.Product, error)
	// ListProducts returns the catalog ordered by id.
	ListProducts(ctx context.Context) ([]shop.Product, error)
	UpdateProduct(ctx context.Context, p shop.Product) (shop.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// CartItems persists cart line items per user.
type CartItems interface {
	// AddCartItem assigns a new id to item and stores it.
	AddCartItem(ctx context.Context, userID int64, item shop.LineItem) (shop.LineItem, error)
	// ListCartItems returns the user's items ordered by id.
	ListCartItems(ctx context.Context, userID int64) ([]shop.LineItem, error)
	// RemoveCartItems deletes all ids or none. A missing id yields ErrNotFound.
	RemoveCartItems(ctx context.Context, userID int64, ids []int64) error
}

// Orders persists placed orders.
type Orders interface {
	CreateOrder(ctx context.Context, o shop.Order) error
	// PlaceOrder stores o and removes lineIDs from the cart of o.UserID in one step.
	// Nothing is written when an id is missing (ErrNotFound) or o.ID is taken (ErrConflict).
	PlaceOrder(ctx context.Context, o shop.Order, lineIDs []int64) error
	GetOrder(ctx context.Context, id string) (shop.Order, error)
	// ListOrders returns orders oldest first, optionally restricted to one state.
	ListOrders(ctx context.Context, state *shop.OrderState) ([]shop.Order, error)
	// UpdateOrderState moves the order from one state to another.
	// An order already in state to is returned as is, so a replayed call succeeds.
	// ErrConflict is returned when the stored state is neither from nor to.
	UpdateOrderState(ctx context.Context, id string, from, to shop.OrderState, at time.Time) (shop.Order, error)
}

// Subscribers persists the set of admin chats receiving order notifications.
type Subscribers interface {
	// AddSubscriber reports whether chatID was newly added.
	AddSubscriber(ctx context.Context, chatID int64) (bool, error)
	// RemoveSubscriber reports whether chatID was a member.
	RemoveSubscriber(ctx context.Context, chatID int64) (bool, error)
	ListSubscribers(ctx context.Context) ([]int64, error)
}

// Store bundles every collection.
type Store interface {
	Users
	Products
	CartItems
	Orders
	Subscribers
	Close() error
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
