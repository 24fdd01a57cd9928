// Package cart is the per-user cart ledger. Totals are always derived from the stored line items.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/internal/shop"
	"github.com/m3rciful/storebot/internal/storage"
)

var (
	// ErrInvalidQuantity rejects quantities below one.
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	// ErrLineItemNotFound reports an id that is not in the user's cart.
	ErrLineItemNotFound = errors.New("cart: line item not found")
)

// Ledger records cart line items on top of a storage.CartItems collection.
type Ledger struct {
	items storage.CartItems
}

// NewLedger returns a ledger backed by items.
func NewLedger(items storage.CartItems) *Ledger {
	return &Ledger{items: items}
}

// AddLineItem stores quantity units of product at unitPrice, the price frozen for this line.
func (l *Ledger) AddLineItem(ctx context.Context, userID int64, product shop.Product, quantity int, unitPrice decimal.Decimal) (shop.LineItem, error) {
	if quantity <= 0 {
		return shop.LineItem{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if unitPrice.IsNegative() {
		return shop.LineItem{}, fmt.Errorf("cart: negative unit price %s", unitPrice)
	}
	item, err := l.items.AddCartItem(ctx, userID, shop.LineItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	})
	if err != nil {
		return shop.LineItem{}, fmt.Errorf("cart: add line item: %w", err)
	}
	logger.Info(ctx, logger.CompCart, "cart.add",
		slog.Int64("line_item_id", item.ID),
		slog.String("product", item.ProductName),
		slog.Int("quantity", item.Quantity),
		slog.String("total", item.Subtotal().String()),
	)
	return item, nil
}

// Get reads the user's cart. Items are ordered by line id.
func (l *Ledger) Get(ctx context.Context, userID int64) (shop.Cart, error) {
	items, err := l.items.ListCartItems(ctx, userID)
	if err != nil {
		return shop.Cart{}, fmt.Errorf("cart: get: %w", err)
	}
	return shop.Cart{UserID: userID, Items: items}, nil
}

// RemoveLineItems removes every id or none of them.
func (l *Ledger) RemoveLineItems(ctx context.Context, userID int64, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := l.items.RemoveCartItems(ctx, userID, ids); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrLineItemNotFound, err)
		}
		return fmt.Errorf("cart: remove line items: %w", err)
	}
	logger.Info(ctx, logger.CompCart, "cart.remove", slog.Int("count", len(ids)))
	return nil
}

// ClearAfterOrder removes exactly the line items that became an order.
// Items added after the order snapshot stay in the cart.
func (l *Ledger) ClearAfterOrder(ctx context.Context, userID int64, ids ...int64) error {
	return l.RemoveLineItems(ctx, userID, ids...)
}
