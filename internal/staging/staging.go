// Package staging keeps per-chat records of selections that are not committed yet:
// the product and quantity a customer is choosing and the product an admin is editing.
package staging

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderInProgress is a customer's pending product selection.
type OrderInProgress struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity,omitempty"`
}

// Total returns unit price times quantity.
func (o OrderInProgress) Total() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

// ProductDraft collects admin input for a new product (ProductID 0) or an update.
type ProductDraft struct {
	ProductID   int64           `json:"product_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageKey    string          `json:"image_key,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
}

// IsUpdate reports whether the draft edits an existing product.
func (d ProductDraft) IsUpdate() bool { return d.ProductID != 0 }

// Store persists staging records per chat. Load methods report ok=false when nothing is staged.
type Store interface {
	SaveOrder(ctx context.Context, chatID int64, o OrderInProgress) error
	LoadOrder(ctx context.Context, chatID int64) (OrderInProgress, bool, error)
	DropOrder(ctx context.Context, chatID int64) error

	SaveDraft(ctx context.Context, chatID int64, d ProductDraft) error
	LoadDraft(ctx context.Context, chatID int64) (ProductDraft, bool, error)
	DropDraft(ctx context.Context, chatID int64) error
}
