// Package shop holds the catalog, cart and order records shared by the ledgers and stores.
package shop

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User is a chat participant. ID is the chat id and is stable per conversation.
type User struct {
	ID          int64
	DisplayName string
	Phone       string
	Address     string
	IsAdmin     bool
}

// UserPatch carries the fields to overwrite; nil fields are left untouched.
type UserPatch struct {
	DisplayName *string
	Phone       *string
	Address     *string
	IsAdmin     *bool
}

// Apply copies the set fields of p into u.
func (p UserPatch) Apply(u *User) {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.IsAdmin != nil {
		u.IsAdmin = *p.IsAdmin
	}
}

// Product is a catalog entry. Name is unique across the catalog.
type Product struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	Description string
	ImageKey    string
	ImageURL    string
}

// LineItem is one product and quantity entry in a cart or an order.
// UnitPrice is frozen when the item is added.
type LineItem struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Subtotal returns quantity times unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is a read of one user's line items. Total is derived from Items.
type Cart struct {
	UserID int64
	Items  []LineItem
}

// Total sums the line subtotals.
func (c Cart) Total() decimal.Decimal {
	return SumItems(c.Items)
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// IDs lists the line item ids in cart order.
func (c Cart) IDs() []int64 {
	ids := make([]int64, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

// SumItems returns the exact total of items.
func SumItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// OrderState is the lifecycle state of an order.
type OrderState string

const (
	OrderPending   OrderState = "pending"
	OrderConfirmed OrderState = "confirmed"
	OrderCancelled OrderState = "cancelled"
	OrderCompleted OrderState = "completed"
)

// OrderStates lists every state in admin menu order.
var OrderStates = []OrderState{OrderPending, OrderConfirmed, OrderCancelled, OrderCompleted}

// Valid reports whether s is a known state.
func (s OrderState) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderCancelled, OrderCompleted:
		return true
	}
	return false
}

// Title returns the capitalized state name used in chat texts.
func (s OrderState) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ParseOrderState accepts a state name in any case.
func ParseOrderState(raw string) (OrderState, bool) {
	s := OrderState(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Purchaser is the profile snapshot copied into an order.
type Purchaser struct {
	Name    string
	Phone   string
	Address string
}

// Order is a placed order. Only State and UpdatedAt change after creation.
type Order struct {
	ID        string
	UserID    int64
	Items     []LineItem
	Total     decimal.Decimal
	State     OrderState
	Purchaser Purchaser
	CreatedAt time.Time
	UpdatedAt time.Time
}
