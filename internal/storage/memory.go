package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/storebot/internal/shop"
)

// Memory is a Store kept in process memory. Reads return copies.
type Memory struct {
	mu sync.RWMutex

	users       map[int64]shop.User
	products    map[int64]shop.Product
	productSeq  int64
	carts       map[int64][]shop.LineItem
	lineSeq     int64
	orders      map[string]shop.Order
	orderSeq    []string
	subscribers map[int64]struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[int64]shop.User),
		products:    make(map[int64]shop.Product),
		carts:       make(map[int64][]shop.LineItem),
		orders:      make(map[string]shop.Order),
		subscribers: make(map[int64]struct{}),
	}
}

var _ Store = (*Memory)(nil)

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func (m *Memory) GetUser(_ context.Context, id int64) (shop.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return shop.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *Memory) EnsureUser(_ context.Context, u shop.User) (shop.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[u.ID]; ok {
		return existing, false, nil
	}
	m.users[u.ID] = u
	return u, true, nil
}

func (m *Memory) UpdateUser(_ context.Context, id int64, patch shop.UserPatch) (shop.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return shop.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	patch.Apply(&u)
	m.users[id] = u
	return u, nil
}

func (m *Memory) CreateProduct(_ context.Context, p shop.Product) (shop.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTakenLocked(p.Name, 0) {
		return shop.Product{}, fmt.Errorf("product %q: %w", p.Name, ErrConflict)
	}
	m.productSeq++
	p.ID = m.productSeq
	m.products[p.ID] = p
	return p, nil
}

func (m *Memory) nameTakenLocked(name string, except int64) bool {
	for id, p := range m.products {
		if id != except && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (m *Memory) GetProduct(_ context.Context, id int64) (shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return shop.Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) GetProductByName(_ context.Context, name string) (shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return shop.Product{}, fmt.Errorf("product %q: %w", name, ErrNotFound)
}

func (m *Memory) ListProducts(_ context.Context) ([]shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]shop.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateProduct(_ context.Context, p shop.Product) (shop.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return shop.Product{}, fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	if m.nameTakenLocked(p.Name, p.ID) {
		return shop.Product{}, fmt.Errorf("product %q: %w", p.Name, ErrConflict)
	}
	m.products[p.ID] = p
	return p, nil
}

func (m *Memory) DeleteProduct(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) AddCartItem(_ context.Context, userID int64, item shop.LineItem) (shop.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lineSeq++
	item.ID = m.lineSeq
	m.carts[userID] = append(m.carts[userID], item)
	return item, nil
}

func (m *Memory) ListCartItems(_ context.Context, userID int64) ([]shop.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// ids grow monotonically, so append order is id order
	return append([]shop.LineItem(nil), m.carts[userID]...), nil
}

func (m *Memory) RemoveCartItems(_ context.Context, userID int64, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLinesLocked(userID, dedupe(ids))
}

func (m *Memory) removeLinesLocked(userID int64, ids []int64) error {
	items := m.carts[userID]
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := make([]shop.LineItem, 0, len(items))
	for _, it := range items {
		if _, ok := drop[it.ID]; ok {
			delete(drop, it.ID)
			continue
		}
		kept = append(kept, it)
	}
	for _, id := range ids {
		if _, missing := drop[id]; missing {
			return fmt.Errorf("line item %d: %w", id, ErrNotFound)
		}
	}
	if len(kept) == 0 {
		delete(m.carts, userID)
		return nil
	}
	m.carts[userID] = kept
	return nil
}

func (m *Memory) CreateOrder(_ context.Context, o shop.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertOrderLocked(o)
}

func (m *Memory) PlaceOrder(_ context.Context, o shop.Order, lineIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("order %s: %w", o.ID, ErrConflict)
	}
	if err := m.removeLinesLocked(o.UserID, dedupe(lineIDs)); err != nil {
		return err
	}
	return m.insertOrderLocked(o)
}

func (m *Memory) insertOrderLocked(o shop.Order) error {
	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("order %s: %w", o.ID, ErrConflict)
	}
	o.Items = append([]shop.LineItem(nil), o.Items...)
	m.orders[o.ID] = o
	m.orderSeq = append(m.orderSeq, o.ID)
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (shop.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return shop.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return copyOrder(o), nil
}

func (m *Memory) ListOrders(_ context.Context, state *shop.OrderState) ([]shop.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]shop.Order, 0, len(m.orderSeq))
	for _, id := range m.orderSeq {
		o := m.orders[id]
		if state != nil && o.State != *state {
			continue
		}
		out = append(out, copyOrder(o))
	}
	return out, nil
}

func (m *Memory) UpdateOrderState(_ context.Context, id string, from, to shop.OrderState, at time.Time) (shop.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return shop.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if o.State == to {
		return copyOrder(o), nil
	}
	if o.State != from {
		return shop.Order{}, fmt.Errorf("order %s is %s, not %s: %w", id, o.State, from, ErrConflict)
	}
	o.State = to
	o.UpdatedAt = at
	m.orders[id] = o
	return copyOrder(o), nil
}

func copyOrder(o shop.Order) shop.Order {
	o.Items = append([]shop.LineItem(nil), o.Items...)
	return o
}

func (m *Memory) AddSubscriber(_ context.Context, chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[chatID]; ok {
		return false, nil
	}
	m.subscribers[chatID] = struct{}{}
	return true, nil
}

func (m *Memory) RemoveSubscriber(_ context.Context, chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[chatID]; !ok {
		return false, nil
	}
	delete(m.subscribers, chatID)
	return true, nil
}

func (m *Memory) ListSubscribers(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int64, 0, len(m.subscribers))
	for id := range m.subscribers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
