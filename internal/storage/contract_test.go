package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storebot/internal/shop"
)

// runContract exercises the behaviour every Store must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetUser(ctx, 77)
		require.ErrorIs(t, err, ErrNotFound)

		u, created, err := s.EnsureUser(ctx, shop.User{ID: 77, DisplayName: "Ama"})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "Ama", u.DisplayName)

		u, created, err = s.EnsureUser(ctx, shop.User{ID: 77, DisplayName: "Other"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "Ama", u.DisplayName)

		phone := "0241234567"
		u, err = s.UpdateUser(ctx, 77, shop.UserPatch{Phone: &phone})
		require.NoError(t, err)
		assert.Equal(t, "0241234567", u.Phone)
		assert.Equal(t, "Ama", u.DisplayName)

		_, err = s.UpdateUser(ctx, 78, shop.UserPatch{Phone: &phone})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("products", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p, err := s.CreateProduct(ctx, shop.Product{Name: "Perfume", Price: decimal.RequireFromString("30.00"), Description: "Eau de toilette"})
		require.NoError(t, err)
		require.NotZero(t, p.ID)

		_, err = s.CreateProduct(ctx, shop.Product{Name: "Perfume", Price: decimal.NewFromInt(1)})
		require.ErrorIs(t, err, ErrConflict)

		soap, err := s.CreateProduct(ctx, shop.Product{Name: "Soap", Price: decimal.RequireFromString("2.50")})
		require.NoError(t, err)

		byName, err := s.GetProductByName(ctx, "perfume")
		require.NoError(t, err)
		assert.Equal(t, p.ID, byName.ID)
		assert.True(t, byName.Price.Equal(decimal.NewFromInt(30)))

		list, err := s.ListProducts(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Perfume", list[0].Name)
		assert.Equal(t, "Soap", list[1].Name)

		soap.Name = "Perfume"
		_, err = s.UpdateProduct(ctx, soap)
		require.ErrorIs(t, err, ErrConflict)

		soap.Name = "Bar Soap"
		soap.Price = decimal.RequireFromString("3.10")
		updated, err := s.UpdateProduct(ctx, soap)
		require.NoError(t, err)
		assert.Equal(t, "Bar Soap", updated.Name)

		require.NoError(t, s.DeleteProduct(ctx, soap.ID))
		require.ErrorIs(t, s.DeleteProduct(ctx, soap.ID), ErrNotFound)
		_, err = s.GetProduct(ctx, soap.ID)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cart items", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _, err := s.EnsureUser(ctx, shop.User{ID: 1})
		require.NoError(t, err)

		a, err := s.AddCartItem(ctx, 1, shop.LineItem{ProductID: 10, ProductName: "Perfume", Quantity: 3, UnitPrice: decimal.NewFromInt(30)})
		require.NoError(t, err)
		b, err := s.AddCartItem(ctx, 1, shop.LineItem{ProductID: 11, ProductName: "Soap", Quantity: 1, UnitPrice: decimal.RequireFromString("2.50")})
		require.NoError(t, err)
		assert.Greater(t, b.ID, a.ID)

		items, err := s.ListCartItems(ctx, 1)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, a.ID, items[0].ID)

		err = s.RemoveCartItems(ctx, 1, []int64{a.ID, b.ID + 1000})
		require.ErrorIs(t, err, ErrNotFound)
		items, err = s.ListCartItems(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, items, 2, "failed removal must not remove anything")

		require.NoError(t, s.RemoveCartItems(ctx, 1, []int64{a.ID, a.ID}))
		items, err = s.ListCartItems(ctx, 1)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, b.ID, items[0].ID)
	})

	t.Run("orders", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _, err := s.EnsureUser(ctx, shop.User{ID: 5})
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Millisecond)
		o := shop.Order{
			ID:     uuid.NewString(),
			UserID: 5,
			Items: []shop.LineItem{
				{ID: 1, ProductID: 10, ProductName: "Perfume", Quantity: 3, UnitPrice: decimal.NewFromInt(30)},
			},
			Total:     decimal.NewFromInt(90),
			State:     shop.OrderPending,
			Purchaser: shop.Purchaser{Name: "John Doe", Phone: "0241234567", Address: "1 Main St, Accra"},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, s.CreateOrder(ctx, o))
		require.ErrorIs(t, s.CreateOrder(ctx, o), ErrConflict)

		got, err := s.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, "John Doe", got.Purchaser.Name)
		require.Len(t, got.Items, 1)
		assert.True(t, got.Total.Equal(decimal.NewFromInt(90)))

		_, err = s.UpdateOrderState(ctx, o.ID, shop.OrderConfirmed, shop.OrderCompleted, now)
		require.ErrorIs(t, err, ErrConflict)

		updated, err := s.UpdateOrderState(ctx, o.ID, shop.OrderPending, shop.OrderConfirmed, now.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, shop.OrderConfirmed, updated.State)
		assert.Len(t, updated.Items, 1)

		replayed, err := s.UpdateOrderState(ctx, o.ID, shop.OrderPending, shop.OrderConfirmed, now.Add(2*time.Second))
		require.NoError(t, err, "a replayed transition is not a conflict")
		assert.Equal(t, shop.OrderConfirmed, replayed.State)

		pending := shop.OrderPending
		list, err := s.ListOrders(ctx, &pending)
		require.NoError(t, err)
		assert.Empty(t, list)

		all, err := s.ListOrders(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 1)

		_, err = s.GetOrder(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("place order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _, err := s.EnsureUser(ctx, shop.User{ID: 6})
		require.NoError(t, err)
		a, err := s.AddCartItem(ctx, 6, shop.LineItem{ProductID: 10, ProductName: "Perfume", Quantity: 2, UnitPrice: decimal.NewFromInt(30)})
		require.NoError(t, err)
		later, err := s.AddCartItem(ctx, 6, shop.LineItem{ProductID: 11, ProductName: "Soap", Quantity: 1, UnitPrice: decimal.NewFromInt(2)})
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Millisecond)
		o := shop.Order{
			ID:        uuid.NewString(),
			UserID:    6,
			Items:     []shop.LineItem{a},
			Total:     decimal.NewFromInt(60),
			State:     shop.OrderPending,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = s.PlaceOrder(ctx, o, []int64{a.ID, later.ID + 1000})
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetOrder(ctx, o.ID)
		require.ErrorIs(t, err, ErrNotFound, "a failed placement stores no order")
		items, err := s.ListCartItems(ctx, 6)
		require.NoError(t, err)
		assert.Len(t, items, 2)

		require.NoError(t, s.PlaceOrder(ctx, o, []int64{a.ID}))
		items, err = s.ListCartItems(ctx, 6)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, later.ID, items[0].ID)
		got, err := s.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)

		require.ErrorIs(t, s.PlaceOrder(ctx, o, []int64{later.ID}), ErrConflict)
		items, err = s.ListCartItems(ctx, 6)
		require.NoError(t, err)
		assert.Len(t, items, 1, "a rejected placement keeps the cart")
	})

	t.Run("subscribers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		added, err := s.AddSubscriber(ctx, 9)
		require.NoError(t, err)
		assert.True(t, added)
		added, err = s.AddSubscriber(ctx, 9)
		require.NoError(t, err)
		assert.False(t, added)
		_, err = s.AddSubscriber(ctx, 3)
		require.NoError(t, err)

		ids, err := s.ListSubscribers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 9}, ids)

		removed, err := s.RemoveSubscriber(ctx, 9)
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = s.RemoveSubscriber(ctx, 9)
		require.NoError(t, err)
		assert.False(t, removed)
	})
}
