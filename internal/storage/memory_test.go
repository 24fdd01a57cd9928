package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storebot/internal/shop"
)

func TestMemoryContract(t *testing.T) {
	runContract(t, func(*testing.T) Store { return NewMemory() })
}

func TestMemoryReadsAreCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_, err := s.AddCartItem(ctx, 1, shop.LineItem{ProductName: "Soap", Quantity: 1, UnitPrice: decimal.NewFromInt(2)})
	require.NoError(t, err)

	items, err := s.ListCartItems(ctx, 1)
	require.NoError(t, err)
	items[0].Quantity = 99

	again, err := s.ListCartItems(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, again[0].Quantity)
}
