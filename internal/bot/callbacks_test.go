package bot

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/shop"
)

func TestParseOrderAction(t *testing.T) {
	id := uuid.NewString()

	a, err := ParseOrderAction("confirmed|" + id)
	require.NoError(t, err)
	assert.Equal(t, OrderAction{State: shop.OrderConfirmed, OrderID: id}, a)

	a, err = ParseOrderAction("\fCompleted|" + id)
	require.NoError(t, err)
	assert.Equal(t, shop.OrderCompleted, a.State)

	assert.Equal(t, "cancelled|"+id, OrderAction{State: shop.OrderCancelled, OrderID: id}.Encode())

	for _, bad := range []string{
		"",
		"confirmed",
		"shipped|" + id,
		"confirmed|42",
		"{'action': 'Confirm Order', 'order_id': '" + id + "'}",
		"__import__('os')|" + id,
	} {
		_, err := ParseOrderAction(bad)
		assert.ErrorIs(t, err, ErrBadCallback, bad)
	}
}

func tap(h *harness, chatID int64, data string) error {
	return h.handle(Message{ChatID: chatID, Callback: &Callback{ID: "cb", Data: data}})
}

func TestOrderCallbackMovesStateAndNotifiesPurchaser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const admin, customer = int64(600), int64(4004)
	h.makeAdmin(admin)

	item := shop.LineItem{ID: 1, ProductID: 1, ProductName: "Perfume", Quantity: 1, UnitPrice: decimalOf(t, "30")}
	o, err := h.orders.Create(ctx, customer, shop.Purchaser{Name: "Ama"}, item.Subtotal(), []shop.LineItem{item})
	require.NoError(t, err)

	// the admin is halfway through adding an item when the notification arrives
	h.say(admin, "/admin")
	h.say(admin, testPassword)
	h.say(admin, btnAddItem)
	h.say(admin, "Lotion")
	require.Equal(t, navigation.StepAddItemDescription, h.step(admin))
	beforeTap := len(h.tr.to(admin))

	require.NoError(t, tap(h, admin, OrderAction{State: shop.OrderCompleted, OrderID: o.ID}.Encode()))
	assert.Equal(t, "Order cannot move from pending to completed", h.tr.lastAnswer(t))

	require.NoError(t, tap(h, admin, OrderAction{State: shop.OrderConfirmed, OrderID: o.ID}.Encode()))
	assert.Equal(t, textCbUpdated, h.tr.lastAnswer(t))
	assert.Equal(t, "Your order "+o.ID+" has been marked as confirmed", h.tr.last(t, customer).text)
	assert.Equal(t, navigation.StepAddItemDescription, h.step(admin))
	assert.Len(t, h.tr.to(admin), beforeTap, "callbacks are answered, not replied to")
	_, staged, err := h.stage.LoadDraft(ctx, admin)
	require.NoError(t, err)
	assert.True(t, staged)

	require.NoError(t, tap(h, admin, OrderAction{State: shop.OrderCompleted, OrderID: o.ID}.Encode()))
	assert.Equal(t, textCbUpdated, h.tr.lastAnswer(t))

	got, err := h.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.OrderCompleted, got.State)
	assert.True(t, o.Total.Equal(got.Total))
	assert.Equal(t, o.Items, got.Items)

	require.NoError(t, tap(h, admin, OrderAction{State: shop.OrderPending, OrderID: o.ID}.Encode()))
	assert.Equal(t, "Order cannot move from completed to pending", h.tr.lastAnswer(t))
	assert.Len(t, h.tr.to(customer), 2)
}

func TestOrderCallbackRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const admin, customer = int64(601), int64(4005)
	h.makeAdmin(admin)
	item := shop.LineItem{ID: 1, ProductID: 1, ProductName: "Perfume", Quantity: 1, UnitPrice: decimalOf(t, "30")}
	o, err := h.orders.Create(ctx, customer, shop.Purchaser{}, item.Subtotal(), []shop.LineItem{item})
	require.NoError(t, err)

	require.NoError(t, tap(h, customer, OrderAction{State: shop.OrderCancelled, OrderID: o.ID}.Encode()))
	assert.Equal(t, textCbAdminsOnly, h.tr.lastAnswer(t))

	require.NoError(t, tap(h, admin, "{'action': 'Cancel Order'}"))
	assert.Equal(t, textCbUnsupported, h.tr.lastAnswer(t))

	require.NoError(t, tap(h, admin, OrderAction{State: shop.OrderCancelled, OrderID: uuid.NewString()}.Encode()))
	assert.Equal(t, textCbMissing, h.tr.lastAnswer(t))

	got, err := h.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.OrderPending, got.State)
	assert.Empty(t, h.tr.to(customer))
}
