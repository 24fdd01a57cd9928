package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/shop"
)

func TestAdminLoginAndAddItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const admin = int64(500)

	h.say(admin, "/admin")
	assert.Equal(t, textAdminWelcome, h.tr.last(t, admin).text)
	assert.Equal(t, navigation.StepAdminPassword, h.step(admin))

	h.say(admin, "guess")
	assert.Equal(t, textWrongPassword, h.tr.last(t, admin).text)
	assert.Equal(t, navigation.StepAdminPassword, h.step(admin))
	u, err := h.store.GetUser(ctx, admin)
	require.NoError(t, err)
	assert.False(t, u.IsAdmin)

	h.say(admin, testPassword)
	texts := h.tr.texts(admin)
	assert.Equal(t, []string{textAccessGranted, textAdminPrompt}, texts[len(texts)-2:])
	assert.Equal(t, navigation.StepAdmin, h.step(admin))
	u, err = h.store.GetUser(ctx, admin)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)

	h.say(admin, btnAddItem)
	assert.Equal(t, textItemName, h.tr.last(t, admin).text)
	assert.Equal(t, navigation.StepAddItemName, h.step(admin))

	h.say(admin, "Perfume")
	assert.Equal(t, "Enter the description of Perfume", h.tr.last(t, admin).text)
	h.say(admin, "A fresh scent")
	assert.Equal(t, "Enter the price of Perfume", h.tr.last(t, admin).text)

	for _, bad := range []string{"free", "-3", "0", "9.999", "GHC 0.005"} {
		h.say(admin, bad)
		assert.Equal(t, textItemBadPrice, h.tr.last(t, admin).text, bad)
		assert.Equal(t, navigation.StepAddItemPrice, h.step(admin), bad)
	}
	h.say(admin, "30.500")
	assert.Equal(t, "Send an image of Perfume", h.tr.last(t, admin).text)

	h.say(admin, "here it comes")
	assert.Equal(t, "Send an image of Perfume", h.tr.last(t, admin).text)
	assert.Equal(t, navigation.StepAddItemImage, h.step(admin))

	h.tr.files["photo-1"] = []byte("img")
	require.NoError(t, h.handle(Message{ChatID: admin, PhotoFileID: "photo-1"}))
	assert.Equal(t, "Perfume has been added to the list of products", h.tr.last(t, admin).text)
	assert.Equal(t, navigation.StepAdmin, h.step(admin))

	p, err := h.store.GetProductByName(ctx, "Perfume")
	require.NoError(t, err)
	assert.Equal(t, "30.5", p.Price.String())
	assert.Equal(t, "A fresh scent", p.Description)
	assert.Equal(t, "products/perfume.jpg", p.ImageKey)
	assert.Equal(t, "memory://media/products/perfume.jpg", p.ImageURL)
	data, err := h.media.Download(ctx, p.ImageKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	_, staged, err := h.stage.LoadDraft(ctx, admin)
	require.NoError(t, err)
	assert.False(t, staged)
}

func TestAddItemRejectsDuplicateName(t *testing.T) {
	h := newHarness(t)
	h.addProduct("Perfume", "30", nil)
	const admin = int64(501)
	h.makeAdmin(admin)
	h.say(admin, "/cancel")
	assert.Equal(t, navigation.StepAdmin, h.step(admin))

	h.say(admin, btnAddItem)
	h.say(admin, "perfume")
	assert.Equal(t, "Perfume already exists, please enter a different name", h.tr.last(t, admin).text)
	assert.Equal(t, navigation.StepAddItemName, h.step(admin))
}

func TestUpdateItemKeepsValues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	orig := h.addProduct("Perfume", "30", []byte("old"))
	const admin = int64(502)
	h.makeAdmin(admin)
	h.say(admin, "/cancel")

	h.say(admin, btnUpdateItem)
	assert.Equal(t, textSelectUpdate, h.tr.last(t, admin).text)
	assert.Equal(t, navigation.StepUpdateItemSelect, h.step(admin))

	h.say(admin, "Perfume")
	last := h.tr.last(t, admin)
	assert.Equal(t, "Enter the new name of Perfume", last.text)
	assert.Equal(t, []string{btnKeep}, last.kb.Rows[0])

	h.say(admin, btnKeep)
	h.say(admin, "Now with notes of cedar")
	h.say(admin, btnKeep)
	h.say(admin, btnKeep)
	assert.Equal(t, "Perfume has been updated", h.tr.last(t, admin).text)

	p, err := h.store.GetProduct(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "Now with notes of cedar", p.Description)
	assert.True(t, orig.Price.Equal(p.Price))
	assert.Equal(t, orig.ImageKey, p.ImageKey)
}

func TestRemoveItemDeletesMedia(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addProduct("Perfume", "30", []byte("img"))
	const admin = int64(503)
	h.makeAdmin(admin)
	h.say(admin, "/cancel")

	h.say(admin, btnRemoveItem)
	assert.Equal(t, navigation.StepRemoveItemName, h.step(admin))
	h.say(admin, "Lipstick")
	assert.Equal(t, textItemNotFound, h.tr.last(t, admin).text)

	h.say(admin, "Perfume")
	assert.Equal(t, "Perfume has been removed from the list of products", h.tr.last(t, admin).text)
	assert.Equal(t, navigation.StepAdmin, h.step(admin))
	products, err := h.store.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 0, h.media.Len())
}

func TestAdminButtonsIgnoredForCustomers(t *testing.T) {
	h := newHarness(t)
	const chat = int64(504)
	h.say(chat, "/start")
	h.say(chat, btnAddItem)
	assert.Equal(t, textNotUnderstood, h.tr.last(t, chat).text)
	assert.Equal(t, navigation.StepStart, h.step(chat))
}

func TestNotificationSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const admin = int64(505)
	h.makeAdmin(admin)
	h.say(admin, "/cancel")

	h.say(admin, "/activate_notifications")
	assert.Equal(t, textNotifyOn, h.tr.last(t, admin).text)
	subs, err := h.store.ListSubscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{admin}, subs)

	h.say(admin, "/deactivate_notifications")
	assert.Equal(t, textNotifyOff, h.tr.last(t, admin).text)
	subs, err = h.store.ListSubscribers(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestOrderListAndSelection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const admin, customer = int64(506), int64(3003)
	h.makeAdmin(admin)
	h.say(admin, "/cancel")

	h.say(admin, orderListButton(shop.OrderPending))
	assert.Equal(t, "There are no pending orders", h.tr.last(t, admin).text)
	assert.Equal(t, navigation.StepAdmin, h.step(admin))

	item := shop.LineItem{ID: 1, ProductID: 1, ProductName: "Perfume", Quantity: 2, UnitPrice: decimalOf(t, "30")}
	o, err := h.orders.Create(ctx, customer, shop.Purchaser{Name: "Ama"}, item.Subtotal(), []shop.LineItem{item})
	require.NoError(t, err)

	h.say(admin, orderListButton(shop.OrderPending))
	last := h.tr.last(t, admin)
	assert.Contains(t, last.text, "Order ID: "+o.ID)
	assert.Equal(t, []string{o.ID}, last.kb.Rows[0])
	assert.Equal(t, navigation.StepOrderSelection, h.step(admin))

	h.say(admin, "no-such-order")
	assert.Equal(t, textOrderMissing, h.tr.last(t, admin).text)

	h.say(admin, o.ID)
	last = h.tr.last(t, admin)
	assert.Contains(t, last.text, "Item: Perfume\nQuantity: 2\nPrice: 30")
	assert.Contains(t, last.text, "Total: GHC 60")
	require.NotNil(t, last.kb)
	require.Len(t, last.kb.Inline, 2)
	assert.Equal(t, "Confirm Order", last.kb.Inline[0][0].Text)
	assert.Equal(t, "confirmed|"+o.ID, last.kb.Inline[0][0].Data)
	assert.Equal(t, "Cancel Order", last.kb.Inline[1][0].Text)
}
