package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/shop"
	"github.com/m3rciful/storebot/internal/storage"
)

// flakyCatalog fails the next UpdateUser call once.
type flakyCatalog struct {
	*storage.Memory
	mu   sync.Mutex
	fail error
}

func (f *flakyCatalog) UpdateUser(ctx context.Context, id int64, patch shop.UserPatch) (shop.User, error) {
	f.mu.Lock()
	err := f.fail
	f.fail = nil
	f.mu.Unlock()
	if err != nil {
		return shop.User{}, err
	}
	return f.Memory.UpdateUser(ctx, id, patch)
}

func TestCatchAllResetsToMainMenu(t *testing.T) {
	h := newHarness(t)
	const chat = int64(20)
	h.addProduct("Perfume", "30", nil)
	h.say(chat, btnMakePurchase)
	h.say(chat, "Perfume")

	h.say(chat, "/unknown")
	last := h.tr.last(t, chat)
	assert.Equal(t, textNotUnderstood, last.text)
	assert.Equal(t, mainMenuKeyboard(), last.kb)

	path, err := h.nav.Path(context.Background(), chat)
	require.NoError(t, err)
	assert.Equal(t, []navigation.Step{navigation.StepStart}, path)

	require.NoError(t, h.handle(Message{ChatID: chat, PhotoFileID: "stray"}))
	assert.Equal(t, textNotUnderstood, h.tr.last(t, chat).text)
}

func TestCollaboratorFailureDoesNotAdvance(t *testing.T) {
	var flaky *flakyCatalog
	h := newHarness(t, func(d *Deps) {
		flaky = &flakyCatalog{Memory: d.Catalog.(*storage.Memory)}
		d.Catalog = flaky
	})
	h.addProduct("Perfume", "30", nil)
	const chat = int64(21)
	h.fillCart(chat, "Perfume", "1")
	h.say(chat, btnCheckout)
	require.Equal(t, navigation.StepPhoneNumber, h.step(chat))

	flaky.mu.Lock()
	flaky.fail = errors.New("connection reset by peer")
	flaky.mu.Unlock()

	err := h.handle(Message{ChatID: chat, Text: "0241234567"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone_number")
	assert.Equal(t, textFailure, h.tr.last(t, chat).text)
	assert.Equal(t, navigation.StepPhoneNumber, h.step(chat))

	h.say(chat, "0241234567")
	assert.Equal(t, navigation.StepAddress, h.step(chat))
}

func TestHandleRejectsMissingChat(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.engine.Handle(context.Background(), Message{Text: "hi"}), ErrNoChat)
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)

	h := newHarness(t)
	deps := h.engine.Deps
	deps.AdminPassword = ""
	_, err = New(deps)
	require.ErrorContains(t, err, "admin password")
}

func TestHelpAndCancel(t *testing.T) {
	h := newHarness(t)
	const chat = int64(22)
	h.say(chat, "/help")
	assert.Equal(t, textHelp, h.tr.last(t, chat).text)
	assert.Equal(t, navigation.StepNone, h.step(chat))

	h.addProduct("Perfume", "30", nil)
	h.say(chat, btnMakePurchase)
	h.say(chat, "Perfume")
	h.say(chat, "/cancel")
	assert.Equal(t, textNext, h.tr.last(t, chat).text)
	assert.Equal(t, navigation.StepStart, h.step(chat))
	_, staged, err := h.stage.LoadOrder(context.Background(), chat)
	require.NoError(t, err)
	assert.False(t, staged)
}

func TestChatsAreHandledConcurrently(t *testing.T) {
	h := newHarness(t)
	h.addProduct("Perfume", "30", nil)

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			for _, text := range []string{"/start", btnMakePurchase, "Perfume", "2", btnYes} {
				assert.NoError(t, h.handle(Message{ChatID: chat, Text: text}))
			}
		}(i)
	}
	wg.Wait()

	for i := int64(1); i <= 20; i++ {
		c, err := h.carts.Get(context.Background(), i)
		require.NoError(t, err)
		require.Len(t, c.Items, 1)
		assert.Equal(t, "60", c.Total().String())
	}
	h.engine.locks.mu.Lock()
	assert.Empty(t, h.engine.locks.m)
	h.engine.locks.mu.Unlock()
}
