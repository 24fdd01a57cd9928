package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storebot/internal/cart"
	"github.com/m3rciful/storebot/internal/media"
	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/orders"
	"github.com/m3rciful/storebot/internal/shop"
	"github.com/m3rciful/storebot/internal/staging"
	"github.com/m3rciful/storebot/internal/storage"
)

const testPassword = "secret"

type sent struct {
	chatID int64
	text   string
	kb     *Keyboard
	photo  *Photo
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []sent
	answers []string
	files   map[string][]byte
	failFor map[int64]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{files: make(map[string][]byte), failFor: make(map[int64]error)}
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string, kb *Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sent{chatID: chatID, text: text, kb: kb})
	return nil
}

func (f *fakeTransport) SendPhoto(_ context.Context, chatID int64, photo Photo, caption string, kb *Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sent{chatID: chatID, text: caption, kb: kb, photo: &photo})
	return nil
}

func (f *fakeTransport) FetchFile(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

func (f *fakeTransport) AnswerCallback(_ context.Context, _ Callback, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeTransport) to(chatID int64) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, s := range f.sent {
		if s.chatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeTransport) texts(chatID int64) []string {
	var out []string
	for _, s := range f.to(chatID) {
		out = append(out, s.text)
	}
	return out
}

func (f *fakeTransport) last(t *testing.T, chatID int64) sent {
	t.Helper()
	msgs := f.to(chatID)
	require.NotEmpty(t, msgs, "nothing sent to %d", chatID)
	return msgs[len(msgs)-1]
}

func (f *fakeTransport) lastAnswer(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.answers)
	return f.answers[len(f.answers)-1]
}

type harness struct {
	t      *testing.T
	engine *Engine
	tr     *fakeTransport
	store  *storage.Memory
	nav    *navigation.Navigator
	stage  staging.Store
	media  *media.Memory
	carts  *cart.Ledger
	orders *orders.Ledger
}

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		tr:    newFakeTransport(),
		store: storage.NewMemory(),
		nav:   navigation.New(navigation.NewMemoryStore()),
		stage: staging.NewMemoryStore(),
		media: media.NewMemory(""),
	}
	h.carts = cart.NewLedger(h.store)
	h.orders = orders.NewLedger(h.store)
	deps := Deps{
		Transport:     h.tr,
		Catalog:       h.store,
		Carts:         h.carts,
		Orders:        h.orders,
		Navigator:     h.nav,
		Staging:       h.stage,
		Media:         h.media,
		AdminPassword: testPassword,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e, err := New(deps)
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) handle(msg Message) error {
	if msg.UserID == 0 {
		msg.UserID = msg.ChatID
	}
	if msg.DisplayName == "" {
		msg.DisplayName = "Ama Mensah"
	}
	return h.engine.Handle(context.Background(), msg)
}

func (h *harness) say(chatID int64, text string) {
	h.t.Helper()
	require.NoError(h.t, h.handle(Message{ChatID: chatID, Text: text}))
}

func (h *harness) step(chatID int64) navigation.Step {
	h.t.Helper()
	s, err := h.nav.Current(context.Background(), chatID)
	require.NoError(h.t, err)
	return s
}

func (h *harness) addProduct(name, price string, image []byte) shop.Product {
	h.t.Helper()
	ctx := context.Background()
	p := shop.Product{Name: name, Price: decimal.RequireFromString(price), Description: name + " description"}
	if image != nil {
		p.ImageKey = media.KeyFor(name)
		url, err := h.media.Upload(ctx, p.ImageKey, image, "image/jpeg")
		require.NoError(h.t, err)
		p.ImageURL = url
	}
	p, err := h.store.CreateProduct(ctx, p)
	require.NoError(h.t, err)
	return p
}

func (h *harness) makeAdmin(chatID int64) {
	h.t.Helper()
	ctx := context.Background()
	_, _, err := h.store.EnsureUser(ctx, shop.User{ID: chatID, DisplayName: "Kofi Admin"})
	require.NoError(h.t, err)
	admin := true
	_, err = h.store.UpdateUser(ctx, chatID, shop.UserPatch{IsAdmin: &admin})
	require.NoError(h.t, err)
}

// fillCart walks the purchase flow for one product.
func (h *harness) fillCart(chatID int64, product, quantity string) {
	h.t.Helper()
	h.say(chatID, "/start")
	h.say(chatID, btnMakePurchase)
	h.say(chatID, product)
	h.say(chatID, quantity)
	h.say(chatID, btnYes)
}

func decimalOf(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
