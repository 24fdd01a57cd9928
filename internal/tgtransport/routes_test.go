package tgtransport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/internal/bot"
)

type fakeContext struct {
	tele.Context
	upd   tele.Update
	store map[string]any
}

func (f *fakeContext) Update() tele.Update    { return f.upd }
func (f *fakeContext) Message() *tele.Message { return f.upd.Message }
func (f *fakeContext) Callback() *tele.Callback {
	return f.upd.Callback
}
func (f *fakeContext) Sender() *tele.User {
	switch {
	case f.upd.Callback != nil:
		return f.upd.Callback.Sender
	case f.upd.Message != nil:
		return f.upd.Message.Sender
	}
	return nil
}
func (f *fakeContext) Chat() *tele.Chat {
	switch {
	case f.upd.Callback != nil && f.upd.Callback.Message != nil:
		return f.upd.Callback.Message.Chat
	case f.upd.Message != nil:
		return f.upd.Message.Chat
	}
	return nil
}
func (f *fakeContext) Get(key string) interface{}      { return f.store[key] }
func (f *fakeContext) Set(key string, val interface{}) { f.store[key] = val }

func ctxFor(upd tele.Update) *fakeContext {
	return &fakeContext{upd: upd, store: make(map[string]any)}
}

type recorder struct {
	msgs []bot.Message
	rids []string
}

func (r *recorder) Handle(ctx context.Context, msg bot.Message) error {
	r.msgs = append(r.msgs, msg)
	r.rids = append(r.rids, logger.RIDFrom(ctx))
	return nil
}

func TestMessageFromText(t *testing.T) {
	user := &tele.User{ID: 7, FirstName: "Ama", LastName: "Mensah"}
	msg, ok := MessageFrom(ctxFor(tele.Update{ID: 3, Message: &tele.Message{
		Text: "Checkout", Sender: user, Chat: &tele.Chat{ID: 70},
	}}))
	require.True(t, ok)
	assert.Equal(t, bot.Message{UpdateID: 3, ChatID: 70, UserID: 7, DisplayName: "Ama Mensah", Text: "Checkout"}, msg)
}

func TestMessageFromPhoto(t *testing.T) {
	photo := &tele.Photo{File: tele.File{FileID: "file-1"}, Caption: "front"}
	msg, ok := MessageFrom(ctxFor(tele.Update{ID: 4, Message: &tele.Message{
		Photo: photo, Caption: "front", Sender: &tele.User{ID: 7, Username: "ama"}, Chat: &tele.Chat{ID: 7},
	}}))
	require.True(t, ok)
	assert.Equal(t, "file-1", msg.PhotoFileID)
	assert.Equal(t, "front", msg.Text)
	assert.Equal(t, "ama", msg.DisplayName)
}

func TestMessageFromCallback(t *testing.T) {
	msg, ok := MessageFrom(ctxFor(tele.Update{ID: 5, Callback: &tele.Callback{
		ID: "cb1", Data: "confirmed|abc", Sender: &tele.User{ID: 9},
		Message: &tele.Message{Chat: &tele.Chat{ID: 9}},
	}}))
	require.True(t, ok)
	require.NotNil(t, msg.Callback)
	assert.Equal(t, bot.Callback{ID: "cb1", Data: "confirmed|abc"}, *msg.Callback)
	assert.Equal(t, int64(9), msg.ChatID)
}

func TestMessageFromDropsChatless(t *testing.T) {
	_, ok := MessageFrom(ctxFor(tele.Update{ID: 6}))
	assert.False(t, ok)
}

func TestRoutesForwardToHandler(t *testing.T) {
	rec := &recorder{}
	routes := Routes(rec)
	require.Len(t, routes, 3)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)

	c := ctxFor(tele.Update{ID: 8, Message: &tele.Message{Text: "/start", Sender: &tele.User{ID: 7}, Chat: &tele.Chat{ID: 7}}})
	require.NoError(t, routes[0].Handler(c))
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "/start", rec.msgs[0].Text)
	assert.Equal(t, logger.BuildRID(8, 7, 7), rec.rids[0])
}

func TestCommandsMenuHidesAdminEntries(t *testing.T) {
	for _, c := range Commands() {
		if c.Name == "/admin" {
			assert.True(t, c.Hidden)
		}
	}
}
