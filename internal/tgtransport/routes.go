package tgtransport

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/logger"
	coretelegram "github.com/m3rciful/storebot/core/telegram"
	"github.com/m3rciful/storebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/storebot/core/telegram/helpers"
	"github.com/m3rciful/storebot/internal/bot"
)

// Handler consumes inbound messages. *bot.Engine implements it.
type Handler interface {
	Handle(ctx context.Context, msg bot.Message) error
}

// Routes binds text, photo and callback updates to h.
func Routes(h Handler) []coretelegram.Route {
	handle := func(c tele.Context) error {
		msg, ok := MessageFrom(c)
		if !ok {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		return h.Handle(ctx, msg)
	}
	return []coretelegram.Route{
		{Endpoint: tele.OnText, Handler: handle},
		{Endpoint: tele.OnPhoto, Handler: handle},
		{Endpoint: tele.OnCallback, Handler: handle},
	}
}

// Commands is the command menu shown by Telegram clients.
func Commands() []commands.Command {
	return []commands.Command{
		{Name: "/start", Description: "Open the store"},
		{Name: "/help", Description: "How to use the bot"},
		{Name: "/cancel", Description: "Abandon the current step"},
		{Name: "/admin", Description: "Store administration", Hidden: true},
		{Name: "/activate_notifications", Description: "Receive new orders", Hidden: true},
		{Name: "/deactivate_notifications", Description: "Stop receiving new orders", Hidden: true},
	}
}

// MessageFrom reduces an update to an engine message. Updates without a chat are dropped.
func MessageFrom(c tele.Context) (bot.Message, bool) {
	updateID, chatID, userID := tghelpers.IDs(c)
	if chatID == 0 {
		chatID = userID
	}
	if chatID == 0 {
		return bot.Message{}, false
	}
	msg := bot.Message{
		UpdateID:    updateID,
		ChatID:      chatID,
		UserID:      userID,
		DisplayName: displayName(c.Sender()),
	}
	if cb := c.Callback(); cb != nil {
		data := cb.Data
		if cb.Unique != "" {
			data = cb.Unique + "|" + cb.Data
		}
		msg.Callback = &bot.Callback{ID: cb.ID, Data: data}
		return msg, true
	}
	m := c.Message()
	if m == nil {
		return bot.Message{}, false
	}
	msg.Text = m.Text
	if m.Photo != nil {
		msg.PhotoFileID = m.Photo.FileID
		if msg.Text == "" {
			msg.Text = m.Caption
		}
	}
	return msg, true
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return logger.SanitizeLimit(name, 128)
}
