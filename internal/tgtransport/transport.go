// Package tgtransport connects the conversation engine to the Telegram Bot API.
package tgtransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/telegram/keyboard"
	"github.com/m3rciful/storebot/internal/bot"
)

// maxMessageLen is the Telegram limit for a text message in characters.
const maxMessageLen = 4096

// maxFileSize caps downloads of user uploads.
const maxFileSize = 20 << 20

// API is the part of tele.Bot used by the transport.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	File(file *tele.File) (io.ReadCloser, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// Transport sends engine output through the Bot API.
type Transport struct {
	api API
}

var _ bot.Transport = (*Transport)(nil)

// New wraps api, usually a *tele.Bot.
func New(api API) *Transport {
	return &Transport{api: api}
}

// SendText sends text, splitting it at line breaks when it exceeds the message limit.
// The keyboard is attached to the last part.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, kb *bot.Keyboard) error {
	parts := splitText(text, maxMessageLen)
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		var opts []interface{}
		if i == len(parts)-1 {
			if m := Markup(kb); m != nil {
				opts = append(opts, m)
			}
		}
		if _, err := t.api.Send(tele.ChatID(chatID), part, opts...); err != nil {
			return fmt.Errorf("telegram: send text: %w", err)
		}
	}
	return nil
}

// SendPhoto uploads photo.Data or lets Telegram fetch photo.URL.
func (t *Transport) SendPhoto(ctx context.Context, chatID int64, photo bot.Photo, caption string, kb *bot.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := &tele.Photo{Caption: caption}
	switch {
	case len(photo.Data) > 0:
		p.File = tele.FromReader(bytes.NewReader(photo.Data))
	case photo.URL != "":
		p.File = tele.FromURL(photo.URL)
	default:
		return errors.New("telegram: send photo: empty photo")
	}
	var opts []interface{}
	if m := Markup(kb); m != nil {
		opts = append(opts, m)
	}
	if _, err := t.api.Send(tele.ChatID(chatID), p, opts...); err != nil {
		return fmt.Errorf("telegram: send photo: %w", err)
	}
	return nil
}

// FetchFile downloads an uploaded file by its file id.
func (t *Transport) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := t.api.File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("telegram: fetch file: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("telegram: read file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("telegram: file %s exceeds %d bytes", fileID, maxFileSize)
	}
	return data, nil
}

// AnswerCallback shows text as a toast for the button press.
func (t *Transport) AnswerCallback(_ context.Context, cb bot.Callback, text string) error {
	if err := t.api.Respond(&tele.Callback{ID: cb.ID}, &tele.CallbackResponse{Text: text}); err != nil {
		return fmt.Errorf("telegram: answer callback: %w", err)
	}
	return nil
}

// Markup converts an engine keyboard. Inline buttons win over reply rows.
func Markup(kb *bot.Keyboard) *tele.ReplyMarkup {
	switch {
	case kb == nil:
		return nil
	case len(kb.Inline) > 0:
		rows := make([][]keyboard.InlineBtn, 0, len(kb.Inline))
		for _, row := range kb.Inline {
			r := make([]keyboard.InlineBtn, 0, len(row))
			for _, b := range row {
				r = append(r, keyboard.InlineBtn{Text: b.Text, Data: b.Data})
			}
			rows = append(rows, r)
		}
		return keyboard.InlineButtonsRows(rows...)
	case len(kb.Rows) > 0:
		return keyboard.ReplyButtons(kb.Placeholder, kb.Rows...)
	case kb.Remove:
		return keyboard.RemoveKeyboard()
	}
	return nil
}

// splitText cuts text into parts of at most limit characters, preferring line breaks.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	for text != "" {
		if utf8.RuneCountInString(text) <= limit {
			parts = append(parts, text)
			break
		}
		cut := byteOffset(text, limit)
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		parts = append(parts, strings.TrimRight(text[:cut], "\n"))
		text = text[cut:]
	}
	return parts
}

// byteOffset returns the byte index of the n-th rune of s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
