// Package bot is the conversation engine: it resolves the current navigation step of a chat,
// dispatches the message to the first matching routing rule and drives the cart, order and
// catalog flows from there.
package bot

import "context"

// Keyboard is an optional markup attached to an outbound message.
// Rows build a reply keyboard, Inline builds buttons under the message.
type Keyboard struct {
	Rows        [][]string
	Inline      [][]InlineButton
	Placeholder string
	Remove      bool
}

// InlineButton is a button carrying callback data.
type InlineButton struct {
	Text string
	Data string
}

// Photo is an outbound image. Data wins over URL when both are set.
type Photo struct {
	Data []byte
	URL  string
}

// Callback is an inline button press.
type Callback struct {
	ID   string
	Data string
}

// Message is one inbound update reduced to what the engine needs.
type Message struct {
	UpdateID    int
	ChatID      int64
	UserID      int64
	DisplayName string
	Text        string
	PhotoFileID string
	Callback    *Callback
}

// Transport delivers messages to a chat and fetches uploaded files.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, photo Photo, caption string, kb *Keyboard) error
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
	AnswerCallback(ctx context.Context, cb Callback, text string) error
}

// Notifier sends messages that are not replies to the current update,
// such as order alerts for admins and state changes for purchasers.
// Implementations may deliver asynchronously.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string, kb *Keyboard) error
}

type directNotifier struct {
	t Transport
}

func (d directNotifier) Notify(ctx context.Context, chatID int64, text string, kb *Keyboard) error {
	return d.t.SendText(ctx, chatID, text, kb)
}
