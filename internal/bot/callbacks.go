package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/storebot/internal/shop"
)

// ErrBadCallback reports callback data that is not an order action.
var ErrBadCallback = errors.New("bot: malformed callback data")

const callbackSep = "|"

// OrderAction is the payload of an inline order button: move OrderID to State.
type OrderAction struct {
	State   shop.OrderState
	OrderID string
}

// Encode renders the action as "<state>|<order id>".
func (a OrderAction) Encode() string {
	return string(a.State) + callbackSep + a.OrderID
}

// ParseOrderAction decodes "<state>|<order id>". The payload is only parsed, never interpreted.
func ParseOrderAction(data string) (OrderAction, error) {
	data = strings.TrimPrefix(strings.TrimSpace(data), "\f")
	rawState, id, ok := strings.Cut(data, callbackSep)
	if !ok {
		return OrderAction{}, fmt.Errorf("%w: missing separator", ErrBadCallback)
	}
	state, valid := shop.ParseOrderState(rawState)
	if !valid {
		return OrderAction{}, fmt.Errorf("%w: unknown state %q", ErrBadCallback, rawState)
	}
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return OrderAction{}, fmt.Errorf("%w: order id: %w", ErrBadCallback, err)
	}
	return OrderAction{State: state, OrderID: id}, nil
}

func orderActionRows(o shop.Order, targets []shop.OrderState) [][]InlineButton {
	rows := make([][]InlineButton, 0, len(targets))
	for _, s := range targets {
		rows = append(rows, []InlineButton{{
			Text: actionLabel(s),
			Data: OrderAction{State: s, OrderID: o.ID}.Encode(),
		}})
	}
	return rows
}
