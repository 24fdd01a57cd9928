package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons("Select a product", []string{"Perfume", "Lipstick"}, nil, []string{"Back"})
	require.Len(t, m.ReplyKeyboard, 2)
	assert.Equal(t, "Perfume", m.ReplyKeyboard[0][0].Text)
	assert.Equal(t, "Lipstick", m.ReplyKeyboard[0][1].Text)
	assert.Equal(t, "Back", m.ReplyKeyboard[1][0].Text)
	assert.True(t, m.ResizeKeyboard)
	assert.Equal(t, "Select a product", m.Placeholder)
}

func TestInlineButtonsRowsKeepsPayload(t *testing.T) {
	m := InlineButtonsRows([]InlineBtn{{Text: "Confirm Order", Data: "confirmed|42"}}, nil)
	require.Len(t, m.InlineKeyboard, 1)
	btn := m.InlineKeyboard[0][0]
	assert.Equal(t, "Confirm Order", btn.Text)
	assert.Equal(t, "confirmed|42", btn.Data)
	assert.Empty(t, btn.Unique)
}

func TestRemoveKeyboard(t *testing.T) {
	assert.True(t, RemoveKeyboard().RemoveKeyboard)
}
