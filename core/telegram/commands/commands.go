package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command describes an entry of the bot command menu.
type Command struct {
	Name        string
	Description string
	// Hidden commands work but are left out of the menu.
	Hidden bool
}

// Menu converts cmds into the list published with setMyCommands.
// Leading slashes are stripped and duplicates keep their first description.
func Menu(cmds []Command) []tele.Command {
	seen := make(map[string]struct{}, len(cmds))
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Name), "/"))
		if name == "" || c.Hidden {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, tele.Command{Text: name, Description: c.Description})
	}
	return out
}
