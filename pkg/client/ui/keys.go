package ui

import (
	"github.com/aeolun/marain/pkg/client/keymap"
	tea "github.com/charmbracelet/bubbletea"
)

var specialKeys = map[tea.KeyType]keymap.Code{
	tea.KeyEnter:     keymap.CodeEnter,
	tea.KeyEsc:       keymap.CodeEsc,
	tea.KeyBackspace: keymap.CodeBackspace,
	tea.KeyDelete:    keymap.CodeDelete,
	tea.KeyTab:       keymap.CodeTab,
	tea.KeyLeft:      keymap.CodeLeft,
	tea.KeyRight:     keymap.CodeRight,
	tea.KeyUp:        keymap.CodeUp,
	tea.KeyDown:      keymap.CodeDown,
	tea.KeyCtrlJ:     keymap.CodeCtrlJ,
	tea.KeyCtrlC:     keymap.CodeCtrlC,
}

// translateKey maps a terminal key to keymap keys. A paste arrives as one
// message and becomes one key per rune; unknown keys yield nothing.
func translateKey(msg tea.KeyMsg) []keymap.Key {
	switch msg.Type {
	case tea.KeyRunes:
		if msg.Alt {
			return nil
		}
		keys := make([]keymap.Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			if r == '\n' || r == '\r' {
				keys = append(keys, keymap.Special(keymap.CodeCtrlJ))
				continue
			}
			keys = append(keys, keymap.Char(r))
		}
		return keys
	case tea.KeySpace:
		return []keymap.Key{keymap.Char(' ')}
	}

	if code, ok := specialKeys[msg.Type]; ok {
		return []keymap.Key{keymap.Special(code)}
	}
	return nil
}
