package ui

import (
	"testing"
	"time"

	"github.com/aeolun/marain/pkg/client/app"
	"github.com/aeolun/marain/pkg/client/chatlog"
	"github.com/aeolun/marain/pkg/client/events"
	"github.com/aeolun/marain/pkg/client/keymap"
	"github.com/aeolun/marain/pkg/client/textbuf"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want []keymap.Key
	}{
		{"rune", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}}, []keymap.Key{keymap.Char('a')}},
		{"paste", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi\nyo"), Paste: true}, []keymap.Key{
			keymap.Char('h'), keymap.Char('i'), keymap.Special(keymap.CodeCtrlJ), keymap.Char('y'), keymap.Char('o'),
		}},
		{"space", tea.KeyMsg{Type: tea.KeySpace}, []keymap.Key{keymap.Char(' ')}},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, []keymap.Key{keymap.Special(keymap.CodeEnter)}},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}, []keymap.Key{keymap.Special(keymap.CodeEsc)}},
		{"backspace", tea.KeyMsg{Type: tea.KeyBackspace}, []keymap.Key{keymap.Special(keymap.CodeBackspace)}},
		{"delete", tea.KeyMsg{Type: tea.KeyDelete}, []keymap.Key{keymap.Special(keymap.CodeDelete)}},
		{"ctrl+j", tea.KeyMsg{Type: tea.KeyCtrlJ}, []keymap.Key{keymap.Special(keymap.CodeCtrlJ)}},
		{"up", tea.KeyMsg{Type: tea.KeyUp}, []keymap.Key{keymap.Special(keymap.CodeUp)}},
		{"alt rune", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}, Alt: true}, nil},
		{"unknown", tea.KeyMsg{Type: tea.KeyF5}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, translateKey(tt.msg))
		})
	}
}

func drain(ch chan events.Input) []events.Input {
	var out []events.Input
	for {
		select {
		case in := <-ch:
			out = append(out, in)
		default:
			return out
		}
	}
}

func TestKeysAreForwarded(t *testing.T) {
	input := make(chan events.Input, 8)
	m := NewModel(input, nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'i'}})
	assert.Nil(t, cmd)
	next.Update(tea.KeyMsg{Type: tea.KeyEnter})

	got := drain(input)
	require.Len(t, got, 2)
	assert.Equal(t, events.Input{Kind: events.InputKey, Key: keymap.Char('i')}, got[0])
	assert.Equal(t, keymap.Special(keymap.CodeEnter), got[1].Key)
}

func TestCtrlCQuits(t *testing.T) {
	input := make(chan events.Input, 1)
	_, cmd := NewModel(input, nil).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, drain(input))
}

func TestQuitMsg(t *testing.T) {
	_, cmd := NewModel(make(chan events.Input), nil).Update(quitMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestFullInputDropsInsteadOfBlocking(t *testing.T) {
	input := make(chan events.Input, 1)
	var model tea.Model = NewModel(input, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Update blocked on a full input channel")
	}
	assert.Equal(t, 4, model.(Model).dropped)
}

func TestResizeIsForwarded(t *testing.T) {
	input := make(chan events.Input, 1)
	next, _ := NewModel(input, nil).Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	assert.Equal(t, events.Input{Kind: events.InputResize, Width: 100, Height: 30}, <-input)
	m := next.(Model)
	assert.True(t, m.ready)
	w, h := m.logPaneSize()
	assert.Equal(t, 96, w)
	assert.Equal(t, 30-2-3-2, h)
}

func sampleView() app.View {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)
	return app.View{
		Mode:   "Insert",
		Legend: []string{"Esc\t -> Enter Navigation Mode", "Enter\t -> Send Message"},
		Logs: []chatlog.Entry{
			chatlog.NewEntry("bob", "newest", at),
			chatlog.NewEntry(chatlog.SenderServer, "oldest", at),
		},
		Lines:     []string{"draft"},
		Caret:     textbuf.Caret{Row: 1, Col: 6},
		CaretCell: 6,
		Username:  "alice",
		Room:      "lobby",
		Occupants: "alice, bob",
		LoggedIn:  true,
	}
}

func TestViewRendersSnapshot(t *testing.T) {
	var m tea.Model = NewModel(make(chan events.Input, 4), nil)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = m.Update(snapshotMsg(sampleView()))

	out := ansi.Strip(m.View())
	assert.Contains(t, out, "marain")
	assert.Contains(t, out, "Insert")
	assert.Contains(t, out, "#lobby")
	assert.Contains(t, out, "Send Message")
	assert.Contains(t, out, "draft")
	assert.Contains(t, out, "Here")
	assert.Contains(t, out, "bob")

	oldest := indexOf(out, "oldest")
	newest := indexOf(out, "newest")
	require.True(t, oldest >= 0 && newest >= 0)
	assert.Less(t, oldest, newest, "newest entry renders last")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestViewTooSmall(t *testing.T) {
	var m tea.Model = NewModel(make(chan events.Input, 4), nil)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 10, Height: 5})
	assert.Contains(t, m.View(), "Terminal too small")
}

func TestRenderLine(t *testing.T) {
	plain := func(s string) string { return ansi.Strip(s) }

	assert.Equal(t, "hello", plain(renderLine("hello", 1, false, 10)))
	assert.Equal(t, "hell…", plain(renderLine("hello world", 1, false, 5)))

	// caret past the end draws an extra cell
	assert.Equal(t, "ab ", plain(renderLine("ab", 3, true, 10)))
	assert.Equal(t, "ab", plain(renderLine("ab", 1, true, 10)))

	// long line scrolls so the caret cell fits
	got := plain(renderLine("abcdefghij", 11, true, 5))
	assert.Equal(t, "ghij ", got)
}
