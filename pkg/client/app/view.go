package app

import (
	"time"

	"github.com/aeolun/marain/pkg/client/chatlog"
	"github.com/aeolun/marain/pkg/client/command"
	"github.com/aeolun/marain/pkg/client/textbuf"
)

// View is a render-ready snapshot of the App. It shares no memory with
// the App, so it can be handed to another goroutine.
type View struct {
	Mode      string
	Legend    []string
	Logs      []chatlog.Entry // newest first
	Lines     []string
	Caret     textbuf.Caret
	CaretCell int // 1-based terminal column of the caret
	Staged    string
	Username  string
	Room      string
	Occupants string
	ShowDebug bool
	LoggedIn  bool
	Width     int
	Height    int
	Clock     time.Time
}

// Composing reports whether the compose box has focus
func (v View) Composing() bool {
	return v.Mode == command.ModeInsert.String() || v.Mode == command.ModeInsertCommand.String()
}

// View snapshots the current state for rendering
func (a *App) View() View {
	v := View{
		Mode:      a.mode.String(),
		Legend:    a.keymaps.Legend(a.mode),
		Logs:      a.logs.Visible(),
		Lines:     a.buffer.Lines(),
		Caret:     a.buffer.Caret(),
		CaretCell: a.buffer.DisplayColumn(),
		Username:  a.username,
		Room:      a.room,
		Occupants: joinOccupants(a.occupants),
		ShowDebug: a.logs.ShowDebug(),
		LoggedIn:  a.LoggedIn(),
		Width:     a.width,
		Height:    a.height,
		Clock:     a.lastTick,
	}
	if a.staged != nil {
		v.Staged = a.staged.String()
	}
	return v
}
