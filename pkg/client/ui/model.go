// Package ui is the bubbletea front end. It forwards key presses and
// resizes to the event multiplexer and draws the snapshots the dispatcher
// hands it; it holds no chat state of its own.
package ui

import (
	"github.com/aeolun/marain/pkg/client/app"
	"github.com/aeolun/marain/pkg/client/events"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// snapshotMsg carries a new View from the dispatcher goroutine
type snapshotMsg app.View

// quitMsg ends the program once the client has quit
type quitMsg struct{}

// Model is the bubbletea model
type Model struct {
	input  chan<- events.Input
	logger *zap.Logger

	view    app.View
	logs    viewport.Model
	width   int
	height  int
	ready   bool
	dropped int
}

// NewModel returns a model that forwards input on the given channel
func NewModel(input chan<- events.Input, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Model{
		input:  input,
		logger: logger.Named("ui"),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Ctrl+C always gets out, whatever mode the client is in
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyPgUp:
			m.logs.PageUp()
			return m, nil
		case tea.KeyPgDown:
			m.logs.PageDown()
			return m, nil
		}
		for _, k := range translateKey(msg) {
			m.forward(events.Input{Kind: events.InputKey, Key: k})
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.forward(events.Input{Kind: events.InputResize, Width: msg.Width, Height: msg.Height})

	case snapshotMsg:
		atBottom := !m.ready || m.logs.AtBottom()
		m.view = app.View(msg)
		m.resize()
		m.logs.SetContent(renderLogs(m.view, m.logs.Width))
		if atBottom {
			m.logs.GotoBottom()
		}

	case quitMsg:
		return m, tea.Quit
	}
	return m, nil
}

// forward never blocks the terminal loop. A full input channel means the
// client has stopped reading, so the key is dropped.
func (m *Model) forward(in events.Input) {
	select {
	case m.input <- in:
	default:
		m.dropped++
		m.logger.Warn("input dropped", zap.Int("dropped", m.dropped))
	}
}

func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	w, h := m.logPaneSize()
	if !m.ready {
		m.logs = viewport.New(w, h)
		m.ready = true
		return
	}
	m.logs.Width = w
	m.logs.Height = h
}
