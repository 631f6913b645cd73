package ui

import (
	"context"

	"github.com/aeolun/marain/pkg/client/app"
	"github.com/aeolun/marain/pkg/client/events"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// InputBuffer is how many key presses may wait for the multiplexer
const InputBuffer = 256

// Program runs the terminal front end
type Program struct {
	tea   *tea.Program
	input chan events.Input
}

// NewProgram prepares a full-screen program. Extra options are passed to
// bubbletea, e.g. tea.WithInput for tests.
func NewProgram(ctx context.Context, logger *zap.Logger, opts ...tea.ProgramOption) *Program {
	input := make(chan events.Input, InputBuffer)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	return &Program{
		tea:   tea.NewProgram(NewModel(input, logger), opts...),
		input: input,
	}
}

// Input is the key and resize stream for the multiplexer
func (p *Program) Input() <-chan events.Input {
	return p.input
}

// Run blocks until the program exits
func (p *Program) Run() error {
	_, err := p.tea.Run()
	return err
}

// Render hands a snapshot to the program. It is safe to call from any
// goroutine, also after the program has exited.
func (p *Program) Render(v app.View) {
	p.tea.Send(snapshotMsg(v))
}

// Quit asks the program to exit after its final frame
func (p *Program) Quit() {
	p.tea.Send(quitMsg{})
}
