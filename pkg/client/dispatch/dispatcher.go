// Package dispatch runs the client's outer loop: it pulls events from the
// multiplexer, feeds them to the state machine and routes the resulting
// effects to the session, the screen and the desktop.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/aeolun/marain/pkg/client"
	"github.com/aeolun/marain/pkg/client/app"
	"github.com/aeolun/marain/pkg/client/chatlog"
	"github.com/aeolun/marain/pkg/client/command"
	"github.com/aeolun/marain/pkg/client/events"
	"github.com/aeolun/marain/pkg/protocol"
	"go.uber.org/zap"
)

// EventSource yields the merged event stream
type EventSource interface {
	Next(ctx context.Context) (events.Event, error)
}

// backlog is implemented by event sources that can report how many events
// are queued behind the one just taken
type backlog interface {
	Pending() int
}

// Sender is the single owner of the outbound side of the session
type Sender interface {
	Send(msg protocol.ClientMsg) error
}

// Renderer draws a snapshot of the client
type Renderer interface {
	Render(view app.View)
}

// Notifier shows a desktop notification
type Notifier interface {
	Notify(title, body string)
}

// Config wires a Dispatcher. Only App and Events are required.
type Config struct {
	App      *app.App
	Events   EventSource
	Sender   Sender
	Renderer Renderer
	Notifier Notifier
	Metrics  *client.Metrics

	// State and ServerAddress remember the last room per server
	State         client.StateStore
	ServerAddress string

	Logger *zap.Logger
}

// Dispatcher owns the App for the lifetime of Run
type Dispatcher struct {
	cfg    Config
	app    *app.App
	logger *zap.Logger
	room   string
}

// New returns a dispatcher for cfg
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:    cfg,
		app:    cfg.App,
		logger: logger.Named("dispatch"),
		room:   cfg.App.Room(),
	}
}

// Run loops until the App asks to quit, the event source stops or ctx is
// cancelled. Quit and a stopped source both return nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.render()
	for !d.app.ShouldQuit() {
		ev, err := d.cfg.Events.Next(ctx)
		if errors.Is(err, events.ErrStopped) {
			d.logger.Info("event source stopped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("next event: %w", err)
		}
		d.Dispatch(ev)
	}
	d.logger.Info("quit requested")
	return nil
}

// Dispatch handles a single event
func (d *Dispatcher) Dispatch(ev events.Event) {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.RecordEvent(ev.Kind.String())
		if b, ok := d.cfg.Events.(backlog); ok {
			d.cfg.Metrics.SetEventsPending(b.Pending())
		}
	}

	if ev.Kind == events.KindRender {
		d.render()
		return
	}

	d.apply(d.app.Update(ev))
	d.rememberRoom()

	// a closed connection is shown right away rather than on the next frame
	if ev.Kind == events.KindServerClose {
		d.render()
	}
}

// Execute runs cmd as if it had been typed, e.g. to rejoin a room at startup
func (d *Dispatcher) Execute(cmd command.Command) {
	d.apply(d.app.Handle(cmd))
}

func (d *Dispatcher) apply(effects []app.Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case app.EffectSend:
			d.send(eff.Msg)
		case app.EffectNotify:
			if d.cfg.Notifier != nil {
				d.cfg.Notifier.Notify(eff.Title, eff.Body)
			}
		default:
			d.logger.Warn("unknown effect", zap.Int("kind", int(eff.Kind)))
		}
	}
}

func (d *Dispatcher) send(msg protocol.ClientMsg) {
	if d.cfg.Sender == nil {
		d.app.PushLog(chatlog.NewEntry(chatlog.SenderClient, "Not connected, message not sent", msg.Timestamp))
		return
	}
	if err := d.cfg.Sender.Send(msg); err != nil {
		d.logger.Warn("send failed", zap.Uint8("type", msg.Body.Type()), zap.Error(err))
		d.app.PushLog(chatlog.NewEntry(chatlog.SenderClient, "Failed to send message: "+err.Error(), msg.Timestamp))
		return
	}
	d.logger.Debug("message queued", zap.Uint8("type", msg.Body.Type()))
}

func (d *Dispatcher) rememberRoom() {
	room := d.app.Room()
	if room == d.room {
		return
	}
	d.room = room
	if d.cfg.State == nil || room == "" {
		return
	}
	if err := d.cfg.State.SetLastRoom(d.cfg.ServerAddress, room); err != nil {
		d.logger.Warn("failed to save last room", zap.String("room", room), zap.Error(err))
	}
}

func (d *Dispatcher) render() {
	if d.cfg.Renderer != nil {
		d.cfg.Renderer.Render(d.app.View())
	}
}
