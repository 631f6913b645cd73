// Package app is the modal client state machine. It owns the compose
// buffer, the log ring and the session bookkeeping, and turns events and
// commands into state changes plus outbound effects. It performs no I/O.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/aeolun/marain/pkg/client/chatlog"
	"github.com/aeolun/marain/pkg/client/command"
	"github.com/aeolun/marain/pkg/client/events"
	"github.com/aeolun/marain/pkg/client/keymap"
	"github.com/aeolun/marain/pkg/client/textbuf"
	"github.com/aeolun/marain/pkg/protocol"
	"go.uber.org/zap"
)

// Shown when an authenticated message is attempted before login completed
const notLoggedIn = "not logged in, message not sent"

// EffectKind tags an Effect
type EffectKind int

const (
	// EffectSend asks the dispatcher to hand Msg to the session
	EffectSend EffectKind = iota
	// EffectNotify asks for a desktop notification
	EffectNotify
)

// Effect is an outbound intent returned by the state machine
type Effect struct {
	Kind EffectKind
	Msg  protocol.ClientMsg

	Title string
	Body  string
}

// Options configures an App
type Options struct {
	Username string
	Keymaps  *keymap.Keymaps // defaults to keymap.Default()
	Logger   *zap.Logger
	Now      func() time.Time
}

// App is the client state machine. It is not safe for concurrent use; a
// single dispatcher goroutine owns it.
type App struct {
	username string
	keymaps  *keymap.Keymaps
	logger   *zap.Logger
	now      func() time.Time

	mode   command.Mode
	staged *command.Command
	buffer *textbuf.Buffer
	logs   *chatlog.Ring

	token  *string
	secret []byte

	room      string
	occupants []string
	width     int
	height    int
	lastTick  time.Time

	shouldQuit bool
}

// New returns an App in Navigate mode with an empty buffer
func New(opts Options) *App {
	if opts.Keymaps == nil {
		opts.Keymaps = keymap.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &App{
		username: opts.Username,
		keymaps:  opts.Keymaps,
		logger:   opts.Logger.Named("app"),
		now:      opts.Now,
		mode:     command.ModeNavigate,
		buffer:   textbuf.New(),
		logs:     chatlog.NewRing(),
	}
}

// SetSession records the credentials obtained by the handshake
func (a *App) SetSession(token string, sharedSecret []byte) {
	a.token = &token
	a.secret = append([]byte(nil), sharedSecret...)
}

// LoggedIn reports whether both the token and the shared secret are known
func (a *App) LoggedIn() bool {
	return a.token != nil && len(a.secret) > 0
}

func (a *App) Mode() command.Mode        { return a.mode }
func (a *App) Staged() *command.Command  { return a.staged }
func (a *App) Buffer() *textbuf.Buffer   { return a.buffer }
func (a *App) Logs() *chatlog.Ring       { return a.logs }
func (a *App) Username() string          { return a.username }
func (a *App) Room() string              { return a.room }
func (a *App) ShouldQuit() bool          { return a.shouldQuit }
func (a *App) Keymaps() *keymap.Keymaps  { return a.keymaps }
func (a *App) Size() (width, height int) { return a.width, a.height }

// Token returns the session token, or "" before login
func (a *App) Token() string {
	if a.token == nil {
		return ""
	}
	return *a.token
}

// PushLog prepends e to the log ring
func (a *App) PushLog(e chatlog.Entry) {
	a.logs.Push(e)
}

// ReplaceLogs swaps the whole history for batch, oldest first
func (a *App) ReplaceLogs(batch []chatlog.Entry) {
	a.logs.Replace(batch)
}

func (a *App) log(sender, body string) {
	a.logs.Push(chatlog.NewEntry(sender, body, a.now()))
}

// Update applies one event. Render events carry no state change; the
// dispatcher draws View() for them.
func (a *App) Update(ev events.Event) []Effect {
	switch ev.Kind {
	case events.KindTick:
		a.lastTick = ev.Time
	case events.KindRender:
	case events.KindKey:
		cmd, ok := a.keymaps.Lookup(a.mode, ev.Key)
		if !ok {
			return nil
		}
		return a.Handle(cmd)
	case events.KindResize:
		a.width, a.height = ev.Width, ev.Height
	case events.KindRecv:
		return a.receive(ev.Msg)
	case events.KindError:
		a.logger.Warn("input error", zap.Error(ev.Err))
		a.log(chatlog.SenderClient, fmt.Sprintf("Input error: %v", ev.Err))
	case events.KindTransportError:
		a.logger.Warn("transport error", zap.Error(ev.Err))
		a.log(chatlog.SenderClient, fmt.Sprintf("Could not read inbound message: %v", ev.Err))
	case events.KindServerClose:
		a.disconnect()
	default:
		a.logger.Debug("unhandled event", zap.Stringer("kind", ev.Kind))
	}
	return nil
}

// Handle applies one command
func (a *App) Handle(cmd command.Command) []Effect {
	if a.mode == command.ModeDisconnected && cmd.Kind != command.KindQuit {
		return nil
	}

	switch cmd.Kind {
	case command.KindQuit:
		a.shouldQuit = true

	case command.KindReset:
		a.buffer.Reset()

	case command.KindCapture:
		if a.composing() {
			a.buffer.Insert(cmd.Char)
		}

	case command.KindDel:
		if a.composing() {
			a.buffer.Delete(cmd.Offset)
		}

	case command.KindMoveCaret:
		if !a.composing() {
			return nil
		}
		if cmd.Axis == command.AxisLine {
			a.buffer.MoveRow(cmd.Delta)
		} else {
			a.buffer.MoveColumn(cmd.Delta)
		}

	case command.KindEnter:
		a.enter(cmd.Mode)

	case command.KindSendBuffer:
		return a.sendBuffer()

	case command.KindGetServerTime:
		if a.mode != command.ModeNavigate {
			return nil
		}
		return a.authenticated(&protocol.GetTimeBody{})

	case command.KindMoveRooms:
		return a.moveRooms(cmd)

	case command.KindSendStagedCommand:
		return a.sendStaged()

	case command.KindAbortStagedCommand:
		if a.mode == command.ModeInsertCommand {
			a.leaveStaging()
		}

	case command.KindToggleDebug:
		a.logs.ToggleDebug()

	default:
		a.logger.Debug("unhandled command", zap.Stringer("command", cmd))
	}
	return nil
}

func (a *App) composing() bool {
	return a.mode == command.ModeInsert || a.mode == command.ModeInsertCommand
}

// enter allows only Navigate <-> Insert. Staging has its own commands and
// Disconnected is reached only through a server close.
func (a *App) enter(mode command.Mode) {
	switch {
	case a.mode == command.ModeNavigate && mode == command.ModeInsert:
		a.mode = command.ModeInsert
	case a.mode == command.ModeInsert && mode == command.ModeNavigate:
		a.mode = command.ModeNavigate
	default:
		a.logger.Debug("ignoring mode change",
			zap.Stringer("from", a.mode), zap.Stringer("to", mode))
	}
}

func (a *App) sendBuffer() []Effect {
	if a.mode != command.ModeInsert {
		return nil
	}
	if a.buffer.IsBlank() {
		a.leaveInsert()
		return nil
	}
	effects := a.authenticated(&protocol.SendToRoomBody{Contents: a.buffer.Text()})
	// a refused send keeps the draft so it can be retried after login
	if len(effects) == 0 {
		return nil
	}
	a.leaveInsert()
	return effects
}

func (a *App) leaveInsert() {
	a.buffer.Reset()
	a.mode = command.ModeNavigate
}

func (a *App) moveRooms(cmd command.Command) []Effect {
	if a.mode != command.ModeNavigate {
		return nil
	}
	if cmd.NeedsParameter() {
		staged := cmd
		a.staged = &staged
		a.buffer.Reset()
		a.mode = command.ModeInsertCommand
		return nil
	}
	return a.authenticated(&protocol.MoveBody{Target: cmd.Target})
}

func (a *App) sendStaged() []Effect {
	if a.mode != command.ModeInsertCommand {
		return nil
	}
	staged := *a.staged
	param := strings.TrimSpace(a.buffer.Text())
	a.leaveStaging()

	if param == "" {
		return nil
	}
	cmd, ok := staged.WithParameter(param)
	if !ok {
		return nil
	}
	return a.moveRooms(cmd)
}

func (a *App) leaveStaging() {
	a.staged = nil
	a.buffer.Reset()
	a.mode = command.ModeNavigate
}

// authenticated wraps body in an envelope carrying the session token. It
// refuses, with a visible log line, when the session is not established.
func (a *App) authenticated(body protocol.ClientBody) []Effect {
	if !a.LoggedIn() {
		a.logger.Warn("refusing unauthenticated send", zap.Uint8("type", body.Type()))
		a.log(chatlog.SenderClient, notLoggedIn)
		return nil
	}
	token := *a.token
	return []Effect{{
		Kind: EffectSend,
		Msg: protocol.ClientMsg{
			Token:     &token,
			Body:      body,
			Timestamp: a.now().UTC(),
		},
	}}
}

func (a *App) disconnect() {
	a.log(chatlog.SenderServer, "Connection closed by server")
	a.staged = nil
	a.buffer.Reset()
	a.mode = command.ModeDisconnected
}
