// Package events merges terminal input, inbound frames and the update and
// render timers into one ordered stream for the client state machine.
package events

import (
	"fmt"
	"time"

	"github.com/aeolun/marain/pkg/client/keymap"
	"github.com/aeolun/marain/pkg/protocol"
)

// Kind tags an Event
type Kind int

const (
	KindTick Kind = iota
	KindRender
	KindKey
	KindResize
	KindRecv
	KindError
	KindTransportError
	KindServerClose
)

func (k Kind) String() string {
	switch k {
	case KindTick:
		return "tick"
	case KindRender:
		return "render"
	case KindKey:
		return "key"
	case KindResize:
		return "resize"
	case KindRecv:
		return "recv"
	case KindError:
		return "error"
	case KindTransportError:
		return "transport_error"
	case KindServerClose:
		return "server_close"
	default:
		return fmt.Sprintf("kind_%d", int(k))
	}
}

// Event is one item of the merged stream. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind Kind
	Time time.Time

	Key    keymap.Key          // KindKey
	Width  int                 // KindResize
	Height int                 // KindResize
	Msg    *protocol.ServerMsg // KindRecv
	Err    error               // KindError, KindTransportError
}

func Tick(now time.Time) Event   { return Event{Kind: KindTick, Time: now} }
func Render(now time.Time) Event { return Event{Kind: KindRender, Time: now} }

func KeyPress(k keymap.Key) Event {
	return Event{Kind: KindKey, Key: k}
}

func Resize(width, height int) Event {
	return Event{Kind: KindResize, Width: width, Height: height}
}

func Recv(msg *protocol.ServerMsg) Event {
	return Event{Kind: KindRecv, Msg: msg}
}

func Error(err error) Event {
	return Event{Kind: KindError, Err: err}
}

func TransportError(err error) Event {
	return Event{Kind: KindTransportError, Err: err}
}

func ServerClose() Event {
	return Event{Kind: KindServerClose}
}

// InputKind tags an Input
type InputKind int

const (
	InputKey InputKind = iota
	InputResize
	InputErr
)

// Input is what a terminal front end pushes into the multiplexer
type Input struct {
	Kind   InputKind
	Key    keymap.Key
	Width  int
	Height int
	Err    error
}

func (in Input) event() Event {
	switch in.Kind {
	case InputResize:
		return Resize(in.Width, in.Height)
	case InputErr:
		return Error(in.Err)
	default:
		return KeyPress(in.Key)
	}
}
