// Package command defines the client modes and the commands that drive
// mode transitions and buffer editing.
package command

import "fmt"

// Mode governs which keymap is active and which commands are legal
type Mode int

const (
	ModeNavigate Mode = iota
	ModeInsert
	ModeInsertCommand
	ModeDisconnected
)

func (m Mode) String() string {
	switch m {
	case ModeNavigate:
		return "Navigate"
	case ModeInsert:
		return "Insert"
	case ModeInsertCommand:
		return "InsertCommand"
	case ModeDisconnected:
		return "Disconnected"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Axis selects the direction of a caret motion
type Axis int

const (
	AxisCharacter Axis = iota
	AxisLine
)

func (a Axis) String() string {
	if a == AxisLine {
		return "Line"
	}
	return "Character"
}

// Kind tags the Command variant
type Kind int

const (
	KindReset Kind = iota
	KindQuit
	KindCapture
	KindDel
	KindMoveCaret
	KindEnter
	KindSendBuffer
	KindGetServerTime
	KindMoveRooms
	KindSendStagedCommand
	KindAbortStagedCommand
	KindToggleDebug
)

// Command is a tagged variant. Only the fields relevant to Kind are set,
// which keeps commands comparable with ==.
type Command struct {
	Kind      Kind
	Char      rune   // Capture
	Offset    int    // Del
	Axis      Axis   // MoveCaret
	Delta     int    // MoveCaret
	Mode      Mode   // Enter
	Target    string // MoveRooms
	HasTarget bool   // MoveRooms
}

func Reset() Command              { return Command{Kind: KindReset} }
func Quit() Command               { return Command{Kind: KindQuit} }
func Capture(ch rune) Command     { return Command{Kind: KindCapture, Char: ch} }
func Del(offset int) Command      { return Command{Kind: KindDel, Offset: offset} }
func Enter(mode Mode) Command     { return Command{Kind: KindEnter, Mode: mode} }
func SendBuffer() Command         { return Command{Kind: KindSendBuffer} }
func GetServerTime() Command      { return Command{Kind: KindGetServerTime} }
func SendStagedCommand() Command  { return Command{Kind: KindSendStagedCommand} }
func AbortStagedCommand() Command { return Command{Kind: KindAbortStagedCommand} }
func ToggleDebug() Command        { return Command{Kind: KindToggleDebug} }

// MoveCaret moves the caret by delta along axis
func MoveCaret(axis Axis, delta int) Command {
	return Command{Kind: KindMoveCaret, Axis: axis, Delta: delta}
}

// MoveRooms without a target is staged until the room name has been typed
func MoveRooms() Command {
	return Command{Kind: KindMoveRooms}
}

// MoveRoomsTo moves to a known room
func MoveRoomsTo(target string) Command {
	return Command{Kind: KindMoveRooms, Target: target, HasTarget: true}
}

// WithParameter fills the free-text parameter of a staged command.
// It reports false when the command takes no parameter or already has one.
func (c Command) WithParameter(param string) (Command, bool) {
	switch c.Kind {
	case KindMoveRooms:
		if c.HasTarget {
			return c, false
		}
		return MoveRoomsTo(param), true
	default:
		return c, false
	}
}

// NeedsParameter reports whether the command must be staged before it can be sent
func (c Command) NeedsParameter() bool {
	return c.Kind == KindMoveRooms && !c.HasTarget
}

// String returns the human readable label used in the key legend.
// Capture has no label since it is never rendered.
func (c Command) String() string {
	switch c.Kind {
	case KindReset:
		return "Reset"
	case KindQuit:
		return "Quit"
	case KindCapture:
		if c.Char == '\n' {
			return "New Line"
		}
		return ""
	case KindDel:
		if c.Offset < 0 {
			return "Delete Backward"
		}
		return "Delete Forward"
	case KindMoveCaret:
		return caretLabel(c.Axis, c.Delta)
	case KindEnter:
		switch c.Mode {
		case ModeNavigate:
			return "Enter Navigation Mode"
		case ModeInsert:
			return "Enter Insert Mode"
		default:
			return "Enter " + c.Mode.String() + " Mode"
		}
	case KindSendBuffer:
		return "Send Message"
	case KindGetServerTime:
		return "Get Server Time"
	case KindMoveRooms:
		if c.HasTarget {
			return "Move To " + c.Target
		}
		return "Move Rooms"
	case KindSendStagedCommand:
		return "Send Command"
	case KindAbortStagedCommand:
		return "Abort Command"
	case KindToggleDebug:
		return "Toggle Debug Logs"
	default:
		return fmt.Sprintf("Command(%d)", int(c.Kind))
	}
}

func caretLabel(axis Axis, delta int) string {
	if axis == AxisLine {
		if delta < 0 {
			return "Caret Up"
		}
		return "Caret Down"
	}
	if delta < 0 {
		return "Caret Left"
	}
	return "Caret Right"
}
