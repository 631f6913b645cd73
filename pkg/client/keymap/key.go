package keymap

import "fmt"

// Code identifies a key independent of the terminal library that produced it
type Code uint8

const (
	CodeNone Code = iota
	CodeRune      // Printable character, see Key.Rune
	CodeEnter
	CodeEsc
	CodeBackspace
	CodeDelete
	CodeTab
	CodeLeft
	CodeRight
	CodeUp
	CodeDown
	CodeCtrlJ
	CodeCtrlC
)

// Key is a single key press
type Key struct {
	Code Code
	Rune rune
}

// Char returns the key for a printable character
func Char(r rune) Key {
	return Key{Code: CodeRune, Rune: r}
}

// Special returns the key for a non-printable code
func Special(code Code) Key {
	return Key{Code: code}
}

// String renders the key the way it is shown in the legend
func (k Key) String() string {
	switch k.Code {
	case CodeRune:
		if k.Rune == ' ' {
			return "Space"
		}
		return string(k.Rune)
	case CodeEnter:
		return "Enter"
	case CodeEsc:
		return "Esc"
	case CodeBackspace:
		return "Backspace"
	case CodeDelete:
		return "Del"
	case CodeTab:
		return "Tab"
	case CodeLeft:
		return "←"
	case CodeRight:
		return "→"
	case CodeUp:
		return "↑"
	case CodeDown:
		return "↓"
	case CodeCtrlJ:
		return "Ctrl+J"
	case CodeCtrlC:
		return "Ctrl+C"
	case CodeNone:
		return ""
	default:
		return fmt.Sprintf("Key(%d)", k.Code)
	}
}
