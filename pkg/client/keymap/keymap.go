// Package keymap maps (mode, key) pairs to commands using static,
// inspectable per-mode binding tables.
package keymap

import (
	"github.com/aeolun/marain/pkg/client/command"
)

// BindKind selects how a binding matches a key
type BindKind int

const (
	BindNoOp    BindKind = iota // placeholder, never matches
	BindExact                   // Key must match exactly, yields Command
	BindCapture                 // any printable rune, yields Capture(rune)
)

// Binding is one entry of a mode's binding table
type Binding struct {
	Kind    BindKind
	Key     Key
	Command command.Command
}

// Exact binds key to cmd
func Exact(key Key, cmd command.Command) Binding {
	return Binding{Kind: BindExact, Key: key, Command: cmd}
}

// CaptureAll binds every printable rune to Capture
func CaptureAll() Binding {
	return Binding{Kind: BindCapture}
}

// NoOp is a table placeholder
func NoOp() Binding {
	return Binding{Kind: BindNoOp}
}

// Match returns the command this binding yields for key, if any
func (b Binding) Match(key Key) (command.Command, bool) {
	switch b.Kind {
	case BindExact:
		if b.Key == key {
			return b.Command, true
		}
	case BindCapture:
		if key.Code == CodeRune {
			return command.Capture(key.Rune), true
		}
	}
	return command.Command{}, false
}

// Label is the legend text for the binding, empty when it is not renderable
func (b Binding) Label() string {
	if b.Kind != BindExact {
		return ""
	}
	label := b.Command.String()
	if label == "" {
		return ""
	}
	return b.Key.String() + "\t -> " + label
}

// Keymaps holds the binding table of every mode
type Keymaps struct {
	modes map[command.Mode][]Binding
}

// New builds keymaps from per-mode tables. Tables are used as given, so
// exact bindings must be listed before any catch-all.
func New(tables map[command.Mode][]Binding) *Keymaps {
	modes := make(map[command.Mode][]Binding, len(tables))
	for mode, binds := range tables {
		modes[mode] = append([]Binding(nil), binds...)
	}
	return &Keymaps{modes: modes}
}

// Lookup returns the first command bound to key in mode.
// The boolean is false when no binding matches.
func (k *Keymaps) Lookup(mode command.Mode, key Key) (command.Command, bool) {
	for _, b := range k.modes[mode] {
		if cmd, ok := b.Match(key); ok {
			return cmd, true
		}
	}
	return command.Command{}, false
}

// Bindings returns a copy of the table for mode
func (k *Keymaps) Bindings(mode command.Mode) []Binding {
	return append([]Binding(nil), k.modes[mode]...)
}

// Legend returns the labels of all renderable bindings for mode, in table order
func (k *Keymaps) Legend(mode command.Mode) []string {
	var labels []string
	for _, b := range k.modes[mode] {
		if label := b.Label(); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
