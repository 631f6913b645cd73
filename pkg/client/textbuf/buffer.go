// Package textbuf implements the multi-line compose buffer and its 2D caret.
//
// Coordinates are 1-based. The buffer always holds at least one line and
// the caret always satisfies 1 <= Row <= len(lines) and
// 1 <= Col <= len(line)+1. Out of range motions are clamped, never rejected.
package textbuf

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Caret is an insertion point between runes
type Caret struct {
	Row int
	Col int
}

// Buffer holds the lines being composed
type Buffer struct {
	lines [][]rune
	caret Caret
}

// New returns an empty buffer with the caret at (1,1)
func New() *Buffer {
	b := &Buffer{}
	b.Reset()
	return b
}

// Reset clears the buffer to one empty line
func (b *Buffer) Reset() {
	b.lines = [][]rune{{}}
	b.caret = Caret{Row: 1, Col: 1}
}

// Caret returns the caret position
func (b *Buffer) Caret() Caret {
	return b.caret
}

// LineCount returns the number of lines, always >= 1
func (b *Buffer) LineCount() int {
	return len(b.lines)
}

// Lines returns a copy of the buffer lines
func (b *Buffer) Lines() []string {
	out := make([]string, len(b.lines))
	for i, l := range b.lines {
		out[i] = string(l)
	}
	return out
}

// Text joins all lines with newlines
func (b *Buffer) Text() string {
	return strings.Join(b.Lines(), "\n")
}

// IsBlank reports whether the buffer holds only whitespace
func (b *Buffer) IsBlank() bool {
	return strings.TrimSpace(b.Text()) == ""
}

func (b *Buffer) current() []rune {
	return b.lines[b.caret.Row-1]
}

// Insert places ch at the caret and advances the caret by one column.
// A newline splits the line instead.
func (b *Buffer) Insert(ch rune) {
	if ch == '\n' || ch == '\r' {
		b.SplitAtCaret()
		return
	}
	line := b.current()
	at := b.caret.Col - 1

	next := make([]rune, 0, len(line)+1)
	next = append(next, line[:at]...)
	next = append(next, ch)
	next = append(next, line[at:]...)

	b.lines[b.caret.Row-1] = next
	b.caret.Col++
}

// SplitAtCaret breaks the current line in two; the caret moves to the start
// of the new line
func (b *Buffer) SplitAtCaret() {
	row := b.caret.Row - 1
	line := b.lines[row]
	at := b.caret.Col - 1

	head := append([]rune(nil), line[:at]...)
	tail := append([]rune(nil), line[at:]...)

	lines := make([][]rune, 0, len(b.lines)+1)
	lines = append(lines, b.lines[:row]...)
	lines = append(lines, head, tail)
	lines = append(lines, b.lines[row+1:]...)

	b.lines = lines
	b.caret = Caret{Row: row + 2, Col: 1}
}

// Delete removes one rune next to the caret. A negative offset removes the
// rune before the caret and moves the caret left; zero or positive removes
// the rune under the caret. Line boundaries are never crossed.
func (b *Buffer) Delete(offset int) {
	line := b.current()
	var at int
	if offset < 0 {
		if b.caret.Col == 1 {
			return
		}
		at = b.caret.Col - 2
	} else {
		if b.caret.Col > len(line) {
			return
		}
		at = b.caret.Col - 1
	}

	next := make([]rune, 0, len(line)-1)
	next = append(next, line[:at]...)
	next = append(next, line[at+1:]...)
	b.lines[b.caret.Row-1] = next

	if offset < 0 {
		b.caret.Col--
	}
}

// MoveColumn shifts the caret horizontally, clamped to the current line
func (b *Buffer) MoveColumn(delta int) {
	b.caret.Col = clamp(b.caret.Col+delta, 1, len(b.current())+1)
}

// MoveRow shifts the caret vertically, clamped to the buffer, and re-clamps
// the column against the line it lands on
func (b *Buffer) MoveRow(delta int) {
	b.caret.Row = clamp(b.caret.Row+delta, 1, len(b.lines))
	b.caret.Col = clamp(b.caret.Col, 1, len(b.current())+1)
}

// DisplayColumn is the 1-based terminal cell the caret sits on, accounting
// for wide runes before it
func (b *Buffer) DisplayColumn() int {
	line := b.current()
	return runewidth.StringWidth(string(line[:b.caret.Col-1])) + 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
