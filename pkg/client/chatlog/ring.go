// Package chatlog stores chat, system and debug lines most-recent-first.
package chatlog

import (
	"fmt"
	"time"
)

const (
	// VisibleCapacity bounds the entries renderable under the current debug flag
	VisibleCapacity = 100

	// StorageCapacity bounds raw storage, so hidden debug entries cannot grow without limit
	StorageCapacity = 1000

	// TimeFormat is used when rendering entries
	TimeFormat = "15:04:05"
)

// Well-known senders for entries that did not come from a chat user
const (
	SenderServer = "SERVER"
	SenderClient = "CLIENT"
	SenderDebug  = "DEBUG"
)

// Entry is one log line
type Entry struct {
	Time   time.Time
	Sender string
	Body   string
	Debug  bool
}

// NewEntry creates a visible entry stamped with now
func NewEntry(sender, body string, now time.Time) Entry {
	return Entry{Time: now, Sender: sender, Body: body}
}

// NewDebugEntry creates an entry only shown while debug output is enabled
func NewDebugEntry(data any, now time.Time) Entry {
	return Entry{Time: now, Sender: SenderDebug, Body: fmt.Sprintf("%+v", data), Debug: true}
}

// Visible reports whether the entry renders under the debug flag
func (e Entry) Visible(showDebug bool) bool {
	return !e.Debug || showDebug
}

func (e Entry) String() string {
	return fmt.Sprintf("[ %s | %s ]: %s", e.Time.Format(TimeFormat), e.Sender, e.Body)
}

// Ring holds entries newest first
type Ring struct {
	entries   []Entry
	showDebug bool
}

// NewRing returns an empty ring with debug entries hidden
func NewRing() *Ring {
	return &Ring{}
}

// Push prepends e and evicts the oldest entries until the visible count
// fits VisibleCapacity
func (r *Ring) Push(e Entry) {
	r.entries = append(r.entries, Entry{})
	copy(r.entries[1:], r.entries)
	r.entries[0] = e
	r.trim()
}

// Replace clears the ring and pushes batch in order, so the last element
// of batch ends up newest
func (r *Ring) Replace(batch []Entry) {
	r.entries = r.entries[:0]
	for _, e := range batch {
		r.Push(e)
	}
}

// ShowDebug reports whether debug entries are visible
func (r *Ring) ShowDebug() bool {
	return r.showDebug
}

// ToggleDebug flips debug visibility. Revealing debug entries can push
// the visible count over capacity, so the ring is trimmed again.
func (r *Ring) ToggleDebug() {
	r.showDebug = !r.showDebug
	r.trim()
}

// Len returns the number of visible entries
func (r *Ring) Len() int {
	n := 0
	for _, e := range r.entries {
		if e.Visible(r.showDebug) {
			n++
		}
	}
	return n
}

// StoredLen returns the raw number of stored entries, hidden ones included
func (r *Ring) StoredLen() int {
	return len(r.entries)
}

// Visible returns the renderable entries, newest first
func (r *Ring) Visible() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Visible(r.showDebug) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Ring) trim() {
	visible := r.Len()
	for len(r.entries) > 0 && (visible > VisibleCapacity || len(r.entries) > StorageCapacity) {
		last := r.entries[len(r.entries)-1]
		if last.Visible(r.showDebug) {
			visible--
		}
		r.entries = r.entries[:len(r.entries)-1]
	}
}
