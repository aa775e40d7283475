// Package listeners filters raw front-panel input into clean events.
//
// The RFID reader reports a card several times a second while it sits
// on the reader, and the arcade button bounces mechanically. Both
// filters take the event time as a parameter so tests can drive them
// with a simulated clock.
package listeners

import (
	"sync"
	"time"
)

// TagDeduper turns repeated reads of a resting card into a single
// presentation event.
//
// A read of the same UID within the window refreshes the window instead
// of emitting, so a card left on the reader stays silent until it is
// lifted and re-presented. A different UID always passes immediately.
type TagDeduper struct {
	window time.Duration

	mu      sync.Mutex
	lastUID string
	lastAt  time.Time
}

// NewTagDeduper creates a deduper with the given suppression window.
func NewTagDeduper(window time.Duration) *TagDeduper {
	return &TagDeduper{window: window}
}

// Accept reports whether a read of uid at the given time is a new
// presentation.
func (d *TagDeduper) Accept(uid string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if uid == d.lastUID && at.Sub(d.lastAt) < d.window {
		// Same card still on the reader. Keep the window open.
		d.lastAt = at
		return false
	}

	d.lastUID = uid
	d.lastAt = at
	return true
}

// ButtonDebouncer suppresses contact bounce on the panel buttons.
//
// Presses of a button within the refractory interval of an accepted
// press of the same button are ignored. Each button debounces on its
// own timeline, so a stop press is never swallowed by a play/pause
// press just before it. Unlike the tag deduper the interval is not
// refreshed, so a child mashing a button still gets one event per
// interval.
type ButtonDebouncer struct {
	interval time.Duration

	mu     sync.Mutex
	lastAt map[string]time.Time
}

// NewButtonDebouncer creates a debouncer with the given refractory interval.
func NewButtonDebouncer(interval time.Duration) *ButtonDebouncer {
	return &ButtonDebouncer{
		interval: interval,
		lastAt:   make(map[string]time.Time),
	}
}

// Accept reports whether a press of the named button at the given time
// is a genuine press.
func (b *ButtonDebouncer) Accept(button string, at time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if last, ok := b.lastAt[button]; ok && at.Sub(last) < b.interval {
		return false
	}

	b.lastAt[button] = at
	return true
}
