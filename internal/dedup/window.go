// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package dedup suppresses repeated bill-request events for a short window.
//
// Each remembered key schedules its own removal, so the window never needs
// a sweeper goroutine. A capacity bound evicts the oldest key first.
package dedup

import (
	"sync"
	"time"

	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/metrics"
)

// DefaultMaxEntries bounds the window when Config.MaxEntries is zero.
const DefaultMaxEntries = 10000

// Config configures a Window.
type Config struct {
	MaxEntries int
	Clock      clock.Scheduler
}

type entry struct {
	key   string
	timer clock.Timer
	prev  *entry
	next  *entry
}

// Window is a set of recently seen keys. It is safe for concurrent use;
// expiry callbacks arrive on timer goroutines.
type Window struct {
	mu    sync.Mutex
	clock clock.Scheduler
	max   int
	items map[string]*entry

	// head.next is the newest key, tail.prev the oldest.
	head *entry
	tail *entry
}

// New returns an empty Window.
func New(cfg Config) *Window {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	w := &Window{
		clock: clock.OrReal(cfg.Clock),
		max:   cfg.MaxEntries,
		items: make(map[string]*entry),
		head:  &entry{},
		tail:  &entry{},
	}
	w.head.next = w.tail
	w.tail.prev = w.head
	return w
}

// ShouldSuppress reports whether key is currently remembered.
func (w *Window) ShouldSuppress(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.items[key]
	return ok
}

// Remember inserts key and schedules its removal after ttl. Remembering a
// live key does nothing; the original expiry stands.
func (w *Window) Remember(key string, ttl time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.items[key]; ok {
		return
	}

	e := &entry{key: key}
	e.timer = w.clock.AfterFunc(ttl, func() { w.expire(e) })
	w.addToFront(e)
	w.items[key] = e

	for len(w.items) > w.max {
		w.evictOldest()
	}
	metrics.DedupEntries.Set(float64(len(w.items)))
}

// expire removes e if it is still the live entry for its key. A stale
// callback for an evicted or re-added key is ignored.
func (w *Window) expire(e *entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cur, ok := w.items[e.key]; !ok || cur != e {
		return
	}
	w.removeEntry(e)
	metrics.DedupEntries.Set(float64(len(w.items)))
}

// Len returns the number of live keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Reset forgets every key and stops their pending removals. The window
// stays usable.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range w.items {
		e.timer.Stop()
	}
	w.items = make(map[string]*entry)
	w.head.next = w.tail
	w.tail.prev = w.head
	metrics.DedupEntries.Set(0)
}

// Close releases the window's timers.
func (w *Window) Close() {
	w.Reset()
}

// The helpers below must be called with mu held.

func (w *Window) addToFront(e *entry) {
	e.prev = w.head
	e.next = w.head.next
	w.head.next.prev = e
	w.head.next = e
}

func (w *Window) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(w.items, e.key)
}

func (w *Window) evictOldest() {
	oldest := w.tail.prev
	if oldest == w.head {
		return
	}
	oldest.timer.Stop()
	w.removeEntry(oldest)
}
