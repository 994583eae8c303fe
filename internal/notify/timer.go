// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package notify

import (
	"sync"
	"time"

	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/models"
)

// DefaultDuration is how long a notification stays visible.
const DefaultDuration = 5000 * time.Millisecond

// Timer expires notifications from a Store after their presentation
// duration.
type Timer struct {
	store *Store
	clock clock.Scheduler

	mu     sync.Mutex
	timers map[string]clock.Timer
}

// NewTimer returns a Timer removing from store. A nil scheduler uses
// wall time.
func NewTimer(store *Store, sched clock.Scheduler) *Timer {
	return &Timer{
		store:  store,
		clock:  clock.OrReal(sched),
		timers: make(map[string]clock.Timer),
	}
}

// Start schedules removal of n after d. Non-positive d uses
// DefaultDuration. Starting an id that already has a countdown restarts it.
func (t *Timer) Start(n models.Notification, d time.Duration) {
	if d <= 0 {
		d = DefaultDuration
	}
	id := n.ID

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.timers[id]; ok {
		prev.Stop()
	}
	var tm clock.Timer
	tm = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if t.timers[id] != tm {
			t.mu.Unlock()
			return
		}
		delete(t.timers, id)
		t.mu.Unlock()

		t.store.RemoveWithReason(id, ReasonExpired)
	})
	t.timers[id] = tm
}

// Dismiss cancels the countdown for id and removes it from the store now.
// It reports whether the store held id.
func (t *Timer) Dismiss(id string) bool {
	t.cancel(id)
	return t.store.RemoveWithReason(id, ReasonDismissed)
}

// Attended cancels and removes every notification for requestID.
func (t *Timer) Attended(requestID string) int {
	for _, n := range t.store.List() {
		if n.RequestID == requestID {
			t.cancel(n.ID)
		}
	}
	return t.store.RemoveRequest(requestID, ReasonAttended)
}

// ClearAll cancels every countdown and empties the store.
func (t *Timer) ClearAll() {
	t.Stop()
	t.store.Clear()
}

// Stop cancels every countdown without touching the store.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
}

// Active returns the number of running countdowns.
func (t *Timer) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

func (t *Timer) cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tm, ok := t.timers[id]; ok {
		tm.Stop()
		delete(t.timers, id)
	}
}
