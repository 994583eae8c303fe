// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package notify

import (
	"testing"
	"time"

	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/models"
)

func setupTimer(t *testing.T) (*Store, *Timer, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(testNow)
	store := NewStore()
	timer := NewTimer(store, fake)
	t.Cleanup(timer.Stop)
	return store, timer, fake
}

func TestTimer_ExpiresAfterDefaultDuration(t *testing.T) {
	t.Parallel()
	store, timer, fake := setupTimer(t)

	n := models.NewNotification(5, "", "", testNow)
	store.Add(n)
	timer.Start(n, 0)

	fake.Advance(4999 * time.Millisecond)
	if store.Len() != 1 {
		t.Fatal("notification expired early")
	}
	fake.Advance(time.Millisecond)
	if store.Len() != 0 {
		t.Error("notification still visible after 5000ms")
	}
	if timer.Active() != 0 {
		t.Errorf("Active = %d after expiry", timer.Active())
	}
}

func TestTimer_DismissCancelsCountdown(t *testing.T) {
	t.Parallel()
	store, timer, fake := setupTimer(t)

	rec := &recorder{}
	store.Subscribe(rec)

	n := models.NewNotification(5, "", "", testNow)
	store.Add(n)
	timer.Start(n, time.Second)

	if !timer.Dismiss(n.ID) {
		t.Fatal("Dismiss should report the notification was present")
	}
	fake.Advance(time.Minute)

	if got := rec.kinds(); len(got) != 2 {
		t.Errorf("changes = %v, want exactly added+removed", got)
	}
	if timer.Dismiss(n.ID) {
		t.Error("second Dismiss should report false")
	}
}

func TestTimer_IndependentCountdowns(t *testing.T) {
	t.Parallel()
	store, timer, fake := setupTimer(t)

	a := models.NewNotification(1, "", "", testNow)
	b := models.NewNotification(2, "", "", testNow)
	store.Add(a)
	timer.Start(a, 5*time.Second)
	fake.Advance(2 * time.Second)
	store.Add(b)
	timer.Start(b, 5*time.Second)

	fake.Advance(3 * time.Second)
	if _, ok := store.Get(a.ID); ok {
		t.Error("a should have expired")
	}
	if _, ok := store.Get(b.ID); !ok {
		t.Error("b expired with a")
	}
}

func TestTimer_RestartReplacesCountdown(t *testing.T) {
	t.Parallel()
	store, timer, fake := setupTimer(t)

	n := models.NewNotification(1, "", "", testNow)
	store.Add(n)
	timer.Start(n, 2*time.Second)
	fake.Advance(time.Second)
	timer.Start(n, 5*time.Second)

	fake.Advance(2 * time.Second)
	if store.Len() != 1 {
		t.Error("stale countdown removed the notification")
	}
	fake.Advance(3 * time.Second)
	if store.Len() != 0 {
		t.Error("restarted countdown never fired")
	}
}

func TestTimer_ClearAll(t *testing.T) {
	t.Parallel()
	store, timer, fake := setupTimer(t)

	for i := 1; i <= 3; i++ {
		n := models.NewNotification(i, "", "", testNow)
		store.Add(n)
		timer.Start(n, time.Second)
	}
	timer.ClearAll()

	if store.Len() != 0 || timer.Active() != 0 || fake.Pending() != 0 {
		t.Errorf("ClearAll left store=%d active=%d pending=%d", store.Len(), timer.Active(), fake.Pending())
	}
}

func TestTimer_Attended(t *testing.T) {
	t.Parallel()
	store, timer, fake := setupTimer(t)

	n := models.NewNotification(8, "req-8", "", testNow)
	store.Add(n)
	timer.Start(n, time.Second)

	if got := timer.Attended("req-8"); got != 1 {
		t.Errorf("Attended removed %d, want 1", got)
	}
	if fake.Pending() != 0 {
		t.Error("attended notification's countdown still pending")
	}
}
