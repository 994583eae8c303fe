// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package router

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/dedup"
	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/metrics"
	"github.com/tomtom215/billcall/internal/notify"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type countingReconciler struct {
	mu      sync.Mutex
	reasons []string
}

func (c *countingReconciler) Trigger(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reasons = append(c.reasons, reason)
}

func (c *countingReconciler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reasons)
}

type harness struct {
	router *Router
	store  *notify.Store
	clock  *clock.Fake
	recon  *countingReconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 6, 12, 21, 0, 0, 0, time.UTC))
	store := notify.NewStore()
	recon := &countingReconciler{}
	r := New(Config{
		Window:     dedup.New(dedup.Config{Clock: fake}),
		Store:      store,
		Timer:      notify.NewTimer(store, fake),
		Reconciler: recon,
		Clock:      fake,
	})
	t.Cleanup(r.Close)
	return &harness{router: r, store: store, clock: fake, recon: recon}
}

func (h *harness) send(t *testing.T, frame string) error {
	t.Helper()
	return h.router.HandleFrame(context.Background(), []byte(frame))
}

func TestHandleFrame_PendingEventSurfacesOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if err := h.send(t, `{"tableNumber":5,"status":"pending","id":"r1"}`); err != nil {
		t.Fatalf("HandleFrame() error = %v", err)
	}

	list := h.store.List()
	if len(list) != 1 || list[0].TableNumber != 5 || list[0].RequestID != "r1" {
		t.Fatalf("store = %+v", list)
	}
	if list[0].Message != "Table 5 requested the bill" {
		t.Errorf("Message = %q", list[0].Message)
	}
	if !list[0].ExpiresAt.Equal(list[0].CreatedAt.Add(5 * time.Second)) {
		t.Errorf("ExpiresAt = %v", list[0].ExpiresAt)
	}
	if h.recon.count() != 1 {
		t.Errorf("reconcile triggered %d times, want 1", h.recon.count())
	}
}

func TestHandleFrame_DuplicateWithinOneSecondSuppressed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	frame := `{"tableNumber":5,"status":"pending","id":"r1"}`
	_ = h.send(t, frame)
	h.clock.Advance(400 * time.Millisecond)
	_ = h.send(t, frame)

	if h.store.Len() != 1 {
		t.Errorf("store has %d notifications, want 1", h.store.Len())
	}
	if h.recon.count() != 1 {
		t.Errorf("suppressed event triggered a reconcile (%d)", h.recon.count())
	}
}

func TestHandleFrame_DuplicateAcrossSecondBoundarySuppressed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.clock.Advance(900 * time.Millisecond)
	_ = h.send(t, `{"tableNumber":3,"status":"pending"}`)
	h.clock.Advance(4 * time.Second)
	_ = h.send(t, `{"tableNumber":3,"status":"pending"}`)

	if h.store.Len() != 1 {
		t.Errorf("store has %d notifications, want 1", h.store.Len())
	}
}

func TestHandleFrame_RepeatAfterWindowSurfacesAgain(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_ = h.send(t, `{"tableNumber":5,"status":"pending","id":"r1"}`)
	h.clock.Advance(5100 * time.Millisecond)
	_ = h.send(t, `{"tableNumber":5,"status":"pending","id":"r1"}`)

	// The first notification expired at 5s; the second is fresh.
	list := h.store.List()
	if len(list) != 1 {
		t.Fatalf("store = %d notifications, want 1", len(list))
	}
	if h.recon.count() != 2 {
		t.Errorf("reconcile triggered %d times, want 2", h.recon.count())
	}
}

func TestResetWindow_RepeatSurfacesForNewSubscription(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	frame := `{"tableNumber":5,"status":"pending"}`
	_ = h.send(t, frame)
	h.router.ResetWindow()
	_ = h.send(t, frame)

	if h.store.Len() != 2 {
		t.Errorf("store has %d notifications, want 2", h.store.Len())
	}

	// Dedup still applies within the new subscription.
	_ = h.send(t, frame)
	if h.store.Len() != 2 {
		t.Errorf("store has %d notifications after duplicate, want 2", h.store.Len())
	}
}

func TestHandleFrame_DistinctTablesSameSecond(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, f := range []string{
		`{"tableNumber":1,"status":"pending"}`,
		`{"tableNumber":2,"status":"pending"}`,
		`{"tableNumber":3,"status":"pending"}`,
	} {
		if err := h.send(t, f); err != nil {
			t.Fatalf("HandleFrame(%s) error = %v", f, err)
		}
	}

	list := h.store.List()
	if len(list) != 3 {
		t.Fatalf("store = %d notifications, want 3", len(list))
	}
	if list[0].TableNumber != 3 || list[2].TableNumber != 1 {
		t.Errorf("store not newest-first: %d..%d", list[0].TableNumber, list[2].TableNumber)
	}
}

func TestHandleFrame_SameTableDistinctRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_ = h.send(t, `{"tableNumber":4,"status":"pending","id":"a"}`)
	_ = h.send(t, `{"tableNumber":4,"status":"pending","id":"b"}`)

	if h.store.Len() != 2 {
		t.Errorf("store has %d notifications, want 2", h.store.Len())
	}
}

func TestHandleFrame_NonPendingIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, f := range []string{
		`{"tableNumber":5,"status":"attended","id":"r1"}`,
		`{"tableNumber":5,"status":"cancelled","id":"r1"}`,
	} {
		if err := h.send(t, f); err != nil {
			t.Errorf("HandleFrame(%s) error = %v", f, err)
		}
	}
	if h.store.Len() != 0 || h.recon.count() != 0 {
		t.Errorf("ignored events produced store=%d reconcile=%d", h.store.Len(), h.recon.count())
	}
}

func TestHandleFrame_BillRequestTypeIsPending(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_ = h.send(t, `{"type":"bill_request","tableNumber":9,"message":"Table 9 wants to pay by card"}`)

	list := h.store.List()
	if len(list) != 1 || list[0].Message != "Table 9 wants to pay by card" {
		t.Errorf("store = %+v", list)
	}
}

func TestHandleFrame_ExpiresAfterPresentationTime(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_ = h.send(t, `{"tableNumber":5,"status":"pending"}`)
	h.clock.Advance(4999 * time.Millisecond)
	if h.store.Len() != 1 {
		t.Fatal("notification expired early")
	}
	h.clock.Advance(time.Millisecond)
	if h.store.Len() != 0 {
		t.Error("notification not removed at 5000ms")
	}
}

// Not parallel: asserts on shared counters.
func TestHandleFrame_Malformed(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		frame  string
		reason string
	}{
		{"invalid json", `{"tableNumber":`, "json"},
		{"missing table", `{"status":"pending"}`, "table_number"},
		{"null table", `{"tableNumber":null,"status":"pending"}`, "table_number"},
		{"string table", `{"tableNumber":"5","status":"pending"}`, "table_number"},
		{"fractional table", `{"tableNumber":5.5,"status":"pending"}`, "table_number"},
		{"zero table", `{"tableNumber":0,"status":"pending"}`, "table_number"},
		{"negative table", `{"tableNumber":-2,"status":"pending"}`, "table_number"},
		{"missing status", `{"tableNumber":5}`, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.FramesMalformed.WithLabelValues(tt.reason))

			err := h.send(t, tt.frame)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("HandleFrame() = %v, want ErrMalformedFrame", err)
			}

			after := testutil.ToFloat64(metrics.FramesMalformed.WithLabelValues(tt.reason))
			if after-before != 1 {
				t.Errorf("malformed{%s} delta = %v, want 1", tt.reason, after-before)
			}
		})
	}

	if h.store.Len() != 0 || h.recon.count() != 0 {
		t.Errorf("malformed frames produced store=%d reconcile=%d", h.store.Len(), h.recon.count())
	}
}

func TestAddNotification_BypassesDedup(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	a := h.router.AddNotification(2, "")
	b := h.router.AddNotification(2, "")
	if a.ID == b.ID {
		t.Error("manual notifications share an id")
	}
	if h.store.Len() != 2 {
		t.Errorf("store has %d, want 2", h.store.Len())
	}
	if !h.router.Dismiss(a.ID) || h.router.Dismiss(a.ID) {
		t.Error("Dismiss should succeed once")
	}
	h.router.ClearAll()
	if h.store.Len() != 0 {
		t.Error("ClearAll left notifications")
	}
}

func TestDedupKey(t *testing.T) {
	t.Parallel()

	at := time.Unix(1700000000, 500)
	ev, err := ParseFrame([]byte(`{"tableNumber":5,"status":"pending","id":"r1"}`), at)
	if err != nil {
		t.Fatal(err)
	}
	if got := DedupKey(ev, at); got != "5:r1:1700000000" {
		t.Errorf("DedupKey() = %q", got)
	}

	ev.RequestID = ""
	if got := DedupKey(ev, at); got != "5:5:1700000000" {
		t.Errorf("DedupKey() without request id = %q", got)
	}

	keys := lookbackKeys(ev, at, 5*time.Second)
	if len(keys) != 6 || keys[0] != "5:5:1700000000" || keys[5] != "5:5:1699999995" {
		t.Errorf("lookbackKeys() = %v", keys)
	}
}
