// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/billcall/internal/realtime"
	"github.com/tomtom215/billcall/internal/session"
)

type fakeStream struct {
	mu          sync.Mutex
	connects    []session.Credentials
	disconnects int
	state       realtime.State
	connectErr  error
}

func (f *fakeStream) Connect(_ context.Context, creds session.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, creds)
	if creds.Complete() {
		f.state = realtime.StateOpen
	}
	return f.connectErr
}

func (f *fakeStream) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.state = realtime.StateIdle
}

func (f *fakeStream) Status() realtime.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return realtime.Status{State: f.state}
}

func (f *fakeStream) setState(s realtime.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *fakeStream) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connects), f.disconnects
}

func (f *fakeStream) lastConnect() session.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects[len(f.connects)-1]
}

func waitCounts(t *testing.T, f *fakeStream, connects, disconnects int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c, d := f.counts()
		if c >= connects && d >= disconnects {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("connects=%d disconnects=%d, want >= %d/%d", c, d, connects, disconnects)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startRealtime(t *testing.T, stream *fakeStream, holder *session.Holder) (*RealtimeService, context.CancelFunc, <-chan error) {
	t.Helper()
	svc := NewRealtimeService(stream, holder)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	waitCounts(t, stream, 1, 0)
	return svc, cancel, errCh
}

var testCreds = session.Credentials{RestaurantID: "rest-1", Token: "token-one"}

func TestRealtimeService_ConnectsAndDisconnects(t *testing.T) {
	stream := &fakeStream{}
	_, cancel, errCh := startRealtime(t, stream, session.NewHolder(testCreds))

	if got := stream.lastConnect(); got != testCreds {
		t.Errorf("connected with %+v", got)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	if _, d := stream.counts(); d != 1 {
		t.Errorf("disconnects = %d, want 1", d)
	}
}

func TestRealtimeService_FailedFirstDialKeepsRunning(t *testing.T) {
	stream := &fakeStream{connectErr: errors.New("connection refused")}
	_, cancel, errCh := startRealtime(t, stream, session.NewHolder(testCreds))

	select {
	case err := <-errCh:
		t.Fatalf("Serve returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	<-errCh
}

func TestRealtimeService_ResubscribesOnSessionChange(t *testing.T) {
	stream := &fakeStream{}
	holder := session.NewHolder(testCreds)
	_, cancel, errCh := startRealtime(t, stream, holder)
	defer func() {
		cancel()
		<-errCh
	}()

	next := session.Credentials{RestaurantID: "rest-2", Token: "token-two"}
	holder.Set(next)

	waitCounts(t, stream, 2, 1)
	if got := stream.lastConnect(); got != next {
		t.Errorf("resubscribed with %+v, want %+v", got, next)
	}
}

func TestRealtimeService_OnSubscribeRunsBetweenSwaps(t *testing.T) {
	stream := &fakeStream{}
	holder := session.NewHolder(testCreds)
	svc := NewRealtimeService(stream, holder)

	var mu sync.Mutex
	var seen [][2]int
	svc.OnSubscribe(func() {
		c, d := stream.counts()
		mu.Lock()
		seen = append(seen, [2]int{c, d})
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	defer func() {
		cancel()
		<-errCh
	}()
	waitCounts(t, stream, 1, 0)

	holder.Set(session.Credentials{RestaurantID: "rest-2", Token: "token-two"})
	waitCounts(t, stream, 2, 1)

	mu.Lock()
	defer mu.Unlock()
	want := [][2]int{{0, 0}, {1, 1}}
	if len(seen) != len(want) {
		t.Fatalf("hook ran %d times, want %d", len(seen), len(want))
	}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("run %d saw connects/disconnects %v, want %v", i, seen[i], w)
		}
	}
}

func TestRealtimeService_Reconnect(t *testing.T) {
	stream := &fakeStream{}
	holder := session.NewHolder(testCreds)

	idle := NewRealtimeService(stream, holder)
	if err := idle.Reconnect(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Reconnect before Serve = %v", err)
	}

	svc, cancel, errCh := startRealtime(t, &fakeStream{}, holder)
	defer func() {
		cancel()
		<-errCh
	}()
	inner := svc.client.(*fakeStream)

	if err := svc.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect while open = %v", err)
	}
	if c, _ := inner.counts(); c != 1 {
		t.Errorf("open subscription reconnected: %d connects", c)
	}

	inner.setState(realtime.StateIdle)
	if err := svc.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect after exhaustion = %v", err)
	}
	if c, _ := inner.counts(); c != 2 {
		t.Errorf("connects = %d, want 2", c)
	}
	if svc.Status().State != realtime.StateOpen {
		t.Errorf("state = %s", svc.Status().State)
	}
}

func TestRealtimeService_ReconnectWithoutCredentials(t *testing.T) {
	stream := &fakeStream{}
	svc, cancel, errCh := startRealtime(t, stream, session.NewHolder(session.Credentials{}))
	defer func() {
		cancel()
		<-errCh
	}()

	if err := svc.Reconnect(context.Background()); !errors.Is(err, session.ErrMissingCredentials) {
		t.Errorf("Reconnect = %v", err)
	}
	if svc.String() != "realtime-session" {
		t.Errorf("String() = %q", svc.String())
	}
}
