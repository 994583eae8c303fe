// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/billcall/internal/models"
	ws "github.com/tomtom215/billcall/internal/websocket"
)

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		host    string
		allowed []string
		want    bool
	}{
		{"no origin", "", "localhost:8787", nil, true},
		{"same origin", "http://localhost:8787", "localhost:8787", nil, true},
		{"foreign origin", "http://evil.example", "localhost:8787", nil, false},
		{"listed origin", "http://pos.example", "localhost:8787", []string{"http://pos.example"}, true},
		{"wildcard", "http://any.example", "localhost:8787", []string{"*"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originAllowed(r, tt.allowed); got != tt.want {
				t.Errorf("originAllowed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebSocketSnapshotThenBroadcast(t *testing.T) {
	f := newFixture(t)
	f.store.Add(models.NewNotification(9, "req-9", "", testNow))

	hub := ws.NewHub()
	f.handler.deps.Hub = hub
	hub.SetSnapshot(f.handler.Snapshot)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	server := httptest.NewServer(f.server)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	read := func() map[string]json.RawMessage {
		t.Helper()
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatal(err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatal(err)
		}
		return m
	}
	msgType := func(m map[string]json.RawMessage) string {
		var s string
		_ = json.Unmarshal(m["type"], &s)
		return s
	}

	first := read()
	if msgType(first) != ws.MessageTypeSnapshot {
		t.Fatalf("first frame = %s", msgType(first))
	}
	var snap SnapshotData
	if err := json.Unmarshal(first["data"], &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Notifications) != 1 || snap.Notifications[0].TableNumber != 9 {
		t.Errorf("snapshot notifications = %+v", snap.Notifications)
	}

	if second := read(); msgType(second) != ws.MessageTypeConnectionStatus {
		t.Fatalf("second frame = %s", msgType(second))
	}

	hub.Broadcast(ws.MessageTypeNotificationsCleared, map[string]string{"reason": "cleared"})
	if m := read(); msgType(m) != ws.MessageTypeNotificationsCleared {
		t.Errorf("broadcast frame = %s", msgType(m))
	}
}

func TestWebSocketWithoutHub(t *testing.T) {
	f := newFixture(t)
	code, env := f.do(t, http.MethodGet, "/ws", "")
	if code != http.StatusServiceUnavailable || env.Error == nil {
		t.Errorf("ws without hub = %d", code)
	}
}
