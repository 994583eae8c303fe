// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/realtime"
	"github.com/tomtom215/billcall/internal/reconcile"
	ws "github.com/tomtom215/billcall/internal/websocket"
)

// NotificationController mutates the visible notifications.
type NotificationController interface {
	AddNotification(table int, message string) models.Notification
	Dismiss(id string) bool
	ClearAll()
}

// NotificationLister reads the visible notifications.
type NotificationLister interface {
	List() []models.Notification
	Len() int
}

// PendingController exposes the reconciled pending list.
type PendingController interface {
	Cache() *reconcile.PendingCache
	Trigger(reason string)
	MarkAttended(ctx context.Context, requestID string) (*models.BillRequest, error)
}

// RealtimeControl reports on and restarts the bill-request stream.
type RealtimeControl interface {
	Status() realtime.Status
	Reconnect(ctx context.Context) error
}

// Deps are the components the handlers serve.
type Deps struct {
	Notifications NotificationController
	Store         NotificationLister
	Pending       PendingController
	Realtime      RealtimeControl
	Hub           *ws.Hub
	Clock         clock.Scheduler

	// CORSOrigins also gates WebSocket upgrades.
	CORSOrigins []string
}

// Handler implements the dashboard endpoints.
type Handler struct {
	deps      Deps
	startTime time.Time
	upgrader  websocket.Upgrader
}

// NewHandler creates a Handler. A nil clock uses the wall clock.
func NewHandler(deps Deps) *Handler {
	deps.Clock = clock.OrReal(deps.Clock)
	h := &Handler{deps: deps, startTime: deps.Clock.Now()}
	h.upgrader = getUpgrader(deps.CORSOrigins)
	return h
}

func getUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, allowed)
		},
	}
}

// originAllowed accepts same-origin requests, requests without an Origin
// header (non-browser clients), and any origin on the allow list.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// WebSocket upgrades the connection and registers a hub client.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.deps.Hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Live updates are not enabled")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.deps.Hub, conn)
	select {
	case h.deps.Hub.Register <- client:
	case <-r.Context().Done():
		conn.Close()
		return
	}
	client.Start()
}

// Snapshot builds the frames a newly connected dashboard receives.
func (h *Handler) Snapshot() []ws.Message {
	msgs := []ws.Message{{Type: ws.MessageTypeSnapshot, Data: h.snapshotData()}}
	if h.deps.Realtime != nil {
		msgs = append(msgs, ws.Message{Type: ws.MessageTypeConnectionStatus, Data: h.deps.Realtime.Status()})
	}
	return msgs
}

// SnapshotData is the body of the snapshot frame.
type SnapshotData struct {
	Notifications []models.Notification `json:"notifications"`
	Pending       []PendingItem         `json:"pending"`
}

func (h *Handler) snapshotData() SnapshotData {
	data := SnapshotData{Notifications: []models.Notification{}, Pending: []PendingItem{}}
	if h.deps.Store != nil {
		data.Notifications = h.deps.Store.List()
	}
	if h.deps.Pending != nil {
		data.Pending = h.pendingItems(h.deps.Pending.Cache().Snapshot())
	}
	return data
}
