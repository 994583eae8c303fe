// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/billcall/internal/realtime"
)

// HealthResponse is the body of /api/v1/health.
type HealthResponse struct {
	Status  string  `json:"status"`
	Uptime  float64 `json:"uptime"`
	Clients int     `json:"websocketClients"`
}

// StatusResponse is the body of /api/v1/status.
type StatusResponse struct {
	Realtime         realtime.Status `json:"realtime"`
	Degraded         bool            `json:"degraded"`
	Message          string          `json:"message,omitempty"`
	Notifications    int             `json:"notifications"`
	Pending          int             `json:"pending"`
	PendingUpdatedAt *time.Time      `json:"pendingUpdatedAt,omitempty"`
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "healthy",
		Uptime: h.deps.Clock.Now().Sub(h.startTime).Seconds(),
	}
	if h.deps.Hub != nil {
		resp.Clients = h.deps.Hub.GetClientCount()
	}
	NewResponseWriter(w, r).Success(resp)
}

// Status reports stream state and counts. A stream that gave up is
// reported as degraded with the reload message.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if h.deps.Realtime != nil {
		resp.Realtime = h.deps.Realtime.Status()
		resp.Degraded = resp.Realtime.Degraded()
		if resp.Degraded {
			resp.Message = realtime.ExhaustedMessage
		}
	}
	if h.deps.Store != nil {
		resp.Notifications = h.deps.Store.Len()
	}
	if h.deps.Pending != nil {
		cache := h.deps.Pending.Cache()
		resp.Pending = cache.Count()
		if at := cache.LastUpdated(); !at.IsZero() {
			resp.PendingUpdatedAt = &at
		}
	}
	NewResponseWriter(w, r).Success(resp)
}

// Reconnect restarts the stream after it gave up.
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Realtime == nil {
		rw.ServiceUnavailable("Live updates are not enabled")
		return
	}
	if err := h.deps.Realtime.Reconnect(r.Context()); err != nil {
		rw.Error(http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}
	rw.Accepted(h.deps.Realtime.Status())
}
