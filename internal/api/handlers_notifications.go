// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/billcall/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 * 1024

// AddNotificationRequest is the body of POST /api/v1/notifications.
type AddNotificationRequest struct {
	TableNumber int    `json:"tableNumber" validate:"gt=0,lte=10000"`
	Message     string `json:"message" validate:"max=280"`
}

// ListNotifications returns the visible notifications, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	list := h.deps.Store.List()
	NewResponseWriter(w, r).List(list, len(list))
}

// AddNotification surfaces a notification without going through dedup.
func (h *Handler) AddNotification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req AddNotificationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	n := h.deps.Notifications.AddNotification(req.TableNumber, req.Message)
	rw.Created(n)
}

// DismissNotification removes one notification. Unknown ids are 404.
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	if !h.deps.Notifications.Dismiss(id) {
		rw.NotFound("Notification not found")
		return
	}
	rw.Success(map[string]string{"id": id})
}

// ClearNotifications removes every notification.
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	h.deps.Notifications.ClearAll()
	NewResponseWriter(w, r).Success(map[string]int{"remaining": h.deps.Store.Len()})
}
