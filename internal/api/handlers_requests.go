// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/billcall/internal/billrequest"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/reconcile"
	"github.com/tomtom215/billcall/internal/session"
)

// PendingItem is a pending request with its age rendered for staff.
type PendingItem struct {
	models.BillRequest
	TimeAgo string `json:"timeAgo"`
}

func (h *Handler) pendingItems(list []models.BillRequest) []PendingItem {
	now := h.deps.Clock.Now()
	items := make([]PendingItem, len(list))
	for i, req := range list {
		items[i] = PendingItem{BillRequest: req, TimeAgo: models.TimeAgo(now, req.CreatedAt)}
	}
	return items
}

// ListPending returns the cached pending list.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	items := h.pendingItems(h.deps.Pending.Cache().Snapshot())
	NewResponseWriter(w, r).List(items, len(items))
}

// RefreshPending asks the reconciler for a fresh list.
func (h *Handler) RefreshPending(w http.ResponseWriter, r *http.Request) {
	h.deps.Pending.Trigger(reconcile.TriggerManual)
	NewResponseWriter(w, r).Accepted(map[string]string{"trigger": reconcile.TriggerManual})
}

// MarkAttended marks one request attended on the backend.
func (h *Handler) MarkAttended(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	req, err := h.deps.Pending.MarkAttended(r.Context(), id)
	if err != nil {
		rw.BackendError(backendStatus(err), billrequest.FriendlyMessage(err, billrequest.OpMarkAttended), err)
		return
	}
	if req == nil {
		rw.Success(map[string]string{"id": id})
		return
	}
	rw.Success(req)
}

// backendStatus picks the status the dashboard answers with when a
// backend call fails.
func backendStatus(err error) int {
	if errors.Is(err, session.ErrMissingCredentials) || billrequest.IsNetworkError(err) {
		return http.StatusServiceUnavailable
	}
	switch status := billrequest.StatusCode(err); status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict:
		return status
	}
	return http.StatusBadGateway
}
