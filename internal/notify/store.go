// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package notify holds the staff-facing notification list and the
// countdowns that expire its entries.
package notify

import (
	"sync"

	"github.com/tomtom215/billcall/internal/metrics"
	"github.com/tomtom215/billcall/internal/models"
)

// ChangeKind identifies a store mutation.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeCleared ChangeKind = "cleared"
)

// Change describes one mutation. Notification is zero for ChangeCleared.
type Change struct {
	Kind         ChangeKind
	Notification models.Notification
	Reason       string
}

// Observer is told about every store mutation, after the store lock is
// released.
type Observer interface {
	NotificationChanged(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

// NotificationChanged implements Observer.
func (f ObserverFunc) NotificationChanged(c Change) { f(c) }

// Removal reasons recorded in metrics and passed to observers.
const (
	ReasonExpired   = "expired"
	ReasonDismissed = "dismissed"
	ReasonAttended  = "attended"
	ReasonCleared   = "cleared"
	ReasonOverflow  = "overflow"
)

// Store is the ordered notification list, newest first.
type Store struct {
	mu        sync.RWMutex
	items     []models.Notification
	observers []Observer
	limit     int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Subscribe registers o for future changes.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// SetLimit caps the list at n entries; Add drops the oldest beyond it.
// Zero means unbounded.
func (s *Store) SetLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = max(n, 0)
}

// Add prepends n.
func (s *Store) Add(n models.Notification) {
	s.mu.Lock()
	items := make([]models.Notification, 0, len(s.items)+1)
	items = append(items, n)
	s.items = append(items, s.items...)
	var dropped []models.Notification
	if s.limit > 0 && len(s.items) > s.limit {
		dropped = append(dropped, s.items[s.limit:]...)
		s.items = s.items[:s.limit:s.limit]
	}
	count := len(s.items)
	obs := s.observers
	s.mu.Unlock()

	metrics.NotificationsActive.Set(float64(count))
	notifyAll(obs, Change{Kind: ChangeAdded, Notification: n})
	for _, d := range dropped {
		metrics.NotificationsRemoved.WithLabelValues(ReasonOverflow).Inc()
		notifyAll(obs, Change{Kind: ChangeRemoved, Notification: d, Reason: ReasonOverflow})
	}
}

// Remove deletes the notification with id. It reports false, without
// error, when id is unknown.
func (s *Store) Remove(id string) bool {
	return s.RemoveWithReason(id, ReasonDismissed)
}

// RemoveWithReason is Remove with an explicit reason for metrics and
// observers.
func (s *Store) RemoveWithReason(id, reason string) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	count := len(s.items)
	obs := s.observers
	s.mu.Unlock()

	metrics.NotificationsRemoved.WithLabelValues(reason).Inc()
	metrics.NotificationsActive.Set(float64(count))
	notifyAll(obs, Change{Kind: ChangeRemoved, Notification: removed, Reason: reason})
	return true
}

// RemoveRequest removes every notification for requestID and returns how
// many were removed.
func (s *Store) RemoveRequest(requestID, reason string) int {
	if requestID == "" {
		return 0
	}
	var ids []string
	s.mu.RLock()
	for _, n := range s.items {
		if n.RequestID == requestID {
			ids = append(ids, n.ID)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range ids {
		if s.RemoveWithReason(id, reason) {
			removed++
		}
	}
	return removed
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	n := len(s.items)
	s.items = nil
	obs := s.observers
	s.mu.Unlock()

	metrics.NotificationsRemoved.WithLabelValues(ReasonCleared).Add(float64(n))
	metrics.NotificationsActive.Set(0)
	notifyAll(obs, Change{Kind: ChangeCleared, Reason: ReasonCleared})
}

// List returns a copy of the notifications, newest first.
func (s *Store) List() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the notification with id.
func (s *Store) Get(id string) (models.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.items[idx], true
	}
	return models.Notification{}, false
}

// Len returns the number of notifications.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func notifyAll(obs []Observer, c Change) {
	for _, o := range obs {
		o.NotificationChanged(c)
	}
}
