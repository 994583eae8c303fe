// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package session

import "sync"

// Holder is the current session. Components that depend on the session
// subscribe to be told when it changes.
type Holder struct {
	mu        sync.RWMutex
	creds     Credentials
	listeners []func(Credentials)
}

// NewHolder returns a Holder with initial credentials.
func NewHolder(initial Credentials) *Holder {
	return &Holder{creds: initial}
}

// Get returns the current credentials.
func (h *Holder) Get() Credentials {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.creds
}

// Set replaces the credentials and notifies listeners when they changed.
func (h *Holder) Set(c Credentials) {
	h.mu.Lock()
	if c == h.creds {
		h.mu.Unlock()
		return
	}
	h.creds = c
	listeners := h.listeners
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
}

// OnChange registers fn for future changes.
func (h *Holder) OnChange(fn func(Credentials)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}
