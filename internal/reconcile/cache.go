// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package reconcile

import (
	"sync"
	"time"

	"github.com/tomtom215/billcall/internal/models"
)

// PendingCache holds the last authoritative pending list, oldest first.
type PendingCache struct {
	mu      sync.RWMutex
	items   []models.BillRequest
	updated time.Time
}

// NewPendingCache returns an empty cache.
func NewPendingCache() *PendingCache {
	return &PendingCache{}
}

// Replace swaps in list, keeping only pending entries.
func (c *PendingCache) Replace(list []models.BillRequest, at time.Time) {
	items := make([]models.BillRequest, 0, len(list))
	for _, r := range list {
		if r.IsPending() {
			items = append(items, r)
		}
	}
	models.SortByCreatedAt(items)

	c.mu.Lock()
	c.items = items
	c.updated = at
	c.mu.Unlock()
}

// Snapshot returns a copy of the list.
func (c *PendingCache) Snapshot() []models.BillRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.BillRequest, len(c.items))
	copy(out, c.items)
	return out
}

// Count returns the number of pending requests.
func (c *PendingCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// LastUpdated is the zero time until the first successful refresh.
func (c *PendingCache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}

// Drop removes the request with id, if cached.
func (c *PendingCache) Drop(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.items {
		if r.ID == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}
