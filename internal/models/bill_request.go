// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package models holds the data shapes shared by billcall's components:
// backend bill requests, inbound stream events, and staff notifications.
package models

import (
	"sort"
	"time"
)

// BillRequestStatus is the lifecycle state of a bill request on the backend.
type BillRequestStatus string

const (
	StatusPending   BillRequestStatus = "pending"
	StatusAttended  BillRequestStatus = "attended"
	StatusCancelled BillRequestStatus = "cancelled"
)

// BillRequest is the backend's authoritative record of a table asking for
// the check.
type BillRequest struct {
	ID           string            `json:"id"`
	TableID      string            `json:"tableId"`
	TableNumber  int               `json:"tableNumber"`
	RestaurantID string            `json:"restaurantId"`
	Status       BillRequestStatus `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    *time.Time        `json:"updatedAt,omitempty"`
}

// IsPending reports whether staff still need to attend the request.
func (b BillRequest) IsPending() bool {
	return b.Status == StatusPending
}

// BackendEnvelope is the backend's standard response wrapper.
type BackendEnvelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// CreateBillRequest is the body of the public "request the bill" call a
// table's QR page makes.
type CreateBillRequest struct {
	RestaurantID string `json:"restaurantId" validate:"required"`
	TableID      string `json:"tableId" validate:"required"`
	TableNumber  int    `json:"tableNumber" validate:"gt=0"`
	Hash         string `json:"hash" validate:"required"`
}

// UpdateStatusRequest is the body of the status update call.
type UpdateStatusRequest struct {
	Status BillRequestStatus `json:"status"`
}

// SortByCreatedAt orders requests oldest first, the order staff should
// attend them in. Ties keep table order.
func SortByCreatedAt(reqs []BillRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].TableNumber < reqs[j].TableNumber
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}

// AttendedResponse is the body returned by the status update call.
type AttendedResponse struct {
	Request *BillRequest `json:"request"`
}
