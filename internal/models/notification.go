// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is a staff-facing alert for one accepted bill request.
type Notification struct {
	ID          string    `json:"id"`
	TableNumber int       `json:"tableNumber"`
	RequestID   string    `json:"requestId,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// DefaultMessage is shown when the event carries no message of its own.
func DefaultMessage(table int) string {
	return fmt.Sprintf("Table %d requested the bill", table)
}

// NewNotification builds a notification with a random UUID. An empty
// message falls back to DefaultMessage. ExpiresAt is left for the
// presentation timer to fill in.
func NewNotification(table int, requestID, message string, now time.Time) Notification {
	if message == "" {
		message = DefaultMessage(table)
	}
	return Notification{
		ID:          uuid.NewString(),
		TableNumber: table,
		RequestID:   requestID,
		Message:     message,
		CreatedAt:   now,
	}
}
