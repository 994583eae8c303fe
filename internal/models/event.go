// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package models

import "time"

// BillRequestEvent is one parsed frame from the bill-request stream. It is
// never stored; the router consumes it immediately.
type BillRequestEvent struct {
	EventType   string            `validate:"omitempty,max=64"`
	TableNumber int               `validate:"gt=0"`
	RequestID   string            `validate:"omitempty,max=128"`
	Status      BillRequestStatus `validate:"required"`
	Message     string            `validate:"omitempty,max=2048"`
	ReceivedAt  time.Time
}

// HasRequestID reports whether the server attached a request identity.
func (e BillRequestEvent) HasRequestID() bool {
	return e.RequestID != ""
}
