// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package clock abstracts wall time and delayed callbacks so that reconnect
// backoff, dedup expiry and notification expiry can be driven by a manual
// clock in tests.
package clock

import "time"

// Timer is a pending callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer, false if it had already fired or been stopped.
	Stop() bool
}

// Scheduler creates delayed callbacks and reports the current time.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the Scheduler backed by package time.
type Real struct{}

// Now implements Scheduler.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc implements Scheduler. f runs on its own goroutine.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// OrReal returns s, or Real when s is nil.
func OrReal(s Scheduler) Scheduler {
	if s == nil {
		return Real{}
	}
	return s
}
