// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package realtime

import "time"

// Defaults for the reconnect policy.
const (
	DefaultMaxAttempts  = 10
	DefaultInitialDelay = 1000 * time.Millisecond
	DefaultMaxDelay     = 30000 * time.Millisecond
)

// CloseReason classifies why a connection ended.
type CloseReason int

const (
	// ReasonDialFailed means the connection never opened.
	ReasonDialFailed CloseReason = iota
	// ReasonServerClosed means the server sent a close frame.
	ReasonServerClosed
	// ReasonNetworkError means the read loop failed without a close frame.
	ReasonNetworkError
	// ReasonDeliberate means Disconnect was called.
	ReasonDeliberate
	// ReasonShutdown means the owning context was canceled.
	ReasonShutdown
)

func (r CloseReason) String() string {
	switch r {
	case ReasonDialFailed:
		return "dial_failed"
	case ReasonServerClosed:
		return "server_closed"
	case ReasonNetworkError:
		return "network_error"
	case ReasonDeliberate:
		return "deliberate"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Action is what the client does after a closure.
type Action int

const (
	// ActionStop ends the cycle quietly.
	ActionStop Action = iota
	// ActionReconnect schedules another attempt.
	ActionReconnect
	// ActionGiveUp ends the cycle and reports exhaustion.
	ActionGiveUp
)

// Decision is the outcome of ShouldReconnect.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// Policy bounds the reconnect cycle.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultPolicy allows 10 attempts with delays 1s, 2s, 4s ... capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	return p
}

// Delay returns min(InitialDelay * 2^attempt, MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 0 {
		attempt = 0
	}
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay || d <= 0 {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Decide maps a closure onto the next step. It depends only on its
// arguments.
func (p Policy) Decide(reason CloseReason, attempt int, deliberate bool) Decision {
	p = p.withDefaults()
	if deliberate || reason == ReasonDeliberate || reason == ReasonShutdown {
		return Decision{Action: ActionStop}
	}
	if attempt >= p.MaxAttempts {
		return Decision{Action: ActionGiveUp}
	}
	return Decision{Action: ActionReconnect, Delay: p.Delay(attempt)}
}

// BackoffDelay is DefaultPolicy().Delay.
func BackoffDelay(attempt int) time.Duration {
	return DefaultPolicy().Delay(attempt)
}

// ShouldReconnect is DefaultPolicy().Decide.
func ShouldReconnect(reason CloseReason, attempt int, deliberate bool) Decision {
	return DefaultPolicy().Decide(reason, attempt, deliberate)
}
