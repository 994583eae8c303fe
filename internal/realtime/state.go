// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package realtime

import (
	"fmt"
	"time"
)

// State is the lifecycle state of the subscription.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateIdle, StateConnecting, StateOpen, StateClosed} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// validTransitions lists the edges of the lifecycle. Any state may move to
// Idle (deliberate disconnect or exhaustion).
var validTransitions = map[State][]State{
	StateIdle:       {StateConnecting},
	StateConnecting: {StateOpen, StateClosed},
	StateOpen:       {StateClosed},
	StateClosed:     {StateConnecting},
}

func canTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ExhaustedMessage is shown to staff once reconnecting has given up.
const ExhaustedMessage = "real-time updates unavailable, please reload"

// Status is a point-in-time view of the client.
type Status struct {
	State       State     `json:"state"`
	Attempt     int       `json:"attempt"`
	Exhausted   bool      `json:"exhausted"`
	Message     string    `json:"message,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	Endpoint    string    `json:"endpoint,omitempty"`
	ConnectedAt time.Time `json:"connectedAt,omitempty"`
}

// Degraded reports whether staff must be told live updates stopped.
func (s Status) Degraded() bool {
	return s.Exhausted
}
