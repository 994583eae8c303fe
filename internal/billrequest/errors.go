// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package billrequest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/goccy/go-json"
)

var (
	// ErrCircuitOpen means the backend breaker is rejecting calls.
	ErrCircuitOpen = errors.New("backend circuit open")

	// ErrUnsuccessful means a 2xx response carried success=false.
	ErrUnsuccessful = errors.New("backend reported failure")
)

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

// BackendMessage returns the "message" field of a JSON error body, or "".
func (e *HTTPError) BackendMessage() string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Body), &env); err != nil {
		return ""
	}
	return env.Message
}

// Client reports whether the status is a 4xx the caller caused.
func (e *HTTPError) Client() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// IsNetworkError reports whether err means the backend could not be
// reached at all.
func IsNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
