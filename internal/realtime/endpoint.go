// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package realtime

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// StreamPath is the backend path prefix of the bill-request stream.
const StreamPath = "/api/v1/requests/ws/"

// BuildEndpoint derives the stream URL for restaurantID from the backend
// base URL:
//
//	https://api.example.com -> wss://api.example.com/api/v1/requests/ws/{id}?token={token}
//	http://localhost:8080   -> ws://localhost:8080/api/v1/requests/ws/{id}?token={token}
//
// ws and wss base URLs keep their scheme. Any path on the base URL is
// ignored.
func BuildEndpoint(baseURL, restaurantID, token string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return "", errors.New("base url has no host")
	}

	var scheme string
	switch strings.ToLower(parsed.Scheme) {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
		scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", parsed.Scheme)
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     parsed.Host,
		Path:     StreamPath + restaurantID,
		RawPath:  StreamPath + url.PathEscape(restaurantID),
		RawQuery: url.Values{"token": []string{token}}.Encode(),
	}
	return u.String(), nil
}

// redactEndpoint strips the token for logging.
func redactEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "<invalid>"
	}
	u.RawQuery = ""
	return u.String()
}
