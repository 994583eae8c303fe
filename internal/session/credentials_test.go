// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "waiter-1"}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret-not-known-here"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func TestCredentialsValidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		creds   Credentials
		wantErr error
	}{
		{"missing restaurant", Credentials{Token: "t"}, ErrMissingCredentials},
		{"missing token", Credentials{RestaurantID: "r"}, ErrMissingCredentials},
		{"opaque token", Credentials{RestaurantID: "r", Token: "opaque-token"}, nil},
		{"jwt not expired", Credentials{RestaurantID: "r", Token: signedToken(t, now.Add(time.Hour))}, nil},
		{"jwt without exp", Credentials{RestaurantID: "r", Token: signedToken(t, time.Time{})}, nil},
		{"jwt expired", Credentials{RestaurantID: "r", Token: signedToken(t, now.Add(-time.Minute))}, ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.creds.Validate(now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCredentialsExpiresAt(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)
	got, ok := Credentials{Token: signedToken(t, exp)}.ExpiresAt()
	if !ok || !got.Equal(exp) {
		t.Errorf("ExpiresAt() = %v, %v; want %v", got, ok, exp)
	}
	if _, ok := (Credentials{Token: "not.a.jwt"}).ExpiresAt(); ok {
		t.Error("garbage token reported an expiry")
	}
}

func TestCredentialsRedacted(t *testing.T) {
	t.Parallel()

	if got := (Credentials{RestaurantID: "r1", Token: "abcdefghijkl"}).Redacted(); got != "r1/abcd****" {
		t.Errorf("Redacted() = %q", got)
	}
	if got := (Credentials{RestaurantID: "r1", Token: "short"}).Redacted(); got != "r1/****" {
		t.Errorf("Redacted() = %q", got)
	}
}

func TestHolderNotifiesOnChange(t *testing.T) {
	t.Parallel()

	h := NewHolder(Credentials{RestaurantID: "r1", Token: "a"})
	var calls []Credentials
	h.OnChange(func(c Credentials) { calls = append(calls, c) })

	h.Set(Credentials{RestaurantID: "r1", Token: "a"})
	h.Set(Credentials{RestaurantID: "r1", Token: "b"})

	if len(calls) != 1 || calls[0].Token != "b" {
		t.Errorf("listener calls = %+v, want one call with token b", calls)
	}
	if h.Get().Token != "b" {
		t.Errorf("Get().Token = %q", h.Get().Token)
	}
}
