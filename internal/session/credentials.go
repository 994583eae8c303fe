// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package session holds the staff member's backend credentials.
//
// Tokens are issued and verified by the restaurant backend. billcall only
// reads the exp claim, without verifying the signature, so it can stop
// using a token the server would reject anyway.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredentials means the restaurant id or token is empty.
	ErrMissingCredentials = errors.New("missing restaurant id or token")

	// ErrTokenExpired means the token's exp claim is in the past.
	ErrTokenExpired = errors.New("session token expired")
)

// Credentials scope one bill-request subscription.
type Credentials struct {
	RestaurantID string
	Token        string
}

// Complete reports whether both fields are set.
func (c Credentials) Complete() bool {
	return c.RestaurantID != "" && c.Token != ""
}

// ExpiresAt returns the token's exp claim. ok is false for opaque tokens
// and JWTs without exp.
func (c Credentials) ExpiresAt() (exp time.Time, ok bool) {
	if c.Token == "" {
		return time.Time{}, false
	}
	token, _, err := jwt.NewParser().ParseUnverified(c.Token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	nd, err := token.Claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}

// Validate returns ErrMissingCredentials or ErrTokenExpired, or nil when the
// credentials are usable at now.
func (c Credentials) Validate(now time.Time) error {
	if !c.Complete() {
		return ErrMissingCredentials
	}
	if exp, ok := c.ExpiresAt(); ok && !now.Before(exp) {
		return ErrTokenExpired
	}
	return nil
}

// Redacted returns the credentials with the token masked for logs.
func (c Credentials) Redacted() string {
	if len(c.Token) <= 8 {
		return c.RestaurantID + "/****"
	}
	return c.RestaurantID + "/" + c.Token[:4] + "****"
}
