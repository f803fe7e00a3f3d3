// Package auth provides the token expiry gate and refresh-token exchange
// for Spotify sessions.
package auth

import (
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// Sentinel errors.
var (
	// ErrNoSession is returned when a request carries no token at all.
	ErrNoSession = errors.New("no authenticated session")

	// ErrRefreshFailed is returned when the token issuer rejects a refresh.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Expired reports whether the token must be refreshed before use.
// A nil token, a missing expiry, or an expiry in the past all count as
// expired: absence of expiry information is never treated as "still valid".
func Expired(tok *oauth2.Token, now time.Time) bool {
	if tok == nil {
		return true
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return now.After(tok.Expiry)
}
