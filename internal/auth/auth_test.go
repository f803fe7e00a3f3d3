package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tok  *oauth2.Token
		want bool
	}{
		{
			name: "nil token",
			tok:  nil,
			want: true,
		},
		{
			name: "missing expiry",
			tok:  &oauth2.Token{AccessToken: "abc"},
			want: true,
		},
		{
			name: "expiry in the past",
			tok:  &oauth2.Token{AccessToken: "abc", Expiry: now.Add(-time.Minute)},
			want: true,
		},
		{
			name: "expiry in the future",
			tok:  &oauth2.Token{AccessToken: "abc", Expiry: now.Add(time.Hour)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expired(tt.tok, now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		response        map[string]any
		wantErr         bool
		wantAccess      string
		wantRefresh     string
		wantExpiryAbout time.Duration
	}{
		{
			name:   "success with rotated refresh token",
			status: http.StatusOK,
			response: map[string]any{
				"access_token":  "new-access",
				"refresh_token": "new-refresh",
				"expires_in":    1800,
			},
			wantAccess:      "new-access",
			wantRefresh:     "new-refresh",
			wantExpiryAbout: 1800 * time.Second,
		},
		{
			name:   "success keeps old refresh token when issuer omits it",
			status: http.StatusOK,
			response: map[string]any{
				"access_token": "new-access",
				"expires_in":   3600,
			},
			wantAccess:      "new-access",
			wantRefresh:     "old-refresh",
			wantExpiryAbout: 3600 * time.Second,
		},
		{
			name:   "missing expires_in defaults to an hour",
			status: http.StatusOK,
			response: map[string]any{
				"access_token": "new-access",
			},
			wantAccess:      "new-access",
			wantRefresh:     "old-refresh",
			wantExpiryAbout: 3600 * time.Second,
		},
		{
			name:     "issuer rejects the grant",
			status:   http.StatusBadRequest,
			response: map[string]any{"error": "invalid_grant"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotGrant, gotRefresh string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if user, pass, ok := r.BasicAuth(); !ok || user != "client-id" || pass != "client-secret" {
					t.Errorf("missing or wrong basic auth: %s:%s", user, pass)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatalf("parsing form: %v", err)
				}
				gotGrant = r.PostForm.Get("grant_type")
				gotRefresh = r.PostForm.Get("refresh_token")

				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			refresher := NewRefresher("client-id", "client-secret", WithTokenURL(server.URL))
			old := &oauth2.Token{
				AccessToken:  "old-access",
				RefreshToken: "old-refresh",
				Expiry:       time.Now().Add(-time.Minute),
			}

			before := time.Now()
			fresh, err := refresher.Refresh(context.Background(), old)

			if gotGrant != "refresh_token" {
				t.Errorf("grant_type = %q, want refresh_token", gotGrant)
			}
			if gotRefresh != "old-refresh" {
				t.Errorf("refresh_token = %q, want old-refresh", gotRefresh)
			}

			if tt.wantErr {
				if !errors.Is(err, ErrRefreshFailed) {
					t.Fatalf("Refresh() error = %v, want ErrRefreshFailed", err)
				}
				// The input token must be untouched on failure.
				if old.AccessToken != "old-access" || old.RefreshToken != "old-refresh" {
					t.Error("input token mutated on failed refresh")
				}
				return
			}

			if err != nil {
				t.Fatalf("Refresh() error = %v", err)
			}
			if fresh.AccessToken != tt.wantAccess {
				t.Errorf("AccessToken = %q, want %q", fresh.AccessToken, tt.wantAccess)
			}
			if fresh.RefreshToken != tt.wantRefresh {
				t.Errorf("RefreshToken = %q, want %q", fresh.RefreshToken, tt.wantRefresh)
			}

			wantExpiry := before.Add(tt.wantExpiryAbout)
			if fresh.Expiry.Before(wantExpiry.Add(-5*time.Second)) || fresh.Expiry.After(wantExpiry.Add(time.Minute)) {
				t.Errorf("Expiry = %v, want about %v from now", fresh.Expiry, tt.wantExpiryAbout)
			}
		})
	}
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	refresher := NewRefresher("id", "secret")

	if _, err := refresher.Refresh(context.Background(), nil); !errors.Is(err, ErrRefreshFailed) {
		t.Errorf("Refresh(nil) error = %v, want ErrRefreshFailed", err)
	}

	tok := &oauth2.Token{AccessToken: "abc"}
	if _, err := refresher.Refresh(context.Background(), tok); !errors.Is(err, ErrRefreshFailed) {
		t.Errorf("Refresh(no refresh token) error = %v, want ErrRefreshFailed", err)
	}
}
