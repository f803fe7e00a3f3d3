package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	zspotify "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/kkrachenfels/spotify-data-art/internal/auth"
	"github.com/kkrachenfels/spotify-data-art/internal/insights"
	"github.com/kkrachenfels/spotify-data-art/internal/library"
	"github.com/kkrachenfels/spotify-data-art/internal/snapshot"
	"github.com/kkrachenfels/spotify-data-art/internal/spotify"
)

// Handlers contains the HTTP handlers for the JSON API.
type Handlers struct {
	auth        *spotifyauth.Authenticator
	sessions    *SessionStore
	library     *library.Service
	snapshotDir string
	log         *log.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authenticator *spotifyauth.Authenticator, sessions *SessionStore, svc *library.Service, snapshotDir string, logger *log.Logger) *Handlers {
	return &Handlers{
		auth:        authenticator,
		sessions:    sessions,
		library:     svc,
		snapshotDir: snapshotDir,
		log:         logger.With("component", "web"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// authorize resolves the request's session and guarantees a usable access
// token, refreshing it when expired. A failed gate ends the request with a
// 401; data handlers only ever run with a fresh token.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request) (*Session, string, bool) {
	session := h.sessions.GetFromRequest(r)
	var tok *oauth2.Token
	if session != nil {
		tok = session.Token
	}

	fresh, err := h.library.EnsureFresh(r.Context(), tok)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshFailed) {
			h.log.Warn("token refresh failed", "session", sessionID(session), "err", err)
			writeError(w, http.StatusUnauthorized, "token_refresh_failed")
		} else {
			writeError(w, http.StatusUnauthorized, "not_authenticated")
		}
		return nil, "", false
	}

	if fresh != session.Token {
		h.sessions.UpdateToken(session.ID, fresh)
		session.Token = fresh
	}
	return session, fresh.AccessToken, true
}

func sessionID(s *Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}

// Me reports the authentication state for the frontend (GET /me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user_id":       session.UserID,
		"user_name":     session.UserName,
	})
}

// Login initiates the OAuth flow (GET /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateOAuthState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow (GET /callback). On success it creates
// the session and kicks off a background export of the user's library.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}
	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Spotify auth error: "+errMsg, http.StatusBadRequest)
		return
	}

	token, err := h.auth.Token(r.Context(), state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		return
	}

	client := zspotify.New(h.auth.Client(r.Context(), token))
	user, err := client.CurrentUser(r.Context())
	if err != nil {
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}

	session := h.sessions.Create(token, string(user.ID), user.DisplayName)
	h.sessions.SetCookie(w, session)
	h.log.Info("user logged in", "user", session.UserID)

	// Warm the snapshot while the user lands on the page.
	go h.exportSnapshot(session.UserID, token.AccessToken)

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout clears the session and its snapshot files (GET /logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session != nil {
		h.sessions.Delete(session.ID)
		if err := snapshot.Remove(h.snapshotPaths(session.UserID)...); err != nil {
			h.log.Warn("removing snapshot files", "user", session.UserID, "err", err)
		}
	}

	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Liked returns the first page of the user's saved tracks (GET /liked).
func (h *Handlers) Liked(w http.ResponseWriter, r *http.Request) {
	_, accessToken, ok := h.authorize(w, r)
	if !ok {
		return
	}

	tracks := h.library.SavedTracksWindow(r.Context(), accessToken, library.DefaultWindowSize)
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// TopTracks returns one rank window of the user's top tracks
// (GET /top_tracks?offset=<rank>&time_range=<range>).
func (h *Handlers) TopTracks(w http.ResponseWriter, r *http.Request) {
	_, accessToken, ok := h.authorize(w, r)
	if !ok {
		return
	}

	tr := spotify.ParseTimeRange(r.URL.Query().Get("time_range"))
	requested := queryInt(r, "offset", 1)

	tracks, start := h.library.TopTracks(r.Context(), accessToken, tr, requested)
	writeJSON(w, http.StatusOK, map[string]any{
		"tracks":     tracks,
		"start":      start,
		"time_range": tr,
	})
}

// TopArtists returns one rank window of the user's top artists
// (GET /top_artists?offset=<rank>&time_range=<range>).
func (h *Handlers) TopArtists(w http.ResponseWriter, r *http.Request) {
	_, accessToken, ok := h.authorize(w, r)
	if !ok {
		return
	}

	tr := spotify.ParseTimeRange(r.URL.Query().Get("time_range"))
	requested := queryInt(r, "offset", 1)

	artists, start := h.library.TopArtists(r.Context(), accessToken, tr, requested)
	writeJSON(w, http.StatusOK, map[string]any{
		"artists":    artists,
		"start":      start,
		"time_range": tr,
	})
}

// Export writes the full saved-track snapshot to disk and reports its
// shape (GET /export).
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	session, accessToken, ok := h.authorize(w, r)
	if !ok {
		return
	}

	records := h.library.SavedTracks(r.Context(), accessToken)
	csvPath, rangePath := h.snapshotPathPair(session.UserID)

	if err := snapshot.WriteTracksCSV(csvPath, records); err != nil {
		h.log.Error("writing track snapshot", "user", session.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}
	if err := snapshot.WriteRangeMetadata(rangePath, records); err != nil {
		h.log.Error("writing range metadata", "user", session.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	resp := map[string]any{
		"count":  len(records),
		"tracks": records,
	}
	if len(records) > 0 {
		resp["earliest"] = records[0].AddedAt
		resp["latest"] = records[len(records)-1].AddedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// Insights groups the user's top tracks by audio attributes (GET /insights).
func (h *Handlers) Insights(w http.ResponseWriter, r *http.Request) {
	_, accessToken, ok := h.authorize(w, r)
	if !ok {
		return
	}

	tr := spotify.ParseTimeRange(r.URL.Query().Get("time_range"))
	tracks := h.library.TopTracksExport(r.Context(), accessToken, tr)
	groups, ungrouped := insights.GroupTracks(tracks, insights.DefaultConfig())

	writeJSON(w, http.StatusOK, map[string]any{
		"groups":          groups,
		"ungrouped_count": len(ungrouped),
		"time_range":      tr,
	})
}

// exportSnapshot fetches the full library and writes the snapshot files.
// It runs detached from any request.
func (h *Handlers) exportSnapshot(userID, accessToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	records := h.library.SavedTracks(ctx, accessToken)
	csvPath, rangePath := h.snapshotPathPair(userID)

	if err := snapshot.WriteTracksCSV(csvPath, records); err != nil {
		h.log.Error("background snapshot failed", "user", userID, "err", err)
		return
	}
	if err := snapshot.WriteRangeMetadata(rangePath, records); err != nil {
		h.log.Error("background range metadata failed", "user", userID, "err", err)
		return
	}
	h.log.Info("library snapshot written", "user", userID, "tracks", len(records))
}

func (h *Handlers) snapshotPathPair(userID string) (csvPath, rangePath string) {
	return filepath.Join(h.snapshotDir, userID+"_liked.csv"),
		filepath.Join(h.snapshotDir, userID+"_range.json")
}

func (h *Handlers) snapshotPaths(userID string) []string {
	csvPath, rangePath := h.snapshotPathPair(userID)
	return []string{csvPath, rangePath}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// generateOAuthState creates a random state string for OAuth.
func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
