package library

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/kkrachenfels/spotify-data-art/internal/auth"
	"github.com/kkrachenfels/spotify-data-art/internal/enrich"
	"github.com/kkrachenfels/spotify-data-art/internal/paginate"
	"github.com/kkrachenfels/spotify-data-art/internal/spotify"
)

// Service aggregates a user's listening data. It owns no session state; the
// caller passes the session's token and stores back whatever EnsureFresh
// returns.
type Service struct {
	spotify   *spotify.Client
	refresher *auth.Refresher
	resolver  *enrich.Resolver
	log       *log.Logger
	now       func() time.Time
}

// NewService creates a Service.
func NewService(client *spotify.Client, refresher *auth.Refresher, resolver *enrich.Resolver, logger *log.Logger) *Service {
	return &Service{
		spotify:   client,
		refresher: refresher,
		resolver:  resolver,
		log:       logger.With("component", "library"),
		now:       time.Now,
	}
}

// EnsureFresh gates every data fetch. A nil token means no session; an
// expired one is refreshed exactly once before any data call goes out. The
// returned token is the one to fetch with (and to persist, when it changed).
func (s *Service) EnsureFresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil {
		return nil, auth.ErrNoSession
	}
	if !auth.Expired(tok, s.now()) {
		return tok, nil
	}

	fresh, err := s.refresher.Refresh(ctx, tok)
	if err != nil {
		return nil, err
	}
	s.log.Info("access token refreshed", "expires", fresh.Expiry)
	return fresh, nil
}

// SavedTracks exports the user's entire saved-track collection, oldest save
// first, with audio attributes attached where available.
func (s *Service) SavedTracks(ctx context.Context, accessToken string) []TrackRecord {
	saved := paginate.All(ctx, func(ctx context.Context, offset, limit int) ([]spotify.SavedTrack, int, bool) {
		page := s.spotify.SavedTracks(ctx, accessToken, offset, limit)
		return page.Items, page.Total, page.HasTotal
	}, paginate.Options{})

	// Fixed-width UTC timestamps, so string order is chronological.
	// Tracks missing added_at sort first.
	slices.SortStableFunc(saved, func(a, b spotify.SavedTrack) int {
		return strings.Compare(a.AddedAt, b.AddedAt)
	})

	records := make([]TrackRecord, 0, len(saved))
	for _, st := range saved {
		records = append(records, savedTrackRecord(st))
	}
	s.enrichTracks(ctx, records)
	return records
}

// SavedTracksWindow fetches just the first page of saved tracks, newest
// first as the API returns them. It is the cheap peek behind the library
// view; limit falls back to DefaultWindowSize.
func (s *Service) SavedTracksWindow(ctx context.Context, accessToken string, limit int) []TrackRecord {
	if limit <= 0 {
		limit = DefaultWindowSize
	}
	page := s.spotify.SavedTracks(ctx, accessToken, 0, limit)

	records := make([]TrackRecord, 0, len(page.Items))
	for _, st := range page.Items {
		records = append(records, savedTrackRecord(st))
	}
	s.enrichTracks(ctx, records)
	return records
}

// TopTracks returns one window of the user's top tracks starting at the
// clamped 1-based rank, which is returned alongside the records so the
// caller can reflect where the window actually landed.
func (s *Service) TopTracks(ctx context.Context, accessToken string, tr spotify.TimeRange, requestedStart int) ([]TrackRecord, int) {
	start := ClampWindowStart(requestedStart, DefaultWindowSize, MaxTopDepth)
	page := s.spotify.TopTracks(ctx, accessToken, tr, start-1, DefaultWindowSize)

	records := make([]TrackRecord, 0, len(page.Items))
	for i, t := range page.Items {
		rec := trackRecord(t)
		rec.Rank = start + i
		records = append(records, rec)
	}
	s.enrichTracks(ctx, records)
	return records, start
}

// TopArtists returns one window of the user's top artists, clamped the same
// way as TopTracks.
func (s *Service) TopArtists(ctx context.Context, accessToken string, tr spotify.TimeRange, requestedStart int) ([]ArtistRecord, int) {
	start := ClampWindowStart(requestedStart, DefaultWindowSize, MaxTopDepth)
	page := s.spotify.TopArtists(ctx, accessToken, tr, start-1, DefaultWindowSize)

	records := make([]ArtistRecord, 0, len(page.Items))
	for i, a := range page.Items {
		records = append(records, artistRecord(a, start+i))
	}
	return records, start
}

// TopTracksExport returns the user's top tracks down to MaxTopDepth in rank
// order, enriched. It backs the insights view and the export endpoint.
func (s *Service) TopTracksExport(ctx context.Context, accessToken string, tr spotify.TimeRange) []TrackRecord {
	tracks := paginate.All(ctx, func(ctx context.Context, offset, limit int) ([]spotify.Track, int, bool) {
		page := s.spotify.TopTracks(ctx, accessToken, tr, offset, limit)
		return page.Items, page.Total, page.HasTotal
	}, paginate.Options{MaxItems: MaxTopDepth})

	records := make([]TrackRecord, 0, len(tracks))
	for i, t := range tracks {
		rec := trackRecord(t)
		rec.Rank = i + 1
		records = append(records, rec)
	}
	s.enrichTracks(ctx, records)
	return records
}

func (s *Service) enrichTracks(ctx context.Context, records []TrackRecord) {
	if s.resolver == nil || len(records) == 0 {
		return
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	applyAttributes(records, s.resolver.Enrich(ctx, ids))
}
