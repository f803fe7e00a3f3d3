// Package library aggregates a user's Spotify listening data into flat
// presentation records: the full saved-track collection, rank windows over
// the top tracks and artists, and capped exports. All fetching goes through
// a freshness-gated token; data failures degrade, auth failures surface.
package library

import (
	"strings"

	"github.com/kkrachenfels/spotify-data-art/internal/enrich"
	"github.com/kkrachenfels/spotify-data-art/internal/spotify"
)

// TrackRecord is the flattened presentation form of a track. Artists are
// joined into a single display string; Rank is only set for top-list
// queries, AddedAt only for library queries. Tempo and Energy are filled by
// enrichment when available.
type TrackRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     string   `json:"artists"`
	Album       string   `json:"album"`
	AlbumImage  string   `json:"album_image,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
	AddedAt     string   `json:"added_at,omitempty"`
	Popularity  int      `json:"popularity"`
	Rank        int      `json:"rank,omitempty"`
	Tempo       *float64 `json:"tempo,omitempty"`
	Energy      *float64 `json:"energy,omitempty"`
}

// ArtistRecord is the flattened presentation form of a top artist.
type ArtistRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Genres      []string `json:"genres"`
	Image       string   `json:"image,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
	Popularity  int      `json:"popularity"`
	Rank        int      `json:"rank"`
}

func trackRecord(t spotify.Track) TrackRecord {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	rec := TrackRecord{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     strings.Join(names, ", "),
		Album:       t.Album.Name,
		ExternalURL: t.ExternalURLs.Spotify,
		Popularity:  t.Popularity,
	}
	if len(t.Album.Images) > 0 {
		rec.AlbumImage = t.Album.Images[0].URL
	}
	return rec
}

func savedTrackRecord(st spotify.SavedTrack) TrackRecord {
	rec := trackRecord(st.Track)
	rec.AddedAt = st.AddedAt
	return rec
}

func artistRecord(a spotify.Artist, rank int) ArtistRecord {
	rec := ArtistRecord{
		ID:          a.ID,
		Name:        a.Name,
		Genres:      a.Genres,
		ExternalURL: a.ExternalURLs.Spotify,
		Popularity:  a.Popularity,
		Rank:        rank,
	}
	if len(a.Images) > 0 {
		rec.Image = a.Images[0].URL
	}
	return rec
}

// applyAttributes copies enrichment results onto the records in place.
func applyAttributes(records []TrackRecord, attrs map[string]enrich.Attributes) {
	for i := range records {
		if a, ok := attrs[records[i].ID]; ok {
			records[i].Tempo = a.Tempo
			records[i].Energy = a.Energy
		}
	}
}
