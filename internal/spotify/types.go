package spotify

// Spotify Web API response types, per
// https://developer.spotify.com/documentation/web-api/reference/

// TimeRange selects the ranking period for top-item queries.
type TimeRange string

// Supported ranking periods.
const (
	TimeRangeShort  TimeRange = "short_term"  // ~1 month
	TimeRangeMedium TimeRange = "medium_term" // ~6 months
	TimeRangeLong   TimeRange = "long_term"   // ~1 year
)

// ParseTimeRange maps a query-string value to a TimeRange, defaulting to
// long_term for anything unrecognized.
func ParseTimeRange(s string) TimeRange {
	switch TimeRange(s) {
	case TimeRangeShort, TimeRangeMedium, TimeRangeLong:
		return TimeRange(s)
	default:
		return TimeRangeLong
	}
}

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// ExternalURLs holds known external links for an object.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// Artist represents a Spotify artist.
type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Genres       []string     `json:"genres"`
	Images       []Image      `json:"images"`
	Popularity   int          `json:"popularity"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// Album represents a Spotify album.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track represents a Spotify track.
type Track struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Artists      []Artist     `json:"artists"`
	Album        Album        `json:"album"`
	Popularity   int          `json:"popularity"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// SavedTrack represents a track in the user's library together with the
// moment it was saved. AddedAt is kept as the raw ISO-8601 string: the API
// always emits fixed-width UTC timestamps, so plain string comparison sorts
// correctly.
type SavedTrack struct {
	AddedAt string `json:"added_at"`
	Track   Track  `json:"track"`
}

// Page is one page of a paginated collection. Total is the collection's
// declared cardinality at fetch time; it is advisory (the collection can
// change between pages) and may be absent. A failed fetch yields an empty
// Items with Err set — the page is degraded, never fatal.
type Page[T any] struct {
	Items    []T
	Total    int
	HasTotal bool
	Err      error
}

// pageEnvelope is the wire shape of Spotify's paging object.
type pageEnvelope[T any] struct {
	Items []T    `json:"items"`
	Total *int   `json:"total"`
	Next  string `json:"next"`
}
