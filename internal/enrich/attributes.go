// Package enrich augments Spotify tracks with audio attributes (tempo,
// energy) sourced from a secondary service that uses its own ID space.
// Enrichment is best-effort presentation sugar: every failure shrinks the
// result, none of them fails a request.
package enrich

// Attributes holds the audio attributes for one track. Fields are nil when
// the secondary service did not report them.
type Attributes struct {
	Tempo  *float64 `json:"tempo,omitempty"`
	Energy *float64 `json:"energy,omitempty"`
}
