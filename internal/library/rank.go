package library

const (
	// MaxTopDepth is how deep the ranking service lets us look into a
	// user's top tracks and artists.
	MaxTopDepth = 100

	// DefaultWindowSize is the number of ranks shown per page.
	DefaultWindowSize = 10
)

// ClampWindowStart confines a requested 1-based rank to the range where a
// full window of windowSize ranks still fits inside maxDepth. Requests past
// the end land on the last full window; zero and negative requests land on
// rank 1. A windowSize larger than maxDepth degenerates to rank 1.
func ClampWindowStart(requested, windowSize, maxDepth int) int {
	lastStart := max(1, maxDepth-windowSize+1)
	return max(1, min(requested, lastStart))
}
