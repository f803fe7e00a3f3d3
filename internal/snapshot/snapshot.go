// Package snapshot writes the saved-track export to disk: a CSV of the
// full collection and a small JSON file with its date range.
package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kkrachenfels/spotify-data-art/internal/library"
)

// csvHeader is the column layout of the track export.
var csvHeader = []string{"name", "artists", "album", "album_image", "external_url", "added_at"}

// RangeMetadata describes the span of save dates in an export.
type RangeMetadata struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// WriteTracksCSV writes the given records to path, replacing any existing
// file.
func WriteTracksCSV(path string, records []library.TrackRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	for _, r := range records {
		row := []string{r.Name, r.Artists, r.Album, r.AlbumImage, r.ExternalURL, r.AddedAt}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing snapshot row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	return f.Close()
}

// WriteRangeMetadata writes the date range of the given records to path.
// The records are expected in ascending added_at order; an empty export
// yields an empty range.
func WriteRangeMetadata(path string, records []library.TrackRecord) error {
	var meta RangeMetadata
	if len(records) > 0 {
		meta.Earliest = records[0].AddedAt
		meta.Latest = records[len(records)-1].AddedAt
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding range metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing range metadata: %w", err)
	}
	return nil
}

// Remove deletes the given snapshot files, ignoring ones that do not exist.
func Remove(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
