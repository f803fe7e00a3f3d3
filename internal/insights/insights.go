// Package insights groups a user's top tracks by their audio attributes
// using k-means clustering over tempo and energy.
package insights

import (
	"fmt"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/kkrachenfels/spotify-data-art/internal/library"
)

// maxTempo normalizes tempo into [0,1] so it weighs the same as energy in
// the distance metric.
const maxTempo = 250.0

// Config holds clustering parameters.
type Config struct {
	NumGroups    int // number of clusters (default 3)
	MinGroupSize int // clusters smaller than this become ungrouped tracks
}

// DefaultConfig returns the recommended defaults.
func DefaultConfig() Config {
	return Config{
		NumGroups:    3,
		MinGroupSize: 3,
	}
}

// Group is a cluster of tracks with a similar feel, named after its
// centroid.
type Group struct {
	Name   string                `json:"name"`
	Tempo  float64               `json:"tempo"`
	Energy float64               `json:"energy"`
	Tracks []library.TrackRecord `json:"tracks"`
}

// trackObservation adapts a TrackRecord to the clusters.Observation
// interface.
type trackObservation struct {
	track  *library.TrackRecord
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// GroupTracks partitions the given tracks into groups of similar tempo and
// energy. Tracks missing either attribute are returned ungrouped; so are
// members of clusters below MinGroupSize. With fewer usable tracks than
// groups, everything comes back ungrouped.
func GroupTracks(tracks []library.TrackRecord, cfg Config) ([]Group, []library.TrackRecord) {
	if len(tracks) == 0 {
		return nil, nil
	}
	if cfg.NumGroups <= 0 {
		cfg.NumGroups = DefaultConfig().NumGroups
	}

	var usable []*library.TrackRecord
	var ungrouped []library.TrackRecord
	for i := range tracks {
		t := &tracks[i]
		if t.Tempo != nil && t.Energy != nil {
			usable = append(usable, t)
		} else {
			ungrouped = append(ungrouped, *t)
		}
	}

	if len(usable) < cfg.NumGroups {
		for _, t := range usable {
			ungrouped = append(ungrouped, *t)
		}
		return nil, ungrouped
	}

	var obs clusters.Observations
	for _, t := range usable {
		obs = append(obs, trackObservation{
			track: t,
			coords: clusters.Coordinates{
				*t.Tempo / maxTempo,
				*t.Energy,
			},
		})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, cfg.NumGroups)
	if err != nil {
		for _, t := range usable {
			ungrouped = append(ungrouped, *t)
		}
		return nil, ungrouped
	}

	var groups []Group
	for _, cluster := range result {
		var members []library.TrackRecord
		for _, o := range cluster.Observations {
			if to, ok := o.(trackObservation); ok {
				members = append(members, *to.track)
			}
		}
		if len(members) < cfg.MinGroupSize {
			ungrouped = append(ungrouped, members...)
			continue
		}

		slices.SortFunc(members, func(a, b library.TrackRecord) int {
			return a.Rank - b.Rank
		})

		tempo := cluster.Center[0] * maxTempo
		energy := cluster.Center[1]
		groups = append(groups, Group{
			Name:   groupName(tempo, energy),
			Tempo:  tempo,
			Energy: energy,
			Tracks: members,
		})
	}

	// Fastest group first.
	slices.SortFunc(groups, func(a, b Group) int {
		switch {
		case a.Tempo > b.Tempo:
			return -1
		case a.Tempo < b.Tempo:
			return 1
		default:
			return 0
		}
	})

	return groups, ungrouped
}

// groupName builds a display name from the centroid's tempo band and energy
// level, e.g. "Driving & Energetic".
func groupName(tempo, energy float64) string {
	var pace string
	switch {
	case tempo < 90:
		pace = "Slow"
	case tempo < 130:
		pace = "Steady"
	default:
		pace = "Driving"
	}

	feel := "Mellow"
	if energy > 0.5 {
		feel = "Energetic"
	}

	return fmt.Sprintf("%s & %s", pace, feel)
}
