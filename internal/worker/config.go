// Package worker provides background station data fetching.
package worker

import (
	"time"

	"github.com/seoulmetro/stationinfo/internal/subway"
)

// FetchTarget is one line whose station directory (and distance table, when
// the line has one) the worker fetches.
type FetchTarget struct {
	// Line is the directory line identifier, e.g. "07호선".
	Line string

	// DistanceLine is the distance table identifier, e.g. "7". Empty when the
	// distance table does not cover the line.
	DistanceLine string

	// Window is the number of rows requested, starting at row 1.
	Window int

	// Priority determines fetch order (lower = higher priority).
	Priority int
}

// FetchConfig holds configuration for the fetch job.
type FetchConfig struct {
	// Targets are the lines to fetch.
	// If empty, uses DefaultFetchTargets.
	Targets []FetchTarget

	// Concurrency is the number of targets fetched at once.
	// Default: 1. The upstream daily quota is shared by every caller.
	Concurrency int

	// Timeout bounds the fetches of one target.
	// Default: 30 seconds
	Timeout time.Duration

	// FetchStations enables station directory fetches.
	FetchStations bool

	// FetchDistances enables distance table fetches.
	FetchDistances bool
}

// DefaultFetchConfig returns the default fetch configuration.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Targets:        DefaultFetchTargets(),
		Concurrency:    1,
		Timeout:        30 * time.Second,
		FetchStations:  true,
		FetchDistances: true,
	}
}

// DefaultFetchTargets returns one target per known line. Numbered lines come
// first.
func DefaultFetchTargets() []FetchTarget {
	lines := subway.Lines()
	targets := make([]FetchTarget, 0, len(lines))
	for _, l := range lines {
		priority := 2
		if l.DistanceID != "" {
			priority = 1
		}
		targets = append(targets, FetchTarget{
			Line:         l.ID,
			DistanceLine: l.DistanceID,
			Window:       l.MaxStations,
			Priority:     priority,
		})
	}
	return targets
}

// TargetFor returns the target for a directory or distance line identifier.
// Unknown lines get the default window and no distance table.
func TargetFor(id string) FetchTarget {
	if l, ok := subway.LookupLine(id); ok {
		return FetchTarget{Line: l.ID, DistanceLine: l.DistanceID, Window: l.MaxStations, Priority: 1}
	}
	return FetchTarget{Line: id, Window: subway.DefaultWindow, Priority: 3}
}

// TotalTargets returns the number of targets to fetch.
func (c FetchConfig) TotalTargets() int {
	return len(c.Targets)
}

// WithTargets returns a copy of the configuration restricted to the given
// lines. An empty list keeps every target.
func (c FetchConfig) WithTargets(lines []string) FetchConfig {
	if len(lines) == 0 {
		return c
	}
	targets := make([]FetchTarget, 0, len(lines))
	for _, id := range lines {
		targets = append(targets, TargetFor(id))
	}
	c.Targets = targets
	return c
}
