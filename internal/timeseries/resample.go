// Package timeseries partitions well observations into per-well series and
// resamples them onto fixed grids with zero-order hold.
//
// A resampled value at grid time t is the value of the latest original sample
// at or before t. Grid points after the last sample hold the last value; grid
// points before the first sample are missing (NaN).
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"wellstep/internal/models"
)

var (
	// ErrEmptySeries is returned when a series has no samples to hold
	ErrEmptySeries = errors.New("series has no samples")
	// ErrUnorderedSeries is returned when sample timestamps decrease
	ErrUnorderedSeries = errors.New("series timestamps are not in ascending order")
	// ErrLengthMismatch is returned when timestamps and values differ in length
	ErrLengthMismatch = errors.New("timestamps and values differ in length")
)

// Locate returns the index of the latest timestamp in ts that is <= t, or -1
// when t precedes every sample. ts must be sorted ascending; among equal
// timestamps the last index wins.
func Locate(ts []time.Time, t time.Time) int {
	// First index strictly after t.
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(t) })
	return i - 1
}

// StepHold samples values (taken at ts) at every grid timestamp
func StepHold(ts []time.Time, values []float64, grid []time.Time) ([]float64, error) {
	if len(ts) != len(values) {
		return nil, fmt.Errorf("%w: %d timestamps, %d values", ErrLengthMismatch, len(ts), len(values))
	}
	if len(ts) == 0 {
		return nil, ErrEmptySeries
	}
	if err := checkOrder(ts); err != nil {
		return nil, err
	}

	out := make([]float64, len(grid))
	for i, t := range grid {
		idx := Locate(ts, t)
		if idx < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[idx]
	}
	return out, nil
}

func checkOrder(ts []time.Time) error {
	for i := 1; i < len(ts); i++ {
		if ts[i].Before(ts[i-1]) {
			return fmt.Errorf("%w: sample %d (%s) precedes sample %d (%s)",
				ErrUnorderedSeries, i, ts[i].Format(time.RFC3339), i-1, ts[i-1].Format(time.RFC3339))
		}
	}
	return nil
}

// Resample re-expresses every measurement field of s on grid g
func Resample(s *models.WellSeries, g models.Grid) (*models.ResampledSeries, error) {
	if s == nil || s.Len() == 0 {
		return nil, ErrEmptySeries
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	ts := s.Timestamps()
	if err := checkOrder(ts); err != nil {
		return nil, err
	}

	gridTimes := g.Timestamps()
	idx := make([]int, len(gridTimes))
	for i, t := range gridTimes {
		idx[i] = Locate(ts, t)
	}

	out := &models.ResampledSeries{
		Well:       s.Well,
		Grid:       g,
		Fields:     append([]string(nil), s.Fields...),
		Timestamps: gridTimes,
		Values:     make(map[string][]models.Reading, len(s.Fields)),
	}

	for _, field := range s.Fields {
		col := make([]models.Reading, len(gridTimes))
		for i, j := range idx {
			if j < 0 {
				col[i] = models.Missing()
				continue
			}
			col[i] = s.Records[j].Reading(field)
		}
		out.Values[field] = col
	}

	return out, nil
}

// GridFor builds the grid for s: start defaults to the first sample of s
func GridFor(s *models.WellSeries, start *time.Time, step time.Duration, points int) (models.Grid, error) {
	if s == nil || s.Len() == 0 {
		return models.Grid{}, ErrEmptySeries
	}
	g := models.Grid{Start: s.Records[0].ObservedAt, Step: step, Points: points}
	if start != nil {
		g.Start = *start
	}
	return g, g.Validate()
}
