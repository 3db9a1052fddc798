package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultGridStep is the spacing of resampled timestamps
	DefaultGridStep = 6 * time.Hour
	// DefaultGridPoints is the number of resampled timestamps (0h to 690h)
	DefaultGridPoints = 116

	// maxGridYear keeps grid timestamps formattable as RFC3339
	maxGridYear = 9999
)

// Grid is a fixed set of evenly spaced synthetic timestamps
type Grid struct {
	Start  time.Time
	Step   time.Duration
	Points int
}

// DefaultGrid returns the 6-hour, 116-point grid anchored at start
func DefaultGrid(start time.Time) Grid {
	return Grid{Start: start, Step: DefaultGridStep, Points: DefaultGridPoints}
}

// Validate checks that the grid produces at least one timestamp
func (g Grid) Validate() error {
	if g.Step <= 0 {
		return &ValidationError{
			Field:   "step",
			Value:   g.Step.String(),
			Message: "grid step must be positive",
		}
	}
	if g.Points <= 0 {
		return &ValidationError{
			Field:   "points",
			Value:   fmt.Sprint(g.Points),
			Message: "grid must have at least one point",
		}
	}
	if g.Points > 1 && g.Step > time.Duration(math.MaxInt64)/time.Duration(g.Points-1) {
		return &ValidationError{
			Field:   "step",
			Value:   g.Step.String(),
			Message: fmt.Sprintf("a grid of %d points with this step spans more than %s", g.Points, time.Duration(math.MaxInt64)),
		}
	}
	if end := g.End(); end.Before(g.Start) || end.Year() > maxGridYear {
		return &ValidationError{
			Field:   "start",
			Value:   g.Start.Format(time.RFC3339),
			Message: "grid ends outside the representable time range",
		}
	}
	return nil
}

// Timestamps returns Start + i*Step for every grid point
func (g Grid) Timestamps() []time.Time {
	if g.Points <= 0 {
		return nil
	}
	ts := make([]time.Time, g.Points)
	for i := range ts {
		ts[i] = g.Start.Add(time.Duration(i) * g.Step)
	}
	return ts
}

// End returns the last grid timestamp
func (g Grid) End() time.Time {
	if g.Points <= 0 {
		return g.Start
	}
	return g.Start.Add(time.Duration(g.Points-1) * g.Step)
}

type gridJSON struct {
	Start       time.Time `json:"start"`
	Step        string    `json:"step"`
	StepSeconds int64     `json:"step_seconds"`
	Points      int       `json:"points"`
}

// MarshalJSON renders the step both as a duration string and in seconds
func (g Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(gridJSON{
		Start:       g.Start,
		Step:        g.Step.String(),
		StepSeconds: int64(g.Step / time.Second),
		Points:      g.Points,
	})
}

// UnmarshalJSON accepts the form produced by MarshalJSON
func (g *Grid) UnmarshalJSON(data []byte) error {
	var raw gridJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Start = raw.Start
	g.Points = raw.Points
	if raw.Step != "" {
		step, err := time.ParseDuration(raw.Step)
		if err != nil {
			return fmt.Errorf("invalid grid step: %w", err)
		}
		g.Step = step
	} else {
		g.Step = time.Duration(raw.StepSeconds) * time.Second
	}
	return nil
}

// WellSeries is the ordered set of observations of one well, re-indexed from 0
type WellSeries struct {
	Well    string         `json:"well"`
	Fields  []string       `json:"fields"`
	Records []*Observation `json:"records"`
}

// Len returns the number of samples
func (s *WellSeries) Len() int {
	return len(s.Records)
}

// Timestamps returns the sample timestamps in series order
func (s *WellSeries) Timestamps() []time.Time {
	ts := make([]time.Time, len(s.Records))
	for i, r := range s.Records {
		ts[i] = r.ObservedAt
	}
	return ts
}

// Column returns one measurement field as floats; absent values are NaN
func (s *WellSeries) Column(field string) []float64 {
	col := make([]float64, len(s.Records))
	for i, r := range s.Records {
		col[i] = float64(r.Reading(field))
	}
	return col
}

// Summary describes the series without its samples
func (s *WellSeries) Summary() WellSummary {
	summary := WellSummary{Well: s.Well, SampleCount: len(s.Records)}
	if len(s.Records) > 0 {
		summary.FirstObservedAt = s.Records[0].ObservedAt
		summary.LastObservedAt = s.Records[len(s.Records)-1].ObservedAt
	}
	return summary
}

// WellSummary is the per-well overview of a dataset
type WellSummary struct {
	Well            string    `json:"well" db:"well"`
	SampleCount     int       `json:"sample_count" db:"sample_count"`
	FirstObservedAt time.Time `json:"first_observed_at" db:"first_observed_at"`
	LastObservedAt  time.Time `json:"last_observed_at" db:"last_observed_at"`
}

// ResampledSeries is a well series re-expressed on a grid
type ResampledSeries struct {
	Well       string               `json:"well"`
	Grid       Grid                 `json:"grid"`
	Fields     []string             `json:"fields"`
	Timestamps []time.Time          `json:"timestamps"`
	Values     map[string][]Reading `json:"values"`
}

// Len returns the number of grid points
func (r *ResampledSeries) Len() int {
	return len(r.Timestamps)
}

// Points expands the series into one row per grid timestamp
func (r *ResampledSeries) Points(datasetID string) []*ResampledPoint {
	points := make([]*ResampledPoint, len(r.Timestamps))
	for i, ts := range r.Timestamps {
		m := make(Measurements, len(r.Fields))
		for _, field := range r.Fields {
			m[field] = r.Values[field][i]
		}
		points[i] = &ResampledPoint{
			DatasetID:    datasetID,
			Well:         r.Well,
			StepSeconds:  int64(r.Grid.Step / time.Second),
			GridIndex:    i,
			GridTime:     ts,
			Measurements: m,
		}
	}
	return points
}

// SeriesFromPoints rebuilds a resampled series from stored grid rows ordered
// by grid index. Fields absent from a row read as missing.
func SeriesFromPoints(well string, fields []string, points []*ResampledPoint) *ResampledSeries {
	out := &ResampledSeries{
		Well:       well,
		Fields:     append([]string(nil), fields...),
		Timestamps: make([]time.Time, len(points)),
		Values:     make(map[string][]Reading, len(fields)),
	}
	for _, field := range fields {
		out.Values[field] = make([]Reading, len(points))
	}
	for i, p := range points {
		out.Timestamps[i] = p.GridTime
		for _, field := range fields {
			v, ok := p.Measurements[field]
			if !ok {
				v = Missing()
			}
			out.Values[field][i] = v
		}
	}
	if len(points) > 0 {
		out.Grid = Grid{
			Start:  points[0].GridTime,
			Step:   time.Duration(points[0].StepSeconds) * time.Second,
			Points: len(points),
		}
	}
	return out
}

// ResampledPoint is one persisted grid row of a resampled series
type ResampledPoint struct {
	ID           int64        `json:"id" db:"id"`
	DatasetID    string       `json:"dataset_id" db:"dataset_id"`
	Well         string       `json:"well" db:"well"`
	StepSeconds  int64        `json:"step_seconds" db:"step_seconds"`
	GridIndex    int          `json:"grid_index" db:"grid_index"`
	GridTime     time.Time    `json:"grid_time" db:"grid_time"`
	Measurements Measurements `json:"measurements" db:"measurements"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}
