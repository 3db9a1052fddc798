// Package export writes resampled series and flattened Nexus records as
// CSV tables and XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"wellstep/internal/models"
)

// DateLayout is the layout of the DATE column in exported tables
const DateLayout = "2006-01-02 15:04:05"

// ResampledFrame stacks the series into one DATE, WELL, <fields...> table.
// Fields missing from a series are written empty.
func ResampledFrame(all []*models.ResampledSeries) dataframe.DataFrame {
	fields := unionFields(all)

	var dates, wells []string
	columns := make(map[string][]string, len(fields))
	for _, s := range all {
		for i, ts := range s.Timestamps {
			dates = append(dates, formatTime(ts))
			wells = append(wells, s.Well)
			for _, field := range fields {
				var cell string
				if values, ok := s.Values[field]; ok && i < len(values) {
					cell = formatReading(values[i])
				}
				columns[field] = append(columns[field], cell)
			}
		}
	}

	cols := []series.Series{
		series.New(nonNil(dates), series.String, "DATE"),
		series.New(nonNil(wells), series.String, "WELL"),
	}
	for _, field := range fields {
		cols = append(cols, series.New(nonNil(columns[field]), series.String, field))
	}
	return dataframe.New(cols...)
}

// NexusFrame builds the six-column table of flattened plot records
func NexusFrame(records []*models.NexusRecord) dataframe.DataFrame {
	n := len(records)
	timesteps := make([]string, n)
	times := make([]string, n)
	classes := make([]string, n)
	instances := make([]string, n)
	varnames := make([]string, n)
	values := make([]string, n)

	for i, r := range records {
		timesteps[i] = strconv.FormatInt(int64(r.Timestep), 10)
		times[i] = formatFloat32(r.Time)
		classes[i] = r.ClassName
		instances[i] = r.InstanceName
		varnames[i] = r.VarName
		values[i] = formatFloat32(r.Value)
	}

	return dataframe.New(
		series.New(timesteps, series.String, models.NexusColumns[0]),
		series.New(times, series.String, models.NexusColumns[1]),
		series.New(classes, series.String, models.NexusColumns[2]),
		series.New(instances, series.String, models.NexusColumns[3]),
		series.New(varnames, series.String, models.NexusColumns[4]),
		series.New(values, series.String, models.NexusColumns[5]),
	)
}

// WriteResampledCSV writes the stacked resampled table to w
func WriteResampledCSV(w io.Writer, all []*models.ResampledSeries) error {
	return writeFrame(w, ResampledFrame(all))
}

// WriteNexusCSV writes the six-column Nexus table to w
func WriteNexusCSV(w io.Writer, records []*models.NexusRecord) error {
	return writeFrame(w, NexusFrame(records))
}

func writeFrame(w io.Writer, df dataframe.DataFrame) error {
	if df.Err != nil {
		return fmt.Errorf("failed to build table: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// Header returns the column names of the stacked resampled table
func Header(all []*models.ResampledSeries) []string {
	return append([]string{"DATE", "WELL"}, unionFields(all)...)
}

// unionFields returns every field of the series, first-seen order
func unionFields(all []*models.ResampledSeries) []string {
	var fields []string
	seen := make(map[string]bool)
	for _, s := range all {
		for _, field := range s.Fields {
			if !seen[field] {
				seen[field] = true
				fields = append(fields, field)
			}
		}
	}
	return fields
}

func formatReading(r models.Reading) string {
	if r.IsMissing() {
		return ""
	}
	return strconv.FormatFloat(float64(r), 'f', -1, 64)
}

func formatFloat32(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
