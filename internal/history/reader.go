// Package history reads well history CSV exports: a few leading metadata
// rows, a header row, then one row per well observation.
package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"wellstep/internal/models"
)

// Options controls how a history file is read
type Options struct {
	SkipRows   int    // metadata rows before the header
	MaxRows    int    // data rows to read; 0 reads everything
	DateColumn string // column holding the observation date
	WellColumn string // column holding the well identifier
	DateLayout string // Go time layout of DateColumn
	Lenient    bool   // skip invalid rows instead of failing
}

// DefaultOptions matches the layout of the reservoir history exports
func DefaultOptions() Options {
	return Options{
		SkipRows:   3,
		MaxRows:    10179,
		DateColumn: "DATE",
		WellColumn: "WELL",
		DateLayout: "02/01/2006",
	}
}

// Table is the parsed content of a history file
type Table struct {
	Header       []string
	Fields       []string // numeric measurement columns, header order
	TextColumns  []string // non-numeric columns kept as attributes
	Observations []*models.Observation
	Rejected     []error // row errors skipped in lenient mode
}

// ReadFile opens path and reads it with opts
func ReadFile(path string, opts Options) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	table, err := Read(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Read parses a history CSV stream
func Read(r io.Reader, opts Options) (*Table, error) {
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultOptions().DateLayout
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	for i := 0; i < opts.SkipRows; i++ {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("file ends after %d of %d leading rows", i, opts.SkipRows)
			}
			return nil, fmt.Errorf("failed to skip leading row %d: %w", i+1, err)
		}
	}

	rawHeader, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header := normalizeHeader(rawHeader)

	dateIdx, wellIdx := indexOf(header, opts.DateColumn), indexOf(header, opts.WellColumn)
	if dateIdx < 0 {
		return nil, fmt.Errorf("header has no %q column", opts.DateColumn)
	}
	if wellIdx < 0 {
		return nil, fmt.Errorf("header has no %q column", opts.WellColumn)
	}

	table := &Table{Header: header}

	var raws []*models.RawHistoryRecord
	for opts.MaxRows <= 0 || len(raws)+len(table.Rejected) < opts.MaxRows {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if len(record) > len(header) {
			rowErr := &models.ValidationError{
				Field:   "row",
				Value:   strconv.Itoa(len(record)),
				Line:    line,
				Message: fmt.Sprintf("expected %d fields, saw %d", len(header), len(record)),
			}
			if !opts.Lenient {
				return nil, rowErr
			}
			table.Rejected = append(table.Rejected, rowErr)
			continue
		}

		raw := &models.RawHistoryRecord{
			Line:  line,
			Cells: make(map[string]string, len(header)-2),
		}
		for i, name := range header {
			var cell string
			if i < len(record) {
				cell = record[i]
			}
			switch i {
			case dateIdx:
				raw.Date = cell
			case wellIdx:
				raw.Well = cell
			default:
				raw.Cells[name] = cell
			}
		}
		raws = append(raws, raw)
	}

	for i, name := range header {
		if i == dateIdx || i == wellIdx {
			continue
		}
		if numericColumn(raws, name) {
			table.Fields = append(table.Fields, name)
		} else {
			table.TextColumns = append(table.TextColumns, name)
		}
	}

	for _, raw := range raws {
		obs, err := raw.ToObservation(opts.DateLayout, table.Fields)
		if err != nil {
			if !opts.Lenient {
				return nil, err
			}
			table.Rejected = append(table.Rejected, err)
			continue
		}
		obs.RowIndex = len(table.Observations)
		table.Observations = append(table.Observations, obs)
	}

	return table, nil
}

// numericColumn reports whether every non-blank cell of the column parses as a float
func numericColumn(raws []*models.RawHistoryRecord, name string) bool {
	for _, raw := range raws {
		cell := strings.TrimSpace(raw.Cells[name])
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
	}
	return true
}

// normalizeHeader trims names, names blank columns and disambiguates repeats
func normalizeHeader(raw []string) []string {
	header := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		header[i] = name
	}
	return header
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
