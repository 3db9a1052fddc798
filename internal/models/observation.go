package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Reading is a measurement value. NaN marks a missing value and is
// serialized as JSON null.
type Reading float64

// Missing returns the NaN reading used for blank cells and pre-history grid points
func Missing() Reading {
	return Reading(math.NaN())
}

// IsMissing reports whether the reading carries no value
func (r Reading) IsMissing() bool {
	return math.IsNaN(float64(r))
}

// MarshalJSON encodes NaN as null
func (r Reading) MarshalJSON() ([]byte, error) {
	if r.IsMissing() || math.IsInf(float64(r), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(r))
}

// UnmarshalJSON decodes null as NaN
func (r *Reading) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Missing()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Reading(v)
	return nil
}

// Measurements maps a measurement column name to its reading.
// Stored as JSONB.
type Measurements map[string]Reading

// Value implements driver.Valuer
func (m Measurements) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *Measurements) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan measurements: %w", err)
	}
	out := Measurements{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("scan measurements: %w", err)
		}
	}
	*m = out
	return nil
}

// Attributes holds the non-numeric columns of a source row. Stored as JSONB.
type Attributes map[string]string

// Value implements driver.Valuer
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *Attributes) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan attributes: %w", err)
	}
	out := Attributes{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("scan attributes: %w", err)
		}
	}
	*a = out
	return nil
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", src)
	}
}

// Observation is one row of a well history file after date parsing
type Observation struct {
	ID           int64        `json:"id" db:"id"`
	DatasetID    string       `json:"dataset_id" db:"dataset_id"`
	Well         string       `json:"well" db:"well"`
	ObservedAt   time.Time    `json:"observed_at" db:"observed_at"`
	RowIndex     int          `json:"row_index" db:"row_index"`
	Measurements Measurements `json:"measurements" db:"measurements"`
	Attributes   Attributes   `json:"attributes,omitempty" db:"attributes"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Reading returns the named measurement, or a missing reading when absent
func (o *Observation) Reading(field string) Reading {
	if v, ok := o.Measurements[field]; ok {
		return v
	}
	return Missing()
}

// RawHistoryRecord represents a single data row of a history CSV file.
// Used during ingestion before column types are known.
type RawHistoryRecord struct {
	Line  int // 1-based line in the source file
	Date  string
	Well  string
	Cells map[string]string
}

// ToObservation converts the raw row, parsing the date with layout and
// the listed numeric columns as floats. Every other cell becomes an attribute.
// Blank numeric cells become missing readings.
func (r *RawHistoryRecord) ToObservation(layout string, numeric []string) (*Observation, error) {
	date, err := time.ParseInLocation(layout, strings.TrimSpace(r.Date), time.UTC)
	if err != nil {
		return nil, &ValidationError{
			Field:   "date",
			Value:   r.Date,
			Line:    r.Line,
			Message: fmt.Sprintf("invalid date format, expected layout %s", layout),
		}
	}

	well := strings.TrimSpace(r.Well)
	if well == "" {
		return nil, &ValidationError{
			Field:   "well",
			Value:   r.Well,
			Line:    r.Line,
			Message: "well identifier is empty",
		}
	}

	obs := &Observation{
		Well:         well,
		ObservedAt:   date,
		Measurements: make(Measurements, len(numeric)),
		CreatedAt:    time.Now().UTC(),
	}

	isNumeric := make(map[string]bool, len(numeric))
	for _, field := range numeric {
		isNumeric[field] = true

		cell := strings.TrimSpace(r.Cells[field])
		if cell == "" {
			obs.Measurements[field] = Missing()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, &ValidationError{
				Field:   field,
				Value:   cell,
				Line:    r.Line,
				Message: fmt.Sprintf("invalid numeric value for %s", field),
			}
		}
		obs.Measurements[field] = Reading(v)
	}

	for field, cell := range r.Cells {
		if isNumeric[field] {
			continue
		}
		if obs.Attributes == nil {
			obs.Attributes = make(Attributes)
		}
		obs.Attributes[field] = cell
	}

	return obs, nil
}
