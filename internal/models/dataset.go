package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/lib/pq"
)

// DatasetKind identifies the source format of a dataset
type DatasetKind string

const (
	DatasetKindHistory DatasetKind = "history"
	DatasetKindNexus   DatasetKind = "nexus"
)

// Dataset is one ingested source file
type Dataset struct {
	ID        string         `json:"id" db:"id"`
	Kind      DatasetKind    `json:"kind" db:"kind"`
	Source    string         `json:"source" db:"source"`
	RowCount  int            `json:"row_count" db:"row_count"`
	Fields    pq.StringArray `json:"fields" db:"fields"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// NexusColumns is the column order of a flattened Nexus plot table
var NexusColumns = []string{"timestep", "time", "classname", "instancename", "varname", "value"}

// NexusRecord is one flattened data item of a Nexus plot file
type NexusRecord struct {
	ID           int64   `json:"-" db:"id"`
	DatasetID    string  `json:"-" db:"dataset_id"`
	RowIndex     int     `json:"-" db:"row_index"`
	Timestep     int32   `json:"timestep" db:"timestep"`
	Time         float32 `json:"time" db:"time"`
	ClassName    string  `json:"classname" db:"classname"`
	InstanceName string  `json:"instancename" db:"instancename"`
	VarName      string  `json:"varname" db:"varname"`
	Value        float32 `json:"value" db:"value"`
}

// MarshalJSON writes a NaN or infinite time or value as null
func (r NexusRecord) MarshalJSON() ([]byte, error) {
	type plain NexusRecord
	return json.Marshal(struct {
		plain
		Time  plotFloat `json:"time"`
		Value plotFloat `json:"value"`
	}{plain(r), plotFloat(r.Time), plotFloat(r.Value)})
}

// plotFloat is a decoded float32 that may hold any IEEE bit pattern
type plotFloat float32

func (f plotFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float32(f))
}
