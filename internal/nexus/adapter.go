package nexus

import (
	"wellstep/internal/models"
)

// Loader produces the decoded plot of a file
type Loader interface {
	Load(filename string) (*Plot, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(filename string) (*Plot, error)

// Load calls f(filename)
func (f LoaderFunc) Load(filename string) (*Plot, error) {
	return f(filename)
}

// FileLoader decodes plot files from disk
var FileLoader Loader = LoaderFunc(Load)

// Adapter turns a plot file into a six-column table
type Adapter struct {
	loader Loader
}

// NewAdapter creates an adapter over loader; nil uses FileLoader
func NewAdapter(loader Loader) *Adapter {
	if loader == nil {
		loader = FileLoader
	}
	return &Adapter{loader: loader}
}

// Load loads filename and flattens its data items
func (a *Adapter) Load(filename string) ([]*models.NexusRecord, error) {
	plot, err := a.loader.Load(filename)
	if err != nil {
		return nil, err
	}
	return Flatten(plot.Data), nil
}

// Flatten maps each datum to one record, in input order
func Flatten(data []Datum) []*models.NexusRecord {
	records := make([]*models.NexusRecord, len(data))
	for i, d := range data {
		records[i] = &models.NexusRecord{
			RowIndex:     i,
			Timestep:     d.Timestep,
			Time:         d.Time,
			ClassName:    d.ClassName,
			InstanceName: d.InstanceName,
			VarName:      d.VarName,
			Value:        d.Value,
		}
	}
	return records
}
