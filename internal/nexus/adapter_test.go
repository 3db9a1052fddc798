package nexus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellstep/internal/models"
)

func TestAdapter_Load(t *testing.T) {
	loader := LoaderFunc(func(filename string) (*Plot, error) {
		assert.Equal(t, "case.plt", filename)
		return &Plot{Data: []Datum{
			{Timestep: 1, Time: 0.5, MaxPerfs: 4, ClassName: "WELL", InstanceName: "A08", VarName: "COP", Value: 10.5},
			{Timestep: 2, Time: 1.5, MaxPerfs: 4, ClassName: "FIELD", InstanceName: "FIELD", VarName: "FOPR", Value: 99},
		}}, nil
	})

	records, err := NewAdapter(loader).Load("case.plt")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, &models.NexusRecord{
		RowIndex:     0,
		Timestep:     1,
		Time:         0.5,
		ClassName:    "WELL",
		InstanceName: "A08",
		VarName:      "COP",
		Value:        10.5,
	}, records[0])
	assert.Equal(t, &models.NexusRecord{
		RowIndex:     1,
		Timestep:     2,
		Time:         1.5,
		ClassName:    "FIELD",
		InstanceName: "FIELD",
		VarName:      "FOPR",
		Value:        99,
	}, records[1])
}

func TestAdapter_LoadError(t *testing.T) {
	boom := errors.New("boom")
	loader := LoaderFunc(func(string) (*Plot, error) { return nil, boom })

	records, err := NewAdapter(loader).Load("case.plt")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, records)
}

func TestAdapter_DefaultLoader(t *testing.T) {
	a := NewAdapter(nil)
	_, err := a.Load("does-not-exist.plt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not open file")
}

func TestFlatten_DecodedPlot(t *testing.T) {
	plot, err := Decode(bytes.NewReader(samplePlot()))
	require.NoError(t, err)

	records := Flatten(plot.Data)
	require.Len(t, records, len(plot.Data))
	for i, r := range records {
		assert.Equal(t, i, r.RowIndex)
		assert.Equal(t, plot.Data[i].VarName, r.VarName)
		assert.Equal(t, plot.Data[i].Value, r.Value)
	}
	assert.Empty(t, Flatten(nil))
}
