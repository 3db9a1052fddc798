package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellstep/internal/models"
)

const sampleHistory = `HISTORY FILE history_271017_obs
FIELD,TEST
UNITS,METRIC
DATE,WELL,COP,WOP,STATUS
01/01/2017,A08,10,1,OPEN
02/01/2017,A08,20,,OPEN
01/01/2017,B01,5,2,SHUT
03/01/2017,A08,30,3,OPEN
`

func TestRead_DefaultLayout(t *testing.T) {
	table, err := Read(strings.NewReader(sampleHistory), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"DATE", "WELL", "COP", "WOP", "STATUS"}, table.Header)
	assert.Equal(t, []string{"COP", "WOP"}, table.Fields)
	assert.Equal(t, []string{"STATUS"}, table.TextColumns)
	require.Len(t, table.Observations, 4)
	assert.Empty(t, table.Rejected)

	first := table.Observations[0]
	assert.Equal(t, "A08", first.Well)
	assert.True(t, first.ObservedAt.Equal(time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.Reading(10), first.Measurements["COP"])
	assert.Equal(t, "OPEN", first.Attributes["STATUS"])
	assert.Equal(t, 0, first.RowIndex)

	second := table.Observations[1]
	assert.True(t, second.ObservedAt.Equal(time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)), "dates are day first")
	assert.True(t, second.Measurements["WOP"].IsMissing(), "blank cell is missing")

	assert.Equal(t, 3, table.Observations[3].RowIndex)
}

func TestRead_MaxRows(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRows = 2

	table, err := Read(strings.NewReader(sampleHistory), opts)
	require.NoError(t, err)
	require.Len(t, table.Observations, 2)
	assert.Equal(t, "A08", table.Observations[1].Well)

	opts.MaxRows = 0
	table, err = Read(strings.NewReader(sampleHistory), opts)
	require.NoError(t, err)
	assert.Len(t, table.Observations, 4, "zero reads every row")
}

func TestRead_InvalidRows(t *testing.T) {
	input := `a
b
c
DATE,WELL,COP
01/01/2017,A08,1
2017-01-02,A08,2
03/01/2017,,3
04/01/2017,A08,4,extra
05/01/2017,A08,5
`

	t.Run("strict mode fails on the first bad row", func(t *testing.T) {
		_, err := Read(strings.NewReader(input), DefaultOptions())
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "row", verr.Field, "field count is checked while reading")
		assert.Equal(t, 8, verr.Line)
	})

	t.Run("lenient mode skips bad rows", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Lenient = true

		table, err := Read(strings.NewReader(input), opts)
		require.NoError(t, err)
		require.Len(t, table.Observations, 2)
		assert.Equal(t, models.Reading(1), table.Observations[0].Measurements["COP"])
		assert.Equal(t, models.Reading(5), table.Observations[1].Measurements["COP"])
		assert.Equal(t, 1, table.Observations[1].RowIndex)
		assert.Len(t, table.Rejected, 3)
	})
}

func TestRead_ShortRowsArePadded(t *testing.T) {
	input := "x\ny\nz\nDATE,WELL,COP,GOP\n01/01/2017,A08,1\n"

	table, err := Read(strings.NewReader(input), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, table.Observations, 1)
	assert.True(t, table.Observations[0].Measurements["GOP"].IsMissing())
	assert.Equal(t, []string{"COP", "GOP"}, table.Fields, "all-blank columns stay numeric")
}

func TestRead_HeaderProblems(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    func(*Options)
		wantErr string
	}{
		{
			name:    "missing date column",
			input:   "a\nb\nc\nDAY,WELL\n",
			wantErr: `no "DATE" column`,
		},
		{
			name:    "missing well column",
			input:   "a\nb\nc\nDATE,NAME\n",
			wantErr: `no "WELL" column`,
		},
		{
			name:    "file shorter than leading rows",
			input:   "a\nb\n",
			wantErr: "file ends after 2 of 3 leading rows",
		},
		{
			name:    "missing header",
			input:   "a\nb\nc\n",
			wantErr: "missing header row",
		},
		{
			name:  "custom column names",
			input: "Day;Name;Rate\n01/01/2017;W1;3\n",
			opts: func(o *Options) {
				o.SkipRows = 0
				o.DateColumn = "Day"
				o.WellColumn = "Name"
			},
			wantErr: `no "Day" column`, // semicolons are not separators
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := Read(strings.NewReader(tt.input), opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	got := normalizeHeader([]string{" DATE ", "WELL", "", "COP", "COP", "COP"})
	assert.Equal(t, []string{"DATE", "WELL", "Unnamed: 2", "COP", "COP.1", "COP.2"}, got)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleHistory), 0o644))

	table, err := ReadFile(path, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, table.Observations, 4)

	_, err = ReadFile(filepath.Join(dir, "missing.csv"), DefaultOptions())
	assert.Error(t, err)
}
