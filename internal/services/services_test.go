package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellstep/internal/history"
	"wellstep/internal/models"
	"wellstep/internal/nexus"
	"wellstep/internal/repository"
	"wellstep/internal/repository/repositorytest"
	"wellstep/internal/timeseries"
	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

const sampleHistory = `HISTORY FILE history_271017_obs
FIELD,TEST
UNITS,METRIC
DATE,WELL,COP,WOP
01/01/2017,A08,10,1
01/01/2017,B01,5,2
02/01/2017,A08,20,
03/01/2017,B01,7,3
`

var day0 = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestDeps(t *testing.T) (*repositorytest.Memory, *logging.StructuredLogger, *metrics.Collector) {
	t.Helper()
	return repositorytest.New(), logging.NewNop(), metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
}

func writeHistory(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestIngestionService_IngestHistory(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	svc := NewIngestionService(repo, logger, m)
	ctx := context.Background()

	result, err := svc.IngestHistory(ctx, writeHistory(t, sampleHistory), history.DefaultOptions(), 3)
	require.NoError(t, err)

	assert.Equal(t, models.DatasetKindHistory, result.Kind)
	assert.Equal(t, 4, result.TotalRecords)
	assert.Equal(t, 4, result.SuccessfulRecords)
	assert.Equal(t, 0, result.FailedRecords)
	assert.Equal(t, 2, result.Wells)
	assert.Equal(t, []string{"COP", "WOP"}, result.Fields)
	assert.Equal(t, 2, repo.Batches, "4 rows in batches of 3")

	dataset, err := repo.GetDataset(ctx, result.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, 4, dataset.RowCount)
	assert.Equal(t, []string{"COP", "WOP"}, []string(dataset.Fields))

	stored := repo.Observations(result.DatasetID)
	require.Len(t, stored, 4)
	for i, obs := range stored {
		assert.Equal(t, result.DatasetID, obs.DatasetID)
		assert.Equal(t, i, obs.RowIndex)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.IngestionDuration))
}

func TestIngestionService_IngestHistoryLenient(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	svc := NewIngestionService(repo, logger, m)

	body := sampleHistory + "bad-date,A08,1,1\n"
	opts := history.DefaultOptions()

	_, err := svc.IngestHistory(context.Background(), writeHistory(t, body), opts, 10)
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("parse_error")))

	opts.Lenient = true
	result, err := svc.IngestHistory(context.Background(), writeHistory(t, body), opts, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, result.TotalRecords)
	assert.Equal(t, 4, result.SuccessfulRecords)
	assert.Equal(t, 1, result.FailedRecords)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "line 9")
}

func TestIngestionService_BatchFailureRemovesDataset(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	repo.BatchErr = errors.New("connection reset")
	svc := NewIngestionService(repo, logger, m)

	_, err := svc.IngestHistory(context.Background(), writeHistory(t, sampleHistory), history.DefaultOptions(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	require.Len(t, repo.Deleted, 1)
	_, total, _ := repo.ListDatasets(context.Background(), 10, 0)
	assert.Equal(t, 0, total)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("batch_error")))
}

func TestIngestionService_DatasetFailure(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	repo.CreateDatasetErr = errors.New("disk full")
	svc := NewIngestionService(repo, logger, m)

	_, err := svc.IngestHistory(context.Background(), writeHistory(t, sampleHistory), history.DefaultOptions(), 2)
	require.Error(t, err)
	assert.Equal(t, 0, repo.Batches)
}

func TestIngestionService_IngestNexus(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	loader := nexus.LoaderFunc(func(string) (*nexus.Plot, error) {
		return &nexus.Plot{Data: []nexus.Datum{
			{Timestep: 1, Time: 0.5, ClassName: "WELL", InstanceName: "A08", VarName: "COP", Value: 10.5},
			{Timestep: 1, Time: 0.5, ClassName: "WELL", InstanceName: "B01", VarName: "COP", Value: 3},
		}}, nil
	})
	svc := NewIngestionService(repo, logger, m).WithNexusAdapter(nexus.NewAdapter(loader))

	result, err := svc.IngestNexus(context.Background(), "case.plt", 0)
	require.NoError(t, err)
	assert.Equal(t, models.DatasetKindNexus, result.Kind)
	assert.Equal(t, 2, result.SuccessfulRecords)
	assert.Equal(t, 2, result.Wells)
	assert.Equal(t, models.NexusColumns, result.Fields)

	stored := repo.NexusRecords(result.DatasetID)
	require.Len(t, stored, 2)
	assert.Equal(t, "A08", stored[0].InstanceName)
	assert.Equal(t, "B01", stored[1].InstanceName)
	assert.Equal(t, 1, stored[1].RowIndex)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.NexusRecordsDecoded))
}

func TestIngestionService_IngestNexusLoadError(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	loader := nexus.LoaderFunc(func(string) (*nexus.Plot, error) { return nil, nexus.ErrBadHeader })
	svc := NewIngestionService(repo, logger, m).WithNexusAdapter(nexus.NewAdapter(loader))

	_, err := svc.IngestNexus(context.Background(), "case.plt", 10)
	assert.ErrorIs(t, err, nexus.ErrBadHeader)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("decode_error")))
}

func TestInBatches(t *testing.T) {
	tests := []struct {
		n, size int
		want    [][2]int
	}{
		{n: 0, size: 3, want: nil},
		{n: 5, size: 2, want: [][2]int{{0, 2}, {2, 4}, {4, 5}}},
		{n: 4, size: 4, want: [][2]int{{0, 4}}},
		{n: 3, size: 0, want: [][2]int{{0, 3}}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			var got [][2]int
			require.NoError(t, inBatches(tt.n, tt.size, func(lo, hi int) error {
				got = append(got, [2]int{lo, hi})
				return nil
			}))
			assert.Equal(t, tt.want, got)
		})
	}

	boom := errors.New("boom")
	calls := 0
	err := inBatches(10, 2, func(int, int) error { calls++; return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func series(well string, offsetsHours []int, values []float64) *models.WellSeries {
	s := &models.WellSeries{Well: well, Fields: []string{"COP"}}
	for i, h := range offsetsHours {
		s.Records = append(s.Records, &models.Observation{
			Well:         well,
			ObservedAt:   day0.Add(time.Duration(h) * time.Hour),
			RowIndex:     i,
			Measurements: models.Measurements{"COP": models.Reading(values[i])},
		})
	}
	return s
}

func TestResampleService_ResampleWellsKeepsOrder(t *testing.T) {
	_, logger, m := newTestDeps(t)
	svc := NewResampleService(nil, logger, m, ResampleOptions{Workers: 3})

	var input []*models.WellSeries
	for i := 0; i < 20; i++ {
		input = append(input, series(fmt.Sprintf("W%02d", i), []int{0, 24}, []float64{float64(i), float64(i) + 0.5}))
	}

	out, err := svc.ResampleWells(context.Background(), input, GridRequest{})
	require.NoError(t, err)
	require.Len(t, out, 20)
	for i, r := range out {
		assert.Equal(t, input[i].Well, r.Well)
		assert.Equal(t, models.DefaultGridPoints, r.Len())
		assert.Equal(t, models.Reading(i), r.Values["COP"][0])
		assert.Equal(t, models.Reading(float64(i)+0.5), r.Values["COP"][4], "24h is grid point 4")
		assert.Equal(t, models.Reading(float64(i)+0.5), r.Values["COP"][115], "held after the last sample")
	}

	assert.Equal(t, float64(20), testutil.ToFloat64(m.ResampledSeriesTotal))
	assert.Equal(t, float64(20*116), testutil.ToFloat64(m.ResampledPointsTotal))
}

func TestResampleService_ResampleWellsCustomGrid(t *testing.T) {
	_, logger, m := newTestDeps(t)
	svc := NewResampleService(nil, logger, m, DefaultResampleOptions())

	start := day0.Add(-6 * time.Hour)
	out, err := svc.ResampleWells(context.Background(),
		[]*models.WellSeries{series("A08", []int{0, 6, 12}, []float64{10, 20, 30})},
		GridRequest{Start: &start, Step: 3 * time.Hour, Points: 7},
	)
	require.NoError(t, err)
	got := out[0].Values["COP"]
	require.Len(t, got, 7)
	assert.True(t, got[0].IsMissing(), "before the first sample")
	assert.True(t, got[1].IsMissing())
	assert.Equal(t, []models.Reading{10, 10, 20, 20, 30}, got[2:])
}

func TestResampleService_ResampleWellsErrors(t *testing.T) {
	_, logger, m := newTestDeps(t)
	svc := NewResampleService(nil, logger, m, DefaultResampleOptions())
	ctx := context.Background()

	unordered := series("BAD", []int{12, 0}, []float64{1, 2})
	_, err := svc.ResampleWells(ctx, []*models.WellSeries{series("OK", []int{0}, []float64{1}), unordered}, GridRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, timeseries.ErrUnorderedSeries)
	assert.Contains(t, err.Error(), "well BAD")
	assert.True(t, IsResampleError(err))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResampleErrorsTotal.WithLabelValues("unordered_series")))

	_, err = svc.ResampleWells(ctx, []*models.WellSeries{{Well: "EMPTY"}}, GridRequest{})
	assert.ErrorIs(t, err, timeseries.ErrEmptySeries)

	_, err = svc.ResampleWells(ctx, []*models.WellSeries{series("OK", []int{0}, []float64{1})}, GridRequest{Step: -time.Hour})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "step", verr.Field)
	assert.False(t, IsResampleError(err))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResampleErrorsTotal.WithLabelValues("invalid_grid")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.ResampleWells(cancelled, []*models.WellSeries{series("OK", []int{0}, []float64{1})}, GridRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func ingestSample(t *testing.T, repo *repositorytest.Memory, logger *logging.StructuredLogger, m *metrics.Collector) string {
	t.Helper()
	result, err := NewIngestionService(repo, logger, m).
		IngestHistory(context.Background(), writeHistory(t, sampleHistory), history.DefaultOptions(), 100)
	require.NoError(t, err)
	return result.DatasetID
}

func TestResampleService_ResampleWell(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	id := ingestSample(t, repo, logger, m)
	svc := NewResampleService(repo, logger, m, DefaultResampleOptions())

	r, err := svc.ResampleWell(context.Background(), id, "A08", GridRequest{Points: 9})
	require.NoError(t, err)
	assert.Equal(t, "A08", r.Well)
	require.Equal(t, 9, r.Len())
	assert.Equal(t, models.Reading(10), r.Values["COP"][3], "18h still holds day 1")
	assert.Equal(t, models.Reading(20), r.Values["COP"][4], "24h picks up day 2")
	assert.True(t, r.Values["WOP"][4].IsMissing(), "blank cells are held as missing")
	assert.Equal(t, models.Reading(1), r.Values["WOP"][0])

	_, err = svc.ResampleWell(context.Background(), id, "ZZZ", GridRequest{})
	var nf *repository.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestResampleService_ResampleDataset(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	id := ingestSample(t, repo, logger, m)
	svc := NewResampleService(repo, logger, m, DefaultResampleOptions())
	ctx := context.Background()

	results, err := svc.ResampleDataset(ctx, id, GridRequest{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A08", results[0].Well, "first appearance order")
	assert.Equal(t, "B01", results[1].Well)

	points, err := repo.GetResampled(ctx, id, "B01", int64(models.DefaultGridStep/time.Second))
	require.NoError(t, err)
	require.Len(t, points, models.DefaultGridPoints)
	assert.Equal(t, models.Reading(5), points[0].Measurements["COP"])
	assert.Equal(t, models.Reading(7), points[8].Measurements["COP"], "48h is grid point 8")

	// Running again replaces instead of duplicating.
	_, err = svc.ResampleDataset(ctx, id, GridRequest{})
	require.NoError(t, err)
	points, _ = repo.GetResampled(ctx, id, "B01", int64(models.DefaultGridStep/time.Second))
	assert.Len(t, points, models.DefaultGridPoints)

	// A shorter grid leaves no rows of the longer one behind.
	_, err = svc.ResampleDataset(ctx, id, GridRequest{Points: 10})
	require.NoError(t, err)
	points, _ = repo.GetResampled(ctx, id, "B01", int64(models.DefaultGridStep/time.Second))
	assert.Len(t, points, 10)
}

func TestResampleService_StoredWell(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	id := ingestSample(t, repo, logger, m)
	svc := NewResampleService(repo, logger, m, DefaultResampleOptions())
	ctx := context.Background()

	_, err := svc.StoredWell(ctx, id, "A08", 0)
	var nf *repository.NotFoundError
	require.ErrorAs(t, err, &nf, "nothing stored before a dataset resample")

	computed, err := svc.ResampleDataset(ctx, id, GridRequest{Points: 9})
	require.NoError(t, err)

	stored, err := svc.StoredWell(ctx, id, "A08", 0)
	require.NoError(t, err)
	assert.Equal(t, "A08", stored.Well)
	assert.Equal(t, computed[0].Fields, stored.Fields)
	assert.Equal(t, computed[0].Grid.Step, stored.Grid.Step)
	assert.Equal(t, 9, stored.Grid.Points)
	require.Equal(t, computed[0].Len(), stored.Len())
	for i := range computed[0].Timestamps {
		assert.True(t, computed[0].Timestamps[i].Equal(stored.Timestamps[i]))
	}
	for _, field := range computed[0].Fields {
		for i, want := range computed[0].Values[field] {
			got := stored.Values[field][i]
			if want.IsMissing() {
				assert.True(t, got.IsMissing(), "%s[%d]", field, i)
				continue
			}
			assert.Equal(t, want, got, "%s[%d]", field, i)
		}
	}

	_, err = svc.StoredWell(ctx, id, "A08", 24*time.Hour)
	assert.ErrorAs(t, err, &nf, "other steps are stored separately")

	_, err = svc.StoredWell(ctx, "missing", "A08", 0)
	assert.ErrorAs(t, err, &nf)
}

func TestResampleService_ResampleDatasetRejects(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	svc := NewResampleService(repo, logger, m, DefaultResampleOptions())
	ctx := context.Background()

	_, err := svc.ResampleDataset(ctx, "missing", GridRequest{})
	var nf *repository.NotFoundError
	assert.ErrorAs(t, err, &nf)

	require.NoError(t, repo.CreateDataset(ctx, &models.Dataset{ID: "plot", Kind: models.DatasetKindNexus}))
	_, err = svc.ResampleDataset(ctx, "plot", GridRequest{})
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	id := ingestSample(t, repo, logger, m)
	repo.SaveErr = errors.New("read only")
	_, err = svc.ResampleDataset(ctx, id, GridRequest{})
	assert.ErrorContains(t, err, "read only")
}

func TestWellService(t *testing.T) {
	repo, logger, m := newTestDeps(t)
	id := ingestSample(t, repo, logger, m)
	svc := NewWellService(repo, logger, m)
	ctx := context.Background()

	datasets, total, err := svc.ListDatasets(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, id, datasets[0].ID)

	wells, err := svc.ListWells(ctx, id)
	require.NoError(t, err)
	require.Len(t, wells, 2)
	assert.Equal(t, models.WellSummary{
		Well:            "B01",
		SampleCount:     2,
		FirstObservedAt: day0,
		LastObservedAt:  day0.Add(48 * time.Hour),
	}, wells[1])

	well := "A08"
	obs, total, err := svc.GetObservations(ctx, repository.ObservationFilter{DatasetID: id, Well: &well, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, obs, 1)

	_, err = svc.ListWells(ctx, "missing")
	var nf *repository.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, _, err = svc.GetNexusRecords(ctx, repository.NexusFilter{DatasetID: "missing"})
	assert.ErrorAs(t, err, &nf)

	assert.NoError(t, svc.HealthCheck(ctx))
	repo.HealthErr = errors.New("down")
	assert.Error(t, svc.HealthCheck(ctx))
}
