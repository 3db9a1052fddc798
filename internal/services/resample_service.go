package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"wellstep/internal/models"
	"wellstep/internal/repository"
	"wellstep/internal/timeseries"
	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

// ResampleOptions holds the default grid and the fan-out width
type ResampleOptions struct {
	Step    time.Duration
	Points  int
	Workers int
}

// DefaultResampleOptions returns the 6-hour, 116-point grid with four workers
func DefaultResampleOptions() ResampleOptions {
	return ResampleOptions{
		Step:    models.DefaultGridStep,
		Points:  models.DefaultGridPoints,
		Workers: 4,
	}
}

// GridRequest overrides parts of the default grid. Zero values keep the
// defaults; a nil Start anchors each well at its first sample.
type GridRequest struct {
	Start  *time.Time
	Step   time.Duration
	Points int
}

// ResampleService resamples well series onto fixed grids
type ResampleService struct {
	repo    repository.WellRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	opts    ResampleOptions
}

// NewResampleService creates a new resample service. repo may be nil when
// only ResampleWells is used.
func NewResampleService(repo repository.WellRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, opts ResampleOptions) *ResampleService {
	def := DefaultResampleOptions()
	if opts.Step <= 0 {
		opts.Step = def.Step
	}
	if opts.Points <= 0 {
		opts.Points = def.Points
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	return &ResampleService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		opts:    opts,
	}
}

// Options returns the effective defaults
func (s *ResampleService) Options() ResampleOptions {
	return s.opts
}

func (s *ResampleService) grid(req GridRequest) (time.Duration, int) {
	step, points := req.Step, req.Points
	if step == 0 {
		step = s.opts.Step
	}
	if points == 0 {
		points = s.opts.Points
	}
	return step, points
}

// ResampleWells resamples every series in parallel. The result has one entry
// per input series, in input order.
func (s *ResampleService) ResampleWells(ctx context.Context, series []*models.WellSeries, req GridRequest) ([]*models.ResampledSeries, error) {
	timer := s.metrics.NewTimer(s.metrics.ResampleDuration)
	defer timer.ObserveDuration()

	step, points := s.grid(req)
	results := make([]*models.ResampledSeries, len(series))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, ws := range series {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			grid, err := timeseries.GridFor(ws, req.Start, step, points)
			if err == nil {
				results[i], err = timeseries.Resample(ws, grid)
			}
			if err != nil {
				s.metrics.RecordResampleError(resampleReason(err))
				return fmt.Errorf("well %s: %w", wellName(ws), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn(ctx, "[RESAMPLE_ERROR] Resampling failed", logging.Fields{
			"wells": len(series),
			"error": err.Error(),
		})
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += r.Len()
	}
	s.metrics.ResampledSeriesTotal.Add(float64(len(results)))
	s.metrics.ResampledPointsTotal.Add(float64(total))

	s.logger.Debug(ctx, "[RESAMPLE_COMPLETE] Wells resampled", logging.Fields{
		"wells":        len(results),
		"points":       total,
		"step_seconds": int64(step / time.Second),
	})

	return results, nil
}

// ResampleWell loads one stored well and resamples it
func (s *ResampleService) ResampleWell(ctx context.Context, datasetID, well string, req GridRequest) (*models.ResampledSeries, error) {
	series, err := s.repo.GetWellSeries(ctx, datasetID, well)
	if err != nil {
		return nil, err
	}

	results, err := s.ResampleWells(ctx, []*models.WellSeries{series}, req)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// StoredWell returns the grid points ResampleDataset saved for one well.
// A zero step selects the configured default.
func (s *ResampleService) StoredWell(ctx context.Context, datasetID, well string, step time.Duration) (*models.ResampledSeries, error) {
	if step == 0 {
		step = s.opts.Step
	}

	dataset, err := s.repo.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	points, err := s.repo.GetResampled(ctx, datasetID, well, int64(step/time.Second))
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, &repository.NotFoundError{Resource: "stored grid of well", ID: fmt.Sprintf("%s (step %s)", well, step)}
	}

	s.logger.Debug(ctx, "[RESAMPLE_STORED] Loaded stored grid points", logging.Fields{
		"dataset_id": datasetID,
		"well":       well,
		"points":     len(points),
	})

	return models.SeriesFromPoints(well, dataset.Fields, points), nil
}

// ResampleDataset resamples every well of a stored dataset and saves the grid points
func (s *ResampleService) ResampleDataset(ctx context.Context, datasetID string, req GridRequest) ([]*models.ResampledSeries, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[RESAMPLE_START] Starting dataset resampling", logging.Fields{
		"dataset_id": datasetID,
		"stage":      "INITIALIZATION",
	})

	dataset, err := s.repo.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset.Kind != models.DatasetKindHistory {
		return nil, &models.ValidationError{
			Field:   "dataset",
			Value:   datasetID,
			Message: fmt.Sprintf("%s datasets have no well series", dataset.Kind),
		}
	}

	wells, err := s.repo.ListWells(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wells: %w", err)
	}

	series := make([]*models.WellSeries, 0, len(wells))
	for _, w := range wells {
		ws, err := s.repo.GetWellSeries(ctx, datasetID, w.Well)
		if err != nil {
			return nil, fmt.Errorf("failed to load well %s: %w", w.Well, err)
		}
		series = append(series, ws)
	}

	results, err := s.ResampleWells(ctx, series, req)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if err := s.repo.SaveResampled(ctx, r.Points(datasetID)); err != nil {
			s.logger.Error(ctx, "[RESAMPLE_SAVE_ERROR] Failed to save grid points", logging.Fields{
				"dataset_id": datasetID,
				"well":       r.Well,
			}, err)
			return nil, fmt.Errorf("failed to save well %s: %w", r.Well, err)
		}

		s.logger.Info(ctx, "[RESAMPLE_WELL_COMPLETE] Well resampled", logging.Fields{
			"dataset_id": datasetID,
			"well":       r.Well,
			"points":     r.Len(),
		})
	}

	s.logger.Info(ctx, "[RESAMPLE_COMPLETE] Dataset resampling completed", logging.Fields{
		"dataset_id":       datasetID,
		"total_wells":      len(results),
		"duration_seconds": time.Since(startTime).Seconds(),
		"stage":            "COMPLETE",
	})

	return results, nil
}

// IsResampleError reports whether err comes from the series itself rather
// than from the request or storage
func IsResampleError(err error) bool {
	return errors.Is(err, timeseries.ErrEmptySeries) ||
		errors.Is(err, timeseries.ErrUnorderedSeries) ||
		errors.Is(err, timeseries.ErrLengthMismatch)
}

func resampleReason(err error) string {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, timeseries.ErrEmptySeries):
		return "empty_series"
	case errors.Is(err, timeseries.ErrUnorderedSeries):
		return "unordered_series"
	case errors.As(err, &verr):
		return "invalid_grid"
	default:
		return "other"
	}
}

func wellName(ws *models.WellSeries) string {
	if ws == nil {
		return "<nil>"
	}
	return ws.Well
}
