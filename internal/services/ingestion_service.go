package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wellstep/internal/history"
	"wellstep/internal/models"
	"wellstep/internal/nexus"
	"wellstep/internal/repository"
	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

// DefaultBatchSize is used when a non-positive batch size is requested
const DefaultBatchSize = 1000

// IngestionService loads history CSVs and Nexus plot files into datasets
type IngestionService struct {
	repo    repository.WellRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	adapter *nexus.Adapter
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	DatasetID         string
	Kind              models.DatasetKind
	Source            string
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Wells             int
	Fields            []string
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service reading plot files from disk
func NewIngestionService(repo repository.WellRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		adapter: nexus.NewAdapter(nil),
	}
}

// WithNexusAdapter replaces the adapter used by IngestNexus
func (s *IngestionService) WithNexusAdapter(adapter *nexus.Adapter) *IngestionService {
	s.adapter = adapter
	return s
}

// IngestHistory reads a history CSV and stores its observations as a new dataset
func (s *IngestionService) IngestHistory(ctx context.Context, path string, opts history.Options, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()
	kind := models.DatasetKindHistory

	s.logger.Info(ctx, "[INGEST_START] Starting history ingestion", logging.Fields{
		"file_path":  path,
		"batch_size": batchSize,
		"lenient":    opts.Lenient,
		"stage":      "INITIALIZATION",
	})

	table, err := history.ReadFile(path, opts)
	if err != nil {
		s.metrics.RecordIngestionError("parse_error")
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	dataset := newDataset(kind, path, len(table.Observations), table.Fields)
	result := &IngestionResult{
		DatasetID:     dataset.ID,
		Kind:          kind,
		Source:        path,
		TotalRecords:  len(table.Observations) + len(table.Rejected),
		FailedRecords: len(table.Rejected),
		Fields:        table.Fields,
		Errors:        make([]string, 0, len(table.Rejected)),
	}
	for _, rejected := range table.Rejected {
		result.Errors = append(result.Errors, rejected.Error())
		s.metrics.RecordIngestionError("validation_error")
	}

	if err := s.repo.CreateDataset(ctx, dataset); err != nil {
		s.metrics.RecordIngestionError("dataset_error")
		return nil, err
	}

	wells := make(map[string]struct{})
	for _, obs := range table.Observations {
		obs.DatasetID = dataset.ID
		obs.CreatedAt = dataset.CreatedAt
		wells[obs.Well] = struct{}{}
	}
	result.Wells = len(wells)

	err = inBatches(len(table.Observations), batchSize, func(lo, hi int) error {
		if err := s.repo.CreateObservationsBatch(ctx, table.Observations[lo:hi]); err != nil {
			return err
		}
		result.SuccessfulRecords += hi - lo
		return nil
	})
	if err != nil {
		s.abort(ctx, dataset.ID, err)
		return nil, fmt.Errorf("failed to insert batch: %w", err)
	}

	s.complete(ctx, result, startTime)
	return result, nil
}

// IngestNexus flattens a Nexus plot file and stores its records as a new dataset
func (s *IngestionService) IngestNexus(ctx context.Context, path string, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()
	kind := models.DatasetKindNexus

	s.logger.Info(ctx, "[INGEST_START] Starting Nexus plot ingestion", logging.Fields{
		"file_path":  path,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	records, err := s.adapter.Load(path)
	if err != nil {
		s.metrics.RecordIngestionError("decode_error")
		return nil, fmt.Errorf("failed to load plot file: %w", err)
	}
	s.metrics.NexusRecordsDecoded.Add(float64(len(records)))

	dataset := newDataset(kind, path, len(records), models.NexusColumns)
	result := &IngestionResult{
		DatasetID:    dataset.ID,
		Kind:         kind,
		Source:       path,
		TotalRecords: len(records),
		Fields:       models.NexusColumns,
		Errors:       make([]string, 0),
	}

	if err := s.repo.CreateDataset(ctx, dataset); err != nil {
		s.metrics.RecordIngestionError("dataset_error")
		return nil, err
	}

	instances := make(map[string]struct{})
	for _, rec := range records {
		rec.DatasetID = dataset.ID
		instances[rec.ClassName+"/"+rec.InstanceName] = struct{}{}
	}
	result.Wells = len(instances)

	err = inBatches(len(records), batchSize, func(lo, hi int) error {
		if err := s.repo.CreateNexusRecordsBatch(ctx, records[lo:hi]); err != nil {
			return err
		}
		result.SuccessfulRecords += hi - lo
		return nil
	})
	if err != nil {
		s.abort(ctx, dataset.ID, err)
		return nil, fmt.Errorf("failed to insert batch: %w", err)
	}

	s.complete(ctx, result, startTime)
	return result, nil
}

func newDataset(kind models.DatasetKind, source string, rows int, fields []string) *models.Dataset {
	return &models.Dataset{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		RowCount:  rows,
		Fields:    append([]string{}, fields...),
		CreatedAt: time.Now().UTC(),
	}
}

// abort drops a partially written dataset
func (s *IngestionService) abort(ctx context.Context, datasetID string, cause error) {
	s.metrics.RecordIngestionError("batch_error")
	s.logger.Error(ctx, "[INGEST_BATCH_ERROR] Batch insert failed, removing dataset", logging.Fields{
		"dataset_id": datasetID,
		"stage":      "BATCH_INSERT",
	}, cause)

	if err := s.repo.DeleteDataset(ctx, datasetID); err != nil {
		s.logger.Error(ctx, "[INGEST_CLEANUP_ERROR] Failed to remove partial dataset", logging.Fields{
			"dataset_id": datasetID,
		}, err)
	}
}

func (s *IngestionService) complete(ctx context.Context, result *IngestionResult, startTime time.Time) {
	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.WithLabelValues(string(result.Kind)).Observe(result.Duration.Seconds())

	perSecond := 0.0
	if secs := result.Duration.Seconds(); secs > 0 {
		perSecond = float64(result.SuccessfulRecords) / secs
	}

	s.logger.Info(ctx, "[INGEST_COMPLETE] Ingestion completed", logging.Fields{
		"dataset_id":         result.DatasetID,
		"kind":               string(result.Kind),
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"wells":              result.Wells,
		"duration_seconds":   result.Duration.Seconds(),
		"records_per_second": perSecond,
		"stage":              "COMPLETE",
	})
}

// inBatches calls fn over consecutive [lo, hi) windows of at most size items
func inBatches(n, size int, fn func(lo, hi int) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		if err := fn(lo, hi); err != nil {
			return err
		}
	}
	return nil
}
