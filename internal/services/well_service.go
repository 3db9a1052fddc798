package services

import (
	"context"

	"wellstep/internal/models"
	"wellstep/internal/repository"
	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

// WellService handles read access to datasets, wells and Nexus records
type WellService struct {
	repo    repository.WellRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWellService creates a new well service
func NewWellService(repo repository.WellRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WellService {
	return &WellService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListDatasets retrieves ingested datasets, newest first
func (s *WellService) ListDatasets(ctx context.Context, limit, offset int) ([]*models.Dataset, int, error) {
	return s.repo.ListDatasets(ctx, limit, offset)
}

// GetDataset retrieves one dataset
func (s *WellService) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	return s.repo.GetDataset(ctx, id)
}

// ListWells summarizes the wells of a dataset in order of first appearance
func (s *WellService) ListWells(ctx context.Context, datasetID string) ([]models.WellSummary, error) {
	if _, err := s.repo.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}
	return s.repo.ListWells(ctx, datasetID)
}

// GetObservations retrieves raw observations with filtering
func (s *WellService) GetObservations(ctx context.Context, filter repository.ObservationFilter) ([]*models.Observation, int, error) {
	if _, err := s.repo.GetDataset(ctx, filter.DatasetID); err != nil {
		return nil, 0, err
	}
	return s.repo.GetObservations(ctx, filter)
}

// GetNexusRecords retrieves flattened plot records with filtering
func (s *WellService) GetNexusRecords(ctx context.Context, filter repository.NexusFilter) ([]*models.NexusRecord, int, error) {
	if _, err := s.repo.GetDataset(ctx, filter.DatasetID); err != nil {
		return nil, 0, err
	}
	return s.repo.GetNexusRecords(ctx, filter)
}

// HealthCheck checks the backing store
func (s *WellService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
