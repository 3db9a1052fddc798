package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wellstep/internal/models"
	"wellstep/pkg/database"
	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

// WellRepository provides data access for datasets, well observations,
// resampled grids and flattened Nexus records
type WellRepository interface {
	// Dataset operations
	CreateDataset(ctx context.Context, dataset *models.Dataset) error
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	ListDatasets(ctx context.Context, limit, offset int) ([]*models.Dataset, int, error)
	DeleteDataset(ctx context.Context, id string) error

	// Observation operations
	CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error
	ListWells(ctx context.Context, datasetID string) ([]models.WellSummary, error)
	GetWellSeries(ctx context.Context, datasetID, well string) (*models.WellSeries, error)
	GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.Observation, int, error)

	// Resampled grid operations
	SaveResampled(ctx context.Context, points []*models.ResampledPoint) error
	GetResampled(ctx context.Context, datasetID, well string, stepSeconds int64) ([]*models.ResampledPoint, error)

	// Nexus operations
	CreateNexusRecordsBatch(ctx context.Context, records []*models.NexusRecord) error
	GetNexusRecords(ctx context.Context, filter NexusFilter) ([]*models.NexusRecord, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// ObservationFilter defines filters for querying observations
type ObservationFilter struct {
	DatasetID string
	Well      *string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// NexusFilter defines filters for querying flattened Nexus records
type NexusFilter struct {
	DatasetID    string
	ClassName    *string
	InstanceName *string
	VarName      *string
	Limit        int
	Offset       int
}

// wellRepository implements WellRepository
type wellRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWellRepository creates a new well repository
func NewWellRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) WellRepository {
	return &wellRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateDataset inserts a dataset row
func (r *wellRepository) CreateDataset(ctx context.Context, dataset *models.Dataset) error {
	query := `
		INSERT INTO datasets (id, kind, source, row_count, fields, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, "insert_dataset", query,
		dataset.ID,
		dataset.Kind,
		dataset.Source,
		dataset.RowCount,
		dataset.Fields,
		dataset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_DATASET] Dataset created", logging.Fields{
		"dataset_id": dataset.ID,
		"kind":       dataset.Kind,
		"row_count":  dataset.RowCount,
	})

	return nil
}

// GetDataset retrieves a dataset by ID
func (r *wellRepository) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	query := `
		SELECT id, kind, source, row_count, fields, created_at
		FROM datasets
		WHERE id = $1
	`

	var dataset models.Dataset
	err := r.db.GetContext(ctx, "get_dataset", &dataset, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "dataset", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	return &dataset, nil
}

// ListDatasets retrieves datasets, newest first
func (r *wellRepository) ListDatasets(ctx context.Context, limit, offset int) ([]*models.Dataset, int, error) {
	var total int
	if err := r.db.GetContext(ctx, "count_datasets", &total, `SELECT COUNT(*) FROM datasets`); err != nil {
		return nil, 0, fmt.Errorf("failed to count datasets: %w", err)
	}

	query := `
		SELECT id, kind, source, row_count, fields, created_at
		FROM datasets
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	var datasets []*models.Dataset
	if err := r.db.SelectContext(ctx, "list_datasets", &datasets, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list datasets: %w", err)
	}

	return datasets, total, nil
}

// DeleteDataset removes a dataset and, by cascade, everything ingested into it
func (r *wellRepository) DeleteDataset(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "delete_dataset", `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{Resource: "dataset", ID: id}
	}
	return nil
}

// CreateObservationsBatch inserts observations in a single transaction
func (r *wellRepository) CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(observations)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Observation batch inserted", logging.Fields{
			"count":       len(observations),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (
			dataset_id, well, observed_at, row_index, measurements, attributes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		_, err := stmt.ExecContext(ctx,
			obs.DatasetID,
			obs.Well,
			obs.ObservedAt,
			obs.RowIndex,
			obs.Measurements,
			obs.Attributes,
			obs.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert observation row %d: %w", obs.RowIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.WithLabelValues(string(models.DatasetKindHistory)).Add(float64(len(observations)))

	return nil
}

// ListWells summarizes the wells of a dataset in order of first appearance
func (r *wellRepository) ListWells(ctx context.Context, datasetID string) ([]models.WellSummary, error) {
	query := `
		SELECT well,
		       COUNT(*) AS sample_count,
		       MIN(observed_at) AS first_observed_at,
		       MAX(observed_at) AS last_observed_at
		FROM observations
		WHERE dataset_id = $1
		GROUP BY well
		ORDER BY MIN(row_index)
	`

	var wells []models.WellSummary
	if err := r.db.SelectContext(ctx, "list_wells", &wells, query, datasetID); err != nil {
		return nil, fmt.Errorf("failed to list wells: %w", err)
	}

	return wells, nil
}

// GetWellSeries loads every observation of one well in row order, re-indexed from 0
func (r *wellRepository) GetWellSeries(ctx context.Context, datasetID, well string) (*models.WellSeries, error) {
	dataset, err := r.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, dataset_id, well, observed_at, row_index, measurements, attributes, created_at
		FROM observations
		WHERE dataset_id = $1 AND well = $2
		ORDER BY row_index
	`

	var records []*models.Observation
	if err := r.db.SelectContext(ctx, "get_well_series", &records, query, datasetID, well); err != nil {
		return nil, fmt.Errorf("failed to get well series: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: "well", ID: datasetID + "/" + well}
	}

	for i, rec := range records {
		rec.RowIndex = i
	}

	return &models.WellSeries{
		Well:    well,
		Fields:  append([]string(nil), dataset.Fields...),
		Records: records,
	}, nil
}

// GetObservations retrieves observations with filtering and pagination
func (r *wellRepository) GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.Observation, int, error) {
	query, args := buildObservationQuery(filter)

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	if err := r.db.GetContext(ctx, "count_observations", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count observations: %w", err)
	}

	query += " ORDER BY row_index"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var observations []*models.Observation
	if err := r.db.SelectContext(ctx, "get_observations", &observations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get observations: %w", err)
	}

	return observations, totalCount, nil
}

func buildObservationQuery(filter ObservationFilter) (string, []interface{}) {
	query := `
		SELECT id, dataset_id, well, observed_at, row_index, measurements, attributes, created_at
		FROM observations
		WHERE dataset_id = $1
	`
	args := []interface{}{filter.DatasetID}
	argNum := 2

	if filter.Well != nil {
		query += fmt.Sprintf(" AND well = $%d", argNum)
		args = append(args, *filter.Well)
		argNum++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND observed_at >= $%d", argNum)
		args = append(args, *filter.StartDate)
		argNum++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND observed_at <= $%d", argNum)
		args = append(args, *filter.EndDate)
	}

	return query, args
}

// SaveResampled stores grid points. Every (dataset, well, step) set present
// in points replaces the previously stored set as a whole.
func (r *wellRepository) SaveResampled(ctx context.Context, points []*models.ResampledPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	type setKey struct {
		datasetID string
		well      string
		step      int64
	}
	cleared := make(map[setKey]bool)
	for _, p := range points {
		key := setKey{p.DatasetID, p.Well, p.StepSeconds}
		if cleared[key] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM resampled_points
			WHERE dataset_id = $1 AND well = $2 AND step_seconds = $3
		`, key.datasetID, key.well, key.step); err != nil {
			return fmt.Errorf("failed to clear grid points of well %s: %w", key.well, err)
		}
		cleared[key] = true
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO resampled_points (
			dataset_id, well, step_seconds, grid_index, grid_time, measurements, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range points {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		_, err := stmt.ExecContext(ctx,
			p.DatasetID,
			p.Well,
			p.StepSeconds,
			p.GridIndex,
			p.GridTime,
			p.Measurements,
			p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert grid point %s/%d: %w", p.Well, p.GridIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_SAVE_RESAMPLED] Grid points stored", logging.Fields{
		"count": len(points),
		"sets":  len(cleared),
		"well":  points[0].Well,
	})

	return nil
}

// GetResampled retrieves stored grid points of one well for one step
func (r *wellRepository) GetResampled(ctx context.Context, datasetID, well string, stepSeconds int64) ([]*models.ResampledPoint, error) {
	query := `
		SELECT id, dataset_id, well, step_seconds, grid_index, grid_time, measurements, created_at
		FROM resampled_points
		WHERE dataset_id = $1 AND well = $2 AND step_seconds = $3
		ORDER BY grid_index
	`

	var points []*models.ResampledPoint
	if err := r.db.SelectContext(ctx, "get_resampled", &points, query, datasetID, well, stepSeconds); err != nil {
		return nil, fmt.Errorf("failed to get resampled points: %w", err)
	}

	return points, nil
}

// CreateNexusRecordsBatch inserts flattened plot records in a single transaction
func (r *wellRepository) CreateNexusRecordsBatch(ctx context.Context, records []*models.NexusRecord) error {
	if len(records) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.metrics.IngestionBatchSize.Observe(float64(len(records)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Nexus batch inserted", logging.Fields{
			"count":       len(records),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nexus_records (
			dataset_id, row_index, timestep, time, classname, instancename, varname, value
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.DatasetID,
			rec.RowIndex,
			rec.Timestep,
			rec.Time,
			rec.ClassName,
			rec.InstanceName,
			rec.VarName,
			rec.Value,
		)
		if err != nil {
			return fmt.Errorf("failed to insert nexus record %d: %w", rec.RowIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.WithLabelValues(string(models.DatasetKindNexus)).Add(float64(len(records)))

	return nil
}

// GetNexusRecords retrieves flattened records in file order with filtering and pagination
func (r *wellRepository) GetNexusRecords(ctx context.Context, filter NexusFilter) ([]*models.NexusRecord, int, error) {
	query, args := buildNexusQuery(filter)

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	if err := r.db.GetContext(ctx, "count_nexus_records", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count nexus records: %w", err)
	}

	query += " ORDER BY row_index"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var records []*models.NexusRecord
	if err := r.db.SelectContext(ctx, "get_nexus_records", &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get nexus records: %w", err)
	}

	return records, totalCount, nil
}

func buildNexusQuery(filter NexusFilter) (string, []interface{}) {
	query := `
		SELECT id, dataset_id, row_index, timestep, time, classname, instancename, varname, value
		FROM nexus_records
		WHERE dataset_id = $1
	`
	args := []interface{}{filter.DatasetID}

	for _, f := range []struct {
		column string
		value  *string
	}{
		{"classname", filter.ClassName},
		{"instancename", filter.InstanceName},
		{"varname", filter.VarName},
	} {
		if f.value == nil {
			continue
		}
		args = append(args, *f.value)
		query += fmt.Sprintf(" AND %s = $%d", f.column, len(args))
	}

	return query, args
}

// HealthCheck performs a repository health check
func (r *wellRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
