// Package repositorytest provides an in-memory WellRepository for tests.
package repositorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wellstep/internal/models"
	"wellstep/internal/repository"
)

// Memory is a WellRepository backed by maps. Set the *Err fields to make
// the matching operation fail.
type Memory struct {
	mu sync.Mutex

	datasets     map[string]*models.Dataset
	order        []string
	observations map[string][]*models.Observation
	resampled    map[string][]*models.ResampledPoint
	nexus        map[string][]*models.NexusRecord

	CreateDatasetErr error
	BatchErr         error
	SaveErr          error
	HealthErr        error

	Batches int
	Deleted []string
}

var _ repository.WellRepository = (*Memory)(nil)

// New returns an empty repository
func New() *Memory {
	return &Memory{
		datasets:     make(map[string]*models.Dataset),
		observations: make(map[string][]*models.Observation),
		resampled:    make(map[string][]*models.ResampledPoint),
		nexus:        make(map[string][]*models.NexusRecord),
	}
}

func (m *Memory) CreateDataset(_ context.Context, dataset *models.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateDatasetErr != nil {
		return m.CreateDatasetErr
	}
	d := *dataset
	m.datasets[d.ID] = &d
	m.order = append(m.order, d.ID)
	return nil
}

func (m *Memory) GetDataset(_ context.Context, id string) (*models.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.datasets[id]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "dataset", ID: id}
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) ListDatasets(_ context.Context, limit, offset int) ([]*models.Dataset, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Dataset
	for i := len(m.order) - 1; i >= 0; i-- {
		if d, ok := m.datasets[m.order[i]]; ok {
			out = append(out, d)
		}
	}
	total := len(out)
	return page(out, limit, offset), total, nil
}

func (m *Memory) DeleteDataset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasets[id]; !ok {
		return &repository.NotFoundError{Resource: "dataset", ID: id}
	}
	delete(m.datasets, id)
	delete(m.observations, id)
	delete(m.nexus, id)
	for key, points := range m.resampled {
		if len(points) > 0 && points[0].DatasetID == id {
			delete(m.resampled, key)
		}
	}
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *Memory) CreateObservationsBatch(_ context.Context, observations []*models.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BatchErr != nil {
		return m.BatchErr
	}
	m.Batches++
	for _, obs := range observations {
		cp := *obs
		m.observations[obs.DatasetID] = append(m.observations[obs.DatasetID], &cp)
	}
	return nil
}

func (m *Memory) ListWells(_ context.Context, datasetID string) ([]models.WellSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var wells []models.WellSummary
	index := make(map[string]int)
	for _, obs := range m.observations[datasetID] {
		i, ok := index[obs.Well]
		if !ok {
			index[obs.Well] = len(wells)
			wells = append(wells, models.WellSummary{
				Well:            obs.Well,
				FirstObservedAt: obs.ObservedAt,
				LastObservedAt:  obs.ObservedAt,
			})
			i = len(wells) - 1
		}
		w := &wells[i]
		w.SampleCount++
		if obs.ObservedAt.Before(w.FirstObservedAt) {
			w.FirstObservedAt = obs.ObservedAt
		}
		if obs.ObservedAt.After(w.LastObservedAt) {
			w.LastObservedAt = obs.ObservedAt
		}
	}
	return wells, nil
}

func (m *Memory) GetWellSeries(_ context.Context, datasetID, well string) (*models.WellSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.datasets[datasetID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "dataset", ID: datasetID}
	}
	series := &models.WellSeries{Well: well, Fields: append([]string(nil), d.Fields...)}
	for _, obs := range m.observations[datasetID] {
		if obs.Well != well {
			continue
		}
		cp := *obs
		cp.RowIndex = len(series.Records)
		series.Records = append(series.Records, &cp)
	}
	if len(series.Records) == 0 {
		return nil, &repository.NotFoundError{Resource: "well", ID: datasetID + "/" + well}
	}
	return series, nil
}

func (m *Memory) GetObservations(_ context.Context, filter repository.ObservationFilter) ([]*models.Observation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Observation
	for _, obs := range m.observations[filter.DatasetID] {
		if filter.Well != nil && obs.Well != *filter.Well {
			continue
		}
		if filter.StartDate != nil && obs.ObservedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && obs.ObservedAt.After(*filter.EndDate) {
			continue
		}
		out = append(out, obs)
	}
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

func (m *Memory) SaveResampled(_ context.Context, points []*models.ResampledPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	sets := make(map[string][]*models.ResampledPoint)
	for _, p := range points {
		key := resampledKey(p.DatasetID, p.Well, p.StepSeconds)
		sets[key] = append(sets[key], p)
	}
	for key, set := range sets {
		sort.Slice(set, func(i, j int) bool { return set[i].GridIndex < set[j].GridIndex })
		m.resampled[key] = set
	}
	return nil
}

func (m *Memory) GetResampled(_ context.Context, datasetID, well string, stepSeconds int64) ([]*models.ResampledPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.ResampledPoint(nil), m.resampled[resampledKey(datasetID, well, stepSeconds)]...), nil
}

func (m *Memory) CreateNexusRecordsBatch(_ context.Context, records []*models.NexusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BatchErr != nil {
		return m.BatchErr
	}
	m.Batches++
	for _, rec := range records {
		cp := *rec
		m.nexus[rec.DatasetID] = append(m.nexus[rec.DatasetID], &cp)
	}
	return nil
}

func (m *Memory) GetNexusRecords(_ context.Context, filter repository.NexusFilter) ([]*models.NexusRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.NexusRecord
	for _, rec := range m.nexus[filter.DatasetID] {
		if filter.ClassName != nil && rec.ClassName != *filter.ClassName {
			continue
		}
		if filter.InstanceName != nil && rec.InstanceName != *filter.InstanceName {
			continue
		}
		if filter.VarName != nil && rec.VarName != *filter.VarName {
			continue
		}
		out = append(out, rec)
	}
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

func (m *Memory) HealthCheck(context.Context) error {
	return m.HealthErr
}

// Observations returns the stored observations of a dataset
func (m *Memory) Observations(datasetID string) []*models.Observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Observation(nil), m.observations[datasetID]...)
}

// NexusRecords returns the stored records of a dataset
func (m *Memory) NexusRecords(datasetID string) []*models.NexusRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.NexusRecord(nil), m.nexus[datasetID]...)
}

func resampledKey(datasetID, well string, step int64) string {
	return fmt.Sprintf("%s/%s/%d", datasetID, well, step)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
