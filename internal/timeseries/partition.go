package timeseries

import "wellstep/internal/models"

// Partition groups observations by well. Groups come out in order of the
// first appearance of each well; records keep their input order and are
// re-indexed from 0 within the group. Every series shares fields.
func Partition(fields []string, observations []*models.Observation) []*models.WellSeries {
	index := make(map[string]int)
	var series []*models.WellSeries

	for _, obs := range observations {
		i, ok := index[obs.Well]
		if !ok {
			i = len(series)
			index[obs.Well] = i
			series = append(series, &models.WellSeries{
				Well:   obs.Well,
				Fields: fields,
			})
		}

		record := *obs
		record.RowIndex = len(series[i].Records)
		series[i].Records = append(series[i].Records, &record)
	}

	return series
}
