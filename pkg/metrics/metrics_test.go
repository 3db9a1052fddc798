package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_IsolatedRegistries(t *testing.T) {
	// Two collectors with the same namespace must not collide when registries differ.
	first := NewCollectorWithRegistry("wellstep_test", prometheus.NewRegistry())
	second := NewCollectorWithRegistry("wellstep_test", prometheus.NewRegistry())

	first.ResampledSeriesTotal.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.ResampledSeriesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.ResampledSeriesTotal))
}

func TestCollector_RecordHelpers(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegistry("wellstep_test", reg)

	c.RecordAPIRequest("/api/datasets", "GET", "200")
	c.RecordAPIRequest("/api/datasets", "GET", "200")
	c.RecordAPIError("not_found", "/api/datasets/{id}")
	c.RecordIngestionError("parse_error")
	c.RecordResampleError("empty_series")
	c.RecordDBError("query_error")
	c.UpdateDBConnectionPool(3, 2, 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/datasets", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIErrorsTotal.WithLabelValues("not_found", "/api/datasets/{id}")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IngestionErrorsTotal.WithLabelValues("parse_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ResampleErrorsTotal.WithLabelValues("empty_series")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DBErrorsTotal.WithLabelValues("query_error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollectorWithRegistry("wellstep_test", prometheus.NewRegistry())

	timer := c.NewTimer(c.ResampleDuration)
	d := timer.ObserveDuration()
	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(c.ResampleDuration))

	// A nil observer only measures.
	bare := c.NewTimer(nil)
	assert.GreaterOrEqual(t, bare.ObserveDuration().Nanoseconds(), int64(0))
}
