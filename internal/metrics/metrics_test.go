package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementOutcome("query", "ok")
	m.IncrementOutcome("query", "ok")
	m.IncrementOutcome("query", "NOT_FOUND")
	m.IncrementCropped()
	m.ObserveStage("match", 10*time.Millisecond)
	m.ObserveMatched(12)
	m.ObserveResultRows(3)
	m.IncrementHTTPRequest("/api/subjects/{id}/meta", 404)

	assert.Equal(t, 2.0, counterValue(t, m.QueryOutcome.WithLabelValues("query", "ok")))
	assert.Equal(t, 1.0, counterValue(t, m.QueryOutcome.WithLabelValues("query", "NOT_FOUND")))
	assert.Equal(t, 1.0, counterValue(t, m.QueriesCropped))
	assert.Equal(t, 1.0, counterValue(t, m.HTTPRequests.WithLabelValues("/api/subjects/{id}/meta", "4xx")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "tablebuilder_matched_observations")
	assert.Contains(t, names, "tablebuilder_stage_duration_seconds")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementOutcome("query", "ok")
		m.ObserveStage("match", time.Second)
		m.IncrementCropped()
		m.ObserveMatched(1)
		m.ObserveResultRows(1)
		m.IncrementHTTPRequest("/", 200)
	})
}
