package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the series name{labels...}, given as pairs.
func sample(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if !matches(metric, labels) {
				continue
			}
			switch fam.GetType() {
			case dto.MetricType_COUNTER:
				return metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

func matches(metric *dto.Metric, labels []string) bool {
	for i := 0; i+1 < len(labels); i += 2 {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	clock := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return clock }

	tracker := m.Track("staging:sweep")
	clock = clock.Add(2 * time.Second)
	assert.NoError(t, tracker.End(nil))

	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("staging:sweep").End(boom), boom)

	assert.Equal(t, 1.0, sample(t, reg, "console_jobs_total", "job", "staging:sweep", "status", "success"))
	assert.Equal(t, 1.0, sample(t, reg, "console_jobs_total", "job", "staging:sweep", "status", "failure"))
	assert.Equal(t, 1.0, sample(t, reg, "console_jobs_failures_total", "job", "staging:sweep"))
	assert.Equal(t, float64(1_700_000_002), sample(t, reg, "console_job_last_success_timestamp_seconds", "job", "staging:sweep"))
}

func TestAddSweptIgnoresEmptySweeps(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddSwept(0)
	m.AddSwept(3)
	assert.Equal(t, 3.0, sample(t, reg, "console_staging_swept_files_total"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("x").End(boom), boom)
	m.AddSwept(5)
}
