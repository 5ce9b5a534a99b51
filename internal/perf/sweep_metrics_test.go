package perf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/machineskills/console/internal/jobs"
	"github.com/machineskills/console/jobs"
)

func TestStagingSweepThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	dir := t.TempDir()

	old := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 200; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%03d.upload", i))
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatalf("write staged file: %v", err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("age staged file: %v", err)
		}
	}

	task, err := jobs.NewStagingSweepTask(0)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	job := jobs.NewStagingSweepJob(dir, 24*time.Hour, nil, metrics)
	for i := 0; i < 10; i++ {
		if err := job.Handle(context.Background(), task); err != nil {
			t.Fatalf("sweep run %d: %v", i, err)
		}
	}

	// A directory path that is a regular file makes the sweep fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	broken := jobs.NewStagingSweepJob(blocker, time.Hour, nil, metrics)
	if err := broken.Handle(context.Background(), task); err == nil {
		t.Fatal("expected sweep of a file path to fail")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	labels := map[string]string{"job": jobs.TaskStagingSweep}
	if swept := metricValue(t, families, "console_staging_swept_files_total", nil); swept != 200 {
		t.Fatalf("expected 200 swept files, got %f", swept)
	}
	success := metricValue(t, families, "console_jobs_total", map[string]string{"job": jobs.TaskStagingSweep, "status": "success"})
	failure := metricValue(t, families, "console_jobs_failures_total", labels)
	if success != 10 || failure != 1 {
		t.Fatalf("unexpected run counts: success=%f failure=%f", success, failure)
	}
	if mean := histogramMean(t, families, "console_job_duration_seconds", labels); mean > 1.0 {
		t.Fatalf("sweep duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					return 0
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for key, want := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key && lp.GetValue() == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
