package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/teachers/classrooms":             "/api/teachers/classrooms",
		"/api/teachers/classrooms/12":          "/api/teachers/classrooms/{id}",
		"/api/teachers/classrooms/12/students": "/api/teachers/classrooms/{id}/students",
		"/api/organizations/3/staff/44":        "/api/organizations/{id}/staff/{id}",
		"/api/teachers/programs/1/2":           "/api/teachers/programs/{id}/{id}",
	}
	for in, want := range tests {
		if got := NormalizePath(in); got != want {
			t.Fatalf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecordersIncrementCounters(t *testing.T) {
	m := NewClientMetrics()
	m.RecordRequest("GET", "/api/teachers/classrooms/5", 200, 10*time.Millisecond)
	m.RecordRequest("GET", "/api/teachers/classrooms/6", 200, 10*time.Millisecond)
	m.RecordRetry("upload-analysis")
	m.RecordAnalysis("persisted")

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/api/teachers/classrooms/{id}", "200")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.retriesTotal.WithLabelValues("upload-analysis")); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.analysesTotal.WithLabelValues("persisted")); got != 1 {
		t.Fatalf("expected 1 analysis, got %v", got)
	}
}

func TestWriteToFile(t *testing.T) {
	m := NewClientMetrics()
	m.RecordAnalysis("preview")

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := m.WriteToFile(path); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	if !strings.Contains(string(raw), `uwu_classroom_analysis_runs_total{outcome="preview"} 1`) {
		t.Fatalf("unexpected metrics output:\n%s", raw)
	}
}
