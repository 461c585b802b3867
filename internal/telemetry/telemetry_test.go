package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/bqflow/internal/domain"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "json")
	WithTaskPath(WithRunID(logger, "run-1"), "/load/users").Info("task started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "task started" {
		t.Errorf("expected msg task started, got %v", entry["msg"])
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("expected run_id run-1, got %v", entry["run_id"])
	}
	if entry["path"] != "/load/users" {
		t.Errorf("expected path /load/users, got %v", entry["path"])
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn, "text")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at WARN level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be logged")
	}
}

func TestMetrics_ObserveTask(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveTask(domain.TaskReport{Status: domain.TaskStatusSucceeded, Duration: 0.5, TotalBytesBilled: 1024})
	m.ObserveTask(domain.TaskReport{Status: domain.TaskStatusSucceeded, Duration: 1, TotalBytesBilled: 1024})
	m.ObserveTask(domain.TaskReport{Status: domain.TaskStatusFailed, Error: "boom"})

	if got := testutil.ToFloat64(m.TasksTotal.WithLabelValues("SUCCEEDED")); got != 2 {
		t.Errorf("expected 2 succeeded tasks, got %v", got)
	}
	if got := testutil.ToFloat64(m.TasksTotal.WithLabelValues("FAILED")); got != 1 {
		t.Errorf("expected 1 failed task, got %v", got)
	}
	if got := testutil.ToFloat64(m.BytesBilled); got != 2048 {
		t.Errorf("expected 2048 bytes billed, got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTask(domain.TaskReport{Status: domain.TaskStatusSucceeded})
	m.SetQueueDepth(3)
	m.WorkerBusy(1)
	m.ScheduledRun()
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetQueueDepth(7)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bqflow_queue_depth 7") {
		t.Errorf("expected queue depth in output, got:\n%s", rec.Body.String())
	}
}
