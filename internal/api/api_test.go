package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/mq"
	"github.com/shaiso/bqflow/internal/orchestrator"
	"github.com/shaiso/bqflow/internal/repo"
)

type fakeRuns struct {
	runs map[uuid.UUID]domain.Run
	err  error

	limit int
}

func (f *fakeRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	run, ok := f.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &run, nil
}

func (f *fakeRuns) ListRecent(_ context.Context, limit int) ([]domain.Run, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Run
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out, nil
}

type fakeReports struct {
	reports []domain.TaskReport
}

func (f *fakeReports) ListByRunID(context.Context, uuid.UUID) ([]domain.TaskReport, error) {
	return f.reports, nil
}

type fakeRequester struct {
	payloads []mq.RunRequestedPayload
	err      error
}

func (f *fakeRequester) PublishRunRequested(_ context.Context, p mq.RunRequestedPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

type fakeActive map[uuid.UUID]orchestrator.RunStats

func (f fakeActive) GetActiveRunStats(id uuid.UUID) (orchestrator.RunStats, bool) {
	s, ok := f[id]
	return s, ok
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, cfg Config) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	cfg.Logger = testLogger()

	reg := prometheus.NewRegistry()
	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux, reg)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func errorCode(t *testing.T, body []byte) ErrorCode {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, body)
	}
	return resp.Error.Code
}

func TestUnavailableWithoutDependencies(t *testing.T) {
	srv, _ := newServer(t, Config{})
	id := uuid.New().String()

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/v1/runs", ""},
		{http.MethodPost, "/api/v1/runs", `{"source": "wf.yaml"}`},
		{http.MethodGet, "/api/v1/runs/" + id, ""},
		{http.MethodGet, "/api/v1/runs/" + id + "/reports", ""},
		{http.MethodGet, "/api/v1/runs/" + id + "/stats", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, tt.body)
			if status != http.StatusServiceUnavailable {
				t.Errorf("expected 503, got %d", status)
			}
			if code := errorCode(t, body); code != ErrCodeUnavailable {
				t.Errorf("expected %s, got %s", ErrCodeUnavailable, code)
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	run := domain.Run{
		ID:         uuid.New(),
		Source:     "daily.yaml",
		Entrypoint: "main",
		Status:     domain.RunStatusSucceeded,
		StartedAt:  &started,
		FinishedAt: &finished,
	}
	srv, _ := newServer(t, Config{Runs: &fakeRuns{runs: map[uuid.UUID]domain.Run{run.ID: run}}})

	tests := []struct {
		name   string
		path   string
		status int
		code   ErrorCode
	}{
		{"found", "/api/v1/runs/" + run.ID.String(), http.StatusOK, ""},
		{"bad id", "/api/v1/runs/not-a-uuid", http.StatusBadRequest, ErrCodeBadRequest},
		{"not found", "/api/v1/runs/" + uuid.New().String(), http.StatusNotFound, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, http.MethodGet, tt.path, "")
			if status != tt.status {
				t.Fatalf("expected %d, got %d (%s)", tt.status, status, body)
			}
			if tt.code != "" {
				if code := errorCode(t, body); code != tt.code {
					t.Errorf("expected %s, got %s", tt.code, code)
				}
				return
			}

			var resp struct {
				Data RunResponse `json:"data"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Data.ID != run.ID || resp.Data.Status != domain.RunStatusSucceeded {
				t.Errorf("unexpected run: %+v", resp.Data)
			}
			if resp.Data.Duration != 90 {
				t.Errorf("expected duration 90, got %v", resp.Data.Duration)
			}
		})
	}
}

func TestListRuns_Limit(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		limit  int
	}{
		{"default", "", http.StatusOK, defaultListLimit},
		{"explicit", "?limit=5", http.StatusOK, 5},
		{"zero", "?limit=0", http.StatusBadRequest, 0},
		{"not a number", "?limit=ten", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &fakeRuns{}
			srv, _ := newServer(t, Config{Runs: runs})

			status, _ := do(t, srv, http.MethodGet, "/api/v1/runs"+tt.query, "")
			if status != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, status)
			}
			if runs.limit != tt.limit {
				t.Errorf("expected limit %d, got %d", tt.limit, runs.limit)
			}
		})
	}
}

func TestListRuns_StoreError(t *testing.T) {
	srv, _ := newServer(t, Config{Runs: &fakeRuns{err: errors.New("connection refused")}})

	status, body := do(t, srv, http.MethodGet, "/api/v1/runs", "")
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if code := errorCode(t, body); code != ErrCodeInternalError {
		t.Errorf("expected %s, got %s", ErrCodeInternalError, code)
	}
}

func TestListRunReports(t *testing.T) {
	run := domain.Run{ID: uuid.New(), Status: domain.RunStatusFailed}
	reports := &fakeReports{reports: []domain.TaskReport{
		{Path: domain.Path{"load", "users"}, Duration: 1.5, TotalBytesBilled: 1024, Status: domain.TaskStatusSucceeded},
		{Path: domain.Path{"load", "orders"}, Status: domain.TaskStatusFailed, Error: "syntax error"},
	}}
	srv, _ := newServer(t, Config{
		Runs:    &fakeRuns{runs: map[uuid.UUID]domain.Run{run.ID: run}},
		Reports: reports,
	})

	status, body := do(t, srv, http.MethodGet, "/api/v1/runs/"+run.ID.String()+"/reports", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, body)
	}

	var resp struct {
		Data  []ReportResponse `json:"data"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := []ReportResponse{
		{Path: "/load/users", Duration: 1.5, TotalBytesBilled: 1024, Status: domain.TaskStatusSucceeded},
		{Path: "/load/orders", Status: domain.TaskStatusFailed, Error: "syntax error"},
	}
	if diff := cmp.Diff(want, resp.Data); diff != "" {
		t.Errorf("reports mismatch (-want +got):\n%s", diff)
	}
	if resp.Total != 2 {
		t.Errorf("expected total 2, got %d", resp.Total)
	}

	status, _ = do(t, srv, http.MethodGet, "/api/v1/runs/"+uuid.New().String()+"/reports", "")
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown run, got %d", status)
	}
}

func TestCreateRun(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"accepted", `{"source": "daily.yaml", "entrypoint": "main"}`, nil, http.StatusAccepted},
		{"missing source", `{"entrypoint": "main"}`, nil, http.StatusBadRequest},
		{"invalid json", `{`, nil, http.StatusBadRequest},
		{"publish failure", `{"source": "daily.yaml"}`, errors.New("channel closed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requester := &fakeRequester{err: tt.err}
			srv, _ := newServer(t, Config{Requester: requester})

			status, body := do(t, srv, http.MethodPost, "/api/v1/runs", tt.body)
			if status != tt.status {
				t.Fatalf("expected %d, got %d (%s)", tt.status, status, body)
			}
			if tt.status != http.StatusAccepted {
				if len(requester.payloads) != 0 {
					t.Errorf("expected no published requests, got %d", len(requester.payloads))
				}
				return
			}

			var resp struct {
				Data CreateRunResponse `json:"data"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(requester.payloads) != 1 {
				t.Fatalf("expected 1 published request, got %d", len(requester.payloads))
			}
			want := mq.RunRequestedPayload{RunID: resp.Data.RunID, Source: "daily.yaml", Entrypoint: "main"}
			if diff := cmp.Diff(want, requester.payloads[0]); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetRunStats(t *testing.T) {
	id := uuid.New()
	srv, reg := newServer(t, Config{Active: fakeActive{
		id: {Statuses: 5, Enqueued: 1, Active: 2, Reports: 2},
	}})

	status, body := do(t, srv, http.MethodGet, "/api/v1/runs/"+id.String()+"/stats", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, body)
	}

	var resp struct {
		Data RunStatsResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := RunStatsResponse{Statuses: 5, Enqueued: 1, Active: 2, Reports: 2}
	if diff := cmp.Diff(want, resp.Data); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	status, _ = do(t, srv, http.MethodGet, "/api/v1/runs/"+uuid.New().String()+"/stats", "")
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for inactive run, got %d", status)
	}

	if n := testutil.CollectAndCount(reg, "bqflow_http_requests_total"); n != 2 {
		t.Errorf("expected 2 label sets (200 and 404), got %d", n)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		write func(w http.ResponseWriter)
		want  string
	}{
		{"empty list keeps total", func(w http.ResponseWriter) { List(w, []string{}, 0) }, `{"data":[],"total":0}`},
		{"single object has no total", func(w http.ResponseWriter) { Success(w, map[string]int{"a": 1}) }, `{"data":{"a":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			if got := strings.TrimSpace(rec.Body.String()); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
