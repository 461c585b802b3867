package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/bqflow/internal/mq"
)

const defaultListLimit = 50

// ListRuns возвращает последние runs.
// GET /api/v1/runs?limit=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is not recorded (start serve with --record)")
		return
	}

	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun ставит запуск workflow в очередь runs.requested.
// POST /api/v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	if h.requester == nil {
		Unavailable(w, "run requests are not accepted")
		return
	}

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Source == "" {
		BadRequest(w, "source is required")
		return
	}

	payload := mq.RunRequestedPayload{
		RunID:      uuid.New(),
		Source:     req.Source,
		Entrypoint: req.Entrypoint,
	}
	if err := h.requester.PublishRunRequested(r.Context(), payload); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("run requested", "run_id", payload.RunID.String(), "source", req.Source)
	Accepted(w, CreateRunResponse{RunID: payload.RunID})
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is not recorded (start serve with --record)")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunReports возвращает отчёты задач run.
// GET /api/v1/runs/{id}/reports
func (h *Handler) ListRunReports(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil || h.reports == nil {
		Unavailable(w, "run history is not recorded (start serve with --record)")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	if _, err := h.runs.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	reports, err := h.reports.ListByRunID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ReportResponse, len(reports))
	for i, rep := range reports {
		result[i] = ReportFromDomain(rep)
	}

	List(w, result, len(result))
}

// GetRunStats возвращает прогресс run, который выполняется в этом процессе.
// GET /api/v1/runs/{id}/stats
func (h *Handler) GetRunStats(w http.ResponseWriter, r *http.Request) {
	if h.active == nil {
		Unavailable(w, "no runs are executed by this process")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	stats, ok := h.active.GetActiveRunStats(id)
	if !ok {
		NotFound(w, "run is not active")
		return
	}

	Success(w, StatsFromOrchestrator(stats))
}
