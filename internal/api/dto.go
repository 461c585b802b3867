package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/orchestrator"
)

// CreateRunRequest — запрос на запуск workflow.
type CreateRunRequest struct {
	// Source — путь к файлу определения на стороне serve.
	Source     string `json:"source"`
	Entrypoint string `json:"entrypoint,omitempty"`
}

// CreateRunResponse — ответ на запрос запуска.
type CreateRunResponse struct {
	RunID uuid.UUID `json:"run_id"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID         uuid.UUID        `json:"id"`
	Source     string           `json:"source"`
	Entrypoint string           `json:"entrypoint"`
	Status     domain.RunStatus `json:"status"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Duration   float64          `json:"duration,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:         r.ID,
		Source:     r.Source,
		Entrypoint: r.Entrypoint,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Duration:   r.Duration().Seconds(),
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
	}
}

// ReportResponse — отчёт задачи.
type ReportResponse struct {
	Path             string            `json:"path"`
	Duration         float64           `json:"duration"`
	TotalBytesBilled int64             `json:"total_bytes_billed"`
	Status           domain.TaskStatus `json:"status"`
	Error            string            `json:"error,omitempty"`
}

// ReportFromDomain конвертирует domain.TaskReport в ReportResponse.
func ReportFromDomain(r domain.TaskReport) ReportResponse {
	return ReportResponse{
		Path:             r.Path.String(),
		Duration:         r.Duration,
		TotalBytesBilled: r.TotalBytesBilled,
		Status:           r.Status,
		Error:            r.Error,
	}
}

// RunStatsResponse — прогресс выполняющегося run.
type RunStatsResponse struct {
	Statuses int `json:"statuses"`
	Enqueued int `json:"enqueued"`
	Active   int `json:"active"`
	Reports  int `json:"reports"`
}

// StatsFromOrchestrator конвертирует orchestrator.RunStats.
func StatsFromOrchestrator(s orchestrator.RunStats) RunStatsResponse {
	return RunStatsResponse{
		Statuses: s.Statuses,
		Enqueued: s.Enqueued,
		Active:   s.Active,
		Reports:  s.Reports,
	}
}
