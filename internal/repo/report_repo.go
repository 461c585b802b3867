package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shaiso/bqflow/internal/domain"
)

// ReportRepo — репозиторий отчётов leaf-задач.
type ReportRepo struct {
	db DBTX
}

// NewReportRepo создаёт новый ReportRepo.
func NewReportRepo(db DBTX) *ReportRepo {
	return &ReportRepo{db: db}
}

// Create сохраняет отчёт задачи run.
func (r *ReportRepo) Create(ctx context.Context, runID uuid.UUID, report domain.TaskReport) error {
	query := `
		INSERT INTO task_reports (run_id, path, duration, total_bytes_billed, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		runID,
		[]string(report.Path),
		report.Duration,
		report.TotalBytesBilled,
		string(report.Status),
		nullString(report.Error),
	)
	if err != nil {
		return fmt.Errorf("insert task report %s: %w", report.Path, err)
	}
	return nil
}

// ListByRunID возвращает отчёты run в порядке записи.
func (r *ReportRepo) ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.TaskReport, error) {
	query := `
		SELECT path, duration, total_bytes_billed, status, error
		FROM task_reports
		WHERE run_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list task reports: %w", err)
	}
	return pgx.CollectRows(rows, scanReport)
}

func scanReport(row pgx.CollectableRow) (domain.TaskReport, error) {
	var report domain.TaskReport
	var path []string
	var status string
	var reportError *string

	if err := row.Scan(&path, &report.Duration, &report.TotalBytesBilled, &status, &reportError); err != nil {
		return domain.TaskReport{}, fmt.Errorf("scan task report: %w", err)
	}

	report.Path = domain.Path(path)
	report.Status = domain.TaskStatus(status)
	if reportError != nil {
		report.Error = *reportError
	}
	return report, nil
}
