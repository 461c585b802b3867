package repo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shaiso/bqflow/internal/domain"
)

// Recorder сохраняет runs и отчёты задач в PostgreSQL.
// Реализует orchestrator.Observer.
type Recorder struct {
	runs    *RunRepo
	reports *ReportRepo
	logger  *slog.Logger
}

// NewRecorder создаёт Recorder поверх пула.
func NewRecorder(db DBTX, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		runs:    NewRunRepo(db),
		reports: NewReportRepo(db),
		logger:  logger,
	}
}

// OnRunStarted записывает run.
func (r *Recorder) OnRunStarted(ctx context.Context, run *domain.Run) error {
	err := r.runs.Create(ctx, run)
	if errors.Is(err, ErrAlreadyExists) {
		// run создан заранее (serve mode)
		return r.runs.Update(ctx, run)
	}
	return err
}

// OnTaskReport записывает отчёт задачи.
func (r *Recorder) OnTaskReport(ctx context.Context, run *domain.Run, report domain.TaskReport) error {
	return r.reports.Create(ctx, run.ID, report)
}

// OnRunFinished обновляет финальный статус run.
// run, упавший до старта, записывается целиком.
func (r *Recorder) OnRunFinished(ctx context.Context, run *domain.Run, reports []domain.TaskReport) error {
	err := r.runs.Update(ctx, run)
	if errors.Is(err, ErrNotFound) {
		err = r.runs.Create(ctx, run)
	}
	if err != nil {
		return err
	}

	r.logger.Debug("run recorded",
		"run_id", run.ID.String(),
		"status", string(run.Status),
		"reports", len(reports),
	)
	return nil
}
