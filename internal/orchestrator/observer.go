package orchestrator

import (
	"context"
	"log/slog"

	"github.com/shaiso/bqflow/internal/domain"
)

// Observer получает события жизненного цикла run.
//
// OnTaskReport вызывается из горутин workers, реализации должны
// быть безопасны для конкурентного вызова. Ошибки наблюдателей
// логируются и не влияют на выполнение run.
//
// Реализации: repo.Recorder (PostgreSQL), mq.Notifier (RabbitMQ).
type Observer interface {
	OnRunStarted(ctx context.Context, run *domain.Run) error
	OnTaskReport(ctx context.Context, run *domain.Run, report domain.TaskReport) error
	OnRunFinished(ctx context.Context, run *domain.Run, reports []domain.TaskReport) error
}

// observers рассылает события всем наблюдателям.
type observers struct {
	list   []Observer
	logger *slog.Logger
}

func (o observers) runStarted(ctx context.Context, run *domain.Run) {
	for _, obs := range o.list {
		if err := obs.OnRunStarted(ctx, run); err != nil {
			o.logger.Warn("observer failed on run started", "error", err)
		}
	}
}

func (o observers) taskReport(ctx context.Context, run *domain.Run, report domain.TaskReport) {
	for _, obs := range o.list {
		if err := obs.OnTaskReport(ctx, run, report); err != nil {
			o.logger.Warn("observer failed on task report",
				"path", report.Path.String(),
				"error", err,
			)
		}
	}
}

func (o observers) runFinished(ctx context.Context, run *domain.Run, reports []domain.TaskReport) {
	for _, obs := range o.list {
		if err := obs.OnRunFinished(ctx, run, reports); err != nil {
			o.logger.Warn("observer failed on run finished", "error", err)
		}
	}
}
