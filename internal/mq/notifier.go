package mq

import (
	"context"

	"github.com/shaiso/bqflow/internal/domain"
)

// EventPublisher — часть Publisher, нужная Notifier.
type EventPublisher interface {
	PublishRunFinished(ctx context.Context, payload RunFinishedPayload) error
	PublishTaskReported(ctx context.Context, payload TaskReportedPayload) error
}

// Notifier публикует события run в RabbitMQ.
// Реализует orchestrator.Observer.
type Notifier struct {
	publisher   EventPublisher
	taskReports bool
}

// NewNotifier создаёт Notifier. taskReports включает публикацию
// отчёта каждой задачи, иначе публикуется только итог run.
func NewNotifier(publisher EventPublisher, taskReports bool) *Notifier {
	return &Notifier{publisher: publisher, taskReports: taskReports}
}

// OnRunStarted ничего не публикует: запрос run уже лежит в runs.requested
// или run запущен локально.
func (n *Notifier) OnRunStarted(context.Context, *domain.Run) error {
	return nil
}

func (n *Notifier) OnTaskReport(ctx context.Context, run *domain.Run, report domain.TaskReport) error {
	if !n.taskReports {
		return nil
	}
	return n.publisher.PublishTaskReported(ctx, TaskReportedPayload{RunID: run.ID, Report: report})
}

func (n *Notifier) OnRunFinished(ctx context.Context, run *domain.Run, reports []domain.TaskReport) error {
	return n.publisher.PublishRunFinished(ctx, NewRunFinishedPayload(run, reports))
}
