package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/bqflow/internal/domain"
)

// Noop ничего не выполняет и сразу возвращает пустую статистику.
// Используется командой plan, чтобы показать порядок выполнения.
type Noop struct {
	Logger *slog.Logger
}

// Submit реализует worker.Backend.
func (n Noop) Submit(ctx context.Context, statement string, params []domain.Parameter) (*domain.JobStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if n.Logger != nil {
		n.Logger.Debug("noop submit", "statement", statement, "parameters", len(params))
	}

	now := time.Now()
	return &domain.JobStats{StartedAt: now, FinishedAt: now}, nil
}
