package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/mq"
	"github.com/shaiso/bqflow/internal/orchestrator"
)

// RunStore — чтение истории runs (repo.RunRepo).
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Run, error)
}

// ReportStore — чтение отчётов задач (repo.ReportRepo).
type ReportStore interface {
	ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.TaskReport, error)
}

// RunRequester ставит run в очередь (mq.Publisher).
type RunRequester interface {
	PublishRunRequested(ctx context.Context, payload mq.RunRequestedPayload) error
}

// ActiveRuns — состояние выполняющихся runs (orchestrator.Orchestrator).
type ActiveRuns interface {
	GetActiveRunStats(runID uuid.UUID) (orchestrator.RunStats, bool)
}

// Handler — главный обработчик API с зависимостями.
//
// Любая зависимость может отсутствовать: соответствующие
// endpoints отвечают 503.
type Handler struct {
	runs      RunStore
	reports   ReportStore
	requester RunRequester
	active    ActiveRuns
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs      RunStore
	Reports   ReportStore
	Requester RunRequester
	Active    ActiveRuns
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		runs:      cfg.Runs,
		reports:   cfg.Reports,
		requester: cfg.Requester,
		active:    cfg.Active,
		logger:    logger,
	}
}
