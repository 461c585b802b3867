package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/bqflow/internal/domain"
)

// DB — подмножество pgxpool.Pool, нужное backend'у.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres выполняет leaf-задачи в PostgreSQL.
//
// Объём обработанных данных оценивается заранее через
// EXPLAIN (FORMAT JSON): строки плана × ширина строки.
type Postgres struct {
	db       DB
	estimate bool
	logger   *slog.Logger
}

// PostgresConfig — конфигурация Postgres.
type PostgresConfig struct {
	// DB — пул соединений (repo.NewPool).
	DB DB

	// SkipEstimate отключает оценку через EXPLAIN; BytesBilled будет 0.
	SkipEstimate bool

	Logger *slog.Logger
}

// NewPostgres создаёт backend поверх пула соединений.
func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	if cfg.DB == nil {
		return nil, ErrNoPool
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Postgres{
		db:       cfg.DB,
		estimate: !cfg.SkipEstimate,
		logger:   logger,
	}, nil
}

// Submit выполняет statement и возвращает статистику.
//
// Без параметров statement уходит простым протоколом, поэтому
// script может содержать несколько SQL-команд.
func (p *Postgres) Submit(ctx context.Context, statement string, params []domain.Parameter) (*domain.JobStats, error) {
	args, err := EncodeParameters(params)
	if err != nil {
		return nil, err
	}

	var billed int64
	if p.estimate {
		billed, err = p.Estimate(ctx, statement, args)
		if err != nil {
			// EXPLAIN не поддерживает DDL и несколько команд подряд
			p.logger.Debug("estimate skipped", "error", err)
			billed = 0
		}
	}

	stats := &domain.JobStats{StartedAt: time.Now()}
	if len(args) == 0 {
		_, err = p.db.Exec(ctx, statement)
	} else {
		_, err = p.db.Exec(ctx, statement, args)
	}
	stats.FinishedAt = time.Now()
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}

	stats.BytesBilled = billed
	return stats, nil
}

// explainPlan — корневой узел вывода EXPLAIN (FORMAT JSON).
type explainPlan struct {
	Plan struct {
		PlanRows  float64 `json:"Plan Rows"`
		PlanWidth int64   `json:"Plan Width"`
	} `json:"Plan"`
}

// Estimate оценивает объём данных, который обработает statement.
func (p *Postgres) Estimate(ctx context.Context, statement string, args pgx.NamedArgs) (int64, error) {
	query := "EXPLAIN (FORMAT JSON) " + statement

	var rows pgx.Rows
	var err error
	if len(args) == 0 {
		rows, err = p.db.Query(ctx, query)
	} else {
		rows, err = p.db.Query(ctx, query, args)
	}
	if err != nil {
		return 0, fmt.Errorf("explain: %w", err)
	}

	raw, err := pgx.CollectOneRow(rows, pgx.RowTo[[]byte])
	if err != nil {
		return 0, fmt.Errorf("explain: %w", err)
	}

	return parseExplain(raw)
}

func parseExplain(raw []byte) (int64, error) {
	var plans []explainPlan
	if err := json.Unmarshal(raw, &plans); err != nil {
		return 0, fmt.Errorf("decode explain: %w", err)
	}
	if len(plans) == 0 {
		return 0, nil
	}
	plan := plans[0].Plan
	return int64(plan.PlanRows) * plan.PlanWidth, nil
}

// Fetch выполняет statement и возвращает строки результата.
// Используется в режиме одного запроса (bqflow run file.sql -o out.json).
func (p *Postgres) Fetch(ctx context.Context, statement string) ([]map[string]any, error) {
	rows, err := p.db.Query(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return result, nil
}
