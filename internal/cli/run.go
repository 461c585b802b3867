package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/shaiso/bqflow/internal/backend"
	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/orchestrator"
	"github.com/shaiso/bqflow/internal/repo"
	"github.com/shaiso/bqflow/internal/telemetry"
)

// NewRunCmd создаёт команду run.
//
// Файл .sql выполняется одним запросом (с -o строки результата
// пишутся в JSON). Остальные файлы читаются как определение workflow.
func NewRunCmd(g *Globals) *cobra.Command {
	opts := &runOptions{}
	var output string

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a workflow definition or a single .sql file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.EqualFold(filepath.Ext(args[0]), ".sql") {
				return runQuery(cmd.Context(), g, args[0], output, opts.skipEstimate)
			}
			return runWorkflow(cmd.Context(), g, args[0], opts)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write query result rows to this JSON file (.sql only)")

	return cmd
}

// runWorkflow выполняет workflow до завершения и печатает отчёты.
func runWorkflow(ctx context.Context, g *Globals, path string, opts *runOptions) error {
	out := g.Output()

	wf, err := loadWorkflow(path, opts.entrypoint)
	if err != nil {
		return err
	}

	svc, err := newServices(ctx, g, opts, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.orch.Run(ctx, wf, path)
	if result != nil {
		printResult(out, result)
	}
	return err
}

func printResult(out *Output, result *orchestrator.RunResult) {
	if out.jsonMode {
		out.JSON(result)
	} else {
		out.Reports(result.Reports)
	}
	out.RunSummary(result.Run, result.Reports)
}

// runQuery выполняет один SQL-файл.
func runQuery(ctx context.Context, g *Globals, path, output string, skipEstimate bool) error {
	out := g.Output()
	logger := telemetry.WithSource(telemetry.SetupLogger(), path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}
	statement := string(data)

	pool, err := repo.NewPool(ctx, g.DBURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	pg, err := backend.NewPostgres(backend.PostgresConfig{DB: pool, SkipEstimate: skipEstimate, Logger: logger})
	if err != nil {
		return err
	}

	return executeQuery(ctx, pg, out, logger, statement, output, skipEstimate)
}

// queryBackend — операции backend.Postgres для одиночного запроса.
type queryBackend interface {
	Submit(ctx context.Context, statement string, params []domain.Parameter) (*domain.JobStats, error)
	Estimate(ctx context.Context, statement string, args pgx.NamedArgs) (int64, error)
	Fetch(ctx context.Context, statement string) ([]map[string]any, error)
}

// executeQuery выполняет statement. Без output объём берётся из статистики
// Submit, который сам оценивает запрос; с output оценка делается до Fetch.
func executeQuery(ctx context.Context, q queryBackend, out *Output, logger *slog.Logger, statement, output string, skipEstimate bool) error {
	if output == "" {
		stats, err := q.Submit(ctx, statement, nil)
		if err != nil {
			return err
		}
		if !skipEstimate {
			out.Success("Processed: " + FormatBytes(stats.BytesBilled))
		}
		out.Success(fmt.Sprintf("Done in %s", stats.Elapsed().Round(time.Millisecond)))
		return nil
	}

	if !skipEstimate {
		if billed, err := q.Estimate(ctx, statement, nil); err == nil {
			out.Success("Processed: " + FormatBytes(billed))
		} else {
			logger.Debug("estimate skipped", "error", err)
		}
	}

	rows, err := q.Fetch(ctx, statement)
	if err != nil {
		return err
	}

	if err := writeJSON(output, rows); err != nil {
		return err
	}
	out.JSON(rows)
	out.Success(fmt.Sprintf("Wrote %d rows to %s", len(rows), output))
	return nil
}

// writeJSON пишет v в файл с отступами, создавая недостающие каталоги.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
