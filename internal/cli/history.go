package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/bqflow/internal/repo"
)

// NewHistoryCmd создаёт команду history: последние runs из БД
// или отчёты одного run.
func NewHistoryCmd(g *Globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded runs or the task reports of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := g.Output()

			pool, err := repo.NewPool(ctx, g.DBURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			if len(args) == 1 {
				runID, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid run id %q: %w", args[0], err)
				}

				run, err := repo.NewRunRepo(pool).GetByID(ctx, runID)
				if err != nil {
					return fmt.Errorf("run %s: %w", runID, err)
				}
				reports, err := repo.NewReportRepo(pool).ListByRunID(ctx, runID)
				if err != nil {
					return err
				}

				out.Reports(reports)
				out.RunSummary(run, reports)
				return nil
			}

			runs, err := repo.NewRunRepo(pool).ListRecent(ctx, limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "SOURCE", "ENTRYPOINT", "CREATED", "DURATION", "STATUS"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID.String(),
					r.Source,
					r.Entrypoint,
					r.CreatedAt.Local().Format(time.DateTime),
					r.Duration().Round(time.Millisecond).String(),
					statusColor(string(r.Status)),
				}
			}
			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")

	return cmd
}
