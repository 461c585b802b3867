package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/bqflow/internal/mq"
	"github.com/shaiso/bqflow/internal/repo"
	"github.com/shaiso/bqflow/internal/scheduler"
)

// NewScheduleCmd создаёт команду schedule: workflow запускается
// по cron-выражению или интервалу, пока процесс не остановлен.
//
// С --publish run не выполняется локально: в runs.requested уходит
// запрос, который обработает bqflow serve.
func NewScheduleCmd(g *Globals) *cobra.Command {
	opts := &runOptions{}
	var sched scheduler.Schedule
	var publish bool
	var lockName string

	cmd := &cobra.Command{
		Use:   "schedule FILE",
		Short: "Run a workflow on a cron schedule or interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := sched.Validate(); err != nil {
				return err
			}

			source, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			// Определение проверяется сразу, чтобы ошибка не ждала первого запуска
			if _, err := loadWorkflow(source, opts.entrypoint); err != nil {
				return err
			}

			if lockName != "" {
				opts.record = true
			}
			svc, err := newServices(ctx, g, opts, publish)
			if err != nil {
				return err
			}
			defer svc.Close()

			job := scheduledRun(g, svc, source, opts)
			if publish {
				job = scheduledPublish(svc.publisher, source, opts.entrypoint)
			}

			cfg := scheduler.Config{
				Schedule: sched,
				Job:      job,
				Metrics:  svc.metrics,
				Logger:   svc.logger,
			}
			if lockName != "" {
				lock := repo.NewAdvisoryLock(svc.pool, lockName)
				defer lock.Release(context.WithoutCancel(ctx))
				cfg.Leader = lock
			}

			s, err := scheduler.New(cfg)
			if err != nil {
				return err
			}
			return s.Run(ctx)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&sched.CronExpr, "cron", "", `Cron expression, e.g. "0 3 * * *" or "@daily"`)
	cmd.Flags().DurationVar(&sched.Interval, "every", 0, "Run interval, e.g. 15m")
	cmd.Flags().StringVar(&sched.Timezone, "timezone", "", "Timezone for the cron expression (default UTC)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish run requests to RabbitMQ instead of running locally")
	cmd.Flags().StringVar(&lockName, "lock", "", "Advisory lock name; only the lock holder triggers runs (implies --record)")

	return cmd
}

// scheduledRun выполняет workflow локально. Файл перечитывается
// на каждом запуске.
func scheduledRun(g *Globals, svc *services, source string, opts *runOptions) scheduler.Job {
	return func(ctx context.Context) error {
		wf, err := loadWorkflow(source, opts.entrypoint)
		if err != nil {
			return err
		}

		result, err := svc.orch.Run(ctx, wf, source)
		if result != nil {
			printResult(g.Output(), result)
		}
		return err
	}
}

// scheduledPublish отправляет запрос run в RabbitMQ.
func scheduledPublish(publisher *mq.Publisher, source, entrypoint string) scheduler.Job {
	return func(ctx context.Context) error {
		payload := mq.RunRequestedPayload{
			RunID:      uuid.New(),
			Source:     source,
			Entrypoint: entrypoint,
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := publisher.PublishRunRequested(ctx, payload); err != nil {
			return fmt.Errorf("publish run request: %w", err)
		}
		return nil
	}
}
