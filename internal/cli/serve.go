package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/mq"
	"github.com/shaiso/bqflow/internal/orchestrator"
)

// defaultServeAddr — адрес /metrics и /healthz для serve.
const defaultServeAddr = ":9090"

// NewServeCmd создаёт команду serve: запросы run читаются из очереди
// runs.requested, итоги публикуются в runs.finished.
func NewServeCmd(g *Globals) *cobra.Command {
	opts := &runOptions{notify: true, api: true}
	var concurrency int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Execute run requests from RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.metricsAddr == "" {
				opts.metricsAddr = defaultServeAddr
			}

			svc, err := newServices(ctx, g, opts, true)
			if err != nil {
				return err
			}
			defer svc.Close()

			handler := &requestHandler{
				orch:     svc.orch,
				notifier: mq.NewNotifier(svc.publisher, opts.notifyTasks),
			}

			consumer := mq.NewConsumer(svc.conn, mq.ConsumerConfig{
				Queue:    mq.QueueRunsRequested,
				Handler:  handler.Handle,
				Prefetch: concurrency,
				Logger:   svc.logger,
			})

			svc.logger.Info("serving run requests",
				"queue", string(mq.QueueRunsRequested),
				"concurrency", concurrency,
			)

			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				svc.logger.Info("serve stopped", "active_runs", svc.orch.ActiveRunsCount())
				return nil
			}
			return err
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Number of runs executed at the same time")

	return cmd
}

// requestHandler выполняет запросы run из очереди.
type requestHandler struct {
	orch *orchestrator.Orchestrator

	// notifier публикует итог run, который не дошёл до Orchestrator
	notifier orchestrator.Observer
}

// Handle выполняет один запрос run.
//
// Ошибка определения или выполнения workflow не возвращается:
// итог уже опубликован, повтор запроса не поможет.
// Сообщение возвращается в очередь, только если serve останавливается.
func (h *requestHandler) Handle(ctx context.Context, msg *mq.Message) error {
	req, err := mq.ParseRunRequested(msg)
	if err != nil {
		return err
	}

	run := domain.NewRun(req.Source, req.Entrypoint)
	if req.RunID != uuid.Nil {
		run.ID = req.RunID
	}

	wf, err := loadWorkflow(req.Source, req.Entrypoint)
	if err != nil {
		run.MarkRunning()
		run.MarkFailed(err.Error())
		if nerr := h.notifier.OnRunFinished(ctx, run, nil); nerr != nil {
			return fmt.Errorf("publish failed run: %w", nerr)
		}
		return nil
	}
	run.Entrypoint = wf.Entrypoint

	_, err = h.orch.Execute(ctx, run, wf)
	if errors.Is(err, orchestrator.ErrOrchestratorStopped) || errors.Is(err, orchestrator.ErrRunAlreadyActive) {
		return err
	}
	return nil
}
