package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/telemetry"
	"github.com/shaiso/bqflow/internal/tracer"
	"github.com/shaiso/bqflow/internal/worker"
)

const defaultPollInterval = 100 * time.Millisecond

// Producer переносит исполняемые leaf-задачи из Tracer в очередь.
//
// Каждая задача попадает в очередь не более одного раза: Producer
// помнит ключи путей уже поставленных задач. Producer просыпается
// по сигналу Tracer'а о завершении, интервал опроса — запасной вариант.
type Producer struct {
	tracer *tracer.Tracer
	queue  *worker.Queue

	enqueued map[string]bool

	pollInterval time.Duration
	logger       *slog.Logger
	metrics      *telemetry.Metrics
}

// ProducerConfig — конфигурация Producer.
type ProducerConfig struct {
	PollInterval time.Duration // запасной интервал опроса (default: 100ms)
	Metrics      *telemetry.Metrics
	Logger       *slog.Logger
}

// NewProducer создаёт Producer.
func NewProducer(tr *tracer.Tracer, queue *worker.Queue, cfg ProducerConfig) *Producer {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Producer{
		tracer:       tr,
		queue:        queue,
		enqueued:     make(map[string]bool),
		pollInterval: pollInterval,
		logger:       logger,
		metrics:      cfg.Metrics,
	}
}

// Run работает, пока корень дерева не завершён.
//
// Если очередь пуста, ни одна задача не выполняется и новых leaf нет,
// а корень не завершён, run застрял: возвращается ErrRunIncomplete.
func (p *Producer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		finished, err := p.tick()
		if err != nil {
			return err
		}
		if finished {
			p.logger.Debug("root completed, producer stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.tracer.Changed():
		case <-ticker.C:
		}
	}
}

// tick выполняет один проход: ставит новые задачи и проверяет завершение.
func (p *Producer) tick() (bool, error) {
	if p.tracer.Done() {
		return true, nil
	}

	// Idle берётся до чтения задач: worker сообщает о завершении
	// до Ack, поэтому при idle дерево уже отражает все завершения.
	idle := p.queue.Idle()

	queries, err := p.tracer.Queries()
	if err != nil {
		return false, err
	}

	fresh := p.filterFresh(queries)
	if len(fresh) > 0 {
		p.queue.Push(fresh...)
		p.metrics.SetQueueDepth(p.queue.Len())
		p.logger.Debug("tasks enqueued", "count", len(fresh))
		return false, nil
	}

	if idle {
		if p.tracer.Done() {
			return true, nil
		}
		return false, p.stalled()
	}

	return false, nil
}

func (p *Producer) filterFresh(queries []domain.Query) []domain.Query {
	var fresh []domain.Query
	for _, q := range queries {
		key := q.Path.Key()
		if p.enqueued[key] {
			continue
		}
		p.enqueued[key] = true
		fresh = append(fresh, q)
	}
	return fresh
}

func (p *Producer) stalled() error {
	pending := p.tracer.Pending()
	paths := make([]string, len(pending))
	for i, path := range pending {
		paths[i] = path.String()
	}
	p.logger.Warn("run stalled", "pending", paths)
	return fmt.Errorf("%w: %d task(s) not completed: %v", ErrRunIncomplete, len(paths), paths)
}

// Enqueued возвращает количество поставленных в очередь задач.
func (p *Producer) Enqueued() int {
	return len(p.enqueued)
}
