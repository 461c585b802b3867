package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultWorkers      = 10
	defaultIdleInterval = 100 * time.Millisecond
)

// Pool — пул workers, выполняющих leaf-задачи из Queue.
//
// Каждый worker в цикле:
//   - Забирает задачу из очереди
//   - Получает текст SQL (inline или из файла script)
//   - Отправляет запрос в Backend и ждёт статистику
//   - Записывает TaskReport
//   - Сообщает о завершении через Completer
//
// Пустая очередь не останавливает worker: он ждёт сигнала очереди
// или idle-интервала. Остановка — только через Stop или отмену контекста.
type Pool struct {
	queue     *Queue
	backend   Backend
	source    StatementSource
	completer Completer

	// Configuration
	workers         int
	idleInterval    time.Duration
	continueOnError bool
	onReport        func(domain.TaskReport)

	reports   []domain.TaskReport
	reportsMu sync.Mutex

	// Lifecycle
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	stop      chan struct{}
	stopOnce  sync.Once
	stopped   bool
	stoppedMu sync.RWMutex
}

// Config — конфигурация Pool.
type Config struct {
	Backend   Backend
	Source    StatementSource // default: FileSource
	Completer Completer

	Workers      int           // размер пула (default: 10)
	IdleInterval time.Duration // ожидание при пустой очереди (default: 100ms)

	// ContinueOnError — ошибка backend'а не прерывает run,
	// а записывается отчётом со статусом FAILED.
	ContinueOnError bool

	// OnReport вызывается для каждого отчёта из горутины worker'а.
	OnReport func(domain.TaskReport)

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewPool создаёт пул workers для очереди.
func NewPool(queue *Queue, cfg Config) (*Pool, error) {
	if cfg.Backend == nil {
		return nil, ErrNoBackend
	}
	if cfg.Completer == nil {
		return nil, ErrNoCompleter
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	idleInterval := cfg.IdleInterval
	if idleInterval <= 0 {
		idleInterval = defaultIdleInterval
	}

	source := cfg.Source
	if source == nil {
		source = FileSource{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		queue:           queue,
		backend:         cfg.Backend,
		source:          source,
		completer:       cfg.Completer,
		workers:         workers,
		idleInterval:    idleInterval,
		continueOnError: cfg.ContinueOnError,
		onReport:        cfg.OnReport,
		logger:          logger,
		metrics:         cfg.Metrics,
		stop:            make(chan struct{}),
	}, nil
}

// Size возвращает количество workers.
func (p *Pool) Size() int {
	return p.workers
}

// Run запускает workers и блокируется, пока все они не завершатся.
//
// Возвращает первую фатальную ошибку. После неё остальные workers
// видят отменённый контекст и выходят.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("starting worker pool",
		"workers", p.workers,
		"idle_interval", p.idleInterval,
		"continue_on_error", p.continueOnError,
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		id := i
		g.Go(func() error {
			return p.loop(ctx, id)
		})
	}

	err := g.Wait()
	p.logger.Info("worker pool stopped")
	return err
}

// Stop запрещает workers брать новые задачи.
// Задачи, уже отправленные в backend, доводятся до конца.
func (p *Pool) Stop() {
	p.stoppedMu.Lock()
	p.stopped = true
	p.stoppedMu.Unlock()

	p.stopOnce.Do(func() { close(p.stop) })
}

// IsStopped проверяет, остановлен ли пул.
func (p *Pool) IsStopped() bool {
	p.stoppedMu.RLock()
	defer p.stoppedMu.RUnlock()
	return p.stopped
}

// Reports возвращает копию накопленных отчётов в порядке завершения.
func (p *Pool) Reports() []domain.TaskReport {
	p.reportsMu.Lock()
	defer p.reportsMu.Unlock()

	reports := make([]domain.TaskReport, len(p.reports))
	copy(reports, p.reports)
	return reports
}

// loop — цикл одного worker'а.
func (p *Pool) loop(ctx context.Context, id int) error {
	logger := p.logger.With("worker", id)
	idle := time.NewTimer(p.idleInterval)
	defer idle.Stop()

	for {
		if p.IsStopped() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		q, ok := p.queue.Pop()
		if !ok {
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.idleInterval)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.stop:
				return nil
			case <-p.queue.Ready():
			case <-idle.C:
			}
			continue
		}

		p.metrics.SetQueueDepth(p.queue.Len())
		err := p.execute(ctx, logger, q)
		p.queue.Ack()
		if err != nil {
			return err
		}
	}
}

// execute выполняет одну задачу.
// Возвращает ошибку только если run нужно прервать.
func (p *Pool) execute(ctx context.Context, logger *slog.Logger, q domain.Query) error {
	logger = telemetry.WithTaskPath(logger, q.Path.String())
	logger.Info("task started", "template", q.Template)

	p.metrics.WorkerBusy(1)
	stats, err := p.submit(ctx, q)
	p.metrics.WorkerBusy(-1)

	if err != nil {
		// run уже прерван другим worker'ом
		if ctx.Err() != nil {
			return err
		}

		p.record(domain.NewFailedReport(q.Path, err))

		if !p.continueOnError {
			logger.Error("task failed", "error", err)
			return err
		}

		logger.Warn("task failed, continuing", "error", err)
		return nil
	}

	report := domain.NewTaskReport(q.Path, stats)
	p.record(report)

	logger.Info("task succeeded",
		"duration", report.Duration,
		"bytes_billed", report.TotalBytesBilled,
	)

	if err := p.completer.Complete(q.Path); err != nil {
		return fmt.Errorf("complete %s: %w", q.Path, err)
	}
	return nil
}

func (p *Pool) submit(ctx context.Context, q domain.Query) (*domain.JobStats, error) {
	statement, err := resolveStatement(p.source, q)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", q.Path, err)
	}

	stats, err := p.backend.Submit(ctx, statement, q.Parameters)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w: %w", q.Path, ErrBackend, err)
	}
	return stats, nil
}

func (p *Pool) record(report domain.TaskReport) {
	p.reportsMu.Lock()
	p.reports = append(p.reports, report)
	p.reportsMu.Unlock()

	p.metrics.ObserveTask(report)
	if p.onReport != nil {
		p.onReport(report)
	}
}
