package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/telemetry"
	"github.com/shaiso/bqflow/internal/tracer"
	"github.com/shaiso/bqflow/internal/worker"
)

// Orchestrator управляет выполнением runs.
//
// Для каждого run Orchestrator:
//   - Создаёт Tracer, очередь, Producer и пул workers
//   - Запускает Producer и пул параллельно
//   - Ждёт завершения корня дерева (или фатальной ошибки)
//   - Останавливает пул и собирает отчёты
//   - Рассылает события наблюдателям
//
// Один Orchestrator может выполнять несколько runs одновременно
// (serve mode), у каждого run своё дерево и свой пул.
type Orchestrator struct {
	backend worker.Backend
	source  worker.StatementSource

	// Configuration
	workers         int
	pollInterval    time.Duration
	idleInterval    time.Duration
	continueOnError bool

	observers observers

	// Active runs — runs в процессе выполнения (runID → state)
	activeRuns map[uuid.UUID]*runState
	mu         sync.RWMutex

	// Lifecycle
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	stopped   bool
	stoppedMu sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Backend выполняет leaf-задачи.
	Backend worker.Backend

	// Source читает файлы script (default: worker.FileSource).
	Source worker.StatementSource

	Workers      int           // размер пула workers (default: 10)
	PollInterval time.Duration // запасной интервал Producer'а (default: 100ms)
	IdleInterval time.Duration // ожидание worker'а при пустой очереди (default: 100ms)

	// ContinueOnError — ошибки backend'а записываются отчётами FAILED,
	// остальные ветки дерева продолжают выполняться.
	ContinueOnError bool

	// Observers получают события run.
	Observers []Observer

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// RunResult — итог выполнения run.
type RunResult struct {
	Run     *domain.Run
	Reports []domain.TaskReport
}

// RunStats — статистика активного run.
type RunStats struct {
	Statuses int // узлов в дереве
	Enqueued int // задач в очереди
	Active   int // задач в работе
	Reports  int // готовых отчётов
}

// runState — активный run.
type runState struct {
	run    *domain.Run
	tracer *tracer.Tracer
	queue  *worker.Queue
	pool   *worker.Pool
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		backend:         cfg.Backend,
		source:          cfg.Source,
		workers:         cfg.Workers,
		pollInterval:    cfg.PollInterval,
		idleInterval:    cfg.IdleInterval,
		continueOnError: cfg.ContinueOnError,
		observers:       observers{list: cfg.Observers, logger: logger},
		activeRuns:      make(map[uuid.UUID]*runState),
		logger:          logger,
		metrics:         cfg.Metrics,
	}
}

// Run выполняет workflow до завершения корня.
//
// source — путь к файлу определения, попадает в domain.Run.
// Workflow должен быть провалидирован (engine.Validate).
//
// Возвращает результат даже при ошибке: отчёты выполненных задач
// и run в финальном статусе. Ошибка ErrRunIncomplete означает, что
// часть задач упала в режиме ContinueOnError.
func (o *Orchestrator) Run(ctx context.Context, wf *domain.Workflow, source string) (*RunResult, error) {
	return o.Execute(ctx, domain.NewRun(source, wf.Entrypoint), wf)
}

// Execute выполняет workflow для заранее созданного run.
// Используется, когда ID run назначен снаружи (serve mode).
func (o *Orchestrator) Execute(ctx context.Context, run *domain.Run, wf *domain.Workflow) (*RunResult, error) {
	if o.IsStopped() {
		return nil, ErrOrchestratorStopped
	}

	logger := telemetry.WithRunID(o.logger, run.ID.String())
	result := &RunResult{Run: run}

	state, err := o.prepare(ctx, run, wf, logger)
	if err != nil {
		o.finish(ctx, run, nil, err, logger)
		return result, err
	}

	if err := o.addActiveRun(state); err != nil {
		return result, err
	}
	defer o.removeActiveRun(run.ID)

	producer := NewProducer(state.tracer, state.queue, ProducerConfig{
		PollInterval: o.pollInterval,
		Metrics:      o.metrics,
		Logger:       logger,
	})

	run.MarkRunning()
	logger.Info("run started",
		"source", run.Source,
		"entrypoint", run.Entrypoint,
		"workers", state.pool.Size(),
	)
	o.observers.runStarted(ctx, run)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Завершение Producer'а (успешное или нет) останавливает пул
		defer state.pool.Stop()
		return producer.Run(gctx)
	})
	g.Go(func() error {
		return state.pool.Run(gctx)
	})
	err = g.Wait()

	result.Reports = state.pool.Reports()
	o.finish(ctx, run, result.Reports, err, logger)

	return result, err
}

// prepare строит дерево выполнения и пул workers для run.
func (o *Orchestrator) prepare(ctx context.Context, run *domain.Run, wf *domain.Workflow, logger *slog.Logger) (*runState, error) {
	tr, err := tracer.New(wf, tracer.Config{Logger: logger})
	if err != nil {
		return nil, err
	}

	queue := worker.NewQueue()
	pool, err := worker.NewPool(queue, worker.Config{
		Backend:         o.backend,
		Source:          o.source,
		Completer:       tr,
		Workers:         o.workers,
		IdleInterval:    o.idleInterval,
		ContinueOnError: o.continueOnError,
		OnReport: func(report domain.TaskReport) {
			o.observers.taskReport(ctx, run, report)
		},
		Metrics: o.metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	return &runState{run: run, tracer: tr, queue: queue, pool: pool}, nil
}

// finish переводит run в финальный статус и уведомляет наблюдателей.
func (o *Orchestrator) finish(ctx context.Context, run *domain.Run, reports []domain.TaskReport, err error, logger *slog.Logger) {
	if run.StartedAt == nil {
		run.MarkRunning()
	}

	switch {
	case err == nil:
		run.MarkSucceeded()
		logger.Info("run succeeded",
			"tasks", len(reports),
			"duration", run.Duration(),
		)
	case errors.Is(err, ErrRunIncomplete):
		run.MarkIncomplete(err.Error())
		logger.Warn("run incomplete",
			"tasks", len(reports),
			"duration", run.Duration(),
			"error", err,
		)
	default:
		run.MarkFailed(err.Error())
		logger.Error("run failed",
			"tasks", len(reports),
			"duration", run.Duration(),
			"error", err,
		)
	}

	o.metrics.ObserveRun(run)
	o.observers.runFinished(context.WithoutCancel(ctx), run, reports)
}

// Stop запрещает запуск новых runs. Активные runs доводятся до конца.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("orchestrator stopped", "active_runs", o.ActiveRunsCount())
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// addActiveRun добавляет run в активные.
func (o *Orchestrator) addActiveRun(state *runState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeRuns[state.run.ID]; exists {
		return ErrRunAlreadyActive
	}

	o.activeRuns[state.run.ID] = state
	return nil
}

// removeActiveRun удаляет run из активных.
func (o *Orchestrator) removeActiveRun(runID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, runID)
}

// ActiveRunsCount возвращает количество активных runs.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeRuns)
}

// GetActiveRunStats возвращает статистику по активному run.
func (o *Orchestrator) GetActiveRunStats(runID uuid.UUID) (RunStats, bool) {
	o.mu.RLock()
	state, exists := o.activeRuns[runID]
	o.mu.RUnlock()

	if !exists {
		return RunStats{}, false
	}

	return RunStats{
		Statuses: state.tracer.Size(),
		Enqueued: state.queue.Len(),
		Active:   state.queue.Active(),
		Reports:  len(state.pool.Reports()),
	}, true
}
