package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/bqflow/internal/telemetry"
)

// Leader решает, какой из процессов с одним расписанием запускает run
// (repo.AdvisoryLock).
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
}

// Job — действие, запускаемое по расписанию (локальный run
// или публикация run.requested).
type Job func(ctx context.Context) error

// Scheduler запускает Job по расписанию.
//
// Если предыдущий запуск ещё выполняется, срабатывание пропускается:
// одновременно идёт не больше одного run.
type Scheduler struct {
	schedule Schedule
	job      Job
	leader   Leader
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	// now подменяется в тестах
	now func() time.Time

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedule Schedule
	Job      Job

	// Leader — необязательная блокировка лидера. Без неё процесс
	// всегда считает себя лидером.
	Leader Leader

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}
	if cfg.Job == nil {
		return nil, ErrNoJob
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedule: cfg.Schedule,
		job:      cfg.Job,
		leader:   cfg.Leader,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run ждёт очередного времени по расписанию и запускает Job,
// пока не отменён ctx. Перед выходом дожидается текущего запуска.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.wg.Wait()

	s.logger.Info("scheduler started", "schedule", s.schedule.String())

	for {
		next, err := CalculateNextDue(s.schedule, s.now())
		if err != nil {
			return err
		}

		wait := time.Until(next)
		s.logger.Debug("next run scheduled", "at", next, "in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
			s.Tick(ctx)
		}
	}
}

// Tick запускает Job в отдельной горутине, если процесс — лидер
// и предыдущий запуск завершён. Возвращает false, если срабатывание пропущено.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if s.leader != nil {
		ok, err := s.leader.TryAcquire(ctx)
		if err != nil {
			s.logger.Warn("leader check failed, skipping", "error", err)
			return false
		}
		if !ok {
			s.logger.Debug("not a leader, skipping")
			return false
		}
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous run still active, skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()

	s.metrics.ScheduledRun()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()

		start := s.now()
		if err := s.job(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err, "duration", time.Since(start))
			return
		}
		s.logger.Info("scheduled run completed", "duration", time.Since(start))
	}()

	return true
}

// IsRunning возвращает true, пока выполняется запуск.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
