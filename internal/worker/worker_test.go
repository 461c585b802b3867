package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/bqflow/internal/domain"
)

// --- Fakes ---

// fakeBackend возвращает фиксированную статистику и запоминает вызовы.
type fakeBackend struct {
	mu         sync.Mutex
	statements []string
	params     [][]domain.Parameter
	fail       map[string]error // statement → ошибка
	block      chan struct{}    // если не nil, Submit ждёт закрытия
}

func (b *fakeBackend) Submit(ctx context.Context, statement string, params []domain.Parameter) (*domain.JobStats, error) {
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	b.statements = append(b.statements, statement)
	b.params = append(b.params, params)
	err := b.fail[statement]
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.JobStats{
		StartedAt:   start,
		FinishedAt:  start.Add(1500 * time.Millisecond),
		BytesBilled: 2048,
	}, nil
}

// fakeCompleter запоминает завершённые пути.
type fakeCompleter struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (c *fakeCompleter) Complete(path domain.Path) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path.String())
	return c.err
}

func (c *fakeCompleter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

type mapSource map[string]string

func (s mapSource) ReadStatement(path string) (string, error) {
	stmt, ok := s[path]
	if !ok {
		return "", errors.New("no such file")
	}
	return stmt, nil
}

func inline(name, statement string) domain.Query {
	return domain.Query{Path: domain.Path{name}, Template: "q", Statement: statement}
}

// runPool запускает пул в горутине и возвращает канал с результатом Run.
func runPool(t *testing.T, pool *Pool) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- pool.Run(context.Background()) }()
	return done
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
		return nil
	}
}

// --- Queue Tests ---

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	q.Push(inline("a", "1"), inline("b", "2"))
	q.Push(inline("c", "3"))

	for _, want := range []string{"/a", "/b", "/c"} {
		item, ok := q.Pop()
		if !ok {
			t.Fatalf("expected %s, queue is empty", want)
		}
		if item.Path.String() != want {
			t.Errorf("expected %s, got %s", want, item.Path)
		}
		q.Ack()
	}

	if _, ok := q.Pop(); ok {
		t.Error("queue should be empty")
	}
}

func TestQueue_Idle(t *testing.T) {
	q := NewQueue()
	if !q.Idle() {
		t.Error("new queue should be idle")
	}

	q.Push(inline("a", "1"))
	if q.Idle() {
		t.Error("queue with items should not be idle")
	}

	if _, ok := q.Pop(); !ok {
		t.Fatal("expected item")
	}
	if q.Idle() {
		t.Error("queue with an active task should not be idle")
	}
	if q.Active() != 1 {
		t.Errorf("expected 1 active task, got %d", q.Active())
	}

	q.Ack()
	if !q.Idle() {
		t.Error("queue should be idle after ack")
	}
}

func TestQueue_ReadySignal(t *testing.T) {
	q := NewQueue()

	select {
	case <-q.Ready():
		t.Fatal("empty queue should not signal")
	default:
	}

	q.Push(inline("a", "1"), inline("b", "2"))
	<-q.Ready()

	// Pop передаёт сигнал дальше, пока в очереди что-то есть
	q.Pop()
	select {
	case <-q.Ready():
	default:
		t.Error("expected ready signal for the remaining item")
	}
}

// --- Pool Tests ---

func TestNewPool_Validation(t *testing.T) {
	if _, err := NewPool(NewQueue(), Config{Completer: &fakeCompleter{}}); !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
	if _, err := NewPool(NewQueue(), Config{Backend: &fakeBackend{}}); !errors.Is(err, ErrNoCompleter) {
		t.Errorf("expected ErrNoCompleter, got %v", err)
	}

	pool, err := NewPool(NewQueue(), Config{Backend: &fakeBackend{}, Completer: &fakeCompleter{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Size() != defaultWorkers {
		t.Errorf("expected default %d workers, got %d", defaultWorkers, pool.Size())
	}
}

func TestPool_ExecutesAndReports(t *testing.T) {
	for _, workers := range []int{1, 2} {
		queue := NewQueue()
		backend := &fakeBackend{}
		completer := &fakeCompleter{}

		var hookMu sync.Mutex
		hooked := 0

		pool, err := NewPool(queue, Config{
			Backend:      backend,
			Completer:    completer,
			Workers:      workers,
			IdleInterval: time.Millisecond,
			OnReport: func(domain.TaskReport) {
				hookMu.Lock()
				hooked++
				hookMu.Unlock()
			},
		})
		if err != nil {
			t.Fatalf("new pool: %v", err)
		}

		done := runPool(t, pool)
		queue.Push(inline("a", "SELECT 1"), inline("b", "SELECT 2"))

		waitFor(t, "completions", func() bool { return completer.count() == 2 })
		pool.Stop()
		if err := waitResult(t, done); err != nil {
			t.Fatalf("workers=%d: unexpected error: %v", workers, err)
		}

		reports := pool.Reports()
		if len(reports) != 2 {
			t.Fatalf("workers=%d: expected 2 reports, got %d", workers, len(reports))
		}
		for _, r := range reports {
			if r.Status != domain.TaskStatusSucceeded {
				t.Errorf("expected SUCCEEDED, got %s", r.Status)
			}
			if r.Duration != 1.5 {
				t.Errorf("expected duration 1.5, got %v", r.Duration)
			}
			if r.TotalBytesBilled != 2048 {
				t.Errorf("expected 2048 bytes, got %d", r.TotalBytesBilled)
			}
		}
		if hooked != 2 {
			t.Errorf("expected OnReport called twice, got %d", hooked)
		}
		if !queue.Idle() {
			t.Error("queue should be idle after all tasks")
		}
	}
}

func TestPool_ScriptReadAtDispatch(t *testing.T) {
	queue := NewQueue()
	backend := &fakeBackend{}
	completer := &fakeCompleter{}
	params := []domain.Parameter{{Name: "day", Value: "2024-01-01"}}

	pool, err := NewPool(queue, Config{
		Backend:   backend,
		Completer: completer,
		Source:    mapSource{"/sql/load.sql": "SELECT * FROM t WHERE d = @day"},
		Workers:   1,
	})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	done := runPool(t, pool)
	queue.Push(domain.Query{Path: domain.Path{"load"}, ScriptPath: "/sql/load.sql", Parameters: params})

	waitFor(t, "completion", func() bool { return completer.count() == 1 })
	pool.Stop()
	if err := waitResult(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if backend.statements[0] != "SELECT * FROM t WHERE d = @day" {
		t.Errorf("unexpected statement: %s", backend.statements[0])
	}
	if backend.params[0][0].Value != "2024-01-01" {
		t.Errorf("parameters not passed to backend: %v", backend.params[0])
	}
}

func TestPool_FailFast(t *testing.T) {
	backendErr := errors.New("syntax error at or near SELEC")

	tests := []struct {
		name  string
		query domain.Query
		want  error
	}{
		{
			name:  "backend error",
			query: inline("bad", "SELEC 1"),
			want:  backendErr,
		},
		{
			name:  "missing script",
			query: domain.Query{Path: domain.Path{"bad"}, ScriptPath: "/absent.sql"},
			want:  ErrScriptRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue()
			completer := &fakeCompleter{}
			pool, err := NewPool(queue, Config{
				Backend:   &fakeBackend{fail: map[string]error{"SELEC 1": backendErr}},
				Completer: completer,
				Source:    mapSource{},
				Workers:   2,
			})
			if err != nil {
				t.Fatalf("new pool: %v", err)
			}

			done := runPool(t, pool)
			queue.Push(tt.query)

			err = waitResult(t, done)
			if !errors.Is(err, ErrBackend) {
				t.Errorf("expected ErrBackend, got %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if completer.count() != 0 {
				t.Error("failed task must not be completed")
			}

			reports := pool.Reports()
			if len(reports) != 1 || reports[0].Status != domain.TaskStatusFailed {
				t.Errorf("expected one FAILED report, got %+v", reports)
			}
		})
	}
}

func TestPool_ContinueOnError(t *testing.T) {
	queue := NewQueue()
	completer := &fakeCompleter{}
	pool, err := NewPool(queue, Config{
		Backend:         &fakeBackend{fail: map[string]error{"SELEC 1": errors.New("syntax error")}},
		Completer:       completer,
		Workers:         1,
		ContinueOnError: true,
	})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	done := runPool(t, pool)
	queue.Push(inline("bad", "SELEC 1"), inline("good", "SELECT 1"))

	waitFor(t, "reports", func() bool { return len(pool.Reports()) == 2 })
	waitFor(t, "idle queue", queue.Idle)
	pool.Stop()
	if err := waitResult(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reports := pool.Reports()
	if reports[0].Status != domain.TaskStatusFailed || reports[0].Error == "" {
		t.Errorf("expected FAILED report with error, got %+v", reports[0])
	}
	if reports[1].Status != domain.TaskStatusSucceeded {
		t.Errorf("expected SUCCEEDED report, got %+v", reports[1])
	}
	if completer.count() != 1 || completer.paths[0] != "/good" {
		t.Errorf("only /good should be completed, got %v", completer.paths)
	}
}

func TestPool_CompleterErrorIsFatal(t *testing.T) {
	queue := NewQueue()
	invariant := errors.New("status is already done")
	pool, err := NewPool(queue, Config{
		Backend:         &fakeBackend{},
		Completer:       &fakeCompleter{err: invariant},
		Workers:         1,
		ContinueOnError: true,
	})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	done := runPool(t, pool)
	queue.Push(inline("a", "SELECT 1"))

	if err := waitResult(t, done); !errors.Is(err, invariant) {
		t.Errorf("expected completer error, got %v", err)
	}
}

func TestPool_StopFinishesInFlight(t *testing.T) {
	queue := NewQueue()
	backend := &fakeBackend{block: make(chan struct{})}
	completer := &fakeCompleter{}
	pool, err := NewPool(queue, Config{Backend: backend, Completer: completer, Workers: 1})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	done := runPool(t, pool)
	queue.Push(inline("slow", "SELECT pg_sleep(1)"), inline("next", "SELECT 1"))

	waitFor(t, "task in flight", func() bool { return queue.Active() == 1 })
	pool.Stop()
	close(backend.block)

	if err := waitResult(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.Reports()) != 1 {
		t.Errorf("expected only the in-flight task to finish, got %d reports", len(pool.Reports()))
	}
	if queue.Len() != 1 {
		t.Errorf("queued task should stay in queue after stop, got %d", queue.Len())
	}
}
