package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/engine"
	"github.com/shaiso/bqflow/internal/worker"
)

// --- Fakes ---

// recordingBackend запоминает порядок выполненных statements.
type recordingBackend struct {
	mu       sync.Mutex
	executed []string
	fail     map[string]bool
	delay    time.Duration
	block    chan struct{}
}

func (b *recordingBackend) Submit(ctx context.Context, statement string, _ []domain.Parameter) (*domain.JobStats, error) {
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail[statement] {
		return nil, errors.New("relation does not exist")
	}
	b.executed = append(b.executed, statement)

	now := time.Now()
	return &domain.JobStats{StartedAt: now, FinishedAt: now, BytesBilled: 10}, nil
}

func (b *recordingBackend) order() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.executed...)
}

// recordingObserver запоминает события.
type recordingObserver struct {
	mu      sync.Mutex
	events  []string
	reports int
}

func (o *recordingObserver) OnRunStarted(_ context.Context, run *domain.Run) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "started:"+string(run.Status))
	return nil
}

func (o *recordingObserver) OnTaskReport(_ context.Context, _ *domain.Run, _ domain.TaskReport) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports++
	return nil
}

func (o *recordingObserver) OnRunFinished(_ context.Context, run *domain.Run, _ []domain.TaskReport) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "finished:"+string(run.Status))
	return errors.New("observer errors are only logged")
}

// --- Helpers ---

// inlineLeaf — leaf template, statement которого равен имени.
func inlineLeaf(name string) domain.Template {
	return domain.Template{Name: name, Body: domain.InlineBody{Statement: name}}
}

func newOrchestrator(backend worker.Backend, workers int, continueOnError bool, obs ...Observer) *Orchestrator {
	return New(Config{
		Backend:         backend,
		Workers:         workers,
		PollInterval:    5 * time.Millisecond,
		IdleInterval:    time.Millisecond,
		ContinueOnError: continueOnError,
		Observers:       obs,
	})
}

func run(t *testing.T, o *Orchestrator, wf *domain.Workflow) (*RunResult, error) {
	t.Helper()
	if err := engine.Validate(wf); err != nil {
		t.Fatalf("invalid workflow: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return o.Run(ctx, wf, "test.yaml")
}

func indexOf(items []string, item string) int {
	for i, v := range items {
		if v == item {
			return i
		}
	}
	return -1
}

func reportPaths(reports []domain.TaskReport) []string {
	paths := make([]string, len(reports))
	for i, r := range reports {
		paths[i] = r.Path.String()
	}
	sort.Strings(paths)
	return paths
}

// --- Tests ---

func TestRun_IndependentLeaves(t *testing.T) {
	for _, workers := range []int{1, 2} {
		wf := &domain.Workflow{
			Entrypoint: "main",
			Templates: []domain.Template{
				{Name: "main", Body: domain.GraphBody{Tasks: []domain.GraphTask{
					{Name: "a", Template: "qa"},
					{Name: "b", Template: "qb"},
				}}},
				inlineLeaf("qa"),
				inlineLeaf("qb"),
			},
		}

		result, err := run(t, newOrchestrator(&recordingBackend{}, workers, false), wf)
		if err != nil {
			t.Fatalf("workers=%d: unexpected error: %v", workers, err)
		}

		if len(result.Reports) != 2 {
			t.Errorf("workers=%d: expected 2 reports, got %d", workers, len(result.Reports))
		}
		if result.Run.Status != domain.RunStatusSucceeded {
			t.Errorf("workers=%d: expected SUCCEEDED, got %s", workers, result.Run.Status)
		}
		if result.Run.FinishedAt == nil {
			t.Errorf("workers=%d: FinishedAt should be set", workers)
		}
	}
}

func TestRun_StepGroupsBarrier(t *testing.T) {
	wf := &domain.Workflow{
		Entrypoint: "main",
		Templates: []domain.Template{
			{Name: "main", Body: domain.StepsBody{Groups: [][]domain.Step{
				{{Name: "x", Template: "x"}, {Name: "y", Template: "y"}},
				{{Name: "z", Template: "z"}},
			}}},
			inlineLeaf("x"),
			inlineLeaf("y"),
			inlineLeaf("z"),
		},
	}
	backend := &recordingBackend{delay: 5 * time.Millisecond}

	result, err := run(t, newOrchestrator(backend, 4, false), wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := backend.order()
	if len(order) != 3 {
		t.Fatalf("expected 3 executions, got %v", order)
	}
	if order[2] != "z" {
		t.Errorf("z must run after x and y, got order %v", order)
	}
	if diff := cmp.Diff([]string{"/x", "/y", "/z"}, reportPaths(result.Reports)); diff != "" {
		t.Errorf("reports mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_NestedDependencies(t *testing.T) {
	// main: extract → transform(steps: clean → [agg1, agg2]) → publish
	wf := &domain.Workflow{
		Entrypoint: "main",
		Templates: []domain.Template{
			{Name: "main", Body: domain.GraphBody{Tasks: []domain.GraphTask{
				{Name: "extract", Template: "extract"},
				{Name: "transform", Template: "transform", Dependencies: []string{"extract"}},
				{Name: "publish", Template: "publish", Dependencies: []string{"transform"}},
			}}},
			{Name: "transform", Body: domain.StepsBody{Groups: [][]domain.Step{
				{{Name: "clean", Template: "clean"}},
				{{Name: "agg1", Template: "agg1"}, {Name: "agg2", Template: "agg2"}},
			}}},
			inlineLeaf("extract"),
			inlineLeaf("clean"),
			inlineLeaf("agg1"),
			inlineLeaf("agg2"),
			inlineLeaf("publish"),
		},
	}
	backend := &recordingBackend{}

	result, err := run(t, newOrchestrator(backend, 3, false), wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := backend.order()
	before := [][2]string{
		{"extract", "clean"},
		{"clean", "agg1"},
		{"clean", "agg2"},
		{"agg1", "publish"},
		{"agg2", "publish"},
	}
	for _, pair := range before {
		if indexOf(order, pair[0]) > indexOf(order, pair[1]) {
			t.Errorf("%s must run before %s, got order %v", pair[0], pair[1], order)
		}
	}

	want := []string{"/extract", "/publish", "/transform/agg1", "/transform/agg2", "/transform/clean"}
	if diff := cmp.Diff(want, reportPaths(result.Reports)); diff != "" {
		t.Errorf("reports mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_FailFast(t *testing.T) {
	wf := &domain.Workflow{
		Entrypoint: "main",
		Templates: []domain.Template{
			{Name: "main", Body: domain.GraphBody{Tasks: []domain.GraphTask{
				{Name: "a", Template: "bad"},
				{Name: "b", Template: "after", Dependencies: []string{"a"}},
			}}},
			inlineLeaf("bad"),
			inlineLeaf("after"),
		},
	}
	backend := &recordingBackend{fail: map[string]bool{"bad": true}}

	result, err := run(t, newOrchestrator(backend, 2, false), wf)
	if !errors.Is(err, worker.ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if result.Run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", result.Run.Status)
	}
	if result.Run.Error == "" {
		t.Error("run error should be set")
	}
	if indexOf(backend.order(), "after") >= 0 {
		t.Error("dependent task must not run after failure")
	}
}

func TestRun_ContinueOnError(t *testing.T) {
	wf := &domain.Workflow{
		Entrypoint: "main",
		Templates: []domain.Template{
			{Name: "main", Body: domain.GraphBody{Tasks: []domain.GraphTask{
				{Name: "a", Template: "bad"},
				{Name: "b", Template: "after", Dependencies: []string{"a"}},
				{Name: "c", Template: "other"},
			}}},
			inlineLeaf("bad"),
			inlineLeaf("after"),
			inlineLeaf("other"),
		},
	}
	backend := &recordingBackend{fail: map[string]bool{"bad": true}}

	result, err := run(t, newOrchestrator(backend, 2, true), wf)
	if !errors.Is(err, ErrRunIncomplete) {
		t.Fatalf("expected ErrRunIncomplete, got %v", err)
	}
	if result.Run.Status != domain.RunStatusIncomplete {
		t.Errorf("expected INCOMPLETE, got %s", result.Run.Status)
	}

	statuses := make(map[string]domain.TaskStatus)
	for _, r := range result.Reports {
		statuses[r.Path.String()] = r.Status
	}
	want := map[string]domain.TaskStatus{
		"/a": domain.TaskStatusFailed,
		"/c": domain.TaskStatusSucceeded,
	}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("report statuses mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_MissingParameter(t *testing.T) {
	wf := &domain.Workflow{
		Entrypoint: "q",
		Templates: []domain.Template{
			{Name: "q", Inputs: []domain.Parameter{{Name: "day"}}, Body: domain.InlineBody{Statement: "SELECT @day"}},
		},
	}
	backend := &recordingBackend{}

	result, err := run(t, newOrchestrator(backend, 1, true), wf)
	if !errors.Is(err, engine.ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
	if result.Run.Status != domain.RunStatusFailed {
		t.Errorf("configuration errors fail the run even in continue mode, got %s", result.Run.Status)
	}
	if len(backend.order()) != 0 {
		t.Error("nothing should be executed")
	}
}

func TestRun_Observers(t *testing.T) {
	wf := &domain.Workflow{
		Entrypoint: "main",
		Templates: []domain.Template{
			{Name: "main", Body: domain.StepsBody{Groups: [][]domain.Step{
				{{Name: "a", Template: "q"}},
				{{Name: "b", Template: "q"}},
			}}},
			inlineLeaf("q"),
		},
	}
	obs := &recordingObserver{}

	if _, err := run(t, newOrchestrator(&recordingBackend{}, 2, false, obs), wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"started:RUNNING", "finished:SUCCEEDED"}, obs.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if obs.reports != 2 {
		t.Errorf("expected 2 task reports, got %d", obs.reports)
	}
}

func TestRun_Cancelled(t *testing.T) {
	wf := &domain.Workflow{
		Entrypoint: "q",
		Templates:  []domain.Template{inlineLeaf("q")},
	}
	backend := &recordingBackend{block: make(chan struct{})}
	o := newOrchestrator(backend, 1, false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := o.Run(ctx, wf, "test.yaml")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", result.Run.Status)
	}
	if o.ActiveRunsCount() != 0 {
		t.Errorf("expected no active runs, got %d", o.ActiveRunsCount())
	}
}

func TestRun_Stopped(t *testing.T) {
	o := newOrchestrator(&recordingBackend{}, 1, false)
	o.Stop()

	wf := &domain.Workflow{Entrypoint: "q", Templates: []domain.Template{inlineLeaf("q")}}
	if _, err := o.Run(context.Background(), wf, "test.yaml"); !errors.Is(err, ErrOrchestratorStopped) {
		t.Errorf("expected ErrOrchestratorStopped, got %v", err)
	}
}

func TestRun_NoBackend(t *testing.T) {
	o := New(Config{})
	wf := &domain.Workflow{Entrypoint: "q", Templates: []domain.Template{inlineLeaf("q")}}

	result, err := o.Run(context.Background(), wf, "test.yaml")
	if !errors.Is(err, worker.ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
	if result.Run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", result.Run.Status)
	}
}
