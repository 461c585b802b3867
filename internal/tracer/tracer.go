package tracer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/engine"
)

// Tracer владеет определением workflow и деревом выполнения.
//
// Tracer раскрывает templates в узлы дерева, отдаёт исполняемые leaf-задачи
// и принимает уведомления о завершении. Все методы потокобезопасны:
// раскрытие, завершение и поиск leaf выполняются под одним мьютексом.
type Tracer struct {
	plan     *engine.Plan
	statuses *Statuses
	args     []domain.Parameter

	// changed сигнализирует ожидающим, что дерево изменилось.
	// Буфер 1: несколько сигналов подряд сливаются в один.
	changed chan struct{}

	logger *slog.Logger
	mu     sync.Mutex
}

// Config — конфигурация Tracer.
type Config struct {
	Logger *slog.Logger
}

// New нормализует workflow, создаёт корень дерева и раскрывает его.
//
// Workflow должен быть провалидирован (engine.Validate).
func New(wf *domain.Workflow, cfg Config) (*Tracer, error) {
	plan, err := engine.Normalize(wf)
	if err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t := &Tracer{
		plan:     plan,
		statuses: NewStatuses(),
		args:     wf.Arguments,
		changed:  make(chan struct{}, 1),
		logger:   cfg.Logger,
	}

	if _, ok := wf.Template(wf.Entrypoint); !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownEntrypoint, wf.Entrypoint)
	}

	root := NewStatus(wf.Entrypoint, domain.Path{}, plan.Required(wf.Entrypoint), wf.Arguments)
	if err := t.statuses.Insert(root); err != nil {
		return nil, err
	}

	if err := t.expand(); err != nil {
		return nil, err
	}

	return t, nil
}

// Expand раскрывает дерево до неподвижной точки.
// Повторный вызов без завершений ничего не добавляет.
func (t *Tracer) Expand() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.expand()
}

// expand выполняет проходы раскрытия, пока проход добавляет узлы.
// Вызывается под мьютексом.
func (t *Tracer) expand() error {
	for {
		added, err := t.expandPass()
		if err != nil {
			return err
		}
		if added == 0 {
			return nil
		}
	}
}

// expandPass — один проход раскрытия: для каждого незавершённого узла
// добавляет задачи, все зависимости которых уже завершены.
func (t *Tracer) expandPass() (int, error) {
	added := 0

	for _, st := range t.statuses.All() {
		if st.Done {
			continue
		}

		for _, task := range t.plan.Tasks(st.Template) {
			if st.HasCompleted(task.Name) {
				continue
			}
			childPath := st.Path.Child(task.Name)
			if t.statuses.Contains(childPath) {
				continue
			}
			if !st.CompletedAll(task.Dependencies) {
				continue
			}

			child := NewStatus(
				task.Template,
				childPath,
				t.plan.Required(task.Template),
				engine.MergeParameters(t.args, task.Arguments),
			)
			if err := t.statuses.Insert(child); err != nil {
				return added, err
			}
			added++

			t.logger.Debug("status added",
				"path", childPath.String(),
				"template", task.Template,
			)
		}
	}

	return added, nil
}

// Queries возвращает исполняемые leaf-задачи в порядке появления в дереве.
//
// Параметры проецируются на объявленные inputs leaf template. Незаданный
// input — ошибка конфигурации.
func (t *Tracer) Queries() ([]domain.Query, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	executable := t.statuses.Executable()
	queries := make([]domain.Query, 0, len(executable))

	for _, st := range executable {
		q, err := t.query(st)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	return queries, nil
}

func (t *Tracer) query(st *Status) (domain.Query, error) {
	tmpl, ok := t.plan.Template(st.Template)
	if !ok {
		return domain.Query{}, fmt.Errorf("%w: %s", engine.ErrUnknownTemplate, st.Template)
	}

	params, err := engine.ProjectParameters(tmpl.Name, tmpl.Inputs, st.Parameters)
	if err != nil {
		return domain.Query{}, fmt.Errorf("task %s: %w", st.Path, err)
	}

	q := domain.Query{
		Path:       st.Path,
		Template:   tmpl.Name,
		Parameters: params,
	}

	switch body := tmpl.Body.(type) {
	case domain.InlineBody:
		q.Statement = body.Statement
	case domain.ScriptBody:
		q.ScriptPath = body.Path
	default:
		return domain.Query{}, fmt.Errorf("%w: %s is not a leaf template", engine.ErrInvalidBody, tmpl.Name)
	}

	return q, nil
}

// Complete отмечает путь завершённым, распространяет завершение вверх,
// раскрывает дерево и сигнализирует ожидающим.
func (t *Tracer) Complete(path domain.Path) error {
	t.mu.Lock()
	err := t.statuses.Complete(path)
	if err == nil {
		err = t.expand()
	}
	t.mu.Unlock()

	if err != nil {
		return err
	}

	t.logger.Debug("status completed", "path", path.String())
	t.notify()
	return nil
}

func (t *Tracer) notify() {
	select {
	case t.changed <- struct{}{}:
	default:
	}
}

// Changed возвращает канал, в который приходит сигнал после каждого
// успешного завершения.
func (t *Tracer) Changed() <-chan struct{} {
	return t.changed
}

// Done возвращает true, если корень завершён.
func (t *Tracer) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	root, err := t.statuses.Root()
	return err == nil && root.Done
}

// Pending возвращает пути незавершённых leaf-узлов.
func (t *Tracer) Pending() []domain.Path {
	t.mu.Lock()
	defer t.mu.Unlock()

	var paths []domain.Path
	for _, st := range t.statuses.Executable() {
		paths = append(paths, st.Path)
	}
	return paths
}

// Size возвращает количество узлов в дереве.
func (t *Tracer) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.statuses.Len()
}

// Status возвращает копию узла по пути.
func (t *Tracer) Status(path domain.Path) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.statuses.Find(path)
	if err != nil {
		return Status{}, err
	}

	cp := *st
	cp.Required = append([]string(nil), st.Required...)
	cp.Completed = append([]string(nil), st.Completed...)
	cp.completed = make(map[string]bool, len(st.completed))
	for name := range st.completed {
		cp.completed[name] = true
	}
	return cp, nil
}
