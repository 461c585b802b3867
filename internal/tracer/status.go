package tracer

import (
	"fmt"

	"github.com/shaiso/bqflow/internal/domain"
)

// Status — узел дерева выполнения: один экземпляр template по конкретному пути.
type Status struct {
	// Template — имя template, экземпляром которого является узел.
	Template string

	// Path — путь от корня. Уникален в дереве.
	Path domain.Path

	// Required — имена непосредственных задач template. Пусто для leaf.
	Required []string

	// Completed — завершённые непосредственные задачи в порядке завершения.
	Completed []string

	// Parameters — параметры, разрешённые при создании узла.
	Parameters []domain.Parameter

	// Done — узел завершён. Однажды выставленный, не сбрасывается.
	Done bool

	completed map[string]bool
}

// NewStatus создаёт незавершённый Status.
func NewStatus(template string, path domain.Path, required []string, params []domain.Parameter) *Status {
	return &Status{
		Template:   template,
		Path:       path,
		Required:   required,
		Parameters: params,
		completed:  make(map[string]bool),
	}
}

// IsLeaf возвращает true, если у узла нет обязательных задач.
func (s *Status) IsLeaf() bool {
	return len(s.Required) == 0
}

// HasCompleted проверяет, завершена ли непосредственная задача name.
func (s *Status) HasCompleted(name string) bool {
	return s.completed[name]
}

// CompletedAll проверяет, что все имена из names завершены.
func (s *Status) CompletedAll(names []string) bool {
	for _, name := range names {
		if !s.completed[name] {
			return false
		}
	}
	return true
}

// Executable возвращает true для незавершённого leaf.
func (s *Status) Executable() bool {
	return !s.Done && s.IsLeaf()
}

func (s *Status) registerCompleted(name string) {
	s.completed[name] = true
	s.Completed = append(s.Completed, name)
}

// Statuses — дерево выполнения.
//
// Узлы хранятся в арене только на добавление, связь с родителем
// выражается путём. Индекс по ключу пути даёт поиск за O(1).
// Statuses не потокобезопасен, синхронизацию обеспечивает Tracer.
type Statuses struct {
	nodes []*Status
	index map[string]int
}

// NewStatuses создаёт пустое дерево.
func NewStatuses() *Statuses {
	return &Statuses{index: make(map[string]int)}
}

// Len возвращает количество узлов.
func (s *Statuses) Len() int {
	return len(s.nodes)
}

// All возвращает узлы в порядке добавления.
func (s *Statuses) All() []*Status {
	nodes := make([]*Status, len(s.nodes))
	copy(nodes, s.nodes)
	return nodes
}

// Insert добавляет узел.
//
// Путь должен быть новым, а родитель (кроме корня) уже существовать.
// При ошибке дерево не изменяется.
func (s *Statuses) Insert(st *Status) error {
	key := st.Path.Key()
	if _, ok := s.index[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, st.Path)
	}
	if !st.Path.IsRoot() {
		if _, ok := s.index[st.Path.Parent().Key()]; !ok {
			return fmt.Errorf("%w: %s", ErrOrphanPath, st.Path)
		}
	}
	if st.completed == nil {
		st.completed = make(map[string]bool)
	}

	s.index[key] = len(s.nodes)
	s.nodes = append(s.nodes, st)
	return nil
}

// Contains проверяет наличие узла по пути.
func (s *Statuses) Contains(path domain.Path) bool {
	_, ok := s.index[path.Key()]
	return ok
}

// Find возвращает узел по пути.
func (s *Statuses) Find(path domain.Path) (*Status, error) {
	i, ok := s.index[path.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return s.nodes[i], nil
}

// Root возвращает корневой узел.
func (s *Statuses) Root() (*Status, error) {
	return s.Find(domain.Path{})
}

// Executable возвращает незавершённые leaf-узлы в порядке добавления.
func (s *Statuses) Executable() []*Status {
	var result []*Status
	for _, st := range s.nodes {
		if st.Executable() {
			result = append(result, st)
		}
	}
	return result
}

// Complete отмечает узел завершённым и распространяет завершение вверх.
//
// Родитель завершается в тот момент, когда завершена последняя из его
// обязательных задач, и так далее до корня.
func (s *Statuses) Complete(path domain.Path) error {
	st, err := s.Find(path)
	if err != nil {
		return err
	}
	if st.Done {
		return fmt.Errorf("%w: %s", ErrAlreadyDone, path)
	}

	for _, other := range s.nodes {
		if !other.Done && path.IsStrictPrefixOf(other.Path) {
			return fmt.Errorf("%w: %s has undone %s", ErrUndoneChildren, path, other.Path)
		}
	}
	if !st.CompletedAll(st.Required) {
		return fmt.Errorf("%w: %s", ErrOutstandingChildren, path)
	}

	if path.IsRoot() {
		st.Done = true
		return nil
	}

	parent, err := s.Find(path.Parent())
	if err != nil {
		return err
	}

	name := path.Last()
	if parent.HasCompleted(name) {
		return fmt.Errorf("%w: %s", ErrDuplicateCompletion, path)
	}

	st.Done = true
	parent.registerCompleted(name)

	if parent.CompletedAll(parent.Required) {
		return s.Complete(parent.Path)
	}
	return nil
}
