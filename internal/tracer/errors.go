package tracer

import (
	"errors"
	"fmt"

	"github.com/shaiso/bqflow/internal/engine"
)

// ErrInvariant — класс ошибок нарушенного инварианта дерева выполнения.
// При корректном раскрытии и распространении завершения они недостижимы,
// поэтому run прерывается немедленно.
var ErrInvariant = errors.New("status tree invariant violated")

// Ошибки вставки в дерево (конфигурационные).
var (
	// ErrDuplicatePath — Status с таким путём уже существует.
	ErrDuplicatePath = fmt.Errorf("%w: duplicate status path", engine.ErrConfiguration)

	// ErrOrphanPath — родитель вставляемого Status отсутствует.
	ErrOrphanPath = fmt.Errorf("%w: parent status does not exist", engine.ErrConfiguration)
)

// Ошибки завершения.
var (
	// ErrPathNotFound — Status с таким путём не найден.
	ErrPathNotFound = fmt.Errorf("%w: status not found", ErrInvariant)

	// ErrUndoneChildren — у завершаемого Status есть незавершённые потомки.
	ErrUndoneChildren = fmt.Errorf("%w: status has undone descendants", ErrInvariant)

	// ErrOutstandingChildren — не все обязательные задачи Status завершены.
	ErrOutstandingChildren = fmt.Errorf("%w: required tasks are not completed", ErrInvariant)

	// ErrDuplicateCompletion — родитель уже отметил эту задачу завершённой.
	ErrDuplicateCompletion = fmt.Errorf("%w: task already registered as completed", ErrInvariant)

	// ErrAlreadyDone — повторное завершение одного пути.
	ErrAlreadyDone = fmt.Errorf("%w: status is already done", ErrInvariant)
)
