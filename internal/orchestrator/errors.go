package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunIncomplete — выполнять больше нечего, а корень не завершён.
	// Возникает в режиме ContinueOnError, когда упавшие задачи
	// блокируют зависящие от них.
	ErrRunIncomplete = errors.New("run incomplete: failed tasks block the rest of the tree")

	// ErrRunAlreadyActive — run с таким ID уже выполняется.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
