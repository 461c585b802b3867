package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ INCOMPLETE (часть задач упала, остальные выполнены)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — корень дерева завершён.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — run прерван ошибкой.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusIncomplete — режим ContinueOnError: часть задач упала,
	// зависимые от них задачи не выполнялись.
	RunStatusIncomplete RunStatus = "INCOMPLETE"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusIncomplete:
		return true
	default:
		return false
	}
}

// TaskStatus — итог выполнения leaf-задачи.
type TaskStatus string

const (
	// TaskStatusSucceeded — запрос выполнен.
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"

	// TaskStatusFailed — backend вернул ошибку.
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed:
		return true
	default:
		return false
	}
}
