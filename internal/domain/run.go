package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один запуск workflow.
//
// Run создаётся когда:
// - Пользователь запускает workflow через CLI
// - Scheduler срабатывает по расписанию
// - Из очереди runs.requested приходит запрос (serve mode)
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Source — путь к файлу определения workflow.
	Source string `json:"source"`

	// Entrypoint — фактический entrypoint (с учётом --entrypoint).
	Entrypoint string `json:"entrypoint"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки для FAILED и INCOMPLETE.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(source, entrypoint string) *Run {
	return &Run{
		ID:         uuid.New(),
		Source:     source,
		Entrypoint: entrypoint,
		Status:     RunStatusPending,
		CreatedAt:  time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkIncomplete переводит run в статус INCOMPLETE.
func (r *Run) MarkIncomplete(err string) {
	now := time.Now()
	r.Status = RunStatusIncomplete
	r.FinishedAt = &now
	r.Error = err
}
