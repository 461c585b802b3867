package domain

import "time"

// Query — исполняемая leaf-задача.
//
// Query создаётся Tracer'ом из незавершённого leaf Status и живёт,
// пока worker не отправит её в backend.
type Query struct {
	// Path — путь leaf Status, который представляет задача.
	Path Path `json:"path"`

	// Template — имя leaf template.
	Template string `json:"template"`

	// Statement — текст SQL для inline templates.
	Statement string `json:"statement,omitempty"`

	// ScriptPath — путь к файлу SQL для script templates.
	// Файл читается в момент dispatch.
	ScriptPath string `json:"script_path,omitempty"`

	// Parameters — спроецированные входные параметры в порядке объявления.
	Parameters []Parameter `json:"parameters,omitempty"`
}

// JobStats — статистика выполнения запроса, возвращаемая backend'ом.
type JobStats struct {
	StartedAt  time.Time
	FinishedAt time.Time

	// BytesBilled — объём данных, за который выставлен счёт.
	BytesBilled int64
}

// Elapsed возвращает время выполнения.
func (s *JobStats) Elapsed() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// TaskReport — результат выполнения одной leaf-задачи.
type TaskReport struct {
	// Path — путь выполненной задачи.
	Path Path `json:"name"`

	// Duration — время выполнения в секундах.
	Duration float64 `json:"duration"`

	// TotalBytesBilled — объём данных в байтах.
	TotalBytesBilled int64 `json:"total_bytes_billed"`

	// Status — SUCCEEDED или FAILED.
	Status TaskStatus `json:"status"`

	// Error — текст ошибки backend'а для FAILED.
	Error string `json:"error,omitempty"`
}

// NewTaskReport строит успешный отчёт из статистики backend'а.
func NewTaskReport(path Path, stats *JobStats) TaskReport {
	report := TaskReport{Path: path, Status: TaskStatusSucceeded}
	if stats != nil {
		report.Duration = stats.Elapsed().Seconds()
		report.TotalBytesBilled = stats.BytesBilled
	}
	return report
}

// NewFailedReport строит отчёт об ошибке выполнения.
func NewFailedReport(path Path, err error) TaskReport {
	return TaskReport{Path: path, Status: TaskStatusFailed, Error: err.Error()}
}
