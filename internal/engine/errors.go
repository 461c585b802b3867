package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration — класс ошибок конфигурации workflow.
// Такая ошибка прерывает run: дереву выполнения больше нельзя доверять.
var ErrConfiguration = errors.New("workflow configuration error")

// Ошибки валидации Workflow.
var (
	// ErrEmptyWorkflow — workflow не содержит templates.
	ErrEmptyWorkflow = fmt.Errorf("%w: workflow has no templates", ErrConfiguration)

	// ErrUnknownEntrypoint — entrypoint ссылается на несуществующий template.
	ErrUnknownEntrypoint = fmt.Errorf("%w: entrypoint is not a template", ErrConfiguration)

	// ErrEmptyName — template или задача без имени.
	ErrEmptyName = fmt.Errorf("%w: empty name", ErrConfiguration)

	// ErrInvalidName — имя задачи содержит разделитель ключа пути.
	ErrInvalidName = fmt.Errorf("%w: invalid task name", ErrConfiguration)

	// ErrDuplicateTemplate — несколько templates с одинаковым именем.
	ErrDuplicateTemplate = fmt.Errorf("%w: duplicate template name", ErrConfiguration)

	// ErrDuplicateTask — несколько задач с одинаковым именем внутри template.
	ErrDuplicateTask = fmt.Errorf("%w: duplicate task name", ErrConfiguration)

	// ErrInvalidBody — template не задаёт ровно одно из script, run, steps, dag.
	ErrInvalidBody = fmt.Errorf("%w: template must define exactly one of script, run, steps, dag", ErrConfiguration)

	// ErrEmptyBody — steps или dag без задач.
	ErrEmptyBody = fmt.Errorf("%w: template has no tasks", ErrConfiguration)

	// ErrUnknownTemplate — задача ссылается на несуществующий template.
	ErrUnknownTemplate = fmt.Errorf("%w: task references unknown template", ErrConfiguration)

	// ErrMissingDependency — задача зависит от несуществующей задачи.
	ErrMissingDependency = fmt.Errorf("%w: task depends on unknown task", ErrConfiguration)

	// ErrSelfDependency — задача зависит от самой себя.
	ErrSelfDependency = fmt.Errorf("%w: task depends on itself", ErrConfiguration)

	// ErrCyclicDependency — цикл зависимостей внутри dag template.
	ErrCyclicDependency = fmt.Errorf("%w: cyclic dependency detected", ErrConfiguration)

	// ErrCyclicTemplate — template прямо или косвенно ссылается сам на себя.
	// Раскрытие такого дерева никогда бы не завершилось.
	ErrCyclicTemplate = fmt.Errorf("%w: cyclic template reference", ErrConfiguration)

	// ErrUnknownParamType — неизвестный тег типа параметра.
	ErrUnknownParamType = fmt.Errorf("%w: unknown parameter type", ErrConfiguration)
)

// Ошибки параметров.
var (
	// ErrMissingParameter — leaf template объявил input, которому не нашлось значения.
	ErrMissingParameter = fmt.Errorf("%w: missing parameter", ErrConfiguration)
)

// Ошибки загрузки определения.
var (
	// ErrDecode — файл не является корректным YAML/JSON.
	ErrDecode = errors.New("workflow decode failed")

	// ErrSchema — документ не соответствует схеме workflow.
	ErrSchema = fmt.Errorf("%w: schema violation", ErrConfiguration)
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Template string // template, где произошла ошибка
	Field    string // поле, вызвавшее ошибку
	Message  string // описание ошибки
	Err      error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Template != "" {
		return "template " + e.Template + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(template, field, message string, err error) *ValidationError {
	return &ValidationError{
		Template: template,
		Field:    field,
		Message:  message,
		Err:      err,
	}
}

// MissingParameterError перечисляет все inputs без значения.
type MissingParameterError struct {
	Template string
	Names    []string
}

// Error реализует интерфейс error.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("template %s: parameters %s are not initialized, check the workflow arguments",
		e.Template, strings.Join(e.Names, ", "))
}

// Unwrap возвращает ErrMissingParameter.
func (e *MissingParameterError) Unwrap() error {
	return ErrMissingParameter
}
