package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/bqflow/internal/domain"
)

// Допустимые скалярные типы параметров.
var validScalarTypes = map[domain.ParamType]bool{
	domain.ParamTypeString:    true,
	domain.ParamTypeBytes:     true,
	domain.ParamTypeNumeric:   true,
	domain.ParamTypeInt64:     true,
	domain.ParamTypeFloat64:   true,
	domain.ParamTypeDate:      true,
	domain.ParamTypeDatetime:  true,
	domain.ParamTypeTimestamp: true,
	domain.ParamTypeTime:      true,
	domain.ParamTypeBool:      true,
	domain.ParamTypeGeography: true,
}

// Validate выполняет полную валидацию Workflow.
//
// Проверяет:
// - Наличие templates и уникальность их имён
// - Что entrypoint ссылается на существующий template
// - Что у каждого template ровно одно тело и контейнеры не пусты
// - Уникальность имён задач внутри template
// - Теги типов параметров
// - Ссылки на templates, зависимости и отсутствие циклов (делегируется Normalize)
func Validate(wf *domain.Workflow) error {
	if wf == nil || len(wf.Templates) == 0 {
		return ErrEmptyWorkflow
	}

	names := make(map[string]bool, len(wf.Templates))
	for i := range wf.Templates {
		t := &wf.Templates[i]

		if t.Name == "" {
			return NewValidationError("", "name",
				fmt.Sprintf("template %d has empty name", i), ErrEmptyName)
		}
		if names[t.Name] {
			return NewValidationError(t.Name, "name",
				fmt.Sprintf("duplicate template name: %s", t.Name), ErrDuplicateTemplate)
		}
		names[t.Name] = true

		if err := ValidateTemplate(t); err != nil {
			return err
		}
	}

	if !names[wf.Entrypoint] {
		return NewValidationError("", "entrypoint",
			fmt.Sprintf("entrypoint %q is not a template", wf.Entrypoint), ErrUnknownEntrypoint)
	}

	if err := validateParameters("", wf.Arguments); err != nil {
		return err
	}

	if _, err := Normalize(wf); err != nil {
		return err
	}

	return nil
}

// ValidateTemplate валидирует один template.
func ValidateTemplate(t *domain.Template) error {
	if err := validateParameters(t.Name, t.Inputs); err != nil {
		return err
	}

	switch body := t.Body.(type) {
	case domain.ScriptBody:
		if body.Path == "" {
			return NewValidationError(t.Name, "script", "script path is empty", ErrInvalidBody)
		}

	case domain.InlineBody:
		if body.Statement == "" {
			return NewValidationError(t.Name, "run", "statement is empty", ErrInvalidBody)
		}

	case domain.StepsBody:
		if len(body.Groups) == 0 {
			return NewValidationError(t.Name, "steps", "steps has no groups", ErrEmptyBody)
		}
		seen := make(map[string]bool)
		for gi, group := range body.Groups {
			if len(group) == 0 {
				return NewValidationError(t.Name, "steps",
					fmt.Sprintf("step group %d is empty", gi), ErrEmptyBody)
			}
			for _, step := range group {
				if err := validateTaskName(t.Name, step.Name, seen); err != nil {
					return err
				}
				if err := validateParameters(t.Name, step.Arguments); err != nil {
					return err
				}
			}
		}

	case domain.GraphBody:
		if len(body.Tasks) == 0 {
			return NewValidationError(t.Name, "dag", "dag has no tasks", ErrEmptyBody)
		}
		seen := make(map[string]bool)
		for _, task := range body.Tasks {
			if err := validateTaskName(t.Name, task.Name, seen); err != nil {
				return err
			}
			if err := validateParameters(t.Name, task.Arguments); err != nil {
				return err
			}
		}

	default:
		return NewValidationError(t.Name, "body", "template has no body", ErrInvalidBody)
	}

	return nil
}

// validateTaskName проверяет, что имя задачи не пустое и уникально в template.
func validateTaskName(template, name string, seen map[string]bool) error {
	if name == "" {
		return NewValidationError(template, "name", "task has empty name", ErrEmptyName)
	}
	if strings.Contains(name, domain.PathSeparator) {
		return NewValidationError(template, "name",
			fmt.Sprintf("task name %q contains a control character", name), ErrInvalidName)
	}
	if seen[name] {
		return NewValidationError(template, "name",
			fmt.Sprintf("duplicate task name: %s", name), ErrDuplicateTask)
	}
	seen[name] = true
	return nil
}

// validateParameters проверяет имена и теги типов параметров.
func validateParameters(template string, params []domain.Parameter) error {
	for _, p := range params {
		if p.Name == "" {
			return NewValidationError(template, "parameters", "parameter has empty name", ErrEmptyName)
		}
		if p.Type != "" && !IsValidParamType(p.Type) {
			return NewValidationError(template, "parameters",
				fmt.Sprintf("parameter %s has unknown type: %s", p.Name, p.Type), ErrUnknownParamType)
		}
	}
	return nil
}

// IsValidParamType проверяет, является ли тег типа допустимым.
func IsValidParamType(t domain.ParamType) bool {
	if t == domain.ParamTypeStruct {
		return true
	}
	if t.IsArray() {
		elem := t.Elem()
		return elem == domain.ParamTypeStruct || validScalarTypes[elem]
	}
	return validScalarTypes[t]
}
