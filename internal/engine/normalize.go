package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/bqflow/internal/domain"
)

// NormalTask — задача в нормальной форме графа зависимостей.
//
// И steps, и dag templates приводятся к списку NormalTask:
// для steps задачи группы i зависят от всех задач группы i-1.
type NormalTask struct {
	Name         string
	Template     string
	Dependencies []string
	Arguments    []domain.Parameter
}

// Plan — нормализованный workflow.
//
// Plan неизменяем после создания и безопасен для конкурентного чтения.
type Plan struct {
	workflow *domain.Workflow
	tasks    map[string][]NormalTask
	required map[string][]string
	dags     map[string]*DAG
}

// NormalizeTemplate приводит template к нормальной форме.
// Для leaf templates возвращает nil.
func NormalizeTemplate(t *domain.Template) []NormalTask {
	switch body := t.Body.(type) {
	case domain.StepsBody:
		var tasks []NormalTask
		var deps []string
		for _, group := range body.Groups {
			groupNames := make([]string, 0, len(group))
			for _, step := range group {
				tasks = append(tasks, NormalTask{
					Name:         step.Name,
					Template:     step.Template,
					Dependencies: deps,
					Arguments:    step.Arguments,
				})
				groupNames = append(groupNames, step.Name)
			}
			deps = groupNames
		}
		return tasks

	case domain.GraphBody:
		tasks := make([]NormalTask, 0, len(body.Tasks))
		for _, task := range body.Tasks {
			tasks = append(tasks, NormalTask{
				Name:         task.Name,
				Template:     task.Template,
				Dependencies: task.Dependencies,
				Arguments:    task.Arguments,
			})
		}
		return tasks

	default:
		return nil
	}
}

// Normalize приводит все templates к нормальной форме и статически
// проверяет ссылки на templates, зависимости и отсутствие циклов.
func Normalize(wf *domain.Workflow) (*Plan, error) {
	plan := &Plan{
		workflow: wf,
		tasks:    make(map[string][]NormalTask, len(wf.Templates)),
		required: make(map[string][]string, len(wf.Templates)),
		dags:     make(map[string]*DAG, len(wf.Templates)),
	}

	for i := range wf.Templates {
		t := &wf.Templates[i]
		tasks := NormalizeTemplate(t)

		required := make([]string, 0, len(tasks))
		for _, task := range tasks {
			if _, ok := wf.Template(task.Template); !ok {
				return nil, NewValidationError(t.Name, "template",
					fmt.Sprintf("task %s references unknown template: %s", task.Name, task.Template), ErrUnknownTemplate)
			}
			required = append(required, task.Name)
		}

		if !t.IsLeaf() {
			dag, err := BuildDAG(t.Name, tasks)
			if err != nil {
				return nil, err
			}
			plan.dags[t.Name] = dag
		}

		plan.tasks[t.Name] = tasks
		plan.required[t.Name] = required
	}

	if err := plan.checkTemplateCycles(); err != nil {
		return nil, err
	}

	return plan, nil
}

// checkTemplateCycles ищет циклы в графе "template → template задачи" обходом в глубину.
func (p *Plan) checkTemplateCycles() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(p.tasks))

	var visit func(name string, trail []string) error
	visit = func(name string, trail []string) error {
		switch color[name] {
		case grey:
			return NewValidationError(name, "template",
				fmt.Sprintf("cyclic template reference: %v", append(trail, name)), ErrCyclicTemplate)
		case black:
			return nil
		}
		color[name] = grey
		for _, task := range p.tasks[name] {
			if err := visit(task.Template, append(trail, name)); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	names := make([]string, 0, len(p.tasks))
	for name := range p.tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// Workflow возвращает исходное определение.
func (p *Plan) Workflow() *domain.Workflow {
	return p.workflow
}

// Tasks возвращает нормализованные задачи template.
func (p *Plan) Tasks(template string) []NormalTask {
	return p.tasks[template]
}

// Required возвращает имена непосредственных задач template.
// Для leaf templates — пустой список.
func (p *Plan) Required(template string) []string {
	return p.required[template]
}

// DAG возвращает граф задач контейнерного template.
func (p *Plan) DAG(template string) (*DAG, bool) {
	dag, ok := p.dags[template]
	return dag, ok
}

// Template возвращает template по имени.
func (p *Plan) Template(name string) (*domain.Template, bool) {
	return p.workflow.Template(name)
}
