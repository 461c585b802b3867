package domain

// Workflow — определение workflow: дерево вложенных templates.
//
// Workflow приходит уже провалидированным (engine.Validate):
// entrypoint существует, имена templates уникальны, ссылки на templates разрешимы.
type Workflow struct {
	// Entrypoint — имя template, с которого начинается выполнение (корень дерева).
	Entrypoint string `json:"entrypoint"`

	// Arguments — глобальные параметры workflow.
	// Доступны каждому узлу дерева, перекрываются аргументами конкретной задачи.
	Arguments []Parameter `json:"arguments,omitempty"`

	// Templates — все templates workflow.
	Templates []Template `json:"templates"`
}

// Template возвращает template по имени.
func (w *Workflow) Template(name string) (*Template, bool) {
	for i := range w.Templates {
		if w.Templates[i].Name == name {
			return &w.Templates[i], true
		}
	}
	return nil, false
}

// EntrypointTemplate возвращает корневой template.
func (w *Workflow) EntrypointTemplate() (*Template, bool) {
	return w.Template(w.Entrypoint)
}

// TemplateKind — вид тела template.
type TemplateKind string

const (
	// TemplateKindScript — SQL из внешнего файла.
	TemplateKindScript TemplateKind = "script"

	// TemplateKindInline — SQL, записанный прямо в определении.
	TemplateKindInline TemplateKind = "run"

	// TemplateKindSteps — последовательные группы параллельных шагов.
	TemplateKindSteps TemplateKind = "steps"

	// TemplateKindGraph — явный граф зависимостей.
	TemplateKindGraph TemplateKind = "dag"
)

// IsLeaf возвращает true для видов, которые отправляются в backend.
func (k TemplateKind) IsLeaf() bool {
	return k == TemplateKindScript || k == TemplateKindInline
}

// Template — именованная переиспользуемая единица workflow.
type Template struct {
	// Name — уникальное имя template.
	Name string `json:"name"`

	// Inputs — параметры, которые leaf template объявляет как обязательные.
	// Для контейнеров (steps/dag) не используются.
	Inputs []Parameter `json:"inputs,omitempty"`

	// Body — ровно одно из: ScriptBody, InlineBody, StepsBody, GraphBody.
	Body TemplateBody `json:"-"`
}

// Kind возвращает вид template.
func (t *Template) Kind() TemplateKind {
	if t.Body == nil {
		return ""
	}
	return t.Body.Kind()
}

// IsLeaf возвращает true для script и run templates.
func (t *Template) IsLeaf() bool {
	return t.Kind().IsLeaf()
}

// TemplateBody — закрытый вариант тела template.
//
// Реализации существуют только в этом пакете, поэтому template
// не может оказаться одновременно, например, script и dag.
type TemplateBody interface {
	Kind() TemplateKind
	templateBody()
}

// ScriptBody — SQL в файле. Файл читается в момент dispatch.
type ScriptBody struct {
	Path string `json:"script"`
}

// InlineBody — SQL прямо в определении.
type InlineBody struct {
	Statement string `json:"run"`
}

// StepsBody — группы шагов. Группа i стартует после завершения всей группы i-1.
type StepsBody struct {
	Groups [][]Step `json:"steps"`
}

// GraphBody — задачи с явными зависимостями.
type GraphBody struct {
	Tasks []GraphTask `json:"tasks"`
}

func (ScriptBody) Kind() TemplateKind { return TemplateKindScript }
func (InlineBody) Kind() TemplateKind { return TemplateKindInline }
func (StepsBody) Kind() TemplateKind  { return TemplateKindSteps }
func (GraphBody) Kind() TemplateKind  { return TemplateKindGraph }

func (ScriptBody) templateBody() {}
func (InlineBody) templateBody() {}
func (StepsBody) templateBody()  {}
func (GraphBody) templateBody()  {}

// Step — шаг внутри группы steps.
type Step struct {
	Name      string      `json:"name"`
	Template  string      `json:"template"`
	Arguments []Parameter `json:"arguments,omitempty"`
}

// GraphTask — задача графа зависимостей.
type GraphTask struct {
	Name         string      `json:"name"`
	Template     string      `json:"template"`
	Dependencies []string    `json:"dependencies,omitempty"`
	Arguments    []Parameter `json:"arguments,omitempty"`
}
