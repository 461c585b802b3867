package engine

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	yaml "gopkg.in/yaml.v3"

	"github.com/shaiso/bqflow/internal/domain"
)

//go:embed schemas/workflow.schema.json
var workflowSchemaSource string

const workflowSchemaURL = "schemas/workflow.schema.json"

// workflowSchema компилируется один раз при первом использовании.
var workflowSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(workflowSchemaURL, workflowSchemaSource)
})

// Структуры документа workflow. Повторяют формат YAML один в один,
// в domain-модель переводятся в toDomain.
type (
	rawWorkflow struct {
		Entrypoint string        `yaml:"entrypoint"`
		Arguments  rawParameters `yaml:"arguments"`
		Templates  []rawTemplate `yaml:"templates"`
	}

	rawParameters struct {
		Parameters []rawParameter `yaml:"parameters"`
	}

	rawParameter struct {
		Name    string  `yaml:"name"`
		Default *string `yaml:"default"`
		Type    string  `yaml:"type"`
		Value   any     `yaml:"value"`
	}

	rawTemplate struct {
		Name   string        `yaml:"name"`
		Script *string       `yaml:"script"`
		Run    *string       `yaml:"run"`
		Inputs rawParameters `yaml:"inputs"`
		Steps  [][]rawStep   `yaml:"steps"`
		DAG    *rawDAG       `yaml:"dag"`
	}

	rawStep struct {
		Name      string        `yaml:"name"`
		Template  string        `yaml:"template"`
		Arguments rawParameters `yaml:"arguments"`
	}

	rawDAG struct {
		Tasks []rawDAGTask `yaml:"tasks"`
	}

	rawDAGTask struct {
		Name         string        `yaml:"name"`
		Template     string        `yaml:"template"`
		Dependencies []string      `yaml:"dependencies"`
		Arguments    rawParameters `yaml:"arguments"`
	}
)

// LoadWorkflow читает и валидирует файл определения workflow (YAML или JSON).
//
// Относительные пути script разрешаются относительно каталога файла.
func LoadWorkflow(path string) (*domain.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}

	wf, err := ParseWorkflow(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// ParseWorkflow разбирает документ workflow, проверяет его по схеме
// и выполняет Validate. baseDir используется для относительных путей script.
func ParseWorkflow(data []byte, baseDir string) (*domain.Workflow, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var raw rawWorkflow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	wf, err := raw.toDomain(baseDir)
	if err != nil {
		return nil, err
	}

	if err := Validate(wf); err != nil {
		return nil, err
	}

	return wf, nil
}

// validateSchema проверяет документ по встроенной JSON Schema.
//
// YAML сначала переводится в JSON: валидатор работает с теми же
// типами значений, что даёт encoding/json.
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// jsonschema ожидает числа как json.Number
	dec := json.NewDecoder(bytes.NewReader(asJSON))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	schema, err := workflowSchema()
	if err != nil {
		return fmt.Errorf("compile workflow schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

func (r *rawWorkflow) toDomain(baseDir string) (*domain.Workflow, error) {
	wf := &domain.Workflow{
		Entrypoint: r.Entrypoint,
		Arguments:  r.Arguments.toDomain(),
		Templates:  make([]domain.Template, 0, len(r.Templates)),
	}

	for _, rt := range r.Templates {
		t, err := rt.toDomain(baseDir)
		if err != nil {
			return nil, err
		}
		wf.Templates = append(wf.Templates, t)
	}

	return wf, nil
}

func (r *rawTemplate) toDomain(baseDir string) (domain.Template, error) {
	t := domain.Template{
		Name:   r.Name,
		Inputs: r.Inputs.toDomain(),
	}

	bodies := 0
	if r.Script != nil {
		bodies++
		path := *r.Script
		if baseDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		t.Body = domain.ScriptBody{Path: path}
	}
	if r.Run != nil {
		bodies++
		t.Body = domain.InlineBody{Statement: *r.Run}
	}
	if r.Steps != nil {
		bodies++
		groups := make([][]domain.Step, len(r.Steps))
		for i, group := range r.Steps {
			groups[i] = make([]domain.Step, len(group))
			for j, s := range group {
				groups[i][j] = domain.Step{
					Name:      s.Name,
					Template:  s.Template,
					Arguments: s.Arguments.toDomain(),
				}
			}
		}
		t.Body = domain.StepsBody{Groups: groups}
	}
	if r.DAG != nil {
		bodies++
		tasks := make([]domain.GraphTask, len(r.DAG.Tasks))
		for i, task := range r.DAG.Tasks {
			tasks[i] = domain.GraphTask{
				Name:         task.Name,
				Template:     task.Template,
				Dependencies: task.Dependencies,
				Arguments:    task.Arguments.toDomain(),
			}
		}
		t.Body = domain.GraphBody{Tasks: tasks}
	}

	if bodies != 1 {
		return domain.Template{}, NewValidationError(r.Name, "body",
			fmt.Sprintf("template defines %d of script, run, steps, dag", bodies), ErrInvalidBody)
	}

	return t, nil
}

func (r rawParameters) toDomain() []domain.Parameter {
	if len(r.Parameters) == 0 {
		return nil
	}
	params := make([]domain.Parameter, len(r.Parameters))
	for i, p := range r.Parameters {
		params[i] = domain.Parameter{
			Name:    p.Name,
			Type:    domain.ParamType(p.Type),
			Default: p.Default,
			Value:   p.Value,
		}
	}
	return params
}
