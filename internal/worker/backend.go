package worker

import (
	"context"
	"fmt"
	"os"

	"github.com/shaiso/bqflow/internal/domain"
)

// Backend выполняет SQL.
//
// Submit блокируется до завершения запроса и возвращает его статистику.
// Реализации: backend.Postgres, backend.Noop.
type Backend interface {
	Submit(ctx context.Context, statement string, params []domain.Parameter) (*domain.JobStats, error)
}

// StatementSource читает текст SQL для script templates.
type StatementSource interface {
	ReadStatement(path string) (string, error)
}

// Completer получает уведомление о завершении leaf-задачи.
// Реализация — tracer.Tracer.
type Completer interface {
	Complete(path domain.Path) error
}

// FileSource читает SQL из локальной файловой системы.
type FileSource struct{}

// ReadStatement реализует StatementSource.
func (FileSource) ReadStatement(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// resolveStatement возвращает текст SQL задачи.
// Файл script читается в момент dispatch, а не при раскрытии дерева.
func resolveStatement(src StatementSource, q domain.Query) (string, error) {
	if q.ScriptPath == "" {
		return q.Statement, nil
	}
	statement, err := src.ReadStatement(q.ScriptPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrScriptRead, q.ScriptPath, err)
	}
	return statement, nil
}
