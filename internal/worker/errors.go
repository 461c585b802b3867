package worker

import (
	"errors"
	"fmt"
)

// ErrBackend — класс ошибок выполнения leaf-задачи.
//
// По умолчанию прерывает run. В режиме ContinueOnError превращается
// в отчёт со статусом FAILED.
var ErrBackend = errors.New("task execution failed")

// Ошибки воркера.
var (
	// ErrScriptRead — не удалось прочитать файл script template.
	ErrScriptRead = fmt.Errorf("%w: read script", ErrBackend)

	// ErrNoBackend — пул создан без backend'а.
	ErrNoBackend = errors.New("backend is not configured")

	// ErrNoCompleter — пул создан без получателя уведомлений о завершении.
	ErrNoCompleter = errors.New("completer is not configured")
)
