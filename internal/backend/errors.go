package backend

import "errors"

// Ошибки backend'а.
var (
	// ErrInvalidParameter — значение параметра не приводится к его типу.
	ErrInvalidParameter = errors.New("invalid query parameter")

	// ErrNoPool — Postgres создан без пула соединений.
	ErrNoPool = errors.New("postgres pool is not configured")
)
