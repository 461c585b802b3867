// Package backend содержит реализации worker.Backend.
//
//   - postgres.go — выполнение SQL в PostgreSQL через pgx
//   - params.go   — приведение параметров к типам pgx.NamedArgs
//   - noop.go     — backend без выполнения (команда plan)
package backend
