// Package telemetry — логирование и метрики bqflow.
//
//   - logging.go — slog логгер (LOG_FORMAT, LOG_LEVEL) и атрибуты run/task/source
//   - metrics.go — Prometheus метрики задач и runs, handler для /metrics
//
// Метрики регистрируются в переданном registry, поэтому тесты
// создают собственный prometheus.NewRegistry().
package telemetry
