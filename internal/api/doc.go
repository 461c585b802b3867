// Package api содержит HTTP API режима serve.
//
// Структура:
//   - handler.go     — Handler и интерфейсы зависимостей
//   - routes.go      — регистрация маршрутов
//   - middleware.go  — middleware (recovery, logging, metrics)
//   - response.go    — унифицированные JSON-ответы и обработка ошибок
//   - dto.go         — Data Transfer Objects (request/response)
//   - run_handler.go — обработчики для /runs
//
// Endpoints:
//   - GET  /api/v1/runs              — последние runs (нужен --record)
//   - POST /api/v1/runs              — поставить run в очередь runs.requested
//   - GET  /api/v1/runs/{id}         — run по ID
//   - GET  /api/v1/runs/{id}/reports — отчёты задач run
//   - GET  /api/v1/runs/{id}/stats   — прогресс активного run
package api
