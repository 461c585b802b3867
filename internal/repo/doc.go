// Package repo хранит историю runs в PostgreSQL.
//
// Таблицы создаются EnsureSchema (schema.sql):
//   - runs         — один run workflow
//   - task_reports — отчёты leaf-задач run
//
// Recorder подключается к Orchestrator как Observer и пишет
// run и отчёты по мере выполнения.
package repo
