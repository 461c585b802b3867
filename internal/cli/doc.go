// Package cli реализует команды bqflow.
//
// # Команды
//
//   - run FILE      — выполнить workflow или один .sql файл
//   - validate FILE — проверить определение (схема, ссылки, циклы)
//   - plan FILE     — показать порядок выполнения без обращения к БД
//   - schedule FILE — запускать workflow по cron-выражению или интервалу
//   - serve         — выполнять запросы run из RabbitMQ
//   - history       — показать записанные runs (--record)
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей *Globals — глобальные флаги, разобранные cobra.
//
// # Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные выводятся в stdout, сообщения и итог run — в stderr,
// поэтому вывод можно передать дальше: bqflow run wf.yaml --json | jq .
// Статусы подсвечиваются fatih/color (отключается NO_COLOR).
//
// # Зависимости
//
// services собирает то, что нужно команде: пул PostgreSQL (backend
// и --record), соединение с RabbitMQ (--notify, serve, schedule --publish),
// Prometheus registry и HTTP /metrics (--metrics-addr), Orchestrator.
// В режиме serve на том же адресе работает api.Handler.
package cli
