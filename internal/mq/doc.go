// Package mq связывает bqflow с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с автоматическим переподключением
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий run
//   - consumer.go   — потребление запросов run (bqflow serve)
//   - notifier.go   — Observer, публикующий итоги runs
//
// Типы сообщений:
//   - run.requested — запрос на запуск workflow
//   - run.finished  — итог run
//   - task.reported — отчёт leaf-задачи
//
// Exchanges:
//   - bqflow.runs — события runs
//   - bqflow.dlq  — dead letter queue
package mq
