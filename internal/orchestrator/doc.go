// Package orchestrator управляет выполнением runs.
//
// Orchestrator отвечает за:
//   - Построение дерева выполнения (tracer.Tracer) для workflow
//   - Запуск Producer'а, который переносит готовые leaf-задачи в очередь
//   - Запуск пула workers, выполняющих задачи в backend'е
//   - Финализацию run (SUCCEEDED/FAILED/INCOMPLETE)
//   - Рассылку событий наблюдателям (PostgreSQL, RabbitMQ)
//
// Producer и пул работают в одной errgroup: фатальная ошибка любого
// из них отменяет контекст второго.
package orchestrator
