// Package worker выполняет leaf-задачи workflow.
//
// # Обзор
//
// Pool — пул фиксированного размера. Workers забирают задачи из Queue,
// отправляют SQL в Backend и сообщают о завершении через Completer
// (tracer.Tracer). Завершение задачи может открыть новые задачи,
// их в очередь кладёт Producer оркестратора.
//
//	queue := worker.NewQueue()
//	pool, err := worker.NewPool(queue, worker.Config{
//	    Backend:   pg,
//	    Completer: tr,
//	    Workers:   4,
//	    Logger:    logger,
//	})
//	if err != nil {
//	    return err
//	}
//	go pool.Run(ctx)
//	defer pool.Stop()
//
// # Backend
//
//	type Backend interface {
//	    Submit(ctx context.Context, statement string, params []domain.Parameter) (*domain.JobStats, error)
//	}
//
// Submit блокируется до завершения запроса. Длительность и объём
// данных в отчёте берутся из возвращённой статистики.
//
// # Ошибки
//
// Ошибка backend'а или чтения script оборачивается в ErrBackend.
// По умолчанию она прерывает весь run. С ContinueOnError задача
// получает отчёт FAILED, а зависящие от неё задачи не запускаются.
//
// Ошибка Completer'а всегда фатальна: дерево выполнения повреждено.
package worker
