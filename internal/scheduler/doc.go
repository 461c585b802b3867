// Package scheduler запускает runs по расписанию.
//
// Структура:
//   - scheduler.go — цикл Scheduler (Run, Tick)
//   - cron.go      — Schedule, парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedule: scheduler.Schedule{CronExpr: "0 3 * * *", Timezone: "Europe/Moscow"},
//	    Job:      runWorkflow,
//	    Metrics:  metrics, // опционально
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	return sched.Run(ctx)
//
// Несколько экземпляров с одним расписанием запустят run несколько раз,
// если не задан Leader (bqflow schedule --lock использует repo.AdvisoryLock).
package scheduler
