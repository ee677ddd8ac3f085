// Package scheduler реализует планировщик обслуживания БД.
//
// Scheduler по cron-расписанию выполняет retention-sweeps над таблицей
// simulation_runs: recovery-снимки и сырые логи переговоров нужны для
// диагностики лишь ограниченное время, а JSONB-колонки — самые тяжёлые
// в таблице.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, sweeps)
//   - cron.go      — парсинг cron-выражений
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Runs:     runRepo,
//	    CronExpr: "0 3 * * *",
//	    Logger:   logger,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Вызывается каждый тик (обычно раз в минуту)
//	sched.Tick(ctx, time.Now())
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Метод Tick() вызывается только лидером.
package scheduler
