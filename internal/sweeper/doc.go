// Package sweeper реализует обработку таймаутов шагов.
//
// Sweeper периодически выбирает IN_PROGRESS instances, чей текущий
// шаг превысил свой timeout_hours, и для каждого вызывает
// Engine.Timeout: TIMEOUT-переход, если шаблон его объявляет, иначе
// прямой перевод в TIMED_OUT.
//
// Структура:
//   - sweeper.go  — основная логика (Tick)
//   - schedule.go — вычисление времени следующего прохода
//     (интервал или cron-выражение)
//
// Использование:
//
//	sw := sweeper.New(sweeper.Config{
//	    Instances: instanceRepo,
//	    Engine:    eng,
//	    Logger:    logger,
//	})
//
//	stats, err := sw.Tick(ctx)
//
// Leader Election:
//
// Sweeper не реализует leader election самостоятельно — это делается
// в main.go через pg_try_advisory_lock. Tick() вызывается только
// лидером.
package sweeper
