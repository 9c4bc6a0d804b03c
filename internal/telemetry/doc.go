// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go  — structured logging через slog
//   - metrics.go  — Prometheus метрики
//   - observer.go — интерфейс Observer для событий жизненного цикла
//
// Ядро (pool, registry, executor, scheduler) сообщает о событиях
// через Observer и не знает, куда они уходят: в лог, в метрики
// или во внешний брокер.
package telemetry
