// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает structured logging через slog: единый формат для всех
// сервисов (vizir-api, vizir-sweeper, vizir-events). Prometheus
// метрики экспортируются каждым бинарником на /metrics.
package telemetry
