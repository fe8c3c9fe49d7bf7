// Package engine содержит ядро процесса согласования.
//
// Включает:
//   - validator.go — чистая структурная проверка графа шаблона
//   - engine.go    — Transition Engine: start, advance, cancel, timeout
//   - stores.go    — интерфейсы хранилищ и публикации событий
//   - errors.go    — типизированные ошибки
//
// Engine не знает про HTTP и SQL: хранилища передаются интерфейсами,
// таксономия ошибок едина для всех вызывающих сторон (API, Sweeper,
// авто-продвижение).
package engine
