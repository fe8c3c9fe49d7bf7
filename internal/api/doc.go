// Package api — HTTP REST API поверх движка согласований.
//
// Все ответы — JSON-конверты {data: ...} либо {error: {code, message}}.
// Маршрутизация — стандартный ServeMux с method-паттернами (Go 1.22+).
// Доменные ошибки транслируются в статусы централизованно
// (см. HandleError).
package api
