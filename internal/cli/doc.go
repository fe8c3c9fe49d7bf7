// Package cli реализует инструмент командной строки Vizir.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Vizir API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления templates, instances и просмотра
// аналитики.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Vizir API. Инкапсулирует все HTTP-запросы,
// парсинг конвертов (dataResponse, listResponse, errorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	templates, err := client.ListTemplates()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder с отступами) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: vizir template list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - template: list, create, show, delete, activate, deactivate,
//     add-step, add-transition, validate
//   - instance: list, start, show, advance, cancel, history
//   - metrics: show, bottlenecks
//
// Каждая группа создаётся через фабричную функцию (NewTemplateCmd
// и т.д.), принимающую clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli
