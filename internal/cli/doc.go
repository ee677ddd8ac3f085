// Package cli реализует инструмент командной строки Negotium.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Negotium API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления переговорными кейсами, очередями
// симуляций и восстановлением после сбоев.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Negotium API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	negotiations, err := client.ListNegotiations()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы и пары ключ-значение (text/tabwriter) — по умолчанию
//   - JSON с отступами — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: negotium queue status ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - negotiation: list, create, show, add-product, products
//   - queue: create, status, start, pause, resume, stop, restart-failed, runs
//   - run: show
//   - catalog: techniques, tactics, personalities, distances
//   - recovery: find, recover
//
// Каждая группа создаётся через фабричную функцию (NewQueueCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
