// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go             — Handler с DI (оркестратор, репозитории, hub, logger)
//   - routes.go              — регистрация маршрутов
//   - middleware.go          — middleware (logging, recovery)
//   - response.go            — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                 — Data Transfer Objects (request/response)
//   - negotiation_handler.go — обработчики для /negotiations и товаров
//   - queue_handler.go       — обработчики жизненного цикла очередей
//   - run_handler.go         — детальный ответ по симуляции
//   - recovery_handler.go    — отчёт восстановления и возврат сирот
//   - catalog_handler.go     — справочники техник, тактик, личностей
//   - events_handler.go      — WebSocket-трансляция событий
//
// API предоставляет REST endpoints для управления переговорными кейсами
// и очередями симуляций, плюс WebSocket-поток событий жизненного цикла.
package api
