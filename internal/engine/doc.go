// Package engine содержит клиента внешнего движка переговоров.
//
// Включает:
//   - engine.go — интерфейсы Engine/Evaluator, типы запроса и результата
//   - http.go   — HTTP реализация с чтением NDJSON-потока раундов
//
// Движок — отдельный сервис, ведущий сами переговоры (LLM-агенты
// обеих сторон). Оркестратор общается с ним только через этот пакет
// и проверяет каждое событие потока на границе.
package engine
