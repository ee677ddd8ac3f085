// Package evaluator выставляет вердикты завершённым переговорам.
//
// # Обзор
//
// Evaluator — stateless компонент системы Negotium, который оценивает
// качество завершённых симуляций. Оценке подлежат только симуляции,
// закончившиеся соглашением (COMPLETED + AGREEMENT). Evaluator отвечает за:
//
//   - Получение запросов на оценку из очереди RabbitMQ (event-driven)
//   - Периодическую проверку неоценённых симуляций в БД (polling fallback)
//   - Вызов движка переговоров за вердиктом (HTTP)
//   - Сохранение вердикта и рассылку события simulation.evaluated
//
// Evaluators масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди evaluation.requests.
//
// # Два пути доставки
//
// Основной путь — очередь evaluation.requests: оркестратор публикует
// запрос сразу после завершения симуляции, prefetch 1 и явный ack дают
// at-least-once доставку. Fallback — polling по БД: завершённые
// AGREEMENT-симуляции без вердикта подхватываются, даже если брокер
// был недоступен в момент публикации. Оба пути сходятся в одной
// процедуре оценки, идемпотентной по уже сохранённому вердикту.
//
// # Обработка запроса
//
//  1. Получение запроса (из очереди или polling)
//  2. Загрузка симуляции из БД
//  3. Проверки: вердикта ещё нет, статус COMPLETED, исход AGREEMENT
//  4. Запрос вердикта у движка
//  5. Сохранение вердикта в simulation_runs.evaluation
//  6. Событие simulation.evaluated подписчикам
//
// # Ошибки
//
// Пакет различает три класса ошибок:
//   - Ожидаемые (ErrRunNotFound, ErrAlreadyEvaluated, ErrNotEvaluable) —
//     сообщение подтверждается, повторная обработка не нужна
//   - Транзиентные (движок или БД недоступны) — сообщение возвращается
//     в очередь и будет доставлено снова
//   - Неисправимые (битый payload) — mq.ErrReject, сообщение уходит
//     в DLQ без повторной доставки
package evaluator
