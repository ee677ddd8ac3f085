// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений (события + запросы на оценку)
//   - consumer.go   — потребление сообщений с ack/nack и DLQ
//   - forwarder.go  — мост events.Hub → fanout-обменник
//
// Exchanges:
//   - negotium.events      — fanout доменных событий для внешних подписчиков
//   - negotium.evaluations — запросы на downstream-оценку симуляций
//   - negotium.dlq         — dead letter queue
//
// RabbitMQ не является источником истины: статусы симуляций живут в БД,
// события best-effort, evaluation-запросы дублируются polling-fallback-ом.
// Недоступный брокер переводит систему в деградированный, но рабочий режим.
package mq
