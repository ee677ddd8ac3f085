// Package events — событийный канал движка очередей.
//
// Структура:
//   - events.go — тип Event, константы типов событий, интерфейс Broadcaster
//   - hub.go    — внутрипроцессный Hub с fan-out по подписчикам
//
// Подписка по префиксу типа: "simulation." ловит события симуляций,
// "queue." — события очередей, пустой префикс — всё.
//
// Доставка best-effort: Publish не блокируется, переполненный подписчик
// теряет события, порядок между подписчиками не гарантируется. Внешним
// слушателям события ретранслируются через RabbitMQ fanout (internal/mq)
// и WebSocket (internal/api).
package events
