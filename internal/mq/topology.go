package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeEvents — fanout доменных событий (simulation.*, queue.*).
	// Внешние подписчики объявляют собственные очереди и привязывают их
	// к этому обменнику; внутрипроцессные слушатели идут через events.Hub.
	ExchangeEvents Exchange = "negotium.events"

	// ExchangeEvaluations — запросы на downstream-оценку симуляций.
	ExchangeEvaluations Exchange = "negotium.evaluations"

	// ExchangeDLQ — dead letter exchange.
	ExchangeDLQ Exchange = "negotium.dlq"
)

// Queues — имена очередей.
const (
	QueueEvaluationRequests Queue = "evaluation.requests"
	QueueDLQEvaluations     Queue = "dlq.evaluations"
)

// Routing keys.
const (
	RoutingKeyEvaluationRequested RoutingKey = "requested"
	RoutingKeyDLQEvaluations      RoutingKey = "evaluations"
)

// SetupTopology объявляет обменники, очереди и привязки. Операция
// идемпотентна: повторное объявление существующей топологии безопасно,
// её выполняет каждый процесс при старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeEvents, "fanout"},
		{ExchangeEvaluations, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Отвергнутые evaluator-ом сообщения уходят в DLQ.
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQEvaluations),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueueEvaluationRequests, dlqArgs},
		{QueueDLQEvaluations, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueEvaluationRequests, RoutingKeyEvaluationRequested, ExchangeEvaluations},
		{QueueDLQEvaluations, RoutingKeyDLQEvaluations, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Negotium RabbitMQ Topology:

    negotium.events (fanout)
    └── consumer-declared queues [routing key = event type]
            Producer: EventForwarder (hub bridge)

    negotium.evaluations (direct)
    └── evaluation.requests [routing: requested]
            Consumer: Evaluator
            DLQ: dlq.evaluations

    negotium.dlq (direct)
    └── dlq.evaluations [routing: evaluations]
            Manual processing
  `
}
