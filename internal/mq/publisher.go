package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Negotium/internal/events"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeEvaluationRequested MessageType = "evaluation.requested"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт сообщения для очередей команд.
// Доменные события (PublishEvent) конверт не используют: events.Event
// уже несёт тип и штамп времени.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// EvaluationRequestedPayload — payload запроса на оценку симуляции.
type EvaluationRequestedPayload struct {
	RunID         uuid.UUID `json:"run_id"`
	NegotiationID uuid.UUID `json:"negotiation_id"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.publishBody(ctx, exchange, routingKey, msg.ID, msg.Timestamp, body)
}

// PublishEvaluationRequested публикует fire-and-forget запрос на оценку
// завершённой симуляции. Потребитель: Evaluator.
func (p *Publisher) PublishEvaluationRequested(ctx context.Context, runID, negotiationID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeEvaluationRequested,
		Payload:   EvaluationRequestedPayload{RunID: runID, NegotiationID: negotiationID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvaluations, RoutingKeyEvaluationRequested, msg)
}

// PublishEvent ретранслирует доменное событие в fanout-обменник для
// внешних подписчиков. Routing key — тип события: fanout его игнорирует,
// но он остаётся в заголовках доставки для трассировки.
func (p *Publisher) PublishEvent(ctx context.Context, ev events.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return p.publishBody(ctx, ExchangeEvents, RoutingKey(ev.Type), uuid.New().String(), ev.Timestamp, body)
}

// publishBody — общий путь публикации durable JSON-сообщения.
func (p *Publisher) publishBody(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgID string, ts time.Time, body []byte) error {
	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msgID,
				Timestamp:    ts,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msgID,
		)

		return nil
	})
}
