package events

import (
	"time"

	"github.com/google/uuid"
)

// Типы событий жизненного цикла. Иерархические имена позволяют
// подписываться по префиксу: "simulation." даёт все события симуляций.
const (
	// EventSimulationStarted — симуляция взята в работу.
	EventSimulationStarted = "simulation.started"

	// EventSimulationRound — очередной раунд переговоров
	// (ретрансляция потока движка, порядок гарантирован в пределах
	// одной симуляции).
	EventSimulationRound = "simulation.round"

	// EventSimulationCompleted — симуляция успешно завершена.
	EventSimulationCompleted = "simulation.completed"

	// EventSimulationFailed — симуляция завершилась неуспешно
	// (FAILED, TIMEOUT или ABORTED).
	EventSimulationFailed = "simulation.failed"

	// EventSimulationEvaluated — downstream-оценка записала вердикт.
	EventSimulationEvaluated = "simulation.evaluated"

	// EventQueueProgress — агрегаты очереди изменились.
	EventQueueProgress = "queue.progress"

	// EventQueueCompleted — очередь достигла терминального статуса.
	EventQueueCompleted = "queue.completed"
)

// Event — событие жизненного цикла очереди или симуляции.
//
// Доставка best-effort: медленный подписчик теряет события, порядок
// между подписчиками не гарантируется. Полагаться на события как на
// источник истины нельзя — истина всегда в строках БД.
type Event struct {
	// Type — тип события (см. константы Event*).
	Type string `json:"type"`

	// QueueID — очередь, к которой относится событие.
	QueueID uuid.UUID `json:"queue_id"`

	// NegotiationID — родительский кейс.
	NegotiationID uuid.UUID `json:"negotiation_id"`

	// Payload — данные события; сериализуется в JSON на границе.
	Payload any `json:"payload,omitempty"`

	// Timestamp — время публикации.
	Timestamp time.Time `json:"timestamp"`
}

// New создаёт событие со штампом текущего времени.
func New(eventType string, queueID, negotiationID uuid.UUID, payload any) Event {
	return Event{
		Type:          eventType,
		QueueID:       queueID,
		NegotiationID: negotiationID,
		Payload:       payload,
		Timestamp:     time.Now(),
	}
}

// Broadcaster — сторона публикации событийного канала.
// Publish не блокируется и не возвращает ошибку: доставка best-effort.
type Broadcaster interface {
	Publish(event Event)
}
