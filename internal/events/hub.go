package events

import (
	"strings"
	"sync"
)

// subscriberBuffer — ёмкость канала подписчика. Когда буфер полон,
// новые события для этого подписчика отбрасываются.
const subscriberBuffer = 100

// Hub — внутрипроцессная шина событий с fan-out по подписчикам.
//
// Подписка задаёт префикс типа события: "simulation." ловит все события
// симуляций, пустой префикс — всё подряд. Публикация никогда не
// блокируется: переполненный подписчик теряет события молча.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int
}

// Subscription — подписка на события хаба.
type Subscription struct {
	id         int
	typePrefix string
	ch         chan Event
}

// C возвращает канал событий подписки.
// Канал закрывается при Unsubscribe.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// NewHub создаёт пустой Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]*Subscription),
	}
}

// Subscribe регистрирует подписчика на события с данным префиксом типа.
func (h *Hub) Subscribe(typePrefix string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:         h.nextID,
		typePrefix: typePrefix,
		ch:         make(chan Event, subscriberBuffer),
	}
	h.subs[sub.id] = sub
	return sub
}

// Unsubscribe снимает подписку и закрывает её канал.
// Повторный вызов безопасен.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.ch)
}

// Publish рассылает событие всем подписчикам с подходящим префиксом.
// Неблокирующая отправка: полный буфер подписчика — событие потеряно.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !strings.HasPrefix(event.Type, sub.typePrefix) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Подписчик не успевает — событие для него отброшено.
		}
	}
}

// SubscriberCount возвращает число активных подписок.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
