package domain

import (
	"time"

	"github.com/google/uuid"
)

// Negotiation — родительский переговорный кейс.
//
// Кейс описывает сценарий переговоров (товары, контрагент, лимит раундов),
// а очередь симуляций прогоняет его через все комбинации
// техника × тактика × личность × дистанция.
type Negotiation struct {
	// ID — уникальный идентификатор кейса.
	ID uuid.UUID `json:"id"`

	// Title — название кейса для списков и дашбордов.
	Title string `json:"title"`

	// Status — текущий статус кейса.
	// Синхронизируется операциями над очередью: start/pause → RUNNING,
	// завершение очереди → COMPLETED.
	Status NegotiationStatus `json:"status"`

	// MaxRounds — лимит раундов одной симуляции.
	// Передаётся движку переговоров; при исчерпании движок
	// сообщает исход MAX_ROUNDS.
	MaxRounds int `json:"max_rounds"`

	// CreatedAt — время создания кейса.
	CreatedAt time.Time `json:"created_at"`
}

// MarkRunning переводит кейс в статус RUNNING.
func (n *Negotiation) MarkRunning() {
	n.Status = NegotiationStatusRunning
}

// MarkCompleted переводит кейс в статус COMPLETED.
func (n *Negotiation) MarkCompleted() {
	n.Status = NegotiationStatusCompleted
}
