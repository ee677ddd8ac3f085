package domain

import (
	"time"

	"github.com/google/uuid"
)

// SimulationQueue — очередь симуляций одного переговорного кейса.
//
// Очередь создаётся один раз вместе со всеми своими симуляциями
// (жадная материализация кросс-произведения) и дальше только меняет
// статусы. TotalSimulations фиксируется при создании и никогда не
// меняется — знаменатель прогресса и ETA всегда постоянен.
//
// Счётчики completed/failed НЕ хранятся в очереди: агрегаты всегда
// пересчитываются по строкам симуляций, чтобы исключить дрейф после
// частичных сбоев.
type SimulationQueue struct {
	// ID — уникальный идентификатор очереди.
	ID uuid.UUID `json:"id"`

	// NegotiationID — ссылка на родительский кейс.
	NegotiationID uuid.UUID `json:"negotiation_id"`

	// TotalSimulations — размер кросс-произведения на момент создания.
	TotalSimulations int `json:"total_simulations"`

	// Status — текущий статус очереди.
	Status QueueStatus `json:"status"`

	// EstimatedCost — оценка стоимости: TotalSimulations × CostPerSimulation.
	EstimatedCost float64 `json:"estimated_cost"`

	// ActualCost — фактическая стоимость, пересчитывается по строкам
	// симуляций после каждого завершения.
	ActualCost float64 `json:"actual_cost"`

	// StartedAt — время первого перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// PausedAt — время последней приостановки.
	PausedAt *time.Time `json:"paused_at,omitempty"`

	// CompletedAt — время завершения очереди.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt — время создания очереди.
	CreatedAt time.Time `json:"created_at"`
}

// MarkRunning переводит очередь в статус RUNNING.
// StartedAt ставится только при первом запуске.
func (q *SimulationQueue) MarkRunning() {
	q.Status = QueueStatusRunning
	q.PausedAt = nil
	if q.StartedAt == nil {
		now := time.Now()
		q.StartedAt = &now
	}
}

// MarkPaused переводит очередь в статус PAUSED.
func (q *SimulationQueue) MarkPaused() {
	now := time.Now()
	q.Status = QueueStatusPaused
	q.PausedAt = &now
}

// MarkCompleted переводит очередь в статус COMPLETED.
func (q *SimulationQueue) MarkCompleted() {
	now := time.Now()
	q.Status = QueueStatusCompleted
	q.CompletedAt = &now
}

// MarkFailed переводит очередь в статус FAILED.
// Используется при необработанной ошибке drain-цикла.
func (q *SimulationQueue) MarkFailed() {
	now := time.Now()
	q.Status = QueueStatusFailed
	q.CompletedAt = &now
}

// MarkPending возвращает очередь в PENDING после restartFailedSimulations.
// Метки паузы и завершения сбрасываются, StartedAt сохраняется.
func (q *SimulationQueue) MarkPending() {
	q.Status = QueueStatusPending
	q.PausedAt = nil
	q.CompletedAt = nil
}
