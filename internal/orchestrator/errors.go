package orchestrator

import "errors"

var (
	// ErrNegotiationNotFound — переговоры не существуют.
	ErrNegotiationNotFound = errors.New("negotiation not found")

	// ErrQueueNotFound — очередь не существует.
	ErrQueueNotFound = errors.New("queue not found")

	// ErrQueueNotActive — операция требует очередь в PENDING или RUNNING.
	ErrQueueNotActive = errors.New("queue is not active")

	// ErrQueuePaused — очередь на паузе, нужен resume, а не start.
	ErrQueuePaused = errors.New("queue is paused, resume it instead")

	// ErrQueueNotPaused — resume применим только к очереди в PAUSED.
	ErrQueueNotPaused = errors.New("queue is not paused")

	// ErrNothingToRestart — в очереди нет FAILED/TIMEOUT симуляций.
	ErrNothingToRestart = errors.New("queue has no failed simulations")
)
