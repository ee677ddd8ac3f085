package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/repo"
)

// Интерфейсы хранилища объявлены на стороне потребителя: оркестратор
// перечисляет ровно те операции, которые ему нужны. Конкретные
// реализации — репозитории из internal/repo.

// QueueStore — операции над очередями симуляций.
type QueueStore interface {
	CreateWithRuns(ctx context.Context, q *domain.SimulationQueue, runs []*domain.SimulationRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationQueue, error)
	ListByNegotiation(ctx context.Context, negotiationID uuid.UUID) ([]domain.SimulationQueue, error)
	ListActive(ctx context.Context) ([]domain.SimulationQueue, error)
	Update(ctx context.Context, q *domain.SimulationQueue) error
	RecomputeActualCost(ctx context.Context, queueID uuid.UUID) error
}

// RunStore — операции над строками симуляций.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationRun, error)
	ClaimNextPending(ctx context.Context, queueID uuid.UUID) (*domain.SimulationRun, error)
	GetRunning(ctx context.Context, queueID uuid.UUID) (*domain.SimulationRun, error)
	CountByStatus(ctx context.Context, queueID uuid.UUID) (repo.RunCounts, error)
	SumActualCost(ctx context.Context, queueID uuid.UUID) (float64, error)
	UpdateIfRunning(ctx context.Context, run *domain.SimulationRun) error
	SaveRecoverySnapshot(ctx context.Context, runID uuid.UUID, snap *domain.RecoverySnapshot) error
	UpdateSnapshotRound(ctx context.Context, runID uuid.UUID, round int) error
	MarkTimeoutIfRunning(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	ListStaleRunning(ctx context.Context, before time.Time) ([]domain.SimulationRun, error)
	ListOrphaned(ctx context.Context, negotiationID uuid.UUID, before time.Time) ([]domain.SimulationRun, error)
	RecoverToPending(ctx context.Context, id uuid.UUID, snap *domain.RecoverySnapshot) (bool, error)
	AbortActive(ctx context.Context, queueID uuid.UUID, reason string) ([]domain.SimulationRun, error)
	RestartFailed(ctx context.Context, queueID uuid.UUID) (int64, error)
	ResumePaused(ctx context.Context, queueID uuid.UUID) (int64, error)
}

// NegotiationStore — чтение и синхронизация статуса переговоров.
type NegotiationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Negotiation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NegotiationStatus) error
}

// ProductStore — каталог продуктов для разбора финального оффера.
type ProductStore interface {
	ListProducts(ctx context.Context, negotiationID uuid.UUID) ([]domain.Product, error)
}

// EvaluationPublisher публикует запрос на downstream-оценку завершённых
// переговоров. Реализация — mq.Publisher; в тестах и при выключенном
// брокере поле остаётся nil.
type EvaluationPublisher interface {
	PublishEvaluationRequested(ctx context.Context, runID, negotiationID uuid.UUID) error
}
