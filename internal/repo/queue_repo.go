package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Negotium/internal/domain"
)

// QueueRepo — репозиторий для работы с очередями симуляций.
type QueueRepo struct {
	pool *pgxpool.Pool
}

// NewQueueRepo создаёт новый QueueRepo.
func NewQueueRepo(pool *pgxpool.Pool) *QueueRepo {
	return &QueueRepo{pool: pool}
}

// CreateWithRuns создаёт очередь вместе со всеми её симуляциями в одной
// транзакции. Жадная материализация: после коммита симуляции не
// создаются и не удаляются, только меняют статус.
func (r *QueueRepo) CreateWithRuns(ctx context.Context, q *domain.SimulationQueue, runs []*domain.SimulationRun) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQueue := `
		INSERT INTO simulation_queues (id, negotiation_id, total_simulations, status,
		                               estimated_cost, actual_cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, insertQueue,
		q.ID,
		q.NegotiationID,
		q.TotalSimulations,
		q.Status,
		q.EstimatedCost,
		q.ActualCost,
		q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queue: %w", err)
	}

	batch := &pgx.Batch{}
	for _, run := range runs {
		batch.Queue(insertRunQuery, runInsertArgs(run)...)
	}

	br := tx.SendBatch(ctx, batch)
	for range runs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert run: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID возвращает очередь по ID.
func (r *QueueRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationQueue, error) {
	query := `
		SELECT id, negotiation_id, total_simulations, status, estimated_cost,
		       actual_cost, started_at, paused_at, completed_at, created_at
		FROM simulation_queues
		WHERE id = $1
	`
	return r.scanQueue(r.pool.QueryRow(ctx, query, id))
}

// ListByNegotiation возвращает очереди кейса, новые первыми.
func (r *QueueRepo) ListByNegotiation(ctx context.Context, negotiationID uuid.UUID) ([]domain.SimulationQueue, error) {
	query := `
		SELECT id, negotiation_id, total_simulations, status, estimated_cost,
		       actual_cost, started_at, paused_at, completed_at, created_at
		FROM simulation_queues
		WHERE negotiation_id = $1
		ORDER BY created_at DESC
	`
	return r.listQueues(ctx, query, negotiationID)
}

// ListActive возвращает очереди, пригодные для диспетчеризации
// (PENDING или RUNNING). Их сканирует tick-цикл scheduler'а.
func (r *QueueRepo) ListActive(ctx context.Context) ([]domain.SimulationQueue, error) {
	query := `
		SELECT id, negotiation_id, total_simulations, status, estimated_cost,
		       actual_cost, started_at, paused_at, completed_at, created_at
		FROM simulation_queues
		WHERE status IN ('PENDING', 'RUNNING')
		ORDER BY created_at ASC
	`
	return r.listQueues(ctx, query)
}

// Update обновляет статус, стоимость и метки времени очереди.
func (r *QueueRepo) Update(ctx context.Context, q *domain.SimulationQueue) error {
	query := `
		UPDATE simulation_queues
		SET status = $2, estimated_cost = $3, actual_cost = $4,
		    started_at = $5, paused_at = $6, completed_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		q.ID,
		q.Status,
		q.EstimatedCost,
		q.ActualCost,
		q.StartedAt,
		q.PausedAt,
		q.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update queue: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecomputeActualCost пересчитывает фактическую стоимость очереди по
// строкам симуляций. Агрегаты никогда не инкрементируются на месте —
// только полный пересчёт, чтобы исключить дрейф после частичных сбоев.
func (r *QueueRepo) RecomputeActualCost(ctx context.Context, queueID uuid.UUID) error {
	query := `
		UPDATE simulation_queues q
		SET actual_cost = COALESCE(
			(SELECT SUM(r.actual_cost) FROM simulation_runs r WHERE r.queue_id = q.id), 0)
		WHERE q.id = $1
	`
	result, err := r.pool.Exec(ctx, query, queueID)
	if err != nil {
		return fmt.Errorf("recompute actual cost: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// listQueues выполняет запрос и сканирует все строки.
func (r *QueueRepo) listQueues(ctx context.Context, query string, args ...any) ([]domain.SimulationQueue, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var queues []domain.SimulationQueue
	for rows.Next() {
		q, err := r.scanQueue(rows)
		if err != nil {
			return nil, err
		}
		queues = append(queues, *q)
	}
	return queues, rows.Err()
}

// scanQueue сканирует одну строку в SimulationQueue.
func (r *QueueRepo) scanQueue(row pgx.Row) (*domain.SimulationQueue, error) {
	var q domain.SimulationQueue
	err := row.Scan(
		&q.ID,
		&q.NegotiationID,
		&q.TotalSimulations,
		&q.Status,
		&q.EstimatedCost,
		&q.ActualCost,
		&q.StartedAt,
		&q.PausedAt,
		&q.CompletedAt,
		&q.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan queue: %w", err)
	}
	return &q, nil
}
