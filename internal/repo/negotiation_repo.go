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

// NegotiationRepo — репозиторий для работы с переговорными кейсами.
type NegotiationRepo struct {
	pool *pgxpool.Pool
}

// NewNegotiationRepo создаёт новый NegotiationRepo.
func NewNegotiationRepo(pool *pgxpool.Pool) *NegotiationRepo {
	return &NegotiationRepo{pool: pool}
}

// Create создаёт новый кейс.
func (r *NegotiationRepo) Create(ctx context.Context, n *domain.Negotiation) error {
	query := `
		INSERT INTO negotiations (id, title, status, max_rounds, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		n.ID,
		n.Title,
		n.Status,
		n.MaxRounds,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert negotiation: %w", err)
	}
	return nil
}

// GetByID возвращает кейс по ID.
func (r *NegotiationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Negotiation, error) {
	query := `
		SELECT id, title, status, max_rounds, created_at
		FROM negotiations
		WHERE id = $1
	`
	return r.scanNegotiation(r.pool.QueryRow(ctx, query, id))
}

// List возвращает кейсы, новые первыми.
func (r *NegotiationRepo) List(ctx context.Context, limit, offset int) ([]domain.Negotiation, error) {
	query := `
		SELECT id, title, status, max_rounds, created_at
		FROM negotiations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}
	defer rows.Close()

	var items []domain.Negotiation
	for rows.Next() {
		n, err := r.scanNegotiation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *n)
	}
	return items, rows.Err()
}

// UpdateStatus обновляет статус кейса.
// Операции над очередью синхронизируют статус родителя через этот метод.
func (r *NegotiationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NegotiationStatus) error {
	query := `UPDATE negotiations SET status = $2 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update negotiation status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanNegotiation сканирует одну строку в Negotiation.
func (r *NegotiationRepo) scanNegotiation(row pgx.Row) (*domain.Negotiation, error) {
	var n domain.Negotiation
	err := row.Scan(
		&n.ID,
		&n.Title,
		&n.Status,
		&n.MaxRounds,
		&n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan negotiation: %w", err)
	}
	return &n, nil
}
