package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Negotium/internal/domain"
)

// CatalogRepo — репозиторий справочников: техники, тактики, личности
// контрагентов и товары кейсов.
//
// Справочники read-only для движка очередей: Run Matrix Builder читает
// их при создании очереди (snapshot-семантика), Result Processor —
// товары кейса при расчёте стоимости сделки.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

// NewCatalogRepo создаёт новый CatalogRepo.
func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// ListTechniques возвращает все техники убеждения.
func (r *CatalogRepo) ListTechniques(ctx context.Context) ([]domain.Technique, error) {
	query := `
		SELECT id, name, description, created_at
		FROM techniques
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list techniques: %w", err)
	}
	defer rows.Close()

	var items []domain.Technique
	for rows.Next() {
		var t domain.Technique
		var desc *string
		if err := rows.Scan(&t.ID, &t.Name, &desc, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan technique: %w", err)
		}
		if desc != nil {
			t.Description = *desc
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// ListTechniquesByIDs возвращает техники по списку идентификаторов.
// Отсутствующие в справочнике id просто не попадают в результат —
// валидация существования на стороне вызывающего.
func (r *CatalogRepo) ListTechniquesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Technique, error) {
	query := `
		SELECT id, name, description, created_at
		FROM techniques
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list techniques by ids: %w", err)
	}
	defer rows.Close()

	var items []domain.Technique
	for rows.Next() {
		var t domain.Technique
		var desc *string
		if err := rows.Scan(&t.ID, &t.Name, &desc, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan technique: %w", err)
		}
		if desc != nil {
			t.Description = *desc
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// ListTactics возвращает все переговорные тактики.
func (r *CatalogRepo) ListTactics(ctx context.Context) ([]domain.Tactic, error) {
	query := `
		SELECT id, name, description, created_at
		FROM tactics
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tactics: %w", err)
	}
	defer rows.Close()

	var items []domain.Tactic
	for rows.Next() {
		var t domain.Tactic
		var desc *string
		if err := rows.Scan(&t.ID, &t.Name, &desc, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tactic: %w", err)
		}
		if desc != nil {
			t.Description = *desc
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// ListTacticsByIDs возвращает тактики по списку идентификаторов.
func (r *CatalogRepo) ListTacticsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Tactic, error) {
	query := `
		SELECT id, name, description, created_at
		FROM tactics
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list tactics by ids: %w", err)
	}
	defer rows.Close()

	var items []domain.Tactic
	for rows.Next() {
		var t domain.Tactic
		var desc *string
		if err := rows.Scan(&t.ID, &t.Name, &desc, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tactic: %w", err)
		}
		if desc != nil {
			t.Description = *desc
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// ListPersonalities возвращает все личности контрагентов.
func (r *CatalogRepo) ListPersonalities(ctx context.Context) ([]domain.Personality, error) {
	query := `
		SELECT id, name, description, created_at
		FROM personalities
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list personalities: %w", err)
	}
	defer rows.Close()

	var items []domain.Personality
	for rows.Next() {
		var p domain.Personality
		var desc *string
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan personality: %w", err)
		}
		if desc != nil {
			p.Description = *desc
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// ListPersonalitiesByIDs возвращает личности по списку идентификаторов.
func (r *CatalogRepo) ListPersonalitiesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Personality, error) {
	query := `
		SELECT id, name, description, created_at
		FROM personalities
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list personalities by ids: %w", err)
	}
	defer rows.Close()

	var items []domain.Personality
	for rows.Next() {
		var p domain.Personality
		var desc *string
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan personality: %w", err)
		}
		if desc != nil {
			p.Description = *desc
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// ListProducts возвращает товары кейса.
func (r *CatalogRepo) ListProducts(ctx context.Context, negotiationID uuid.UUID) ([]domain.Product, error) {
	query := `
		SELECT id, negotiation_id, name, target_price, min_price, max_price, volume, created_at
		FROM products
		WHERE negotiation_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, negotiationID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var items []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.NegotiationID, &p.Name,
			&p.TargetPrice, &p.MinPrice, &p.MaxPrice, &p.Volume, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// CreateProduct добавляет товар в кейс.
func (r *CatalogRepo) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, negotiation_id, name, target_price, min_price, max_price, volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.NegotiationID,
		p.Name,
		p.TargetPrice,
		p.MinPrice,
		p.MaxPrice,
		p.Volume,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}
