package matrix

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
)

// CatalogSource — срез справочников, нужный для резолюции селекторов.
// Реализуется repo.CatalogRepo.
type CatalogSource interface {
	ListTechniquesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Technique, error)
	ListTacticsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Tactic, error)
	ListPersonalities(ctx context.Context) ([]domain.Personality, error)
	ListPersonalitiesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Personality, error)
}

// Selector — выбор личностей контрагента: sentinel "all" либо явный список.
type Selector struct {
	// All — взять весь справочник на момент создания очереди.
	All bool `json:"all"`

	// IDs — явный список идентификаторов. Игнорируется при All.
	IDs []uuid.UUID `json:"ids,omitempty"`
}

// DistanceSelector — выбор категорий дистанции: "all" либо явный список.
type DistanceSelector struct {
	// All — взять все категории в каноническом порядке.
	All bool `json:"all"`

	// Categories — явный список категорий. Игнорируется при All.
	Categories []domain.DistanceCategory `json:"categories,omitempty"`
}

// CreateRequest — запрос на создание очереди симуляций.
type CreateRequest struct {
	// NegotiationID — родительский кейс.
	NegotiationID uuid.UUID `json:"negotiation_id"`

	// TechniqueIDs — техники убеждения, в порядке итерации медленной оси.
	TechniqueIDs []uuid.UUID `json:"technique_ids"`

	// TacticIDs — переговорные тактики.
	TacticIDs []uuid.UUID `json:"tactic_ids"`

	// Personalities — селектор личностей контрагента.
	Personalities Selector `json:"personalities"`

	// Distances — селектор категорий дистанции.
	Distances DistanceSelector `json:"distances"`

	// MaxRetries — лимит retry симуляций очереди.
	// 0 — взять лимит по умолчанию Builder-а.
	MaxRetries int `json:"max_retries,omitempty"`
}

// Axes — разрешённые оси кросс-произведения.
// Nil в PersonalityIDs — синтетическая личность по умолчанию.
type Axes struct {
	TechniqueIDs   []uuid.UUID
	TacticIDs      []uuid.UUID
	PersonalityIDs []*uuid.UUID
	Distances      []domain.DistanceCategory
}

// Size возвращает размер кросс-произведения.
func (a Axes) Size() int {
	return len(a.TechniqueIDs) * len(a.TacticIDs) * len(a.PersonalityIDs) * len(a.Distances)
}

// Config — конфигурация Builder.
type Config struct {
	// Catalogs — источник справочников.
	Catalogs CatalogSource

	// CostPerSimulation — оценочная стоимость одной симуляции.
	// По умолчанию domain.CostPerSimulation.
	CostPerSimulation float64

	// DefaultMaxRetries — лимит retry, когда запрос его не задаёт.
	// По умолчанию domain.DefaultMaxRetries.
	DefaultMaxRetries int
}

// Builder — Run Matrix Builder: разворачивает запрос на создание
// очереди в детерминированный упорядоченный набор симуляций.
//
// Резолюция селекторов происходит в момент создания (snapshot-семантика):
// последующие правки справочников не меняют существующие очереди.
type Builder struct {
	catalogs          CatalogSource
	costPerSimulation float64
	defaultMaxRetries int
}

// New создаёт Builder с применением значений по умолчанию.
func New(cfg Config) *Builder {
	if cfg.CostPerSimulation <= 0 {
		cfg.CostPerSimulation = domain.CostPerSimulation
	}
	if cfg.DefaultMaxRetries <= 0 {
		cfg.DefaultMaxRetries = domain.DefaultMaxRetries
	}
	return &Builder{
		catalogs:          cfg.Catalogs,
		costPerSimulation: cfg.CostPerSimulation,
		defaultMaxRetries: cfg.DefaultMaxRetries,
	}
}

// Validate проверяет структуру запроса. Вызывается стороной, принимающей
// запрос, до Build — сам Build пустоту списков повторно не проверяет.
func Validate(req CreateRequest) error {
	if req.NegotiationID == uuid.Nil {
		return NewValidationError("negotiation_id", "negotiation id is required", ErrMissingNegotiation)
	}
	if len(req.TechniqueIDs) == 0 {
		return NewValidationError("technique_ids", "at least one technique is required", ErrEmptyTechniques)
	}
	if len(req.TacticIDs) == 0 {
		return NewValidationError("tactic_ids", "at least one tactic is required", ErrEmptyTactics)
	}
	if err := checkDuplicates("technique_ids", req.TechniqueIDs); err != nil {
		return err
	}
	if err := checkDuplicates("tactic_ids", req.TacticIDs); err != nil {
		return err
	}
	if !req.Personalities.All {
		if err := checkDuplicates("personalities.ids", req.Personalities.IDs); err != nil {
			return err
		}
	}
	if !req.Distances.All {
		seen := make(map[domain.DistanceCategory]struct{}, len(req.Distances.Categories))
		for _, d := range req.Distances.Categories {
			if !d.IsValid() {
				return NewValidationError("distances.categories",
					fmt.Sprintf("unknown distance category %q", d), ErrUnknownDistance)
			}
			if _, ok := seen[d]; ok {
				return NewValidationError("distances.categories",
					fmt.Sprintf("duplicate distance category %q", d), ErrDuplicateAxisValue)
			}
			seen[d] = struct{}{}
		}
	}
	return nil
}

// Build разрешает селекторы по справочникам и материализует очередь
// вместе со всеми симуляциями. Строки не сохраняются — персистентность
// на стороне вызывающего.
func (b *Builder) Build(ctx context.Context, req CreateRequest) (*domain.SimulationQueue, []*domain.SimulationRun, error) {
	axes, err := b.resolve(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	queue := &domain.SimulationQueue{
		ID:               uuid.New(),
		NegotiationID:    req.NegotiationID,
		TotalSimulations: axes.Size(),
		Status:           domain.QueueStatusPending,
		EstimatedCost:    float64(axes.Size()) * b.costPerSimulation,
		CreatedAt:        now,
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = b.defaultMaxRetries
	}

	runs := Expand(queue, axes, maxRetries)
	return queue, runs, nil
}

// Expand строит кросс-произведение осей с вложенным порядком
// техника → тактика → личность → дистанция и назначает ExecutionOrder
// 1..N ровно в этом порядке итерации. Порядок детерминирован и
// воспроизводим: одинаковые оси всегда дают одинаковую очередь.
func Expand(queue *domain.SimulationQueue, axes Axes, maxRetries int) []*domain.SimulationRun {
	runs := make([]*domain.SimulationRun, 0, axes.Size())
	now := time.Now()
	order := 0

	for _, techniqueID := range axes.TechniqueIDs {
		for _, tacticID := range axes.TacticIDs {
			for _, personalityID := range axes.PersonalityIDs {
				for _, distance := range axes.Distances {
					order++
					runs = append(runs, &domain.SimulationRun{
						ID:             uuid.New(),
						QueueID:        queue.ID,
						NegotiationID:  queue.NegotiationID,
						ExecutionOrder: order,
						TechniqueID:    techniqueID,
						TacticID:       tacticID,
						PersonalityID:  personalityID,
						Distance:       distance,
						Status:         domain.SimulationStatusPending,
						MaxRetries:     maxRetries,
						CreatedAt:      now,
					})
				}
			}
		}
	}
	return runs
}

// resolve разворачивает селекторы запроса в оси кросс-произведения.
func (b *Builder) resolve(ctx context.Context, req CreateRequest) (Axes, error) {
	var axes Axes

	// Техники и тактики заданы явными списками: справочник подтверждает
	// существование, порядок запроса сохраняется.
	techniques, err := b.catalogs.ListTechniquesByIDs(ctx, req.TechniqueIDs)
	if err != nil {
		return axes, fmt.Errorf("resolve techniques: %w", err)
	}
	axes.TechniqueIDs, err = orderedIDs("technique_ids", req.TechniqueIDs, techniqueIDs(techniques))
	if err != nil {
		return axes, err
	}

	tactics, err := b.catalogs.ListTacticsByIDs(ctx, req.TacticIDs)
	if err != nil {
		return axes, fmt.Errorf("resolve tactics: %w", err)
	}
	axes.TacticIDs, err = orderedIDs("tactic_ids", req.TacticIDs, tacticIDs(tactics))
	if err != nil {
		return axes, err
	}

	axes.PersonalityIDs, err = b.resolvePersonalities(ctx, req.Personalities)
	if err != nil {
		return axes, err
	}

	axes.Distances = resolveDistances(req.Distances)
	return axes, nil
}

// resolvePersonalities разрешает селектор личностей. Пустой результат
// заменяется одной синтетической личностью по умолчанию: очередь с
// непустыми техниками и тактиками всегда содержит хотя бы одну симуляцию.
func (b *Builder) resolvePersonalities(ctx context.Context, sel Selector) ([]*uuid.UUID, error) {
	var items []domain.Personality
	var err error

	if sel.All {
		items, err = b.catalogs.ListPersonalities(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve personalities: %w", err)
		}
	} else if len(sel.IDs) > 0 {
		items, err = b.catalogs.ListPersonalitiesByIDs(ctx, sel.IDs)
		if err != nil {
			return nil, fmt.Errorf("resolve personalities: %w", err)
		}
		found := make(map[uuid.UUID]domain.Personality, len(items))
		for _, p := range items {
			found[p.ID] = p
		}
		ordered := make([]domain.Personality, 0, len(sel.IDs))
		for _, id := range sel.IDs {
			p, ok := found[id]
			if !ok {
				return nil, NewValidationError("personalities.ids",
					fmt.Sprintf("personality %s not found", id), ErrUnknownCatalogID)
			}
			ordered = append(ordered, p)
		}
		items = ordered
	}

	if len(items) == 0 {
		// Синтетическая личность по умолчанию: nil id.
		return []*uuid.UUID{nil}, nil
	}

	ids := make([]*uuid.UUID, 0, len(items))
	for _, p := range items {
		id := p.ID
		ids = append(ids, &id)
	}
	return ids, nil
}

// resolveDistances разрешает селектор дистанций. Пустой результат
// заменяется категорией по умолчанию.
func resolveDistances(sel DistanceSelector) []domain.DistanceCategory {
	if sel.All {
		return domain.AllDistances()
	}
	if len(sel.Categories) == 0 {
		return []domain.DistanceCategory{domain.DistanceMedium}
	}
	return sel.Categories
}

// orderedIDs проверяет, что каждый запрошенный id найден в справочнике,
// и возвращает id в порядке запроса.
func orderedIDs(field string, requested []uuid.UUID, found map[uuid.UUID]struct{}) ([]uuid.UUID, error) {
	ordered := make([]uuid.UUID, 0, len(requested))
	for _, id := range requested {
		if _, ok := found[id]; !ok {
			return nil, NewValidationError(field,
				fmt.Sprintf("id %s not found in catalog", id), ErrUnknownCatalogID)
		}
		ordered = append(ordered, id)
	}
	return ordered, nil
}

// checkDuplicates отклоняет повторяющиеся id внутри одной оси.
func checkDuplicates(field string, ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return NewValidationError(field,
				fmt.Sprintf("duplicate id %s", id), ErrDuplicateAxisValue)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func techniqueIDs(items []domain.Technique) map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(items))
	for _, t := range items {
		ids[t.ID] = struct{}{}
	}
	return ids
}

func tacticIDs(items []domain.Tactic) map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(items))
	for _, t := range items {
		ids[t.ID] = struct{}{}
	}
	return ids
}
