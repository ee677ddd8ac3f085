package matrix

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
)

// fakeCatalog implements CatalogSource over in-memory slices.
// ByIDs lookups return rows in reverse request order to prove the
// builder restores the request order itself.
type fakeCatalog struct {
	techniques    []domain.Technique
	tactics       []domain.Tactic
	personalities []domain.Personality
}

func (f *fakeCatalog) ListTechniquesByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Technique, error) {
	var out []domain.Technique
	for i := len(ids) - 1; i >= 0; i-- {
		for _, t := range f.techniques {
			if t.ID == ids[i] {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListTacticsByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Tactic, error) {
	var out []domain.Tactic
	for i := len(ids) - 1; i >= 0; i-- {
		for _, t := range f.tactics {
			if t.ID == ids[i] {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListPersonalities(_ context.Context) ([]domain.Personality, error) {
	return f.personalities, nil
}

func (f *fakeCatalog) ListPersonalitiesByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Personality, error) {
	var out []domain.Personality
	for _, p := range f.personalities {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func newFakeCatalog(techniques, tactics, personalities int) *fakeCatalog {
	f := &fakeCatalog{}
	for i := 0; i < techniques; i++ {
		f.techniques = append(f.techniques, domain.Technique{ID: uuid.New(), Name: "technique"})
	}
	for i := 0; i < tactics; i++ {
		f.tactics = append(f.tactics, domain.Tactic{ID: uuid.New(), Name: "tactic"})
	}
	for i := 0; i < personalities; i++ {
		f.personalities = append(f.personalities, domain.Personality{ID: uuid.New(), Name: "personality"})
	}
	return f
}

func (f *fakeCatalog) techniqueIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, t := range f.techniques {
		ids = append(ids, t.ID)
	}
	return ids
}

func (f *fakeCatalog) tacticIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, t := range f.tactics {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestValidate_EmptyTechniques(t *testing.T) {
	err := Validate(CreateRequest{
		NegotiationID: uuid.New(),
		TacticIDs:     []uuid.UUID{uuid.New()},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if vErr.Field != "technique_ids" {
		t.Errorf("Field = %q, want technique_ids", vErr.Field)
	}
	if !errors.Is(err, ErrEmptyTechniques) {
		t.Error("expected ErrEmptyTechniques in chain")
	}
}

func TestValidate_EmptyTactics(t *testing.T) {
	err := Validate(CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  []uuid.UUID{uuid.New()},
	})
	if !errors.Is(err, ErrEmptyTactics) {
		t.Errorf("expected ErrEmptyTactics, got %v", err)
	}
}

func TestValidate_DuplicateTechnique(t *testing.T) {
	id := uuid.New()
	err := Validate(CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  []uuid.UUID{id, id},
		TacticIDs:     []uuid.UUID{uuid.New()},
	})
	if !errors.Is(err, ErrDuplicateAxisValue) {
		t.Errorf("expected ErrDuplicateAxisValue, got %v", err)
	}
}

func TestValidate_UnknownDistance(t *testing.T) {
	err := Validate(CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  []uuid.UUID{uuid.New()},
		TacticIDs:     []uuid.UUID{uuid.New()},
		Distances:     DistanceSelector{Categories: []domain.DistanceCategory{"NEARBY"}},
	})
	if !errors.Is(err, ErrUnknownDistance) {
		t.Errorf("expected ErrUnknownDistance, got %v", err)
	}
}

func TestBuild_CrossProductSizeAndOrder(t *testing.T) {
	catalog := newFakeCatalog(2, 2, 1)
	builder := New(Config{Catalogs: catalog})

	req := CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  catalog.techniqueIDs(),
		TacticIDs:     catalog.tacticIDs(),
		Personalities: Selector{All: true},
		Distances:     DistanceSelector{Categories: []domain.DistanceCategory{domain.DistanceClose}},
	}

	queue, runs, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// 2 techniques x 2 tactics x 1 personality x 1 distance = 4 runs.
	if queue.TotalSimulations != 4 {
		t.Errorf("TotalSimulations = %d, want 4", queue.TotalSimulations)
	}
	if len(runs) != 4 {
		t.Fatalf("len(runs) = %d, want 4", len(runs))
	}
	if queue.Status != domain.QueueStatusPending {
		t.Errorf("queue status = %s, want PENDING", queue.Status)
	}

	for i, run := range runs {
		if run.ExecutionOrder != i+1 {
			t.Errorf("runs[%d].ExecutionOrder = %d, want %d", i, run.ExecutionOrder, i+1)
		}
		if run.QueueID != queue.ID {
			t.Errorf("runs[%d].QueueID = %v, want %v", i, run.QueueID, queue.ID)
		}
		if run.Status != domain.SimulationStatusPending {
			t.Errorf("runs[%d].Status = %s, want PENDING", i, run.Status)
		}
	}

	// Technique is the slowest axis, tactic the next one.
	tech := catalog.techniqueIDs()
	tac := catalog.tacticIDs()
	wantPairs := [][2]uuid.UUID{
		{tech[0], tac[0]},
		{tech[0], tac[1]},
		{tech[1], tac[0]},
		{tech[1], tac[1]},
	}
	for i, want := range wantPairs {
		if runs[i].TechniqueID != want[0] || runs[i].TacticID != want[1] {
			t.Errorf("runs[%d] combination = (%v, %v), want (%v, %v)",
				i, runs[i].TechniqueID, runs[i].TacticID, want[0], want[1])
		}
	}
}

func TestBuild_OrderFollowsRequest(t *testing.T) {
	catalog := newFakeCatalog(3, 1, 1)
	builder := New(Config{Catalogs: catalog})

	// The fake returns catalog rows reversed; the runs must still follow
	// the request order of the technique axis.
	req := CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  catalog.techniqueIDs(),
		TacticIDs:     catalog.tacticIDs(),
		Personalities: Selector{All: true},
		Distances:     DistanceSelector{Categories: []domain.DistanceCategory{domain.DistanceMedium}},
	}

	_, runs, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for i, id := range catalog.techniqueIDs() {
		if runs[i].TechniqueID != id {
			t.Errorf("runs[%d].TechniqueID = %v, want %v", i, runs[i].TechniqueID, id)
		}
	}
}

func TestBuild_EmptyPersonalityCatalogUsesDefault(t *testing.T) {
	catalog := newFakeCatalog(1, 1, 0)
	builder := New(Config{Catalogs: catalog})

	req := CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  catalog.techniqueIDs(),
		TacticIDs:     catalog.tacticIDs(),
		Personalities: Selector{All: true},
		Distances:     DistanceSelector{Categories: []domain.DistanceCategory{domain.DistanceFar}},
	}

	queue, runs, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Empty catalog resolution falls back to one synthetic default.
	if queue.TotalSimulations != 1 {
		t.Errorf("TotalSimulations = %d, want 1", queue.TotalSimulations)
	}
	if runs[0].PersonalityID != nil {
		t.Errorf("PersonalityID = %v, want nil (synthetic default)", runs[0].PersonalityID)
	}
}

func TestBuild_AllDistances(t *testing.T) {
	catalog := newFakeCatalog(1, 1, 1)
	builder := New(Config{Catalogs: catalog})

	req := CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  catalog.techniqueIDs(),
		TacticIDs:     catalog.tacticIDs(),
		Personalities: Selector{All: true},
		Distances:     DistanceSelector{All: true},
	}

	_, runs, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := domain.AllDistances()
	if len(runs) != len(want) {
		t.Fatalf("len(runs) = %d, want %d", len(runs), len(want))
	}
	for i, d := range want {
		if runs[i].Distance != d {
			t.Errorf("runs[%d].Distance = %s, want %s", i, runs[i].Distance, d)
		}
	}
}

func TestBuild_EstimatedCost(t *testing.T) {
	catalog := newFakeCatalog(2, 3, 1)
	builder := New(Config{Catalogs: catalog, CostPerSimulation: 0.5})

	req := CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  catalog.techniqueIDs(),
		TacticIDs:     catalog.tacticIDs(),
		Personalities: Selector{All: true},
		Distances:     DistanceSelector{Categories: []domain.DistanceCategory{domain.DistanceClose}},
	}

	queue, _, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if queue.EstimatedCost != 3.0 {
		t.Errorf("EstimatedCost = %v, want 3.0", queue.EstimatedCost)
	}
}

func TestBuild_UnknownTechnique(t *testing.T) {
	catalog := newFakeCatalog(1, 1, 1)
	builder := New(Config{Catalogs: catalog})

	req := CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  []uuid.UUID{uuid.New()},
		TacticIDs:     catalog.tacticIDs(),
		Personalities: Selector{All: true},
		Distances:     DistanceSelector{All: true},
	}

	_, _, err := builder.Build(context.Background(), req)
	if !errors.Is(err, ErrUnknownCatalogID) {
		t.Errorf("expected ErrUnknownCatalogID, got %v", err)
	}
}

func TestBuild_DefaultMaxRetries(t *testing.T) {
	catalog := newFakeCatalog(1, 1, 1)
	builder := New(Config{Catalogs: catalog})

	req := CreateRequest{
		NegotiationID: uuid.New(),
		TechniqueIDs:  catalog.techniqueIDs(),
		TacticIDs:     catalog.tacticIDs(),
		Personalities: Selector{All: true},
		Distances:     DistanceSelector{All: true},
	}

	_, runs, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if runs[0].MaxRetries != domain.DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", runs[0].MaxRetries, domain.DefaultMaxRetries)
	}
}

func TestExpand_ExecutionOrderIsPermutation(t *testing.T) {
	queue := &domain.SimulationQueue{ID: uuid.New(), NegotiationID: uuid.New()}
	axes := Axes{
		TechniqueIDs:   []uuid.UUID{uuid.New(), uuid.New(), uuid.New()},
		TacticIDs:      []uuid.UUID{uuid.New(), uuid.New()},
		PersonalityIDs: []*uuid.UUID{nil, ptr(uuid.New())},
		Distances:      domain.AllDistances(),
	}

	runs := Expand(queue, axes, domain.DefaultMaxRetries)

	want := axes.Size()
	if len(runs) != want {
		t.Fatalf("len(runs) = %d, want %d", len(runs), want)
	}

	// Orders must be exactly 1..N without gaps or duplicates.
	seen := make(map[int]bool, len(runs))
	for _, run := range runs {
		if run.ExecutionOrder < 1 || run.ExecutionOrder > want {
			t.Errorf("ExecutionOrder %d out of range 1..%d", run.ExecutionOrder, want)
		}
		if seen[run.ExecutionOrder] {
			t.Errorf("duplicate ExecutionOrder %d", run.ExecutionOrder)
		}
		seen[run.ExecutionOrder] = true
	}
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}
