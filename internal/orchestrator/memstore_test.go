package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/engine"
	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/matrix"
	"github.com/shaiso/Negotium/internal/repo"
)

// --- In-memory stores ---

// memStore mirrors the SQL repo semantics in memory: guarded status
// transitions, sentinel errors from internal/repo, copies in and out.
// The store interfaces all declare GetByID with different return types,
// so the state is exposed through thin per-interface views sharing one lock.
type memStore struct {
	mu            sync.Mutex
	negotiations  map[uuid.UUID]*domain.Negotiation
	queues        map[uuid.UUID]*domain.SimulationQueue
	runs          map[uuid.UUID]*domain.SimulationRun
	products      map[uuid.UUID][]domain.Product
	techniques    []domain.Technique
	tactics       []domain.Tactic
	personalities []domain.Personality
}

func newMemStore() *memStore {
	return &memStore{
		negotiations: make(map[uuid.UUID]*domain.Negotiation),
		queues:       make(map[uuid.UUID]*domain.SimulationQueue),
		runs:         make(map[uuid.UUID]*domain.SimulationRun),
		products:     make(map[uuid.UUID][]domain.Product),
	}
}

func copyRun(r *domain.SimulationRun) *domain.SimulationRun {
	c := *r
	if r.RecoverySnapshot != nil {
		snap := *r.RecoverySnapshot
		c.RecoverySnapshot = &snap
	}
	return &c
}

func copyQueue(q *domain.SimulationQueue) *domain.SimulationQueue {
	c := *q
	return &c
}

type memQueues struct{ s *memStore }

func (m memQueues) CreateWithRuns(ctx context.Context, q *domain.SimulationQueue, runs []*domain.SimulationRun) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.queues[q.ID]; ok {
		return repo.ErrAlreadyExists
	}
	m.s.queues[q.ID] = copyQueue(q)
	for _, run := range runs {
		m.s.runs[run.ID] = copyRun(run)
	}
	return nil
}

func (m memQueues) GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationQueue, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	q, ok := m.s.queues[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return copyQueue(q), nil
}

func (m memQueues) ListByNegotiation(ctx context.Context, negotiationID uuid.UUID) ([]domain.SimulationQueue, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.SimulationQueue
	for _, q := range m.s.queues {
		if q.NegotiationID == negotiationID {
			out = append(out, *copyQueue(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m memQueues) ListActive(ctx context.Context) ([]domain.SimulationQueue, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.SimulationQueue
	for _, q := range m.s.queues {
		if q.Status.IsDispatchable() {
			out = append(out, *copyQueue(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m memQueues) Update(ctx context.Context, q *domain.SimulationQueue) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.queues[q.ID]; !ok {
		return repo.ErrNotFound
	}
	m.s.queues[q.ID] = copyQueue(q)
	return nil
}

func (m memQueues) RecomputeActualCost(ctx context.Context, queueID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	q, ok := m.s.queues[queueID]
	if !ok {
		return repo.ErrNotFound
	}
	total := 0.0
	for _, run := range m.s.runs {
		if run.QueueID == queueID {
			total += run.ActualCost
		}
	}
	q.ActualCost = total
	return nil
}

type memRuns struct{ s *memStore }

func (m memRuns) GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationRun, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	run, ok := m.s.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return copyRun(run), nil
}

func (m memRuns) ClaimNextPending(ctx context.Context, queueID uuid.UUID) (*domain.SimulationRun, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var next *domain.SimulationRun
	for _, run := range m.s.runs {
		if run.QueueID != queueID || run.Status != domain.SimulationStatusPending {
			continue
		}
		if next == nil || run.ExecutionOrder < next.ExecutionOrder {
			next = run
		}
	}
	if next == nil {
		return nil, repo.ErrNoPendingRuns
	}
	next.MarkRunning()
	return copyRun(next), nil
}

func (m memRuns) GetRunning(ctx context.Context, queueID uuid.UUID) (*domain.SimulationRun, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var found *domain.SimulationRun
	for _, run := range m.s.runs {
		if run.QueueID == queueID && run.Status == domain.SimulationStatusRunning {
			if found == nil || run.ExecutionOrder < found.ExecutionOrder {
				found = run
			}
		}
	}
	if found == nil {
		return nil, repo.ErrNotFound
	}
	return copyRun(found), nil
}

func (m memRuns) CountByStatus(ctx context.Context, queueID uuid.UUID) (repo.RunCounts, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	counts := repo.RunCounts{}
	for _, run := range m.s.runs {
		if run.QueueID == queueID {
			counts[run.Status]++
		}
	}
	return counts, nil
}

func (m memRuns) SumActualCost(ctx context.Context, queueID uuid.UUID) (float64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	total := 0.0
	for _, run := range m.s.runs {
		if run.QueueID == queueID {
			total += run.ActualCost
		}
	}
	return total, nil
}

func (m memRuns) UpdateIfRunning(ctx context.Context, run *domain.SimulationRun) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.runs[run.ID]
	if !ok || stored.Status != domain.SimulationStatusRunning {
		return repo.ErrStatusConflict
	}
	m.s.runs[run.ID] = copyRun(run)
	return nil
}

func (m memRuns) SaveRecoverySnapshot(ctx context.Context, runID uuid.UUID, snap *domain.RecoverySnapshot) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	run, ok := m.s.runs[runID]
	if !ok || run.Status != domain.SimulationStatusRunning {
		return nil
	}
	c := *snap
	run.RecoverySnapshot = &c
	return nil
}

func (m memRuns) UpdateSnapshotRound(ctx context.Context, runID uuid.UUID, round int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	run, ok := m.s.runs[runID]
	if !ok || run.Status != domain.SimulationStatusRunning || run.RecoverySnapshot == nil {
		return nil
	}
	run.RecoverySnapshot.Round = round
	return nil
}

func (m memRuns) MarkTimeoutIfRunning(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	run, ok := m.s.runs[id]
	if !ok || run.Status != domain.SimulationStatusRunning {
		return false, nil
	}
	run.MarkTimeout(reason)
	return true, nil
}

func (m memRuns) ListStaleRunning(ctx context.Context, before time.Time) ([]domain.SimulationRun, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.SimulationRun
	for _, run := range m.s.runs {
		if run.Status == domain.SimulationStatusRunning && run.StartedAt != nil && run.StartedAt.Before(before) {
			out = append(out, *copyRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(*out[j].StartedAt) })
	return out, nil
}

func (m memRuns) ListOrphaned(ctx context.Context, negotiationID uuid.UUID, before time.Time) ([]domain.SimulationRun, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.SimulationRun
	for _, run := range m.s.runs {
		if run.NegotiationID == negotiationID && run.Status == domain.SimulationStatusRunning &&
			run.StartedAt != nil && run.StartedAt.Before(before) {
			out = append(out, *copyRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(*out[j].StartedAt) })
	return out, nil
}

func (m memRuns) RecoverToPending(ctx context.Context, id uuid.UUID, snap *domain.RecoverySnapshot) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	run, ok := m.s.runs[id]
	if !ok || run.Status != domain.SimulationStatusRunning {
		return false, nil
	}
	run.Status = domain.SimulationStatusPending
	run.StartedAt = nil
	c := *snap
	run.RecoverySnapshot = &c
	return true, nil
}

func (m memRuns) AbortActive(ctx context.Context, queueID uuid.UUID, reason string) ([]domain.SimulationRun, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.SimulationRun
	for _, run := range m.s.runs {
		if run.QueueID != queueID {
			continue
		}
		if run.Status == domain.SimulationStatusPending || run.Status == domain.SimulationStatusRunning {
			run.MarkAborted(reason)
			out = append(out, *copyRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutionOrder < out[j].ExecutionOrder })
	return out, nil
}

func (m memRuns) RestartFailed(ctx context.Context, queueID uuid.UUID) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, run := range m.s.runs {
		if run.QueueID != queueID {
			continue
		}
		if run.Status == domain.SimulationStatusFailed || run.Status == domain.SimulationStatusTimeout {
			run.ResetForRestart()
			n++
		}
	}
	return n, nil
}

func (m memRuns) ResumePaused(ctx context.Context, queueID uuid.UUID) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, run := range m.s.runs {
		if run.QueueID == queueID && run.Status == domain.SimulationStatusPaused {
			run.Status = domain.SimulationStatusPending
			run.StartedAt = nil
			run.CompletedAt = nil
			run.Outcome = ""
			run.RecoverySnapshot = nil
			n++
		}
	}
	return n, nil
}

type memNegotiations struct{ s *memStore }

func (m memNegotiations) GetByID(ctx context.Context, id uuid.UUID) (*domain.Negotiation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n, ok := m.s.negotiations[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := *n
	return &c, nil
}

func (m memNegotiations) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NegotiationStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n, ok := m.s.negotiations[id]
	if !ok {
		return repo.ErrNotFound
	}
	n.Status = status
	return nil
}

type memProducts struct{ s *memStore }

func (m memProducts) ListProducts(ctx context.Context, negotiationID uuid.UUID) ([]domain.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]domain.Product(nil), m.s.products[negotiationID]...), nil
}

type memCatalogs struct{ s *memStore }

func (m memCatalogs) ListTechniquesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Technique, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := idSet(ids)
	var out []domain.Technique
	for _, t := range m.s.techniques {
		if _, ok := want[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m memCatalogs) ListTacticsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Tactic, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := idSet(ids)
	var out []domain.Tactic
	for _, t := range m.s.tactics {
		if _, ok := want[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m memCatalogs) ListPersonalities(ctx context.Context) ([]domain.Personality, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]domain.Personality(nil), m.s.personalities...), nil
}

func (m memCatalogs) ListPersonalitiesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Personality, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := idSet(ids)
	var out []domain.Personality
	for _, p := range m.s.personalities {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// --- Fake engine ---

// fakeEngine is a scripted negotiation engine. It records every request,
// detects overlapping invocations for the same queue, and can block on a
// release channel to let tests interleave concurrent operations.
type fakeEngine struct {
	mu         sync.Mutex
	outcome    string // default AGREEMENT
	rounds     []domain.Round
	finalOffer map[string]any
	faults     int // next N calls return a transport error
	panics     int // next N calls panic
	requests   []engine.Request
	inFlight   map[uuid.UUID]int
	overlap    bool
	started    chan uuid.UUID // if set, receives RunID when a call begins
	release    chan struct{}  // if set, calls block until closed
	canceled   []uuid.UUID
}

func (f *fakeEngine) ExecuteSimulation(ctx context.Context, req engine.Request, onRound engine.RoundCallback) (*engine.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if f.inFlight == nil {
		f.inFlight = make(map[uuid.UUID]int)
	}
	f.inFlight[req.QueueID]++
	if f.inFlight[req.QueueID] > 1 {
		f.overlap = true
	}
	mustPanic := f.panics > 0
	if mustPanic {
		f.panics--
	}
	mustFault := !mustPanic && f.faults > 0
	if mustFault {
		f.faults--
	}
	outcome := f.outcome
	rounds := f.rounds
	offer := f.finalOffer
	started := f.started
	release := f.release
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight[req.QueueID]--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- req.RunID
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if mustPanic {
		panic("engine exploded")
	}
	if mustFault {
		return nil, errors.New("engine transport down")
	}

	for _, round := range rounds {
		if onRound != nil {
			onRound(round)
		}
	}
	if outcome == "" {
		outcome = engine.OutcomeAgreement
	}
	totalRounds := len(rounds)
	if totalRounds == 0 {
		totalRounds = 2
	}
	return &engine.Result{
		Outcome:         outcome,
		TotalRounds:     totalRounds,
		ConversationLog: rounds,
		FinalOffer:      offer,
	}, nil
}

func (f *fakeEngine) CancelSimulation(ctx context.Context, runID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, runID)
	return nil
}

func (f *fakeEngine) setOutcome(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcome = outcome
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeEngine) executedRuns() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(f.requests))
	for _, req := range f.requests {
		ids = append(ids, req.RunID)
	}
	return ids
}

func (f *fakeEngine) canceledRuns() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.canceled...)
}

func (f *fakeEngine) hadOverlap() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlap
}

// --- Fake evaluation publisher ---

type fakePublisher struct {
	mu        sync.Mutex
	published []uuid.UUID
	notify    chan uuid.UUID
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{notify: make(chan uuid.UUID, 16)}
}

func (p *fakePublisher) PublishEvaluationRequested(ctx context.Context, runID, negotiationID uuid.UUID) error {
	p.mu.Lock()
	p.published = append(p.published, runID)
	p.mu.Unlock()
	select {
	case p.notify <- runID:
	default:
	}
	return nil
}

func (p *fakePublisher) publishedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

// --- Recording broadcaster ---

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBroadcaster) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBroadcaster) ofType(eventType string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, ev := range b.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (b *recordingBroadcaster) countOf(eventType string) int {
	return len(b.ofType(eventType))
}

// --- Test environment ---

type testEnv struct {
	t     *testing.T
	store *memStore
	eng   *fakeEngine
	bus   *recordingBroadcaster
	pub   *fakePublisher
	orc   *Orchestrator
}

// newTestEnv wires an orchestrator over in-memory stores. The tick
// interval is an hour on purpose: apart from the immediate first tick
// at Start, queues move only when a test kicks them explicitly.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	eng := &fakeEngine{}
	bus := &recordingBroadcaster{}
	pub := newFakePublisher()
	orc := New(Config{
		Queues:       memQueues{store},
		Runs:         memRuns{store},
		Negotiations: memNegotiations{store},
		Products:     memProducts{store},
		Engine:       eng,
		Matrix:       matrix.New(matrix.Config{Catalogs: memCatalogs{store}}),
		Broadcaster:  bus,
		Publisher:    pub,
		TickInterval: time.Hour,
		RunDelay:     time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &testEnv{t: t, store: store, eng: eng, bus: bus, pub: pub, orc: orc}
}

func (e *testEnv) seedNegotiation() *domain.Negotiation {
	e.t.Helper()
	n := &domain.Negotiation{
		ID:        uuid.New(),
		Title:     "Supply contract",
		Status:    domain.NegotiationStatusDraft,
		MaxRounds: 8,
		CreatedAt: time.Now(),
	}
	e.store.mu.Lock()
	e.store.negotiations[n.ID] = n
	e.store.mu.Unlock()
	c := *n
	return &c
}

// seedQueue materializes a PENDING queue with total PENDING runs,
// execution orders 1..total.
func (e *testEnv) seedQueue(negotiationID uuid.UUID, total int) *domain.SimulationQueue {
	e.t.Helper()
	now := time.Now()
	q := &domain.SimulationQueue{
		ID:               uuid.New(),
		NegotiationID:    negotiationID,
		TotalSimulations: total,
		Status:           domain.QueueStatusPending,
		EstimatedCost:    float64(total) * domain.CostPerSimulation,
		CreatedAt:        now,
	}
	runs := make([]*domain.SimulationRun, 0, total)
	for i := 1; i <= total; i++ {
		runs = append(runs, &domain.SimulationRun{
			ID:             uuid.New(),
			QueueID:        q.ID,
			NegotiationID:  negotiationID,
			ExecutionOrder: i,
			TechniqueID:    uuid.New(),
			TacticID:       uuid.New(),
			Distance:       domain.DistanceMedium,
			Status:         domain.SimulationStatusPending,
			MaxRetries:     domain.DefaultMaxRetries,
			CreatedAt:      now,
		})
	}
	if err := (memQueues{e.store}).CreateWithRuns(context.Background(), q, runs); err != nil {
		e.t.Fatalf("seed queue: %v", err)
	}
	return q
}

func (e *testEnv) seedProduct(negotiationID uuid.UUID, name string, volume int) domain.Product {
	e.t.Helper()
	p := domain.Product{
		ID:            uuid.New(),
		NegotiationID: negotiationID,
		Name:          name,
		TargetPrice:   10,
		MinPrice:      8,
		MaxPrice:      15,
		Volume:        volume,
		CreatedAt:     time.Now(),
	}
	e.store.mu.Lock()
	e.store.products[negotiationID] = append(e.store.products[negotiationID], p)
	e.store.mu.Unlock()
	return p
}

func (e *testEnv) seedCatalogs(techniques, tactics, personalities int) (techIDs, tacticIDs, personalityIDs []uuid.UUID) {
	e.t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	now := time.Now()
	for i := 0; i < techniques; i++ {
		t := domain.Technique{ID: uuid.New(), Name: fmt.Sprintf("Technique %d", i+1), CreatedAt: now}
		e.store.techniques = append(e.store.techniques, t)
		techIDs = append(techIDs, t.ID)
	}
	for i := 0; i < tactics; i++ {
		t := domain.Tactic{ID: uuid.New(), Name: fmt.Sprintf("Tactic %d", i+1), CreatedAt: now}
		e.store.tactics = append(e.store.tactics, t)
		tacticIDs = append(tacticIDs, t.ID)
	}
	for i := 0; i < personalities; i++ {
		p := domain.Personality{ID: uuid.New(), Name: fmt.Sprintf("Personality %d", i+1), CreatedAt: now}
		e.store.personalities = append(e.store.personalities, p)
		personalityIDs = append(personalityIDs, p.ID)
	}
	return techIDs, tacticIDs, personalityIDs
}

func (e *testEnv) run(id uuid.UUID) *domain.SimulationRun {
	e.t.Helper()
	run, err := (memRuns{e.store}).GetByID(context.Background(), id)
	if err != nil {
		e.t.Fatalf("get run %s: %v", id, err)
	}
	return run
}

func (e *testEnv) queue(id uuid.UUID) *domain.SimulationQueue {
	e.t.Helper()
	q, err := (memQueues{e.store}).GetByID(context.Background(), id)
	if err != nil {
		e.t.Fatalf("get queue %s: %v", id, err)
	}
	return q
}

func (e *testEnv) negotiation(id uuid.UUID) *domain.Negotiation {
	e.t.Helper()
	n, err := (memNegotiations{e.store}).GetByID(context.Background(), id)
	if err != nil {
		e.t.Fatalf("get negotiation %s: %v", id, err)
	}
	return n
}

func (e *testEnv) queueRuns(queueID uuid.UUID) []*domain.SimulationRun {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	var out []*domain.SimulationRun
	for _, run := range e.store.runs {
		if run.QueueID == queueID {
			out = append(out, copyRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutionOrder < out[j].ExecutionOrder })
	return out
}

func (e *testEnv) mutateRun(id uuid.UUID, fn func(*domain.SimulationRun)) {
	e.t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	run, ok := e.store.runs[id]
	if !ok {
		e.t.Fatalf("run %s not seeded", id)
	}
	fn(run)
}

func (e *testEnv) mutateQueue(id uuid.UUID, fn func(*domain.SimulationQueue)) {
	e.t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	q, ok := e.store.queues[id]
	if !ok {
		e.t.Fatalf("queue %s not seeded", id)
	}
	fn(q)
}

// drainFully calls ExecuteNext until the queue reports it has nothing
// left to dispatch.
func (e *testEnv) drainFully(queueID uuid.UUID) {
	e.t.Helper()
	for i := 0; i < 32; i++ {
		ok, err := e.orc.ExecuteNext(context.Background(), queueID)
		if err != nil {
			e.t.Fatalf("ExecuteNext: %v", err)
		}
		if !ok {
			return
		}
	}
	e.t.Fatal("queue did not drain in 32 iterations")
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func recvRun(t *testing.T, ch <-chan uuid.UUID) uuid.UUID {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for engine invocation")
		return uuid.Nil
	}
}
