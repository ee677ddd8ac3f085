package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/engine"
	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/matrix"
	"github.com/shaiso/Negotium/internal/telemetry"
)

// Default configuration values.
const (
	defaultTickInterval  = 3 * time.Second
	defaultRunDelay      = 500 * time.Millisecond
	defaultStaleAfter    = 10 * time.Minute
	defaultRecoveryAfter = 5 * time.Minute
)

// Orchestrator управляет выполнением очередей симуляций.
//
// Orchestrator — центральный компонент системы, который:
//   - Периодически сканирует активные очереди (tick loop)
//   - Запускает на каждую очередь независимый drain loop
//   - Внутри очереди выполняет симуляции строго последовательно
//   - Снимает зависшие симуляции (reaper) перед каждой раздачей
//   - Транслирует события хода выполнения подписчикам
type Orchestrator struct {
	// Stores
	queues       QueueStore
	runs         RunStore
	negotiations NegotiationStore
	products     ProductStore

	// Collaborators
	engine      engine.Engine
	matrix      *matrix.Builder
	broadcaster events.Broadcaster
	publisher   EvaluationPublisher

	// Processing set — очереди с активным drain loop (queueID → занято).
	// Единственный механизм, не дающий двум drain loop обслуживать одну
	// очередь одновременно.
	processing map[uuid.UUID]struct{}
	mu         sync.RWMutex

	// Configuration
	tickInterval  time.Duration
	runDelay      time.Duration
	staleAfter    time.Duration
	recoveryAfter time.Duration

	// Lifecycle
	logger     *slog.Logger
	runCtx     context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Stores
	Queues       QueueStore
	Runs         RunStore
	Negotiations NegotiationStore
	Products     ProductStore

	// Collaborators
	Engine      engine.Engine
	Matrix      *matrix.Builder
	Broadcaster events.Broadcaster  // nil — события никуда не идут
	Publisher   EvaluationPublisher // nil — оценка отключена

	// Scheduling
	TickInterval  time.Duration // интервал сканирования очередей (default: 3s)
	RunDelay      time.Duration // пауза между симуляциями очереди (default: 500ms)
	StaleAfter    time.Duration // порог reaper (default: 10m)
	RecoveryAfter time.Duration // порог recovery после рестарта (default: 5m)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}

	runDelay := cfg.RunDelay
	if runDelay <= 0 {
		runDelay = defaultRunDelay
	}

	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}

	recoveryAfter := cfg.RecoveryAfter
	if recoveryAfter <= 0 {
		recoveryAfter = defaultRecoveryAfter
	}

	broadcaster := cfg.Broadcaster
	if broadcaster == nil {
		broadcaster = events.NewHub()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		queues:        cfg.Queues,
		runs:          cfg.Runs,
		negotiations:  cfg.Negotiations,
		products:      cfg.Products,
		engine:        cfg.Engine,
		matrix:        cfg.Matrix,
		broadcaster:   broadcaster,
		publisher:     cfg.Publisher,
		processing:    make(map[uuid.UUID]struct{}),
		tickInterval:  tickInterval,
		runDelay:      runDelay,
		staleAfter:    staleAfter,
		recoveryAfter: recoveryAfter,
		logger:        logger,
	}
}

// Start запускает фоновый цикл оркестратора.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.runCtx = ctx
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"tick_interval", o.tickInterval,
		"run_delay", o.runDelay,
		"stale_after", o.staleAfter,
	)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.tickLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает оркестратор и дожидается завершения drain loops.
// Симуляции, прерванные на середине, остаются RUNNING в БД — их
// подберут reaper или recovery после рестарта.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped",
		"draining_queues", o.DrainingCount(),
	)
}

// tickLoop — общий цикл сканирования очередей.
func (o *Orchestrator) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	// Первый tick сразу при старте (подхватываем очереди, созданные пока были выключены)
	o.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick выполняет один проход: сначала reaper, затем раздача очередей.
func (o *Orchestrator) tick(ctx context.Context) {
	o.reapStaleRuns(ctx)

	queues, err := o.queues.ListActive(ctx)
	if err != nil {
		o.logger.Error("failed to list active queues", "error", err)
		return
	}

	for i := range queues {
		o.tryDrain(ctx, queues[i].ID)
	}
}

// tryDrain запускает drain loop очереди, если он ещё не идёт.
// Возвращает false, если очередь уже обслуживается.
func (o *Orchestrator) tryDrain(ctx context.Context, queueID uuid.UUID) bool {
	o.mu.Lock()
	if _, busy := o.processing[queueID]; busy {
		o.mu.Unlock()
		return false
	}
	o.processing[queueID] = struct{}{}
	o.mu.Unlock()

	o.wg.Add(1)
	go o.drainQueue(ctx, queueID)
	return true
}

// kickDrain — немедленный запуск drain loop по явной команде
// (start/resume/restart), не дожидаясь следующего tick.
func (o *Orchestrator) kickDrain(queueID uuid.UUID) {
	if o.runCtx == nil || o.runCtx.Err() != nil {
		// Оркестратор не запущен — очередь подхватит tick после старта.
		return
	}
	o.tryDrain(o.runCtx, queueID)
}

// drainQueue последовательно выполняет симуляции очереди, пока есть
// что выполнять. Паника или ошибка внутри цикла валит только эту
// очередь, не затрагивая остальные.
func (o *Orchestrator) drainQueue(ctx context.Context, queueID uuid.UUID) {
	defer o.wg.Done()
	defer o.stopDraining(queueID)
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("drain loop panic", "queue_id", queueID, "panic", rec)
			o.failQueue(queueID, fmt.Sprintf("drain loop panic: %v", rec))
		}
	}()

	telemetry.ActiveDrains.Inc()
	defer telemetry.ActiveDrains.Dec()

	for {
		ok, err := o.ExecuteNext(ctx, queueID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Error("drain loop failed", "queue_id", queueID, "error", err)
			o.failQueue(queueID, err.Error())
			return
		}
		if !ok {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(o.runDelay):
		}
	}
}

// failQueue переводит очередь в FAILED после невосстановимой ошибки
// drain loop. Работает на собственном контексте: исходный мог умереть.
func (o *Orchestrator) failQueue(queueID uuid.UUID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	queue, err := o.queues.GetByID(ctx, queueID)
	if err != nil {
		o.logger.Error("failed to load queue for failure marking", "queue_id", queueID, "error", err)
		return
	}
	if queue.Status.IsTerminal() {
		return
	}

	queue.MarkFailed()
	if err := o.queues.Update(ctx, queue); err != nil {
		o.logger.Error("failed to mark queue failed", "queue_id", queueID, "error", err)
		return
	}

	if counts, err := o.runs.CountByStatus(ctx, queueID); err == nil {
		o.broadcast(events.New(events.EventQueueProgress, queue.ID, queue.NegotiationID, o.progressPayload(queue, counts)))
	}

	o.logger.Error("queue failed", "queue_id", queueID, "reason", reason)
}

// isDraining проверяет, обслуживается ли очередь.
func (o *Orchestrator) isDraining(queueID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.processing[queueID]
	return ok
}

// stopDraining убирает очередь из processing set.
func (o *Orchestrator) stopDraining(queueID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.processing, queueID)
}

// DrainingCount возвращает количество обслуживаемых очередей.
func (o *Orchestrator) DrainingCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.processing)
}

// broadcast отдаёт событие подписчикам. Доставка best-effort.
func (o *Orchestrator) broadcast(ev events.Event) {
	o.broadcaster.Publish(ev)
}
