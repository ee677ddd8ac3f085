package evaluator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/engine"
	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/mq"
)

// Default configuration values.
const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 20
	defaultPrefetch     = 1
)

// RunStore — операции оценщика над строками симуляций.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationRun, error)
	ListUnevaluated(ctx context.Context, limit int) ([]domain.SimulationRun, error)
	SaveEvaluation(ctx context.Context, runID uuid.UUID, eval *domain.Evaluation) error
}

// Evaluator выставляет вердикты завершённым переговорам.
//
// Evaluator — stateless компонент системы, который:
//   - Получает запросы на оценку из очереди RabbitMQ (event-driven)
//   - Периодически проверяет неоценённые AGREEMENT-симуляции в БД
//     (polling fallback)
//   - Запрашивает вердикт у движка переговоров
//   - Сохраняет вердикт и рассылает событие simulation.evaluated
//
// Evaluators масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди; повторная оценка одной симуляции
// поглощается проверкой уже сохранённого вердикта.
type Evaluator struct {
	// Хранилище
	runs RunStore

	// Клиент оценки
	engine engine.Evaluator

	// События
	broadcaster events.Broadcaster

	// MQ
	conn     *mq.Connection
	consumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Evaluator.
type Config struct {
	// Хранилище симуляций
	Runs RunStore

	// Клиент оценки (HTTP-движок переговоров)
	Engine engine.Evaluator

	// События (опционально; если nil — внутренний hub без подписчиков)
	Broadcaster events.Broadcaster

	// MQ-соединение (опционально; если nil — только polling)
	Conn *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 30s)
	BatchSize    int           // количество симуляций за один poll (default: 20)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Evaluator.
func New(cfg Config) *Evaluator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	broadcaster := cfg.Broadcaster
	if broadcaster == nil {
		broadcaster = events.NewHub()
	}

	return &Evaluator{
		runs:         cfg.Runs,
		engine:       cfg.Engine,
		broadcaster:  broadcaster,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Evaluator.
//
// Запускает:
//   - Consumer для evaluation.requests (если есть MQ-соединение)
//   - Polling горутину для fallback
func (e *Evaluator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info("starting evaluator",
		"poll_interval", e.pollInterval,
		"batch_size", e.batchSize,
	)

	if e.conn != nil {
		e.consumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueEvaluationRequests),
			Handler:  e.handleEvaluationRequested,
			Prefetch: defaultPrefetch,
		})

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("evaluation consumer error", "error", err)
			}
		}()
	} else {
		e.logger.Warn("mq connection not available, relying on polling only")
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()

	e.logger.Info("evaluator started")
	return nil
}

// Stop останавливает Evaluator.
func (e *Evaluator) Stop() {
	e.stoppedMu.Lock()
	e.stopped = true
	e.stoppedMu.Unlock()

	e.logger.Info("stopping evaluator...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}

	if e.consumer != nil {
		e.consumer.Stop()
	}

	e.wg.Wait()

	e.logger.Info("evaluator stopped")
}

// IsStopped проверяет, остановлен ли Evaluator.
func (e *Evaluator) IsStopped() bool {
	e.stoppedMu.RLock()
	defer e.stoppedMu.RUnlock()
	return e.stopped
}

// pollLoop — цикл polling для fallback.
func (e *Evaluator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте: подхватываем симуляции, запросы на
	// оценку которых потерялись, пока брокер или оценщик были выключены.
	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (e *Evaluator) poll(ctx context.Context) {
	runs, err := e.runs.ListUnevaluated(ctx, e.batchSize)
	if err != nil {
		e.logger.Error("failed to list unevaluated runs", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	e.logger.Debug("poll found unevaluated runs", "count", len(runs))

	for i := range runs {
		run := &runs[i]

		if err := e.evaluateRun(ctx, run.ID); err != nil {
			// Гонка с consumer'ом: симуляцию уже оценил другой путь.
			if errors.Is(err, ErrAlreadyEvaluated) || errors.Is(err, ErrNotEvaluable) || errors.Is(err, ErrRunNotFound) {
				continue
			}
			e.logger.Error("failed to evaluate run from poll",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
}
