package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/engine"
	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/repo"
	"github.com/shaiso/Negotium/internal/results"
	"github.com/shaiso/Negotium/internal/telemetry"
)

// runEventPayload — полезная нагрузка событий жизненного цикла симуляции.
type runEventPayload struct {
	RunID          uuid.UUID `json:"run_id"`
	ExecutionOrder int       `json:"execution_order"`
	TechniqueID    uuid.UUID `json:"technique_id"`
	TacticID       uuid.UUID `json:"tactic_id"`
	Status         string    `json:"status"`
	Outcome        string    `json:"outcome,omitempty"`
	DealValue      *string   `json:"deal_value,omitempty"`
	TotalRounds    int       `json:"total_rounds,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// roundEventPayload — полезная нагрузка события одного раунда.
type roundEventPayload struct {
	RunID   uuid.UUID      `json:"run_id"`
	Number  int            `json:"number"`
	Speaker string         `json:"speaker"`
	Message string         `json:"message"`
	Offer   map[string]any `json:"offer,omitempty"`
}

// queueProgressPayload — сводка очереди для progress/completed событий.
type queueProgressPayload struct {
	Status     string  `json:"status"`
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Percent    float64 `json:"percent"`
	ETASeconds int64   `json:"eta_seconds"`
}

// ExecuteNext атомарно забирает PENDING симуляцию с наименьшим
// executionOrder и выполняет её. Возвращает false, когда очереди больше
// нечего выполнять — это сигнал завершения drain loop.
//
// FAILED/TIMEOUT симуляции метод никогда не подбирает сам: обратно в
// PENDING их возвращает только явный restart. Это защита от бесконечных
// повторов, маскирующих системную проблему.
func (o *Orchestrator) ExecuteNext(ctx context.Context, queueID uuid.UUID) (bool, error) {
	queue, err := o.queues.GetByID(ctx, queueID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, fmt.Errorf("%w: %s", ErrQueueNotFound, queueID)
		}
		return false, fmt.Errorf("get queue: %w", err)
	}
	if !queue.Status.IsDispatchable() {
		return false, nil
	}

	run, err := o.runs.ClaimNextPending(ctx, queueID)
	if errors.Is(err, repo.ErrNoPendingRuns) {
		return false, o.settleDrained(ctx, queue)
	}
	if err != nil {
		return false, fmt.Errorf("claim next pending run: %w", err)
	}

	// Минимальный снимок для диагностики падений процесса.
	snap := &domain.RecoverySnapshot{
		RunID:     run.ID,
		QueueID:   queue.ID,
		StartedAt: startedAtOrNow(run),
		Round:     0,
	}
	if err := o.runs.SaveRecoverySnapshot(ctx, run.ID, snap); err != nil {
		o.logger.Warn("failed to save recovery snapshot", "run_id", run.ID, "error", err)
	}
	run.RecoverySnapshot = snap

	if queue.Status == domain.QueueStatusPending {
		queue.MarkRunning()
		if err := o.queues.Update(ctx, queue); err != nil {
			o.logger.Warn("failed to mark queue running", "queue_id", queue.ID, "error", err)
		}
		if err := o.negotiations.UpdateStatus(ctx, queue.NegotiationID, domain.NegotiationStatusRunning); err != nil {
			o.logger.Warn("failed to sync negotiation status", "negotiation_id", queue.NegotiationID, "error", err)
		}
	}

	o.broadcast(events.New(events.EventSimulationStarted, queue.ID, queue.NegotiationID, runPayload(run)))
	o.logger.Info("simulation started",
		"run_id", run.ID,
		"queue_id", queue.ID,
		"execution_order", run.ExecutionOrder,
		"attempt", run.RetryCount+1,
	)

	result, err := o.engine.ExecuteSimulation(ctx, o.engineRequest(ctx, queue, run), func(round domain.Round) {
		o.broadcast(events.New(events.EventSimulationRound, queue.ID, queue.NegotiationID, roundEventPayload{
			RunID:   run.ID,
			Number:  round.Number,
			Speaker: round.Speaker,
			Message: round.Message,
			Offer:   round.Offer,
		}))
		snap.Round = round.Number
		if err := o.runs.UpdateSnapshotRound(ctx, run.ID, round.Number); err != nil {
			o.logger.Debug("failed to update snapshot round", "run_id", run.ID, "error", err)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			// Остановка процесса, а не сбой движка: строка остаётся
			// RUNNING, её подберут reaper или recovery.
			return false, ctx.Err()
		}
		return true, o.handleEngineFault(ctx, queue, run, err)
	}

	o.applyResult(ctx, run, result)

	// Guard гонки отмены: результат пишется только если строка всё ещё
	// RUNNING. Конкурентный stop уже выставил терминальный статус —
	// поздний результат молча отбрасывается, раздача продолжается.
	if err := o.runs.UpdateIfRunning(ctx, run); err != nil {
		if errors.Is(err, repo.ErrStatusConflict) {
			o.logger.Info("simulation result discarded after concurrent stop", "run_id", run.ID)
			return true, nil
		}
		return true, fmt.Errorf("persist simulation result: %w", err)
	}

	o.logger.Info("simulation finished",
		"run_id", run.ID,
		"queue_id", queue.ID,
		"status", run.Status,
		"outcome", run.Outcome,
		"rounds", run.TotalRounds,
	)

	if err := o.afterRunFinished(ctx, queue, run); err != nil {
		// Сводка не обновилась — не валим очередь: следующий вызов
		// ExecuteNext досчитает её через settleDrained.
		o.logger.Warn("post-run bookkeeping failed", "run_id", run.ID, "error", err)
	}

	if run.Status == domain.SimulationStatusPaused {
		// Пауза останавливает раздачу сразу; дальше только resume.
		return false, nil
	}

	o.maybeEvaluate(run)
	return true, nil
}

// settleDrained решает судьбу очереди, в которой не осталось PENDING
// симуляций: ждать незавершённую, встать на паузу или завершиться.
func (o *Orchestrator) settleDrained(ctx context.Context, queue *domain.SimulationQueue) error {
	counts, err := o.runs.CountByStatus(ctx, queue.ID)
	if err != nil {
		return fmt.Errorf("count queue runs: %w", err)
	}

	switch {
	case counts[domain.SimulationStatusRunning] > 0:
		// Незавершённая симуляция: её исход закроет очередь.
		return nil
	case counts[domain.SimulationStatusPaused] > 0 && counts.Finished() < queue.TotalSimulations:
		return o.ensureQueuePaused(ctx, queue, counts)
	default:
		return o.completeQueue(ctx, queue, counts)
	}
}

// completeQueue закрывает очередь: фактическая стоимость пересчитывается
// из строк симуляций, статус COMPLETED, финальное событие.
func (o *Orchestrator) completeQueue(ctx context.Context, queue *domain.SimulationQueue, counts repo.RunCounts) error {
	if cost, err := o.runs.SumActualCost(ctx, queue.ID); err != nil {
		o.logger.Warn("failed to sum queue cost", "queue_id", queue.ID, "error", err)
	} else {
		queue.ActualCost = cost
	}

	queue.MarkCompleted()
	if err := o.queues.Update(ctx, queue); err != nil {
		return fmt.Errorf("complete queue: %w", err)
	}

	if err := o.negotiations.UpdateStatus(ctx, queue.NegotiationID, domain.NegotiationStatusCompleted); err != nil {
		o.logger.Warn("failed to sync negotiation status", "negotiation_id", queue.NegotiationID, "error", err)
	}

	o.broadcast(events.New(events.EventQueueCompleted, queue.ID, queue.NegotiationID, o.progressPayload(queue, counts)))
	o.logger.Info("queue completed",
		"queue_id", queue.ID,
		"completed", counts.Completed(),
		"failed", counts.Failed(),
		"actual_cost", queue.ActualCost,
	)
	return nil
}

// ensureQueuePaused переводит очередь в PAUSED, если она ещё не там.
func (o *Orchestrator) ensureQueuePaused(ctx context.Context, queue *domain.SimulationQueue, counts repo.RunCounts) error {
	if queue.Status == domain.QueueStatusPaused {
		return nil
	}
	queue.MarkPaused()
	if err := o.queues.Update(ctx, queue); err != nil {
		return fmt.Errorf("pause queue: %w", err)
	}
	o.broadcast(events.New(events.EventQueueProgress, queue.ID, queue.NegotiationID, o.progressPayload(queue, counts)))
	o.logger.Info("queue paused by simulation outcome", "queue_id", queue.ID)
	return nil
}

// engineRequest собирает запрос к движку. Лимит раундов берётся из
// переговоров; при ошибке чтения действует значение по умолчанию.
func (o *Orchestrator) engineRequest(ctx context.Context, queue *domain.SimulationQueue, run *domain.SimulationRun) engine.Request {
	maxRounds := domain.DefaultMaxRounds
	if negotiation, err := o.negotiations.GetByID(ctx, queue.NegotiationID); err != nil {
		o.logger.Warn("failed to load negotiation, using default max rounds",
			"negotiation_id", queue.NegotiationID, "error", err)
	} else if negotiation.MaxRounds > 0 {
		maxRounds = negotiation.MaxRounds
	}

	return engine.Request{
		NegotiationID: run.NegotiationID,
		RunID:         run.ID,
		QueueID:       queue.ID,
		TechniqueID:   run.TechniqueID,
		TacticID:      run.TacticID,
		PersonalityID: run.PersonalityID,
		Distance:      run.Distance,
		MaxRounds:     maxRounds,
	}
}

// applyResult классифицирует исход движка в терминальный статус и
// заполняет результатные поля симуляции.
func (o *Orchestrator) applyResult(ctx context.Context, run *domain.SimulationRun, result *engine.Result) {
	run.TotalRounds = result.TotalRounds
	run.ConversationLog = result.ConversationLog
	run.FinalOffer = result.FinalOffer
	run.ActualCost = float64(result.TotalRounds) * domain.CostPerRound

	switch outcomeStatus(result.Outcome) {
	case domain.SimulationStatusCompleted:
		run.MarkCompleted(result.Outcome)
		o.attachBreakdown(ctx, run)
	case domain.SimulationStatusPaused:
		run.MarkPaused(result.Outcome)
	case domain.SimulationStatusTimeout:
		run.Outcome = result.Outcome
		run.MarkTimeout("max rounds exhausted without resolution")
	default:
		run.Outcome = result.Outcome
		run.MarkFailed(fmt.Sprintf("unrecognized outcome %q", result.Outcome))
	}
}

// outcomeStatus — фиксированное отображение исход → терминальный статус.
func outcomeStatus(outcome string) domain.SimulationStatus {
	switch outcome {
	case engine.OutcomeAgreement, engine.OutcomeTerminated, engine.OutcomeWalkAway:
		return domain.SimulationStatusCompleted
	case engine.OutcomePaused:
		return domain.SimulationStatusPaused
	case engine.OutcomeMaxRounds:
		return domain.SimulationStatusTimeout
	default:
		return domain.SimulationStatusFailed
	}
}

// attachBreakdown прогоняет финальный оффер через Result Processor.
func (o *Orchestrator) attachBreakdown(ctx context.Context, run *domain.SimulationRun) {
	products, err := o.products.ListProducts(ctx, run.NegotiationID)
	if err != nil {
		o.logger.Warn("failed to load products for result processing", "run_id", run.ID, "error", err)
		return
	}

	breakdown := results.Process(run.FinalOffer, products)
	run.DealValue = breakdown.DealValue
	run.ProductRows = breakdown.Rows
	run.OtherDimensions = breakdown.OtherDimensions

	if breakdown.DealValue == nil && len(products) > 0 {
		// Диагностика расхождений в наименованиях: какие продукты ждали
		// и какие ключи реально пришли.
		o.logger.Warn("no product matched in final offer",
			"run_id", run.ID,
			"expected_products", productNames(products),
			"offer_keys", offerKeys(run.FinalOffer),
		)
	}
}

// handleEngineFault обрабатывает сбой исполнителя: ограниченный повтор
// либо терминальный FAILED после исчерпания попыток.
func (o *Orchestrator) handleEngineFault(ctx context.Context, queue *domain.SimulationQueue, run *domain.SimulationRun, cause error) error {
	run.RetryCount++

	if run.CanRetry() {
		run.ResetForRetry()
		if err := o.runs.UpdateIfRunning(ctx, run); err != nil {
			if errors.Is(err, repo.ErrStatusConflict) {
				o.logger.Info("retry reset discarded after concurrent stop", "run_id", run.ID)
				return nil
			}
			return fmt.Errorf("reset run for retry: %w", err)
		}
		telemetry.ExecutorRetries.Inc()
		o.logger.Warn("simulation fault, will retry",
			"run_id", run.ID,
			"attempt", run.RetryCount,
			"max_retries", run.MaxRetries,
			"error", cause,
		)
		return nil
	}

	run.MarkFailed(fmt.Sprintf("executor fault after %d attempts: %v", run.RetryCount, cause))
	if err := o.runs.UpdateIfRunning(ctx, run); err != nil {
		if errors.Is(err, repo.ErrStatusConflict) {
			o.logger.Info("failure mark discarded after concurrent stop", "run_id", run.ID)
			return nil
		}
		return fmt.Errorf("mark run failed: %w", err)
	}

	o.logger.Error("simulation failed after retries",
		"run_id", run.ID,
		"attempts", run.RetryCount,
		"error", cause,
	)
	return o.afterRunFinished(ctx, queue, run)
}

// afterRunFinished обновляет сводку очереди после завершившейся
// симуляции: пересчёт стоимости, события, проверка завершения очереди.
// Сводка всегда выводится из строк симуляций, не из кэша.
func (o *Orchestrator) afterRunFinished(ctx context.Context, queue *domain.SimulationQueue, run *domain.SimulationRun) error {
	if err := o.queues.RecomputeActualCost(ctx, queue.ID); err != nil {
		o.logger.Warn("failed to recompute queue cost", "queue_id", queue.ID, "error", err)
	}

	counts, err := o.runs.CountByStatus(ctx, queue.ID)
	if err != nil {
		return fmt.Errorf("count queue runs: %w", err)
	}

	if run.Status == domain.SimulationStatusPaused {
		// Пауза — не терминал: очередь встаёт следом за симуляцией.
		return o.ensureQueuePaused(ctx, queue, counts)
	}

	evType := events.EventSimulationCompleted
	if run.Status != domain.SimulationStatusCompleted {
		evType = events.EventSimulationFailed
	}
	o.broadcast(events.New(evType, queue.ID, queue.NegotiationID, runPayload(run)))
	telemetry.SimulationsTotal.WithLabelValues(string(run.Status)).Inc()
	telemetry.SimulationDuration.Observe(run.Duration().Seconds())

	if counts.Finished() >= queue.TotalSimulations {
		return o.completeQueue(ctx, queue, counts)
	}

	o.broadcast(events.New(events.EventQueueProgress, queue.ID, queue.NegotiationID, o.progressPayload(queue, counts)))
	return nil
}

// maybeEvaluate запускает fire-and-forget запрос downstream-оценки
// для сделок, завершившихся соглашением. Сбои публикации логируются
// и никогда не доходят до планировщика.
func (o *Orchestrator) maybeEvaluate(run *domain.SimulationRun) {
	if o.publisher == nil || run.Outcome != engine.OutcomeAgreement {
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("evaluation request panicked", "run_id", run.ID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := o.publisher.PublishEvaluationRequested(ctx, run.ID, run.NegotiationID); err != nil {
			o.logger.Warn("failed to request evaluation", "run_id", run.ID, "error", err)
		}
	}()
}

// progressPayload собирает сводку очереди для событий.
func (o *Orchestrator) progressPayload(queue *domain.SimulationQueue, counts repo.RunCounts) queueProgressPayload {
	finished := counts.Finished()

	percent := 0.0
	if queue.TotalSimulations > 0 {
		percent = float64(finished) / float64(queue.TotalSimulations) * 100
	}

	remaining := queue.TotalSimulations - finished
	if remaining < 0 {
		remaining = 0
	}

	return queueProgressPayload{
		Status:     string(queue.Status),
		Total:      queue.TotalSimulations,
		Completed:  counts.Completed(),
		Failed:     counts.Failed(),
		Percent:    percent,
		ETASeconds: int64((time.Duration(remaining) * domain.AvgSimulationDuration).Seconds()),
	}
}

func runPayload(run *domain.SimulationRun) runEventPayload {
	return runEventPayload{
		RunID:          run.ID,
		ExecutionOrder: run.ExecutionOrder,
		TechniqueID:    run.TechniqueID,
		TacticID:       run.TacticID,
		Status:         string(run.Status),
		Outcome:        run.Outcome,
		DealValue:      run.DealValue,
		TotalRounds:    run.TotalRounds,
		Error:          run.Error,
	}
}

func startedAtOrNow(run *domain.SimulationRun) time.Time {
	if run.StartedAt != nil {
		return *run.StartedAt
	}
	return time.Now()
}

func productNames(products []domain.Product) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}

func offerKeys(offer map[string]any) []string {
	keys := make([]string, 0, len(offer))
	for k := range offer {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
