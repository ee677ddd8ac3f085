package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/matrix"
	"github.com/shaiso/Negotium/internal/repo"
	"github.com/shaiso/Negotium/internal/telemetry"
)

// QueueReport — снимок состояния очереди для API.
// Все величины пересчитываются из строк симуляций при каждом запросе.
type QueueReport struct {
	Queue      *domain.SimulationQueue
	Counts     repo.RunCounts
	Percent    float64
	ETA        time.Duration
	ActualCost float64
	CurrentRun *domain.SimulationRun
}

// CreateQueue валидирует запрос, строит матрицу симуляций и сохраняет
// очередь вместе со всеми её строками одной транзакцией.
func (o *Orchestrator) CreateQueue(ctx context.Context, req matrix.CreateRequest) (*domain.SimulationQueue, error) {
	if _, err := o.negotiations.GetByID(ctx, req.NegotiationID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNegotiationNotFound, req.NegotiationID)
		}
		return nil, fmt.Errorf("get negotiation: %w", err)
	}

	if err := matrix.Validate(req); err != nil {
		return nil, err
	}

	queue, runs, err := o.matrix.Build(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := o.queues.CreateWithRuns(ctx, queue, runs); err != nil {
		return nil, fmt.Errorf("persist queue: %w", err)
	}

	o.logger.Info("queue created",
		"queue_id", queue.ID,
		"negotiation_id", queue.NegotiationID,
		"total_simulations", queue.TotalSimulations,
		"estimated_cost", queue.EstimatedCost,
	)
	return queue, nil
}

// StartQueue запускает раздачу очереди немедленно, не дожидаясь tick.
// Повторный start активной очереди идемпотентен: второй drain loop
// не появится благодаря processing set.
func (o *Orchestrator) StartQueue(ctx context.Context, queueID uuid.UUID) error {
	queue, err := o.getQueue(ctx, queueID)
	if err != nil {
		return err
	}

	switch {
	case queue.Status == domain.QueueStatusPaused:
		return ErrQueuePaused
	case queue.Status.IsTerminal():
		return ErrQueueNotActive
	}

	o.kickDrain(queueID)
	o.logger.Info("queue start requested", "queue_id", queueID)
	return nil
}

// PauseQueue приостанавливает раздачу. Симуляция в полёте доработает
// до конца; новые не раздаются до resume.
func (o *Orchestrator) PauseQueue(ctx context.Context, queueID uuid.UUID) error {
	queue, err := o.getQueue(ctx, queueID)
	if err != nil {
		return err
	}
	if !queue.Status.IsDispatchable() {
		return ErrQueueNotActive
	}

	queue.MarkPaused()
	if err := o.queues.Update(ctx, queue); err != nil {
		return fmt.Errorf("pause queue: %w", err)
	}

	o.publishProgress(ctx, queue)
	o.logger.Info("queue paused", "queue_id", queueID)
	return nil
}

// ResumeQueue снимает очередь с паузы: PAUSED симуляции возвращаются
// в PENDING, очередь — в RUNNING, раздача возобновляется сразу.
func (o *Orchestrator) ResumeQueue(ctx context.Context, queueID uuid.UUID) error {
	queue, err := o.getQueue(ctx, queueID)
	if err != nil {
		return err
	}
	if queue.Status != domain.QueueStatusPaused {
		return ErrQueueNotPaused
	}

	resumed, err := o.runs.ResumePaused(ctx, queueID)
	if err != nil {
		return fmt.Errorf("resume paused runs: %w", err)
	}

	queue.MarkRunning()
	if err := o.queues.Update(ctx, queue); err != nil {
		return fmt.Errorf("resume queue: %w", err)
	}

	o.publishProgress(ctx, queue)
	o.kickDrain(queueID)
	o.logger.Info("queue resumed", "queue_id", queueID, "resumed_runs", resumed)
	return nil
}

// StopQueue окончательно останавливает очередь: все PENDING/RUNNING
// симуляции становятся ABORTED со штампом завершения (ни reaper, ни
// планировщик к ним больше не вернутся), активному вызову движка
// отправляется best-effort отмена, очередь закрывается как COMPLETED.
// Опоздавший результат поглотит guard в ExecuteNext.
func (o *Orchestrator) StopQueue(ctx context.Context, queueID uuid.UUID) error {
	queue, err := o.getQueue(ctx, queueID)
	if err != nil {
		return err
	}
	if queue.Status.IsTerminal() {
		return ErrQueueNotActive
	}

	inflight, err := o.runs.GetRunning(ctx, queueID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		o.logger.Warn("failed to look up in-flight simulation", "queue_id", queueID, "error", err)
	}

	aborted, err := o.runs.AbortActive(ctx, queueID, "stopped by operator")
	if err != nil {
		return fmt.Errorf("abort active runs: %w", err)
	}

	if inflight != nil {
		cancelCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := o.engine.CancelSimulation(cancelCtx, inflight.ID); err != nil {
			o.logger.Warn("best-effort engine cancel failed", "run_id", inflight.ID, "error", err)
		}
		cancel()
	}

	for i := range aborted {
		telemetry.SimulationsTotal.WithLabelValues(string(domain.SimulationStatusAborted)).Inc()
		o.broadcast(events.New(events.EventSimulationFailed, queue.ID, queue.NegotiationID, runPayload(&aborted[i])))
	}

	counts, err := o.runs.CountByStatus(ctx, queueID)
	if err != nil {
		return fmt.Errorf("count queue runs: %w", err)
	}

	o.logger.Info("queue stopped", "queue_id", queueID, "aborted_runs", len(aborted))
	return o.completeQueue(ctx, queue, counts)
}

// RestartFailedSimulations возвращает FAILED/TIMEOUT симуляции очереди
// в PENDING, а очередь — в PENDING. Единственный путь назад из
// терминального провала; возвращает количество перезапущенных симуляций.
func (o *Orchestrator) RestartFailedSimulations(ctx context.Context, queueID uuid.UUID) (int64, error) {
	queue, err := o.getQueue(ctx, queueID)
	if err != nil {
		return 0, err
	}

	restarted, err := o.runs.RestartFailed(ctx, queueID)
	if err != nil {
		return 0, fmt.Errorf("restart failed runs: %w", err)
	}
	if restarted == 0 {
		return 0, ErrNothingToRestart
	}

	queue.MarkPending()
	if err := o.queues.Update(ctx, queue); err != nil {
		return restarted, fmt.Errorf("reset queue status: %w", err)
	}

	o.publishProgress(ctx, queue)
	o.kickDrain(queueID)
	o.logger.Info("failed simulations restarted", "queue_id", queueID, "count", restarted)
	return restarted, nil
}

// QueueStatus — чистое чтение состояния очереди: сводка по статусам,
// процент готовности, ETA, текущая симуляция и фактическая стоимость.
func (o *Orchestrator) QueueStatus(ctx context.Context, queueID uuid.UUID) (*QueueReport, error) {
	queue, err := o.getQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	counts, err := o.runs.CountByStatus(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("count queue runs: %w", err)
	}

	cost, err := o.runs.SumActualCost(ctx, queueID)
	if err != nil {
		o.logger.Warn("failed to sum queue cost", "queue_id", queueID, "error", err)
		cost = queue.ActualCost
	}

	current, err := o.runs.GetRunning(ctx, queueID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("get running simulation: %w", err)
	}

	finished := counts.Finished()
	percent := 0.0
	if queue.TotalSimulations > 0 {
		percent = float64(finished) / float64(queue.TotalSimulations) * 100
	}
	remaining := queue.TotalSimulations - finished
	if remaining < 0 {
		remaining = 0
	}

	return &QueueReport{
		Queue:      queue,
		Counts:     counts,
		Percent:    percent,
		ETA:        time.Duration(remaining) * domain.AvgSimulationDuration,
		ActualCost: cost,
		CurrentRun: current,
	}, nil
}

// getQueue загружает очередь, транслируя отсутствие в ErrQueueNotFound.
func (o *Orchestrator) getQueue(ctx context.Context, queueID uuid.UUID) (*domain.SimulationQueue, error) {
	queue, err := o.queues.GetByID(ctx, queueID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrQueueNotFound, queueID)
		}
		return nil, fmt.Errorf("get queue: %w", err)
	}
	return queue, nil
}

// publishProgress шлёт progress-событие с текущей сводкой. Best-effort:
// при ошибке чтения сводки событие просто не уходит.
func (o *Orchestrator) publishProgress(ctx context.Context, queue *domain.SimulationQueue) {
	counts, err := o.runs.CountByStatus(ctx, queue.ID)
	if err != nil {
		o.logger.Warn("failed to count runs for progress event", "queue_id", queue.ID, "error", err)
		return
	}
	o.broadcast(events.New(events.EventQueueProgress, queue.ID, queue.NegotiationID, o.progressPayload(queue, counts)))
}
