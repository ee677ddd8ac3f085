package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/engine"
	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/mq"
	"github.com/shaiso/Negotium/internal/repo"
	"github.com/shaiso/Negotium/internal/telemetry"
)

// evaluationPayload — полезная нагрузка события simulation.evaluated.
type evaluationPayload struct {
	RunID   uuid.UUID `json:"run_id"`
	Score   float64   `json:"score"`
	Verdict string    `json:"verdict"`
}

// handleEvaluationRequested обрабатывает запрос на оценку из очереди
// evaluation.requests.
func (e *Evaluator) handleEvaluationRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.EvaluationRequestedPayload](&delivery.Message)
	if err != nil {
		// Битый payload не починится от повторной доставки.
		e.logger.Error("failed to parse evaluation.requested payload", "error", err)
		return mq.ErrReject
	}

	e.logger.Debug("received evaluation.requested event",
		"run_id", payload.RunID,
		"negotiation_id", payload.NegotiationID,
	)

	if err := e.evaluateRun(ctx, payload.RunID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrAlreadyEvaluated) || errors.Is(err, ErrNotEvaluable) {
			e.logger.Debug("run not evaluated", "run_id", payload.RunID, "reason", err)
			return nil
		}
		e.logger.Error("failed to evaluate run", "run_id", payload.RunID, "error", err)
		return err
	}

	return nil
}

// evaluateRun загружает симуляцию из БД, запрашивает вердикт у движка
// и сохраняет его.
func (e *Evaluator) evaluateRun(ctx context.Context, runID uuid.UUID) error {
	// 1. Загружаем симуляцию из БД
	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}

	// 2. Проверяем статус: повторная доставка после сохранённого
	// вердикта — no-op.
	if run.Evaluation != nil {
		return ErrAlreadyEvaluated
	}
	if run.Status != domain.SimulationStatusCompleted || run.Outcome != engine.OutcomeAgreement {
		return ErrNotEvaluable
	}

	// 3. Запрашиваем вердикт у движка
	eval, err := e.engine.Evaluate(ctx, engine.EvaluationRequest{
		RunID:           run.ID,
		NegotiationID:   run.NegotiationID,
		ConversationLog: run.ConversationLog,
		FinalOffer:      run.FinalOffer,
	})
	if err != nil {
		telemetry.EvaluationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("evaluate run: %w", err)
	}

	// 4. Сохраняем вердикт
	if err := e.runs.SaveEvaluation(ctx, run.ID, eval); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("save evaluation: %w", err)
	}

	telemetry.EvaluationsTotal.WithLabelValues("ok").Inc()
	e.broadcaster.Publish(events.New(events.EventSimulationEvaluated, run.QueueID, run.NegotiationID, evaluationPayload{
		RunID:   run.ID,
		Score:   eval.Score,
		Verdict: eval.Verdict,
	}))

	e.logger.Info("simulation evaluated",
		"run_id", run.ID,
		"queue_id", run.QueueID,
		"score", eval.Score,
		"verdict", eval.Verdict,
	)

	return nil
}
