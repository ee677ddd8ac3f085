package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/repo"
)

// QueueCheckpoint — состояние одной очереди в отчёте восстановления.
type QueueCheckpoint struct {
	Queue        *domain.SimulationQueue
	Counts       repo.RunCounts
	OrphanedRuns []domain.SimulationRun
}

// RecoveryReport — итог поиска возможностей восстановления по кейсу.
// Осиротевшие симуляции — строки, зависшие в RUNNING дольше порога
// восстановления (короче reaper'ского): типичный след рестарта процесса.
type RecoveryReport struct {
	NegotiationID uuid.UUID
	Checkpoints   []QueueCheckpoint
	OrphanedIDs   []uuid.UUID
}

// FindRecoveryOpportunities собирает отчёт по очередям переговоров и
// осиротевшим симуляциям. Чистое чтение: ничего не мутирует — решение
// о восстановлении принимает оператор.
func (o *Orchestrator) FindRecoveryOpportunities(ctx context.Context, negotiationID uuid.UUID) (*RecoveryReport, error) {
	if _, err := o.negotiations.GetByID(ctx, negotiationID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNegotiationNotFound, negotiationID)
		}
		return nil, fmt.Errorf("get negotiation: %w", err)
	}

	queues, err := o.queues.ListByNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, fmt.Errorf("list negotiation queues: %w", err)
	}

	cutoff := time.Now().Add(-o.recoveryAfter)
	orphans, err := o.runs.ListOrphaned(ctx, negotiationID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list orphaned runs: %w", err)
	}

	orphansByQueue := make(map[uuid.UUID][]domain.SimulationRun, len(queues))
	orphanedIDs := make([]uuid.UUID, 0, len(orphans))
	for _, run := range orphans {
		orphansByQueue[run.QueueID] = append(orphansByQueue[run.QueueID], run)
		orphanedIDs = append(orphanedIDs, run.ID)
	}

	report := &RecoveryReport{
		NegotiationID: negotiationID,
		OrphanedIDs:   orphanedIDs,
	}
	for i := range queues {
		queue := &queues[i]
		counts, err := o.runs.CountByStatus(ctx, queue.ID)
		if err != nil {
			return nil, fmt.Errorf("count runs of queue %s: %w", queue.ID, err)
		}
		report.Checkpoints = append(report.Checkpoints, QueueCheckpoint{
			Queue:        queue,
			Counts:       counts,
			OrphanedRuns: orphansByQueue[queue.ID],
		})
	}

	return report, nil
}

// RecoverOrphanedSimulations возвращает осиротевшие симуляции в PENDING
// с recovery-метаданными. Guarded-переход: строки, уже закрытые
// конкурентной операцией, пропускаются. Возвращает число восстановленных.
func (o *Orchestrator) RecoverOrphanedSimulations(ctx context.Context, runIDs []uuid.UUID) (int, error) {
	recovered := 0

	for _, id := range runIDs {
		run, err := o.runs.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				o.logger.Warn("orphaned simulation not found", "run_id", id)
				continue
			}
			return recovered, fmt.Errorf("get run %s: %w", id, err)
		}
		if run.Status != domain.SimulationStatusRunning {
			continue
		}

		now := time.Now()
		snap := &domain.RecoverySnapshot{
			RunID:             run.ID,
			QueueID:           run.QueueID,
			StartedAt:         startedAtOrNow(run),
			RecoveredAt:       &now,
			PreviousStartedAt: run.StartedAt,
			Reason:            "orphaned after process restart",
		}
		if run.RecoverySnapshot != nil {
			snap.Round = run.RecoverySnapshot.Round
		}

		ok, err := o.runs.RecoverToPending(ctx, run.ID, snap)
		if err != nil {
			return recovered, fmt.Errorf("recover run %s: %w", run.ID, err)
		}
		if !ok {
			continue
		}

		recovered++
		o.logger.Info("orphaned simulation recovered",
			"run_id", run.ID,
			"queue_id", run.QueueID,
			"previous_started_at", run.StartedAt,
		)
	}

	return recovered, nil
}
