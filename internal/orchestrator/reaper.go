package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Negotium/internal/telemetry"
)

// reapStaleRuns снимает симуляции, зависшие в RUNNING дольше порога —
// след упавшего процесса или повисшего вызова движка. Каждая получает
// терминальный TIMEOUT и проходит тот же путь сводки и событий, что и
// обычный провал. Выполняется в начале каждого tick, до раздачи.
func (o *Orchestrator) reapStaleRuns(ctx context.Context) {
	cutoff := time.Now().Add(-o.staleAfter)

	stale, err := o.runs.ListStaleRunning(ctx, cutoff)
	if err != nil {
		o.logger.Error("failed to list stale simulations", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	o.logger.Warn("reaping stale simulations", "count", len(stale), "stale_after", o.staleAfter)

	for i := range stale {
		run := &stale[i]

		// Guard: строку могла успеть закрыть конкурентная операция,
		// тогда сводка по ней уже обновлена.
		reaped, err := o.runs.MarkTimeoutIfRunning(ctx, run.ID, staleReason(o.staleAfter))
		if err != nil {
			o.logger.Error("failed to reap simulation", "run_id", run.ID, "error", err)
			continue
		}
		if !reaped {
			continue
		}

		run.MarkTimeout(staleReason(o.staleAfter))
		telemetry.StaleReaped.Inc()

		queue, err := o.queues.GetByID(ctx, run.QueueID)
		if err != nil {
			o.logger.Error("failed to load queue of reaped simulation", "run_id", run.ID, "error", err)
			continue
		}

		o.logger.Warn("simulation reaped",
			"run_id", run.ID,
			"queue_id", run.QueueID,
			"started_at", run.StartedAt,
		)

		if err := o.afterRunFinished(ctx, queue, run); err != nil {
			o.logger.Warn("post-reap bookkeeping failed", "run_id", run.ID, "error", err)
		}
	}
}

func staleReason(staleAfter time.Duration) string {
	return fmt.Sprintf("no result within %s, presumed crashed", staleAfter)
}
