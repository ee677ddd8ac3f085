package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Negotium/internal/domain"
)

// runColumns — полный список колонок simulation_runs в порядке сканирования.
const runColumns = `id, queue_id, negotiation_id, execution_order, technique_id, tactic_id,
		       personality_id, distance, status, retry_count, max_retries, started_at,
		       completed_at, outcome, total_rounds, conversation_log, final_offer,
		       deal_value, product_rows, other_dimensions, actual_cost, error,
		       recovery_snapshot, evaluation, created_at`

// insertRunQuery используется и при одиночной вставке, и в batch
// при материализации очереди (QueueRepo.CreateWithRuns).
const insertRunQuery = `
		INSERT INTO simulation_runs (id, queue_id, negotiation_id, execution_order,
		                             technique_id, tactic_id, personality_id, distance,
		                             status, retry_count, max_retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

// RunRepo — репозиторий для работы с симуляциями.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// GetByID возвращает симуляцию по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SimulationRun, error) {
	query := `SELECT ` + runColumns + ` FROM simulation_runs WHERE id = $1`
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// ListByQueue возвращает симуляции очереди в порядке диспетчеризации.
// Необязательный фильтр по статусу.
func (r *RunRepo) ListByQueue(ctx context.Context, queueID uuid.UUID, status *domain.SimulationStatus) ([]domain.SimulationRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM simulation_runs
		WHERE queue_id = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY execution_order ASC
	`
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}
	return r.listRuns(ctx, query, queueID, statusArg)
}

// ClaimNextPending атомарно выбирает PENDING-симуляцию с минимальным
// execution_order и переводит её в RUNNING со штампом времени старта.
// FOR UPDATE SKIP LOCKED делает выбор безопасным при конкурентных
// вызовах: две стороны никогда не получат одну и ту же строку.
// Возвращает ErrNoPendingRuns, когда очередь осушена.
func (r *RunRepo) ClaimNextPending(ctx context.Context, queueID uuid.UUID) (*domain.SimulationRun, error) {
	query := `
		UPDATE simulation_runs
		SET status = 'RUNNING', started_at = now()
		WHERE id = (
			SELECT id FROM simulation_runs
			WHERE queue_id = $1 AND status = 'PENDING'
			ORDER BY execution_order ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + runColumns
	run, err := r.scanRun(r.pool.QueryRow(ctx, query, queueID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoPendingRuns
	}
	return run, err
}

// GetRunning возвращает выполняющуюся симуляцию очереди.
// По инварианту исполнителя такая симуляция не больше одной.
func (r *RunRepo) GetRunning(ctx context.Context, queueID uuid.UUID) (*domain.SimulationRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM simulation_runs
		WHERE queue_id = $1 AND status = 'RUNNING'
		ORDER BY started_at ASC
		LIMIT 1
	`
	return r.scanRun(r.pool.QueryRow(ctx, query, queueID))
}

// CountByStatus возвращает распределение симуляций очереди по статусам.
// Единственный источник агрегатов очереди: счётчики нигде не кэшируются.
func (r *RunRepo) CountByStatus(ctx context.Context, queueID uuid.UUID) (RunCounts, error) {
	query := `
		SELECT status, COUNT(*)
		FROM simulation_runs
		WHERE queue_id = $1
		GROUP BY status
	`
	rows, err := r.pool.Query(ctx, query, queueID)
	if err != nil {
		return nil, fmt.Errorf("count runs by status: %w", err)
	}
	defer rows.Close()

	counts := RunCounts{}
	for rows.Next() {
		var status domain.SimulationStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan run counts: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// SumActualCost считает фактическую стоимость очереди по строкам
// симуляций. Статусная сводка и стоимость всегда выводятся из строк,
// а не из кэшированных счётчиков.
func (r *RunRepo) SumActualCost(ctx context.Context, queueID uuid.UUID) (float64, error) {
	query := `
		SELECT COALESCE(SUM(actual_cost), 0)
		FROM simulation_runs
		WHERE queue_id = $1
	`
	var total float64
	if err := r.pool.QueryRow(ctx, query, queueID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum actual cost: %w", err)
	}
	return total, nil
}

// UpdateIfRunning записывает мутацию симуляции только если строка всё
// ещё RUNNING — guard от гонки отмены: поздний результат движка не
// должен затереть терминальный статус, выставленный stopQueue.
// Возвращает ErrStatusConflict, если статус уже изменён.
func (r *RunRepo) UpdateIfRunning(ctx context.Context, run *domain.SimulationRun) error {
	enc, err := encodeRunJSON(run)
	if err != nil {
		return err
	}
	query := `
		UPDATE simulation_runs
		SET status = $2, retry_count = $3, started_at = $4, completed_at = $5,
		    outcome = $6, total_rounds = $7, conversation_log = $8, final_offer = $9,
		    deal_value = $10, product_rows = $11, other_dimensions = $12,
		    actual_cost = $13, error = $14, recovery_snapshot = $15, evaluation = $16
		WHERE id = $1 AND status = 'RUNNING'
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.RetryCount,
		run.StartedAt,
		run.CompletedAt,
		nullString(run.Outcome),
		run.TotalRounds,
		enc.conversationLog,
		enc.finalOffer,
		run.DealValue,
		enc.productRows,
		enc.otherDimensions,
		run.ActualCost,
		nullString(run.Error),
		enc.snapshot,
		enc.evaluation,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// SaveRecoverySnapshot записывает диагностический снимок выполняющейся
// симуляции. Снимок живёт только у RUNNING-строк.
func (r *RunRepo) SaveRecoverySnapshot(ctx context.Context, runID uuid.UUID, snap *domain.RecoverySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal recovery snapshot: %w", err)
	}
	query := `
		UPDATE simulation_runs
		SET recovery_snapshot = $2
		WHERE id = $1 AND status = 'RUNNING'
	`
	if _, err := r.pool.Exec(ctx, query, runID, data); err != nil {
		return fmt.Errorf("save recovery snapshot: %w", err)
	}
	return nil
}

// UpdateSnapshotRound обновляет счётчик раундов в снимке по ходу
// симуляции. Пропадает вхолостую, если симуляция уже не RUNNING.
func (r *RunRepo) UpdateSnapshotRound(ctx context.Context, runID uuid.UUID, round int) error {
	query := `
		UPDATE simulation_runs
		SET recovery_snapshot = jsonb_set(recovery_snapshot, '{round}', to_jsonb($2::int))
		WHERE id = $1 AND status = 'RUNNING' AND recovery_snapshot IS NOT NULL
	`
	if _, err := r.pool.Exec(ctx, query, runID, round); err != nil {
		return fmt.Errorf("update snapshot round: %w", err)
	}
	return nil
}

// MarkTimeoutIfRunning переводит зависшую симуляцию в терминальный
// TIMEOUT. Возвращает false, если строку уже успела изменить
// конкурентная операция — тогда reaper её пропускает.
func (r *RunRepo) MarkTimeoutIfRunning(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE simulation_runs
		SET status = 'TIMEOUT', error = $2, completed_at = now()
		WHERE id = $1 AND status = 'RUNNING'
	`
	result, err := r.pool.Exec(ctx, query, id, reason)
	if err != nil {
		return false, fmt.Errorf("mark run timeout: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListStaleRunning возвращает симуляции, зависшие в RUNNING со времени
// старта раньше порога. Их снимает reaper.
func (r *RunRepo) ListStaleRunning(ctx context.Context, before time.Time) ([]domain.SimulationRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM simulation_runs
		WHERE status = 'RUNNING' AND started_at < $1
		ORDER BY started_at ASC
	`
	return r.listRuns(ctx, query, before)
}

// ListOrphaned возвращает осиротевшие RUNNING-симуляции кейса для
// recovery после рестарта процесса. Порог короче reaper'ского.
func (r *RunRepo) ListOrphaned(ctx context.Context, negotiationID uuid.UUID, before time.Time) ([]domain.SimulationRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM simulation_runs
		WHERE negotiation_id = $1 AND status = 'RUNNING' AND started_at < $2
		ORDER BY started_at ASC
	`
	return r.listRuns(ctx, query, negotiationID, before)
}

// RecoverToPending возвращает осиротевшую симуляцию в PENDING с
// recovery-метаданными в снимке. Guarded: false, если строка уже не RUNNING.
func (r *RunRepo) RecoverToPending(ctx context.Context, id uuid.UUID, snap *domain.RecoverySnapshot) (bool, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("marshal recovery snapshot: %w", err)
	}
	query := `
		UPDATE simulation_runs
		SET status = 'PENDING', started_at = NULL, recovery_snapshot = $2
		WHERE id = $1 AND status = 'RUNNING'
	`
	result, err := r.pool.Exec(ctx, query, id, data)
	if err != nil {
		return false, fmt.Errorf("recover run: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// AbortActive переводит все PENDING/RUNNING симуляции очереди в
// терминальный ABORTED и возвращает затронутые строки для событий.
func (r *RunRepo) AbortActive(ctx context.Context, queueID uuid.UUID, reason string) ([]domain.SimulationRun, error) {
	query := `
		UPDATE simulation_runs
		SET status = 'ABORTED', error = $2, completed_at = now()
		WHERE queue_id = $1 AND status IN ('PENDING', 'RUNNING')
		RETURNING ` + runColumns
	return r.listRuns(ctx, query, queueID, reason)
}

// RestartFailed возвращает все FAILED/TIMEOUT симуляции очереди в
// PENDING, сбрасывая retry и результаты предыдущей попытки.
// Единственный поддерживаемый путь из терминального провала.
func (r *RunRepo) RestartFailed(ctx context.Context, queueID uuid.UUID) (int64, error) {
	query := `
		UPDATE simulation_runs
		SET status = 'PENDING', retry_count = 0, started_at = NULL, completed_at = NULL,
		    outcome = NULL, total_rounds = 0, conversation_log = NULL, final_offer = NULL,
		    deal_value = NULL, product_rows = NULL, other_dimensions = NULL,
		    actual_cost = 0, error = NULL, recovery_snapshot = NULL, evaluation = NULL
		WHERE queue_id = $1 AND status IN ('FAILED', 'TIMEOUT')
	`
	result, err := r.pool.Exec(ctx, query, queueID)
	if err != nil {
		return 0, fmt.Errorf("restart failed runs: %w", err)
	}
	return result.RowsAffected(), nil
}

// ResumePaused возвращает PAUSED симуляции очереди в PENDING.
// Счётчик retry не трогаем: пауза — не сбой.
func (r *RunRepo) ResumePaused(ctx context.Context, queueID uuid.UUID) (int64, error) {
	query := `
		UPDATE simulation_runs
		SET status = 'PENDING', started_at = NULL, completed_at = NULL,
		    outcome = NULL, recovery_snapshot = NULL
		WHERE queue_id = $1 AND status = 'PAUSED'
	`
	result, err := r.pool.Exec(ctx, query, queueID)
	if err != nil {
		return 0, fmt.Errorf("resume paused runs: %w", err)
	}
	return result.RowsAffected(), nil
}

// SaveEvaluation записывает вердикт downstream-оценки.
func (r *RunRepo) SaveEvaluation(ctx context.Context, runID uuid.UUID, eval *domain.Evaluation) error {
	data, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	query := `UPDATE simulation_runs SET evaluation = $2 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, runID, data)
	if err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnevaluated возвращает завершённые AGREEMENT-симуляции без
// вердикта оценки. Polling-fallback evaluator-процесса: подхватывает
// запросы, потерянные при недоступном RabbitMQ.
func (r *RunRepo) ListUnevaluated(ctx context.Context, limit int) ([]domain.SimulationRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM simulation_runs
		WHERE status = 'COMPLETED'
		  AND outcome = 'AGREEMENT'
		  AND evaluation IS NULL
		ORDER BY completed_at ASC
		LIMIT $1
	`
	return r.listRuns(ctx, query, limit)
}

// ClearFinishedSnapshots обнуляет recovery-снимки давно завершённых
// симуляций. Retention-задача maintenance-процесса.
func (r *RunRepo) ClearFinishedSnapshots(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE simulation_runs
		SET recovery_snapshot = NULL
		WHERE recovery_snapshot IS NOT NULL
		  AND status IN ('COMPLETED', 'FAILED', 'TIMEOUT', 'ABORTED')
		  AND completed_at < $1
	`
	result, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("clear finished snapshots: %w", err)
	}
	return result.RowsAffected(), nil
}

// TruncateConversationLogs обнуляет сырые логи переговоров старше
// retention-окна. Самая тяжёлая JSONB-колонка таблицы.
func (r *RunRepo) TruncateConversationLogs(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE simulation_runs
		SET conversation_log = NULL
		WHERE conversation_log IS NOT NULL
		  AND completed_at IS NOT NULL
		  AND completed_at < $1
	`
	result, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("truncate conversation logs: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

// RunCounts — распределение симуляций очереди по статусам.
type RunCounts map[domain.SimulationStatus]int

// Completed возвращает число успешно завершённых симуляций.
func (c RunCounts) Completed() int {
	return c[domain.SimulationStatusCompleted]
}

// Failed возвращает число терминально неуспешных симуляций
// (FAILED + TIMEOUT + ABORTED).
func (c RunCounts) Failed() int {
	return c[domain.SimulationStatusFailed] +
		c[domain.SimulationStatusTimeout] +
		c[domain.SimulationStatusAborted]
}

// Finished возвращает число симуляций в терминальном статусе.
func (c RunCounts) Finished() int {
	return c.Completed() + c.Failed()
}

// Total возвращает общее число учтённых симуляций.
func (c RunCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// runInsertArgs собирает аргументы insertRunQuery.
func runInsertArgs(run *domain.SimulationRun) []any {
	return []any{
		run.ID,
		run.QueueID,
		run.NegotiationID,
		run.ExecutionOrder,
		run.TechniqueID,
		run.TacticID,
		run.PersonalityID,
		run.Distance,
		run.Status,
		run.RetryCount,
		run.MaxRetries,
		run.CreatedAt,
	}
}

// runJSON — сериализованные JSONB-поля симуляции.
type runJSON struct {
	conversationLog []byte
	finalOffer      []byte
	productRows     []byte
	otherDimensions []byte
	snapshot        []byte
	evaluation      []byte
}

// encodeRunJSON сериализует JSONB-поля. Пустые значения дают NULL.
func encodeRunJSON(run *domain.SimulationRun) (*runJSON, error) {
	enc := &runJSON{}
	var err error

	if run.ConversationLog != nil {
		if enc.conversationLog, err = json.Marshal(run.ConversationLog); err != nil {
			return nil, fmt.Errorf("marshal conversation log: %w", err)
		}
	}
	if run.FinalOffer != nil {
		if enc.finalOffer, err = json.Marshal(run.FinalOffer); err != nil {
			return nil, fmt.Errorf("marshal final offer: %w", err)
		}
	}
	if run.ProductRows != nil {
		if enc.productRows, err = json.Marshal(run.ProductRows); err != nil {
			return nil, fmt.Errorf("marshal product rows: %w", err)
		}
	}
	if run.OtherDimensions != nil {
		if enc.otherDimensions, err = json.Marshal(run.OtherDimensions); err != nil {
			return nil, fmt.Errorf("marshal other dimensions: %w", err)
		}
	}
	if run.RecoverySnapshot != nil {
		if enc.snapshot, err = json.Marshal(run.RecoverySnapshot); err != nil {
			return nil, fmt.Errorf("marshal recovery snapshot: %w", err)
		}
	}
	if run.Evaluation != nil {
		if enc.evaluation, err = json.Marshal(run.Evaluation); err != nil {
			return nil, fmt.Errorf("marshal evaluation: %w", err)
		}
	}
	return enc, nil
}

// listRuns выполняет запрос и сканирует все строки.
func (r *RunRepo) listRuns(ctx context.Context, query string, args ...any) ([]domain.SimulationRun, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SimulationRun
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun сканирует одну строку в SimulationRun.
// pgx.Rows удовлетворяет pgx.Row, поэтому хелпер общий для QueryRow и
// итерации; ErrNoRows возможен только в первом случае.
func (r *RunRepo) scanRun(row pgx.Row) (*domain.SimulationRun, error) {
	var run domain.SimulationRun
	var outcome, runError *string
	var logJSON, offerJSON, productsJSON, otherJSON, snapJSON, evalJSON []byte

	err := row.Scan(
		&run.ID,
		&run.QueueID,
		&run.NegotiationID,
		&run.ExecutionOrder,
		&run.TechniqueID,
		&run.TacticID,
		&run.PersonalityID,
		&run.Distance,
		&run.Status,
		&run.RetryCount,
		&run.MaxRetries,
		&run.StartedAt,
		&run.CompletedAt,
		&outcome,
		&run.TotalRounds,
		&logJSON,
		&offerJSON,
		&run.DealValue,
		&productsJSON,
		&otherJSON,
		&run.ActualCost,
		&runError,
		&snapJSON,
		&evalJSON,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if outcome != nil {
		run.Outcome = *outcome
	}
	if runError != nil {
		run.Error = *runError
	}
	if logJSON != nil {
		if err := json.Unmarshal(logJSON, &run.ConversationLog); err != nil {
			return nil, fmt.Errorf("unmarshal conversation log: %w", err)
		}
	}
	if offerJSON != nil {
		if err := json.Unmarshal(offerJSON, &run.FinalOffer); err != nil {
			return nil, fmt.Errorf("unmarshal final offer: %w", err)
		}
	}
	if productsJSON != nil {
		if err := json.Unmarshal(productsJSON, &run.ProductRows); err != nil {
			return nil, fmt.Errorf("unmarshal product rows: %w", err)
		}
	}
	if otherJSON != nil {
		if err := json.Unmarshal(otherJSON, &run.OtherDimensions); err != nil {
			return nil, fmt.Errorf("unmarshal other dimensions: %w", err)
		}
	}
	if snapJSON != nil {
		if err := json.Unmarshal(snapJSON, &run.RecoverySnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal recovery snapshot: %w", err)
		}
	}
	if evalJSON != nil {
		if err := json.Unmarshal(evalJSON, &run.Evaluation); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation: %w", err)
		}
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
