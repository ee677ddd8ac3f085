package domain

import (
	"time"

	"github.com/google/uuid"
)

// SimulationRun — одна симуляция переговоров внутри очереди.
//
// Все симуляции очереди материализуются при её создании — по одной на
// каждую комбинацию техника × тактика × личность × дистанция — и после
// этого не создаются и не удаляются, только меняют статус.
type SimulationRun struct {
	// ID — уникальный идентификатор симуляции.
	ID uuid.UUID `json:"id"`

	// QueueID — ссылка на очередь.
	QueueID uuid.UUID `json:"queue_id"`

	// NegotiationID — ссылка на родительский кейс (денормализовано
	// для reaper'а и recovery, которые работают вне контекста очереди).
	NegotiationID uuid.UUID `json:"negotiation_id"`

	// ExecutionOrder — порядковый номер диспетчеризации, уникальный
	// в пределах очереди, 1..N. Назначается при создании и не меняется.
	ExecutionOrder int `json:"execution_order"`

	// TechniqueID — техника убеждения этой комбинации.
	TechniqueID uuid.UUID `json:"technique_id"`

	// TacticID — переговорная тактика этой комбинации.
	TacticID uuid.UUID `json:"tactic_id"`

	// PersonalityID — личность контрагента. Nil означает синтетическую
	// личность по умолчанию (каталог был пуст на момент создания).
	PersonalityID *uuid.UUID `json:"personality_id,omitempty"`

	// Distance — категория дистанции до соглашения (ZOPA).
	Distance DistanceCategory `json:"distance"`

	// Status — текущий статус симуляции.
	Status SimulationStatus `json:"status"`

	// RetryCount — число retry после сбоев движка.
	RetryCount int `json:"retry_count"`

	// MaxRetries — лимит retry, после которого симуляция терминально FAILED.
	MaxRetries int `json:"max_retries"`

	// StartedAt — время последнего перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время достижения терминального статуса.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Outcome — исход, который сообщил движок переговоров.
	Outcome string `json:"outcome,omitempty"`

	// TotalRounds — число раундов, фактически сыгранных движком.
	TotalRounds int `json:"total_rounds"`

	// ConversationLog — сырой лог переговоров по раундам.
	ConversationLog []Round `json:"conversation_log,omitempty"`

	// FinalOffer — финальное предложение: свободная карта измерений
	// (ключи и значения приходят из движка как есть, возможно с
	// локализованными числами).
	FinalOffer map[string]any `json:"final_offer,omitempty"`

	// DealValue — вычисленная стоимость сделки, строка с двумя знаками
	// после запятой. Nil, если ни один товар не сопоставился.
	DealValue *string `json:"deal_value,omitempty"`

	// ProductRows — построчная разбивка сделки по товарам.
	ProductRows []ProductRow `json:"product_rows,omitempty"`

	// OtherDimensions — измерения финального предложения, не
	// сопоставленные ни с одним товаром (срок поставки и т.п.).
	OtherDimensions map[string]string `json:"other_dimensions,omitempty"`

	// ActualCost — фактическая стоимость: TotalRounds × CostPerRound.
	ActualCost float64 `json:"actual_cost"`

	// Error — причина сбоя для FAILED/TIMEOUT/ABORTED.
	Error string `json:"error,omitempty"`

	// RecoverySnapshot — минимальный диагностический снимок для
	// восстановления после краха процесса. Заполняется при старте,
	// счётчик раундов обновляется по ходу симуляции.
	RecoverySnapshot *RecoverySnapshot `json:"recovery_snapshot,omitempty"`

	// Evaluation — вердикт downstream-оценки завершённых переговоров.
	Evaluation *Evaluation `json:"evaluation,omitempty"`

	// CreatedAt — время создания симуляции.
	CreatedAt time.Time `json:"created_at"`
}

// Round — один обмен репликами в симуляции.
type Round struct {
	// Number — номер раунда, начиная с 1.
	Number int `json:"number"`

	// Speaker — сторона, сделавшая ход ("user" или "counterpart").
	Speaker string `json:"speaker"`

	// Message — текст реплики.
	Message string `json:"message"`

	// Offer — предложение, озвученное в этом раунде (если было).
	Offer map[string]any `json:"offer,omitempty"`
}

// ProductRow — строка сделки по одному товару.
type ProductRow struct {
	// ProductID — идентификатор товара из каталога кейса.
	ProductID uuid.UUID `json:"product_id"`

	// ProductName — имя товара на момент расчёта.
	ProductName string `json:"product_name"`

	// MatchedKey — ключ измерения финального предложения, который
	// сопоставился с товаром.
	MatchedKey string `json:"matched_key"`

	// Price — согласованная цена за единицу.
	Price float64 `json:"price"`

	// Volume — фиксированный объём товара (не является предметом торга).
	Volume int `json:"volume"`

	// Subtotal — Price × Volume.
	Subtotal float64 `json:"subtotal"`
}

// RecoverySnapshot — диагностический снимок выполняющейся симуляции.
type RecoverySnapshot struct {
	// RunID — идентификатор симуляции.
	RunID uuid.UUID `json:"run_id"`

	// QueueID — идентификатор очереди.
	QueueID uuid.UUID `json:"queue_id"`

	// StartedAt — время старта, на которое сделан снимок.
	StartedAt time.Time `json:"started_at"`

	// Round — последний известный номер раунда.
	Round int `json:"round"`

	// RecoveredAt — время восстановления, если симуляция была
	// возвращена в PENDING recovery-менеджером.
	RecoveredAt *time.Time `json:"recovered_at,omitempty"`

	// PreviousStartedAt — время старта осиротевшего запуска.
	PreviousStartedAt *time.Time `json:"previous_started_at,omitempty"`

	// Reason — причина восстановления.
	Reason string `json:"reason,omitempty"`
}

// Evaluation — вердикт оценки завершённых переговоров.
type Evaluation struct {
	// Score — итоговая оценка качества переговоров, 0..100.
	Score float64 `json:"score"`

	// Verdict — краткий вердикт оценщика.
	Verdict string `json:"verdict"`

	// Summary — развёрнутое обоснование.
	Summary string `json:"summary,omitempty"`

	// EvaluatedAt — время выставления оценки.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Duration возвращает продолжительность симуляции.
// Возвращает 0, если симуляция не завершена.
func (r *SimulationRun) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если симуляция в терминальном статусе.
func (r *SimulationRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// CanRetry возвращает true, если лимит retry ещё не исчерпан.
func (r *SimulationRun) CanRetry() bool {
	return r.RetryCount < r.MaxRetries
}

// MarkRunning переводит симуляцию в RUNNING.
func (r *SimulationRun) MarkRunning() {
	now := time.Now()
	r.Status = SimulationStatusRunning
	r.StartedAt = &now
}

// MarkCompleted переводит симуляцию в COMPLETED.
func (r *SimulationRun) MarkCompleted(outcome string) {
	now := time.Now()
	r.Status = SimulationStatusCompleted
	r.Outcome = outcome
	r.CompletedAt = &now
}

// MarkFailed переводит симуляцию в терминальный FAILED с причиной.
func (r *SimulationRun) MarkFailed(reason string) {
	now := time.Now()
	r.Status = SimulationStatusFailed
	r.Error = reason
	r.CompletedAt = &now
}

// MarkTimeout переводит симуляцию в терминальный TIMEOUT с причиной.
func (r *SimulationRun) MarkTimeout(reason string) {
	now := time.Now()
	r.Status = SimulationStatusTimeout
	r.Error = reason
	r.CompletedAt = &now
}

// MarkAborted переводит симуляцию в терминальный ABORTED.
func (r *SimulationRun) MarkAborted(reason string) {
	now := time.Now()
	r.Status = SimulationStatusAborted
	r.Error = reason
	r.CompletedAt = &now
}

// MarkPaused переводит симуляцию в PAUSED по pause-сигналу движка.
func (r *SimulationRun) MarkPaused(outcome string) {
	r.Status = SimulationStatusPaused
	r.Outcome = outcome
}

// ResetForRetry возвращает симуляцию в PENDING после сбоя движка.
// Счётчик retry сохраняется, время старта очищается, чтобы reaper
// не принял ожидающую симуляцию за зависшую.
func (r *SimulationRun) ResetForRetry() {
	r.Status = SimulationStatusPending
	r.StartedAt = nil
	r.CompletedAt = nil
	r.Error = ""
	r.RecoverySnapshot = nil
}

// ResetForRestart возвращает терминально неуспешную симуляцию в PENDING.
// Единственный поддерживаемый путь из FAILED/TIMEOUT; сбрасывает retry
// и все результаты предыдущей попытки.
func (r *SimulationRun) ResetForRestart() {
	r.Status = SimulationStatusPending
	r.RetryCount = 0
	r.StartedAt = nil
	r.CompletedAt = nil
	r.Outcome = ""
	r.TotalRounds = 0
	r.ConversationLog = nil
	r.FinalOffer = nil
	r.DealValue = nil
	r.ProductRows = nil
	r.OtherDimensions = nil
	r.ActualCost = 0
	r.Error = ""
	r.RecoverySnapshot = nil
	r.Evaluation = nil
}
