package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
)

// Исходы, которые сообщает движок переговоров.
// Классификация исхода в терминальный статус симуляции — зона
// ответственности оркестратора, движок лишь передаёт значение.
const (
	// OutcomeAgreement — стороны пришли к соглашению.
	OutcomeAgreement = "AGREEMENT"

	// OutcomeTerminated — переговоры явно завершены без сделки.
	OutcomeTerminated = "TERMINATED"

	// OutcomeWalkAway — одна из сторон вышла из переговоров.
	OutcomeWalkAway = "WALK_AWAY"

	// OutcomePaused — движок приостановил переговоры по внешнему сигналу.
	OutcomePaused = "PAUSED"

	// OutcomeMaxRounds — лимит раундов исчерпан без разрешения.
	OutcomeMaxRounds = "MAX_ROUNDS"
)

// Request — параметры запуска одной симуляции переговоров.
type Request struct {
	// NegotiationID — переговоры, в рамках которых идёт симуляция.
	NegotiationID uuid.UUID `json:"negotiationId"`

	// RunID — идентификатор симуляции.
	RunID uuid.UUID `json:"runId"`

	// QueueID — очередь, из которой отправлена симуляция.
	QueueID uuid.UUID `json:"queueId"`

	// TechniqueID — техника ведения переговоров.
	TechniqueID uuid.UUID `json:"techniqueId"`

	// TacticID — тактика контрагента.
	TacticID uuid.UUID `json:"tacticId"`

	// PersonalityID — личность контрагента; nil — синтетический профиль.
	PersonalityID *uuid.UUID `json:"personalityId,omitempty"`

	// Distance — дистанция стартовых позиций сторон.
	Distance domain.DistanceCategory `json:"distance"`

	// MaxRounds — лимит раундов.
	MaxRounds int `json:"maxRounds"`
}

// Result — итог завершённой симуляции.
//
// ConversationLog собирается клиентом из потока round-событий,
// остальные поля приходят в финальном событии.
type Result struct {
	Outcome         string
	TotalRounds     int
	ConversationLog []domain.Round
	FinalOffer      map[string]any
}

// RoundCallback вызывается на каждом входящем раунде переговоров
// в порядке их поступления.
type RoundCallback func(round domain.Round)

// Engine — клиент внешнего движка переговоров.
type Engine interface {
	// ExecuteSimulation запускает симуляцию и блокируется до её
	// завершения, транслируя промежуточные раунды в onRound.
	ExecuteSimulation(ctx context.Context, req Request, onRound RoundCallback) (*Result, error)

	// CancelSimulation просит движок прервать активную симуляцию.
	// Запрос best-effort: опоздавший результат отбрасывает оркестратор.
	CancelSimulation(ctx context.Context, runID uuid.UUID) error
}

// EvaluationRequest — запрос на оценку завершённых переговоров.
type EvaluationRequest struct {
	// RunID — симуляция, подлежащая оценке.
	RunID uuid.UUID `json:"runId"`

	// NegotiationID — владеющие переговоры.
	NegotiationID uuid.UUID `json:"negotiationId"`

	// ConversationLog — полный лог переговоров.
	ConversationLog []domain.Round `json:"conversationLog"`

	// FinalOffer — финальный оффер.
	FinalOffer map[string]any `json:"finalOffer,omitempty"`
}

// Evaluator — клиент оценки качества переговоров.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*domain.Evaluation, error)
}
