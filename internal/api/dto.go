package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/orchestrator"
	"github.com/shaiso/Negotium/internal/repo"
)

// Negotiation DTOs

// CreateNegotiationRequest — запрос на создание переговорного кейса.
type CreateNegotiationRequest struct {
	Title     string `json:"title"`
	MaxRounds int    `json:"max_rounds,omitempty"`
}

// NegotiationResponse — ответ с переговорным кейсом.
type NegotiationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	MaxRounds int       `json:"max_rounds"`
	CreatedAt time.Time `json:"created_at"`
}

// NegotiationFromDomain конвертирует domain.Negotiation в NegotiationResponse.
func NegotiationFromDomain(n domain.Negotiation) NegotiationResponse {
	return NegotiationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Status:    string(n.Status),
		MaxRounds: n.MaxRounds,
		CreatedAt: n.CreatedAt,
	}
}

// Product DTOs

// CreateProductRequest — запрос на добавление товара к кейсу.
type CreateProductRequest struct {
	Name        string  `json:"name"`
	TargetPrice float64 `json:"target_price"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	Volume      int     `json:"volume"`
}

// ProductResponse — ответ с товаром.
type ProductResponse struct {
	ID            uuid.UUID `json:"id"`
	NegotiationID uuid.UUID `json:"negotiation_id"`
	Name          string    `json:"name"`
	TargetPrice   float64   `json:"target_price"`
	MinPrice      float64   `json:"min_price"`
	MaxPrice      float64   `json:"max_price"`
	Volume        int       `json:"volume"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProductFromDomain конвертирует domain.Product в ProductResponse.
func ProductFromDomain(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		NegotiationID: p.NegotiationID,
		Name:          p.Name,
		TargetPrice:   p.TargetPrice,
		MinPrice:      p.MinPrice,
		MaxPrice:      p.MaxPrice,
		Volume:        p.Volume,
		CreatedAt:     p.CreatedAt,
	}
}

// Queue DTOs

// QueueResponse — ответ с очередью симуляций.
type QueueResponse struct {
	ID               uuid.UUID  `json:"id"`
	NegotiationID    uuid.UUID  `json:"negotiation_id"`
	TotalSimulations int        `json:"total_simulations"`
	Status           string     `json:"status"`
	EstimatedCost    float64    `json:"estimated_cost"`
	ActualCost       float64    `json:"actual_cost"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	PausedAt         *time.Time `json:"paused_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// QueueFromDomain конвертирует domain.SimulationQueue в QueueResponse.
func QueueFromDomain(q domain.SimulationQueue) QueueResponse {
	return QueueResponse{
		ID:               q.ID,
		NegotiationID:    q.NegotiationID,
		TotalSimulations: q.TotalSimulations,
		Status:           string(q.Status),
		EstimatedCost:    q.EstimatedCost,
		ActualCost:       q.ActualCost,
		StartedAt:        q.StartedAt,
		PausedAt:         q.PausedAt,
		CompletedAt:      q.CompletedAt,
		CreatedAt:        q.CreatedAt,
	}
}

// QueueStatusResponse — агрегированный статус очереди с прогрессом.
type QueueStatusResponse struct {
	Queue      QueueResponse  `json:"queue"`
	Counts     map[string]int `json:"counts"`
	Percent    float64        `json:"percent"`
	ETASeconds int64          `json:"eta_seconds"`
	ActualCost float64        `json:"actual_cost"`
	CurrentRun *RunResponse   `json:"current_run,omitempty"`
}

// QueueStatusFromReport конвертирует orchestrator.QueueReport в QueueStatusResponse.
func QueueStatusFromReport(rep *orchestrator.QueueReport) QueueStatusResponse {
	resp := QueueStatusResponse{
		Queue:      QueueFromDomain(*rep.Queue),
		Counts:     countsToStrings(rep.Counts),
		Percent:    rep.Percent,
		ETASeconds: int64(rep.ETA.Seconds()),
		ActualCost: rep.ActualCost,
	}
	if rep.CurrentRun != nil {
		run := RunFromDomain(*rep.CurrentRun)
		resp.CurrentRun = &run
	}
	return resp
}

// RestartResponse — ответ на перезапуск неуспешных симуляций.
type RestartResponse struct {
	Restarted int64 `json:"restarted"`
}

// Run DTOs

// RunResponse — ответ с симуляцией без тяжёлых JSONB-полей.
// Лог переговоров и разбивка сделки отдаются только в детальном ответе.
type RunResponse struct {
	ID             uuid.UUID          `json:"id"`
	QueueID        uuid.UUID          `json:"queue_id"`
	NegotiationID  uuid.UUID          `json:"negotiation_id"`
	ExecutionOrder int                `json:"execution_order"`
	TechniqueID    uuid.UUID          `json:"technique_id"`
	TacticID       uuid.UUID          `json:"tactic_id"`
	PersonalityID  *uuid.UUID         `json:"personality_id,omitempty"`
	Distance       string             `json:"distance"`
	Status         string             `json:"status"`
	RetryCount     int                `json:"retry_count"`
	MaxRetries     int                `json:"max_retries"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	Outcome        string             `json:"outcome,omitempty"`
	TotalRounds    int                `json:"total_rounds"`
	DealValue      *string            `json:"deal_value,omitempty"`
	ActualCost     float64            `json:"actual_cost"`
	Error          string             `json:"error,omitempty"`
	Evaluation     *domain.Evaluation `json:"evaluation,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// RunFromDomain конвертирует domain.SimulationRun в RunResponse.
func RunFromDomain(r domain.SimulationRun) RunResponse {
	return RunResponse{
		ID:             r.ID,
		QueueID:        r.QueueID,
		NegotiationID:  r.NegotiationID,
		ExecutionOrder: r.ExecutionOrder,
		TechniqueID:    r.TechniqueID,
		TacticID:       r.TacticID,
		PersonalityID:  r.PersonalityID,
		Distance:       string(r.Distance),
		Status:         string(r.Status),
		RetryCount:     r.RetryCount,
		MaxRetries:     r.MaxRetries,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		Outcome:        r.Outcome,
		TotalRounds:    r.TotalRounds,
		DealValue:      r.DealValue,
		ActualCost:     r.ActualCost,
		Error:          r.Error,
		Evaluation:     r.Evaluation,
		CreatedAt:      r.CreatedAt,
	}
}

// RunDetailResponse — полный ответ с симуляцией, включая лог
// переговоров, финальное предложение и разбивку сделки.
type RunDetailResponse struct {
	RunResponse
	ConversationLog  []domain.Round           `json:"conversation_log,omitempty"`
	FinalOffer       map[string]any           `json:"final_offer,omitempty"`
	ProductRows      []domain.ProductRow      `json:"product_rows,omitempty"`
	OtherDimensions  map[string]string        `json:"other_dimensions,omitempty"`
	RecoverySnapshot *domain.RecoverySnapshot `json:"recovery_snapshot,omitempty"`
}

// RunDetailFromDomain конвертирует domain.SimulationRun в RunDetailResponse.
func RunDetailFromDomain(r domain.SimulationRun) RunDetailResponse {
	return RunDetailResponse{
		RunResponse:      RunFromDomain(r),
		ConversationLog:  r.ConversationLog,
		FinalOffer:       r.FinalOffer,
		ProductRows:      r.ProductRows,
		OtherDimensions:  r.OtherDimensions,
		RecoverySnapshot: r.RecoverySnapshot,
	}
}

// Recovery DTOs

// RecoverRequest — запрос на восстановление осиротевших симуляций.
type RecoverRequest struct {
	RunIDs []uuid.UUID `json:"run_ids"`
}

// RecoverResponse — ответ на восстановление.
type RecoverResponse struct {
	Recovered int `json:"recovered"`
}

// QueueCheckpointResponse — чекпоинт одной очереди в отчёте восстановления.
type QueueCheckpointResponse struct {
	Queue        QueueResponse  `json:"queue"`
	Counts       map[string]int `json:"counts"`
	OrphanedRuns []RunResponse  `json:"orphaned_runs,omitempty"`
}

// RecoveryReportResponse — отчёт о возможностях восстановления кейса.
type RecoveryReportResponse struct {
	NegotiationID uuid.UUID                 `json:"negotiation_id"`
	Checkpoints   []QueueCheckpointResponse `json:"checkpoints"`
	OrphanedIDs   []uuid.UUID               `json:"orphaned_ids,omitempty"`
}

// RecoveryReportFromDomain конвертирует orchestrator.RecoveryReport
// в RecoveryReportResponse.
func RecoveryReportFromDomain(rep *orchestrator.RecoveryReport) RecoveryReportResponse {
	resp := RecoveryReportResponse{
		NegotiationID: rep.NegotiationID,
		Checkpoints:   make([]QueueCheckpointResponse, 0, len(rep.Checkpoints)),
		OrphanedIDs:   rep.OrphanedIDs,
	}
	for _, cp := range rep.Checkpoints {
		orphaned := make([]RunResponse, 0, len(cp.OrphanedRuns))
		for _, run := range cp.OrphanedRuns {
			orphaned = append(orphaned, RunFromDomain(run))
		}
		resp.Checkpoints = append(resp.Checkpoints, QueueCheckpointResponse{
			Queue:        QueueFromDomain(*cp.Queue),
			Counts:       countsToStrings(cp.Counts),
			OrphanedRuns: orphaned,
		})
	}
	return resp
}

// Catalog DTOs

// CatalogItemResponse — элемент справочника: техника, тактика или личность.
type CatalogItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TechniqueFromDomain конвертирует domain.Technique в CatalogItemResponse.
func TechniqueFromDomain(t domain.Technique) CatalogItemResponse {
	return CatalogItemResponse{ID: t.ID, Name: t.Name, Description: t.Description, CreatedAt: t.CreatedAt}
}

// TacticFromDomain конвертирует domain.Tactic в CatalogItemResponse.
func TacticFromDomain(t domain.Tactic) CatalogItemResponse {
	return CatalogItemResponse{ID: t.ID, Name: t.Name, Description: t.Description, CreatedAt: t.CreatedAt}
}

// PersonalityFromDomain конвертирует domain.Personality в CatalogItemResponse.
func PersonalityFromDomain(p domain.Personality) CatalogItemResponse {
	return CatalogItemResponse{ID: p.ID, Name: p.Name, Description: p.Description, CreatedAt: p.CreatedAt}
}

// countsToStrings переводит счётчики по статусам в JSON-дружелюбную карту.
func countsToStrings(counts repo.RunCounts) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}
