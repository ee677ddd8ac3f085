package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// FindRecovery возвращает отчёт о возможностях восстановления кейса:
// чекпоинты очередей и осиротевшие RUNNING-симуляции без живого
// исполнителя.
// GET /api/v1/negotiations/{id}/recovery
func (h *Handler) FindRecovery(w http.ResponseWriter, r *http.Request) {
	negotiationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid negotiation id")
		return
	}

	report, err := h.orchestrator.FindRecoveryOpportunities(r.Context(), negotiationID)
	if HandleDomainError(w, h.logger, err, "negotiation not found") {
		return
	}

	Success(w, RecoveryReportFromDomain(report))
}

// RecoverOrphaned возвращает перечисленные осиротевшие симуляции в
// PENDING для переисполнения. Симуляции, успевшие уйти из RUNNING,
// пропускаются без ошибки.
// POST /api/v1/recovery/recover
func (h *Handler) RecoverOrphaned(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if len(req.RunIDs) == 0 {
		BadRequest(w, "run_ids is required")
		return
	}

	recovered, err := h.orchestrator.RecoverOrphanedSimulations(r.Context(), req.RunIDs)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	Success(w, RecoverResponse{Recovered: recovered})
}
