package api

import (
	"net/http"

	"github.com/google/uuid"
)

// GetRun возвращает симуляцию со всеми деталями: логом переговоров,
// финальным предложением и разбивкой сделки по товарам.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleDomainError(w, h.logger, err, "simulation run not found") {
		return
	}

	Success(w, RunDetailFromDomain(*run))
}
