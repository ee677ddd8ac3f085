package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/matrix"
)

// CreateQueue создаёт очередь симуляций для переговорного кейса.
// Тело запроса — селекторы осей кросс-произведения; negotiation_id
// берётся из пути и перекрывает значение из тела.
// POST /api/v1/negotiations/{id}/queue
func (h *Handler) CreateQueue(w http.ResponseWriter, r *http.Request) {
	negotiationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid negotiation id")
		return
	}

	var req matrix.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	req.NegotiationID = negotiationID

	queue, err := h.orchestrator.CreateQueue(r.Context(), req)
	if HandleDomainError(w, h.logger, err, "negotiation not found") {
		return
	}

	Created(w, QueueFromDomain(*queue))
}

// GetQueueStatus возвращает агрегированный статус очереди.
// GET /api/v1/queues/{id}
func (h *Handler) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid queue id")
		return
	}

	report, err := h.orchestrator.QueueStatus(r.Context(), id)
	if HandleDomainError(w, h.logger, err, "queue not found") {
		return
	}

	Success(w, QueueStatusFromReport(report))
}

// StartQueue запускает диспетчеризацию очереди.
// POST /api/v1/queues/{id}/start
func (h *Handler) StartQueue(w http.ResponseWriter, r *http.Request) {
	h.queueLifecycle(w, r, h.orchestrator.StartQueue)
}

// PauseQueue приостанавливает очередь после текущей симуляции.
// POST /api/v1/queues/{id}/pause
func (h *Handler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	h.queueLifecycle(w, r, h.orchestrator.PauseQueue)
}

// ResumeQueue возобновляет приостановленную очередь.
// POST /api/v1/queues/{id}/resume
func (h *Handler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	h.queueLifecycle(w, r, h.orchestrator.ResumeQueue)
}

// StopQueue терминально останавливает очередь.
// POST /api/v1/queues/{id}/stop
func (h *Handler) StopQueue(w http.ResponseWriter, r *http.Request) {
	h.queueLifecycle(w, r, h.orchestrator.StopQueue)
}

// queueLifecycle выполняет операцию жизненного цикла очереди и
// возвращает её свежий агрегированный статус.
func (h *Handler) queueLifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid queue id")
		return
	}

	if err := op(r.Context(), id); HandleDomainError(w, h.logger, err, "queue not found") {
		return
	}

	report, err := h.orchestrator.QueueStatus(r.Context(), id)
	if HandleDomainError(w, h.logger, err, "queue not found") {
		return
	}

	Success(w, QueueStatusFromReport(report))
}

// RestartFailedQueue возвращает терминально неуспешные симуляции
// очереди в PENDING и перезапускает диспетчеризацию.
// POST /api/v1/queues/{id}/restart-failed
func (h *Handler) RestartFailedQueue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid queue id")
		return
	}

	restarted, err := h.orchestrator.RestartFailedSimulations(r.Context(), id)
	if HandleDomainError(w, h.logger, err, "queue not found") {
		return
	}

	Success(w, RestartResponse{Restarted: restarted})
}

// ListQueueRuns возвращает симуляции очереди в порядке диспетчеризации.
// GET /api/v1/queues/{id}/runs?status=...
func (h *Handler) ListQueueRuns(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid queue id")
		return
	}

	var statusFilter *domain.SimulationStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.SimulationStatus(statusStr)
		statusFilter = &status
	}

	runs, err := h.runs.ListByQueue(r.Context(), id, statusFilter)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}
