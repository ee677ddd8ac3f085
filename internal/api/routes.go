package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Negotiations
	mux.Handle("POST /api/v1/negotiations", chain(http.HandlerFunc(h.CreateNegotiation)))
	mux.Handle("GET /api/v1/negotiations", chain(http.HandlerFunc(h.ListNegotiations)))
	mux.Handle("GET /api/v1/negotiations/{id}", chain(http.HandlerFunc(h.GetNegotiation)))

	// Products
	mux.Handle("POST /api/v1/negotiations/{id}/products", chain(http.HandlerFunc(h.CreateProduct)))
	mux.Handle("GET /api/v1/negotiations/{id}/products", chain(http.HandlerFunc(h.ListProducts)))

	// Queues
	mux.Handle("POST /api/v1/negotiations/{id}/queue", chain(http.HandlerFunc(h.CreateQueue)))
	mux.Handle("GET /api/v1/queues/{id}", chain(http.HandlerFunc(h.GetQueueStatus)))
	mux.Handle("POST /api/v1/queues/{id}/start", chain(http.HandlerFunc(h.StartQueue)))
	mux.Handle("POST /api/v1/queues/{id}/pause", chain(http.HandlerFunc(h.PauseQueue)))
	mux.Handle("POST /api/v1/queues/{id}/resume", chain(http.HandlerFunc(h.ResumeQueue)))
	mux.Handle("POST /api/v1/queues/{id}/stop", chain(http.HandlerFunc(h.StopQueue)))
	mux.Handle("POST /api/v1/queues/{id}/restart-failed", chain(http.HandlerFunc(h.RestartFailedQueue)))
	mux.Handle("GET /api/v1/queues/{id}/runs", chain(http.HandlerFunc(h.ListQueueRuns)))

	// Runs
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))

	// Recovery
	mux.Handle("GET /api/v1/negotiations/{id}/recovery", chain(http.HandlerFunc(h.FindRecovery)))
	mux.Handle("POST /api/v1/recovery/recover", chain(http.HandlerFunc(h.RecoverOrphaned)))

	// Catalogs
	mux.Handle("GET /api/v1/catalog/techniques", chain(http.HandlerFunc(h.ListTechniques)))
	mux.Handle("GET /api/v1/catalog/tactics", chain(http.HandlerFunc(h.ListTactics)))
	mux.Handle("GET /api/v1/catalog/personalities", chain(http.HandlerFunc(h.ListPersonalities)))
	mux.Handle("GET /api/v1/catalog/distances", chain(http.HandlerFunc(h.ListDistances)))

	// Events: WebSocket-маршрут регистрируется без Logging — обёртка
	// над ResponseWriter ломает hijack при апгрейде соединения.
	mux.Handle("GET /api/v1/events/ws", Recovery(h.logger)(http.HandlerFunc(h.StreamEvents)))
}
