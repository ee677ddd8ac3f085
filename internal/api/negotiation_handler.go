package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
)

// CreateNegotiation создаёт новый переговорный кейс.
// POST /api/v1/negotiations
func (h *Handler) CreateNegotiation(w http.ResponseWriter, r *http.Request) {
	var req CreateNegotiationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Title == "" {
		BadRequest(w, "title is required")
		return
	}

	maxRounds := req.MaxRounds
	if maxRounds <= 0 {
		maxRounds = domain.DefaultMaxRounds
	}

	negotiation := &domain.Negotiation{
		ID:        uuid.New(),
		Title:     req.Title,
		Status:    domain.NegotiationStatusDraft,
		MaxRounds: maxRounds,
		CreatedAt: time.Now(),
	}

	if err := h.negotiations.Create(r.Context(), negotiation); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, NegotiationFromDomain(*negotiation))
}

// ListNegotiations возвращает список переговорных кейсов.
// GET /api/v1/negotiations?limit=...&offset=...
func (h *Handler) ListNegotiations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit = int(mustParseInt(limitStr, 50))
	}

	var offset int
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset = int(mustParseInt(offsetStr, 0))
	}

	negotiations, err := h.negotiations.List(r.Context(), limit, offset)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	result := make([]NegotiationResponse, len(negotiations))
	for i, n := range negotiations {
		result[i] = NegotiationFromDomain(n)
	}

	List(w, result, len(result))
}

// GetNegotiation возвращает переговорный кейс по ID.
// GET /api/v1/negotiations/{id}
func (h *Handler) GetNegotiation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid negotiation id")
		return
	}

	negotiation, err := h.negotiations.GetByID(r.Context(), id)
	if HandleDomainError(w, h.logger, err, "negotiation not found") {
		return
	}

	Success(w, NegotiationFromDomain(*negotiation))
}

// CreateProduct добавляет товар к переговорному кейсу.
// POST /api/v1/negotiations/{id}/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	negotiationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid negotiation id")
		return
	}

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.Volume <= 0 {
		BadRequest(w, "volume must be positive")
		return
	}

	// Проверяем, что кейс существует
	_, err = h.negotiations.GetByID(r.Context(), negotiationID)
	if HandleDomainError(w, h.logger, err, "negotiation not found") {
		return
	}

	product := &domain.Product{
		ID:            uuid.New(),
		NegotiationID: negotiationID,
		Name:          req.Name,
		TargetPrice:   req.TargetPrice,
		MinPrice:      req.MinPrice,
		MaxPrice:      req.MaxPrice,
		Volume:        req.Volume,
		CreatedAt:     time.Now(),
	}

	if err := h.catalogs.CreateProduct(r.Context(), product); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ProductFromDomain(*product))
}

// ListProducts возвращает товары переговорного кейса.
// GET /api/v1/negotiations/{id}/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	negotiationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid negotiation id")
		return
	}

	// Проверяем, что кейс существует
	_, err = h.negotiations.GetByID(r.Context(), negotiationID)
	if HandleDomainError(w, h.logger, err, "negotiation not found") {
		return
	}

	products, err := h.catalogs.ListProducts(r.Context(), negotiationID)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	result := make([]ProductResponse, len(products))
	for i, p := range products {
		result[i] = ProductFromDomain(p)
	}

	List(w, result, len(result))
}

// mustParseInt парсит строку в int с дефолтным значением.
func mustParseInt(s string, defaultVal int64) int64 {
	if n, err := json.Number(s).Int64(); err == nil {
		return n
	}
	return defaultVal
}
