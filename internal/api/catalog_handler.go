package api

import (
	"net/http"

	"github.com/shaiso/Negotium/internal/domain"
)

// ListTechniques возвращает справочник техник убеждения.
// GET /api/v1/catalog/techniques
func (h *Handler) ListTechniques(w http.ResponseWriter, r *http.Request) {
	techniques, err := h.catalogs.ListTechniques(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	result := make([]CatalogItemResponse, len(techniques))
	for i, t := range techniques {
		result[i] = TechniqueFromDomain(t)
	}

	List(w, result, len(result))
}

// ListTactics возвращает справочник переговорных тактик.
// GET /api/v1/catalog/tactics
func (h *Handler) ListTactics(w http.ResponseWriter, r *http.Request) {
	tactics, err := h.catalogs.ListTactics(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	result := make([]CatalogItemResponse, len(tactics))
	for i, t := range tactics {
		result[i] = TacticFromDomain(t)
	}

	List(w, result, len(result))
}

// ListPersonalities возвращает справочник личностей контрагента.
// GET /api/v1/catalog/personalities
func (h *Handler) ListPersonalities(w http.ResponseWriter, r *http.Request) {
	personalities, err := h.catalogs.ListPersonalities(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	result := make([]CatalogItemResponse, len(personalities))
	for i, p := range personalities {
		result[i] = PersonalityFromDomain(p)
	}

	List(w, result, len(result))
}

// ListDistances возвращает категории дистанции до соглашения.
// Справочник статический — категории заданы кодом, а не БД.
// GET /api/v1/catalog/distances
func (h *Handler) ListDistances(w http.ResponseWriter, r *http.Request) {
	distances := domain.AllDistances()

	result := make([]string, len(distances))
	for i, d := range distances {
		result[i] = string(d)
	}

	List(w, result, len(result))
}
