package api

import (
	"log/slog"

	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/orchestrator"
	"github.com/shaiso/Negotium/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	negotiations *repo.NegotiationRepo
	runs         *repo.RunRepo
	catalogs     *repo.CatalogRepo
	hub          *events.Hub
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Negotiations *repo.NegotiationRepo
	Runs         *repo.RunRepo
	Catalogs     *repo.CatalogRepo
	Hub          *events.Hub
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		orchestrator: cfg.Orchestrator,
		negotiations: cfg.Negotiations,
		runs:         cfg.Runs,
		catalogs:     cfg.Catalogs,
		hub:          cfg.Hub,
		logger:       cfg.Logger,
	}
}
