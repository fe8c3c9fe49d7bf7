package api

import (
	"log/slog"

	"github.com/shaiso/Vizir/internal/analytics"
	"github.com/shaiso/Vizir/internal/engine"
	"github.com/shaiso/Vizir/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	templateRepo  *repo.TemplateRepo
	instanceRepo  *repo.InstanceRepo
	executionRepo *repo.ExecutionRepo
	engine        *engine.Engine
	analyzer      *analytics.Analyzer
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	TemplateRepo  *repo.TemplateRepo
	InstanceRepo  *repo.InstanceRepo
	ExecutionRepo *repo.ExecutionRepo
	Engine        *engine.Engine
	Analyzer      *analytics.Analyzer
	Logger        *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		templateRepo:  cfg.TemplateRepo,
		instanceRepo:  cfg.InstanceRepo,
		executionRepo: cfg.ExecutionRepo,
		engine:        cfg.Engine,
		analyzer:      cfg.Analyzer,
		logger:        cfg.Logger,
	}
}
