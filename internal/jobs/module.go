// Package jobs provides the job lifecycle and settlement domain module.
package jobs

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "haulhub_backend/internal/http"
	"haulhub_backend/internal/jobs/crew"
	"haulhub_backend/internal/jobs/handler"
	"haulhub_backend/internal/jobs/repository"
	"haulhub_backend/internal/jobs/service"
	"haulhub_backend/internal/jobs/settlement"
	"haulhub_backend/internal/jobs/verification"
	"haulhub_backend/internal/payments"
	"haulhub_backend/platform/config"
	"haulhub_backend/platform/events"
	"haulhub_backend/platform/logger"
	"haulhub_backend/platform/validator"
)

// Module represents the jobs domain module.
type Module struct {
	handler    *handler.Handler
	service    *service.Service
	settlement *settlement.Orchestrator
}

// Deps are the cross-module dependencies the jobs module cannot build itself.
type Deps struct {
	Pool     *pgxpool.Pool
	Gateway  payments.Gateway
	Profiles settlement.ProfileSource
	Matcher  service.Matcher
	Tasks    service.TaskEnqueuer
	Pricing  config.PricingConfig
	EventBus *events.InMemoryBus
	Logger   *logger.Logger
	Val      *validator.Validator
}

// NewModule creates the jobs module with all dependencies wired.
func NewModule(d Deps) *Module {
	repo := repository.New(d.Pool)
	gate := verification.NewGate(repo)
	coord := crew.NewCoordinator(repo, d.EventBus, d.Logger)
	orch := settlement.New(repo, d.Gateway, d.Profiles, gate, repo, d.EventBus, d.Logger)
	svc := service.New(repo, d.Gateway, coord, orch, gate, d.Matcher, d.Tasks, d.Pricing, d.EventBus, d.Logger)
	h := handler.New(svc, d.Val)

	return &Module{handler: h, service: svc, settlement: orch}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "jobs"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Settlement returns the orchestrator for the background worker.
func (m *Module) Settlement() *settlement.Orchestrator {
	return m.settlement
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	jobs := ctx.Protected.Group("/jobs")
	m.handler.RegisterRoutes(jobs)

	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
