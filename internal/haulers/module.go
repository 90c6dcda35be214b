// Package haulers provides the pro account, certification, and payout
// configuration module.
package haulers

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"haulhub_backend/internal/haulers/handler"
	"haulhub_backend/internal/haulers/repository"
	"haulhub_backend/internal/haulers/service"
	apphttp "haulhub_backend/internal/http"
	"haulhub_backend/internal/payments"
	"haulhub_backend/platform/logger"
	"haulhub_backend/platform/validator"
)

// Module represents the haulers domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the haulers module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, gateway payments.Gateway, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, gateway, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "haulers"
}

// Service returns the service layer. The jobs module consumes it as its
// payout profile source and supply matcher.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	haulers := ctx.Protected.Group("/haulers")
	m.handler.RegisterRoutes(haulers)

	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
