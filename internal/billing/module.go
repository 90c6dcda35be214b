// Package billing provides the customer payment method module.
package billing

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"haulhub_backend/internal/billing/handler"
	"haulhub_backend/internal/billing/repository"
	"haulhub_backend/internal/billing/service"
	apphttp "haulhub_backend/internal/http"
	"haulhub_backend/internal/payments"
	"haulhub_backend/platform/logger"
	"haulhub_backend/platform/validator"
)

// Module represents the billing domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the billing module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, gateway payments.Gateway, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, gateway, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "billing"
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	billing := ctx.Protected.Group("/billing")
	m.handler.RegisterRoutes(billing)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
