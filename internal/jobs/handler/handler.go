// Package handler exposes the jobs module over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"haulhub_backend/internal/jobs/domain"
	"haulhub_backend/internal/jobs/service"
	"haulhub_backend/internal/jobs/transport"
	"haulhub_backend/internal/pricing"
	"haulhub_backend/platform/httpkit"
	"haulhub_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidJobID     = "invalid job id"
)

// Handler handles HTTP requests for jobs.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the job routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/quote", h.PreviewQuote)
	rg.POST("", h.Create)
	rg.GET("", h.ListMine)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/accept", h.Accept)
	rg.POST("/:id/start", h.Start)
	rg.POST("/:id/finish-work", h.FinishWork)
	rg.POST("/:id/adjustments", h.ProposeAdjustment)
	rg.POST("/:id/adjustments/:adjustmentId/resolve", h.ResolveAdjustment)
	rg.POST("/:id/verification/steps", h.RecordVerificationStep)
	rg.POST("/:id/confirm", h.ConfirmCompletion)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/cancel", h.Cancel)
}

// RegisterAdminRoutes registers reconciliation endpoints.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.ListByStatus)
	rg.GET("/settlements/stuck", h.ListStuckSettlements)
	rg.POST("/settlements/:id/retry", h.RetrySettlement)
}

func (h *Handler) PreviewQuote(c *gin.Context) {
	var req transport.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	preview, err := h.svc.PreviewQuote(c.Request.Context(), quoteInput(req))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, preview)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	id := httpkit.MustGetIdentity(c)
	in := quoteInput(req.QuoteRequest)
	in.Address = req.Address
	in.CrewSize = req.CrewSize
	in.ScheduledAt = req.ScheduledAt

	sr, err := h.svc.Create(c.Request.Context(), id.UserID(), in)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToJobResponse(sr))
}

func (h *Handler) ListMine(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	items, err := h.svc.ListCustomerJobs(c.Request.Context(), id.UserID(), 50)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToJobResponses(items))
}

func (h *Handler) GetByID(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	detail, err := h.svc.GetJob(c.Request.Context(), jobID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, detail)
}

func (h *Handler) Accept(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	id := httpkit.MustGetIdentity(c)

	out, err := h.svc.Accept(c.Request.Context(), jobID, id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.AcceptResponse{Accepted: out.Accepted, CrewFull: out.CrewFull})
}

func (h *Handler) Start(c *gin.Context) {
	h.transition(c, h.svc.Start)
}

func (h *Handler) FinishWork(c *gin.Context) {
	h.transition(c, h.svc.FinishWork)
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.svc.Complete)
}

func (h *Handler) transition(c *gin.Context, op func(ctx context.Context, jobID, actorID uuid.UUID) error) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if err := op(c.Request.Context(), jobID, id.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *Handler) ProposeAdjustment(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	var req transport.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	id := httpkit.MustGetIdentity(c)
	adj, err := h.svc.ProposeAdjustment(c.Request.Context(), jobID, id.UserID(), req.Description, req.AmountCents)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, adj)
}

func (h *Handler) ResolveAdjustment(c *gin.Context) {
	adjustmentID, err := uuid.Parse(c.Param("adjustmentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid adjustment id", nil)
		return
	}
	var req transport.ResolveAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	id := httpkit.MustGetIdentity(c)
	if err := h.svc.ResolveAdjustment(c.Request.Context(), adjustmentID, id.UserID(), req.Approve); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "resolved"})
}

func (h *Handler) RecordVerificationStep(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	var req transport.VerificationStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	id := httpkit.MustGetIdentity(c)
	if err := h.svc.RecordVerificationStep(c.Request.Context(), jobID, id.UserID(), req.Step); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "recorded"})
}

func (h *Handler) ConfirmCompletion(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if err := h.svc.ConfirmCompletion(c.Request.Context(), jobID, id.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "confirmed"})
}

func (h *Handler) Cancel(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	var req transport.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	id := httpkit.MustGetIdentity(c)
	if err := h.svc.Cancel(c.Request.Context(), jobID, id.UserID(), req.Reason); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "cancelled"})
}

func (h *Handler) ListByStatus(c *gin.Context) {
	status, ok := domain.ParseStatus(c.Query("status"))
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "unknown status", nil)
		return
	}
	items, err := h.svc.ListJobsByStatus(c.Request.Context(), status, 100)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToJobResponses(items))
}

func (h *Handler) ListStuckSettlements(c *gin.Context) {
	items, err := h.svc.ListStuckSettlements(c.Request.Context(), 100)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToJobResponses(items))
}

func (h *Handler) RetrySettlement(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}
	result, err := h.svc.RetrySettlement(c.Request.Context(), jobID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func parseJobID(c *gin.Context) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidJobID, nil)
		return uuid.Nil, false
	}
	return jobID, true
}

func quoteInput(req transport.QuoteRequest) service.CreateInput {
	return service.CreateInput{
		ServiceType: pricing.ServiceType(req.ServiceType),
		LoadSize:    pricing.LoadSize(req.LoadSize),
		VehicleType: pricing.VehicleType(req.VehicleType),
		Pickup:      req.Pickup(),
		Dropoff:     req.Dropoff(),
	}
}
