// Package handler exposes the haulers module over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"haulhub_backend/internal/haulers/service"
	"haulhub_backend/internal/haulers/transport"
	"haulhub_backend/platform/httpkit"
	"haulhub_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for haulers.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the hauler routes. All routes act on the
// authenticated pro's own record.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/onboard", h.Onboard)
	rg.GET("/account-status", h.AccountStatus)
	rg.PUT("/instant-payout", h.SetInstantPayout)
	rg.PUT("/availability", h.SetAvailability)
	rg.GET("/certifications", h.ListCertifications)
	rg.POST("/certifications", h.AddCertification)
	rg.POST("/payout-preview", h.PreviewPayout)
}

// RegisterAdminRoutes registers the ops-facing hauler routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.PUT("/haulers/:id/verified-llc", h.SetVerifiedLLC)
}

func (h *Handler) SetVerifiedLLC(c *gin.Context) {
	haulerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid hauler id", nil)
		return
	}

	var req transport.VerifiedLLCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.SetVerifiedLLC(c.Request.Context(), haulerID, req.Verified); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"verifiedLLC": req.Verified})
}

func (h *Handler) Onboard(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	accountID, err := h.svc.Onboard(c.Request.Context(), id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.OnboardResponse{AccountID: accountID})
}

func (h *Handler) AccountStatus(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	status, err := h.svc.GetAccountStatus(c.Request.Context(), id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, status)
}

func (h *Handler) SetInstantPayout(c *gin.Context) {
	var req transport.InstantPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	id := httpkit.MustGetIdentity(c)
	if err := h.svc.SetInstantPayout(c.Request.Context(), id.UserID(), req.Enabled); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"instantPayoutEnabled": req.Enabled})
}

func (h *Handler) SetAvailability(c *gin.Context) {
	var req transport.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	id := httpkit.MustGetIdentity(c)
	if err := h.svc.SetAvailability(c.Request.Context(), id.UserID(), req.Available, req.Lat, req.Lng); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"available": req.Available})
}

func (h *Handler) ListCertifications(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	certs, err := h.svc.ListCertifications(c.Request.Context(), id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, certs)
}

func (h *Handler) AddCertification(c *gin.Context) {
	var req transport.CertificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	id := httpkit.MustGetIdentity(c)
	if err := h.svc.AddCertification(c.Request.Context(), id.UserID(), req.Name, req.ExpiresAt); httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, gin.H{"status": "added"})
}

func (h *Handler) PreviewPayout(c *gin.Context) {
	var req transport.PayoutPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	id := httpkit.MustGetIdentity(c)
	breakdown, err := h.svc.PreviewPayout(c.Request.Context(), id.UserID(), req.AmountCents, req.RecurringExempt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, breakdown)
}
