// Package handler exposes the billing module over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"haulhub_backend/internal/billing/service"
	"haulhub_backend/internal/billing/transport"
	"haulhub_backend/platform/httpkit"
	"haulhub_backend/platform/validator"
)

// Handler handles HTTP requests for billing.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the billing routes. All routes act on the
// authenticated customer's own profile.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/setup-intent", h.CreateSetupIntent)
	rg.GET("/payment-methods", h.ListPaymentMethods)
	rg.POST("/payment-methods", h.AttachPaymentMethod)
	rg.DELETE("/payment-methods/:id", h.DetachPaymentMethod)
	rg.PUT("/payment-methods/default", h.SetDefaultPaymentMethod)
}

func (h *Handler) CreateSetupIntent(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	si, err := h.svc.CreateSetupIntent(c.Request.Context(), id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.SetupIntentResponse{SetupIntentID: si.ID, ClientSecret: si.ClientSecret})
}

func (h *Handler) ListPaymentMethods(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	list, err := h.svc.ListPaymentMethods(c.Request.Context(), id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, list)
}

func (h *Handler) AttachPaymentMethod(c *gin.Context) {
	var req transport.AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	id := httpkit.MustGetIdentity(c)
	if err := h.svc.AttachPaymentMethod(c.Request.Context(), id.UserID(), req.PaymentMethodID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, gin.H{"status": "attached"})
}

func (h *Handler) DetachPaymentMethod(c *gin.Context) {
	paymentMethodID := c.Param("id")
	if paymentMethodID == "" {
		httpkit.Error(c, http.StatusBadRequest, "missing payment method id", nil)
		return
	}

	id := httpkit.MustGetIdentity(c)
	if err := h.svc.DetachPaymentMethod(c.Request.Context(), id.UserID(), paymentMethodID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "detached"})
}

func (h *Handler) SetDefaultPaymentMethod(c *gin.Context) {
	var req transport.DefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	id := httpkit.MustGetIdentity(c)
	if err := h.svc.SetDefaultPaymentMethod(c.Request.Context(), id.UserID(), req.PaymentMethodID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"defaultMethodId": req.PaymentMethodID})
}
