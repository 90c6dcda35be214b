// Package service implements customer payment method management: setup
// intents for collecting a card, and attach / detach / default selection.
package service

import (
	"context"

	"github.com/google/uuid"

	"haulhub_backend/internal/billing/repository"
	"haulhub_backend/internal/payments"
	"haulhub_backend/platform/apperr"
	"haulhub_backend/platform/logger"
)

// Store is the persistence surface for the billing service.
type Store interface {
	GetProfile(ctx context.Context, customerID uuid.UUID) (*repository.Profile, error)
	SetGatewayCustomerID(ctx context.Context, customerID uuid.UUID, gatewayID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID uuid.UUID, paymentMethodID string) error
	ClearDefaultPaymentMethod(ctx context.Context, customerID uuid.UUID, paymentMethodID string) error
}

type Service struct {
	store   Store
	gateway payments.Gateway
	log     *logger.Logger
}

func New(store Store, gateway payments.Gateway, log *logger.Logger) *Service {
	return &Service{store: store, gateway: gateway, log: log}
}

// ensureGatewayCustomer resolves the gateway customer, creating one on first
// use and backfilling the profile.
func (s *Service) ensureGatewayCustomer(ctx context.Context, customerID uuid.UUID) (string, error) {
	p, err := s.store.GetProfile(ctx, customerID)
	if err != nil {
		return "", err
	}
	if p.GatewayCustomerID != nil && *p.GatewayCustomerID != "" {
		return *p.GatewayCustomerID, nil
	}

	cust, err := s.gateway.CreateCustomer(ctx, p.Email, p.Name)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "billing account could not be created", err)
	}
	if err := s.store.SetGatewayCustomerID(ctx, customerID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}

// CreateSetupIntent starts a card collection flow. The client confirms the
// returned secret with the gateway SDK; the resulting method is then attached.
func (s *Service) CreateSetupIntent(ctx context.Context, customerID uuid.UUID) (*payments.SetupIntent, error) {
	gwID, err := s.ensureGatewayCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	si, err := s.gateway.CreateSetupIntent(ctx, gwID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "setup intent could not be created", err)
	}
	return si, nil
}

// PaymentMethodList is the customer's stored methods with the current
// default marked.
type PaymentMethodList struct {
	Methods         []payments.PaymentMethod `json:"methods"`
	DefaultMethodID string                   `json:"defaultMethodId,omitempty"`
}

func (s *Service) ListPaymentMethods(ctx context.Context, customerID uuid.UUID) (*PaymentMethodList, error) {
	p, err := s.store.GetProfile(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if p.GatewayCustomerID == nil || *p.GatewayCustomerID == "" {
		return &PaymentMethodList{Methods: []payments.PaymentMethod{}}, nil
	}

	methods, err := s.gateway.ListPaymentMethods(ctx, *p.GatewayCustomerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "payment methods unavailable", err)
	}
	list := &PaymentMethodList{Methods: methods}
	if p.DefaultPaymentMethodID != nil {
		list.DefaultMethodID = *p.DefaultPaymentMethodID
	}
	return list, nil
}

// AttachPaymentMethod attaches a confirmed method to the customer. The first
// attached method becomes the default.
func (s *Service) AttachPaymentMethod(ctx context.Context, customerID uuid.UUID, paymentMethodID string) error {
	p, err := s.store.GetProfile(ctx, customerID)
	if err != nil {
		return err
	}
	gwID, err := s.ensureGatewayCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if err := s.gateway.AttachPaymentMethod(ctx, gwID, paymentMethodID); err != nil {
		return mapGatewayError(err)
	}
	if p.DefaultPaymentMethodID == nil || *p.DefaultPaymentMethodID == "" {
		return s.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID)
	}
	return nil
}

func (s *Service) DetachPaymentMethod(ctx context.Context, customerID uuid.UUID, paymentMethodID string) error {
	if err := s.gateway.DetachPaymentMethod(ctx, paymentMethodID); err != nil {
		return mapGatewayError(err)
	}
	return s.store.ClearDefaultPaymentMethod(ctx, customerID, paymentMethodID)
}

func (s *Service) SetDefaultPaymentMethod(ctx context.Context, customerID uuid.UUID, paymentMethodID string) error {
	gwID, err := s.ensureGatewayCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if err := s.gateway.SetDefaultPaymentMethod(ctx, gwID, paymentMethodID); err != nil {
		return mapGatewayError(err)
	}
	return s.store.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID)
}

func mapGatewayError(err error) error {
	switch payments.CategoryOf(err) {
	case payments.CategoryDeclined, payments.CategoryInvalidRequest:
		return apperr.Wrap(apperr.KindBadRequest, "payment method was rejected", err)
	default:
		return apperr.Wrap(apperr.KindUnavailable, "payment service unavailable", err)
	}
}
