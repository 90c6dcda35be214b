package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"haulhub_backend/internal/billing/repository"
	"haulhub_backend/internal/payments"
	"haulhub_backend/platform/apperr"
	"haulhub_backend/platform/logger"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubStore struct {
	profiles map[uuid.UUID]*repository.Profile
}

func newStubStore() *stubStore {
	return &stubStore{profiles: make(map[uuid.UUID]*repository.Profile)}
}

func (s *stubStore) GetProfile(_ context.Context, customerID uuid.UUID) (*repository.Profile, error) {
	p, ok := s.profiles[customerID]
	if !ok {
		return nil, apperr.NotFound("customer not found")
	}
	cp := *p
	return &cp, nil
}

func (s *stubStore) SetGatewayCustomerID(_ context.Context, customerID uuid.UUID, gatewayID string) error {
	p := s.profiles[customerID]
	if p.GatewayCustomerID == nil {
		p.GatewayCustomerID = &gatewayID
	}
	return nil
}

func (s *stubStore) SetDefaultPaymentMethod(_ context.Context, customerID uuid.UUID, paymentMethodID string) error {
	p, ok := s.profiles[customerID]
	if !ok {
		return apperr.NotFound("customer not found")
	}
	p.DefaultPaymentMethodID = &paymentMethodID
	return nil
}

func (s *stubStore) ClearDefaultPaymentMethod(_ context.Context, customerID uuid.UUID, paymentMethodID string) error {
	p := s.profiles[customerID]
	if p.DefaultPaymentMethodID != nil && *p.DefaultPaymentMethodID == paymentMethodID {
		p.DefaultPaymentMethodID = nil
	}
	return nil
}

type stubGateway struct {
	payments.Gateway

	customers   int
	attached    []string
	detached    []string
	defaults    []string
	attachErr   error
	listMethods []payments.PaymentMethod
}

func (g *stubGateway) CreateCustomer(_ context.Context, _, _ string) (*payments.Customer, error) {
	g.customers++
	return &payments.Customer{ID: "cus_test"}, nil
}

func (g *stubGateway) CreateSetupIntent(_ context.Context, customerID string) (*payments.SetupIntent, error) {
	return &payments.SetupIntent{ID: "seti_test", ClientSecret: "seti_test_secret_" + customerID}, nil
}

func (g *stubGateway) ListPaymentMethods(_ context.Context, _ string) ([]payments.PaymentMethod, error) {
	return g.listMethods, nil
}

func (g *stubGateway) AttachPaymentMethod(_ context.Context, _, paymentMethodID string) error {
	if g.attachErr != nil {
		return g.attachErr
	}
	g.attached = append(g.attached, paymentMethodID)
	return nil
}

func (g *stubGateway) DetachPaymentMethod(_ context.Context, paymentMethodID string) error {
	g.detached = append(g.detached, paymentMethodID)
	return nil
}

func (g *stubGateway) SetDefaultPaymentMethod(_ context.Context, _, paymentMethodID string) error {
	g.defaults = append(g.defaults, paymentMethodID)
	return nil
}

func seedCustomer(store *stubStore) uuid.UUID {
	id := uuid.New()
	store.profiles[id] = &repository.Profile{CustomerID: id, Email: "c@example.com", Name: "Customer"}
	return id
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestCreateSetupIntentProvisionsGatewayCustomer(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{}
	svc := New(store, gw, logger.New("test"))
	customerID := seedCustomer(store)

	si, err := svc.CreateSetupIntent(context.Background(), customerID)
	if err != nil {
		t.Fatalf("CreateSetupIntent() error = %v", err)
	}
	if si.ClientSecret == "" {
		t.Fatal("expected a client secret")
	}
	if got := store.profiles[customerID].GatewayCustomerID; got == nil || *got != "cus_test" {
		t.Fatalf("gateway customer id = %v, want cus_test", got)
	}

	// Second call reuses the provisioned customer.
	if _, err := svc.CreateSetupIntent(context.Background(), customerID); err != nil {
		t.Fatalf("second CreateSetupIntent() error = %v", err)
	}
	if gw.customers != 1 {
		t.Fatalf("customer creations = %d, want 1", gw.customers)
	}
}

func TestFirstAttachedMethodBecomesDefault(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{}
	svc := New(store, gw, logger.New("test"))
	customerID := seedCustomer(store)

	if err := svc.AttachPaymentMethod(context.Background(), customerID, "pm_first"); err != nil {
		t.Fatalf("AttachPaymentMethod() error = %v", err)
	}
	if got := store.profiles[customerID].DefaultPaymentMethodID; got == nil || *got != "pm_first" {
		t.Fatalf("default = %v, want pm_first", got)
	}

	if err := svc.AttachPaymentMethod(context.Background(), customerID, "pm_second"); err != nil {
		t.Fatalf("second AttachPaymentMethod() error = %v", err)
	}
	if got := *store.profiles[customerID].DefaultPaymentMethodID; got != "pm_first" {
		t.Fatalf("default after second attach = %s, want pm_first", got)
	}
}

func TestAttachRejectedMethodMapsToBadRequest(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{attachErr: &payments.Error{Category: payments.CategoryInvalidRequest, Message: "no such method"}}
	svc := New(store, gw, logger.New("test"))
	customerID := seedCustomer(store)

	err := svc.AttachPaymentMethod(context.Background(), customerID, "pm_bogus")
	if apperr.GetKind(err) != apperr.KindBadRequest {
		t.Fatalf("error kind = %v, want bad request", apperr.GetKind(err))
	}
}

func TestAttachConnectionFailureMapsToUnavailable(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{attachErr: errors.New("dial tcp: timeout")}
	svc := New(store, gw, logger.New("test"))
	customerID := seedCustomer(store)

	err := svc.AttachPaymentMethod(context.Background(), customerID, "pm_card")
	if apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("error kind = %v, want unavailable", apperr.GetKind(err))
	}
}

func TestDetachClearsMatchingDefaultOnly(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{}
	svc := New(store, gw, logger.New("test"))
	customerID := seedCustomer(store)
	def := "pm_default"
	store.profiles[customerID].DefaultPaymentMethodID = &def

	if err := svc.DetachPaymentMethod(context.Background(), customerID, "pm_other"); err != nil {
		t.Fatalf("DetachPaymentMethod() error = %v", err)
	}
	if store.profiles[customerID].DefaultPaymentMethodID == nil {
		t.Fatal("default cleared by detaching a different method")
	}

	if err := svc.DetachPaymentMethod(context.Background(), customerID, "pm_default"); err != nil {
		t.Fatalf("DetachPaymentMethod(default) error = %v", err)
	}
	if store.profiles[customerID].DefaultPaymentMethodID != nil {
		t.Fatal("default not cleared after detaching it")
	}
}

func TestListPaymentMethodsWithoutGatewayCustomer(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{listMethods: []payments.PaymentMethod{{ID: "pm_visa", Brand: "visa", Last4: "4242"}}}
	svc := New(store, gw, logger.New("test"))
	customerID := seedCustomer(store)

	list, err := svc.ListPaymentMethods(context.Background(), customerID)
	if err != nil {
		t.Fatalf("ListPaymentMethods() error = %v", err)
	}
	if len(list.Methods) != 0 {
		t.Fatalf("methods = %d, want 0 before any gateway customer exists", len(list.Methods))
	}

	gwID := "cus_test"
	store.profiles[customerID].GatewayCustomerID = &gwID
	def := "pm_visa"
	store.profiles[customerID].DefaultPaymentMethodID = &def

	list, err = svc.ListPaymentMethods(context.Background(), customerID)
	if err != nil {
		t.Fatalf("ListPaymentMethods() error = %v", err)
	}
	if len(list.Methods) != 1 || list.DefaultMethodID != "pm_visa" {
		t.Fatalf("list = %+v, want one method with default pm_visa", list)
	}
}
