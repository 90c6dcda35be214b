package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"haulhub_backend/internal/haulers/repository"
	"haulhub_backend/internal/payments"
	"haulhub_backend/internal/payout"
	"haulhub_backend/platform/apperr"
	"haulhub_backend/platform/logger"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubStore struct {
	mu       sync.Mutex
	haulers  map[uuid.UUID]*repository.Hauler
	certs    map[uuid.UUID][]repository.Certification
	nearby   int
	accounts map[uuid.UUID]string
}

func newStubStore() *stubStore {
	return &stubStore{
		haulers:  make(map[uuid.UUID]*repository.Hauler),
		certs:    make(map[uuid.UUID][]repository.Certification),
		accounts: make(map[uuid.UUID]string),
	}
}

func (s *stubStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Hauler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.haulers[id]
	if !ok {
		return nil, apperr.NotFound("hauler not found")
	}
	cp := *h
	return &cp, nil
}

func (s *stubStore) Create(_ context.Context, h *repository.Hauler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haulers[h.ID] = h
	return nil
}

func (s *stubStore) SetStripeAccount(_ context.Context, id uuid.UUID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.haulers[id]
	if !ok {
		return apperr.NotFound("hauler not found")
	}
	if h.StripeAccountID != nil {
		return apperr.Conflict("hauler already has a connected account")
	}
	h.StripeAccountID = &accountID
	s.accounts[id] = accountID
	return nil
}

func (s *stubStore) SetInstantPayout(_ context.Context, id uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.haulers[id]; ok {
		h.InstantPayoutEnabled = enabled
		return nil
	}
	return apperr.NotFound("hauler not found")
}

func (s *stubStore) SetAvailability(_ context.Context, id uuid.UUID, available bool, lat, lng *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.haulers[id]; ok {
		h.Available = available
		if lat != nil {
			h.LastLat = lat
		}
		if lng != nil {
			h.LastLng = lng
		}
		return nil
	}
	return apperr.NotFound("hauler not found")
}

func (s *stubStore) SetVerifiedLLC(_ context.Context, id uuid.UUID, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.haulers[id]; ok {
		h.IsVerifiedLLC = verified
		return nil
	}
	return apperr.NotFound("hauler not found")
}

func (s *stubStore) CountAvailableNearby(_ context.Context, _, _, _ float64) (int, error) {
	return s.nearby, nil
}

func (s *stubStore) AddCertification(_ context.Context, c *repository.Certification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs[c.HaulerID] = append(s.certs[c.HaulerID], *c)
	return nil
}

func (s *stubStore) ListCertifications(_ context.Context, haulerID uuid.UUID) ([]repository.Certification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.certs[haulerID], nil
}

func (s *stubStore) CountActiveCertifications(_ context.Context, haulerID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.certs[haulerID] {
		if c.Status == repository.CertActive {
			n++
		}
	}
	return n, nil
}

type stubGateway struct {
	payments.Gateway

	connectCalls   int
	connectErr     error
	accountStatus  *payments.AccountStatus
	accountSeenIDs []string
}

func (g *stubGateway) CreateConnectAccount(_ context.Context, _ string) (string, error) {
	g.connectCalls++
	if g.connectErr != nil {
		return "", g.connectErr
	}
	return "acct_test", nil
}

func (g *stubGateway) GetAccountStatus(_ context.Context, accountID string) (*payments.AccountStatus, error) {
	g.accountSeenIDs = append(g.accountSeenIDs, accountID)
	if g.accountStatus == nil {
		return nil, errors.New("no such account")
	}
	return g.accountStatus, nil
}

func newService(store *stubStore, gw *stubGateway) *Service {
	return New(store, gw, logger.New("test"))
}

func seedHauler(store *stubStore, tier string) *repository.Hauler {
	h := &repository.Hauler{ID: uuid.New(), Email: "pro@example.com", Name: "Pro", Tier: tier}
	store.haulers[h.ID] = h
	return h
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestOnboardCreatesAccountOnce(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{}
	svc := newService(store, gw)
	h := seedHauler(store, "standard")

	accountID, err := svc.Onboard(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}
	if accountID != "acct_test" {
		t.Fatalf("accountID = %q, want acct_test", accountID)
	}

	// Second call returns the existing account without touching the gateway.
	again, err := svc.Onboard(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("second Onboard() error = %v", err)
	}
	if again != "acct_test" {
		t.Fatalf("second accountID = %q, want acct_test", again)
	}
	if gw.connectCalls != 1 {
		t.Fatalf("connect calls = %d, want 1", gw.connectCalls)
	}
}

func TestOnboardGatewayFailureCreatesNothing(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{connectErr: errors.New("stripe down")}
	svc := newService(store, gw)
	h := seedHauler(store, "standard")

	_, err := svc.Onboard(context.Background(), h.ID)
	if apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("error kind = %v, want unavailable", apperr.GetKind(err))
	}
	if store.haulers[h.ID].StripeAccountID != nil {
		t.Fatal("account id was persisted despite gateway failure")
	}
}

func TestSetInstantPayoutRequiresPayoutsEnabled(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{accountStatus: &payments.AccountStatus{ChargesEnabled: true, PayoutsEnabled: false}}
	svc := newService(store, gw)
	h := seedHauler(store, "standard")
	acct := "acct_ready"
	h.StripeAccountID = &acct

	err := svc.SetInstantPayout(context.Background(), h.ID, true)
	if apperr.GetKind(err) != apperr.KindPrecondition {
		t.Fatalf("error kind = %v, want precondition", apperr.GetKind(err))
	}

	gw.accountStatus.PayoutsEnabled = true
	if err := svc.SetInstantPayout(context.Background(), h.ID, true); err != nil {
		t.Fatalf("SetInstantPayout() error = %v", err)
	}
	if !store.haulers[h.ID].InstantPayoutEnabled {
		t.Fatal("instant payout flag not set")
	}
}

func TestSetInstantPayoutDisableSkipsAccountCheck(t *testing.T) {
	store := newStubStore()
	gw := &stubGateway{}
	svc := newService(store, gw)
	h := seedHauler(store, "standard")
	h.InstantPayoutEnabled = true

	if err := svc.SetInstantPayout(context.Background(), h.ID, false); err != nil {
		t.Fatalf("SetInstantPayout(false) error = %v", err)
	}
	if len(gw.accountSeenIDs) != 0 {
		t.Fatal("disabling should not query the gateway")
	}
	if store.haulers[h.ID].InstantPayoutEnabled {
		t.Fatal("instant payout flag not cleared")
	}
}

func TestGetAccountStatusNotConnected(t *testing.T) {
	store := newStubStore()
	svc := newService(store, &stubGateway{})
	h := seedHauler(store, "standard")

	status, err := svc.GetAccountStatus(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("GetAccountStatus() error = %v", err)
	}
	if status.Connected || status.PayoutsEnabled {
		t.Fatalf("status = %+v, want zero value", status)
	}
}

func TestPayoutProfileReflectsCertifications(t *testing.T) {
	store := newStubStore()
	svc := newService(store, &stubGateway{})
	h := seedHauler(store, "pro")
	h.IsVerifiedLLC = true

	for _, name := range []string{"hazmat", "appliance-disposal"} {
		if err := svc.AddCertification(context.Background(), h.ID, name, nil); err != nil {
			t.Fatalf("AddCertification(%s) error = %v", name, err)
		}
	}
	store.certs[h.ID] = append(store.certs[h.ID], repository.Certification{
		ID: uuid.New(), HaulerID: h.ID, Name: "revoked-one", Status: repository.CertRevoked,
	})

	profile, err := svc.GetPayoutProfile(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("GetPayoutProfile() error = %v", err)
	}
	if profile.ActiveCertCount != 2 {
		t.Fatalf("ActiveCertCount = %d, want 2", profile.ActiveCertCount)
	}
	if profile.Tier != payout.Tier("pro") {
		t.Fatalf("Tier = %v, want pro", profile.Tier)
	}
	if !profile.IsVerifiedLLC {
		t.Fatal("IsVerifiedLLC not carried into profile")
	}
}

func TestPreviewPayoutMatchesSettlementMath(t *testing.T) {
	store := newStubStore()
	svc := newService(store, &stubGateway{})
	h := seedHauler(store, "standard")

	got, err := svc.PreviewPayout(context.Background(), h.ID, 10000, false)
	if err != nil {
		t.Fatalf("PreviewPayout() error = %v", err)
	}
	want := payout.Calculate(10000, payout.Tier("standard"), payout.Options{})
	if got != want {
		t.Fatalf("breakdown = %+v, want %+v", got, want)
	}
}

func TestPreviewPayoutRejectsNegativeAmount(t *testing.T) {
	store := newStubStore()
	svc := newService(store, &stubGateway{})
	h := seedHauler(store, "standard")

	_, err := svc.PreviewPayout(context.Background(), h.ID, -1, false)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("error kind = %v, want validation", apperr.GetKind(err))
	}
}
