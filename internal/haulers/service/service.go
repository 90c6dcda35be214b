// Package service implements pro-side operations: Connect onboarding,
// certifications, availability, and payout previews.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"haulhub_backend/internal/haulers/repository"
	"haulhub_backend/internal/jobs/settlement"
	"haulhub_backend/internal/payments"
	"haulhub_backend/internal/payout"
	"haulhub_backend/platform/apperr"
	"haulhub_backend/platform/logger"
)

// Store is the persistence surface for the haulers service.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Hauler, error)
	Create(ctx context.Context, h *repository.Hauler) error
	SetStripeAccount(ctx context.Context, id uuid.UUID, accountID string) error
	SetInstantPayout(ctx context.Context, id uuid.UUID, enabled bool) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool, lat, lng *float64) error
	SetVerifiedLLC(ctx context.Context, id uuid.UUID, verified bool) error
	CountAvailableNearby(ctx context.Context, lat, lng, radiusDeg float64) (int, error)
	AddCertification(ctx context.Context, c *repository.Certification) error
	ListCertifications(ctx context.Context, haulerID uuid.UUID) ([]repository.Certification, error)
	CountActiveCertifications(ctx context.Context, haulerID uuid.UUID) (int, error)
}

// matchRadiusDeg bounds the availability scan used for surge supply counts.
const matchRadiusDeg = 0.25

type Service struct {
	store   Store
	gateway payments.Gateway
	log     *logger.Logger
}

func New(store Store, gateway payments.Gateway, log *logger.Logger) *Service {
	return &Service{store: store, gateway: gateway, log: log}
}

// ── Onboarding ────────────────────────────────────────────────────────────────

// Onboard creates the gateway connected account for a hauler. Idempotent at
// the store level: a second call conflicts instead of orphaning an account.
func (s *Service) Onboard(ctx context.Context, haulerID uuid.UUID) (string, error) {
	h, err := s.store.GetByID(ctx, haulerID)
	if err != nil {
		return "", err
	}
	if h.StripeAccountID != nil && *h.StripeAccountID != "" {
		return *h.StripeAccountID, nil
	}

	accountID, err := s.gateway.CreateConnectAccount(ctx, h.Email)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "payout account could not be created", err)
	}
	if err := s.store.SetStripeAccount(ctx, haulerID, accountID); err != nil {
		return "", err
	}
	return accountID, nil
}

// AccountStatus reports whether the connected account can receive payouts.
type AccountStatus struct {
	Connected      bool `json:"connected"`
	ChargesEnabled bool `json:"chargesEnabled"`
	PayoutsEnabled bool `json:"payoutsEnabled"`
}

func (s *Service) GetAccountStatus(ctx context.Context, haulerID uuid.UUID) (*AccountStatus, error) {
	h, err := s.store.GetByID(ctx, haulerID)
	if err != nil {
		return nil, err
	}
	if h.StripeAccountID == nil || *h.StripeAccountID == "" {
		return &AccountStatus{}, nil
	}
	status, err := s.gateway.GetAccountStatus(ctx, *h.StripeAccountID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "account status unavailable", err)
	}
	return &AccountStatus{
		Connected:      true,
		ChargesEnabled: status.ChargesEnabled,
		PayoutsEnabled: status.PayoutsEnabled,
	}, nil
}

// SetInstantPayout toggles instant payouts. Requires a connected account
// that can actually receive payouts.
func (s *Service) SetInstantPayout(ctx context.Context, haulerID uuid.UUID, enabled bool) error {
	if enabled {
		status, err := s.GetAccountStatus(ctx, haulerID)
		if err != nil {
			return err
		}
		if !status.PayoutsEnabled {
			return apperr.Precondition("connected account cannot receive payouts yet")
		}
	}
	return s.store.SetInstantPayout(ctx, haulerID, enabled)
}

func (s *Service) SetAvailability(ctx context.Context, haulerID uuid.UUID, available bool, lat, lng *float64) error {
	return s.store.SetAvailability(ctx, haulerID, available, lat, lng)
}

// SetVerifiedLLC flags a hauler as an insurance-verified LLC. Admin only;
// the flag waives the insurance fee during settlement.
func (s *Service) SetVerifiedLLC(ctx context.Context, haulerID uuid.UUID, verified bool) error {
	return s.store.SetVerifiedLLC(ctx, haulerID, verified)
}

// ── Certifications ────────────────────────────────────────────────────────────

func (s *Service) AddCertification(ctx context.Context, haulerID uuid.UUID, name string, expiresAt *time.Time) error {
	return s.store.AddCertification(ctx, &repository.Certification{
		ID:        uuid.New(),
		HaulerID:  haulerID,
		Name:      name,
		Status:    repository.CertActive,
		ExpiresAt: expiresAt,
	})
}

func (s *Service) ListCertifications(ctx context.Context, haulerID uuid.UUID) ([]repository.Certification, error) {
	return s.store.ListCertifications(ctx, haulerID)
}

// ── Payout ────────────────────────────────────────────────────────────────────

// PreviewPayout shows a pro their split for a hypothetical job amount,
// using the exact calculation settlement will run.
func (s *Service) PreviewPayout(ctx context.Context, haulerID uuid.UUID, amountCents int64, recurringExempt bool) (payout.Breakdown, error) {
	if amountCents < 0 {
		return payout.Breakdown{}, apperr.Validation("amount cannot be negative")
	}
	profile, err := s.GetPayoutProfile(ctx, haulerID)
	if err != nil {
		return payout.Breakdown{}, err
	}
	return payout.Calculate(amountCents, profile.Tier, payout.Options{
		IsVerifiedLLC:   profile.IsVerifiedLLC,
		HasOwnInsurance: profile.HasOwnInsurance,
		InsuranceWaived: profile.InsuranceWaived,
		ActiveCertCount: profile.ActiveCertCount,
		RecurringExempt: recurringExempt,
	}), nil
}

// GetPayoutProfile implements settlement.ProfileSource.
func (s *Service) GetPayoutProfile(ctx context.Context, haulerID uuid.UUID) (*settlement.PayoutProfile, error) {
	h, err := s.store.GetByID(ctx, haulerID)
	if err != nil {
		return nil, err
	}
	certs, err := s.store.CountActiveCertifications(ctx, haulerID)
	if err != nil {
		return nil, err
	}

	profile := &settlement.PayoutProfile{
		HaulerID:             h.ID,
		Tier:                 payout.Tier(h.Tier),
		IsVerifiedLLC:        h.IsVerifiedLLC,
		HasOwnInsurance:      h.HasOwnInsurance,
		InsuranceWaived:      h.InsuranceWaived,
		ActiveCertCount:      certs,
		InstantPayoutEnabled: h.InstantPayoutEnabled,
	}
	if h.StripeAccountID != nil {
		profile.StripeAccountID = *h.StripeAccountID
	}
	return profile, nil
}

// AvailableNearby implements the jobs module's Matcher.
func (s *Service) AvailableNearby(ctx context.Context, lat, lng float64) (int, error) {
	return s.store.CountAvailableNearby(ctx, lat, lng, matchRadiusDeg)
}
