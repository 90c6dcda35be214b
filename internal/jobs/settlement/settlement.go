// Package settlement executes capture, payout split, and record-keeping for
// a completed job as one idempotent operation.
package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"haulhub_backend/internal/events"
	"haulhub_backend/internal/jobs/domain"
	"haulhub_backend/internal/jobs/repository"
	"haulhub_backend/internal/jobs/verification"
	"haulhub_backend/internal/payments"
	"haulhub_backend/internal/payout"
	"haulhub_backend/internal/pricing"
	"haulhub_backend/platform/logger"
)

// Outcome classifies a settle run.
type Outcome string

const (
	// OutcomeSettled: funds captured and the payout recorded. The payout
	// itself may still be deferred (transfer failure) but the customer side
	// is final.
	OutcomeSettled Outcome = "settled"
	// OutcomeDeferred: nothing to do right now. Already captured, no intent,
	// verification hold, or another settle run holds the claim. Safe no-op.
	OutcomeDeferred Outcome = "deferred"
	// OutcomeFailed: the capture itself failed. The job stays completed;
	// payment status records the failure for retry or manual follow-up.
	OutcomeFailed Outcome = "failed"
)

// Result is the outcome of one settle run.
type Result struct {
	Outcome           Outcome
	CapturedCents     int64
	PlatformFeeCents  int64
	HaulerPayoutCents int64
	PayoutStatus      domain.PayoutStatus
	Reason            string
}

// PayoutProfile is what settlement needs to know about the hauler.
type PayoutProfile struct {
	HaulerID             uuid.UUID
	Tier                 payout.Tier
	IsVerifiedLLC        bool
	HasOwnInsurance      bool
	InsuranceWaived      bool
	ActiveCertCount      int
	StripeAccountID      string
	InstantPayoutEnabled bool
}

// ProfileSource resolves the assigned hauler's payout profile.
type ProfileSource interface {
	GetPayoutProfile(ctx context.Context, haulerID uuid.UUID) (*PayoutProfile, error)
}

// VerificationGate is the completion/release gate consulted before money moves.
type VerificationGate interface {
	Evaluate(ctx context.Context, jobID uuid.UUID) (verification.Evaluation, error)
}

// Orchestrator runs settlement. Exactly-once capture is enforced by the
// store's claim: authorized -> capturing is a conditional update, so two
// concurrent settles on the same request cannot both reach the gateway.
type Orchestrator struct {
	store    repository.SettlementStore
	gateway  payments.Gateway
	profiles ProfileSource
	gate     VerificationGate
	releaser repository.VerificationStore
	bus      events.Bus
	log      *logger.Logger
}

func New(
	store repository.SettlementStore,
	gateway payments.Gateway,
	profiles ProfileSource,
	gate VerificationGate,
	releaser repository.VerificationStore,
	bus events.Bus,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		gateway:  gateway,
		profiles: profiles,
		gate:     gate,
		releaser: releaser,
		bus:      bus,
		log:      log,
	}
}

// Settle captures the customer charge and pays out the hauler. Calling it
// twice on an already-captured request is a safe no-op. Two failure
// asymmetries are deliberate and must hold:
//   - a failed capture never un-completes the job
//   - a failed transfer never reverses the capture; the payout degrades to
//     deferred for reconciliation
func (o *Orchestrator) Settle(ctx context.Context, jobID uuid.UUID) (Result, error) {
	sr, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return Result{}, err
	}

	// Guard: capture only happens at or after completion. The auto-release
	// task is scheduled while the job is still in progress, and a stale task
	// can outlive a cancellation.
	if sr.Status != domain.StatusCompleted {
		return Result{Outcome: OutcomeDeferred, Reason: "job is not completed"}, nil
	}

	// Guard: nothing to capture, or already done.
	if sr.PaymentStatus == domain.PaymentCaptured {
		return Result{Outcome: OutcomeDeferred, Reason: "already captured"}, nil
	}
	if sr.PaymentIntentID == nil || *sr.PaymentIntentID == "" {
		return Result{Outcome: OutcomeDeferred, Reason: "no payment intent"}, nil
	}
	if sr.AssignedHaulerID == nil {
		return Result{Outcome: OutcomeDeferred, Reason: "no assigned hauler"}, nil
	}

	if verification.Required(sr.ServiceType) {
		ev, err := o.gate.Evaluate(ctx, jobID)
		if err != nil {
			return Result{}, err
		}
		if !ev.CanReleasePayment {
			return Result{Outcome: OutcomeDeferred, Reason: "verification hold"}, nil
		}
	}

	profile, err := o.profiles.GetPayoutProfile(ctx, *sr.AssignedHaulerID)
	if err != nil {
		return Result{}, err
	}

	// Payout basis is the agreed service price plus approved adjustments,
	// never the customer-facing total with the protection fee on top.
	adjustments, err := o.store.SumApprovedAdjustments(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	base := sr.BaseServicePriceCents
	if base == 0 {
		// Rows without a stored base carry the fee inside the live total.
		base = pricing.BaseFromTotal(sr.LivePriceCents, sr.ProtectionFeeRate)
	}
	basis := base + adjustments
	breakdown := payout.Calculate(basis, profile.Tier, payout.Options{
		IsVerifiedLLC:   profile.IsVerifiedLLC,
		HasOwnInsurance: profile.HasOwnInsurance,
		InsuranceWaived: profile.InsuranceWaived,
		ActiveCertCount: profile.ActiveCertCount,
		RecurringExempt: sr.ServiceType == "recurring_yard",
	})

	// Claim before touching the gateway.
	claimed, err := o.store.ClaimCapture(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{Outcome: OutcomeDeferred, Reason: "settlement already in flight"}, nil
	}

	intent, err := o.gateway.CaptureIntent(ctx, *sr.PaymentIntentID, sr.LivePriceCents)
	if err != nil {
		return o.recordCaptureFailure(ctx, sr, err)
	}

	result := Result{
		Outcome:           OutcomeSettled,
		CapturedCents:     intent.AmountCents,
		PlatformFeeCents:  breakdown.PlatformFeeCents + breakdown.InsuranceFeeCents,
		HaulerPayoutCents: breakdown.HaulerPayoutCents,
	}

	rec := repository.SettlementRecord{
		PaymentStatus:     domain.PaymentCaptured,
		CapturedCents:     result.CapturedCents,
		PlatformFeeCents:  result.PlatformFeeCents,
		HaulerPayoutCents: result.HaulerPayoutCents,
	}

	transferID, payoutStatus, reason := o.payOut(ctx, jobID, profile, breakdown.HaulerPayoutCents)
	rec.TransferID = transferID
	rec.PayoutStatus = payoutStatus
	if reason != "" {
		rec.FailureReason = &reason
	}
	result.PayoutStatus = payoutStatus
	result.Reason = reason

	if err := o.store.RecordSettlement(ctx, jobID, rec); err != nil {
		// The money moved; surface the persistence failure for retry but
		// keep the result so the caller sees what happened.
		return result, fmt.Errorf("settlement succeeded but recording failed: %w", err)
	}
	if verification.Required(sr.ServiceType) {
		if err := o.releaser.MarkReleased(ctx, jobID); err != nil {
			o.log.DatabaseError("mark_verification_released", err)
		}
	}

	o.bus.Publish(ctx, events.PaymentCaptured{
		BaseEvent:         events.NewBaseEvent(),
		JobID:             jobID,
		CustomerID:        sr.CustomerID,
		HaulerID:          *sr.AssignedHaulerID,
		CapturedCents:     result.CapturedCents,
		PlatformFeeCents:  result.PlatformFeeCents,
		HaulerPayoutCents: result.HaulerPayoutCents,
		PayoutStatus:      string(payoutStatus),
	})
	return result, nil
}

// payOut moves the hauler's share. Transfer failure degrades to a deferred
// payout; instant-payout failure degrades to standard. Neither reverses the
// capture.
func (o *Orchestrator) payOut(ctx context.Context, jobID uuid.UUID, profile *PayoutProfile, amountCents int64) (*string, domain.PayoutStatus, string) {
	if amountCents <= 0 {
		return nil, domain.PayoutNone, ""
	}
	if profile.StripeAccountID == "" {
		return nil, domain.PayoutDeferred, "hauler has no connected account"
	}

	transfer, err := o.gateway.CreateTransfer(ctx, payments.TransferParams{
		AmountCents:        amountCents,
		DestinationAccount: profile.StripeAccountID,
		Metadata:           map[string]string{"job_id": jobID.String()},
	})
	if err != nil {
		o.log.GatewayError("transfer", string(payments.CategoryOf(err)), err)
		return nil, domain.PayoutDeferred, "transfer failed: " + err.Error()
	}

	status := domain.PayoutStandard
	if profile.InstantPayoutEnabled {
		if _, err := o.gateway.CreateInstantPayout(ctx, profile.StripeAccountID, amountCents); err != nil {
			// Expected branch: the balance falls back to the normal
			// payout schedule.
			o.log.GatewayError("instant_payout", string(payments.CategoryOf(err)), err)
		} else {
			status = domain.PayoutInstant
		}
	}
	return &transfer.ID, status, ""
}

func (o *Orchestrator) recordCaptureFailure(ctx context.Context, sr *repository.ServiceRequest, captureErr error) (Result, error) {
	category := payments.CategoryOf(captureErr)
	o.log.GatewayError("capture", string(category), captureErr)

	reason := captureErr.Error()
	rec := repository.SettlementRecord{
		PaymentStatus: domain.PaymentCaptureFailed,
		PayoutStatus:  domain.PayoutNone,
		FailureReason: &reason,
	}
	if err := o.store.RecordSettlement(ctx, sr.ID, rec); err != nil {
		return Result{}, fmt.Errorf("capture failed and recording failed: %w", err)
	}

	o.bus.Publish(ctx, events.CaptureFailed{
		BaseEvent: events.NewBaseEvent(),
		JobID:     sr.ID,
		Reason:    reason,
	})
	return Result{Outcome: OutcomeFailed, Reason: reason}, nil
}
