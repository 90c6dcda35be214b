// Package service implements the job lifecycle: quoting, creation with an
// up-front authorization, crew assembly, on-site progress, completion
// guards, cancellation, and the hand-off to settlement.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"haulhub_backend/internal/events"
	"haulhub_backend/internal/jobs/crew"
	"haulhub_backend/internal/jobs/domain"
	"haulhub_backend/internal/jobs/repository"
	"haulhub_backend/internal/jobs/settlement"
	"haulhub_backend/internal/jobs/verification"
	"haulhub_backend/internal/payments"
	"haulhub_backend/internal/pricing"
	"haulhub_backend/platform/apperr"
	"haulhub_backend/platform/config"
	"haulhub_backend/platform/logger"
)

// ceilingHeadroom is how far above the quoted total the customer's
// authorization reaches, so approved mid-job adjustments never need a
// second authorization. The customer is only ever captured for the live
// price; the ceiling is the hard bound adjustments cannot cross.
const ceilingHeadroom = 1.25

// surgeRadiusDeg bounds the area scanned for open demand when quoting.
const surgeRadiusDeg = 0.25

// maxCrewSize bounds labor crews; requests above it are a data error.
const maxCrewSize = 6

// Store is the persistence surface the lifecycle service needs. The
// concrete *repository.Repository satisfies it.
type Store interface {
	repository.RequestReader
	repository.RequestWriter
	repository.AdjustmentStore
	repository.CompletionStore
	repository.VerificationStore
	repository.BillingReader
	IsAcceptedCrewMember(ctx context.Context, jobID, haulerID uuid.UUID) (bool, error)
	ListAssignments(ctx context.Context, jobID uuid.UUID) ([]repository.CrewAssignment, error)
	SetCustomerGatewayID(ctx context.Context, customerID uuid.UUID, gatewayID string) error
}

// Matcher is the opaque supply-side oracle. Matching itself happens
// elsewhere; the lifecycle only needs the local supply count for surge.
type Matcher interface {
	AvailableNearby(ctx context.Context, lat, lng float64) (int, error)
}

// Settler runs settlement for a completed job.
type Settler interface {
	Settle(ctx context.Context, jobID uuid.UUID) (settlement.Result, error)
}

// TaskEnqueuer schedules background work: the 48h auto-release check and
// settlement retries.
type TaskEnqueuer interface {
	ScheduleAutoRelease(ctx context.Context, jobID uuid.UUID, at time.Time) error
	EnqueueSettlement(ctx context.Context, jobID uuid.UUID) error
}

type Service struct {
	store   Store
	gateway payments.Gateway
	crew    *crew.Coordinator
	settler Settler
	gate    settlement.VerificationGate
	matcher Matcher
	tasks   TaskEnqueuer
	pricing config.PricingConfig
	bus     events.Bus
	log     *logger.Logger
}

func New(
	store Store,
	gateway payments.Gateway,
	crewCoord *crew.Coordinator,
	settler Settler,
	gate settlement.VerificationGate,
	matcher Matcher,
	tasks TaskEnqueuer,
	pricingCfg config.PricingConfig,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		crew:    crewCoord,
		settler: settler,
		gate:    gate,
		matcher: matcher,
		tasks:   tasks,
		pricing: pricingCfg,
		bus:     bus,
		log:     log,
	}
}

// ── Quoting & creation ────────────────────────────────────────────────────────

type CreateInput struct {
	ServiceType pricing.ServiceType
	LoadSize    pricing.LoadSize
	VehicleType pricing.VehicleType
	Pickup      pricing.Coordinates
	Dropoff     pricing.Coordinates
	Address     string
	CrewSize    int
	ScheduledAt *time.Time
}

// QuotePreview is what the customer sees before committing.
type QuotePreview struct {
	BaseCents          int64   `json:"baseCents"`
	ProtectionFeeCents int64   `json:"protectionFeeCents"`
	TotalCents         int64   `json:"totalCents"`
	SurgeMultiplier    float64 `json:"surgeMultiplier"`
}

func (s *Service) quote(ctx context.Context, in CreateInput) (QuotePreview, error) {
	open, err := s.store.CountOpenByArea(ctx, in.Pickup.Lat, in.Pickup.Lng, surgeRadiusDeg)
	if err != nil {
		return QuotePreview{}, err
	}
	available, err := s.matcher.AvailableNearby(ctx, in.Pickup.Lat, in.Pickup.Lng)
	if err != nil {
		return QuotePreview{}, err
	}

	q := pricing.Quote(pricing.QuoteInput{
		ServiceType: in.ServiceType,
		LoadSize:    in.LoadSize,
		VehicleType: in.VehicleType,
		Pickup:      in.Pickup,
		Destination: in.Dropoff,
		Surge: pricing.SurgeState{
			OpenRequests:     open,
			AvailableHaulers: available,
			Cap:              s.pricing.GetSurgeCap(),
		},
	})

	rate := s.pricing.GetProtectionFeeRate()
	total := pricing.WithProtectionFee(q.TotalCents, rate)
	return QuotePreview{
		BaseCents:          q.TotalCents,
		ProtectionFeeCents: total - q.TotalCents,
		TotalCents:         total,
		SurgeMultiplier:    q.SurgeMultiplier,
	}, nil
}

// PreviewQuote prices a request without creating anything. Safe to call
// repeatedly; it performs no writes and moves no money.
func (s *Service) PreviewQuote(ctx context.Context, in CreateInput) (QuotePreview, error) {
	return s.quote(ctx, in)
}

// Create quotes the request, authorizes the customer up to the guaranteed
// ceiling, and persists the request in matching. No authorization, no
// request: a declined card surfaces as a bad request and nothing is stored.
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, in CreateInput) (*repository.ServiceRequest, error) {
	if in.CrewSize < 1 {
		in.CrewSize = 1
	}
	if in.CrewSize > maxCrewSize {
		return nil, apperr.Validation(fmt.Sprintf("crew size cannot exceed %d", maxCrewSize))
	}

	preview, err := s.quote(ctx, in)
	if err != nil {
		return nil, err
	}
	ceiling := pricing.RoundCents(float64(preview.TotalCents) * ceilingHeadroom)

	billing, err := s.store.GetCustomerBilling(ctx, customerID)
	if err != nil {
		return nil, err
	}
	gatewayCustomerID, err := s.ensureGatewayCustomer(ctx, billing)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New()
	authorize := payments.AuthorizeParams{
		AmountCents: ceiling,
		CustomerID:  gatewayCustomerID,
		Metadata:    map[string]string{"job_id": jobID.String()},
	}
	if billing.DefaultPaymentMethodID != nil {
		authorize.PaymentMethodID = *billing.DefaultPaymentMethodID
	}
	intent, err := s.gateway.Authorize(ctx, authorize)
	if err != nil {
		return nil, mapGatewayError("authorize", err)
	}

	intentID := intent.ID
	sr := &repository.ServiceRequest{
		ID:                     jobID,
		CustomerID:             customerID,
		ServiceType:            string(in.ServiceType),
		Status:                 domain.StatusMatching,
		PaymentStatus:          domain.PaymentAuthorized,
		PayoutStatus:           domain.PayoutNone,
		LaborCrewSize:          in.CrewSize,
		VehicleType:            string(in.VehicleType),
		LoadSize:               string(in.LoadSize),
		PickupLat:              in.Pickup.Lat,
		PickupLng:              in.Pickup.Lng,
		Address:                in.Address,
		BaseServicePriceCents:  preview.BaseCents,
		LivePriceCents:         preview.TotalCents,
		GuaranteedCeilingCents: ceiling,
		ProtectionFeeRate:      s.pricing.GetProtectionFeeRate(),
		SurgeMultiplier:        preview.SurgeMultiplier,
		PaymentIntentID:        &intentID,
		ScheduledAt:            in.ScheduledAt,
	}
	if in.Dropoff.Lat != 0 || in.Dropoff.Lng != 0 {
		sr.DropoffLat = &in.Dropoff.Lat
		sr.DropoffLng = &in.Dropoff.Lng
	}

	if err := s.store.Create(ctx, sr); err != nil {
		// The hold is live but the request never landed; release it so the
		// customer is not left with a dangling authorization.
		if cancelErr := s.gateway.CancelIntent(ctx, intentID); cancelErr != nil {
			s.log.GatewayError("cancel_orphaned_intent", string(payments.CategoryOf(cancelErr)), cancelErr)
		}
		return nil, err
	}

	s.bus.Publish(ctx, events.JobCreated{
		BaseEvent:   events.NewBaseEvent(),
		JobID:       jobID,
		CustomerID:  customerID,
		ServiceType: sr.ServiceType,
		CrewSize:    sr.LaborCrewSize,
		TotalCents:  sr.LivePriceCents,
	})
	return sr, nil
}

func (s *Service) ensureGatewayCustomer(ctx context.Context, billing *repository.CustomerBilling) (string, error) {
	if billing.GatewayCustomerID != nil && *billing.GatewayCustomerID != "" {
		return *billing.GatewayCustomerID, nil
	}
	cust, err := s.gateway.CreateCustomer(ctx, billing.Email, "")
	if err != nil {
		return "", mapGatewayError("create_customer", err)
	}
	if err := s.store.SetCustomerGatewayID(ctx, billing.CustomerID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}

// ── Crew & progress ───────────────────────────────────────────────────────────

// Accept claims a slot for the hauler. Single-pro jobs flow through the
// same path with a crew size of one.
func (s *Service) Accept(ctx context.Context, jobID, haulerID uuid.UUID) (crew.Outcome, error) {
	return s.crew.AttemptAccept(ctx, jobID, haulerID)
}

// Start moves an assigned job to in_progress. Only the assigned hauler or
// an accepted crew member may start.
func (s *Service) Start(ctx context.Context, jobID, haulerID uuid.UUID) error {
	sr, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.authorizeHauler(ctx, sr, haulerID); err != nil {
		return err
	}
	if err := s.store.UpdateStatusCAS(ctx, jobID, domain.StatusAssigned, domain.StatusInProgress); err != nil {
		return err
	}
	if err := s.store.EnsureCompletion(ctx, jobID, time.Now().UTC()); err != nil {
		return err
	}

	s.log.Transition(jobID.String(), string(domain.StatusAssigned), string(domain.StatusInProgress))
	s.bus.Publish(ctx, events.JobStarted{
		BaseEvent:  events.NewBaseEvent(),
		JobID:      jobID,
		CustomerID: sr.CustomerID,
		HaulerID:   haulerID,
	})
	return nil
}

// FinishWork is the hauler's on-site "done" signal. It does not complete
// the job; Complete runs the guards.
func (s *Service) FinishWork(ctx context.Context, jobID, haulerID uuid.UUID) error {
	sr, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.authorizeHauler(ctx, sr, haulerID); err != nil {
		return err
	}
	if sr.Status != domain.StatusInProgress {
		return apperr.Precondition("job is not in progress")
	}
	return s.store.MarkWorkCompleted(ctx, jobID, time.Now().UTC())
}

func (s *Service) authorizeHauler(ctx context.Context, sr *repository.ServiceRequest, haulerID uuid.UUID) error {
	if sr.AssignedHaulerID != nil && *sr.AssignedHaulerID == haulerID {
		return nil
	}
	member, err := s.store.IsAcceptedCrewMember(ctx, sr.ID, haulerID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Forbidden("job is not assigned to you")
	}
	return nil
}

// ── Adjustments ───────────────────────────────────────────────────────────────

// ProposeAdjustment records a mid-job price change for customer approval.
func (s *Service) ProposeAdjustment(ctx context.Context, jobID, haulerID uuid.UUID, description string, amountCents int64) (*repository.JobAdjustment, error) {
	if amountCents == 0 {
		return nil, apperr.Validation("adjustment amount cannot be zero")
	}
	sr, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeHauler(ctx, sr, haulerID); err != nil {
		return nil, err
	}
	if sr.Status != domain.StatusInProgress {
		return nil, apperr.Precondition("adjustments are only allowed on jobs in progress")
	}
	if sr.LivePriceCents+amountCents > sr.GuaranteedCeilingCents {
		return nil, apperr.Validation("adjustment exceeds the guaranteed price ceiling")
	}

	adj := &repository.JobAdjustment{
		ID:          uuid.New(),
		JobID:       jobID,
		HaulerID:    haulerID,
		Description: description,
		AmountCents: amountCents,
		Status:      repository.AdjustmentPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateAdjustment(ctx, adj); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.AdjustmentAdded{
		BaseEvent:        events.NewBaseEvent(),
		JobID:            jobID,
		AdjustmentID:     adj.ID,
		CustomerID:       sr.CustomerID,
		PriceChangeCents: amountCents,
		Reason:           description,
	})
	return adj, nil
}

// ResolveAdjustment approves or rejects a pending adjustment. Only the
// request's customer may resolve it. Approval raises the live price,
// clamped to the guaranteed ceiling.
func (s *Service) ResolveAdjustment(ctx context.Context, adjustmentID, customerID uuid.UUID, approve bool) error {
	adj, err := s.store.GetAdjustment(ctx, adjustmentID)
	if err != nil {
		return err
	}
	sr, err := s.store.GetByID(ctx, adj.JobID)
	if err != nil {
		return err
	}
	if sr.CustomerID != customerID {
		return apperr.Forbidden("adjustment belongs to another customer")
	}

	status := repository.AdjustmentRejected
	if approve {
		status = repository.AdjustmentApproved
	}
	if err := s.store.ResolveAdjustment(ctx, adjustmentID, status, time.Now().UTC()); err != nil {
		return err
	}
	if approve {
		if err := s.store.ApplyPriceAdjustment(ctx, adj.JobID, adj.AmountCents); err != nil {
			return err
		}
	}

	s.bus.Publish(ctx, events.AdjustmentResolved{
		BaseEvent:    events.NewBaseEvent(),
		JobID:        adj.JobID,
		AdjustmentID: adjustmentID,
		Status:       status,
	})
	return nil
}

// ── Verification ──────────────────────────────────────────────────────────────

// RecordVerificationStep marks one checklist step done. The sustainability
// report step starts the 48h auto-release clock and schedules the check.
func (s *Service) RecordVerificationStep(ctx context.Context, jobID, haulerID uuid.UUID, step string) error {
	if !isKnownStep(step) {
		return apperr.Validation("unknown verification step: " + step)
	}
	sr, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.authorizeHauler(ctx, sr, haulerID); err != nil {
		return err
	}
	if sr.Status != domain.StatusInProgress && sr.Status != domain.StatusCompleted {
		return apperr.Precondition("verification steps require an active or completed job")
	}

	var reportAt *time.Time
	if step == verification.StepSustainabilityReport {
		now := time.Now().UTC()
		reportAt = &now
	}
	if err := s.store.RecordStep(ctx, jobID, step, reportAt); err != nil {
		return err
	}
	if reportAt != nil {
		releaseAt := reportAt.Add(verification.AutoReleaseAfter)
		if err := s.tasks.ScheduleAutoRelease(ctx, jobID, releaseAt); err != nil {
			// The reconciliation sweep will still catch it; scheduling is
			// an optimization, not the source of truth.
			s.log.Error("schedule_auto_release_failed", "job_id", jobID.String(), "error", err.Error())
		}
	}
	return nil
}

// ConfirmCompletion is the customer's sign-off. It releases the payment
// hold immediately rather than waiting out the 48 hours.
func (s *Service) ConfirmCompletion(ctx context.Context, jobID, customerID uuid.UUID) error {
	sr, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if sr.CustomerID != customerID {
		return apperr.Forbidden("job belongs to another customer")
	}
	if err := s.store.ConfirmByCustomer(ctx, jobID, time.Now().UTC()); err != nil {
		return err
	}
	if sr.Status == domain.StatusCompleted {
		if err := s.tasks.EnqueueSettlement(ctx, jobID); err != nil {
			s.log.Error("enqueue_settlement_failed", "job_id", jobID.String(), "error", err.Error())
		}
	}
	return nil
}

func isKnownStep(step string) bool {
	for _, s := range verification.RequiredSteps {
		if s == step {
			return true
		}
	}
	return false
}

// ── Completion & cancellation ─────────────────────────────────────────────────

// Complete runs the completion guards and, when they pass, transitions the
// job and hands off to settlement. Guards are all-or-nothing: any failure
// returns a typed precondition error and leaves every record untouched.
func (s *Service) Complete(ctx context.Context, jobID, haulerID uuid.UUID) error {
	sr, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.authorizeHauler(ctx, sr, haulerID); err != nil {
		return err
	}
	if sr.Status != domain.StatusInProgress {
		return apperr.Precondition("job is not in progress")
	}

	completion, err := s.store.GetCompletion(ctx, jobID)
	if err != nil {
		return err
	}
	if !completion.WorkCompleted {
		return apperr.Precondition("work has not been marked finished")
	}

	pending, err := s.store.CountPendingAdjustments(ctx, jobID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return apperr.Precondition("pending price adjustments must be resolved first")
	}

	canRelease := true
	if verification.Required(sr.ServiceType) {
		ev, err := s.gate.Evaluate(ctx, jobID)
		if err != nil {
			return err
		}
		if !ev.CanComplete {
			return apperr.Precondition("verification checklist is incomplete").
				WithDetails(map[string]any{"missingSteps": ev.MissingSteps})
		}
		canRelease = ev.CanReleasePayment
	}

	if err := s.store.MarkCompleted(ctx, jobID, time.Now().UTC()); err != nil {
		return err
	}
	s.log.Transition(jobID.String(), string(domain.StatusInProgress), string(domain.StatusCompleted))
	s.bus.Publish(ctx, events.JobCompleted{
		BaseEvent:  events.NewBaseEvent(),
		JobID:      jobID,
		CustomerID: sr.CustomerID,
		HaulerID:   haulerID,
		FinalCents: sr.LivePriceCents,
	})

	if !canRelease {
		// Administrative completion: the job is done but funds wait for
		// the customer confirmation or the 48h auto-release.
		return nil
	}
	if _, err := s.settler.Settle(ctx, jobID); err != nil {
		// Completion already happened and must not be rolled back. Queue a
		// retry and let reconciliation report it meanwhile.
		s.log.Error("settlement_failed", "job_id", jobID.String(), "error", err.Error())
		if enqErr := s.tasks.EnqueueSettlement(ctx, jobID); enqErr != nil {
			s.log.Error("enqueue_settlement_failed", "job_id", jobID.String(), "error", enqErr.Error())
		}
	}
	return nil
}

// Cancel aborts a job before completion and synchronously releases the
// customer's authorization hold.
func (s *Service) Cancel(ctx context.Context, jobID, actorID uuid.UUID, reason string) error {
	sr, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if sr.CustomerID != actorID {
		if err := s.authorizeHauler(ctx, sr, actorID); err != nil {
			return apperr.Forbidden("only the customer or assigned crew can cancel")
		}
	}
	if domain.IsTerminal(sr.Status) {
		return apperr.Conflict("job is already " + string(sr.Status))
	}

	if sr.PaymentStatus == domain.PaymentAuthorized && sr.PaymentIntentID != nil {
		if err := s.gateway.CancelIntent(ctx, *sr.PaymentIntentID); err != nil {
			if gerr, ok := err.(*payments.Error); ok && gerr.Retryable() {
				return apperr.Unavailable("payment hold could not be released, try again")
			}
			// Non-retryable void failure (already voided / expired hold):
			// proceed, the hold is not chargeable anyway.
			s.log.GatewayError("cancel_intent", string(payments.CategoryOf(err)), err)
		}
		// Record the void so the capture claim can never match this job. A
		// conflict here means settlement grabbed the payment concurrently;
		// the cancel loses.
		if err := s.store.UpdatePaymentStatus(ctx, jobID, domain.PaymentAuthorized, domain.PaymentVoided); err != nil {
			return err
		}
	}

	if err := s.store.MarkCancelled(ctx, jobID, sr.Status, reason, time.Now().UTC()); err != nil {
		return err
	}
	s.log.Transition(jobID.String(), string(sr.Status), string(domain.StatusCancelled))
	s.bus.Publish(ctx, events.JobCancelled{
		BaseEvent:  events.NewBaseEvent(),
		JobID:      jobID,
		CustomerID: sr.CustomerID,
		Reason:     reason,
	})
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// JobDetail aggregates everything a job page shows.
type JobDetail struct {
	Request     *repository.ServiceRequest  `json:"request"`
	Crew        []repository.CrewAssignment `json:"crew"`
	Adjustments []repository.JobAdjustment  `json:"adjustments"`
	Gate        *verification.Evaluation    `json:"verification,omitempty"`
}

func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*JobDetail, error) {
	sr, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignments(ctx, jobID)
	if err != nil {
		return nil, err
	}
	adjustments, err := s.store.ListAdjustments(ctx, jobID)
	if err != nil {
		return nil, err
	}

	detail := &JobDetail{Request: sr, Crew: assignments, Adjustments: adjustments}
	if verification.Required(sr.ServiceType) {
		ev, err := s.gate.Evaluate(ctx, jobID)
		if err != nil {
			return nil, err
		}
		detail.Gate = &ev
	}
	return detail, nil
}

func (s *Service) ListCustomerJobs(ctx context.Context, customerID uuid.UUID, limit int) ([]repository.ServiceRequest, error) {
	return s.store.ListByCustomer(ctx, customerID, limit)
}

// ListJobsByStatus backs the admin ops view of jobs in one lifecycle state.
func (s *Service) ListJobsByStatus(ctx context.Context, status domain.Status, limit int) ([]repository.ServiceRequest, error) {
	return s.store.ListByStatus(ctx, status, limit)
}

// ListStuckSettlements backs the admin reconciliation view.
func (s *Service) ListStuckSettlements(ctx context.Context, limit int) ([]repository.ServiceRequest, error) {
	return s.store.ListStuckSettlements(ctx, limit)
}

// RetrySettlement re-runs settlement for a completed job. The orchestrator's
// guard and claim make this safe to call at any time.
func (s *Service) RetrySettlement(ctx context.Context, jobID uuid.UUID) (settlement.Result, error) {
	sr, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return settlement.Result{}, err
	}
	if sr.Status != domain.StatusCompleted {
		return settlement.Result{}, apperr.Precondition("settlement requires a completed job")
	}
	return s.settler.Settle(ctx, jobID)
}

// mapGatewayError translates payment failures into the app error taxonomy:
// declines and bad requests are the caller's problem, everything transient
// is a retryable unavailability.
func mapGatewayError(op string, err error) error {
	gerr, ok := err.(*payments.Error)
	if !ok {
		return apperr.Wrap(apperr.KindUnavailable, "payment gateway unreachable", err).WithOp(op)
	}
	switch gerr.Category {
	case payments.CategoryDeclined:
		return apperr.Wrap(apperr.KindBadRequest, "payment was declined", err).WithOp(op)
	case payments.CategoryInvalidRequest:
		return apperr.Wrap(apperr.KindBadRequest, "payment request rejected", err).WithOp(op)
	default:
		return apperr.Wrap(apperr.KindUnavailable, "payment gateway unavailable", err).WithOp(op)
	}
}
