package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"haulhub_backend/internal/jobs/domain"
	"haulhub_backend/internal/jobs/repository"
	"haulhub_backend/internal/jobs/settlement"
	"haulhub_backend/internal/jobs/verification"
	"haulhub_backend/internal/payments"
	"haulhub_backend/internal/pricing"
	"haulhub_backend/platform/apperr"
	platformevents "haulhub_backend/platform/events"
	"haulhub_backend/platform/logger"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

// stubJobStore embeds the Store interface and overrides only what each test
// exercises; an unexpected call panics on the nil interface.
type stubJobStore struct {
	Store

	request        *repository.ServiceRequest
	completion     *repository.JobCompletion
	billing        *repository.CustomerBilling
	pendingAdj     int
	created        *repository.ServiceRequest
	createErr      error
	cancelledFrom  domain.Status
	completedAt    *time.Time
	confirmedAt    *time.Time
	appliedDelta   int64
	resolved       map[uuid.UUID]string
	adjustment     *repository.JobAdjustment
	recordedSteps  []string
	recordedReport *time.Time
}

func (s *stubJobStore) GetByID(_ context.Context, _ uuid.UUID) (*repository.ServiceRequest, error) {
	cp := *s.request
	return &cp, nil
}

func (s *stubJobStore) Create(_ context.Context, sr *repository.ServiceRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = sr
	return nil
}

func (s *stubJobStore) GetCustomerBilling(_ context.Context, _ uuid.UUID) (*repository.CustomerBilling, error) {
	return s.billing, nil
}

func (s *stubJobStore) CountOpenByArea(_ context.Context, _, _, _ float64) (int, error) {
	return 0, nil
}

func (s *stubJobStore) UpdateStatusCAS(_ context.Context, _ uuid.UUID, from, to domain.Status) error {
	if s.request.Status != from {
		return apperr.Conflict("request is no longer " + string(from))
	}
	s.request.Status = to
	return nil
}

func (s *stubJobStore) MarkCompleted(_ context.Context, _ uuid.UUID, at time.Time) error {
	if s.request.Status != domain.StatusInProgress {
		return apperr.Conflict("request is no longer in progress")
	}
	s.request.Status = domain.StatusCompleted
	s.completedAt = &at
	return nil
}

func (s *stubJobStore) MarkCancelled(_ context.Context, _ uuid.UUID, from domain.Status, _ string, _ time.Time) error {
	if s.request.Status != from {
		return apperr.Conflict("request is no longer " + string(from))
	}
	s.request.Status = domain.StatusCancelled
	s.cancelledFrom = from
	return nil
}

func (s *stubJobStore) UpdatePaymentStatus(_ context.Context, _ uuid.UUID, from, to domain.PaymentStatus) error {
	if s.request.PaymentStatus != from {
		return apperr.Conflict("payment is no longer " + string(from))
	}
	s.request.PaymentStatus = to
	return nil
}

func (s *stubJobStore) EnsureCompletion(_ context.Context, jobID uuid.UUID, startedAt time.Time) error {
	if s.completion == nil {
		s.completion = &repository.JobCompletion{JobID: jobID, StartedAt: &startedAt}
	}
	return nil
}

func (s *stubJobStore) GetCompletion(_ context.Context, _ uuid.UUID) (*repository.JobCompletion, error) {
	if s.completion == nil {
		return nil, apperr.NotFound("job completion not found")
	}
	return s.completion, nil
}

func (s *stubJobStore) MarkWorkCompleted(_ context.Context, _ uuid.UUID, at time.Time) error {
	s.completion.WorkCompleted = true
	s.completion.FinishedAt = &at
	return nil
}

func (s *stubJobStore) CountPendingAdjustments(_ context.Context, _ uuid.UUID) (int, error) {
	return s.pendingAdj, nil
}

func (s *stubJobStore) CreateAdjustment(_ context.Context, a *repository.JobAdjustment) error {
	s.adjustment = a
	return nil
}

func (s *stubJobStore) GetAdjustment(_ context.Context, _ uuid.UUID) (*repository.JobAdjustment, error) {
	return s.adjustment, nil
}

func (s *stubJobStore) ResolveAdjustment(_ context.Context, id uuid.UUID, status string, _ time.Time) error {
	if s.resolved == nil {
		s.resolved = make(map[uuid.UUID]string)
	}
	s.resolved[id] = status
	return nil
}

func (s *stubJobStore) ApplyPriceAdjustment(_ context.Context, _ uuid.UUID, delta int64) error {
	s.appliedDelta = delta
	s.request.LivePriceCents += delta
	return nil
}

func (s *stubJobStore) RecordStep(_ context.Context, _ uuid.UUID, step string, reportAt *time.Time) error {
	s.recordedSteps = append(s.recordedSteps, step)
	if reportAt != nil {
		s.recordedReport = reportAt
	}
	return nil
}

func (s *stubJobStore) ConfirmByCustomer(_ context.Context, _ uuid.UUID, at time.Time) error {
	s.confirmedAt = &at
	return nil
}

func (s *stubJobStore) IsAcceptedCrewMember(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubJobStore) SetCustomerGatewayID(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

type stubSvcGateway struct {
	payments.Gateway

	authorizeErr  error
	authorizedAmt int64
	cancelCalls   int
	cancelErr     error
}

func (g *stubSvcGateway) Authorize(_ context.Context, p payments.AuthorizeParams) (*payments.Intent, error) {
	if g.authorizeErr != nil {
		return nil, g.authorizeErr
	}
	g.authorizedAmt = p.AmountCents
	return &payments.Intent{ID: "pi_new", Status: "requires_capture", AmountCents: p.AmountCents}, nil
}

func (g *stubSvcGateway) CancelIntent(_ context.Context, _ string) error {
	g.cancelCalls++
	return g.cancelErr
}

type stubMatcher struct{ available int }

func (m *stubMatcher) AvailableNearby(_ context.Context, _, _ float64) (int, error) {
	return m.available, nil
}

type stubSettler struct {
	result settlement.Result
	err    error
	calls  int
}

func (s *stubSettler) Settle(_ context.Context, _ uuid.UUID) (settlement.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubTasks struct {
	autoReleaseAt      *time.Time
	settlementEnqueues int
}

func (t *stubTasks) ScheduleAutoRelease(_ context.Context, _ uuid.UUID, at time.Time) error {
	t.autoReleaseAt = &at
	return nil
}

func (t *stubTasks) EnqueueSettlement(_ context.Context, _ uuid.UUID) error {
	t.settlementEnqueues++
	return nil
}

type stubSvcGate struct{ ev verification.Evaluation }

func (g *stubSvcGate) Evaluate(_ context.Context, _ uuid.UUID) (verification.Evaluation, error) {
	return g.ev, nil
}

type stubPricingCfg struct{}

func (stubPricingCfg) GetProtectionFeeRate() float64 { return 0.07 }
func (stubPricingCfg) GetSurgeCap() float64          { return 2.5 }

// ── Fixtures ──────────────────────────────────────────────────────────────────

type fixture struct {
	store   *stubJobStore
	gateway *stubSvcGateway
	settler *stubSettler
	tasks   *stubTasks
	gate    *stubSvcGate
	svc     *Service
}

func newFixture(store *stubJobStore) *fixture {
	f := &fixture{
		store:   store,
		gateway: &stubSvcGateway{},
		settler: &stubSettler{result: settlement.Result{Outcome: settlement.OutcomeSettled}},
		tasks:   &stubTasks{},
		gate:    &stubSvcGate{ev: verification.Evaluation{CanComplete: true, CanReleasePayment: true}},
	}
	log := logger.New("test")
	f.svc = New(store, f.gateway, nil, f.settler, f.gate, &stubMatcher{available: 5}, f.tasks,
		stubPricingCfg{}, platformevents.NewInMemoryBus(log), log)
	return f
}

func inProgressRequest(haulerID uuid.UUID) *repository.ServiceRequest {
	intentID := "pi_live"
	return &repository.ServiceRequest{
		ID:                     uuid.New(),
		CustomerID:             uuid.New(),
		ServiceType:            "furniture_move",
		Status:                 domain.StatusInProgress,
		PaymentStatus:          domain.PaymentAuthorized,
		AssignedHaulerID:       &haulerID,
		LaborCrewSize:          1,
		BaseServicePriceCents:  10000,
		LivePriceCents:         10700,
		GuaranteedCeilingCents: 13375,
		PaymentIntentID:        &intentID,
	}
}

// ── Creation ──────────────────────────────────────────────────────────────────

func TestCreateAuthorizesCeiling(t *testing.T) {
	gatewayID := "cus_1"
	store := &stubJobStore{
		billing: &repository.CustomerBilling{CustomerID: uuid.New(), Email: "c@example.com", GatewayCustomerID: &gatewayID},
	}
	f := newFixture(store)

	sr, err := f.svc.Create(context.Background(), uuid.New(), CreateInput{
		ServiceType: pricing.ServiceFurnitureMove,
		LoadSize:    pricing.LoadMinimum,
		CrewSize:    2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sr.Status != domain.StatusMatching {
		t.Fatalf("status = %s, want matching", sr.Status)
	}
	if sr.PaymentStatus != domain.PaymentAuthorized || sr.PaymentIntentID == nil {
		t.Fatalf("payment not authorized: %+v", sr)
	}
	wantCeiling := pricing.RoundCents(float64(sr.LivePriceCents) * 1.25)
	if f.gateway.authorizedAmt != wantCeiling || sr.GuaranteedCeilingCents != wantCeiling {
		t.Fatalf("authorized %d ceiling %d, want %d", f.gateway.authorizedAmt, sr.GuaranteedCeilingCents, wantCeiling)
	}
	if sr.LivePriceCents <= sr.BaseServicePriceCents {
		t.Fatalf("live price %d must include the protection fee over base %d", sr.LivePriceCents, sr.BaseServicePriceCents)
	}
	if store.created == nil {
		t.Fatal("request was not persisted")
	}
}

func TestCreateDeclinedCardCreatesNothing(t *testing.T) {
	gatewayID := "cus_1"
	store := &stubJobStore{
		billing: &repository.CustomerBilling{CustomerID: uuid.New(), Email: "c@example.com", GatewayCustomerID: &gatewayID},
	}
	f := newFixture(store)
	f.gateway.authorizeErr = &payments.Error{Category: payments.CategoryDeclined, Code: "card_declined", Message: "declined"}

	_, err := f.svc.Create(context.Background(), uuid.New(), CreateInput{ServiceType: pricing.ServiceFurnitureMove})
	if apperr.GetKind(err) != apperr.KindBadRequest {
		t.Fatalf("err = %v, want bad request", err)
	}
	if store.created != nil {
		t.Fatal("declined authorization must not create a request")
	}
}

func TestCreateReleasesHoldOnPersistFailure(t *testing.T) {
	gatewayID := "cus_1"
	store := &stubJobStore{
		billing:   &repository.CustomerBilling{CustomerID: uuid.New(), Email: "c@example.com", GatewayCustomerID: &gatewayID},
		createErr: apperr.Internal("insert failed"),
	}
	f := newFixture(store)

	_, err := f.svc.Create(context.Background(), uuid.New(), CreateInput{ServiceType: pricing.ServiceFurnitureMove})
	if err == nil {
		t.Fatal("expected create to fail")
	}
	if f.gateway.cancelCalls != 1 {
		t.Fatalf("orphaned hold cancels = %d, want 1", f.gateway.cancelCalls)
	}
}

// ── Completion guards ─────────────────────────────────────────────────────────

func TestCompleteRequiresInProgress(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	req.Status = domain.StatusAssigned
	f := newFixture(&stubJobStore{request: req})

	err := f.svc.Complete(context.Background(), req.ID, haulerID)
	if apperr.GetKind(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want precondition", err)
	}
}

func TestCompleteRequiresFinishedWork(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	store := &stubJobStore{request: req, completion: &repository.JobCompletion{JobID: req.ID}}
	f := newFixture(store)

	err := f.svc.Complete(context.Background(), req.ID, haulerID)
	if apperr.GetKind(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want precondition", err)
	}
	if req.Status != domain.StatusInProgress {
		t.Fatalf("status changed to %s, guards must be all-or-nothing", req.Status)
	}
	if f.settler.calls != 0 {
		t.Fatal("settlement must not run on a failed guard")
	}
}

func TestCompleteBlockedByPendingAdjustments(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	store := &stubJobStore{
		request:    req,
		completion: &repository.JobCompletion{JobID: req.ID, WorkCompleted: true},
		pendingAdj: 1,
	}
	f := newFixture(store)

	err := f.svc.Complete(context.Background(), req.ID, haulerID)
	if apperr.GetKind(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want precondition", err)
	}
}

func TestCompleteBlockedByVerification(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	req.ServiceType = "junk_removal"
	store := &stubJobStore{
		request:    req,
		completion: &repository.JobCompletion{JobID: req.ID, WorkCompleted: true},
	}
	f := newFixture(store)
	f.gate.ev = verification.Evaluation{
		CanComplete:  false,
		MissingSteps: []string{verification.StepAfterPhotos, verification.StepSustainabilityReport},
	}

	err := f.svc.Complete(context.Background(), req.ID, haulerID)
	if apperr.GetKind(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want precondition", err)
	}
	var appErr *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		appErr = e
	} else {
		t.Fatalf("err type %T, want *apperr.Error", err)
	}
	details, ok := appErr.Details.(map[string]any)
	if !ok {
		t.Fatalf("details = %#v, want missingSteps map", appErr.Details)
	}
	steps, _ := details["missingSteps"].([]string)
	if len(steps) != 2 || steps[0] != verification.StepAfterPhotos {
		t.Fatalf("missingSteps = %v, want the unmet steps", steps)
	}
}

func TestCompleteSettlesImmediately(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	store := &stubJobStore{
		request:    req,
		completion: &repository.JobCompletion{JobID: req.ID, WorkCompleted: true},
	}
	f := newFixture(store)

	if err := f.svc.Complete(context.Background(), req.ID, haulerID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if req.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", req.Status)
	}
	if f.settler.calls != 1 {
		t.Fatalf("settle calls = %d, want 1", f.settler.calls)
	}
}

func TestCompleteAdministrativeHoldSkipsSettlement(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	req.ServiceType = "junk_removal"
	store := &stubJobStore{
		request:    req,
		completion: &repository.JobCompletion{JobID: req.ID, WorkCompleted: true},
	}
	f := newFixture(store)
	f.gate.ev = verification.Evaluation{CanComplete: true, CanReleasePayment: false, HoursRemaining: 20}

	if err := f.svc.Complete(context.Background(), req.ID, haulerID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if req.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed (admin-complete allowed)", req.Status)
	}
	if f.settler.calls != 0 {
		t.Fatal("settlement must not run while release is held")
	}
}

func TestCompleteByStranger(t *testing.T) {
	req := inProgressRequest(uuid.New())
	f := newFixture(&stubJobStore{request: req})

	err := f.svc.Complete(context.Background(), req.ID, uuid.New())
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

// ── Adjustments ───────────────────────────────────────────────────────────────

func TestProposeAdjustmentCeiling(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	f := newFixture(&stubJobStore{request: req})

	// Headroom is 13375 - 10700 = 2675.
	if _, err := f.svc.ProposeAdjustment(context.Background(), req.ID, haulerID, "extra flight of stairs", 2675); err != nil {
		t.Fatalf("within ceiling: %v", err)
	}
	_, err := f.svc.ProposeAdjustment(context.Background(), req.ID, haulerID, "piano", 2676)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation (over ceiling)", err)
	}
}

func TestResolveAdjustmentApproveRaisesPrice(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	adj := &repository.JobAdjustment{
		ID:          uuid.New(),
		JobID:       req.ID,
		HaulerID:    haulerID,
		AmountCents: 1500,
		Status:      repository.AdjustmentPending,
	}
	store := &stubJobStore{request: req, adjustment: adj}
	f := newFixture(store)

	if err := f.svc.ResolveAdjustment(context.Background(), adj.ID, req.CustomerID, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.resolved[adj.ID] != repository.AdjustmentApproved {
		t.Fatalf("resolution = %s, want approved", store.resolved[adj.ID])
	}
	if store.appliedDelta != 1500 {
		t.Fatalf("applied delta = %d, want 1500", store.appliedDelta)
	}
}

func TestResolveAdjustmentWrongCustomer(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	adj := &repository.JobAdjustment{ID: uuid.New(), JobID: req.ID, AmountCents: 500, Status: repository.AdjustmentPending}
	f := newFixture(&stubJobStore{request: req, adjustment: adj})

	err := f.svc.ResolveAdjustment(context.Background(), adj.ID, uuid.New(), true)
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

// ── Verification & cancellation ───────────────────────────────────────────────

func TestRecordReportStepSchedulesAutoRelease(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	req.ServiceType = "junk_removal"
	store := &stubJobStore{request: req}
	f := newFixture(store)

	before := time.Now().UTC()
	if err := f.svc.RecordVerificationStep(context.Background(), req.ID, haulerID, verification.StepSustainabilityReport); err != nil {
		t.Fatalf("record step: %v", err)
	}
	if store.recordedReport == nil {
		t.Fatal("report timestamp was not persisted")
	}
	if f.tasks.autoReleaseAt == nil {
		t.Fatal("auto-release was not scheduled")
	}
	gap := f.tasks.autoReleaseAt.Sub(before)
	if gap < verification.AutoReleaseAfter || gap > verification.AutoReleaseAfter+time.Minute {
		t.Fatalf("auto-release in %v, want ~%v", gap, verification.AutoReleaseAfter)
	}
}

func TestRecordUnknownStep(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	f := newFixture(&stubJobStore{request: req})

	err := f.svc.RecordVerificationStep(context.Background(), req.ID, haulerID, "selfie")
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestConfirmCompletionEnqueuesSettlement(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	req.Status = domain.StatusCompleted
	store := &stubJobStore{request: req}
	f := newFixture(store)

	if err := f.svc.ConfirmCompletion(context.Background(), req.ID, req.CustomerID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if store.confirmedAt == nil {
		t.Fatal("confirmation was not persisted")
	}
	if f.tasks.settlementEnqueues != 1 {
		t.Fatalf("settlement enqueues = %d, want 1", f.tasks.settlementEnqueues)
	}
}

func TestCancelVoidsAuthorization(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	store := &stubJobStore{request: req}
	f := newFixture(store)

	if err := f.svc.Cancel(context.Background(), req.ID, req.CustomerID, "changed my mind"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.gateway.cancelCalls != 1 {
		t.Fatalf("intent cancels = %d, want 1", f.gateway.cancelCalls)
	}
	if req.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", req.Status)
	}
	if req.PaymentStatus != domain.PaymentVoided {
		t.Fatalf("payment status = %s, want voided", req.PaymentStatus)
	}
}

func TestCancelCompletedJobRejected(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	req.Status = domain.StatusCompleted
	f := newFixture(&stubJobStore{request: req})

	err := f.svc.Cancel(context.Background(), req.ID, req.CustomerID, "")
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestCancelBlockedWhenVoidUnavailable(t *testing.T) {
	haulerID := uuid.New()
	req := inProgressRequest(haulerID)
	store := &stubJobStore{request: req}
	f := newFixture(store)
	f.gateway.cancelErr = &payments.Error{Category: payments.CategoryConnection, Message: "timeout"}

	err := f.svc.Cancel(context.Background(), req.ID, req.CustomerID, "")
	if apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if req.Status == domain.StatusCancelled {
		t.Fatal("job must not cancel while the hold release is pending")
	}
}
