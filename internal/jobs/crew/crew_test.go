package crew

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"haulhub_backend/internal/jobs/domain"
	"haulhub_backend/internal/jobs/repository"
	"haulhub_backend/platform/apperr"
	platformevents "haulhub_backend/platform/events"
	"haulhub_backend/platform/logger"
)

// stubCrewStore reproduces the database's behavior in memory: the slot claim
// and the assignment insert happen atomically under one lock, matching the
// repository's single transaction.
type stubCrewStore struct {
	mu            sync.Mutex
	status        domain.Status
	acceptedCount int
	crewSize      int
	assignments   []repository.CrewAssignment
	assignedTo    *uuid.UUID
	claimErr      error
}

func (s *stubCrewStore) ClaimSlotAndAssign(_ context.Context, a *repository.CrewAssignment) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		err := s.claimErr
		s.claimErr = nil
		return 0, 0, err
	}
	open := s.status == domain.StatusMatching || s.status == domain.StatusPending
	if !open || s.acceptedCount >= s.crewSize {
		return 0, 0, apperr.Conflict("slot no longer available")
	}
	for _, existing := range s.assignments {
		if existing.HaulerID == a.HaulerID {
			return 0, 0, apperr.Conflict("you already accepted this job")
		}
	}
	s.acceptedCount++
	s.assignments = append(s.assignments, *a)
	return s.acceptedCount, s.crewSize, nil
}

func (s *stubCrewStore) FirstAcceptedHauler(_ context.Context, _ uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.assignments) == 0 {
		return uuid.Nil, apperr.NotFound("no accepted crew assignments")
	}
	first := s.assignments[0]
	for _, a := range s.assignments[1:] {
		if a.AcceptedAt.Before(first.AcceptedAt) {
			first = a
		}
	}
	return first.HaulerID, nil
}

func (s *stubCrewStore) SetAssignedHauler(_ context.Context, _ uuid.UUID, haulerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignedTo = &haulerID
	return nil
}

func (s *stubCrewStore) UpdateStatusCAS(_ context.Context, _ uuid.UUID, from, to domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != from {
		return apperr.Conflict("request is no longer " + string(from))
	}
	s.status = to
	return nil
}

func (s *stubCrewStore) ListAssignments(_ context.Context, _ uuid.UUID) ([]repository.CrewAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.CrewAssignment, len(s.assignments))
	copy(out, s.assignments)
	return out, nil
}

func newTestCoordinator(store repository.CrewStore) *Coordinator {
	return NewCoordinator(store, platformevents.NewInMemoryBus(logger.New("test")), logger.New("test"))
}

func TestAttemptAcceptFillsCrew(t *testing.T) {
	store := &stubCrewStore{status: domain.StatusPending, crewSize: 2}
	coord := newTestCoordinator(store)
	jobID := uuid.New()

	first, err := coord.AttemptAccept(context.Background(), jobID, uuid.New())
	if err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if !first.Accepted || first.CrewFull {
		t.Fatalf("first accept outcome = %+v, want accepted, not full", first)
	}

	second, err := coord.AttemptAccept(context.Background(), jobID, uuid.New())
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if !second.Accepted || !second.CrewFull {
		t.Fatalf("second accept outcome = %+v, want accepted and full", second)
	}
	if store.status != domain.StatusAssigned {
		t.Fatalf("status = %s, want assigned", store.status)
	}
}

func TestAttemptAcceptLeadIsFirstAccepted(t *testing.T) {
	store := &stubCrewStore{status: domain.StatusPending, crewSize: 2}
	coord := newTestCoordinator(store)
	jobID := uuid.New()
	firstHauler := uuid.New()
	secondHauler := uuid.New()

	if _, err := coord.AttemptAccept(context.Background(), jobID, firstHauler); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	// Force a strictly later timestamp for the closer.
	time.Sleep(2 * time.Millisecond)
	if _, err := coord.AttemptAccept(context.Background(), jobID, secondHauler); err != nil {
		t.Fatalf("second accept: %v", err)
	}

	if store.assignedTo == nil || *store.assignedTo != firstHauler {
		t.Fatalf("assigned hauler = %v, want first accepted %s", store.assignedTo, firstHauler)
	}
}

func TestAttemptAcceptRejectsWhenFull(t *testing.T) {
	store := &stubCrewStore{status: domain.StatusAssigned, crewSize: 1, acceptedCount: 1}
	coord := newTestCoordinator(store)

	_, err := coord.AttemptAccept(context.Background(), uuid.New(), uuid.New())
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestAttemptAcceptRejectsDuplicateHauler(t *testing.T) {
	store := &stubCrewStore{status: domain.StatusPending, crewSize: 2}
	coord := newTestCoordinator(store)
	jobID := uuid.New()
	haulerID := uuid.New()

	if _, err := coord.AttemptAccept(context.Background(), jobID, haulerID); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	_, err := coord.AttemptAccept(context.Background(), jobID, haulerID)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
	if store.acceptedCount != 1 {
		t.Fatalf("accepted count = %d, duplicate accept must not consume a slot", store.acceptedCount)
	}
}

// TestAttemptAcceptFailureKeepsSlotFree: a failed accept must leave the
// count untouched, so the next hauler can still fill the crew.
func TestAttemptAcceptFailureKeepsSlotFree(t *testing.T) {
	store := &stubCrewStore{
		status:   domain.StatusPending,
		crewSize: 1,
		claimErr: apperr.Internal("insert failed"),
	}
	coord := newTestCoordinator(store)
	jobID := uuid.New()

	if _, err := coord.AttemptAccept(context.Background(), jobID, uuid.New()); err == nil {
		t.Fatal("expected first accept to fail")
	}
	if store.acceptedCount != 0 || len(store.assignments) != 0 {
		t.Fatalf("count=%d assignments=%d after failed accept, slot leaked",
			store.acceptedCount, len(store.assignments))
	}

	out, err := coord.AttemptAccept(context.Background(), jobID, uuid.New())
	if err != nil {
		t.Fatalf("retry accept: %v", err)
	}
	if !out.Accepted || !out.CrewFull {
		t.Fatalf("retry outcome = %+v, want accepted and full", out)
	}
}

// TestAttemptAcceptRace floods a crew of size N with N+k concurrent accepts.
// Exactly N must win, the rest must get a conflict, and exactly one winner
// observes CrewFull.
func TestAttemptAcceptRace(t *testing.T) {
	const crewSize = 3
	const attempts = crewSize + 7

	store := &stubCrewStore{status: domain.StatusPending, crewSize: crewSize}
	coord := newTestCoordinator(store)
	jobID := uuid.New()

	var mu sync.Mutex
	var wins, conflicts, fullSignals int

	g := new(errgroup.Group)
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			out, err := coord.AttemptAccept(context.Background(), jobID, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && out.Accepted:
				wins++
				if out.CrewFull {
					fullSignals++
				}
			case apperr.GetKind(err) == apperr.KindConflict:
				conflicts++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected accept error: %v", err)
	}

	if wins != crewSize {
		t.Fatalf("winners = %d, want %d", wins, crewSize)
	}
	if conflicts != attempts-crewSize {
		t.Fatalf("conflicts = %d, want %d", conflicts, attempts-crewSize)
	}
	if fullSignals != 1 {
		t.Fatalf("crew-full signals = %d, want exactly 1", fullSignals)
	}
	rows, _ := store.ListAssignments(context.Background(), jobID)
	if len(rows) != crewSize {
		t.Fatalf("assignment rows = %d, want %d", len(rows), crewSize)
	}
	if store.status != domain.StatusAssigned {
		t.Fatalf("status = %s, want assigned", store.status)
	}
}
