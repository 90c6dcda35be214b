// Package crew assembles multi-pro crews on open service requests.
package crew

import (
	"context"
	"time"

	"github.com/google/uuid"

	"haulhub_backend/internal/events"
	"haulhub_backend/internal/jobs/domain"
	"haulhub_backend/internal/jobs/repository"
	"haulhub_backend/platform/logger"
)

// Outcome reports what an accept attempt achieved.
type Outcome struct {
	Accepted bool
	// CrewFull is true when this accept filled the last slot and the
	// request moved to assigned.
	CrewFull bool
}

// Coordinator hands out crew slots. All contention is resolved by the
// store's conditional increment, so the coordinator itself holds no locks.
type Coordinator struct {
	store repository.CrewStore
	bus   events.Bus
	log   *logger.Logger
}

func NewCoordinator(store repository.CrewStore, bus events.Bus, log *logger.Logger) *Coordinator {
	return &Coordinator{store: store, bus: bus, log: log}
}

// AttemptAccept claims one slot for the hauler. When several haulers race
// for the last slot, the conditional increment admits exactly one; the rest
// get a conflict ("slot no longer available") and no assignment row. The
// claim and the assignment insert are one transaction, so a duplicate accept
// or a failed insert leaves the count untouched.
func (c *Coordinator) AttemptAccept(ctx context.Context, jobID, haulerID uuid.UUID) (Outcome, error) {
	assignment := &repository.CrewAssignment{
		ID:         uuid.New(),
		JobID:      jobID,
		HaulerID:   haulerID,
		Status:     repository.AssignmentAccepted,
		AcceptedAt: time.Now().UTC(),
	}
	count, size, err := c.store.ClaimSlotAndAssign(ctx, assignment)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Accepted: true}
	if count < size {
		return out, nil
	}
	out.CrewFull = true

	// Crew lead is the first accept, not this (last) one.
	leadID, err := c.store.FirstAcceptedHauler(ctx, jobID)
	if err != nil {
		return out, err
	}
	if err := c.store.SetAssignedHauler(ctx, jobID, leadID); err != nil {
		return out, err
	}
	if err := c.transitionToAssigned(ctx, jobID); err != nil {
		return out, err
	}

	c.log.Transition(jobID.String(), string(domain.StatusPending), string(domain.StatusAssigned))
	c.bus.Publish(ctx, events.CrewFull{
		BaseEvent:    events.NewBaseEvent(),
		JobID:        jobID,
		CrewSize:     size,
		LeadHaulerID: leadID,
	})
	return out, nil
}

// transitionToAssigned handles both entry states; crew jobs normally sit in
// pending but a single-slot job can fill straight out of matching.
func (c *Coordinator) transitionToAssigned(ctx context.Context, jobID uuid.UUID) error {
	err := c.store.UpdateStatusCAS(ctx, jobID, domain.StatusPending, domain.StatusAssigned)
	if err == nil {
		return nil
	}
	return c.store.UpdateStatusCAS(ctx, jobID, domain.StatusMatching, domain.StatusAssigned)
}
