// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"haulhub_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Job Lifecycle Events
// =============================================================================

// JobCreated is published when a new service request enters matching.
// The matching sweep and hauler notifications consume it.
type JobCreated struct {
	BaseEvent
	JobID       uuid.UUID `json:"jobId"`
	CustomerID  uuid.UUID `json:"customerId"`
	ServiceType string    `json:"serviceType"`
	CrewSize    int       `json:"crewSize"`
	TotalCents  int64     `json:"totalCents"`
}

func (e JobCreated) EventName() string { return "jobs.created" }

// JobStarted is published when the assigned hauler marks a job in progress.
type JobStarted struct {
	BaseEvent
	JobID      uuid.UUID `json:"jobId"`
	CustomerID uuid.UUID `json:"customerId"`
	HaulerID   uuid.UUID `json:"haulerId"`
}

func (e JobStarted) EventName() string { return "jobs.started" }

// CrewFull is published when the last crew slot on a multi-pro job is filled.
type CrewFull struct {
	BaseEvent
	JobID        uuid.UUID `json:"jobId"`
	CrewSize     int       `json:"crewSize"`
	LeadHaulerID uuid.UUID `json:"leadHaulerId"`
}

func (e CrewFull) EventName() string { return "jobs.crew.full" }

// AdjustmentAdded is published when the hauler proposes an in-progress price change.
type AdjustmentAdded struct {
	BaseEvent
	JobID            uuid.UUID `json:"jobId"`
	AdjustmentID     uuid.UUID `json:"adjustmentId"`
	CustomerID       uuid.UUID `json:"customerId"`
	PriceChangeCents int64     `json:"priceChangeCents"`
	Reason           string    `json:"reason"`
}

func (e AdjustmentAdded) EventName() string { return "jobs.adjustment.added" }

// AdjustmentResolved is published when a customer or admin approves or
// declines a pending adjustment.
type AdjustmentResolved struct {
	BaseEvent
	JobID        uuid.UUID `json:"jobId"`
	AdjustmentID uuid.UUID `json:"adjustmentId"`
	Status       string    `json:"status"`
}

func (e AdjustmentResolved) EventName() string { return "jobs.adjustment.resolved" }

// JobCompleted is published when a job transitions to completed.
// Settlement may still be pending (verification hold or capture failure).
type JobCompleted struct {
	BaseEvent
	JobID      uuid.UUID `json:"jobId"`
	CustomerID uuid.UUID `json:"customerId"`
	HaulerID   uuid.UUID `json:"haulerId"`
	FinalCents int64     `json:"finalCents"`
}

func (e JobCompleted) EventName() string { return "jobs.completed" }

// JobCancelled is published when a job is cancelled pre-completion.
type JobCancelled struct {
	BaseEvent
	JobID      uuid.UUID `json:"jobId"`
	CustomerID uuid.UUID `json:"customerId"`
	Reason     string    `json:"reason,omitempty"`
}

func (e JobCancelled) EventName() string { return "jobs.cancelled" }

// PaymentCaptured is published after settlement captures the customer charge
// and records the payout split. Downstream consumers: accounting ledger,
// notifications.
type PaymentCaptured struct {
	BaseEvent
	JobID             uuid.UUID `json:"jobId"`
	CustomerID        uuid.UUID `json:"customerId"`
	HaulerID          uuid.UUID `json:"haulerId"`
	CapturedCents     int64     `json:"capturedCents"`
	PlatformFeeCents  int64     `json:"platformFeeCents"`
	HaulerPayoutCents int64     `json:"haulerPayoutCents"`
	PayoutStatus      string    `json:"payoutStatus"`
}

func (e PaymentCaptured) EventName() string { return "jobs.payment.captured" }

// CaptureFailed is published when settlement could not capture an authorized
// payment. The job stays completed; operators reconcile manually.
type CaptureFailed struct {
	BaseEvent
	JobID  uuid.UUID `json:"jobId"`
	Reason string    `json:"reason"`
}

func (e CaptureFailed) EventName() string { return "jobs.payment.capture_failed" }
