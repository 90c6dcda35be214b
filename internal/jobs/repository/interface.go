package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"haulhub_backend/internal/jobs/domain"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// RequestReader provides read-only access to service requests.
type RequestReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]ServiceRequest, error)
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]ServiceRequest, error)
	ListStuckSettlements(ctx context.Context, limit int) ([]ServiceRequest, error)
	CountOpenByArea(ctx context.Context, lat, lng, radiusDeg float64) (int, error)
}

// RequestWriter provides lifecycle writes on service requests.
type RequestWriter interface {
	Create(ctx context.Context, sr *ServiceRequest) error
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to domain.Status) error
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkCancelled(ctx context.Context, id uuid.UUID, from domain.Status, reason string, at time.Time) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to domain.PaymentStatus) error
	SetAssignedHauler(ctx context.Context, jobID, haulerID uuid.UUID) error
	ApplyPriceAdjustment(ctx context.Context, id uuid.UUID, deltaCents int64) error
}

// SettlementStore is everything the settlement orchestrator touches.
type SettlementStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	ClaimCapture(ctx context.Context, id uuid.UUID) (bool, error)
	RecordSettlement(ctx context.Context, id uuid.UUID, rec SettlementRecord) error
	SumApprovedAdjustments(ctx context.Context, jobID uuid.UUID) (int64, error)
}

// CrewStore is everything the crew coordinator touches.
type CrewStore interface {
	ClaimSlotAndAssign(ctx context.Context, a *CrewAssignment) (int, int, error)
	FirstAcceptedHauler(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error)
	SetAssignedHauler(ctx context.Context, jobID, haulerID uuid.UUID) error
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to domain.Status) error
	ListAssignments(ctx context.Context, jobID uuid.UUID) ([]CrewAssignment, error)
}

// AdjustmentStore manages mid-job price adjustments.
type AdjustmentStore interface {
	CreateAdjustment(ctx context.Context, a *JobAdjustment) error
	GetAdjustment(ctx context.Context, id uuid.UUID) (*JobAdjustment, error)
	ResolveAdjustment(ctx context.Context, id uuid.UUID, status string, at time.Time) error
	CountPendingAdjustments(ctx context.Context, jobID uuid.UUID) (int, error)
	SumApprovedAdjustments(ctx context.Context, jobID uuid.UUID) (int64, error)
	ListAdjustments(ctx context.Context, jobID uuid.UUID) ([]JobAdjustment, error)
}

// CompletionStore tracks on-site progress rows.
type CompletionStore interface {
	EnsureCompletion(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error
	GetCompletion(ctx context.Context, jobID uuid.UUID) (*JobCompletion, error)
	MarkWorkCompleted(ctx context.Context, jobID uuid.UUID, at time.Time) error
}

// VerificationStore manages proof-of-completion records.
type VerificationStore interface {
	GetVerification(ctx context.Context, jobID uuid.UUID) (*JobVerification, error)
	RecordStep(ctx context.Context, jobID uuid.UUID, step string, reportAt *time.Time) error
	ConfirmByCustomer(ctx context.Context, jobID uuid.UUID, at time.Time) error
	MarkReleased(ctx context.Context, jobID uuid.UUID) error
}
