package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"haulhub_backend/internal/jobs/domain"
	"haulhub_backend/platform/apperr"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// ServiceRequest is the database model for a job.
type ServiceRequest struct {
	ID                     uuid.UUID            `db:"id"`
	CustomerID             uuid.UUID            `db:"customer_id"`
	ServiceType            string               `db:"service_type"`
	Status                 domain.Status        `db:"status"`
	PaymentStatus          domain.PaymentStatus `db:"payment_status"`
	PayoutStatus           domain.PayoutStatus  `db:"payout_status"`
	AssignedHaulerID       *uuid.UUID           `db:"assigned_hauler_id"`
	LaborCrewSize          int                  `db:"labor_crew_size"`
	CrewAcceptedCount      int                  `db:"crew_accepted_count"`
	VehicleType            string               `db:"vehicle_type"`
	LoadSize               string               `db:"load_size"`
	PickupLat              float64              `db:"pickup_lat"`
	PickupLng              float64              `db:"pickup_lng"`
	DropoffLat             *float64             `db:"dropoff_lat"`
	DropoffLng             *float64             `db:"dropoff_lng"`
	Address                string               `db:"address"`
	BaseServicePriceCents  int64                `db:"base_service_price_cents"`
	LivePriceCents         int64                `db:"live_price_cents"`
	GuaranteedCeilingCents int64                `db:"guaranteed_ceiling_cents"`
	ProtectionFeeRate      float64              `db:"protection_fee_rate"`
	SurgeMultiplier        float64              `db:"surge_multiplier"`
	PaymentIntentID        *string              `db:"payment_intent_id"`
	TransferID             *string              `db:"transfer_id"`
	CapturedCents          int64                `db:"captured_cents"`
	PlatformFeeCents       int64                `db:"platform_fee_cents"`
	HaulerPayoutCents      int64                `db:"hauler_payout_cents"`
	FailureReason          *string              `db:"failure_reason"`
	ScheduledAt            *time.Time           `db:"scheduled_at"`
	CompletedAt            *time.Time           `db:"completed_at"`
	CancelledAt            *time.Time           `db:"cancelled_at"`
	CreatedAt              time.Time            `db:"created_at"`
	UpdatedAt              time.Time            `db:"updated_at"`
}

// SettlementRecord carries the persisted outcome of a settle run.
type SettlementRecord struct {
	PaymentStatus     domain.PaymentStatus
	PayoutStatus      domain.PayoutStatus
	TransferID        *string
	CapturedCents     int64
	PlatformFeeCents  int64
	HaulerPayoutCents int64
	FailureReason     *string
}

const requestNotFoundMsg = "service request not found"

const requestColumns = `
	id, customer_id, service_type, status, payment_status, payout_status,
	assigned_hauler_id, labor_crew_size, crew_accepted_count,
	vehicle_type, load_size, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, address,
	base_service_price_cents, live_price_cents, guaranteed_ceiling_cents,
	protection_fee_rate, surge_multiplier,
	payment_intent_id, transfer_id, captured_cents, platform_fee_cents, hauler_payout_cents,
	failure_reason, scheduled_at, completed_at, cancelled_at, created_at, updated_at`

// ── Repository ────────────────────────────────────────────────────────────────

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRequest(row pgx.Row) (*ServiceRequest, error) {
	var sr ServiceRequest
	err := row.Scan(
		&sr.ID, &sr.CustomerID, &sr.ServiceType, &sr.Status, &sr.PaymentStatus, &sr.PayoutStatus,
		&sr.AssignedHaulerID, &sr.LaborCrewSize, &sr.CrewAcceptedCount,
		&sr.VehicleType, &sr.LoadSize, &sr.PickupLat, &sr.PickupLng, &sr.DropoffLat, &sr.DropoffLng, &sr.Address,
		&sr.BaseServicePriceCents, &sr.LivePriceCents, &sr.GuaranteedCeilingCents,
		&sr.ProtectionFeeRate, &sr.SurgeMultiplier,
		&sr.PaymentIntentID, &sr.TransferID, &sr.CapturedCents, &sr.PlatformFeeCents, &sr.HaulerPayoutCents,
		&sr.FailureReason, &sr.ScheduledAt, &sr.CompletedAt, &sr.CancelledAt, &sr.CreatedAt, &sr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(requestNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to scan service request: %w", err)
	}
	return &sr, nil
}

func (r *Repository) Create(ctx context.Context, sr *ServiceRequest) error {
	query := `
		INSERT INTO service_requests (
			id, customer_id, service_type, status, payment_status, payout_status,
			assigned_hauler_id, labor_crew_size, crew_accepted_count,
			vehicle_type, load_size, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, address,
			base_service_price_cents, live_price_cents, guaranteed_ceiling_cents,
			protection_fee_rate, surge_multiplier,
			payment_intent_id, scheduled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, now(), now())`

	_, err := r.pool.Exec(ctx, query,
		sr.ID, sr.CustomerID, sr.ServiceType, sr.Status, sr.PaymentStatus, sr.PayoutStatus,
		sr.AssignedHaulerID, sr.LaborCrewSize, sr.CrewAcceptedCount,
		sr.VehicleType, sr.LoadSize, sr.PickupLat, sr.PickupLng, sr.DropoffLat, sr.DropoffLng, sr.Address,
		sr.BaseServicePriceCents, sr.LivePriceCents, sr.GuaranteedCeilingCents,
		sr.ProtectionFeeRate, sr.SurgeMultiplier,
		sr.PaymentIntentID, sr.ScheduledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert service request: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	query := `SELECT` + requestColumns + ` FROM service_requests WHERE id = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatusCAS moves a request from one lifecycle state to another in a
// single conditional update. The transition table is checked first, so an
// illegal move never reaches the database; zero rows afterwards means
// someone else moved it first.
func (r *Repository) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to domain.Status) error {
	if !domain.CanTransition(from, to) {
		return apperr.Conflict(fmt.Sprintf("illegal transition %s -> %s", from, to))
	}
	query := `UPDATE service_requests SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`
	result, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("request is no longer %s", from))
	}
	return nil
}

func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE service_requests SET status = $3, completed_at = $4, updated_at = now()
		WHERE id = $1 AND status = $2`
	result, err := r.pool.Exec(ctx, query, id, domain.StatusInProgress, domain.StatusCompleted, at)
	if err != nil {
		return fmt.Errorf("failed to mark request completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("request is no longer in progress")
	}
	return nil
}

func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID, from domain.Status, reason string, at time.Time) error {
	query := `
		UPDATE service_requests
		SET status = $3, failure_reason = $4, cancelled_at = $5, updated_at = now()
		WHERE id = $1 AND status = $2`
	result, err := r.pool.Exec(ctx, query, id, from, domain.StatusCancelled, reason, at)
	if err != nil {
		return fmt.Errorf("failed to cancel request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("request is no longer %s", from))
	}
	return nil
}

// ClaimCapture atomically moves payment_status authorized -> capturing so at
// most one settle run ever talks to the gateway for a given request.
// Capture-failed requests can be reclaimed for retries.
func (r *Repository) ClaimCapture(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE service_requests SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND payment_status IN ($3, $4)`
	result, err := r.pool.Exec(ctx, query, id,
		domain.PaymentCapturing, domain.PaymentAuthorized, domain.PaymentCaptureFailed)
	if err != nil {
		return false, fmt.Errorf("failed to claim capture: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// RecordSettlement persists the full outcome of a settle run in one update.
func (r *Repository) RecordSettlement(ctx context.Context, id uuid.UUID, rec SettlementRecord) error {
	query := `
		UPDATE service_requests SET
			payment_status = $2, payout_status = $3, transfer_id = $4,
			captured_cents = $5, platform_fee_cents = $6, hauler_payout_cents = $7,
			failure_reason = $8, updated_at = now()
		WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id,
		rec.PaymentStatus, rec.PayoutStatus, rec.TransferID,
		rec.CapturedCents, rec.PlatformFeeCents, rec.HaulerPayoutCents, rec.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(requestNotFoundMsg)
	}
	return nil
}

// UpdatePaymentStatus moves the payment sub-state, validated against the
// payment transition table.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to domain.PaymentStatus) error {
	if !domain.CanTransitionPayment(from, to) {
		return apperr.Conflict(fmt.Sprintf("illegal payment transition %s -> %s", from, to))
	}
	query := `
		UPDATE service_requests SET payment_status = $3, updated_at = now()
		WHERE id = $1 AND payment_status = $2`
	result, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("payment is no longer %s", from))
	}
	return nil
}

// ApplyPriceAdjustment raises the live price by the approved amount, never
// past the guaranteed ceiling.
func (r *Repository) ApplyPriceAdjustment(ctx context.Context, id uuid.UUID, deltaCents int64) error {
	query := `
		UPDATE service_requests
		SET live_price_cents = LEAST(live_price_cents + $2, guaranteed_ceiling_cents), updated_at = now()
		WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, deltaCents)
	if err != nil {
		return fmt.Errorf("failed to apply price adjustment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(requestNotFoundMsg)
	}
	return nil
}

// ListByCustomer returns the customer's requests, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]ServiceRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT` + requestColumns + `
		FROM service_requests WHERE customer_id = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query service requests: %w", err)
	}
	defer rows.Close()

	var out []ServiceRequest
	for rows.Next() {
		sr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service requests: %w", err)
	}
	return out, nil
}

// ListByStatus backs the ops view of jobs in a given lifecycle state.
func (r *Repository) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]ServiceRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT` + requestColumns + `
		FROM service_requests WHERE status = $1
		ORDER BY created_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query service requests by status: %w", err)
	}
	defer rows.Close()

	var out []ServiceRequest
	for rows.Next() {
		sr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service requests: %w", err)
	}
	return out, nil
}

// ListStuckSettlements finds completed jobs whose funds never fully moved:
// capture failed, or captured with a deferred payout.
func (r *Repository) ListStuckSettlements(ctx context.Context, limit int) ([]ServiceRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT` + requestColumns + `
		FROM service_requests
		WHERE status = $1 AND (payment_status = $2 OR (payment_status = $3 AND payout_status = $4))
		ORDER BY completed_at ASC LIMIT $5`

	rows, err := r.pool.Query(ctx, query,
		domain.StatusCompleted, domain.PaymentCaptureFailed, domain.PaymentCaptured, domain.PayoutDeferred, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck settlements: %w", err)
	}
	defer rows.Close()

	var out []ServiceRequest
	for rows.Next() {
		sr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stuck settlements: %w", err)
	}
	return out, nil
}

// CountOpenByArea supports surge pricing: open requests near a point.
func (r *Repository) CountOpenByArea(ctx context.Context, lat, lng, radiusDeg float64) (int, error) {
	query := `
		SELECT COUNT(*) FROM service_requests
		WHERE status IN ($1, $2)
		AND pickup_lat BETWEEN $3 - $5 AND $3 + $5
		AND pickup_lng BETWEEN $4 - $5 AND $4 + $5`
	var n int
	err := r.pool.QueryRow(ctx, query, domain.StatusMatching, domain.StatusPending, lat, lng, radiusDeg).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open requests: %w", err)
	}
	return n, nil
}
