package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"haulhub_backend/internal/jobs/domain"
	"haulhub_backend/platform/apperr"
)

// uniqueViolationCode is the Postgres error code for a unique constraint hit.
const uniqueViolationCode = "23505"

// CrewAssignment records one hauler's accepted slot on a multi-pro job.
type CrewAssignment struct {
	ID         uuid.UUID `db:"id"`
	JobID      uuid.UUID `db:"job_id"`
	HaulerID   uuid.UUID `db:"hauler_id"`
	Status     string    `db:"status"`
	AcceptedAt time.Time `db:"accepted_at"`
}

const (
	AssignmentAccepted  = "accepted"
	AssignmentWithdrawn = "withdrawn"
)

// JobAdjustment is a mid-job price change proposed by the hauler.
type JobAdjustment struct {
	ID          uuid.UUID  `db:"id"`
	JobID       uuid.UUID  `db:"job_id"`
	HaulerID    uuid.UUID  `db:"hauler_id"`
	Description string     `db:"description"`
	AmountCents int64      `db:"amount_cents"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ResolvedAt  *time.Time `db:"resolved_at"`
}

const (
	AdjustmentPending  = "pending"
	AdjustmentApproved = "approved"
	AdjustmentRejected = "rejected"
)

// JobCompletion tracks on-site progress, one row per job.
type JobCompletion struct {
	JobID         uuid.UUID  `db:"job_id"`
	WorkCompleted bool       `db:"work_completed"`
	StartedAt     *time.Time `db:"started_at"`
	FinishedAt    *time.Time `db:"finished_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// ── Crew slots ────────────────────────────────────────────────────────────────

// ClaimSlotAndAssign is the single check-and-increment for crew assembly.
// The conditional update on crew_accepted_count is what makes N concurrent
// accepts on the last slot resolve to exactly one winner, and the assignment
// insert rides the same transaction so a failed insert rolls the claimed
// slot back instead of leaking it. Returns the new accepted count and the
// crew size.
func (r *Repository) ClaimSlotAndAssign(ctx context.Context, a *CrewAssignment) (int, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin slot claim: %w", err)
	}
	defer tx.Rollback(ctx)

	claim := `
		UPDATE service_requests
		SET crew_accepted_count = crew_accepted_count + 1, updated_at = now()
		WHERE id = $1
			AND status IN ($2, $3)
			AND crew_accepted_count < labor_crew_size
		RETURNING crew_accepted_count, labor_crew_size`

	var count, size int
	err = tx.QueryRow(ctx, claim, a.JobID, domain.StatusMatching, domain.StatusPending).Scan(&count, &size)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, apperr.Conflict("slot no longer available")
		}
		return 0, 0, fmt.Errorf("failed to claim crew slot: %w", err)
	}

	insert := `
		INSERT INTO crew_assignments (id, job_id, hauler_id, status, accepted_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insert, a.ID, a.JobID, a.HaulerID, a.Status, a.AcceptedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, 0, apperr.Conflict("you already accepted this job")
		}
		return 0, 0, fmt.Errorf("failed to insert crew assignment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit slot claim: %w", err)
	}
	return count, size, nil
}

// FirstAcceptedHauler returns the crew lead: the earliest accept wins,
// with the id as a deterministic tiebreak.
func (r *Repository) FirstAcceptedHauler(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error) {
	query := `
		SELECT hauler_id FROM crew_assignments
		WHERE job_id = $1 AND status = $2
		ORDER BY accepted_at ASC, id ASC LIMIT 1`
	var haulerID uuid.UUID
	err := r.pool.QueryRow(ctx, query, jobID, AssignmentAccepted).Scan(&haulerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperr.NotFound("no accepted crew assignments")
		}
		return uuid.Nil, fmt.Errorf("failed to get first accepted hauler: %w", err)
	}
	return haulerID, nil
}

func (r *Repository) SetAssignedHauler(ctx context.Context, jobID, haulerID uuid.UUID) error {
	query := `UPDATE service_requests SET assigned_hauler_id = $2, updated_at = now() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, jobID, haulerID)
	if err != nil {
		return fmt.Errorf("failed to set assigned hauler: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(requestNotFoundMsg)
	}
	return nil
}

func (r *Repository) ListAssignments(ctx context.Context, jobID uuid.UUID) ([]CrewAssignment, error) {
	query := `
		SELECT id, job_id, hauler_id, status, accepted_at
		FROM crew_assignments WHERE job_id = $1
		ORDER BY accepted_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query crew assignments: %w", err)
	}
	defer rows.Close()

	var out []CrewAssignment
	for rows.Next() {
		var a CrewAssignment
		if err := rows.Scan(&a.ID, &a.JobID, &a.HaulerID, &a.Status, &a.AcceptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan crew assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate crew assignments: %w", err)
	}
	return out, nil
}

// IsAcceptedCrewMember reports whether the hauler holds an accepted slot.
func (r *Repository) IsAcceptedCrewMember(ctx context.Context, jobID, haulerID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM crew_assignments
			WHERE job_id = $1 AND hauler_id = $2 AND status = $3
		)`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, jobID, haulerID, AssignmentAccepted).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check crew membership: %w", err)
	}
	return ok, nil
}

// ── Adjustments ───────────────────────────────────────────────────────────────

func (r *Repository) CreateAdjustment(ctx context.Context, a *JobAdjustment) error {
	query := `
		INSERT INTO job_adjustments (id, job_id, hauler_id, description, amount_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.JobID, a.HaulerID, a.Description, a.AmountCents, a.Status, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job adjustment: %w", err)
	}
	return nil
}

func (r *Repository) GetAdjustment(ctx context.Context, id uuid.UUID) (*JobAdjustment, error) {
	query := `
		SELECT id, job_id, hauler_id, description, amount_cents, status, created_at, resolved_at
		FROM job_adjustments WHERE id = $1`
	var a JobAdjustment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.JobID, &a.HaulerID, &a.Description, &a.AmountCents, &a.Status, &a.CreatedAt, &a.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("adjustment not found")
		}
		return nil, fmt.Errorf("failed to get adjustment: %w", err)
	}
	return &a, nil
}

// ResolveAdjustment flips a pending adjustment exactly once.
func (r *Repository) ResolveAdjustment(ctx context.Context, id uuid.UUID, status string, at time.Time) error {
	query := `
		UPDATE job_adjustments SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = $4`
	result, err := r.pool.Exec(ctx, query, id, status, at, AdjustmentPending)
	if err != nil {
		return fmt.Errorf("failed to resolve adjustment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("adjustment already resolved")
	}
	return nil
}

func (r *Repository) CountPendingAdjustments(ctx context.Context, jobID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM job_adjustments WHERE job_id = $1 AND status = $2`
	var n int
	if err := r.pool.QueryRow(ctx, query, jobID, AdjustmentPending).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending adjustments: %w", err)
	}
	return n, nil
}

// SumApprovedAdjustments is the payout basis delta for settlement.
func (r *Repository) SumApprovedAdjustments(ctx context.Context, jobID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_cents), 0) FROM job_adjustments
		WHERE job_id = $1 AND status = $2`
	var sum int64
	if err := r.pool.QueryRow(ctx, query, jobID, AdjustmentApproved).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum approved adjustments: %w", err)
	}
	return sum, nil
}

func (r *Repository) ListAdjustments(ctx context.Context, jobID uuid.UUID) ([]JobAdjustment, error) {
	query := `
		SELECT id, job_id, hauler_id, description, amount_cents, status, created_at, resolved_at
		FROM job_adjustments WHERE job_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var out []JobAdjustment
	for rows.Next() {
		var a JobAdjustment
		if err := rows.Scan(&a.ID, &a.JobID, &a.HaulerID, &a.Description, &a.AmountCents, &a.Status, &a.CreatedAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate adjustments: %w", err)
	}
	return out, nil
}

// ── Completions ───────────────────────────────────────────────────────────────

func (r *Repository) EnsureCompletion(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error {
	query := `
		INSERT INTO job_completions (job_id, work_completed, started_at, updated_at)
		VALUES ($1, false, $2, now())
		ON CONFLICT (job_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, query, jobID, startedAt); err != nil {
		return fmt.Errorf("failed to ensure job completion: %w", err)
	}
	return nil
}

func (r *Repository) GetCompletion(ctx context.Context, jobID uuid.UUID) (*JobCompletion, error) {
	query := `
		SELECT job_id, work_completed, started_at, finished_at, updated_at
		FROM job_completions WHERE job_id = $1`
	var c JobCompletion
	err := r.pool.QueryRow(ctx, query, jobID).Scan(
		&c.JobID, &c.WorkCompleted, &c.StartedAt, &c.FinishedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("job completion not found")
		}
		return nil, fmt.Errorf("failed to get job completion: %w", err)
	}
	return &c, nil
}

func (r *Repository) MarkWorkCompleted(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	query := `
		UPDATE job_completions SET work_completed = true, finished_at = $2, updated_at = now()
		WHERE job_id = $1`
	result, err := r.pool.Exec(ctx, query, jobID, at)
	if err != nil {
		return fmt.Errorf("failed to mark work completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("job completion not found")
	}
	return nil
}
