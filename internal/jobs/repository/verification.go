package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"haulhub_backend/platform/apperr"
)

// JobVerification is the proof-of-completion record. Steps live in a jsonb
// column keyed by step name; the row is created on the first recorded step
// and never deleted.
type JobVerification struct {
	JobID               uuid.UUID       `db:"job_id"`
	Steps               map[string]bool `db:"steps"`
	ReportAt            *time.Time      `db:"report_at"`
	CustomerConfirmedAt *time.Time      `db:"customer_confirmed_at"`
	Status              string          `db:"status"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

const (
	VerificationOpen     = "open"
	VerificationReleased = "released"
)

// GetVerification returns nil without error when no record exists yet.
func (r *Repository) GetVerification(ctx context.Context, jobID uuid.UUID) (*JobVerification, error) {
	query := `
		SELECT job_id, steps, report_at, customer_confirmed_at, status, updated_at
		FROM job_verifications WHERE job_id = $1`
	var v JobVerification
	err := r.pool.QueryRow(ctx, query, jobID).Scan(
		&v.JobID, &v.Steps, &v.ReportAt, &v.CustomerConfirmedAt, &v.Status, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job verification: %w", err)
	}
	return &v, nil
}

// RecordStep marks one checklist step done, creating the record if needed.
// reportAt is set only for the step that carries the auto-release clock.
func (r *Repository) RecordStep(ctx context.Context, jobID uuid.UUID, step string, reportAt *time.Time) error {
	query := `
		INSERT INTO job_verifications (job_id, steps, report_at, status, updated_at)
		VALUES ($1, jsonb_build_object($2::text, true), $3, $4, now())
		ON CONFLICT (job_id) DO UPDATE SET
			steps = job_verifications.steps || jsonb_build_object($2::text, true),
			report_at = COALESCE(job_verifications.report_at, EXCLUDED.report_at),
			updated_at = now()`
	if _, err := r.pool.Exec(ctx, query, jobID, step, reportAt, VerificationOpen); err != nil {
		return fmt.Errorf("failed to record verification step: %w", err)
	}
	return nil
}

func (r *Repository) ConfirmByCustomer(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	query := `
		UPDATE job_verifications
		SET customer_confirmed_at = COALESCE(customer_confirmed_at, $2), updated_at = now()
		WHERE job_id = $1`
	result, err := r.pool.Exec(ctx, query, jobID, at)
	if err != nil {
		return fmt.Errorf("failed to confirm verification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("verification record not found")
	}
	return nil
}

// MarkReleased flips the record once settlement has run for it.
func (r *Repository) MarkReleased(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE job_verifications SET status = $2, updated_at = now()
		WHERE job_id = $1 AND status = $3`
	result, err := r.pool.Exec(ctx, query, jobID, VerificationReleased, VerificationOpen)
	if err != nil {
		return fmt.Errorf("failed to mark verification released: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("verification already released")
	}
	return nil
}
