package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"haulhub_backend/platform/apperr"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Hauler is the database model for a pro.
type Hauler struct {
	ID                   uuid.UUID `db:"id"`
	Email                string    `db:"email"`
	Name                 string    `db:"name"`
	Phone                *string   `db:"phone"`
	Tier                 string    `db:"tier"`
	IsVerifiedLLC        bool      `db:"is_verified_llc"`
	HasOwnInsurance      bool      `db:"has_own_insurance"`
	InsuranceWaived      bool      `db:"insurance_waived"`
	StripeAccountID      *string   `db:"stripe_account_id"`
	InstantPayoutEnabled bool      `db:"instant_payout_enabled"`
	Available            bool      `db:"available"`
	LastLat              *float64  `db:"last_lat"`
	LastLng              *float64  `db:"last_lng"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

// Certification is a pro's credential; only active, unexpired ones reduce
// the platform fee.
type Certification struct {
	ID        uuid.UUID  `db:"id"`
	HaulerID  uuid.UUID  `db:"hauler_id"`
	Name      string     `db:"name"`
	Status    string     `db:"status"`
	ExpiresAt *time.Time `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
}

const (
	CertActive  = "active"
	CertRevoked = "revoked"
)

const haulerNotFoundMsg = "hauler not found"

const haulerColumns = `
	id, email, name, phone, tier, is_verified_llc, has_own_insurance, insurance_waived,
	stripe_account_id, instant_payout_enabled, available, last_lat, last_lng,
	created_at, updated_at`

// ── Repository ────────────────────────────────────────────────────────────────

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanHauler(row pgx.Row) (*Hauler, error) {
	var h Hauler
	err := row.Scan(
		&h.ID, &h.Email, &h.Name, &h.Phone, &h.Tier, &h.IsVerifiedLLC, &h.HasOwnInsurance, &h.InsuranceWaived,
		&h.StripeAccountID, &h.InstantPayoutEnabled, &h.Available, &h.LastLat, &h.LastLng,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(haulerNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to scan hauler: %w", err)
	}
	return &h, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Hauler, error) {
	query := `SELECT` + haulerColumns + ` FROM haulers WHERE id = $1`
	return scanHauler(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) Create(ctx context.Context, h *Hauler) error {
	query := `
		INSERT INTO haulers (
			id, email, name, phone, tier, is_verified_llc, has_own_insurance, insurance_waived,
			instant_payout_enabled, available, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`
	_, err := r.pool.Exec(ctx, query,
		h.ID, h.Email, h.Name, h.Phone, h.Tier, h.IsVerifiedLLC, h.HasOwnInsurance, h.InsuranceWaived,
		h.InstantPayoutEnabled, h.Available,
	)
	if err != nil {
		return fmt.Errorf("failed to insert hauler: %w", err)
	}
	return nil
}

// SetStripeAccount stores the connected account once; onboarding is not
// repeatable.
func (r *Repository) SetStripeAccount(ctx context.Context, id uuid.UUID, accountID string) error {
	query := `
		UPDATE haulers SET stripe_account_id = $2, updated_at = now()
		WHERE id = $1 AND stripe_account_id IS NULL`
	result, err := r.pool.Exec(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("failed to set stripe account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("hauler already has a connected account")
	}
	return nil
}

func (r *Repository) SetInstantPayout(ctx context.Context, id uuid.UUID, enabled bool) error {
	query := `UPDATE haulers SET instant_payout_enabled = $2, updated_at = now() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to set instant payout: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(haulerNotFoundMsg)
	}
	return nil
}

func (r *Repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool, lat, lng *float64) error {
	query := `
		UPDATE haulers
		SET available = $2, last_lat = COALESCE($3, last_lat), last_lng = COALESCE($4, last_lng), updated_at = now()
		WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, available, lat, lng)
	if err != nil {
		return fmt.Errorf("failed to set availability: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(haulerNotFoundMsg)
	}
	return nil
}

func (r *Repository) SetVerifiedLLC(ctx context.Context, id uuid.UUID, verified bool) error {
	query := `UPDATE haulers SET is_verified_llc = $2, updated_at = now() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, verified)
	if err != nil {
		return fmt.Errorf("failed to set LLC verification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(haulerNotFoundMsg)
	}
	return nil
}

// CountAvailableNearby is the supply side of surge pricing: available pros
// whose last known position falls in the box around the pickup.
func (r *Repository) CountAvailableNearby(ctx context.Context, lat, lng, radiusDeg float64) (int, error) {
	query := `
		SELECT COUNT(*) FROM haulers
		WHERE available = true
		AND last_lat BETWEEN $1 - $3 AND $1 + $3
		AND last_lng BETWEEN $2 - $3 AND $2 + $3`
	var n int
	if err := r.pool.QueryRow(ctx, query, lat, lng, radiusDeg).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count available haulers: %w", err)
	}
	return n, nil
}

// ── Certifications ────────────────────────────────────────────────────────────

func (r *Repository) AddCertification(ctx context.Context, c *Certification) error {
	query := `
		INSERT INTO hauler_certifications (id, hauler_id, name, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`
	_, err := r.pool.Exec(ctx, query, c.ID, c.HaulerID, c.Name, c.Status, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert certification: %w", err)
	}
	return nil
}

func (r *Repository) ListCertifications(ctx context.Context, haulerID uuid.UUID) ([]Certification, error) {
	query := `
		SELECT id, hauler_id, name, status, expires_at, created_at
		FROM hauler_certifications WHERE hauler_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, haulerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query certifications: %w", err)
	}
	defer rows.Close()

	var out []Certification
	for rows.Next() {
		var c Certification
		if err := rows.Scan(&c.ID, &c.HaulerID, &c.Name, &c.Status, &c.ExpiresAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan certification: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate certifications: %w", err)
	}
	return out, nil
}

// CountActiveCertifications feeds the payout calculator's fee reduction.
func (r *Repository) CountActiveCertifications(ctx context.Context, haulerID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM hauler_certifications
		WHERE hauler_id = $1 AND status = $2
		AND (expires_at IS NULL OR expires_at > now())`
	var n int
	if err := r.pool.QueryRow(ctx, query, haulerID, CertActive).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active certifications: %w", err)
	}
	return n, nil
}
