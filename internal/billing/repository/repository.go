// Package repository persists the customer billing profile.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"haulhub_backend/platform/apperr"
)

// Profile is a customer's gateway billing profile.
type Profile struct {
	CustomerID             uuid.UUID `db:"id"`
	Email                  string    `db:"email"`
	Name                   string    `db:"name"`
	GatewayCustomerID      *string   `db:"gateway_customer_id"`
	DefaultPaymentMethodID *string   `db:"default_payment_method_id"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetProfile(ctx context.Context, customerID uuid.UUID) (*Profile, error) {
	query := `
		SELECT id, email, name, gateway_customer_id, default_payment_method_id
		FROM customers WHERE id = $1`
	var p Profile
	err := r.pool.QueryRow(ctx, query, customerID).Scan(
		&p.CustomerID, &p.Email, &p.Name, &p.GatewayCustomerID, &p.DefaultPaymentMethodID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("customer not found")
		}
		return nil, fmt.Errorf("failed to get billing profile: %w", err)
	}
	return &p, nil
}

// SetGatewayCustomerID backfills the gateway customer. Only fills an empty
// slot so a concurrent first charge cannot clobber it.
func (r *Repository) SetGatewayCustomerID(ctx context.Context, customerID uuid.UUID, gatewayID string) error {
	query := `
		UPDATE customers SET gateway_customer_id = $2, updated_at = now()
		WHERE id = $1 AND gateway_customer_id IS NULL`
	if _, err := r.pool.Exec(ctx, query, customerID, gatewayID); err != nil {
		return fmt.Errorf("failed to set gateway customer id: %w", err)
	}
	return nil
}

func (r *Repository) SetDefaultPaymentMethod(ctx context.Context, customerID uuid.UUID, paymentMethodID string) error {
	query := `
		UPDATE customers SET default_payment_method_id = $2, updated_at = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, customerID, paymentMethodID)
	if err != nil {
		return fmt.Errorf("failed to set default payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("customer not found")
	}
	return nil
}

// ClearDefaultPaymentMethod removes the default if it matches the detached
// method, leaving any other default untouched.
func (r *Repository) ClearDefaultPaymentMethod(ctx context.Context, customerID uuid.UUID, paymentMethodID string) error {
	query := `
		UPDATE customers SET default_payment_method_id = NULL, updated_at = now()
		WHERE id = $1 AND default_payment_method_id = $2`
	if _, err := r.pool.Exec(ctx, query, customerID, paymentMethodID); err != nil {
		return fmt.Errorf("failed to clear default payment method: %w", err)
	}
	return nil
}
