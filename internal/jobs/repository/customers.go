package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"haulhub_backend/platform/apperr"
)

// CustomerBilling is the slice of the customer record the jobs module needs
// to authorize a charge.
type CustomerBilling struct {
	CustomerID             uuid.UUID `db:"id"`
	Email                  string    `db:"email"`
	GatewayCustomerID      *string   `db:"gateway_customer_id"`
	DefaultPaymentMethodID *string   `db:"default_payment_method_id"`
}

// BillingReader resolves a customer's gateway billing profile.
type BillingReader interface {
	GetCustomerBilling(ctx context.Context, customerID uuid.UUID) (*CustomerBilling, error)
}

func (r *Repository) GetCustomerBilling(ctx context.Context, customerID uuid.UUID) (*CustomerBilling, error) {
	query := `
		SELECT id, email, gateway_customer_id, default_payment_method_id
		FROM customers WHERE id = $1`
	var cb CustomerBilling
	err := r.pool.QueryRow(ctx, query, customerID).Scan(
		&cb.CustomerID, &cb.Email, &cb.GatewayCustomerID, &cb.DefaultPaymentMethodID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("customer not found")
		}
		return nil, fmt.Errorf("failed to get customer billing: %w", err)
	}
	return &cb, nil
}

// SetCustomerGatewayID backfills the gateway customer on first charge.
func (r *Repository) SetCustomerGatewayID(ctx context.Context, customerID uuid.UUID, gatewayID string) error {
	query := `
		UPDATE customers SET gateway_customer_id = $2, updated_at = now()
		WHERE id = $1 AND gateway_customer_id IS NULL`
	if _, err := r.pool.Exec(ctx, query, customerID, gatewayID); err != nil {
		return fmt.Errorf("failed to set gateway customer id: %w", err)
	}
	return nil
}
