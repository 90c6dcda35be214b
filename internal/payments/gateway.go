// Package payments wraps the payment gateway behind a typed interface.
// Settlement branches on the error category, so every gateway call must
// surface declined / invalid-request / gateway-unavailable / connection
// failures distinctly rather than as opaque errors.
package payments

import (
	"context"
	"fmt"
)

// Category classifies a gateway failure for the caller's branching.
type Category string

const (
	// CategoryDeclined: the card or payment was refused. Not retryable.
	CategoryDeclined Category = "declined"
	// CategoryInvalidRequest: our request was malformed or referenced a
	// missing object. Not retryable without a code change or data fix.
	CategoryInvalidRequest Category = "invalid_request"
	// CategoryUnavailable: the gateway accepted the connection but failed
	// internally. Retryable.
	CategoryUnavailable Category = "gateway_unavailable"
	// CategoryConnection: we never reached the gateway. Retryable.
	CategoryConnection Category = "connection_failure"
)

// Error is a categorized gateway failure.
type Error struct {
	Category Category
	Code     string // gateway-specific code, e.g. "card_declined"
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s (%s): %s", e.Category, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same call.
func (e *Error) Retryable() bool {
	return e.Category == CategoryUnavailable || e.Category == CategoryConnection
}

// CategoryOf extracts the category from an error, defaulting to connection
// failure for anything untyped (we cannot know the gateway saw the request).
func CategoryOf(err error) Category {
	if gerr, ok := err.(*Error); ok {
		return gerr.Category
	}
	return CategoryConnection
}

// Customer is the gateway-side customer object.
type Customer struct {
	ID string
}

// Intent is an authorize-then-capture payment intent.
type Intent struct {
	ID          string
	Status      string
	AmountCents int64
}

// Transfer is a completed split transfer to a connected account.
type Transfer struct {
	ID string
}

// Payout is an instant payout attempt on a connected account.
type Payout struct {
	ID string
}

// AccountStatus reports whether a connected account can take charges and payouts.
type AccountStatus struct {
	ChargesEnabled bool
	PayoutsEnabled bool
}

// PaymentMethod is a stored customer payment method.
type PaymentMethod struct {
	ID       string
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// SetupIntent collects a payment method for later off-session use.
type SetupIntent struct {
	ID           string
	ClientSecret string
}

// AuthorizeParams creates a manual-capture payment intent.
type AuthorizeParams struct {
	AmountCents     int64
	CustomerID      string
	PaymentMethodID string
	Metadata        map[string]string
}

// TransferParams moves a payout to a connected account.
type TransferParams struct {
	AmountCents        int64
	DestinationAccount string
	Metadata           map[string]string
}

// Gateway is the payment provider boundary. Implementations must return
// *Error for every failure so callers can branch on the category.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string) (*Customer, error)

	// Authorize creates a payment intent with manual capture: the customer
	// is charged only when CaptureIntent runs at settlement.
	Authorize(ctx context.Context, p AuthorizeParams) (*Intent, error)
	// CaptureIntent captures amountCents of the authorized intent; zero
	// captures the full authorized amount.
	CaptureIntent(ctx context.Context, intentID string, amountCents int64) (*Intent, error)
	// CancelIntent voids an authorized-but-uncaptured intent.
	CancelIntent(ctx context.Context, intentID string) error
	// Refund reverses a captured intent (post-capture cancellation flow).
	Refund(ctx context.Context, intentID string, amountCents int64) error

	CreateTransfer(ctx context.Context, p TransferParams) (*Transfer, error)
	// CreateInstantPayout pushes funds to the connected account's bank
	// immediately. Failure is an expected branch (standard payout applies).
	CreateInstantPayout(ctx context.Context, accountID string, amountCents int64) (*Payout, error)

	CreateConnectAccount(ctx context.Context, email string) (string, error)
	GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)

	CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
}
