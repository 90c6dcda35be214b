package payments

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"haulhub_backend/platform/config"
)

// StripeGateway implements Gateway on the Stripe API.
type StripeGateway struct {
	api      *client.API
	currency string
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.GetStripeSecretKey(), nil)
	return &StripeGateway{api: api, currency: cfg.GetStripeCurrency()}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Name:   stripe.String(name),
	}
	cust, err := g.api.Customers.New(params)
	if err != nil {
		return nil, mapStripeError("create_customer", err)
	}
	return &Customer{ID: cust.ID}, nil
}

func (g *StripeGateway) Authorize(ctx context.Context, p AuthorizeParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(p.AmountCents),
		Currency:      stripe.String(g.currency),
		Customer:      stripe.String(p.CustomerID),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if p.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethodID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError("authorize", err)
	}
	return &Intent{ID: intent.ID, Status: string(intent.Status), AmountCents: intent.Amount}, nil
}

func (g *StripeGateway) CaptureIntent(ctx context.Context, intentID string, amountCents int64) (*Intent, error) {
	params := &stripe.PaymentIntentCaptureParams{Params: stripe.Params{Context: ctx}}
	if amountCents > 0 {
		params.AmountToCapture = stripe.Int64(amountCents)
	}
	intent, err := g.api.PaymentIntents.Capture(intentID, params)
	if err != nil {
		return nil, mapStripeError("capture", err)
	}
	return &Intent{ID: intent.ID, Status: string(intent.Status), AmountCents: intent.AmountReceived}, nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{Params: stripe.Params{Context: ctx}}
	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return mapStripeError("cancel", err)
	}
	return nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amountCents int64) error {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(intentID),
	}
	if amountCents > 0 {
		params.Amount = stripe.Int64(amountCents)
	}
	if _, err := g.api.Refunds.New(params); err != nil {
		return mapStripeError("refund", err)
	}
	return nil
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, p TransferParams) (*Transfer, error) {
	params := &stripe.TransferParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(p.AmountCents),
		Currency:    stripe.String(g.currency),
		Destination: stripe.String(p.DestinationAccount),
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	tr, err := g.api.Transfers.New(params)
	if err != nil {
		return nil, mapStripeError("transfer", err)
	}
	return &Transfer{ID: tr.ID}, nil
}

func (g *StripeGateway) CreateInstantPayout(ctx context.Context, accountID string, amountCents int64) (*Payout, error) {
	params := &stripe.PayoutParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(g.currency),
		Method:   stripe.String("instant"),
	}
	params.SetStripeAccount(accountID)
	po, err := g.api.Payouts.New(params)
	if err != nil {
		return nil, mapStripeError("instant_payout", err)
	}
	return &Payout{ID: po.ID}, nil
}

func (g *StripeGateway) CreateConnectAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountParams{
		Params: stripe.Params{Context: ctx},
		Type:   stripe.String(string(stripe.AccountTypeExpress)),
		Email:  stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	acct, err := g.api.Accounts.New(params)
	if err != nil {
		return "", mapStripeError("create_account", err)
	}
	return acct.ID, nil
}

func (g *StripeGateway) GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	params := &stripe.AccountParams{Params: stripe.Params{Context: ctx}}
	acct, err := g.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, mapStripeError("get_account", err)
	}
	return &AccountStatus{ChargesEnabled: acct.ChargesEnabled, PayoutsEnabled: acct.PayoutsEnabled}, nil
}

func (g *StripeGateway) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	params := &stripe.SetupIntentParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Usage:    stripe.String("off_session"),
	}
	si, err := g.api.SetupIntents.New(params)
	if err != nil {
		return nil, mapStripeError("setup_intent", err)
	}
	return &SetupIntent{ID: si.ID, ClientSecret: si.ClientSecret}, nil
}

func (g *StripeGateway) ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Customer:   stripe.String(customerID),
		Type:       stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	iter := g.api.PaymentMethods.List(params)
	var out []PaymentMethod
	for iter.Next() {
		pm := iter.PaymentMethod()
		m := PaymentMethod{ID: pm.ID}
		if pm.Card != nil {
			m.Brand = string(pm.Card.Brand)
			m.Last4 = pm.Card.Last4
			m.ExpMonth = pm.Card.ExpMonth
			m.ExpYear = pm.Card.ExpYear
		}
		out = append(out, m)
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError("list_payment_methods", err)
	}
	return out, nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.PaymentMethodAttachParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
	}
	if _, err := g.api.PaymentMethods.Attach(paymentMethodID, params); err != nil {
		return mapStripeError("attach_payment_method", err)
	}
	return nil
}

func (g *StripeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{Params: stripe.Params{Context: ctx}}
	if _, err := g.api.PaymentMethods.Detach(paymentMethodID, params); err != nil {
		return mapStripeError("detach_payment_method", err)
	}
	return nil
}

func (g *StripeGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	if _, err := g.api.Customers.Update(customerID, params); err != nil {
		return mapStripeError("set_default_payment_method", err)
	}
	return nil
}

// mapStripeError folds every failure into the four categories Settlement
// branches on. Non-Stripe errors mean the request may never have left the
// process, so they count as connection failures.
func mapStripeError(op string, err error) *Error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return &Error{Category: CategoryConnection, Message: op + ": " + err.Error(), Err: err}
	}
	out := &Error{Code: string(serr.Code), Message: serr.Msg, Err: err}
	switch serr.Type {
	case stripe.ErrorTypeCard:
		out.Category = CategoryDeclined
	case stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
		out.Category = CategoryInvalidRequest
	case stripe.ErrorTypeAPI:
		out.Category = CategoryUnavailable
	default:
		// authentication and rate-limit errors: the gateway saw the request
		// but cannot serve it right now.
		out.Category = CategoryUnavailable
	}
	return out
}
