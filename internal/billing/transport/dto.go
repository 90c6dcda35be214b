// Package transport defines the wire DTOs for the billing module.
package transport

// AttachRequest attaches a confirmed payment method.
type AttachRequest struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
}

// DefaultRequest selects the default payment method.
type DefaultRequest struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
}

// SetupIntentResponse returns the client secret the frontend confirms.
type SetupIntentResponse struct {
	SetupIntentID string `json:"setupIntentId"`
	ClientSecret  string `json:"clientSecret"`
}
