// Package transport defines the wire DTOs for the haulers module.
package transport

import "time"

// AvailabilityRequest flips the pro's availability and optionally updates
// their last known position.
type AvailabilityRequest struct {
	Available bool     `json:"available"`
	Lat       *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng       *float64 `json:"lng" validate:"omitempty,longitude"`
}

// InstantPayoutRequest toggles instant payouts.
type InstantPayoutRequest struct {
	Enabled bool `json:"enabled"`
}

// CertificationRequest registers a credential.
type CertificationRequest struct {
	Name      string     `json:"name" validate:"required,min=2,max=200"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// PayoutPreviewRequest prices a hypothetical job for the pro.
type PayoutPreviewRequest struct {
	AmountCents     int64 `json:"amountCents" validate:"required,min=0"`
	RecurringExempt bool  `json:"recurringExempt"`
}

// VerifiedLLCRequest marks a pro as an insurance-verified LLC.
type VerifiedLLCRequest struct {
	Verified bool `json:"verified"`
}

// OnboardResponse returns the connected account.
type OnboardResponse struct {
	AccountID string `json:"accountId"`
}
