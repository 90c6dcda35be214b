// Package transport defines the wire DTOs for the jobs module.
package transport

import (
	"time"

	"haulhub_backend/internal/jobs/repository"
	"haulhub_backend/internal/pricing"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// QuoteRequest prices a potential job without creating it.
type QuoteRequest struct {
	ServiceType string  `json:"serviceType" validate:"required,oneof=junk_removal furniture_move appliance_haul yard_debris dumpster_run recurring_yard"`
	LoadSize    string  `json:"loadSize" validate:"required,oneof=minimum quarter half three_quarter full"`
	VehicleType string  `json:"vehicleType" validate:"omitempty,oneof=pickup box_truck dump_trailer"`
	PickupLat   float64 `json:"pickupLat" validate:"required,latitude"`
	PickupLng   float64 `json:"pickupLng" validate:"required,longitude"`
	DropoffLat  float64 `json:"dropoffLat" validate:"omitempty,latitude"`
	DropoffLng  float64 `json:"dropoffLng" validate:"omitempty,longitude"`
}

// CreateJobRequest creates a service request and authorizes the customer.
type CreateJobRequest struct {
	QuoteRequest
	Address     string     `json:"address" validate:"required,min=5,max=500"`
	CrewSize    int        `json:"crewSize" validate:"omitempty,min=1,max=6"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

// AdjustmentRequest proposes a mid-job price change.
type AdjustmentRequest struct {
	Description string `json:"description" validate:"required,min=3,max=500"`
	AmountCents int64  `json:"amountCents" validate:"required"`
}

// ResolveAdjustmentRequest approves or rejects a pending adjustment.
type ResolveAdjustmentRequest struct {
	Approve bool `json:"approve"`
}

// VerificationStepRequest marks one checklist step complete.
type VerificationStepRequest struct {
	Step string `json:"step" validate:"required,oneof=before_photos item_tracking after_photos sustainability_report"`
}

// CancelRequest aborts a pre-completion job.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// JobResponse is the wire shape of a service request.
type JobResponse struct {
	ID              string     `json:"id"`
	ServiceType     string     `json:"serviceType"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"paymentStatus"`
	PayoutStatus    string     `json:"payoutStatus"`
	CrewSize        int        `json:"crewSize"`
	CrewAccepted    int        `json:"crewAccepted"`
	Address         string     `json:"address"`
	BaseCents       int64      `json:"baseCents"`
	LiveCents       int64      `json:"liveCents"`
	CeilingCents    int64      `json:"ceilingCents"`
	SurgeMultiplier float64    `json:"surgeMultiplier"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// AcceptResponse reports a crew-slot claim.
type AcceptResponse struct {
	Accepted bool `json:"accepted"`
	CrewFull bool `json:"crewFull"`
}

func ToJobResponse(sr *repository.ServiceRequest) JobResponse {
	return JobResponse{
		ID:              sr.ID.String(),
		ServiceType:     sr.ServiceType,
		Status:          string(sr.Status),
		PaymentStatus:   string(sr.PaymentStatus),
		PayoutStatus:    string(sr.PayoutStatus),
		CrewSize:        sr.LaborCrewSize,
		CrewAccepted:    sr.CrewAcceptedCount,
		Address:         sr.Address,
		BaseCents:       sr.BaseServicePriceCents,
		LiveCents:       sr.LivePriceCents,
		CeilingCents:    sr.GuaranteedCeilingCents,
		SurgeMultiplier: sr.SurgeMultiplier,
		ScheduledAt:     sr.ScheduledAt,
		CompletedAt:     sr.CompletedAt,
		CreatedAt:       sr.CreatedAt,
	}
}

func ToJobResponses(items []repository.ServiceRequest) []JobResponse {
	out := make([]JobResponse, 0, len(items))
	for i := range items {
		out = append(out, ToJobResponse(&items[i]))
	}
	return out
}

// Coordinates converts a quote request into pricing inputs.
func (r QuoteRequest) Pickup() pricing.Coordinates {
	return pricing.Coordinates{Lat: r.PickupLat, Lng: r.PickupLng}
}

func (r QuoteRequest) Dropoff() pricing.Coordinates {
	return pricing.Coordinates{Lat: r.DropoffLat, Lng: r.DropoffLng}
}
