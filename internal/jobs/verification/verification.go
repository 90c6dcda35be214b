// Package verification implements the proof-of-work gate that certain
// service types must pass before completion and before payment release.
package verification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"haulhub_backend/internal/jobs/repository"
)

// Checklist step names, stored as keys in the verification record.
const (
	StepBeforePhotos         = "before_photos"
	StepItemTracking         = "item_tracking"
	StepAfterPhotos          = "after_photos"
	StepSustainabilityReport = "sustainability_report"
)

// RequiredSteps in checklist order. MissingSteps reports in this order so
// the client can render a stable checklist.
var RequiredSteps = []string{
	StepBeforePhotos,
	StepItemTracking,
	StepAfterPhotos,
	StepSustainabilityReport,
}

// AutoReleaseAfter is how long after the sustainability report payment is
// released without an explicit customer confirmation.
const AutoReleaseAfter = 48 * time.Hour

// verificationRequired lists service types that need the full checklist.
var verificationRequired = map[string]bool{
	"junk_removal":   true,
	"appliance_haul": true,
	"yard_debris":    true,
}

// Required reports whether a service type needs verification at all.
func Required(serviceType string) bool {
	return verificationRequired[serviceType]
}

// Evaluation is the gate's verdict at a point in time.
type Evaluation struct {
	CanComplete       bool
	CanReleasePayment bool
	MissingSteps      []string
	// HoursRemaining until auto-release; zero once release is allowed or
	// while the report step is still missing.
	HoursRemaining float64
}

// Evaluate derives the verdict from a persisted record. Pure: no I/O, no
// clock reads. rec may be nil (no verification action taken yet).
//
// Release requires every step plus either the customer's confirmation or
// AutoReleaseAfter elapsed since the report step. Exactly at the boundary
// counts as elapsed. The clock runs from the report timestamp, never from
// job creation.
func Evaluate(rec *repository.JobVerification, now time.Time) Evaluation {
	var ev Evaluation
	if rec == nil {
		ev.MissingSteps = append(ev.MissingSteps, RequiredSteps...)
		return ev
	}

	for _, step := range RequiredSteps {
		if !rec.Steps[step] {
			ev.MissingSteps = append(ev.MissingSteps, step)
		}
	}
	ev.CanComplete = len(ev.MissingSteps) == 0
	if !ev.CanComplete {
		return ev
	}

	if rec.CustomerConfirmedAt != nil {
		ev.CanReleasePayment = true
		return ev
	}
	if rec.ReportAt == nil {
		// Steps map says the report is done but the timestamp never landed.
		// Without a clock anchor the auto-release can never fire.
		ev.MissingSteps = []string{StepSustainabilityReport}
		ev.CanComplete = false
		return ev
	}

	elapsed := now.Sub(*rec.ReportAt)
	if elapsed >= AutoReleaseAfter {
		ev.CanReleasePayment = true
		return ev
	}
	ev.HoursRemaining = (AutoReleaseAfter - elapsed).Hours()
	return ev
}

// Gate reads the persisted record and derives the verdict.
type Gate struct {
	store repository.VerificationStore
}

func NewGate(store repository.VerificationStore) *Gate {
	return &Gate{store: store}
}

func (g *Gate) Evaluate(ctx context.Context, jobID uuid.UUID) (Evaluation, error) {
	rec, err := g.store.GetVerification(ctx, jobID)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluate(rec, time.Now().UTC()), nil
}
