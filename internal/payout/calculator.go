// Package payout implements the settlement split: given a base service
// amount and the pro's standing, it derives the platform fee, insurance
// surcharge and hauler payout. Pure and deterministic: the same function
// backs the customer-facing breakdown preview and the live settlement call,
// so the numbers shown before any money moves are the numbers that settle.
package payout

import "math"

// Tier is the hauler's partnership tier. Fees do not differ by tier today;
// the lookup exists so a future tier-based differentiation lands here
// instead of inside the settlement path.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
	TierElite    Tier = "elite"
)

// tierFeeAdjustment is added to the platform fee percent per tier.
// All zero today (reserved for future differentiation).
var tierFeeAdjustment = map[Tier]float64{
	TierStandard: 0,
	TierPro:      0,
	TierElite:    0,
}

// Documented platform constants, in cents / percentage points.
const (
	// FeePercentLLC applies to LLC-verified pros.
	FeePercentLLC = 20.0
	// FeePercentDefault applies to everyone else.
	FeePercentDefault = 25.0
	// InsuranceFeeCents is the flat surcharge charged to non-LLC pros
	// without their own liability coverage or a waiver.
	InsuranceFeeCents int64 = 1500
	// CertFeeReductionPoints is deducted from the fee percent per active,
	// non-expired certification.
	CertFeeReductionPoints = 0.5
	// CertFeeReductionCapPoints bounds the total certification discount.
	CertFeeReductionCapPoints = 5.0
	// MinPayoutCents is the platform minimum a pro takes home on a job,
	// unless the service type carries a recurring-service exemption.
	MinPayoutCents int64 = 2500
)

// Options carries the pro- and job-specific inputs that change the split.
type Options struct {
	IsVerifiedLLC   bool
	HasOwnInsurance bool
	InsuranceWaived bool
	ActiveCertCount int
	RecurringExempt bool
}

// Breakdown is the settled split for one job.
type Breakdown struct {
	TotalCents         int64   `json:"totalCents"`
	PlatformFeePercent float64 `json:"platformFeePercent"`
	PlatformFeeCents   int64   `json:"platformFeeCents"`
	InsuranceFeeCents  int64   `json:"insuranceFeeCents"`
	HaulerPayoutCents  int64   `json:"haulerPayoutCents"`
	IsVerifiedLLC      bool    `json:"isVerifiedLlc"`
}

// Calculate derives the payout split for a base service amount.
// totalCents is the service amount excluding the customer protection fee.
// Guarantees: PlatformFeeCents + InsuranceFeeCents + HaulerPayoutCents
// <= TotalCents, and HaulerPayoutCents >= 0.
func Calculate(totalCents int64, tier Tier, opts Options) Breakdown {
	if totalCents < 0 {
		totalCents = 0
	}

	pct := FeePercentDefault
	if opts.IsVerifiedLLC {
		pct = FeePercentLLC
	}
	pct += tierFeeAdjustment[tier]

	reduction := CertFeeReductionPoints * float64(opts.ActiveCertCount)
	if reduction > CertFeeReductionCapPoints {
		reduction = CertFeeReductionCapPoints
	}
	pct -= reduction
	if pct < 0 {
		pct = 0
	}

	feeCents := roundCents(float64(totalCents) * pct / 100)

	var insuranceCents int64
	if !opts.IsVerifiedLLC && !opts.HasOwnInsurance && !opts.InsuranceWaived {
		insuranceCents = InsuranceFeeCents
		if insuranceCents > totalCents-feeCents {
			insuranceCents = maxInt64(totalCents-feeCents, 0)
		}
	}

	payout := totalCents - feeCents - insuranceCents
	if payout < 0 {
		payout = 0
	}

	// Platform minimum: raise the payout at the platform's expense, never
	// past what the job actually collected.
	if !opts.RecurringExempt && payout < MinPayoutCents {
		raised := minInt64(MinPayoutCents, totalCents-insuranceCents)
		if raised > payout {
			payout = maxInt64(raised, 0)
			feeCents = totalCents - insuranceCents - payout
			if feeCents < 0 {
				feeCents = 0
			}
		}
	}

	return Breakdown{
		TotalCents:         totalCents,
		PlatformFeePercent: pct,
		PlatformFeeCents:   feeCents,
		InsuranceFeeCents:  insuranceCents,
		HaulerPayoutCents:  payout,
		IsVerifiedLLC:      opts.IsVerifiedLLC,
	}
}

// roundCents rounds half-up to a whole number of cents.
func roundCents(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
