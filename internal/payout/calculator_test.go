package payout

import "testing"

func TestCalculateIndependentPro(t *testing.T) {
	// $107 customer total with the 7% protection fee stripped: base $100.
	got := Calculate(10000, TierStandard, Options{})

	if got.PlatformFeePercent != 25.0 {
		t.Fatalf("expected 25%% fee, got %.2f", got.PlatformFeePercent)
	}
	if got.PlatformFeeCents != 2500 {
		t.Fatalf("expected platform fee 2500, got %d", got.PlatformFeeCents)
	}
	if got.InsuranceFeeCents != InsuranceFeeCents {
		t.Fatalf("expected insurance fee %d, got %d", InsuranceFeeCents, got.InsuranceFeeCents)
	}
	if got.HaulerPayoutCents != 6000 {
		t.Fatalf("expected payout 6000, got %d", got.HaulerPayoutCents)
	}
}

func TestCalculateVerifiedLLC(t *testing.T) {
	got := Calculate(10000, TierStandard, Options{IsVerifiedLLC: true})

	if got.PlatformFeePercent != 20.0 {
		t.Fatalf("expected 20%% fee, got %.2f", got.PlatformFeePercent)
	}
	if got.InsuranceFeeCents != 0 {
		t.Fatalf("LLC pros pay no insurance surcharge, got %d", got.InsuranceFeeCents)
	}
	if got.HaulerPayoutCents != 8000 {
		t.Fatalf("expected payout 8000, got %d", got.HaulerPayoutCents)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	opts := Options{IsVerifiedLLC: true, ActiveCertCount: 3}
	first := Calculate(10000, TierPro, opts)
	second := Calculate(10000, TierPro, opts)
	if first != second {
		t.Fatalf("identical inputs produced different breakdowns: %+v vs %+v", first, second)
	}
}

func TestCalculateCertReductions(t *testing.T) {
	got := Calculate(10000, TierStandard, Options{IsVerifiedLLC: true, ActiveCertCount: 2})
	if got.PlatformFeePercent != 19.0 {
		t.Fatalf("expected 19%% after two certs, got %.2f", got.PlatformFeePercent)
	}

	capped := Calculate(10000, TierStandard, Options{IsVerifiedLLC: true, ActiveCertCount: 40})
	if capped.PlatformFeePercent != 15.0 {
		t.Fatalf("expected reduction capped at 5 points, got %.2f", capped.PlatformFeePercent)
	}
}

func TestCalculateInsuranceWaivers(t *testing.T) {
	own := Calculate(10000, TierStandard, Options{HasOwnInsurance: true})
	if own.InsuranceFeeCents != 0 {
		t.Fatalf("own liability coverage should waive the surcharge, got %d", own.InsuranceFeeCents)
	}

	waived := Calculate(10000, TierStandard, Options{InsuranceWaived: true})
	if waived.InsuranceFeeCents != 0 {
		t.Fatalf("explicit waiver should drop the surcharge, got %d", waived.InsuranceFeeCents)
	}
}

func TestCalculateMinimumFloor(t *testing.T) {
	// A tiny job: the floor lifts the payout at the platform's expense.
	got := Calculate(3000, TierStandard, Options{IsVerifiedLLC: true})
	if got.HaulerPayoutCents != MinPayoutCents {
		t.Fatalf("expected floor %d, got %d", MinPayoutCents, got.HaulerPayoutCents)
	}

	// Recurring-service exemption skips the floor.
	exempt := Calculate(3000, TierStandard, Options{IsVerifiedLLC: true, RecurringExempt: true})
	if exempt.HaulerPayoutCents != 2400 {
		t.Fatalf("expected raw payout 2400, got %d", exempt.HaulerPayoutCents)
	}
}

func TestCalculateInvariants(t *testing.T) {
	amounts := []int64{0, 1, 99, 1500, 2500, 3000, 10000, 10700, 250000}
	optSets := []Options{
		{},
		{IsVerifiedLLC: true},
		{HasOwnInsurance: true},
		{ActiveCertCount: 7},
		{IsVerifiedLLC: true, ActiveCertCount: 12, RecurringExempt: true},
		{InsuranceWaived: true, RecurringExempt: true},
	}

	for _, amount := range amounts {
		for _, opts := range optSets {
			got := Calculate(amount, TierStandard, opts)
			if got.HaulerPayoutCents < 0 {
				t.Fatalf("payout went negative for %d %+v: %+v", amount, opts, got)
			}
			sum := got.PlatformFeeCents + got.InsuranceFeeCents + got.HaulerPayoutCents
			if sum > got.TotalCents {
				t.Fatalf("split exceeds total for %d %+v: sum %d > %d", amount, opts, sum, got.TotalCents)
			}
		}
	}
}

func TestCalculateNegativeAmountClamped(t *testing.T) {
	got := Calculate(-500, TierStandard, Options{RecurringExempt: true})
	if got.TotalCents != 0 || got.HaulerPayoutCents != 0 {
		t.Fatalf("negative amounts must clamp to zero, got %+v", got)
	}
}
