package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusMatching, StatusPending, true},
		{StatusMatching, StatusAssigned, true},
		{StatusPending, StatusAssigned, true},
		{StatusAssigned, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusMatching, StatusCancelled, true},
		{StatusPending, StatusCancelled, true},
		{StatusAssigned, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},

		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusMatching, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusPending, StatusInProgress, false},
		{StatusMatching, StatusCompleted, false},
		{StatusAssigned, StatusCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{StatusMatching, StatusPending, StatusAssigned, StatusInProgress} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if st, ok := ParseStatus("in_progress"); !ok || st != StatusInProgress {
		t.Fatalf("ParseStatus(in_progress) = %s, %v", st, ok)
	}
	if _, ok := ParseStatus("paused"); ok {
		t.Fatal("ParseStatus accepted an unknown status")
	}
}

func TestCanTransitionPayment(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentAuthorized, true},
		{PaymentAuthorized, PaymentCapturing, true},
		{PaymentAuthorized, PaymentVoided, true},
		{PaymentCapturing, PaymentCaptured, true},
		{PaymentCapturing, PaymentCaptureFailed, true},
		{PaymentCaptureFailed, PaymentCapturing, true},
		{PaymentCaptured, PaymentRefunded, true},

		{PaymentAuthorized, PaymentCaptured, false},
		{PaymentCaptured, PaymentCapturing, false},
		{PaymentCaptured, PaymentPending, false},
		{PaymentPending, PaymentCaptured, false},
		{PaymentRefunded, PaymentCaptured, false},
		{PaymentVoided, PaymentCapturing, false},
		{PaymentVoided, PaymentAuthorized, false},
	}
	for _, tc := range cases {
		if got := CanTransitionPayment(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionPayment(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
