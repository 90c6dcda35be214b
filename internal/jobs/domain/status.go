// Package domain provides core business rules for the jobs bounded context.
package domain

// Status is the job lifecycle state.
type Status string

const (
	StatusMatching   Status = "matching"
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// jobTransitions lists every legal lifecycle move. A crew job sits in
// matching/pending while slots fill; a direct-assignment job goes straight
// to assigned. Cancellation is legal from any pre-completion state.
var jobTransitions = map[Status][]Status{
	StatusMatching:   {StatusPending, StatusAssigned, StatusCancelled},
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, s := range jobTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true when no further lifecycle moves are possible.
func IsTerminal(s Status) bool {
	return len(jobTransitions[s]) == 0
}

// ParseStatus validates a lifecycle status supplied from outside.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := jobTransitions[st]
	return st, ok
}

// PaymentStatus tracks the funds side independently of the lifecycle.
// A completed job with a failed capture stays completed; only the payment
// status records the failure.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentAuthorized    PaymentStatus = "authorized"
	PaymentCapturing     PaymentStatus = "capturing"
	PaymentCaptured      PaymentStatus = "captured"
	PaymentCaptureFailed PaymentStatus = "capture_failed"
	// PaymentVoided: cancellation released the authorization hold. Terminal;
	// a voided payment can never be claimed for capture.
	PaymentVoided   PaymentStatus = "voided"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:       {PaymentAuthorized},
	PaymentAuthorized:    {PaymentCapturing, PaymentVoided},
	PaymentCapturing:     {PaymentCaptured, PaymentCaptureFailed},
	PaymentCaptureFailed: {PaymentCapturing},
	PaymentCaptured:      {PaymentRefunded},
	PaymentVoided:        {},
	PaymentRefunded:      {},
}

// CanTransitionPayment reports whether from -> to is a legal payment move.
// Capturing is an internal claim state: settlement moves authorized ->
// capturing before touching the gateway so a concurrent settle observes
// the claim and backs off.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PayoutStatus records how the hauler's share left the platform.
type PayoutStatus string

const (
	PayoutNone     PayoutStatus = "none"
	PayoutStandard PayoutStatus = "standard"
	PayoutInstant  PayoutStatus = "instant"
	PayoutDeferred PayoutStatus = "deferred"
)
