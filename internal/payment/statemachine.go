package payment

import (
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/payment"
)

// Decision is the outcome of checking a requested status change against the
// lifecycle rules.
type Decision int

const (
	// Proceed applies the transition.
	Proceed Decision = iota
	// Ignore drops the request without error. Covers duplicate webhook
	// deliveries and out-of-order events arriving after settlement.
	Ignore
	// Reject refuses the transition as invalid.
	Reject
)

// transitions is the full lifecycle. failed -> completed covers a late
// gateway success, failed -> verifying a resubmitted slip, and
// completed -> refunded is the only exit from completed.
var transitions = map[string]map[string]bool{
	payment.StatusPending: {
		payment.StatusVerifying: true,
		payment.StatusCompleted: true,
		payment.StatusFailed:    true,
	},
	payment.StatusVerifying: {
		payment.StatusCompleted: true,
		payment.StatusFailed:    true,
	},
	payment.StatusCompleted: {
		payment.StatusRefunded: true,
	},
	payment.StatusFailed: {
		payment.StatusVerifying: true,
		payment.StatusCompleted: true,
	},
	payment.StatusRefunded: {},
}

// settled statuses absorb stale or duplicate events instead of erroring, so
// gateway retries of an already-processed webhook get an ack.
var settled = map[string]bool{
	payment.StatusCompleted: true,
	payment.StatusRefunded:  true,
}

func CanTransition(from, to string) bool {
	return transitions[from][to]
}

func IsSettled(status string) bool {
	return settled[status]
}

// Decide classifies a requested transition. Same-state requests are always
// idempotent no-ops.
func Decide(from, to string) Decision {
	if from == to {
		return Ignore
	}
	if CanTransition(from, to) {
		return Proceed
	}
	if IsSettled(from) {
		return Ignore
	}
	return Reject
}
