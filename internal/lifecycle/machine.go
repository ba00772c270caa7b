// Package lifecycle decides which admin-triggered status changes an
// application may go through.
package lifecycle

import (
	"errors"

	"github.com/segyhp/lead-intake/internal/domain"
	customError "github.com/segyhp/lead-intake/pkg/errors"
)

var (
	ErrUnknownStatus = errors.New("unknown application status")
	// ErrNoTransition is returned when the target equals the current status.
	ErrNoTransition = errors.New("status unchanged")
)

type rule struct {
	confirm bool
}

// transitions is keyed by source status. approved has no outgoing edges.
var transitions = map[domain.Status]map[domain.Status]rule{
	domain.StatusPending: {
		domain.StatusApproved: {},
		domain.StatusRejected: {confirm: true},
	},
	domain.StatusRejected: {
		domain.StatusPending: {},
	},
}

// Validate reports whether an admin may move an application from one status
// to another. confirmed must be true for transitions that need an explicit
// confirmation step.
func Validate(from, to domain.Status, confirmed bool) error {
	if !from.Valid() || !to.Valid() {
		return ErrUnknownStatus
	}
	if from == to {
		return ErrNoTransition
	}
	r, ok := transitions[from][to]
	if !ok {
		return customError.WrapTransitionNotAllowed(from.String(), to.String())
	}
	if r.confirm && !confirmed {
		return customError.WrapConfirmationRequired(from.String(), to.String())
	}
	return nil
}

// CanTransition ignores the confirmation step.
func CanTransition(from, to domain.Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// RequiresConfirmation reports whether from -> to needs an explicit confirmation.
func RequiresConfirmation(from, to domain.Status) bool {
	return transitions[from][to].confirm
}

// Allowed lists the statuses reachable from from, in a stable order.
func Allowed(from domain.Status) []domain.Status {
	out := make([]domain.Status, 0, 2)
	for _, to := range domain.Statuses {
		if CanTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}
