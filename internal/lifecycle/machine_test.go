package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/segyhp/lead-intake/internal/domain"
	customError "github.com/segyhp/lead-intake/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		from      domain.Status
		to        domain.Status
		confirmed bool
		expected  error
	}{
		{name: "approve pending", from: domain.StatusPending, to: domain.StatusApproved},
		{name: "reject pending with confirmation", from: domain.StatusPending, to: domain.StatusRejected, confirmed: true},
		{name: "reject pending without confirmation", from: domain.StatusPending, to: domain.StatusRejected, expected: customError.ErrConfirmationRequired},
		{name: "reset rejected", from: domain.StatusRejected, to: domain.StatusPending},
		{name: "approved is not reopened", from: domain.StatusApproved, to: domain.StatusPending, expected: customError.ErrTransitionNotAllowed},
		{name: "approved is not rejected", from: domain.StatusApproved, to: domain.StatusRejected, confirmed: true, expected: customError.ErrTransitionNotAllowed},
		{name: "rejected is not approved directly", from: domain.StatusRejected, to: domain.StatusApproved, expected: customError.ErrTransitionNotAllowed},
		{name: "same status", from: domain.StatusPending, to: domain.StatusPending, expected: ErrNoTransition},
		{name: "unknown target", from: domain.StatusPending, to: domain.Status("archived"), expected: ErrUnknownStatus},
		{name: "unknown source", from: domain.Status(""), to: domain.StatusApproved, expected: ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.from, tt.to, tt.confirmed)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}
}

func TestAllowed(t *testing.T) {
	assert.Equal(t, []domain.Status{domain.StatusApproved, domain.StatusRejected}, Allowed(domain.StatusPending))
	assert.Equal(t, []domain.Status{domain.StatusPending}, Allowed(domain.StatusRejected))
	assert.Empty(t, Allowed(domain.StatusApproved))
}

func TestRequiresConfirmation(t *testing.T) {
	assert.True(t, RequiresConfirmation(domain.StatusPending, domain.StatusRejected))
	assert.False(t, RequiresConfirmation(domain.StatusPending, domain.StatusApproved))
	assert.False(t, RequiresConfirmation(domain.StatusRejected, domain.StatusPending))
}
