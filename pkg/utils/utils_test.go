package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapitalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "approved", input: "approved", expected: "Approved"},
		{name: "already capitalized", input: "Rejected", expected: "Rejected"},
		{name: "empty", input: "", expected: ""},
		{name: "single rune", input: "p", expected: "P"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Capitalize(tt.input))
		})
	}
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Jane Doe", "jane"))
	assert.True(t, ContainsFold("JANE@EXAMPLE.COM", "example"))
	assert.True(t, ContainsFold("anything", ""))
	assert.False(t, ContainsFold("Jane Doe", "smith"))
}

func TestMatchAllowedAmount(t *testing.T) {
	allowed := []string{"2000", "2500", "3000"}

	tests := []struct {
		name     string
		value    string
		expected string
		ok       bool
	}{
		{name: "exact", value: "2500", expected: "2500", ok: true},
		{name: "decimal notation", value: "2000.00", expected: "2000", ok: true},
		{name: "surrounding space", value: " 3000 ", expected: "3000", ok: true},
		{name: "not offered", value: "2750", ok: false},
		{name: "not a number", value: "lots", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchAllowedAmount(tt.value, allowed)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
