package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFinePolicy_ComputeOverdue(t *testing.T) {
	policy := NewFinePolicy(decimal.NewFromInt(10))
	due := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		actual   time.Time
		wantDays int32
		wantFine string
	}{
		{
			name:     "returned before due date",
			actual:   due.Add(-48 * time.Hour),
			wantDays: 0,
			wantFine: "0",
		},
		{
			name:     "returned exactly on due date",
			actual:   due,
			wantDays: 0,
			wantFine: "0",
		},
		{
			name:     "partial day late carries no fine",
			actual:   due.Add(23 * time.Hour),
			wantDays: 0,
			wantFine: "0",
		},
		{
			name:     "one whole day late",
			actual:   due.Add(24 * time.Hour),
			wantDays: 1,
			wantFine: "10",
		},
		{
			name:     "five days late",
			actual:   due.Add(5 * 24 * time.Hour),
			wantDays: 5,
			wantFine: "50",
		},
		{
			name:     "five days and a few hours floors to five",
			actual:   due.Add(5*24*time.Hour + 7*time.Hour),
			wantDays: 5,
			wantFine: "50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, fine := policy.ComputeOverdue(due, tt.actual)
			assert.Equal(t, tt.wantDays, days)
			assert.True(t, fine.Equal(decimal.RequireFromString(tt.wantFine)),
				"fine = %s, want %s", fine, tt.wantFine)
		})
	}
}

func TestFinePolicy_ComputeOverdue_FractionalRate(t *testing.T) {
	policy := NewFinePolicy(decimal.RequireFromString("2.50"))
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	days, fine := policy.ComputeOverdue(due, due.Add(3*24*time.Hour))
	assert.Equal(t, int32(3), days)
	assert.True(t, fine.Equal(decimal.RequireFromString("7.50")), "fine = %s", fine)
}

func TestFinePolicy_ComputeOverdue_RoundsToCents(t *testing.T) {
	policy := NewFinePolicy(decimal.RequireFromString("0.333"))
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	_, fine := policy.ComputeOverdue(due, due.Add(24*time.Hour))
	assert.True(t, fine.Equal(decimal.RequireFromString("0.33")), "fine = %s", fine)
}
