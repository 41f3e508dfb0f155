package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDailyFineRate is the fine accrued per whole overdue day, in
// currency units, unless overridden through configuration.
var DefaultDailyFineRate = decimal.NewFromInt(10)

// FinePolicy computes overdue days and fine amounts. It holds only the
// configured rate and has no other state, so it can be exercised standalone.
type FinePolicy struct {
	dailyRate decimal.Decimal
}

func NewFinePolicy(dailyRate decimal.Decimal) *FinePolicy {
	return &FinePolicy{dailyRate: dailyRate}
}

// ComputeOverdue returns the number of whole days actual falls after
// expected and the resulting fine. Partial days are floored, so a return
// that is late by less than 24 hours carries no fine.
func (p *FinePolicy) ComputeOverdue(expected, actual time.Time) (int32, decimal.Decimal) {
	if !actual.After(expected) {
		return 0, decimal.Zero
	}

	days := int32(actual.Sub(expected).Hours() / 24)
	if days == 0 {
		return 0, decimal.Zero
	}

	return days, p.dailyRate.Mul(decimal.NewFromInt(int64(days))).Round(2)
}
