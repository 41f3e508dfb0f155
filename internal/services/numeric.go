package services

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericFromDecimal converts to pgtype.Numeric with two fractional digits,
// the precision of every monetary column.
func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	scaled := d.Round(2).Shift(2)
	return pgtype.Numeric{
		Int:   scaled.BigInt(),
		Exp:   -2,
		Valid: true,
	}
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
