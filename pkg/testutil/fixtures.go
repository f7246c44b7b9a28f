package testutil

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fixed identifiers for deterministic testing.
const (
	TestTenantID  = "00000000-0000-0000-0000-000000000010"
	TestUserID    = "00000000-0000-0000-0000-000000000001"
	TestLoanID    = "00000000-0000-0000-0000-000000000100"
	TestAccountID = "00000000-0000-0000-0000-000000000200"
)

// Date returns midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
