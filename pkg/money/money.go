package money

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// ErrCurrencyMismatch is matched by every *CurrencyMismatchError.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// CurrencyMismatchError is returned by arithmetic between two different currencies.
type CurrencyMismatchError struct {
	Op    string
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: cannot %s %s and %s", e.Op, e.Left, e.Right)
}

// Code returns the stable error code.
func (e *CurrencyMismatchError) Code() string { return "money.currency_mismatch" }

// Is reports ErrCurrencyMismatch as a match.
func (e *CurrencyMismatchError) Is(target error) bool { return target == ErrCurrencyMismatch }

// Currency is an ISO 4217 currency code together with the scale amounts are kept at.
type Currency struct {
	code               string
	digitsAfterDecimal int32
	inMultiplesOf      int64
}

// NewCurrency creates a Currency with two digits after the decimal point.
func NewCurrency(code string) (Currency, error) {
	return NewCurrencyWithScale(code, 2, 0)
}

// NewCurrencyWithScale creates a Currency with an explicit scale. inMultiplesOf of zero
// disables multiple rounding; otherwise rounded amounts are multiples of that value.
func NewCurrencyWithScale(code string, digitsAfterDecimal int32, inMultiplesOf int64) (Currency, error) {
	if !currencyCodeRe.MatchString(code) {
		return Currency{}, fmt.Errorf("invalid currency code %q: must be exactly 3 uppercase letters", code)
	}
	if digitsAfterDecimal < 0 || digitsAfterDecimal > 8 {
		return Currency{}, fmt.Errorf("invalid digits after decimal %d for %s", digitsAfterDecimal, code)
	}
	if inMultiplesOf < 0 {
		return Currency{}, fmt.Errorf("invalid in-multiples-of %d for %s", inMultiplesOf, code)
	}
	return Currency{code: code, digitsAfterDecimal: digitsAfterDecimal, inMultiplesOf: inMultiplesOf}, nil
}

// MustCurrency creates a Currency and panics on error. Intended for package-level variable
// initialization only.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Code returns the ISO 4217 currency code.
func (c Currency) Code() string {
	return c.code
}

// DigitsAfterDecimal returns the number of decimal places amounts are rounded to.
func (c Currency) DigitsAfterDecimal() int32 { return c.digitsAfterDecimal }

// InMultiplesOf returns the rounding multiple, zero when unused.
func (c Currency) InMultiplesOf() int64 { return c.inMultiplesOf }

// String returns the currency code.
func (c Currency) String() string {
	return c.code
}

// Common currencies.
var (
	USD = MustCurrency("USD")
	EUR = MustCurrency("EUR")
	GBP = MustCurrency("GBP")
)

// Money represents an immutable monetary amount with currency.
// Fields are unexported to enforce immutability.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// New creates a Money value from a decimal amount and currency.
func New(amount decimal.Decimal, currency Currency) Money {
	return Money{amount: amount, currency: currency}
}

// NewFromString parses an amount string and currency code into a Money value.
func NewFromString(amount string, currency string) (Money, error) {
	cur, err := NewCurrency(currency)
	if err != nil {
		return Money{}, fmt.Errorf("invalid currency: %w", err)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	return Money{amount: d, currency: cur}, nil
}

// Zero returns a Money value of zero in the given currency.
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency.
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// SameCurrency reports whether both values are in the same currency.
func (m Money) SameCurrency(other Money) bool {
	return m.currency.code == other.currency.code
}

// Add returns the sum of m and other. Returns a *CurrencyMismatchError if the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, &CurrencyMismatchError{Op: "add", Left: m.currency.code, Right: other.currency.code}
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns the difference of m minus other. Returns a *CurrencyMismatchError if the
// currencies differ.
func (m Money) Subtract(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, &CurrencyMismatchError{Op: "subtract", Left: m.currency.code, Right: other.currency.code}
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Compare returns -1, 0 or +1 as m is less than, equal to or greater than other.
func (m Money) Compare(other Money) (int, error) {
	if !m.SameCurrency(other) {
		return 0, &CurrencyMismatchError{Op: "compare", Left: m.currency.code, Right: other.currency.code}
	}
	return m.amount.Cmp(other.amount), nil
}

// Multiply returns m multiplied by the given factor. The result is not rounded.
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Negate returns m with the sign of the amount flipped.
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Abs returns m with the absolute value of the amount.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Round applies the currency scale and in-multiples-of using the policy's rounding mode.
func (m Money) Round(policy RoundingPolicy) Money {
	return Money{amount: policy.RoundCurrency(m.amount, m.currency), currency: m.currency}
}

// Equal returns true if both the amount and currency of m and other are equal.
func (m Money) Equal(other Money) bool {
	return m.SameCurrency(other) && m.amount.Equal(other.amount)
}

// String formats the Money value as "<amount> <currency>" at the currency scale,
// for example "100.00 USD".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(m.currency.digitsAfterDecimal), m.currency.Code())
}
