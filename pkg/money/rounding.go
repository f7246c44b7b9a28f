package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingMode selects how discarded digits are resolved.
type RoundingMode string

const (
	RoundHalfEven RoundingMode = "HALF_EVEN"
	RoundHalfUp   RoundingMode = "HALF_UP"
	RoundUp       RoundingMode = "UP"
	RoundDown     RoundingMode = "DOWN"
	RoundCeiling  RoundingMode = "CEILING"
	RoundFloor    RoundingMode = "FLOOR"
)

// ParseRoundingMode converts a configuration string into a RoundingMode.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(strings.ToUpper(strings.TrimSpace(s))) {
	case RoundHalfEven, "":
		return RoundHalfEven, nil
	case RoundHalfUp:
		return RoundHalfUp, nil
	case RoundUp:
		return RoundUp, nil
	case RoundDown:
		return RoundDown, nil
	case RoundCeiling:
		return RoundCeiling, nil
	case RoundFloor:
		return RoundFloor, nil
	default:
		return "", fmt.Errorf("invalid rounding mode %q", s)
	}
}

// DefaultPrecision is the number of significant digits kept by intermediate results.
const DefaultPrecision = 8

// divisionScale bounds the exact quotient before significant-digit rounding.
const divisionScale = 40

// RoundingPolicy carries the rounding mode and significant-digit precision used by
// schedule computations. It is a plain value passed to every call that rounds.
type RoundingPolicy struct {
	Mode      RoundingMode
	Precision int
}

// DefaultRoundingPolicy returns half-even rounding at eight significant digits.
func DefaultRoundingPolicy() RoundingPolicy {
	return RoundingPolicy{Mode: RoundHalfEven, Precision: DefaultPrecision}
}

// RoundPlaces rounds d to the given number of decimal places (negative rounds left of
// the decimal point).
func (p RoundingPolicy) RoundPlaces(d decimal.Decimal, places int32) decimal.Decimal {
	switch p.Mode {
	case RoundHalfUp:
		return d.Round(places)
	case RoundUp:
		return d.RoundUp(places)
	case RoundDown:
		return d.RoundDown(places)
	case RoundCeiling:
		return d.RoundCeil(places)
	case RoundFloor:
		return d.RoundFloor(places)
	default:
		return d.RoundBank(places)
	}
}

// RoundSignificant rounds d to the policy's number of significant digits.
func (p RoundingPolicy) RoundSignificant(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || p.Precision <= 0 {
		return d
	}
	digits := len(new(big.Int).Abs(d.Coefficient()).String())
	leading := digits + int(d.Exponent())
	return p.RoundPlaces(d, int32(p.Precision-leading))
}

// Div divides a by b keeping the policy's significant digits. b must not be zero.
func (p RoundingPolicy) Div(a, b decimal.Decimal) decimal.Decimal {
	return p.RoundSignificant(a.DivRound(b, divisionScale))
}

// Mul multiplies a by b keeping the policy's significant digits.
func (p RoundingPolicy) Mul(a, b decimal.Decimal) decimal.Decimal {
	return p.RoundSignificant(a.Mul(b))
}

// Pow raises base to a non-negative integer power, rounding every intermediate product
// to the policy's significant digits.
func (p RoundingPolicy) Pow(base decimal.Decimal, n int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	b := base
	for n > 0 {
		if n&1 == 1 {
			result = p.Mul(result, b)
		}
		n >>= 1
		if n > 0 {
			b = p.Mul(b, b)
		}
	}
	return result
}

// RoundCurrency rounds an amount to the currency scale and, when configured, to the
// nearest multiple of the currency's in-multiples-of value.
func (p RoundingPolicy) RoundCurrency(d decimal.Decimal, c Currency) decimal.Decimal {
	rounded := p.RoundPlaces(d, c.digitsAfterDecimal)
	if c.inMultiplesOf > 0 {
		multiple := decimal.NewFromInt(c.inMultiplesOf)
		rounded = p.RoundPlaces(d.Div(multiple), 0).Mul(multiple)
	}
	return rounded
}
