package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Currency
// ---------------------------------------------------------------------------

func TestNewCurrency_Valid(t *testing.T) {
	for _, code := range []string{"USD", "EUR", "KES", "JPY"} {
		c, err := NewCurrency(code)
		if err != nil {
			t.Errorf("NewCurrency(%q) unexpected error: %v", code, err)
		}
		if c.Code() != code {
			t.Errorf("NewCurrency(%q).Code() = %q, want %q", code, c.Code(), code)
		}
		if c.DigitsAfterDecimal() != 2 {
			t.Errorf("NewCurrency(%q).DigitsAfterDecimal() = %d, want 2", code, c.DigitsAfterDecimal())
		}
	}
}

func TestNewCurrency_Invalid(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"lowercase", "usd"},
		{"too short", "US"},
		{"too long", "USDD"},
		{"digits", "US1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCurrency(tt.code); err == nil {
				t.Errorf("NewCurrency(%q) expected error, got nil", tt.code)
			}
		})
	}
}

func TestNewCurrencyWithScale_Invalid(t *testing.T) {
	if _, err := NewCurrencyWithScale("USD", -1, 0); err == nil {
		t.Error("expected error for negative digits")
	}
	if _, err := NewCurrencyWithScale("USD", 2, -5); err == nil {
		t.Error("expected error for negative in-multiples-of")
	}
}

func TestMustCurrency_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustCurrency(\"bad\") did not panic")
		}
	}()
	MustCurrency("bad")
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func TestAdd_SameCurrency(t *testing.T) {
	a := New(decimal.NewFromInt(100), USD)
	b := New(decimal.RequireFromString("0.25"), USD)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Amount().Equal(decimal.RequireFromString("100.25")) {
		t.Errorf("Add = %s, want 100.25", sum.Amount())
	}
}

func TestArithmetic_CurrencyMismatch(t *testing.T) {
	usd := New(decimal.NewFromInt(100), USD)
	eur := New(decimal.NewFromInt(100), EUR)

	tests := []struct {
		name string
		op   func() error
	}{
		{"add", func() error { _, err := usd.Add(eur); return err }},
		{"subtract", func() error { _, err := usd.Subtract(eur); return err }},
		{"compare", func() error { _, err := usd.Compare(eur); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if !errors.Is(err, ErrCurrencyMismatch) {
				t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
			}
			var mismatch *CurrencyMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("expected *CurrencyMismatchError, got %T", err)
			}
			if mismatch.Code() != "money.currency_mismatch" {
				t.Errorf("Code() = %q", mismatch.Code())
			}
			if mismatch.Left != "USD" || mismatch.Right != "EUR" {
				t.Errorf("unexpected operands %s/%s", mismatch.Left, mismatch.Right)
			}
		})
	}
}

func TestSameCurrency_IgnoresScaleMetadata(t *testing.T) {
	kes0, _ := NewCurrencyWithScale("KES", 0, 0)
	kes2, _ := NewCurrencyWithScale("KES", 2, 0)

	a := New(decimal.NewFromInt(10), kes0)
	b := New(decimal.NewFromInt(10), kes2)
	if !a.Equal(b) {
		t.Error("expected equal amounts in the same currency code to be equal")
	}
}

func TestCompare(t *testing.T) {
	a := New(decimal.NewFromInt(5), USD)
	b := New(decimal.NewFromInt(7), USD)

	cmp, err := a.Compare(b)
	if err != nil || cmp != -1 {
		t.Errorf("Compare = %d, %v; want -1, nil", cmp, err)
	}
}

func TestImmutability(t *testing.T) {
	m := New(decimal.NewFromInt(100), USD)
	_ = m.Multiply(decimal.NewFromInt(3))
	_ = m.Negate()
	_, _ = m.Add(New(decimal.NewFromInt(1), USD))

	if !m.Amount().Equal(decimal.NewFromInt(100)) {
		t.Errorf("original mutated to %s", m.Amount())
	}
}

// ---------------------------------------------------------------------------
// Rounding and formatting
// ---------------------------------------------------------------------------

func TestRound_CurrencyScale(t *testing.T) {
	policy := DefaultRoundingPolicy()
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1"},
		{"1.015", "1.02"},
		{"1.025", "1.02"},
		{"-2.675", "-2.68"},
	}
	for _, tt := range tests {
		got := New(decimal.RequireFromString(tt.in), USD).Round(policy)
		if !got.Amount().Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Round(%s) = %s, want %s", tt.in, got.Amount(), tt.want)
		}
	}
}

func TestRound_InMultiplesOf(t *testing.T) {
	kes, err := NewCurrencyWithScale("KES", 0, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	policy := RoundingPolicy{Mode: RoundHalfUp, Precision: DefaultPrecision}

	got := New(decimal.NewFromInt(1024), kes).Round(policy)
	if !got.Amount().Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Round(1024) = %s, want 1000", got.Amount())
	}
	got = New(decimal.NewFromInt(1025), kes).Round(policy)
	if !got.Amount().Equal(decimal.NewFromInt(1050)) {
		t.Errorf("Round(1025) = %s, want 1050", got.Amount())
	}
}

func TestString(t *testing.T) {
	jpy, _ := NewCurrencyWithScale("JPY", 0, 0)
	tests := []struct {
		m    Money
		want string
	}{
		{New(decimal.NewFromInt(100), USD), "100.00 USD"},
		{New(decimal.RequireFromString("-3.5"), EUR), "-3.50 EUR"},
		{New(decimal.NewFromInt(1500), jpy), "1500 JPY"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewFromString_Invalid(t *testing.T) {
	if _, err := NewFromString("abc", "USD"); err == nil {
		t.Error("expected error for bad amount")
	}
	if _, err := NewFromString("1", "usd"); err == nil {
		t.Error("expected error for bad currency")
	}
}
