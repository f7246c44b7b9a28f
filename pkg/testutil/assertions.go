package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	require.NoError(t, err, msgAndArgs...)
}

// AssertErrorContains checks that err contains the expected substring.
func AssertErrorContains(t *testing.T, err error, expected string) {
	t.Helper()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), expected)
}

// AssertErrorCode checks that err wraps an error exposing the given stable code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var coder interface{ Code() string }
	if assert.True(t, errors.As(err, &coder), "error %v carries no code", err) {
		assert.Equal(t, code, coder.Code())
	}
}

// AssertDecimalEqual compares decimals by value, ignoring scale.
func AssertDecimalEqual(t *testing.T, expected string, actual decimal.Decimal) bool {
	t.Helper()
	return assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}
