package valueobject

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors matched with errors.Is.
var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotFound                = errors.New("not found")
	ErrNotYetMatured           = errors.New("deposit has not reached maturity")
	ErrAccrualBackdated        = errors.New("accrual date precedes the last accrual")
	ErrProductInactive         = errors.New("deposit product is inactive")
	ErrConcurrentModification  = errors.New("aggregate was modified concurrently")
	ErrInvalidInput            = errors.New("invalid input")
)

// Stable error codes.
const (
	CodeInvalidStatusTransition = "deposit.invalid_status_transition"
	CodeNotFound                = "deposit.not_found"
	CodeNotYetMatured           = "deposit.not_yet_matured"
	CodeAccrualBackdated        = "deposit.accrual_backdated"
	CodeProductInactive         = "deposit.product_inactive"
	CodeConcurrentModification  = "deposit.concurrent_modification"
	CodeInvalidInput            = "deposit.invalid_input"
)

// DomainError carries a stable code next to its message.
type DomainError struct {
	code    string
	message string
	err     error
}

func newDomainError(code string, sentinel error, format string, args ...any) *DomainError {
	return &DomainError{code: code, message: fmt.Sprintf(format, args...), err: sentinel}
}

func (e *DomainError) Error() string { return e.message }
func (e *DomainError) Code() string  { return e.code }
func (e *DomainError) Unwrap() error { return e.err }

func NewInvalidTransitionError(from, to AccountStatus) *DomainError {
	return newDomainError(CodeInvalidStatusTransition, ErrInvalidStatusTransition,
		"deposit account cannot move from %s to %s", from, to)
}

// NewInvalidOperationError reports an operation the current status does not allow.
func NewInvalidOperationError(op string, status AccountStatus) *DomainError {
	return newDomainError(CodeInvalidStatusTransition, ErrInvalidStatusTransition,
		"cannot %s a %s deposit account", op, status)
}

func NewNotFoundError(kind, id string) *DomainError {
	return newDomainError(CodeNotFound, ErrNotFound, "%s %s not found", kind, id)
}

func NewNotYetMaturedError(maturity, on time.Time) *DomainError {
	return newDomainError(CodeNotYetMatured, ErrNotYetMatured,
		"deposit matures on %s, not %s", maturity.Format(time.DateOnly), on.Format(time.DateOnly))
}

func NewAccrualBackdatedError(asOf, last time.Time) *DomainError {
	return newDomainError(CodeAccrualBackdated, ErrAccrualBackdated,
		"accrual date %s is before last accrual %s", asOf.Format(time.DateOnly), last.Format(time.DateOnly))
}

func NewProductInactiveError(id string) *DomainError {
	return newDomainError(CodeProductInactive, ErrProductInactive, "deposit product %s is inactive", id)
}

func NewConcurrentModificationError(kind, id string, version int) *DomainError {
	return newDomainError(CodeConcurrentModification, ErrConcurrentModification,
		"optimistic locking conflict on %s %s at version %d", kind, id, version)
}

// NewInvalidInputError marks err as a rejected request. err stays in the chain next to
// ErrInvalidInput.
func NewInvalidInputError(err error) *DomainError {
	return &DomainError{code: CodeInvalidInput, message: err.Error(), err: errors.Join(ErrInvalidInput, err)}
}

// ErrorCode returns the stable code in err's chain, or "" when none.
func ErrorCode(err error) string {
	var c interface{ Code() string }
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
