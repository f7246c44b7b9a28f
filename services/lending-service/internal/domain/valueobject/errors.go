package valueobject

import (
	"errors"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidStatusTransition     = errors.New("invalid status transition")
	ErrNotFound                    = errors.New("not found")
	ErrScheduleDateIntegrity       = errors.New("no installment at the selected start date")
	ErrTemporalOrdering            = errors.New("start date precedes the last applied transaction")
	ErrDuplicateRestructureRequest = errors.New("a restructure request is already pending for this loan")
	ErrDataIntegrity               = errors.New("data integrity violation")
	ErrVariationCycle              = errors.New("term variation parent chain contains a cycle")
	ErrScheduleTooLong             = errors.New("schedule exceeds the maximum number of installments")
	ErrLiquidationExceedsBalance   = errors.New("liquidation amount exceeds outstanding principal")
	ErrConcurrentModification      = errors.New("aggregate was modified concurrently")
)

// Stable error codes.
const (
	CodeInvalidStatusTransition     = "lending.invalid_status_transition"
	CodeNotFound                    = "lending.not_found"
	CodeScheduleDateIntegrity       = "lending.schedule_date_integrity"
	CodeTemporalOrdering            = "lending.temporal_ordering"
	CodeDuplicateRestructureRequest = "lending.duplicate_restructure_request"
	CodeDataIntegrity               = "lending.data_integrity"
	CodeVariationCycle              = "lending.variation_cycle"
	CodeScheduleTooLong             = "lending.schedule_too_long"
	CodeLiquidationExceedsBalance   = "lending.liquidation_exceeds_balance"
	CodeConcurrentModification      = "lending.concurrent_modification"
)

// Coder is implemented by errors that carry a stable code.
type Coder interface {
	Code() string
}

// DomainError is a typed error with a stable code and a human-readable message.
// Err is the sentinel (or underlying cause) matched by errors.Is.
type DomainError struct {
	code    string
	message string
	err     error
}

func newDomainError(code string, sentinel error, format string, args ...any) *DomainError {
	return &DomainError{code: code, message: fmt.Sprintf(format, args...), err: sentinel}
}

func (e *DomainError) Error() string   { return e.message }
func (e *DomainError) Code() string    { return e.code }
func (e *DomainError) Message() string { return e.message }
func (e *DomainError) Unwrap() error   { return e.err }

// NewScheduleDateIntegrityError reports that no installment is due on date.
func NewScheduleDateIntegrityError(date time.Time) *DomainError {
	return newDomainError(CodeScheduleDateIntegrity, ErrScheduleDateIntegrity,
		"no installment at the selected start date %s", date.Format(time.DateOnly))
}

// NewTemporalOrderingError reports that from precedes the last applied transaction.
func NewTemporalOrderingError(from, lastTxn time.Time) *DomainError {
	return newDomainError(CodeTemporalOrdering, ErrTemporalOrdering,
		"start date %s precedes the last transaction on %s",
		from.Format(time.DateOnly), lastTxn.Format(time.DateOnly))
}

// NewDuplicateRestructureRequestError reports an outstanding pending request.
func NewDuplicateRestructureRequestError(loanID, pendingID string) *DomainError {
	return newDomainError(CodeDuplicateRestructureRequest, ErrDuplicateRestructureRequest,
		"loan %s already has pending restructure request %s", loanID, pendingID)
}

// NewDataIntegrityError wraps a persistence-layer constraint violation.
func NewDataIntegrityError(constraint string, cause error) *DomainError {
	return &DomainError{
		code:    CodeDataIntegrity,
		message: fmt.Sprintf("data integrity violation on %s", constraint),
		err:     errors.Join(ErrDataIntegrity, cause),
	}
}

// NewNotFoundError reports a missing aggregate.
func NewNotFoundError(kind, id string) *DomainError {
	return newDomainError(CodeNotFound, ErrNotFound, "%s %s not found", kind, id)
}

// NewVariationCycleError reports a cyclic parent chain.
func NewVariationCycleError(variationID string) *DomainError {
	return newDomainError(CodeVariationCycle, ErrVariationCycle,
		"term variation %s is part of a parent cycle", variationID)
}

// NewScheduleTooLongError reports a runaway schedule.
func NewScheduleTooLongError(limit int) *DomainError {
	return newDomainError(CodeScheduleTooLong, ErrScheduleTooLong,
		"schedule exceeds %d installments", limit)
}

// NewLiquidationExceedsBalanceError reports an over-sized part liquidation.
func NewLiquidationExceedsBalanceError(amount, outstanding string) *DomainError {
	return newDomainError(CodeLiquidationExceedsBalance, ErrLiquidationExceedsBalance,
		"liquidation amount %s exceeds outstanding principal %s", amount, outstanding)
}

// NewConcurrentModificationError reports a save against a stale version.
func NewConcurrentModificationError(kind, id string, version int) *DomainError {
	return newDomainError(CodeConcurrentModification, ErrConcurrentModification,
		"optimistic locking conflict on %s %s at version %d", kind, id, version)
}

// NewInvalidTransitionError reports a forbidden status change.
func NewInvalidTransitionError(kind, from, to string) *DomainError {
	return newDomainError(CodeInvalidStatusTransition, ErrInvalidStatusTransition,
		"%s cannot move from %s to %s", kind, from, to)
}

// ErrorCode returns the stable code carried anywhere in err's chain, or "" when none.
func ErrorCode(err error) string {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
