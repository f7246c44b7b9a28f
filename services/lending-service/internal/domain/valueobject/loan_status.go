package valueobject

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// LoanStatus – immutable value object
// ---------------------------------------------------------------------------

// LoanStatus represents the lifecycle stage of a disbursed loan.
type LoanStatus struct {
	value string
}

const (
	loanStatusActive     = "ACTIVE"
	loanStatusDelinquent = "DELINQUENT"
	loanStatusPaidOff    = "PAID_OFF"
	loanStatusWrittenOff = "WRITTEN_OFF"
)

var (
	LoanStatusActive     = LoanStatus{value: loanStatusActive}
	LoanStatusDelinquent = LoanStatus{value: loanStatusDelinquent}
	LoanStatusPaidOff    = LoanStatus{value: loanStatusPaidOff}
	LoanStatusWrittenOff = LoanStatus{value: loanStatusWrittenOff}
)

var validLoanStatuses = map[string]LoanStatus{
	loanStatusActive:     LoanStatusActive,
	loanStatusDelinquent: LoanStatusDelinquent,
	loanStatusPaidOff:    LoanStatusPaidOff,
	loanStatusWrittenOff: LoanStatusWrittenOff,
}

// NewLoanStatus creates a LoanStatus from a raw string.
func NewLoanStatus(s string) (LoanStatus, error) {
	v, ok := validLoanStatuses[s]
	if !ok {
		return LoanStatus{}, fmt.Errorf("invalid loan status: %q", s)
	}
	return v, nil
}

// String returns the string representation of the status.
func (s LoanStatus) String() string { return s.value }

// IsZero returns true if the status has not been initialised.
func (s LoanStatus) IsZero() bool { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s LoanStatus) Equal(other LoanStatus) bool { return s.value == other.value }

// AcceptsRepayments reports whether repayments and restructures may be applied.
func (s LoanStatus) AcceptsRepayments() bool {
	return s.value == loanStatusActive || s.value == loanStatusDelinquent
}

// ---------------------------------------------------------------------------
// RestructureRequestStatus – immutable value object
// ---------------------------------------------------------------------------

// RestructureRequestStatus is the approval state of a restructure request.
// Transitions are one-way: PENDING_APPROVAL to APPROVED or REJECTED.
type RestructureRequestStatus struct {
	value string
}

const (
	restructurePending  = "PENDING_APPROVAL"
	restructureApproved = "APPROVED"
	restructureRejected = "REJECTED"
)

var (
	RestructureStatusPending  = RestructureRequestStatus{value: restructurePending}
	RestructureStatusApproved = RestructureRequestStatus{value: restructureApproved}
	RestructureStatusRejected = RestructureRequestStatus{value: restructureRejected}
)

var validRestructureStatuses = map[string]RestructureRequestStatus{
	restructurePending:  RestructureStatusPending,
	restructureApproved: RestructureStatusApproved,
	restructureRejected: RestructureStatusRejected,
}

// NewRestructureRequestStatus creates a RestructureRequestStatus from a raw string.
func NewRestructureRequestStatus(s string) (RestructureRequestStatus, error) {
	v, ok := validRestructureStatuses[s]
	if !ok {
		return RestructureRequestStatus{}, fmt.Errorf("invalid restructure request status: %q", s)
	}
	return v, nil
}

func (s RestructureRequestStatus) String() string { return s.value }
func (s RestructureRequestStatus) IsZero() bool   { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s RestructureRequestStatus) Equal(other RestructureRequestStatus) bool {
	return s.value == other.value
}

// IsPending reports whether the request still awaits a decision.
func (s RestructureRequestStatus) IsPending() bool { return s.value == restructurePending }
