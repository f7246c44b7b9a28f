package valueobject

import "fmt"

// AccountStatus is the lifecycle stage of a term deposit account.
type AccountStatus string

const (
	StatusPendingActivation AccountStatus = "PENDING_ACTIVATION"
	StatusActive            AccountStatus = "ACTIVE"
	StatusMatured           AccountStatus = "MATURED"
	StatusClosed            AccountStatus = "CLOSED"
	StatusPrematureClosed   AccountStatus = "PREMATURE_CLOSED"
)

// transitions lists the allowed moves. MATURED → ACTIVE is a rollover.
var transitions = map[AccountStatus][]AccountStatus{
	StatusPendingActivation: {StatusActive},
	StatusActive:            {StatusMatured, StatusPrematureClosed},
	StatusMatured:           {StatusClosed, StatusActive},
}

// ParseAccountStatus converts a stored value.
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch st := AccountStatus(s); st {
	case StatusPendingActivation, StatusActive, StatusMatured, StatusClosed, StatusPrematureClosed:
		return st, nil
	}
	return "", fmt.Errorf("invalid deposit account status: %q", s)
}

// CanTransitionTo reports whether the move from s to next is allowed.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s AccountStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s AccountStatus) String() string { return string(s) }
