package model

import "time"

// ScheduleSnapshot is a copy of a loan schedule taken before it is regenerated.
type ScheduleSnapshot struct {
	LoanID       string
	TenantID     string
	RequestID    string
	TakenAt      time.Time
	Installments []Installment
}

// SnapshotSchedule captures the loan's current installments.
func SnapshotSchedule(l Loan, requestID string, at time.Time) ScheduleSnapshot {
	return ScheduleSnapshot{
		LoanID:       l.ID(),
		TenantID:     l.TenantID(),
		RequestID:    requestID,
		TakenAt:      at,
		Installments: l.Installments(),
	}
}
