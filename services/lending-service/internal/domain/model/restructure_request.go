package model

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/bib/services/lending-service/internal/domain/event"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// RestructureRequest aggregate root
// ---------------------------------------------------------------------------

// RestructureRequest is a proposal to reschedule a loan from a given installment date.
// It owns the term variations it proposes; they stay inactive until approval.
type RestructureRequest struct {
	id                  string
	tenantID            string
	loanID              string
	status              valueobject.RestructureRequestStatus
	rescheduleFromDate  time.Time
	adjustedDueDate     *time.Time
	recalculateInterest bool
	reasonCode          string
	comment             string
	variations          []TermVariation
	submittedBy         string
	submittedOn         time.Time
	approvedBy          string
	approvedOn          *time.Time
	rejectedBy          string
	rejectedOn          *time.Time
	version             int
	domainEvents        []event.DomainEvent
}

// NewRestructureRequestParams carries the inputs of a restructure submission.
type NewRestructureRequestParams struct {
	TenantID           string
	LoanID             string
	RescheduleFromDate time.Time
	AdjustedDueDate    *time.Time
	// RecalculateInterest is recorded with the request only. Regeneration recomputes
	// interest on the regenerated installments either way.
	RecalculateInterest bool
	ReasonCode          string
	Comment             string
	Variations          []TermVariation
	SubmittedBy         string
	SubmittedOn         time.Time
}

// RestructureRequestSnapshot is the persisted state of a RestructureRequest.
type RestructureRequestSnapshot struct {
	ID                  string
	TenantID            string
	LoanID              string
	Status              valueobject.RestructureRequestStatus
	RescheduleFromDate  time.Time
	AdjustedDueDate     *time.Time
	RecalculateInterest bool
	ReasonCode          string
	Comment             string
	Variations          []TermVariation
	SubmittedBy         string
	SubmittedOn         time.Time
	ApprovedBy          string
	ApprovedOn          *time.Time
	RejectedBy          string
	RejectedOn          *time.Time
	Version             int
}

// NewRestructureRequest creates a pending request. Its variations are stamped with the
// request and loan ids and kept inactive.
func NewRestructureRequest(p NewRestructureRequestParams) (RestructureRequest, error) {
	if p.TenantID == "" {
		return RestructureRequest{}, errors.New("tenant ID is required")
	}
	if p.LoanID == "" {
		return RestructureRequest{}, errors.New("loan ID is required")
	}
	if p.RescheduleFromDate.IsZero() {
		return RestructureRequest{}, errors.New("reschedule from date is required")
	}
	if p.SubmittedBy == "" {
		return RestructureRequest{}, errors.New("submitted by is required")
	}
	if p.AdjustedDueDate != nil && !p.AdjustedDueDate.After(p.RescheduleFromDate) {
		return RestructureRequest{}, errors.New("adjusted due date must be after the reschedule from date")
	}

	id := uuid.New().String()
	variations := make([]TermVariation, len(p.Variations))
	for i, v := range p.Variations {
		v.RequestID = id
		v.LoanID = p.LoanID
		variations[i] = v.Deactivate()
	}

	req := RestructureRequest{
		id:                  id,
		tenantID:            p.TenantID,
		loanID:              p.LoanID,
		status:              valueobject.RestructureStatusPending,
		rescheduleFromDate:  p.RescheduleFromDate,
		adjustedDueDate:     p.AdjustedDueDate,
		recalculateInterest: p.RecalculateInterest,
		reasonCode:          p.ReasonCode,
		comment:             p.Comment,
		variations:          variations,
		submittedBy:         p.SubmittedBy,
		submittedOn:         p.SubmittedOn,
		version:             1,
	}

	req.domainEvents = append(req.domainEvents, event.NewRestructureRequested(
		id, p.TenantID, p.LoanID, p.RescheduleFromDate, p.AdjustedDueDate, len(variations), p.SubmittedBy,
	))

	return req, nil
}

// ReconstructRestructureRequest rebuilds the aggregate from persistence.
func ReconstructRestructureRequest(s RestructureRequestSnapshot) RestructureRequest {
	return RestructureRequest{
		id:                  s.ID,
		tenantID:            s.TenantID,
		loanID:              s.LoanID,
		status:              s.Status,
		rescheduleFromDate:  s.RescheduleFromDate,
		adjustedDueDate:     s.AdjustedDueDate,
		recalculateInterest: s.RecalculateInterest,
		reasonCode:          s.ReasonCode,
		comment:             s.Comment,
		variations:          copyVariations(s.Variations),
		submittedBy:         s.SubmittedBy,
		submittedOn:         s.SubmittedOn,
		approvedBy:          s.ApprovedBy,
		approvedOn:          s.ApprovedOn,
		rejectedBy:          s.RejectedBy,
		rejectedOn:          s.RejectedOn,
		version:             s.Version,
	}
}

// ---------------------------------------------------------------------------
// State transitions
// ---------------------------------------------------------------------------

// Approve moves a pending request to APPROVED. rescheduleFrom and variations are the
// values after supersession re-anchoring; the variations become active.
func (r RestructureRequest) Approve(by string, on, rescheduleFrom time.Time, variations []TermVariation) (RestructureRequest, error) {
	if !r.status.IsPending() {
		return r, valueobject.NewInvalidTransitionError("restructure request", r.status.String(), "APPROVED")
	}
	if by == "" {
		return r, errors.New("approved by is required")
	}
	next := r
	next.status = valueobject.RestructureStatusApproved
	next.approvedBy = by
	next.approvedOn = &on
	next.rescheduleFromDate = rescheduleFrom
	next.variations = make([]TermVariation, len(variations))
	for i, v := range variations {
		next.variations[i] = v.Activate()
	}
	next.domainEvents = copyEvents(r.domainEvents)
	next.domainEvents = append(next.domainEvents, event.NewRestructureApproved(
		r.id, r.tenantID, r.loanID, by, on, rescheduleFrom,
	))
	return next, nil
}

// Reject moves a pending request to REJECTED. Its variations stay inactive for good.
func (r RestructureRequest) Reject(by string, on time.Time) (RestructureRequest, error) {
	if !r.status.IsPending() {
		return r, valueobject.NewInvalidTransitionError("restructure request", r.status.String(), "REJECTED")
	}
	if by == "" {
		return r, errors.New("rejected by is required")
	}
	next := r
	next.status = valueobject.RestructureStatusRejected
	next.rejectedBy = by
	next.rejectedOn = &on
	next.variations = make([]TermVariation, len(r.variations))
	for i, v := range r.variations {
		next.variations[i] = v.Deactivate()
	}
	next.domainEvents = copyEvents(r.domainEvents)
	next.domainEvents = append(next.domainEvents, event.NewRestructureRejected(
		r.id, r.tenantID, r.loanID, by, on, r.rescheduleFromDate,
	))
	return next, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (r RestructureRequest) ID() string                                   { return r.id }
func (r RestructureRequest) TenantID() string                             { return r.tenantID }
func (r RestructureRequest) LoanID() string                               { return r.loanID }
func (r RestructureRequest) Status() valueobject.RestructureRequestStatus { return r.status }
func (r RestructureRequest) RescheduleFromDate() time.Time                { return r.rescheduleFromDate }
func (r RestructureRequest) AdjustedDueDate() *time.Time                  { return r.adjustedDueDate }
func (r RestructureRequest) RecalculateInterest() bool                    { return r.recalculateInterest }
func (r RestructureRequest) ReasonCode() string                           { return r.reasonCode }
func (r RestructureRequest) Comment() string                              { return r.comment }
func (r RestructureRequest) SubmittedBy() string                          { return r.submittedBy }
func (r RestructureRequest) SubmittedOn() time.Time                       { return r.submittedOn }
func (r RestructureRequest) ApprovedBy() string                           { return r.approvedBy }
func (r RestructureRequest) ApprovedOn() *time.Time                       { return r.approvedOn }
func (r RestructureRequest) RejectedBy() string                           { return r.rejectedBy }
func (r RestructureRequest) RejectedOn() *time.Time                       { return r.rejectedOn }
func (r RestructureRequest) Version() int                                 { return r.version }
func (r RestructureRequest) DomainEvents() []event.DomainEvent            { return r.domainEvents }

// Variations returns a copy of the owned variations.
func (r RestructureRequest) Variations() []TermVariation { return copyVariations(r.variations) }

// ClearEvents returns a copy with an empty event list.
func (r RestructureRequest) ClearEvents() RestructureRequest {
	next := r
	next.domainEvents = nil
	return next
}

func copyVariations(in []TermVariation) []TermVariation {
	if in == nil {
		return nil
	}
	out := make([]TermVariation, len(in))
	copy(out, in)
	return out
}
