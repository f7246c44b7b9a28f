package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/events"
)

const AggregateTypeDepositAccount = "DepositAccount"

// DepositOpened is emitted when a deposit application is submitted.
type DepositOpened struct {
	events.BaseEvent
	ProductID           string          `json:"product_id"`
	Principal           decimal.Decimal `json:"principal"`
	Currency            string          `json:"currency"`
	MaturityInstruction string          `json:"maturity_instruction"`
}

func NewDepositOpened(accountID, tenantID, productID string, principal decimal.Decimal, currency, instruction string) DepositOpened {
	return DepositOpened{
		BaseEvent:           events.NewBaseEvent("deposit.account.opened", accountID, AggregateTypeDepositAccount, tenantID),
		ProductID:           productID,
		Principal:           principal,
		Currency:            currency,
		MaturityInstruction: instruction,
	}
}

// DepositActivated is emitted when funds are received and the term starts.
type DepositActivated struct {
	events.BaseEvent
	ActivatedOn  time.Time `json:"activated_on"`
	MaturityDate time.Time `json:"maturity_date"`
}

func NewDepositActivated(accountID, tenantID string, activatedOn, maturity time.Time) DepositActivated {
	return DepositActivated{
		BaseEvent:    events.NewBaseEvent("deposit.account.activated", accountID, AggregateTypeDepositAccount, tenantID),
		ActivatedOn:  activatedOn,
		MaturityDate: maturity,
	}
}

// InterestAccrued is emitted when daily interest is accrued.
type InterestAccrued struct {
	events.BaseEvent
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Days     int             `json:"days"`
	AsOf     time.Time       `json:"as_of"`
}

func NewInterestAccrued(accountID, tenantID string, amount decimal.Decimal, currency string, days int, asOf time.Time) InterestAccrued {
	return InterestAccrued{
		BaseEvent: events.NewBaseEvent("deposit.interest.accrued", accountID, AggregateTypeDepositAccount, tenantID),
		Amount:    amount,
		Currency:  currency,
		Days:      days,
		AsOf:      asOf,
	}
}

// InterestPosted is emitted when accrued interest is credited to the deposit.
type InterestPosted struct {
	events.BaseEvent
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	PostedOn time.Time       `json:"posted_on"`
}

func NewInterestPosted(accountID, tenantID string, amount decimal.Decimal, currency string, on time.Time) InterestPosted {
	return InterestPosted{
		BaseEvent: events.NewBaseEvent("deposit.interest.posted", accountID, AggregateTypeDepositAccount, tenantID),
		Amount:    amount,
		Currency:  currency,
		PostedOn:  on,
	}
}

// DepositMatured is emitted when a term deposit reaches maturity.
type DepositMatured struct {
	events.BaseEvent
	MaturityAmount decimal.Decimal `json:"maturity_amount"`
	Currency       string          `json:"currency"`
	MaturedOn      time.Time       `json:"matured_on"`
}

func NewDepositMatured(accountID, tenantID string, amount decimal.Decimal, currency string, on time.Time) DepositMatured {
	return DepositMatured{
		BaseEvent:      events.NewBaseEvent("deposit.account.matured", accountID, AggregateTypeDepositAccount, tenantID),
		MaturityAmount: amount,
		Currency:       currency,
		MaturedOn:      on,
	}
}

// DepositRolledOver is emitted when a matured deposit starts a new term.
type DepositRolledOver struct {
	events.BaseEvent
	Principal    decimal.Decimal `json:"principal"`
	InterestPaid decimal.Decimal `json:"interest_paid"`
	Currency     string          `json:"currency"`
	Period       int             `json:"period"`
	MaturityDate time.Time       `json:"maturity_date"`
}

func NewDepositRolledOver(accountID, tenantID string, principal, interestPaid decimal.Decimal, currency string, period int, maturity time.Time) DepositRolledOver {
	return DepositRolledOver{
		BaseEvent:    events.NewBaseEvent("deposit.account.rolled_over", accountID, AggregateTypeDepositAccount, tenantID),
		Principal:    principal,
		InterestPaid: interestPaid,
		Currency:     currency,
		Period:       period,
		MaturityDate: maturity,
	}
}

// DepositClosed is emitted when a deposit pays out, on maturity or prematurely.
type DepositClosed struct {
	events.BaseEvent
	Payout             decimal.Decimal `json:"payout"`
	Currency           string          `json:"currency"`
	Premature          bool            `json:"premature"`
	ForfeitedInterest  decimal.Decimal `json:"forfeited_interest"`
	TransferToSavings  bool            `json:"transfer_to_savings"`
	DestinationAccount string          `json:"destination_account_id,omitempty"`
	ClosedOn           time.Time       `json:"closed_on"`
}

// ClosedDetail describes a payout.
type ClosedDetail struct {
	Payout             decimal.Decimal
	Currency           string
	Premature          bool
	ForfeitedInterest  decimal.Decimal
	TransferToSavings  bool
	DestinationAccount string
	ClosedOn           time.Time
}

func NewDepositClosed(accountID, tenantID string, d ClosedDetail) DepositClosed {
	eventType := "deposit.account.closed"
	if d.Premature {
		eventType = "deposit.account.premature_closed"
	}
	return DepositClosed{
		BaseEvent:          events.NewBaseEvent(eventType, accountID, AggregateTypeDepositAccount, tenantID),
		Payout:             d.Payout,
		Currency:           d.Currency,
		Premature:          d.Premature,
		ForfeitedInterest:  d.ForfeitedInterest,
		TransferToSavings:  d.TransferToSavings,
		DestinationAccount: d.DestinationAccount,
		ClosedOn:           d.ClosedOn,
	}
}
