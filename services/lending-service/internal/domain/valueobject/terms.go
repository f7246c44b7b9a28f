package valueobject

import "fmt"

// TermVariationType identifies how a variation perturbs the contractual schedule.
type TermVariationType string

const (
	VariationDueDate               TermVariationType = "DUE_DATE"
	VariationInterestRate          TermVariationType = "INTEREST_RATE_FROM_INSTALLMENT"
	VariationGraceOnPrincipal      TermVariationType = "GRACE_ON_PRINCIPAL"
	VariationGraceOnInterest       TermVariationType = "GRACE_ON_INTEREST"
	VariationExtendRepaymentPeriod TermVariationType = "EXTEND_REPAYMENT_PERIOD"
)

// ParseTermVariationType validates a raw variation type.
func ParseTermVariationType(s string) (TermVariationType, error) {
	switch t := TermVariationType(s); t {
	case VariationDueDate, VariationInterestRate, VariationGraceOnPrincipal,
		VariationGraceOnInterest, VariationExtendRepaymentPeriod:
		return t, nil
	}
	return "", fmt.Errorf("invalid term variation type: %q", s)
}

// IsDateVariation reports whether the variation carries a date value.
func (t TermVariationType) IsDateVariation() bool { return t == VariationDueDate }

// PeriodFrequency is the unit of the repayment interval.
type PeriodFrequency string

const (
	FrequencyDays   PeriodFrequency = "DAYS"
	FrequencyWeeks  PeriodFrequency = "WEEKS"
	FrequencyMonths PeriodFrequency = "MONTHS"
	FrequencyYears  PeriodFrequency = "YEARS"
)

// ParsePeriodFrequency validates a raw frequency.
func ParsePeriodFrequency(s string) (PeriodFrequency, error) {
	switch f := PeriodFrequency(s); f {
	case FrequencyDays, FrequencyWeeks, FrequencyMonths, FrequencyYears:
		return f, nil
	}
	return "", fmt.Errorf("invalid repayment frequency: %q", s)
}

// PeriodsPerYear returns how many periods of this unit make up a year.
func (f PeriodFrequency) PeriodsPerYear() int64 {
	switch f {
	case FrequencyDays:
		return 365
	case FrequencyWeeks:
		return 52
	case FrequencyYears:
		return 1
	default:
		return 12
	}
}

// InterestMethod selects how interest is charged per period.
type InterestMethod string

const (
	InterestFlat             InterestMethod = "FLAT"
	InterestDecliningBalance InterestMethod = "DECLINING_BALANCE"
)

// ParseInterestMethod validates a raw interest method.
func ParseInterestMethod(s string) (InterestMethod, error) {
	switch m := InterestMethod(s); m {
	case InterestFlat, InterestDecliningBalance:
		return m, nil
	}
	return "", fmt.Errorf("invalid interest method: %q", s)
}

// AmortizationMethod selects how principal is spread across installments.
type AmortizationMethod string

const (
	AmortizationEqualInstallments AmortizationMethod = "EQUAL_INSTALLMENTS"
	AmortizationEqualPrincipal    AmortizationMethod = "EQUAL_PRINCIPAL"
)

// ParseAmortizationMethod validates a raw amortization method.
func ParseAmortizationMethod(s string) (AmortizationMethod, error) {
	switch m := AmortizationMethod(s); m {
	case AmortizationEqualInstallments, AmortizationEqualPrincipal:
		return m, nil
	}
	return "", fmt.Errorf("invalid amortization method: %q", s)
}

// RollConvention moves a due date that falls on a non-working day.
type RollConvention string

const (
	RollUnadjusted        RollConvention = "UNADJUSTED"
	RollFollowing         RollConvention = "FOLLOWING"
	RollPreceding         RollConvention = "PRECEDING"
	RollModifiedFollowing RollConvention = "MODIFIED_FOLLOWING"
)

// ParseRollConvention validates a raw roll convention. Empty means unadjusted.
func ParseRollConvention(s string) (RollConvention, error) {
	switch c := RollConvention(s); c {
	case "":
		return RollUnadjusted, nil
	case RollUnadjusted, RollFollowing, RollPreceding, RollModifiedFollowing:
		return c, nil
	}
	return "", fmt.Errorf("invalid roll convention: %q", s)
}

// TransactionType classifies a loan transaction.
type TransactionType string

const (
	TransactionDisbursement    TransactionType = "DISBURSEMENT"
	TransactionRepayment       TransactionType = "REPAYMENT"
	TransactionPartLiquidation TransactionType = "PART_LIQUIDATION"
)

// ParseTransactionType validates a raw transaction type.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case TransactionDisbursement, TransactionRepayment, TransactionPartLiquidation:
		return t, nil
	}
	return "", fmt.Errorf("invalid transaction type: %q", s)
}

// IsRepaymentLike reports whether the transaction is allocated against the schedule.
func (t TransactionType) IsRepaymentLike() bool {
	return t == TransactionRepayment || t == TransactionPartLiquidation
}
