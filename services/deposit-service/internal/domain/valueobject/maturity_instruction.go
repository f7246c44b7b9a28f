package valueobject

import "fmt"

// MaturityInstruction says what happens to a deposit's proceeds on maturity.
type MaturityInstruction string

const (
	InstructionWithdraw                     MaturityInstruction = "WITHDRAW"
	InstructionTransferToSavings            MaturityInstruction = "TRANSFER_TO_SAVINGS"
	InstructionReinvestPrincipal            MaturityInstruction = "REINVEST_PRINCIPAL"
	InstructionReinvestPrincipalAndInterest MaturityInstruction = "REINVEST_PRINCIPAL_AND_INTEREST"
)

// ParseMaturityInstruction converts a raw value. Empty means WITHDRAW.
func ParseMaturityInstruction(s string) (MaturityInstruction, error) {
	if s == "" {
		return InstructionWithdraw, nil
	}
	switch mi := MaturityInstruction(s); mi {
	case InstructionWithdraw, InstructionTransferToSavings,
		InstructionReinvestPrincipal, InstructionReinvestPrincipalAndInterest:
		return mi, nil
	}
	return "", fmt.Errorf("invalid maturity instruction: %q", s)
}

// RollsOver reports whether the deposit starts a new term instead of closing.
func (mi MaturityInstruction) RollsOver() bool {
	return mi == InstructionReinvestPrincipal || mi == InstructionReinvestPrincipalAndInterest
}

func (mi MaturityInstruction) String() string { return string(mi) }
