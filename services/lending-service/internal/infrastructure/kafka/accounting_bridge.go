package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
)

// JournalEntryRequest asks the ledger to post, or reverse, the entries of one loan
// transaction.
type JournalEntryRequest struct {
	RequestID       string          `json:"request_id"`
	TenantID        string          `json:"tenant_id"`
	LoanID          string          `json:"loan_id"`
	TransactionID   string          `json:"transaction_id"`
	TransactionType string          `json:"transaction_type"`
	Reversal        bool            `json:"reversal"`
	ValueDate       time.Time       `json:"value_date"`
	Currency        string          `json:"currency"`
	Amount          decimal.Decimal `json:"amount"`
	Principal       decimal.Decimal `json:"principal"`
	Interest        decimal.Decimal `json:"interest"`
	Fee             decimal.Decimal `json:"fee"`
	Penalty         decimal.Decimal `json:"penalty"`
	Overpayment     decimal.Decimal `json:"overpayment"`
}

// AccountingBridge implements port.AccountingBridge by producing journal-entry requests.
type AccountingBridge struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// NewAccountingBridge wires dependencies.
func NewAccountingBridge(producer Producer, topic string, logger *slog.Logger) *AccountingBridge {
	return &AccountingBridge{producer: producer, topic: topic, logger: logger}
}

// PostEntries sends one posting per transaction missing from existingTxnIDs and one
// reversal per transaction reversed since existingReversedTxnIDs was captured.
func (b *AccountingBridge) PostEntries(ctx context.Context, loan model.Loan, existingTxnIDs, existingReversedTxnIDs []string) error {
	existing := toSet(existingTxnIDs)
	reversed := toSet(existingReversedTxnIDs)

	var messages []pkgkafka.Message
	for _, txn := range loan.Transactions() {
		var req JournalEntryRequest
		switch {
		case !existing[txn.ID] && !txn.Reversed:
			req = journalEntry(loan, txn, false)
		case existing[txn.ID] && txn.Reversed && !reversed[txn.ID]:
			req = journalEntry(loan, txn, true)
		default:
			continue
		}

		payload, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal journal entry for %s: %w", txn.ID, err)
		}
		messages = append(messages, pkgkafka.Message{
			Key:   []byte(loan.ID()),
			Value: payload,
			Headers: map[string]string{
				"tenant_id": loan.TenantID(),
				"currency":  req.Currency,
				"reversal":  fmt.Sprint(req.Reversal),
			},
		})
	}

	if len(messages) == 0 {
		return nil
	}
	b.logger.DebugContext(ctx, "posting journal entries",
		"loan_id", loan.ID(),
		"tenant_id", loan.TenantID(),
		"entries", len(messages),
	)
	if err := b.producer.Publish(ctx, b.topic, messages...); err != nil {
		return fmt.Errorf("failed to publish journal entries to topic %s: %w", b.topic, err)
	}
	return nil
}

func journalEntry(loan model.Loan, txn model.LoanTransaction, reversal bool) JournalEntryRequest {
	req := JournalEntryRequest{
		RequestID:       uuid.NewString(),
		TenantID:        loan.TenantID(),
		LoanID:          loan.ID(),
		TransactionID:   txn.ID,
		TransactionType: string(txn.Type),
		Reversal:        reversal,
		ValueDate:       txn.Date,
		Currency:        loan.Currency().Code(),
		Amount:          txn.Amount.Amount(),
		Principal:       txn.PrincipalPortion(),
		Interest:        decimal.Zero,
		Fee:             decimal.Zero,
		Penalty:         decimal.Zero,
		Overpayment:     txn.Overpayment,
	}
	if !txn.Type.IsRepaymentLike() {
		req.Principal = txn.Amount.Amount()
	}
	for _, m := range txn.Mappings {
		req.Interest = req.Interest.Add(m.Interest)
		req.Fee = req.Fee.Add(m.Fee)
		req.Penalty = req.Penalty.Add(m.Penalty)
	}
	return req
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
