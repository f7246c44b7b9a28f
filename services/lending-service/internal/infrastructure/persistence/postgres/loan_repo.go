package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// LoanRepo implements port.LoanRepository.
type LoanRepo struct {
	pool *pgxpool.Pool
}

// NewLoanRepo creates a new PostgreSQL-backed loan repository.
func NewLoanRepo(pool *pgxpool.Pool) *LoanRepo {
	return &LoanRepo{pool: pool}
}

// Save persists a loan with its schedule, transactions and term variations. The row is
// only updated when the stored version still matches the loan's version.
func (r *LoanRepo) Save(ctx context.Context, loan model.Loan) error {
	return pkgpostgres.WithTransaction(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		terms := loan.Terms()
		loanQuery := `
			INSERT INTO loans (
				id, tenant_id, borrower_account_id,
				currency, currency_digits, currency_multiples,
				principal, annual_interest_rate, interest_method, amortization_method,
				frequency, repay_every, number_of_repayments, first_repayment_date,
				grace_on_principal, grace_on_interest, rounding_mode, rounding_precision,
				processing_strategy, status, disbursed_on,
				version, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
			ON CONFLICT (id) DO UPDATE SET
				principal            = EXCLUDED.principal,
				annual_interest_rate = EXCLUDED.annual_interest_rate,
				interest_method      = EXCLUDED.interest_method,
				amortization_method  = EXCLUDED.amortization_method,
				frequency            = EXCLUDED.frequency,
				repay_every          = EXCLUDED.repay_every,
				number_of_repayments = EXCLUDED.number_of_repayments,
				first_repayment_date = EXCLUDED.first_repayment_date,
				grace_on_principal   = EXCLUDED.grace_on_principal,
				grace_on_interest    = EXCLUDED.grace_on_interest,
				rounding_mode        = EXCLUDED.rounding_mode,
				rounding_precision   = EXCLUDED.rounding_precision,
				processing_strategy  = EXCLUDED.processing_strategy,
				status               = EXCLUDED.status,
				version              = loans.version + 1,
				updated_at           = EXCLUDED.updated_at
			WHERE loans.version = $22
		`
		tag, err := tx.Exec(ctx, loanQuery,
			loan.ID(), loan.TenantID(), loan.BorrowerAccountID(),
			terms.Currency.Code(), terms.Currency.DigitsAfterDecimal(), terms.Currency.InMultiplesOf(),
			terms.Principal, terms.AnnualInterestRate, string(terms.InterestMethod), string(terms.AmortizationMethod),
			string(terms.Frequency), terms.RepayEvery, terms.NumberOfRepayments, terms.FirstRepaymentDate,
			terms.GraceOnPrincipalPeriods, terms.GraceOnInterestPeriods, string(terms.Rounding.Mode), terms.Rounding.Precision,
			terms.ProcessingStrategy, loan.Status().String(), loan.DisbursedOn(),
			loan.Version(), loan.CreatedAt(), loan.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return valueobject.NewConcurrentModificationError("loan", loan.ID(), loan.Version())
		}

		// The schedule is replaced wholesale; regeneration may change every row.
		if _, err := tx.Exec(ctx, `DELETE FROM loan_installments WHERE loan_id = $1`, loan.ID()); err != nil {
			return fmt.Errorf("clear installments: %w", err)
		}

		b := &pgx.Batch{}
		for _, inst := range loan.Installments() {
			b.Queue(`
				INSERT INTO loan_installments (
					loan_id, number, from_date, due_date,
					principal_due, interest_due, fee_due, penalty_due,
					principal_paid, interest_paid, fee_paid, penalty_paid,
					obligations_met, obligations_met_on
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
				loan.ID(), inst.Number, inst.FromDate, inst.DueDate,
				inst.PrincipalDue, inst.InterestDue, inst.FeeDue, inst.PenaltyDue,
				inst.PrincipalPaid, inst.InterestPaid, inst.FeePaid, inst.PenaltyPaid,
				inst.ObligationsMet, inst.ObligationsMetOn,
			)
		}

		// Reversed originals precede their replacements, which keeps the live
		// external-id index satisfied row by row.
		for _, txn := range loan.Transactions() {
			mappings, err := encodeMappings(txn.Mappings)
			if err != nil {
				return fmt.Errorf("encode mappings of transaction %s: %w", txn.ID, err)
			}
			b.Queue(`
				INSERT INTO loan_transactions (
					id, loan_id, tenant_id, type, transaction_date, amount,
					reversed, reversed_on, external_id, payment_detail_id, replaces_id,
					mappings, overpayment, created_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
				ON CONFLICT (id) DO UPDATE SET
					reversed    = EXCLUDED.reversed,
					reversed_on = EXCLUDED.reversed_on,
					mappings    = EXCLUDED.mappings,
					overpayment = EXCLUDED.overpayment`,
				txn.ID, loan.ID(), loan.TenantID(), string(txn.Type), txn.Date, txn.Amount.Amount(),
				txn.Reversed, txn.ReversedOn, txn.ExternalID, nullUUID(txn.PaymentDetailID), nullUUID(txn.ReplacesID),
				mappings, txn.Overpayment, txn.CreatedAt,
			)
		}

		queueVariations(b, loan.ID(), terms.Variations.All(), true)

		if err := sendBatch(ctx, tx, b); err != nil {
			return fmt.Errorf("save loan children: %w", err)
		}
		return nil
	})
}

// FindByID retrieves a loan with its schedule, transactions and effective variations.
func (r *LoanRepo) FindByID(ctx context.Context, tenantID, id string) (model.Loan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Loan{}, valueobject.NewNotFoundError("loan", id)
	}
	q := pkgpostgres.Conn(ctx, r.pool)

	query := `
		SELECT id, tenant_id, borrower_account_id,
		       currency, currency_digits, currency_multiples,
		       principal, annual_interest_rate, interest_method, amortization_method,
		       frequency, repay_every, number_of_repayments, first_repayment_date,
		       grace_on_principal, grace_on_interest, rounding_mode, rounding_precision,
		       processing_strategy, status, disbursed_on,
		       version, created_at, updated_at
		FROM loans
		WHERE tenant_id = $1 AND id = $2
	`
	snap, err := scanLoanRow(q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return model.Loan{}, notFound(err, "loan", id)
	}

	if snap.Installments, err = loadInstallments(ctx, q, id); err != nil {
		return model.Loan{}, err
	}
	if snap.Transactions, err = loadTransactions(ctx, q, id, snap.Terms.Currency); err != nil {
		return model.Loan{}, err
	}
	variations, err := loadLoanVariations(ctx, q, id)
	if err != nil {
		return model.Loan{}, err
	}
	snap.Terms.Variations = model.NewVariationSet(variations...)

	return model.ReconstructLoan(snap), nil
}

// ---------------------------------------------------------------------------
// internal helpers
// ---------------------------------------------------------------------------

func scanLoanRow(s scannable) (model.LoanSnapshot, error) {
	var (
		snap                                    model.LoanSnapshot
		currencyCode                            string
		digits                                  int32
		multiples                               int64
		interestMethod, amortization, frequency string
		roundingMode, statusStr                 string
		roundingPrecision                       int
		firstRepayment                          *time.Time
		principal, rate                         decimal.Decimal
		repayEvery, repayments, graceP, graceI  int
		strategy                                string
	)

	err := s.Scan(
		&snap.ID, &snap.TenantID, &snap.BorrowerAccountID,
		&currencyCode, &digits, &multiples,
		&principal, &rate, &interestMethod, &amortization,
		&frequency, &repayEvery, &repayments, &firstRepayment,
		&graceP, &graceI, &roundingMode, &roundingPrecision,
		&strategy, &statusStr, &snap.DisbursedOn,
		&snap.Version, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("scan loan: %w", err)
	}

	currency, err := money.NewCurrencyWithScale(currencyCode, digits, multiples)
	if err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse currency: %w", err)
	}
	method, err := valueobject.ParseInterestMethod(interestMethod)
	if err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse interest method: %w", err)
	}
	amort, err := valueobject.ParseAmortizationMethod(amortization)
	if err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse amortization method: %w", err)
	}
	freq, err := valueobject.ParsePeriodFrequency(frequency)
	if err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse frequency: %w", err)
	}
	mode, err := money.ParseRoundingMode(roundingMode)
	if err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse rounding mode: %w", err)
	}
	status, err := valueobject.NewLoanStatus(statusStr)
	if err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse loan status: %w", err)
	}

	snap.Status = status
	snap.Terms = model.LoanTerms{
		Currency:                currency,
		Principal:               principal,
		AnnualInterestRate:      rate,
		InterestMethod:          method,
		AmortizationMethod:      amort,
		Frequency:               freq,
		RepayEvery:              repayEvery,
		NumberOfRepayments:      repayments,
		FirstRepaymentDate:      firstRepayment,
		GraceOnPrincipalPeriods: graceP,
		GraceOnInterestPeriods:  graceI,
		Rounding:                money.RoundingPolicy{Mode: mode, Precision: roundingPrecision},
		ProcessingStrategy:      strategy,
	}
	return snap, nil
}

func loadInstallments(ctx context.Context, q pkgpostgres.Querier, loanID string) ([]model.Installment, error) {
	query := `
		SELECT number, from_date, due_date,
		       principal_due, interest_due, fee_due, penalty_due,
		       principal_paid, interest_paid, fee_paid, penalty_paid,
		       obligations_met, obligations_met_on
		FROM loan_installments
		WHERE loan_id = $1
		ORDER BY number
	`
	rows, err := q.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("query installments: %w", err)
	}
	defer rows.Close()

	var out []model.Installment
	for rows.Next() {
		var i model.Installment
		if err := rows.Scan(
			&i.Number, &i.FromDate, &i.DueDate,
			&i.PrincipalDue, &i.InterestDue, &i.FeeDue, &i.PenaltyDue,
			&i.PrincipalPaid, &i.InterestPaid, &i.FeePaid, &i.PenaltyPaid,
			&i.ObligationsMet, &i.ObligationsMetOn,
		); err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func loadTransactions(ctx context.Context, q pkgpostgres.Querier, loanID string, currency money.Currency) ([]model.LoanTransaction, error) {
	query := `
		SELECT id, loan_id, type, transaction_date, amount,
		       reversed, reversed_on, external_id, payment_detail_id, replaces_id,
		       mappings, overpayment, created_at
		FROM loan_transactions
		WHERE loan_id = $1
		ORDER BY transaction_date, created_at, reversed DESC
	`
	rows, err := q.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.LoanTransaction
	for rows.Next() {
		var (
			t                  model.LoanTransaction
			txnType            string
			amount             decimal.Decimal
			detailID, replaces *string
			mappings           []byte
		)
		if err := rows.Scan(
			&t.ID, &t.LoanID, &txnType, &t.Date, &amount,
			&t.Reversed, &t.ReversedOn, &t.ExternalID, &detailID, &replaces,
			&mappings, &t.Overpayment, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Type, err = valueobject.ParseTransactionType(txnType); err != nil {
			return nil, fmt.Errorf("parse transaction type: %w", err)
		}
		if t.Mappings, err = decodeMappings(mappings); err != nil {
			return nil, fmt.Errorf("decode mappings of transaction %s: %w", t.ID, err)
		}
		t.Amount = money.New(amount, currency)
		t.PaymentDetailID = derefString(detailID)
		t.ReplacesID = derefString(replaces)
		out = append(out, t)
	}
	return out, rows.Err()
}

// mappingRecord is the JSONB shape of an allocation mapping.
type mappingRecord struct {
	InstallmentDueDate time.Time       `json:"installment_due_date"`
	InstallmentNumber  int             `json:"installment_number"`
	Principal          decimal.Decimal `json:"principal"`
	Interest           decimal.Decimal `json:"interest"`
	Fee                decimal.Decimal `json:"fee"`
	Penalty            decimal.Decimal `json:"penalty"`
}

func encodeMappings(in []model.AllocationMapping) ([]byte, error) {
	records := make([]mappingRecord, len(in))
	for i, m := range in {
		records[i] = mappingRecord(m)
	}
	return json.Marshal(records)
}

func decodeMappings(raw []byte) ([]model.AllocationMapping, error) {
	var records []mappingRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]model.AllocationMapping, len(records))
	for i, rec := range records {
		out[i] = model.AllocationMapping(rec)
	}
	return out, nil
}

// sendBatch executes every queued statement and reports the first failure.
func sendBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}
