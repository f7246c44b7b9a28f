package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/events"
	"github.com/bibbank/bib/pkg/money"
	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/model"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/port"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// Compile-time interface check.
var _ port.DepositAccountRepository = (*AccountRepo)(nil)

const accountColumns = `id, tenant_id, product_id, savings_account_id,
	currency, currency_digits, currency_multiples,
	principal, accrued_interest, posted_interest,
	annual_rate_bps, term_months, pre_closure_penalty_bps, rounding_mode, rounding_precision,
	maturity_instruction, status, period,
	submitted_on, activated_on, maturity_date, last_accrual_date, closed_on,
	version, created_at, updated_at`

// AccountRepo implements DepositAccountRepository using PostgreSQL. Pending domain
// events are written to the outbox in the same transaction as the account row.
type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Save(ctx context.Context, a model.DepositAccount) error {
	return pkgpostgres.WithTransaction(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		cur := a.Principal().Currency()
		terms := a.Terms()
		tag, err := tx.Exec(ctx, `
			INSERT INTO deposit_accounts (`+accountColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
			ON CONFLICT (id) DO UPDATE SET
				principal         = EXCLUDED.principal,
				accrued_interest  = EXCLUDED.accrued_interest,
				posted_interest   = EXCLUDED.posted_interest,
				status            = EXCLUDED.status,
				period            = EXCLUDED.period,
				activated_on      = EXCLUDED.activated_on,
				maturity_date     = EXCLUDED.maturity_date,
				last_accrual_date = EXCLUDED.last_accrual_date,
				closed_on         = EXCLUDED.closed_on,
				version           = deposit_accounts.version + 1,
				updated_at        = EXCLUDED.updated_at
			WHERE deposit_accounts.version = $24
		`,
			a.ID(), a.TenantID(), a.ProductID(), a.SavingsAccountID(),
			cur.Code(), cur.DigitsAfterDecimal(), cur.InMultiplesOf(),
			a.Principal().Amount(), a.AccruedInterest().Amount(), a.PostedInterest().Amount(),
			terms.AnnualRateBps, terms.TermMonths, terms.PreClosurePenaltyBps,
			string(a.Rounding().Mode), a.Rounding().Precision,
			a.Instruction().String(), a.Status().String(), a.Period(),
			a.SubmittedOn(), a.ActivatedOn(), a.MaturityDate(), a.LastAccrualDate(), a.ClosedOn(),
			a.Version(), a.CreatedAt(), a.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("upsert deposit account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return valueobject.NewConcurrentModificationError("deposit account", a.ID().String(), a.Version())
		}
		return insertOutbox(ctx, tx, a.Events())
	})
}

func (r *AccountRepo) FindByID(ctx context.Context, id uuid.UUID) (model.DepositAccount, error) {
	row := pkgpostgres.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM deposit_accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		return model.DepositAccount{}, notFound(err, "deposit account", id.String())
	}
	return a, nil
}

func (r *AccountRepo) FindByTenantAndStatus(ctx context.Context, tenantID uuid.UUID, status valueobject.AccountStatus) ([]model.DepositAccount, error) {
	rows, err := pkgpostgres.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+accountColumns+`
		FROM deposit_accounts
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at, id
	`, tenantID, status.String())
	if err != nil {
		return nil, fmt.Errorf("query deposit accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.DepositAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanAccount(s scannable) (model.DepositAccount, error) {
	var (
		snap                         model.AccountSnapshot
		code                         string
		digits                       int32
		multiples                    int64
		principal, accrued, posted   decimal.Decimal
		mode, instruction, statusStr string
		precision                    int
	)
	err := s.Scan(
		&snap.ID, &snap.TenantID, &snap.ProductID, &snap.SavingsAccountID,
		&code, &digits, &multiples,
		&principal, &accrued, &posted,
		&snap.Terms.AnnualRateBps, &snap.Terms.TermMonths, &snap.Terms.PreClosurePenaltyBps, &mode, &precision,
		&instruction, &statusStr, &snap.Period,
		&snap.SubmittedOn, &snap.ActivatedOn, &snap.MaturityDate, &snap.LastAccrualDate, &snap.ClosedOn,
		&snap.Version, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return model.DepositAccount{}, fmt.Errorf("scan deposit account: %w", err)
	}

	cur, err := money.NewCurrencyWithScale(code, digits, multiples)
	if err != nil {
		return model.DepositAccount{}, fmt.Errorf("parse currency: %w", err)
	}
	roundingMode, err := money.ParseRoundingMode(mode)
	if err != nil {
		return model.DepositAccount{}, err
	}
	if snap.Instruction, err = valueobject.ParseMaturityInstruction(instruction); err != nil {
		return model.DepositAccount{}, err
	}
	if snap.Status, err = valueobject.ParseAccountStatus(statusStr); err != nil {
		return model.DepositAccount{}, err
	}
	snap.Principal = money.New(principal, cur)
	snap.AccruedInterest = money.New(accrued, cur)
	snap.PostedInterest = money.New(posted, cur)
	snap.Rounding = money.RoundingPolicy{Mode: roundingMode, Precision: precision}
	return model.ReconstructAccount(snap), nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, evts []events.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, evt := range evts {
		entry, err := events.NewOutboxEntry(evt)
		if err != nil {
			return fmt.Errorf("build outbox entry: %w", err)
		}
		b.Queue(`
			INSERT INTO outbox (id, aggregate_id, aggregate_type, event_type, tenant_id, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			entry.ID, entry.AggregateID, entry.AggregateType, entry.EventType, entry.TenantID,
			entry.Payload, entry.CreatedAt)
	}
	br := tx.SendBatch(ctx, b)
	for range evts {
		if _, err := br.Exec(); err != nil {
			_ = br.Close() //nolint:errcheck // the Exec error is the one to report
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return br.Close()
}
