package repository

import (
	"context"
	"time"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/shopspring/decimal"
)

type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	FindByID(ctx context.Context, loanID uint64) (*domain.Loan, error)
	// FindByIDWithLock locks the loan row FOR UPDATE; every mutating
	// operation serializes on it so two allocation passes can never
	// interleave against the same installment set.
	FindByIDWithLock(ctx context.Context, loanID uint64) (*domain.Loan, error)
	FindByAccountNo(ctx context.Context, accountNo string) (*domain.Loan, error)
	FindOpenByMemberID(ctx context.Context, memberID uint64) (*domain.Loan, error)
	FindByMemberID(ctx context.Context, memberID uint64) ([]domain.Loan, error)
	Save(ctx context.Context, loan *domain.Loan) error
}

type InstallmentRepository interface {
	CreateBatch(ctx context.Context, installments []domain.Installment) error
	FindByLoanID(ctx context.Context, loanID uint64) ([]domain.Installment, error)
	// FindOpenByLoanID returns installments still consumable by the
	// allocator (not PAID, not PAUSED) in ascending sequence order.
	FindOpenByLoanID(ctx context.Context, loanID uint64) ([]domain.Installment, error)
	// FindUnpaidByLoanID returns every non-PAID installment in ascending
	// sequence order, including PAUSED ones.
	FindUnpaidByLoanID(ctx context.Context, loanID uint64) ([]domain.Installment, error)
	FindNextDue(ctx context.Context, loanID uint64) (*domain.Installment, error)
	Save(ctx context.Context, installment *domain.Installment) error
	DeleteByLoanID(ctx context.Context, loanID uint64) error
	// MarkOverdue flips PENDING installments of DISBURSED/ACTIVE loans whose
	// due date has passed to OVERDUE. Idempotent.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	CreateAllocations(ctx context.Context, allocations []domain.PaymentAllocation) error
	DeleteAllocationsByLoanID(ctx context.Context, loanID uint64) error
	// FindNonChargeByLoanID returns INSTALLMENT/ADVANCE payments in
	// ascending (payment_date, payment_id) order: the replay order.
	FindNonChargeByLoanID(ctx context.Context, loanID uint64) ([]domain.Payment, error)
	CountByLoanID(ctx context.Context, loanID uint64) (int64, error)
	SumNonChargeByLoanID(ctx context.Context, loanID uint64) (decimal.Decimal, error)
}

type ChargeRepository interface {
	CreateBatch(ctx context.Context, charges []domain.Charge) error
	FindByLoanID(ctx context.Context, loanID uint64) ([]domain.Charge, error)
	FindByID(ctx context.Context, loanID, chargeID uint64) (*domain.Charge, error)
	Save(ctx context.Context, charge *domain.Charge) error
	DeleteByLoanID(ctx context.Context, loanID uint64) error
	SnapshotByLoanID(ctx context.Context, loanID uint64) (*ChargeSnapshot, error)
}

// ChargeSnapshot is the aggregate charge position of one loan.
type ChargeSnapshot struct {
	Total     decimal.Decimal
	Waived    decimal.Decimal
	Collected decimal.Decimal
	Pending   decimal.Decimal
}

type LedgerRepository interface {
	// Post appends one entry. Entries are never updated; corrections are
	// new entries.
	Post(ctx context.Context, entry *domain.LedgerEntry) error
	// LastBalance returns the balance_outstanding of the newest entry for
	// the loan, zero when no entry exists.
	LastBalance(ctx context.Context, loanID uint64) (decimal.Decimal, error)
	FindByLoanID(ctx context.Context, loanID uint64) ([]domain.LedgerEntry, error)
	// DeleteByLoanID exists solely for the pre-payment term rebuild, which
	// discards and reposts the opening entry.
	DeleteByLoanID(ctx context.Context, loanID uint64) error
}

type MemberRepository interface {
	// FindActiveByID returns nil (no error) when the member is missing or
	// inactive.
	FindActiveByID(ctx context.Context, memberID uint64) (*domain.Member, error)
}

// SettingRepository is the keyed configuration store consumed at
// disbursement and term-update time. Injected into the loan service so the
// calculator and controller stay testable with fixed inputs.
type SettingRepository interface {
	GetString(ctx context.Context, key, def string) (string, error)
	GetDecimal(ctx context.Context, key string, def decimal.Decimal) (decimal.Decimal, error)
	GetInt(ctx context.Context, key string, def int) (int, error)
	// Fee resolves a configured fee for the given principal: the key holds
	// the value and "<key>_TYPE" selects PERCENT or FIXED.
	Fee(ctx context.Context, key string, principal decimal.Decimal, defaultType domain.FeeType) (decimal.Decimal, error)
}
