package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/internal/model"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
	log    *zap.Logger
	dbMetrics
}

// Post implements LedgerRepository.
func (l *ledgerRepository) Post(ctx context.Context, entry *domain.LedgerEntry) error {
	ctx, span := l.tracer.Start(ctx, "repository.LedgerPost")
	defer span.End()

	start := time.Now()

	data := model.LedgerEntryFromEntity(entry)
	err := l.db.WithContext(ctx).Create(&data).Error
	l.observe(ctx, span, start, "insert", "loan_ledger", err)
	if err != nil {
		return err
	}

	entry.ID = data.ID
	entry.CreatedOn = data.CreatedOn

	l.log.Debug("Ledger entry posted",
		zap.Uint64("loan_id", entry.LoanID),
		zap.String("txn_type", string(entry.TxnType)),
		zap.String("balance_outstanding", entry.BalanceOutstanding.String()),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	return nil
}

// LastBalance implements LedgerRepository. The newest entry is the one with
// the highest (txn_date, ledger_id); its balance is the loan's current
// balance.
func (l *ledgerRepository) LastBalance(ctx context.Context, loanID uint64) (decimal.Decimal, error) {
	ctx, span := l.tracer.Start(ctx, "repository.LedgerLastBalance")
	defer span.End()

	start := time.Now()

	var entry model.LedgerEntry
	err := l.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("txn_date DESC, ledger_id DESC").
		First(&entry).Error
	l.observe(ctx, span, start, "select", "loan_ledger", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	return entry.BalanceOutstanding, nil
}

// FindByLoanID implements LedgerRepository.
func (l *ledgerRepository) FindByLoanID(ctx context.Context, loanID uint64) ([]domain.LedgerEntry, error) {
	ctx, span := l.tracer.Start(ctx, "repository.LedgerFindByLoanID")
	defer span.End()

	start := time.Now()

	var entries []model.LedgerEntry
	err := l.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("txn_date ASC, ledger_id ASC").
		Find(&entries).Error
	l.observe(ctx, span, start, "select", "loan_ledger", err)
	if err != nil {
		return nil, err
	}

	return model.LedgerEntriesToEntity(entries), nil
}

// DeleteByLoanID implements LedgerRepository.
func (l *ledgerRepository) DeleteByLoanID(ctx context.Context, loanID uint64) error {
	ctx, span := l.tracer.Start(ctx, "repository.LedgerDeleteByLoanID")
	defer span.End()

	start := time.Now()

	err := l.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Delete(&model.LedgerEntry{}).Error
	l.observe(ctx, span, start, "delete", "loan_ledger", err)

	return err
}

func NewLedgerRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) LedgerRepository {
	return &ledgerRepository{
		db:        db,
		tracer:    tracer,
		log:       log,
		dbMetrics: newDBMetrics(meter),
	}
}
