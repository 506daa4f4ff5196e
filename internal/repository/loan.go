package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/internal/model"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// openStatuses are the loan states that still hold or may hold a balance; a
// member with a loan in one of these cannot receive a new disbursement.
var openStatuses = []string{
	string(domain.LoanDisbursed),
	string(domain.LoanActive),
	string(domain.LoanPaused),
	string(domain.LoanInactive),
}

type loanRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
	log    *zap.Logger
	dbMetrics
}

// Create implements LoanRepository.
func (l *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	ctx, span := l.tracer.Start(ctx, "repository.LoanCreate")
	defer span.End()

	start := time.Now()

	data := model.LoanFromEntity(loan)
	err := l.db.WithContext(ctx).Create(&data).Error
	l.observe(ctx, span, start, "insert", "loans", err)
	if err != nil {
		return err
	}

	loan.ID = data.ID
	loan.CreatedOn = data.CreatedOn

	l.log.Debug("Loan created",
		zap.Uint64("loan_id", loan.ID),
		zap.String("loan_account_no", loan.AccountNo),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	return nil
}

// FindByID implements LoanRepository.
func (l *loanRepository) FindByID(ctx context.Context, loanID uint64) (*domain.Loan, error) {
	ctx, span := l.tracer.Start(ctx, "repository.LoanFindByID")
	defer span.End()

	start := time.Now()

	var loan model.Loan
	err := l.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&loan).Error
	l.observe(ctx, span, start, "select", "loans", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return model.LoanToEntity(loan), nil
}

// FindByIDWithLock implements LoanRepository.
func (l *loanRepository) FindByIDWithLock(ctx context.Context, loanID uint64) (*domain.Loan, error) {
	ctx, span := l.tracer.Start(ctx, "repository.LoanFindByIDWithLock")
	defer span.End()

	start := time.Now()

	var loan model.Loan
	err := l.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		First(&loan).Error
	l.observe(ctx, span, start, "select_for_update", "loans", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return model.LoanToEntity(loan), nil
}

// FindByAccountNo implements LoanRepository.
func (l *loanRepository) FindByAccountNo(ctx context.Context, accountNo string) (*domain.Loan, error) {
	ctx, span := l.tracer.Start(ctx, "repository.LoanFindByAccountNo")
	defer span.End()

	start := time.Now()

	var loan model.Loan
	err := l.db.WithContext(ctx).Where("loan_account_no = ?", accountNo).First(&loan).Error
	l.observe(ctx, span, start, "select", "loans", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return model.LoanToEntity(loan), nil
}

// FindOpenByMemberID implements LoanRepository.
func (l *loanRepository) FindOpenByMemberID(ctx context.Context, memberID uint64) (*domain.Loan, error) {
	ctx, span := l.tracer.Start(ctx, "repository.LoanFindOpenByMemberID")
	defer span.End()

	start := time.Now()

	var loan model.Loan
	err := l.db.WithContext(ctx).
		Where("member_id = ? AND status IN ?", memberID, openStatuses).
		First(&loan).Error
	l.observe(ctx, span, start, "select", "loans", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return model.LoanToEntity(loan), nil
}

// FindByMemberID implements LoanRepository.
func (l *loanRepository) FindByMemberID(ctx context.Context, memberID uint64) ([]domain.Loan, error) {
	ctx, span := l.tracer.Start(ctx, "repository.LoanFindByMemberID")
	defer span.End()

	start := time.Now()

	var loans []model.Loan
	err := l.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_on DESC").
		Find(&loans).Error
	l.observe(ctx, span, start, "select", "loans", err)
	if err != nil {
		return nil, err
	}

	return model.LoansToEntity(loans), nil
}

// Save implements LoanRepository.
func (l *loanRepository) Save(ctx context.Context, loan *domain.Loan) error {
	ctx, span := l.tracer.Start(ctx, "repository.LoanSave")
	defer span.End()

	start := time.Now()

	data := model.LoanFromEntity(loan)
	err := l.db.WithContext(ctx).Save(&data).Error
	l.observe(ctx, span, start, "update", "loans", err)

	return err
}

func NewLoanRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) LoanRepository {
	return &loanRepository{
		db:        db,
		tracer:    tracer,
		log:       log,
		dbMetrics: newDBMetrics(meter),
	}
}
