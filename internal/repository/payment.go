package repository

import (
	"context"
	"time"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/internal/model"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type paymentRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
	log    *zap.Logger
	dbMetrics
}

// Create implements PaymentRepository.
func (p *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	ctx, span := p.tracer.Start(ctx, "repository.PaymentCreate")
	defer span.End()

	start := time.Now()

	data := model.PaymentFromEntity(payment)
	err := p.db.WithContext(ctx).Create(&data).Error
	p.observe(ctx, span, start, "insert", "loan_payments", err)
	if err != nil {
		return err
	}

	payment.ID = data.ID
	payment.CreatedOn = data.CreatedOn

	return nil
}

// CreateAllocations implements PaymentRepository.
func (p *paymentRepository) CreateAllocations(ctx context.Context, allocations []domain.PaymentAllocation) error {
	if len(allocations) == 0 {
		return nil
	}

	ctx, span := p.tracer.Start(ctx, "repository.PaymentCreateAllocations")
	defer span.End()

	start := time.Now()

	data := make([]model.PaymentAllocation, len(allocations))
	for idx := range allocations {
		data[idx] = model.AllocationFromEntity(&allocations[idx])
	}

	err := p.db.WithContext(ctx).Create(&data).Error
	p.observe(ctx, span, start, "insert", "loan_payment_allocations", err)

	return err
}

// DeleteAllocationsByLoanID implements PaymentRepository.
func (p *paymentRepository) DeleteAllocationsByLoanID(ctx context.Context, loanID uint64) error {
	ctx, span := p.tracer.Start(ctx, "repository.PaymentDeleteAllocationsByLoanID")
	defer span.End()

	start := time.Now()

	err := p.db.WithContext(ctx).
		Where("payment_id IN (?)", p.db.
			Model(&model.Payment{}).
			Select("payment_id").
			Where("loan_id = ?", loanID)).
		Delete(&model.PaymentAllocation{}).Error
	p.observe(ctx, span, start, "delete", "loan_payment_allocations", err)

	return err
}

// FindNonChargeByLoanID implements PaymentRepository.
func (p *paymentRepository) FindNonChargeByLoanID(ctx context.Context, loanID uint64) ([]domain.Payment, error) {
	ctx, span := p.tracer.Start(ctx, "repository.PaymentFindNonChargeByLoanID")
	defer span.End()

	start := time.Now()

	var payments []model.Payment
	err := p.db.WithContext(ctx).
		Where("loan_id = ? AND payment_purpose <> ?", loanID, string(domain.PurposeCharge)).
		Order("payment_date ASC, payment_id ASC").
		Find(&payments).Error
	p.observe(ctx, span, start, "select", "loan_payments", err)
	if err != nil {
		return nil, err
	}

	return model.PaymentsToEntity(payments), nil
}

// CountByLoanID implements PaymentRepository.
func (p *paymentRepository) CountByLoanID(ctx context.Context, loanID uint64) (int64, error) {
	ctx, span := p.tracer.Start(ctx, "repository.PaymentCountByLoanID")
	defer span.End()

	start := time.Now()

	var total int64
	err := p.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("loan_id = ?", loanID).
		Count(&total).Error
	p.observe(ctx, span, start, "select", "loan_payments", err)
	if err != nil {
		return 0, err
	}

	return total, nil
}

// SumNonChargeByLoanID implements PaymentRepository.
func (p *paymentRepository) SumNonChargeByLoanID(ctx context.Context, loanID uint64) (decimal.Decimal, error) {
	ctx, span := p.tracer.Start(ctx, "repository.PaymentSumNonChargeByLoanID")
	defer span.End()

	start := time.Now()

	var total decimal.Decimal
	err := p.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("loan_id = ? AND payment_purpose <> ?", loanID, string(domain.PurposeCharge)).
		Select("COALESCE(SUM(amount_received), 0)").
		Row().
		Scan(&total)
	p.observe(ctx, span, start, "select", "loan_payments", err)
	if err != nil {
		return decimal.Zero, err
	}

	return total, nil
}

func NewPaymentRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) PaymentRepository {
	return &paymentRepository{
		db:        db,
		tracer:    tracer,
		log:       log,
		dbMetrics: newDBMetrics(meter),
	}
}
