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
)

type installmentRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
	log    *zap.Logger
	dbMetrics
}

// CreateBatch implements InstallmentRepository.
func (i *installmentRepository) CreateBatch(ctx context.Context, installments []domain.Installment) error {
	ctx, span := i.tracer.Start(ctx, "repository.InstallmentCreateBatch")
	defer span.End()

	start := time.Now()

	data := make([]model.Installment, len(installments))
	for idx := range installments {
		data[idx] = model.InstallmentFromEntity(&installments[idx])
	}

	err := i.db.WithContext(ctx).Create(&data).Error
	i.observe(ctx, span, start, "insert", "loan_installments", err)
	if err != nil {
		return err
	}

	for idx := range installments {
		installments[idx].ID = data[idx].ID
	}

	return nil
}

// FindByLoanID implements InstallmentRepository.
func (i *installmentRepository) FindByLoanID(ctx context.Context, loanID uint64) ([]domain.Installment, error) {
	ctx, span := i.tracer.Start(ctx, "repository.InstallmentFindByLoanID")
	defer span.End()

	start := time.Now()

	var installments []model.Installment
	err := i.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("installment_no ASC").
		Find(&installments).Error
	i.observe(ctx, span, start, "select", "loan_installments", err)
	if err != nil {
		return nil, err
	}

	return model.InstallmentsToEntity(installments), nil
}

// FindOpenByLoanID implements InstallmentRepository.
func (i *installmentRepository) FindOpenByLoanID(ctx context.Context, loanID uint64) ([]domain.Installment, error) {
	ctx, span := i.tracer.Start(ctx, "repository.InstallmentFindOpenByLoanID")
	defer span.End()

	start := time.Now()

	var installments []model.Installment
	err := i.db.WithContext(ctx).
		Where("loan_id = ? AND status NOT IN ?", loanID, []string{
			string(domain.InstallmentPaid),
			string(domain.InstallmentPaused),
		}).
		Order("installment_no ASC").
		Find(&installments).Error
	i.observe(ctx, span, start, "select", "loan_installments", err)
	if err != nil {
		return nil, err
	}

	return model.InstallmentsToEntity(installments), nil
}

// FindUnpaidByLoanID implements InstallmentRepository.
func (i *installmentRepository) FindUnpaidByLoanID(ctx context.Context, loanID uint64) ([]domain.Installment, error) {
	ctx, span := i.tracer.Start(ctx, "repository.InstallmentFindUnpaidByLoanID")
	defer span.End()

	start := time.Now()

	var installments []model.Installment
	err := i.db.WithContext(ctx).
		Where("loan_id = ? AND status <> ?", loanID, string(domain.InstallmentPaid)).
		Order("installment_no ASC").
		Find(&installments).Error
	i.observe(ctx, span, start, "select", "loan_installments", err)
	if err != nil {
		return nil, err
	}

	return model.InstallmentsToEntity(installments), nil
}

// FindNextDue implements InstallmentRepository.
func (i *installmentRepository) FindNextDue(ctx context.Context, loanID uint64) (*domain.Installment, error) {
	ctx, span := i.tracer.Start(ctx, "repository.InstallmentFindNextDue")
	defer span.End()

	start := time.Now()

	var installment model.Installment
	err := i.db.WithContext(ctx).
		Where("loan_id = ? AND status <> ?", loanID, string(domain.InstallmentPaid)).
		Order("installment_no ASC").
		First(&installment).Error
	i.observe(ctx, span, start, "select", "loan_installments", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return model.InstallmentToEntity(installment), nil
}

// Save implements InstallmentRepository.
func (i *installmentRepository) Save(ctx context.Context, installment *domain.Installment) error {
	ctx, span := i.tracer.Start(ctx, "repository.InstallmentSave")
	defer span.End()

	start := time.Now()

	data := model.InstallmentFromEntity(installment)
	err := i.db.WithContext(ctx).Save(&data).Error
	i.observe(ctx, span, start, "update", "loan_installments", err)

	return err
}

// DeleteByLoanID implements InstallmentRepository.
func (i *installmentRepository) DeleteByLoanID(ctx context.Context, loanID uint64) error {
	ctx, span := i.tracer.Start(ctx, "repository.InstallmentDeleteByLoanID")
	defer span.End()

	start := time.Now()

	err := i.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Delete(&model.Installment{}).Error
	i.observe(ctx, span, start, "delete", "loan_installments", err)

	return err
}

// MarkOverdue implements InstallmentRepository.
func (i *installmentRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	ctx, span := i.tracer.Start(ctx, "repository.InstallmentMarkOverdue")
	defer span.End()

	start := time.Now()

	result := i.db.WithContext(ctx).
		Model(&model.Installment{}).
		Where("status = ? AND due_date < ?", string(domain.InstallmentPending), asOf).
		Where("loan_id IN (?)", i.db.
			Model(&model.Loan{}).
			Select("loan_id").
			Where("status IN ?", []string{
				string(domain.LoanDisbursed),
				string(domain.LoanActive),
			})).
		Update("status", string(domain.InstallmentOverdue))
	i.observe(ctx, span, start, "update", "loan_installments", result.Error)
	if result.Error != nil {
		return 0, result.Error
	}

	i.log.Debug("Installments marked overdue",
		zap.Int64("rows", result.RowsAffected),
		zap.Time("as_of", asOf),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	return result.RowsAffected, nil
}

func NewInstallmentRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) InstallmentRepository {
	return &installmentRepository{
		db:        db,
		tracer:    tracer,
		log:       log,
		dbMetrics: newDBMetrics(meter),
	}
}
