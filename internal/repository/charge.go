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

type chargeRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
	log    *zap.Logger
	dbMetrics
}

// CreateBatch implements ChargeRepository.
func (c *chargeRepository) CreateBatch(ctx context.Context, charges []domain.Charge) error {
	if len(charges) == 0 {
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "repository.ChargeCreateBatch")
	defer span.End()

	start := time.Now()

	data := make([]model.Charge, len(charges))
	for idx := range charges {
		data[idx] = model.ChargeFromEntity(&charges[idx])
	}

	err := c.db.WithContext(ctx).Create(&data).Error
	c.observe(ctx, span, start, "insert", "loan_charges", err)
	if err != nil {
		return err
	}

	for idx := range charges {
		charges[idx].ID = data[idx].ID
	}

	return nil
}

// FindByLoanID implements ChargeRepository.
func (c *chargeRepository) FindByLoanID(ctx context.Context, loanID uint64) ([]domain.Charge, error) {
	ctx, span := c.tracer.Start(ctx, "repository.ChargeFindByLoanID")
	defer span.End()

	start := time.Now()

	var charges []model.Charge
	err := c.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("charge_id ASC").
		Find(&charges).Error
	c.observe(ctx, span, start, "select", "loan_charges", err)
	if err != nil {
		return nil, err
	}

	return model.ChargesToEntity(charges), nil
}

// FindByID implements ChargeRepository.
func (c *chargeRepository) FindByID(ctx context.Context, loanID, chargeID uint64) (*domain.Charge, error) {
	ctx, span := c.tracer.Start(ctx, "repository.ChargeFindByID")
	defer span.End()

	start := time.Now()

	var charge model.Charge
	err := c.db.WithContext(ctx).
		Where("charge_id = ? AND loan_id = ?", chargeID, loanID).
		First(&charge).Error
	c.observe(ctx, span, start, "select", "loan_charges", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return model.ChargeToEntity(charge), nil
}

// Save implements ChargeRepository.
func (c *chargeRepository) Save(ctx context.Context, charge *domain.Charge) error {
	ctx, span := c.tracer.Start(ctx, "repository.ChargeSave")
	defer span.End()

	start := time.Now()

	data := model.ChargeFromEntity(charge)
	err := c.db.WithContext(ctx).Save(&data).Error
	c.observe(ctx, span, start, "update", "loan_charges", err)

	return err
}

// DeleteByLoanID implements ChargeRepository.
func (c *chargeRepository) DeleteByLoanID(ctx context.Context, loanID uint64) error {
	ctx, span := c.tracer.Start(ctx, "repository.ChargeDeleteByLoanID")
	defer span.End()

	start := time.Now()

	err := c.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Delete(&model.Charge{}).Error
	c.observe(ctx, span, start, "delete", "loan_charges", err)

	return err
}

// SnapshotByLoanID implements ChargeRepository.
func (c *chargeRepository) SnapshotByLoanID(ctx context.Context, loanID uint64) (*ChargeSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "repository.ChargeSnapshotByLoanID")
	defer span.End()

	start := time.Now()

	var row struct {
		Total     decimal.Decimal
		Waived    decimal.Decimal
		Collected decimal.Decimal
	}

	err := c.db.WithContext(ctx).
		Model(&model.Charge{}).
		Where("loan_id = ?", loanID).
		Select("COALESCE(SUM(amount), 0) AS total, COALESCE(SUM(waived_amount), 0) AS waived, COALESCE(SUM(collected_amount), 0) AS collected").
		Scan(&row).Error
	c.observe(ctx, span, start, "select", "loan_charges", err)
	if err != nil {
		return nil, err
	}

	return &ChargeSnapshot{
		Total:     row.Total,
		Waived:    row.Waived,
		Collected: row.Collected,
		Pending:   row.Total.Sub(row.Waived).Sub(row.Collected),
	}, nil
}

func NewChargeRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) ChargeRepository {
	return &chargeRepository{
		db:        db,
		tracer:    tracer,
		log:       log,
		dbMetrics: newDBMetrics(meter),
	}
}
