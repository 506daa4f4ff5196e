package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/internal/model"
	"github.com/mitrakarya/lending/pkg/money"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type settingRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
	log    *zap.Logger
	dbMetrics
}

// GetString implements SettingRepository.
func (s *settingRepository) GetString(ctx context.Context, key, def string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "repository.SettingGetString")
	defer span.End()

	start := time.Now()

	var setting model.SystemSetting
	err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&setting).Error
	s.observe(ctx, span, start, "select", "system_settings", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return def, nil
		}
		return def, err
	}

	return setting.Value, nil
}

// GetDecimal implements SettingRepository.
func (s *settingRepository) GetDecimal(ctx context.Context, key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw, err := s.GetString(ctx, key, "")
	if err != nil {
		return def, err
	}
	if raw == "" {
		return def, nil
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		s.log.Warn("Setting is not a valid number, using default",
			zap.String("key", key),
			zap.String("value", raw),
		)
		return def, nil
	}

	return value, nil
}

// GetInt implements SettingRepository.
func (s *settingRepository) GetInt(ctx context.Context, key string, def int) (int, error) {
	raw, err := s.GetString(ctx, key, "")
	if err != nil {
		return def, err
	}
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		s.log.Warn("Setting is not a valid integer, using default",
			zap.String("key", key),
			zap.String("value", raw),
		)
		return def, nil
	}

	return value, nil
}

// Fee implements SettingRepository. The key holds the fee value and
// "<key>_TYPE" selects PERCENT or FIXED. A missing or zero value yields a
// zero fee.
func (s *settingRepository) Fee(ctx context.Context, key string, principal decimal.Decimal, defaultType domain.FeeType) (decimal.Decimal, error) {
	value, err := s.GetDecimal(ctx, key, decimal.Zero)
	if err != nil {
		return decimal.Zero, err
	}
	if value.IsZero() {
		return decimal.Zero, nil
	}

	feeType, err := s.GetString(ctx, key+"_TYPE", string(defaultType))
	if err != nil {
		return decimal.Zero, err
	}

	if domain.FeeType(feeType) == domain.FeePercent {
		return money.Round(principal.Mul(value).Div(decimal.NewFromInt(100))), nil
	}

	return money.Round(value), nil
}

func NewSettingRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) SettingRepository {
	return &settingRepository{
		db:        db,
		tracer:    tracer,
		log:       log,
		dbMetrics: newDBMetrics(meter),
	}
}
