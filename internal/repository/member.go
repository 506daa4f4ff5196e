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

type memberRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
	log    *zap.Logger
	dbMetrics
}

// FindActiveByID implements MemberRepository.
func (m *memberRepository) FindActiveByID(ctx context.Context, memberID uint64) (*domain.Member, error) {
	ctx, span := m.tracer.Start(ctx, "repository.MemberFindActiveByID")
	defer span.End()

	start := time.Now()

	var member model.Member
	err := m.db.WithContext(ctx).
		Where("member_id = ? AND is_active = ?", memberID, true).
		First(&member).Error
	m.observe(ctx, span, start, "select", "members", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return model.MemberToEntity(member), nil
}

func NewMemberRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) MemberRepository {
	return &memberRepository{
		db:        db,
		tracer:    tracer,
		log:       log,
		dbMetrics: newDBMetrics(meter),
	}
}
