package repository

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// dbMetrics carries the shared query instruments every repository records.
type dbMetrics struct {
	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

func newDBMetrics(meter metric.Meter) dbMetrics {
	queryDuration, _ := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Duration of database queries"),
		metric.WithUnit("ms"),
	)

	queryCount, _ := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Number of database queries"),
		metric.WithUnit("{query}"),
	)

	errorCount, _ := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Number of database errors"),
		metric.WithUnit("{error}"),
	)

	return dbMetrics{
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}
}

// observe records one finished query against the shared instruments and the
// active span. gorm.ErrRecordNotFound counts as a normal outcome, not an
// error.
func (m dbMetrics) observe(ctx context.Context, span trace.Span, start time.Time, operation, table string, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("table", table),
	)

	m.queryCount.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, attrs)

	span.SetAttributes(
		attribute.String("db.operation", operation),
		attribute.String("db.table", table),
	)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		m.errorCount.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	span.SetStatus(codes.Ok, "")
}
