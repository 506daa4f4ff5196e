// Package loansrv is the loan lifecycle controller. Every mutating operation
// runs inside one database transaction with the loan row locked FOR UPDATE,
// so allocation passes against the same installment set never interleave.
package loansrv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/internal/dto"
	"github.com/mitrakarya/lending/internal/repository"
	"github.com/mitrakarya/lending/internal/service"
	"github.com/mitrakarya/lending/internal/service/allocation"
	"github.com/mitrakarya/lending/pkg/common"
	"github.com/mitrakarya/lending/pkg/money"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loanService struct {
	db *gorm.DB

	loanRepository        repository.LoanRepository
	installmentRepository repository.InstallmentRepository
	paymentRepository     repository.PaymentRepository
	chargeRepository      repository.ChargeRepository
	ledgerRepository      repository.LedgerRepository
	memberRepository      repository.MemberRepository
	settingRepository     repository.SettingRepository

	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger

	operationDuration metric.Float64Histogram
	operationCount    metric.Int64Counter
	errorCount        metric.Int64Counter
	loansDisbursed    metric.Int64Counter
	paymentsRecorded  metric.Int64Counter
}

// repos bundles transaction-scoped repositories so one operation's reads and
// writes all go through the same database transaction.
type repos struct {
	loans        repository.LoanRepository
	installments repository.InstallmentRepository
	payments     repository.PaymentRepository
	charges      repository.ChargeRepository
	ledger       repository.LedgerRepository
	members      repository.MemberRepository
	settings     repository.SettingRepository
}

func (l *loanService) txRepositories(tx *gorm.DB) repos {
	return repos{
		loans:        repository.NewLoanRepository(tx, l.meter, l.tracer, l.log),
		installments: repository.NewInstallmentRepository(tx, l.meter, l.tracer, l.log),
		payments:     repository.NewPaymentRepository(tx, l.meter, l.tracer, l.log),
		charges:      repository.NewChargeRepository(tx, l.meter, l.tracer, l.log),
		ledger:       repository.NewLedgerRepository(tx, l.meter, l.tracer, l.log),
		members:      repository.NewMemberRepository(tx, l.meter, l.tracer, l.log),
		settings:     repository.NewSettingRepository(tx, l.meter, l.tracer, l.log),
	}
}

// begin starts the span and counts the operation.
func (l *loanService) begin(ctx context.Context, operation string) (context.Context, trace.Span, time.Time) {
	ctx, span := l.tracer.Start(ctx, "service."+operation)

	l.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "loan"),
		),
	)

	return ctx, span, time.Now()
}

// fail records the error on the span and instruments and returns it.
func (l *loanService) fail(ctx context.Context, span trace.Span, start time.Time, operation, errType string, err error, fields ...zap.Field) error {
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)

	fields = append(fields,
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Error(err),
	)
	l.log.Warn("Loan operation rejected", fields...)

	l.errorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "loan"),
			attribute.String("error_type", errType),
		),
	)
	l.operationDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "loan"),
			attribute.String("status", "error"),
		),
	)

	return err
}

// done closes out a successful operation.
func (l *loanService) done(ctx context.Context, span trace.Span, start time.Time, operation string) {
	span.SetStatus(codes.Ok, "")
	l.operationDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("service", "loan"),
			attribute.String("status", "success"),
		),
	)
}

func generateAccountNo(disburseDate time.Time) string {
	return fmt.Sprintf("LN-%s-%s", disburseDate.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

func generateReceiptNo() string {
	return "RCP-" + strings.ToUpper(uuid.NewString()[:8])
}

// buildInstallments expands a weekly schedule into installment rows, pushing
// the rounding remainder onto the final week so the rows always add up to
// exactly principal + interest.
func buildInstallments(loanID uint64, firstDue time.Time, weeks int, sched money.Schedule) []domain.Installment {
	installments := make([]domain.Installment, weeks)
	due := firstDue

	for i := 1; i <= weeks; i++ {
		principal := sched.PrincipalPerWeek
		interest := sched.InterestPerWeek
		if i == weeks {
			principal = sched.LastPrincipal
			interest = sched.LastInterest
		}
		if i == 1 {
			interest = money.Round(interest.Add(sched.FirstWeekExtra))
		}

		installments[i-1] = domain.Installment{
			LoanID:        loanID,
			No:            i,
			DueDate:       due,
			PrincipalDue:  principal,
			InterestDue:   interest,
			TotalDue:      money.Round(principal.Add(interest)),
			PrincipalPaid: money.Zero,
			InterestPaid:  money.Zero,
			TotalPaid:     money.Zero,
			Status:        domain.InstallmentPending,
		}
		due = due.AddDate(0, 0, 7)
	}

	return installments
}

// runWaterfall loads the loan's open installments, pushes amount through the
// allocator and persists every touched row.
func runWaterfall(ctx context.Context, r repos, loanID uint64, amount decimal.Decimal, asOf time.Time) (allocation.Result, error) {
	installments, err := r.installments.FindOpenByLoanID(ctx, loanID)
	if err != nil {
		return allocation.Result{}, err
	}

	ptrs := make([]*domain.Installment, len(installments))
	for i := range installments {
		ptrs[i] = &installments[i]
	}

	result := allocation.Apply(ptrs, amount, asOf)
	if result.Remaining.IsNegative() {
		return allocation.Result{}, common.ErrAllocationInvariant
	}

	touched := make(map[uint64]bool, len(result.Entries))
	for _, entry := range result.Entries {
		touched[entry.InstallmentID] = true
	}
	for i := range installments {
		// Rows loaded here are open, so a PAID status means the pass settled
		// a stale row in passing even when no money landed on it.
		if !touched[installments[i].ID] && installments[i].Status != domain.InstallmentPaid {
			continue
		}
		if err := r.installments.Save(ctx, &installments[i]); err != nil {
			return allocation.Result{}, err
		}
	}

	return result, nil
}

// componentTotals sums the principal and interest sides of an allocation pass.
func componentTotals(result allocation.Result) (decimal.Decimal, decimal.Decimal) {
	principal, interest := money.Zero, money.Zero
	for _, entry := range result.Entries {
		principal = money.Round(principal.Add(entry.Principal))
		interest = money.Round(interest.Add(entry.Interest))
	}

	return principal, interest
}

func allocationLines(result allocation.Result) []dto.AllocationLine {
	lines := make([]dto.AllocationLine, len(result.Entries))
	for i, entry := range result.Entries {
		lines[i] = dto.AllocationLine{
			InstallmentID: entry.InstallmentID,
			InstallmentNo: entry.InstallmentNo,
			Principal:     entry.Principal,
			Interest:      entry.Interest,
			Settled:       entry.Settled,
		}
	}

	return lines
}

func NewLoanService(
	db *gorm.DB,
	loanRepository repository.LoanRepository,
	installmentRepository repository.InstallmentRepository,
	paymentRepository repository.PaymentRepository,
	chargeRepository repository.ChargeRepository,
	ledgerRepository repository.LedgerRepository,
	memberRepository repository.MemberRepository,
	settingRepository repository.SettingRepository,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) service.LoanService {
	operationDuration, _ := meter.Float64Histogram(
		"service.operation.duration",
		metric.WithDescription("Duration of service operations"),
		metric.WithUnit("ms"),
	)

	operationCount, _ := meter.Int64Counter(
		"service.operation.count",
		metric.WithDescription("Number of service operations"),
		metric.WithUnit("{operation}"),
	)

	errorCount, _ := meter.Int64Counter(
		"service.error.count",
		metric.WithDescription("Number of service errors"),
		metric.WithUnit("{error}"),
	)

	loansDisbursed, _ := meter.Int64Counter(
		"service.loans.disbursed",
		metric.WithDescription("Number of loans disbursed"),
		metric.WithUnit("{loan}"),
	)

	paymentsRecorded, _ := meter.Int64Counter(
		"service.payments.recorded",
		metric.WithDescription("Number of payments recorded"),
		metric.WithUnit("{payment}"),
	)

	return &loanService{
		db: db,

		loanRepository:        loanRepository,
		installmentRepository: installmentRepository,
		paymentRepository:     paymentRepository,
		chargeRepository:      chargeRepository,
		ledgerRepository:      ledgerRepository,
		memberRepository:      memberRepository,
		settingRepository:     settingRepository,

		meter:  meter,
		tracer: tracer,
		log:    log,

		operationDuration: operationDuration,
		operationCount:    operationCount,
		errorCount:        errorCount,
		loansDisbursed:    loansDisbursed,
		paymentsRecorded:  paymentsRecorded,
	}
}
