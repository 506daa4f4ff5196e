package loansrv

import (
	"context"
	"fmt"
	"time"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/internal/dto"
	"github.com/mitrakarya/lending/pkg/common"
	"github.com/mitrakarya/lending/pkg/money"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// loanTerms is everything the calculator derives from settings and the
// request before a schedule is built.
type loanTerms struct {
	principal     decimal.Decimal
	interestTotal decimal.Decimal
	durationWeeks int
	minWeeks      int

	insuranceFee  decimal.Decimal
	processingFee decimal.Decimal
	bookPrice     decimal.Decimal

	schedule money.Schedule
}

// resolveTerms reads the configured interest rate, closure tenure and fee
// settings and builds the weekly schedule. Fees are tracked as separate
// charges, never loaded into the schedule itself.
func resolveTerms(ctx context.Context, r repos, principal decimal.Decimal, durationWeeks int) (loanTerms, error) {
	terms := loanTerms{
		principal:     money.Round(principal),
		durationWeeks: durationWeeks,
	}

	rate, err := r.settings.GetDecimal(ctx, "INTEREST_RATE", decimal.Zero)
	if err != nil {
		return terms, err
	}
	terms.interestTotal = money.FlatInterest(terms.principal, rate)

	terms.minWeeks, err = r.settings.GetInt(ctx, "MIN_WEEKS_BEFORE_CLOSURE", 4)
	if err != nil {
		return terms, err
	}

	terms.insuranceFee, err = r.settings.Fee(ctx, "INSURANCE_FEES", terms.principal, domain.FeePercent)
	if err != nil {
		return terms, err
	}
	terms.processingFee, err = r.settings.Fee(ctx, "PROCESSING_FEES", terms.principal, domain.FeePercent)
	if err != nil {
		return terms, err
	}
	terms.bookPrice, err = r.settings.Fee(ctx, "BOOK_PRICE", terms.principal, domain.FeeFixed)
	if err != nil {
		return terms, err
	}

	terms.schedule, err = money.WeeklySchedule(terms.principal, terms.interestTotal, durationWeeks, money.Zero)
	if err != nil {
		return terms, err
	}

	return terms, nil
}

// feeCharges builds one charge row per non-zero configured fee.
func feeCharges(loanID uint64, chargeDate time.Time, terms loanTerms) []domain.Charge {
	charges := make([]domain.Charge, 0, 3)

	add := func(chargeType domain.ChargeType, amount decimal.Decimal, remark string) {
		if amount.LessThanOrEqual(decimal.Zero) {
			return
		}
		charges = append(charges, domain.Charge{
			LoanID:          loanID,
			Type:            chargeType,
			ChargeDate:      chargeDate,
			Amount:          amount,
			WaivedAmount:    money.Zero,
			CollectedAmount: money.Zero,
			Remarks:         remark,
		})
	}

	add(domain.ChargeInsuranceFee, terms.insuranceFee, "Insurance fee (manual collection)")
	add(domain.ChargeProcessingFee, terms.processingFee, "Processing fee (manual collection)")
	add(domain.ChargeBookPrice, terms.bookPrice, "Book price (manual collection)")

	return charges
}

// Disburse implements service.LoanService.
func (l *loanService) Disburse(ctx context.Context, req dto.DisburseLoan) (*dto.LoanResponse, error) {
	ctx, span, start := l.begin(ctx, "Disburse")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("member.id", int64(req.MemberID)),
		attribute.String("loan.principal", req.PrincipalAmount.String()),
		attribute.Int("loan.duration_weeks", req.DurationWeeks),
	)

	if !req.PrincipalAmount.IsPositive() {
		return nil, l.fail(ctx, span, start, "Disburse", "invalid_amount", common.ErrInvalidAmount,
			zap.Uint64("member_id", req.MemberID))
	}

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "transaction_begin_error",
			fmt.Errorf("failed to begin transaction: %w", tx.Error))
	}
	defer tx.Rollback()

	r := l.txRepositories(tx)

	member, err := r.members.FindActiveByID(ctx, req.MemberID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "member_lookup_error", err,
			zap.Uint64("member_id", req.MemberID))
	}
	if member == nil {
		return nil, l.fail(ctx, span, start, "Disburse", "member_not_found", common.ErrMemberNotFound,
			zap.Uint64("member_id", req.MemberID))
	}

	open, err := r.loans.FindOpenByMemberID(ctx, req.MemberID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "loan_lookup_error", err,
			zap.Uint64("member_id", req.MemberID))
	}
	if open != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "member_has_active_loan", common.ErrMemberHasActiveLoan,
			zap.Uint64("member_id", req.MemberID),
			zap.Uint64("existing_loan_id", open.ID))
	}

	terms, err := resolveTerms(ctx, r, req.PrincipalAmount, req.DurationWeeks)
	if err != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "terms_error", err,
			zap.Uint64("member_id", req.MemberID))
	}

	disburseDate := dto.ParseDate(req.DisburseDate)
	firstDue := dto.ParseDate(req.FirstDueDate)
	if firstDue.IsZero() {
		firstDue = disburseDate.AddDate(0, 0, 7)
	}

	accountNo := req.AccountNo
	if accountNo == "" {
		accountNo = generateAccountNo(disburseDate)
	}
	duplicate, err := r.loans.FindByAccountNo(ctx, accountNo)
	if err != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "account_lookup_error", err,
			zap.String("loan_account_no", accountNo))
	}
	if duplicate != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "duplicate_account_no", common.ErrDuplicateAccountNo,
			zap.String("loan_account_no", accountNo))
	}

	totalOutstanding := money.Round(terms.principal.Add(terms.interestTotal))

	loan := &domain.Loan{
		AccountNo: accountNo,

		MemberID:  member.ID,
		GroupID:   member.GroupID,
		OfficerID: member.OfficerID,
		BranchID:  member.BranchID,
		RegionID:  member.RegionID,
		ProductID: req.ProductID,

		DisburseDate:    disburseDate,
		FirstDueDate:    firstDue,
		DurationWeeks:   req.DurationWeeks,
		InstallmentType: "WEEKLY",

		PrincipalAmount:   terms.principal,
		InterestTotal:     terms.interestTotal,
		TotalOutstanding:  totalOutstanding,
		InstallmentAmount: terms.schedule.BaseInstallment,

		MinWeeksBeforeClosure: terms.minWeeks,
		AllowEarlyClosure:     req.AllowEarlyClosure,

		AdvanceBalance: money.Zero,
		Status:         domain.LoanDisbursed,
	}

	if err := r.loans.Create(ctx, loan); err != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "loan_create_error", err,
			zap.Uint64("member_id", req.MemberID))
	}

	installments := buildInstallments(loan.ID, firstDue, req.DurationWeeks, terms.schedule)
	if err := r.installments.CreateBatch(ctx, installments); err != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "schedule_create_error", err,
			zap.Uint64("loan_id", loan.ID))
	}

	if err := r.charges.CreateBatch(ctx, feeCharges(loan.ID, disburseDate, terms)); err != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "charge_create_error", err,
			zap.Uint64("loan_id", loan.ID))
	}

	refID := loan.ID
	entry := &domain.LedgerEntry{
		LoanID:             loan.ID,
		TxnDate:            disburseDate,
		TxnType:            domain.TxnDisbursement,
		RefTable:           "loans",
		RefID:              &refID,
		Debit:              totalOutstanding,
		Credit:             money.Zero,
		PrincipalComponent: terms.principal,
		InterestComponent:  terms.interestTotal,
		BalanceOutstanding: totalOutstanding,
		Narration:          "Loan disbursed",
	}
	if err := r.ledger.Post(ctx, entry); err != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "ledger_post_error", err,
			zap.Uint64("loan_id", loan.ID))
	}

	if err := tx.Commit().Error; err != nil {
		return nil, l.fail(ctx, span, start, "Disburse", "transaction_commit_error",
			fmt.Errorf("failed to commit transaction: %w", err),
			zap.Uint64("loan_id", loan.ID))
	}

	l.loansDisbursed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("service", "loan")),
	)
	l.log.Info("Loan disbursed",
		zap.Uint64("loan_id", loan.ID),
		zap.String("loan_account_no", loan.AccountNo),
		zap.Uint64("member_id", member.ID),
		zap.String("principal", terms.principal.String()),
		zap.String("interest_total", terms.interestTotal.String()),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	l.done(ctx, span, start, "Disburse")

	resp := dto.LoanToResponse(loan, member.FullName)

	return &resp, nil
}
