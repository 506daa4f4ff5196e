package loansrv

import (
	"context"
	"fmt"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/internal/dto"
	"github.com/mitrakarya/lending/pkg/common"
	"github.com/mitrakarya/lending/pkg/money"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RecordPayment implements service.LoanService. The amount runs through the
// waterfall; whatever the open installments cannot absorb is banked as
// advance balance, never discarded.
func (l *loanService) RecordPayment(ctx context.Context, loanID uint64, req dto.RecordPayment) (*dto.PaymentResult, error) {
	ctx, span, start := l.begin(ctx, "RecordPayment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("loan.id", int64(loanID)),
		attribute.String("payment.amount", req.Amount.String()),
	)

	if !req.Amount.IsPositive() {
		return nil, l.fail(ctx, span, start, "RecordPayment", "invalid_amount", common.ErrInvalidAmount,
			zap.Uint64("loan_id", loanID))
	}

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "transaction_begin_error",
			fmt.Errorf("failed to begin transaction: %w", tx.Error))
	}
	defer tx.Rollback()

	r := l.txRepositories(tx)

	loan, err := r.loans.FindByIDWithLock(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if loan == nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "loan_not_found", common.ErrLoanNotFound,
			zap.Uint64("loan_id", loanID))
	}
	if !loan.Status.Payable() {
		return nil, l.fail(ctx, span, start, "RecordPayment", "invalid_loan_state", common.ErrInvalidLoanState,
			zap.Uint64("loan_id", loanID),
			zap.String("status", string(loan.Status)))
	}

	payDate := dto.DateOrToday(req.PaymentDate)
	amount := money.Round(req.Amount)

	receiptNo := req.ReceiptNo
	if receiptNo == "" {
		receiptNo = generateReceiptNo()
	}
	paymentMode := req.PaymentMode
	if paymentMode == "" {
		paymentMode = "CASH"
	}

	payment := &domain.Payment{
		LoanID:         loan.ID,
		MemberID:       loan.MemberID,
		GroupID:        loan.GroupID,
		OfficerID:      loan.OfficerID,
		PaymentDate:    payDate,
		AmountReceived: amount,
		PaymentMode:    paymentMode,
		ReceiptNo:      receiptNo,
		Remarks:        req.Remarks,
		Purpose:        domain.PurposeInstallment,
	}
	if err := r.payments.Create(ctx, payment); err != nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "payment_create_error", err,
			zap.Uint64("loan_id", loanID))
	}

	result, err := runWaterfall(ctx, r, loan.ID, amount, payDate)
	if err != nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "allocation_error", err,
			zap.Uint64("loan_id", loanID))
	}

	allocations := make([]domain.PaymentAllocation, len(result.Entries))
	for i, entry := range result.Entries {
		installmentID := entry.InstallmentID
		allocations[i] = domain.PaymentAllocation{
			PaymentID:      payment.ID,
			InstallmentID:  &installmentID,
			PrincipalAlloc: entry.Principal,
			InterestAlloc:  entry.Interest,
		}
	}
	if err := r.payments.CreateAllocations(ctx, allocations); err != nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "allocation_create_error", err,
			zap.Uint64("loan_id", loanID))
	}

	loan.AdvanceBalance = money.Round(loan.AdvanceBalance.Add(result.Remaining))

	lastBalance, err := r.ledger.LastBalance(ctx, loan.ID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "ledger_read_error", err,
			zap.Uint64("loan_id", loanID))
	}
	newBalance := money.Round(lastBalance.Sub(result.AppliedTotal))

	principalComp, interestComp := componentTotals(result)
	refID := payment.ID

	if err := r.ledger.Post(ctx, &domain.LedgerEntry{
		LoanID:             loan.ID,
		TxnDate:            payDate,
		TxnType:            domain.TxnPayment,
		RefTable:           "loan_payments",
		RefID:              &refID,
		Debit:              money.Zero,
		Credit:             result.AppliedTotal,
		PrincipalComponent: principalComp,
		InterestComponent:  interestComp,
		BalanceOutstanding: newBalance,
		Narration:          fmt.Sprintf("Payment received (receipt %s)", receiptNo),
	}); err != nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "ledger_post_error", err,
			zap.Uint64("loan_id", loanID))
	}

	// The excess is cash held against future dues; it does not reduce the
	// receivable, so its entry carries the same balance.
	if result.Remaining.IsPositive() {
		if err := r.ledger.Post(ctx, &domain.LedgerEntry{
			LoanID:             loan.ID,
			TxnDate:            payDate,
			TxnType:            domain.TxnAdvanceAdd,
			RefTable:           "loan_payments",
			RefID:              &refID,
			Debit:              money.Zero,
			Credit:             result.Remaining,
			PrincipalComponent: money.Zero,
			InterestComponent:  money.Zero,
			BalanceOutstanding: newBalance,
			Narration:          fmt.Sprintf("Advance added (receipt %s)", receiptNo),
		}); err != nil {
			return nil, l.fail(ctx, span, start, "RecordPayment", "ledger_post_error", err,
				zap.Uint64("loan_id", loanID))
		}
	}

	if newBalance.LessThanOrEqual(decimal.Zero) {
		loan.Status = domain.LoanClosed
		closing := payDate
		loan.ClosingDate = &closing
	} else if loan.Status == domain.LoanDisbursed && result.AppliedTotal.IsPositive() {
		loan.Status = domain.LoanActive
	}

	if err := r.loans.Save(ctx, loan); err != nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "loan_save_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := tx.Commit().Error; err != nil {
		return nil, l.fail(ctx, span, start, "RecordPayment", "transaction_commit_error",
			fmt.Errorf("failed to commit transaction: %w", err),
			zap.Uint64("loan_id", loanID))
	}

	l.paymentsRecorded.Add(ctx, 1,
		metric.WithAttributes(attribute.String("service", "loan")),
	)
	l.log.Info("Payment recorded",
		zap.Uint64("loan_id", loan.ID),
		zap.Uint64("payment_id", payment.ID),
		zap.String("amount", amount.String()),
		zap.String("applied_total", result.AppliedTotal.String()),
		zap.String("advance_added", result.Remaining.String()),
		zap.String("balance_outstanding", newBalance.String()),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	l.done(ctx, span, start, "RecordPayment")

	return &dto.PaymentResult{
		PaymentID:           payment.ID,
		LoanID:              loan.ID,
		ReceiptNo:           receiptNo,
		AmountReceived:      amount,
		AppliedTotal:        result.AppliedTotal,
		AdvanceAdded:        result.Remaining,
		Allocations:         allocationLines(result),
		InstallmentsSettled: result.SettledCount,
		AdvanceBalance:      loan.AdvanceBalance,
		BalanceOutstanding:  newBalance,
		LoanStatus:          string(loan.Status),
	}, nil
}

// ApplyAdvance implements service.LoanService. Pushes the loan's advance
// balance through the waterfall; a zero advance balance is a no-op, not an
// error.
func (l *loanService) ApplyAdvance(ctx context.Context, loanID uint64, req dto.ApplyAdvance) (*dto.AdvanceApplyResult, error) {
	ctx, span, start := l.begin(ctx, "ApplyAdvance")
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, l.fail(ctx, span, start, "ApplyAdvance", "transaction_begin_error",
			fmt.Errorf("failed to begin transaction: %w", tx.Error))
	}
	defer tx.Rollback()

	r := l.txRepositories(tx)

	loan, err := r.loans.FindByIDWithLock(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "ApplyAdvance", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if loan == nil {
		return nil, l.fail(ctx, span, start, "ApplyAdvance", "loan_not_found", common.ErrLoanNotFound,
			zap.Uint64("loan_id", loanID))
	}
	if loan.Status.Terminal() {
		return nil, l.fail(ctx, span, start, "ApplyAdvance", "invalid_loan_state", common.ErrInvalidLoanState,
			zap.Uint64("loan_id", loanID),
			zap.String("status", string(loan.Status)))
	}

	lastBalance, err := r.ledger.LastBalance(ctx, loan.ID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "ApplyAdvance", "ledger_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if !loan.AdvanceBalance.IsPositive() {
		l.done(ctx, span, start, "ApplyAdvance")
		return &dto.AdvanceApplyResult{
			LoanID:             loan.ID,
			AppliedTotal:       money.Zero,
			AdvanceBalance:     loan.AdvanceBalance,
			BalanceOutstanding: lastBalance,
			LoanStatus:         string(loan.Status),
		}, nil
	}

	valueDate := dto.DateOrToday(req.ValueDate)

	result, err := runWaterfall(ctx, r, loan.ID, loan.AdvanceBalance, valueDate)
	if err != nil {
		return nil, l.fail(ctx, span, start, "ApplyAdvance", "allocation_error", err,
			zap.Uint64("loan_id", loanID))
	}

	loan.AdvanceBalance = result.Remaining

	newBalance := lastBalance

	if result.AppliedTotal.IsPositive() {
		newBalance = money.Round(lastBalance.Sub(result.AppliedTotal))
		principalComp, interestComp := componentTotals(result)
		refID := loan.ID

		if err := r.ledger.Post(ctx, &domain.LedgerEntry{
			LoanID:             loan.ID,
			TxnDate:            valueDate,
			TxnType:            domain.TxnAdvanceApply,
			RefTable:           "loans",
			RefID:              &refID,
			Debit:              money.Zero,
			Credit:             result.AppliedTotal,
			PrincipalComponent: principalComp,
			InterestComponent:  interestComp,
			BalanceOutstanding: newBalance,
			Narration:          req.Remarks,
		}); err != nil {
			return nil, l.fail(ctx, span, start, "ApplyAdvance", "ledger_post_error", err,
				zap.Uint64("loan_id", loanID))
		}

		if newBalance.LessThanOrEqual(decimal.Zero) {
			loan.Status = domain.LoanClosed
			closing := valueDate
			loan.ClosingDate = &closing
		}
	}

	if err := r.loans.Save(ctx, loan); err != nil {
		return nil, l.fail(ctx, span, start, "ApplyAdvance", "loan_save_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := tx.Commit().Error; err != nil {
		return nil, l.fail(ctx, span, start, "ApplyAdvance", "transaction_commit_error",
			fmt.Errorf("failed to commit transaction: %w", err),
			zap.Uint64("loan_id", loanID))
	}

	l.log.Info("Advance applied",
		zap.Uint64("loan_id", loan.ID),
		zap.String("applied_total", result.AppliedTotal.String()),
		zap.String("advance_balance", loan.AdvanceBalance.String()),
		zap.String("balance_outstanding", newBalance.String()),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	l.done(ctx, span, start, "ApplyAdvance")

	return &dto.AdvanceApplyResult{
		LoanID:              loan.ID,
		AppliedTotal:        result.AppliedTotal,
		Allocations:         allocationLines(result),
		InstallmentsSettled: result.SettledCount,
		AdvanceBalance:      loan.AdvanceBalance,
		BalanceOutstanding:  newBalance,
		LoanStatus:          string(loan.Status),
	}, nil
}
