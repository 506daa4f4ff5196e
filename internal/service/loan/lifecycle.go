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
	"go.uber.org/zap"
)

// postStatusMarker appends a zero-amount ledger entry that copies the current
// balance forward, so the "last balance" query stays correct across status
// changes.
func postStatusMarker(ctx context.Context, r repos, loan *domain.Loan, txnType domain.TxnType, txnDate time.Time, narration string) error {
	balance, err := r.ledger.LastBalance(ctx, loan.ID)
	if err != nil {
		return err
	}

	refID := loan.ID

	return r.ledger.Post(ctx, &domain.LedgerEntry{
		LoanID:             loan.ID,
		TxnDate:            txnDate,
		TxnType:            txnType,
		RefTable:           "loans",
		RefID:              &refID,
		Debit:              money.Zero,
		Credit:             money.Zero,
		PrincipalComponent: money.Zero,
		InterestComponent:  money.Zero,
		BalanceOutstanding: balance,
		Narration:          narration,
	})
}

// setUnpaidStatus flips every non-PAID installment to the given status.
func setUnpaidStatus(ctx context.Context, r repos, loanID uint64, status domain.InstallmentStatus) (int, error) {
	unpaid, err := r.installments.FindUnpaidByLoanID(ctx, loanID)
	if err != nil {
		return 0, err
	}

	for i := range unpaid {
		unpaid[i].Status = status
		if err := r.installments.Save(ctx, &unpaid[i]); err != nil {
			return 0, err
		}
	}

	return len(unpaid), nil
}

// resequenceUnpaid reassigns weekly due dates to every non-PAID installment
// starting from startDue and reinstates them to PENDING. PAID installments
// keep the dates they were settled under.
func resequenceUnpaid(ctx context.Context, r repos, loanID uint64, startDue time.Time) (int, error) {
	unpaid, err := r.installments.FindUnpaidByLoanID(ctx, loanID)
	if err != nil {
		return 0, err
	}

	due := startDue
	for i := range unpaid {
		unpaid[i].DueDate = due
		unpaid[i].Status = domain.InstallmentPending
		unpaid[i].PaidDate = nil
		if err := r.installments.Save(ctx, &unpaid[i]); err != nil {
			return 0, err
		}
		due = due.AddDate(0, 0, 7)
	}

	return len(unpaid), nil
}

// replayPayments rebuilds the allocation state of a loan from its payment
// log: every installment's paid fields are zeroed, all allocation rows are
// deleted, then each non-CHARGE payment is replayed through the waterfall in
// (payment_date, id) order. The advance balance is recomputed as the sum of
// unconsumed remainders. Running this twice with no new payments yields the
// same state, which is what makes resume retry-safe.
func replayPayments(ctx context.Context, r repos, loan *domain.Loan) (int, error) {
	installments, err := r.installments.FindByLoanID(ctx, loan.ID)
	if err != nil {
		return 0, err
	}
	for i := range installments {
		installments[i].PrincipalPaid = money.Zero
		installments[i].InterestPaid = money.Zero
		installments[i].TotalPaid = money.Zero
		installments[i].Status = domain.InstallmentPending
		installments[i].PaidDate = nil
		if err := r.installments.Save(ctx, &installments[i]); err != nil {
			return 0, err
		}
	}

	if err := r.payments.DeleteAllocationsByLoanID(ctx, loan.ID); err != nil {
		return 0, err
	}

	payments, err := r.payments.FindNonChargeByLoanID(ctx, loan.ID)
	if err != nil {
		return 0, err
	}

	advance := money.Zero
	for i := range payments {
		payment := &payments[i]

		result, err := runWaterfall(ctx, r, loan.ID, payment.AmountReceived, payment.PaymentDate)
		if err != nil {
			return 0, err
		}

		allocations := make([]domain.PaymentAllocation, len(result.Entries))
		for j, entry := range result.Entries {
			installmentID := entry.InstallmentID
			allocations[j] = domain.PaymentAllocation{
				PaymentID:      payment.ID,
				InstallmentID:  &installmentID,
				PrincipalAlloc: entry.Principal,
				InterestAlloc:  entry.Interest,
			}
		}
		if err := r.payments.CreateAllocations(ctx, allocations); err != nil {
			return 0, err
		}

		advance = money.Round(advance.Add(result.Remaining))
	}

	loan.AdvanceBalance = advance

	return len(payments), nil
}

func (l *loanService) changeStatus(
	ctx context.Context,
	operation string,
	loanID uint64,
	req dto.ChangeStatus,
	newStatus domain.LoanStatus,
	txnType domain.TxnType,
	defaultNarration string,
) (*dto.StatusChangeResult, error) {
	ctx, span, start := l.begin(ctx, operation)
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, l.fail(ctx, span, start, operation, "transaction_begin_error",
			fmt.Errorf("failed to begin transaction: %w", tx.Error))
	}
	defer tx.Rollback()

	r := l.txRepositories(tx)

	loan, err := r.loans.FindByIDWithLock(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, operation, "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if loan == nil {
		return nil, l.fail(ctx, span, start, operation, "loan_not_found", common.ErrLoanNotFound,
			zap.Uint64("loan_id", loanID))
	}
	if loan.Status.Terminal() {
		return nil, l.fail(ctx, span, start, operation, "invalid_loan_state", common.ErrInvalidLoanState,
			zap.Uint64("loan_id", loanID),
			zap.String("status", string(loan.Status)))
	}

	effective := dto.DateOrToday(req.EffectiveDate)

	loan.Status = newStatus
	if newStatus == domain.LoanInactive {
		now := time.Now()
		loan.DeactivatedOn = &now
	}

	frozen, err := setUnpaidStatus(ctx, r, loan.ID, domain.InstallmentPaused)
	if err != nil {
		return nil, l.fail(ctx, span, start, operation, "installment_update_error", err,
			zap.Uint64("loan_id", loanID))
	}

	narration := req.Remarks
	if narration == "" {
		narration = defaultNarration
	}
	if err := postStatusMarker(ctx, r, loan, txnType, effective, narration); err != nil {
		return nil, l.fail(ctx, span, start, operation, "ledger_post_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := r.loans.Save(ctx, loan); err != nil {
		return nil, l.fail(ctx, span, start, operation, "loan_save_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := tx.Commit().Error; err != nil {
		return nil, l.fail(ctx, span, start, operation, "transaction_commit_error",
			fmt.Errorf("failed to commit transaction: %w", err),
			zap.Uint64("loan_id", loanID))
	}

	l.log.Info("Loan status changed",
		zap.Uint64("loan_id", loan.ID),
		zap.String("status", string(loan.Status)),
		zap.Int("frozen_installments", frozen),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	l.done(ctx, span, start, operation)

	return &dto.StatusChangeResult{
		LoanID:        loan.ID,
		Status:        string(loan.Status),
		EffectiveDate: effective.Format("2006-01-02"),
	}, nil
}

// Pause implements service.LoanService.
func (l *loanService) Pause(ctx context.Context, loanID uint64, req dto.ChangeStatus) (*dto.StatusChangeResult, error) {
	return l.changeStatus(ctx, "Pause", loanID, req,
		domain.LoanPaused, domain.TxnLoanPaused, "Loan paused (installments frozen)")
}

// Deactivate implements service.LoanService.
func (l *loanService) Deactivate(ctx context.Context, loanID uint64, req dto.ChangeStatus) (*dto.StatusChangeResult, error) {
	return l.changeStatus(ctx, "Deactivate", loanID, req,
		domain.LoanInactive, domain.TxnLoanDeactivated, "Loan deactivated (installments frozen)")
}

// Resume implements service.LoanService.
func (l *loanService) Resume(ctx context.Context, loanID uint64, req dto.ResumeLoan) (*dto.StatusChangeResult, error) {
	ctx, span, start := l.begin(ctx, "Resume")
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, l.fail(ctx, span, start, "Resume", "transaction_begin_error",
			fmt.Errorf("failed to begin transaction: %w", tx.Error))
	}
	defer tx.Rollback()

	r := l.txRepositories(tx)

	loan, err := r.loans.FindByIDWithLock(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "Resume", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if loan == nil {
		return nil, l.fail(ctx, span, start, "Resume", "loan_not_found", common.ErrLoanNotFound,
			zap.Uint64("loan_id", loanID))
	}
	if loan.Status.Terminal() {
		return nil, l.fail(ctx, span, start, "Resume", "invalid_loan_state", common.ErrInvalidLoanState,
			zap.Uint64("loan_id", loanID),
			zap.String("status", string(loan.Status)))
	}

	loan.Status = domain.LoanActive
	loan.DeactivatedOn = nil

	startDue := dto.DateOrToday(req.StartDate)

	resequence := req.Resequence == nil || *req.Resequence
	reallocate := req.Reallocate == nil || *req.Reallocate

	var reinstated int
	if resequence {
		reinstated, err = resequenceUnpaid(ctx, r, loan.ID, startDue)
	} else {
		reinstated, err = setUnpaidStatus(ctx, r, loan.ID, domain.InstallmentPending)
	}
	if err != nil {
		return nil, l.fail(ctx, span, start, "Resume", "installment_update_error", err,
			zap.Uint64("loan_id", loanID))
	}

	replayed := 0
	if reallocate {
		replayed, err = replayPayments(ctx, r, loan)
		if err != nil {
			return nil, l.fail(ctx, span, start, "Resume", "replay_error", err,
				zap.Uint64("loan_id", loanID))
		}
	}

	narration := req.Remarks
	if narration == "" {
		narration = fmt.Sprintf("Loan resumed (reinstated %d installments)", reinstated)
	}
	if err := postStatusMarker(ctx, r, loan, domain.TxnLoanResumed, startDue, narration); err != nil {
		return nil, l.fail(ctx, span, start, "Resume", "ledger_post_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := r.loans.Save(ctx, loan); err != nil {
		return nil, l.fail(ctx, span, start, "Resume", "loan_save_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := tx.Commit().Error; err != nil {
		return nil, l.fail(ctx, span, start, "Resume", "transaction_commit_error",
			fmt.Errorf("failed to commit transaction: %w", err),
			zap.Uint64("loan_id", loanID))
	}

	l.log.Info("Loan resumed",
		zap.Uint64("loan_id", loan.ID),
		zap.Int("reinstated_installments", reinstated),
		zap.Int("replayed_payments", replayed),
		zap.String("advance_balance", loan.AdvanceBalance.String()),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	l.done(ctx, span, start, "Resume")

	return &dto.StatusChangeResult{
		LoanID:           loan.ID,
		Status:           string(loan.Status),
		EffectiveDate:    startDue.Format("2006-01-02"),
		ReplayedPayments: replayed,
	}, nil
}

// Close implements service.LoanService.
func (l *loanService) Close(ctx context.Context, loanID uint64, req dto.CloseLoan) (*dto.CloseResult, error) {
	ctx, span, start := l.begin(ctx, "Close")
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, l.fail(ctx, span, start, "Close", "transaction_begin_error",
			fmt.Errorf("failed to begin transaction: %w", tx.Error))
	}
	defer tx.Rollback()

	r := l.txRepositories(tx)

	loan, err := r.loans.FindByIDWithLock(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "Close", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if loan == nil {
		return nil, l.fail(ctx, span, start, "Close", "loan_not_found", common.ErrLoanNotFound,
			zap.Uint64("loan_id", loanID))
	}
	if loan.Status.Terminal() {
		return nil, l.fail(ctx, span, start, "Close", "invalid_loan_state", common.ErrInvalidLoanState,
			zap.Uint64("loan_id", loanID),
			zap.String("status", string(loan.Status)))
	}

	closingDate := dto.DateOrToday(req.ClosingDate)

	weeksElapsed := int(closingDate.Sub(loan.DisburseDate).Hours() / (24 * 7))
	if weeksElapsed < loan.MinWeeksBeforeClosure && !loan.AllowEarlyClosure {
		return nil, l.fail(ctx, span, start, "Close", "min_tenure_not_reached", common.ErrMinTenureNotReached,
			zap.Uint64("loan_id", loanID),
			zap.Int("weeks_elapsed", weeksElapsed),
			zap.Int("min_weeks", loan.MinWeeksBeforeClosure))
	}

	balance, err := r.ledger.LastBalance(ctx, loan.ID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "Close", "ledger_read_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if balance.GreaterThan(decimal.Zero) {
		return nil, l.fail(ctx, span, start, "Close", "outstanding_balance", common.ErrOutstandingBalance,
			zap.Uint64("loan_id", loanID),
			zap.String("balance_outstanding", balance.String()))
	}

	loan.Status = domain.LoanClosed
	loan.ClosingDate = &closingDate

	narration := req.Remarks
	if narration == "" {
		narration = "Loan closed"
	}
	if err := postStatusMarker(ctx, r, loan, domain.TxnClosure, closingDate, narration); err != nil {
		return nil, l.fail(ctx, span, start, "Close", "ledger_post_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := r.loans.Save(ctx, loan); err != nil {
		return nil, l.fail(ctx, span, start, "Close", "loan_save_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := tx.Commit().Error; err != nil {
		return nil, l.fail(ctx, span, start, "Close", "transaction_commit_error",
			fmt.Errorf("failed to commit transaction: %w", err),
			zap.Uint64("loan_id", loanID))
	}

	l.log.Info("Loan closed",
		zap.Uint64("loan_id", loan.ID),
		zap.String("closing_date", closingDate.Format("2006-01-02")),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	l.done(ctx, span, start, "Close")

	return &dto.CloseResult{
		LoanID:             loan.ID,
		Status:             string(loan.Status),
		ClosingDate:        closingDate.Format("2006-01-02"),
		BalanceOutstanding: balance,
	}, nil
}

// UpdateTerms implements service.LoanService. Terms are only editable while
// no payment exists; the whole schedule, fee charges and opening ledger
// entry are discarded and rebuilt from the new terms.
func (l *loanService) UpdateTerms(ctx context.Context, loanID uint64, req dto.UpdateTerms) (*dto.LoanResponse, error) {
	ctx, span, start := l.begin(ctx, "UpdateTerms")
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "transaction_begin_error",
			fmt.Errorf("failed to begin transaction: %w", tx.Error))
	}
	defer tx.Rollback()

	r := l.txRepositories(tx)

	loan, err := r.loans.FindByIDWithLock(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if loan == nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "loan_not_found", common.ErrLoanNotFound,
			zap.Uint64("loan_id", loanID))
	}
	if loan.Status.Terminal() {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "invalid_loan_state", common.ErrInvalidLoanState,
			zap.Uint64("loan_id", loanID),
			zap.String("status", string(loan.Status)))
	}

	paymentCount, err := r.payments.CountByLoanID(ctx, loan.ID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "payment_count_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if paymentCount > 0 {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "terms_locked", common.ErrTermsLocked,
			zap.Uint64("loan_id", loanID),
			zap.Int64("payment_count", paymentCount))
	}

	principal := loan.PrincipalAmount
	if req.PrincipalAmount != nil {
		principal = *req.PrincipalAmount
	}
	if !principal.IsPositive() {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "invalid_amount", common.ErrInvalidAmount,
			zap.Uint64("loan_id", loanID))
	}

	durationWeeks := loan.DurationWeeks
	if req.DurationWeeks > 0 {
		durationWeeks = req.DurationWeeks
	}

	disburseDate := loan.DisburseDate
	if req.DisburseDate != "" {
		disburseDate = dto.ParseDate(req.DisburseDate)
	}
	firstDue := loan.FirstDueDate
	if req.FirstDueDate != "" {
		firstDue = dto.ParseDate(req.FirstDueDate)
	}

	terms, err := resolveTerms(ctx, r, principal, durationWeeks)
	if err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "terms_error", err,
			zap.Uint64("loan_id", loanID))
	}

	// Discard the pre-payment schedule, fee charges and opening entry.
	if err := r.installments.DeleteByLoanID(ctx, loan.ID); err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "schedule_delete_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if err := r.charges.DeleteByLoanID(ctx, loan.ID); err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "charge_delete_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if err := r.ledger.DeleteByLoanID(ctx, loan.ID); err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "ledger_delete_error", err,
			zap.Uint64("loan_id", loanID))
	}

	totalOutstanding := money.Round(terms.principal.Add(terms.interestTotal))

	loan.DisburseDate = disburseDate
	loan.FirstDueDate = firstDue
	loan.DurationWeeks = durationWeeks
	loan.PrincipalAmount = terms.principal
	loan.InterestTotal = terms.interestTotal
	loan.TotalOutstanding = totalOutstanding
	loan.InstallmentAmount = terms.schedule.BaseInstallment
	loan.MinWeeksBeforeClosure = terms.minWeeks

	installments := buildInstallments(loan.ID, firstDue, durationWeeks, terms.schedule)
	if err := r.installments.CreateBatch(ctx, installments); err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "schedule_create_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if err := r.charges.CreateBatch(ctx, feeCharges(loan.ID, disburseDate, terms)); err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "charge_create_error", err,
			zap.Uint64("loan_id", loanID))
	}

	refID := loan.ID
	if err := r.ledger.Post(ctx, &domain.LedgerEntry{
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
		Narration:          "Loan disbursed (terms updated)",
	}); err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "ledger_post_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := r.loans.Save(ctx, loan); err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "loan_save_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := tx.Commit().Error; err != nil {
		return nil, l.fail(ctx, span, start, "UpdateTerms", "transaction_commit_error",
			fmt.Errorf("failed to commit transaction: %w", err),
			zap.Uint64("loan_id", loanID))
	}

	l.log.Info("Loan terms updated",
		zap.Uint64("loan_id", loan.ID),
		zap.String("principal", terms.principal.String()),
		zap.Int("duration_weeks", durationWeeks),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	l.done(ctx, span, start, "UpdateTerms")

	member, err := l.memberRepository.FindActiveByID(ctx, loan.MemberID)
	memberName := ""
	if err == nil && member != nil {
		memberName = member.FullName
	}

	resp := dto.LoanToResponse(loan, memberName)

	return &resp, nil
}

// MarkOverdue implements service.LoanService. A single idempotent UPDATE;
// re-running it never un-marks or double-marks.
func (l *loanService) MarkOverdue(ctx context.Context, req dto.MarkOverdue) (*dto.MarkOverdueResult, error) {
	ctx, span, start := l.begin(ctx, "MarkOverdue")
	defer span.End()

	asOf := dto.DateOrToday(req.AsOf)

	rows, err := l.installmentRepository.MarkOverdue(ctx, asOf)
	if err != nil {
		return nil, l.fail(ctx, span, start, "MarkOverdue", "sweep_error", err,
			zap.Time("as_of", asOf))
	}

	l.log.Info("Overdue sweep completed",
		zap.Int64("rows_marked", rows),
		zap.String("as_of", asOf.Format("2006-01-02")),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	l.done(ctx, span, start, "MarkOverdue")

	return &dto.MarkOverdueResult{
		AsOf:       asOf.Format("2006-01-02"),
		RowsMarked: rows,
	}, nil
}
