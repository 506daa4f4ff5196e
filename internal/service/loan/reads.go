package loansrv

import (
	"context"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/internal/dto"
	"github.com/mitrakarya/lending/pkg/common"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func (l *loanService) findLoan(ctx context.Context, loanID uint64) (*domain.Loan, error) {
	loan, err := l.loanRepository.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, common.ErrLoanNotFound
	}

	return loan, nil
}

// GetLoan implements service.LoanService.
func (l *loanService) GetLoan(ctx context.Context, loanID uint64) (*dto.LoanResponse, error) {
	ctx, span, start := l.begin(ctx, "GetLoan")
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	loan, err := l.findLoan(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetLoan", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}

	member, err := l.memberRepository.FindActiveByID(ctx, loan.MemberID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetLoan", "member_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}
	memberName := ""
	if member != nil {
		memberName = member.FullName
	}

	l.done(ctx, span, start, "GetLoan")

	resp := dto.LoanToResponse(loan, memberName)

	return &resp, nil
}

// GetSchedule implements service.LoanService.
func (l *loanService) GetSchedule(ctx context.Context, loanID uint64) (*dto.ScheduleResponse, error) {
	ctx, span, start := l.begin(ctx, "GetSchedule")
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	loan, err := l.findLoan(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetSchedule", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}

	installments, err := l.installmentRepository.FindByLoanID(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetSchedule", "schedule_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	rows := make([]dto.InstallmentRow, len(installments))
	for i := range installments {
		rows[i] = dto.InstallmentToRow(&installments[i])
	}

	l.done(ctx, span, start, "GetSchedule")

	return &dto.ScheduleResponse{
		LoanID:       loan.ID,
		AccountNo:    loan.AccountNo,
		Status:       string(loan.Status),
		Installments: rows,
	}, nil
}

// GetStatement implements service.LoanService. The full journal in
// (txn_date, ledger_id) order; the last line's balance is the loan's
// current balance.
func (l *loanService) GetStatement(ctx context.Context, loanID uint64) (*dto.StatementResponse, error) {
	ctx, span, start := l.begin(ctx, "GetStatement")
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	loan, err := l.findLoan(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetStatement", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}

	entries, err := l.ledgerRepository.FindByLoanID(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetStatement", "ledger_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	lines := make([]dto.LedgerLine, len(entries))
	for i := range entries {
		lines[i] = dto.LedgerToLine(&entries[i])
	}

	closing, err := l.ledgerRepository.LastBalance(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetStatement", "ledger_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	l.done(ctx, span, start, "GetStatement")

	return &dto.StatementResponse{
		LoanID:         loan.ID,
		AccountNo:      loan.AccountNo,
		Entries:        lines,
		ClosingBalance: closing,
	}, nil
}

// GetSummary implements service.LoanService.
func (l *loanService) GetSummary(ctx context.Context, loanID uint64) (*dto.LoanSummaryResponse, error) {
	ctx, span, start := l.begin(ctx, "GetSummary")
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	loan, err := l.findLoan(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetSummary", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}

	member, err := l.memberRepository.FindActiveByID(ctx, loan.MemberID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetSummary", "member_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}
	memberName := ""
	if member != nil {
		memberName = member.FullName
	}

	balance, err := l.ledgerRepository.LastBalance(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetSummary", "ledger_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	paymentsReceived, err := l.paymentRepository.SumNonChargeByLoanID(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetSummary", "payment_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	installments, err := l.installmentRepository.FindByLoanID(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetSummary", "schedule_read_error", err,
			zap.Uint64("loan_id", loanID))
	}
	paid := 0
	for i := range installments {
		if installments[i].Status == domain.InstallmentPaid {
			paid++
		}
	}

	nextDue, err := l.installmentRepository.FindNextDue(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetSummary", "schedule_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	charges, err := l.chargeRepository.SnapshotByLoanID(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "GetSummary", "charge_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	resp := &dto.LoanSummaryResponse{
		Loan:               dto.LoanToResponse(loan, memberName),
		BalanceOutstanding: balance,
		PaymentsReceived:   paymentsReceived,
		InstallmentsTotal:  len(installments),
		InstallmentsPaid:   paid,
		ChargesTotal:       charges.Total,
		ChargesWaived:      charges.Waived,
		ChargesCollected:   charges.Collected,
		ChargesPending:     charges.Pending,
	}
	if nextDue != nil {
		row := dto.InstallmentToRow(nextDue)
		resp.NextDue = &row
	}

	l.done(ctx, span, start, "GetSummary")

	return resp, nil
}

// ListCharges implements service.LoanService.
func (l *loanService) ListCharges(ctx context.Context, loanID uint64) ([]dto.ChargeResponse, error) {
	ctx, span, start := l.begin(ctx, "ListCharges")
	defer span.End()

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	if _, err := l.findLoan(ctx, loanID); err != nil {
		return nil, l.fail(ctx, span, start, "ListCharges", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}

	charges, err := l.chargeRepository.FindByLoanID(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "ListCharges", "charge_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	responses := make([]dto.ChargeResponse, len(charges))
	for i := range charges {
		responses[i] = dto.ChargeToResponse(&charges[i])
	}

	l.done(ctx, span, start, "ListCharges")

	return responses, nil
}

// ListByMember implements service.LoanService.
func (l *loanService) ListByMember(ctx context.Context, memberID uint64) ([]dto.LoanResponse, error) {
	ctx, span, start := l.begin(ctx, "ListByMember")
	defer span.End()

	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	loans, err := l.loanRepository.FindByMemberID(ctx, memberID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "ListByMember", "loan_read_error", err,
			zap.Uint64("member_id", memberID))
	}

	responses := make([]dto.LoanResponse, len(loans))
	for i := range loans {
		responses[i] = dto.LoanToResponse(&loans[i], "")
	}

	l.done(ctx, span, start, "ListByMember")

	return responses, nil
}
