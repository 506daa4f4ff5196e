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
	"go.uber.org/zap"
)

// CollectCharge implements service.LoanService. Charges sit outside the loan
// receivable: collection records the cash and the statement line but never
// moves the outstanding balance.
func (l *loanService) CollectCharge(ctx context.Context, loanID, chargeID uint64, req dto.CollectCharge) (*dto.ChargeCollectResult, error) {
	ctx, span, start := l.begin(ctx, "CollectCharge")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("loan.id", int64(loanID)),
		attribute.Int64("charge.id", int64(chargeID)),
	)

	if req.Amount.IsNegative() {
		return nil, l.fail(ctx, span, start, "CollectCharge", "invalid_amount", common.ErrInvalidAmount,
			zap.Uint64("loan_id", loanID),
			zap.Uint64("charge_id", chargeID))
	}

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "transaction_begin_error",
			fmt.Errorf("failed to begin transaction: %w", tx.Error))
	}
	defer tx.Rollback()

	r := l.txRepositories(tx)

	loan, err := r.loans.FindByIDWithLock(ctx, loanID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "loan_lookup_error", err,
			zap.Uint64("loan_id", loanID))
	}
	if loan == nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "loan_not_found", common.ErrLoanNotFound,
			zap.Uint64("loan_id", loanID))
	}

	charge, err := r.charges.FindByID(ctx, loanID, chargeID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "charge_lookup_error", err,
			zap.Uint64("loan_id", loanID),
			zap.Uint64("charge_id", chargeID))
	}
	if charge == nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "charge_not_found", common.ErrChargeNotFound,
			zap.Uint64("loan_id", loanID),
			zap.Uint64("charge_id", chargeID))
	}

	pending := charge.Pending()
	if pending.LessThanOrEqual(decimal.Zero) {
		return nil, l.fail(ctx, span, start, "CollectCharge", "charge_fully_collected", common.ErrChargeFullyCollected,
			zap.Uint64("charge_id", chargeID))
	}

	amount := money.Round(req.Amount)
	if amount.IsZero() {
		amount = pending
	}
	if amount.GreaterThan(pending) {
		return nil, l.fail(ctx, span, start, "CollectCharge", "charge_overpayment", common.ErrChargeOverpayment,
			zap.Uint64("charge_id", chargeID),
			zap.String("amount", amount.String()),
			zap.String("pending", pending.String()))
	}

	payDate := dto.DateOrToday(req.PaymentDate)

	receiptNo := req.ReceiptNo
	if receiptNo == "" {
		receiptNo = generateReceiptNo()
	}
	paymentMode := req.PaymentMode
	if paymentMode == "" {
		paymentMode = "CASH"
	}

	chargeRef := charge.ID
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
		Purpose:        domain.PurposeCharge,
		ChargeID:       &chargeRef,
	}
	if err := r.payments.Create(ctx, payment); err != nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "payment_create_error", err,
			zap.Uint64("loan_id", loanID))
	}

	charge.CollectedAmount = money.Round(charge.CollectedAmount.Add(amount))
	charge.PaymentMode = paymentMode
	charge.ReceiptNo = receiptNo
	charge.CollectedOn = &payDate
	charge.IsCollected = charge.CollectedAmount.GreaterThanOrEqual(charge.Payable())

	if err := r.charges.Save(ctx, charge); err != nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "charge_save_error", err,
			zap.Uint64("charge_id", chargeID))
	}

	lastBalance, err := r.ledger.LastBalance(ctx, loan.ID)
	if err != nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "ledger_read_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := r.ledger.Post(ctx, &domain.LedgerEntry{
		LoanID:             loan.ID,
		TxnDate:            payDate,
		TxnType:            domain.TxnChargeCollection,
		RefTable:           "loan_charges",
		RefID:              &chargeRef,
		Debit:              money.Zero,
		Credit:             amount,
		PrincipalComponent: money.Zero,
		InterestComponent:  money.Zero,
		BalanceOutstanding: lastBalance,
		Narration:          fmt.Sprintf("Charge collected: %s", charge.Type),
	}); err != nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "ledger_post_error", err,
			zap.Uint64("loan_id", loanID))
	}

	if err := tx.Commit().Error; err != nil {
		return nil, l.fail(ctx, span, start, "CollectCharge", "transaction_commit_error",
			fmt.Errorf("failed to commit transaction: %w", err),
			zap.Uint64("loan_id", loanID))
	}

	l.log.Info("Charge collected",
		zap.Uint64("loan_id", loan.ID),
		zap.Uint64("charge_id", charge.ID),
		zap.String("charge_type", string(charge.Type)),
		zap.String("amount", amount.String()),
		zap.Bool("is_collected", charge.IsCollected),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	l.done(ctx, span, start, "CollectCharge")

	return &dto.ChargeCollectResult{
		ChargeID:    charge.ID,
		LoanID:      loan.ID,
		PaymentID:   payment.ID,
		ReceiptNo:   receiptNo,
		Collected:   charge.CollectedAmount,
		Pending:     charge.Pending(),
		IsCollected: charge.IsCollected,
	}, nil
}
