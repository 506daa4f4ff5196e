package service

import (
	"context"

	"github.com/mitrakarya/lending/internal/dto"
)

// LoanService is the lifecycle controller: it owns every mutation of a loan
// and its installments, charges, advance balance and ledger.
type LoanService interface {
	Disburse(ctx context.Context, req dto.DisburseLoan) (*dto.LoanResponse, error)
	RecordPayment(ctx context.Context, loanID uint64, req dto.RecordPayment) (*dto.PaymentResult, error)
	ApplyAdvance(ctx context.Context, loanID uint64, req dto.ApplyAdvance) (*dto.AdvanceApplyResult, error)
	CollectCharge(ctx context.Context, loanID, chargeID uint64, req dto.CollectCharge) (*dto.ChargeCollectResult, error)

	Pause(ctx context.Context, loanID uint64, req dto.ChangeStatus) (*dto.StatusChangeResult, error)
	Deactivate(ctx context.Context, loanID uint64, req dto.ChangeStatus) (*dto.StatusChangeResult, error)
	Resume(ctx context.Context, loanID uint64, req dto.ResumeLoan) (*dto.StatusChangeResult, error)
	Close(ctx context.Context, loanID uint64, req dto.CloseLoan) (*dto.CloseResult, error)
	UpdateTerms(ctx context.Context, loanID uint64, req dto.UpdateTerms) (*dto.LoanResponse, error)

	MarkOverdue(ctx context.Context, req dto.MarkOverdue) (*dto.MarkOverdueResult, error)

	GetLoan(ctx context.Context, loanID uint64) (*dto.LoanResponse, error)
	GetSchedule(ctx context.Context, loanID uint64) (*dto.ScheduleResponse, error)
	GetStatement(ctx context.Context, loanID uint64) (*dto.StatementResponse, error)
	GetSummary(ctx context.Context, loanID uint64) (*dto.LoanSummaryResponse, error)
	ListCharges(ctx context.Context, loanID uint64) ([]dto.ChargeResponse, error)
	ListByMember(ctx context.Context, memberID uint64) ([]dto.LoanResponse, error)
}
