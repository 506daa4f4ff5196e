package dto

import (
	"time"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/shopspring/decimal"
)

type LoanResponse struct {
	LoanID    uint64 `json:"loan_id"`
	AccountNo string `json:"loan_account_no"`

	MemberID   uint64 `json:"member_id"`
	MemberName string `json:"member_name,omitempty"`
	GroupID    uint64 `json:"group_id"`
	OfficerID  uint64 `json:"officer_id"`

	DisburseDate  string `json:"disburse_date"`
	FirstDueDate  string `json:"first_due_date"`
	DurationWeeks int    `json:"duration_weeks"`

	PrincipalAmount   decimal.Decimal `json:"principal_amount"`
	InterestTotal     decimal.Decimal `json:"interest_total"`
	TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	AdvanceBalance    decimal.Decimal `json:"advance_balance"`

	Status      string `json:"status"`
	ClosingDate string `json:"closing_date,omitempty"`
	CreatedOn   string `json:"created_on"`
}

type InstallmentRow struct {
	InstallmentID uint64 `json:"installment_id"`
	No            int    `json:"installment_no"`
	DueDate       string `json:"due_date"`

	PrincipalDue decimal.Decimal `json:"principal_due"`
	InterestDue  decimal.Decimal `json:"interest_due"`
	TotalDue     decimal.Decimal `json:"total_due"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	DueLeft      decimal.Decimal `json:"due_left"`

	Status   string `json:"status"`
	PaidDate string `json:"paid_date,omitempty"`
}

type ScheduleResponse struct {
	LoanID       uint64           `json:"loan_id"`
	AccountNo    string           `json:"loan_account_no"`
	Status       string           `json:"status"`
	Installments []InstallmentRow `json:"installments"`
}

type AllocationLine struct {
	InstallmentID uint64          `json:"installment_id"`
	InstallmentNo int             `json:"installment_no"`
	Principal     decimal.Decimal `json:"principal"`
	Interest      decimal.Decimal `json:"interest"`
	Settled       bool            `json:"settled"`
}

type PaymentResult struct {
	PaymentID uint64 `json:"payment_id"`
	LoanID    uint64 `json:"loan_id"`
	ReceiptNo string `json:"receipt_no"`

	AmountReceived decimal.Decimal  `json:"amount_received"`
	AppliedTotal   decimal.Decimal  `json:"applied_total"`
	AdvanceAdded   decimal.Decimal  `json:"advance_added"`
	Allocations    []AllocationLine `json:"allocations"`

	InstallmentsSettled int             `json:"installments_settled"`
	AdvanceBalance      decimal.Decimal `json:"advance_balance"`
	BalanceOutstanding  decimal.Decimal `json:"balance_outstanding"`
	LoanStatus          string          `json:"loan_status"`
}

type AdvanceApplyResult struct {
	LoanID uint64 `json:"loan_id"`

	AppliedTotal decimal.Decimal  `json:"applied_total"`
	Allocations  []AllocationLine `json:"allocations"`

	InstallmentsSettled int             `json:"installments_settled"`
	AdvanceBalance      decimal.Decimal `json:"advance_balance"`
	BalanceOutstanding  decimal.Decimal `json:"balance_outstanding"`
	LoanStatus          string          `json:"loan_status"`
}

type ChargeResponse struct {
	ChargeID   uint64 `json:"charge_id"`
	LoanID     uint64 `json:"loan_id"`
	ChargeType string `json:"charge_type"`
	ChargeDate string `json:"charge_date"`

	Amount          decimal.Decimal `json:"amount"`
	WaivedAmount    decimal.Decimal `json:"waived_amount"`
	CollectedAmount decimal.Decimal `json:"collected_amount"`
	Pending         decimal.Decimal `json:"pending"`
	IsCollected     bool            `json:"is_collected"`

	ReceiptNo   string `json:"receipt_no,omitempty"`
	CollectedOn string `json:"collected_on,omitempty"`
}

type ChargeCollectResult struct {
	ChargeID  uint64 `json:"charge_id"`
	LoanID    uint64 `json:"loan_id"`
	PaymentID uint64 `json:"payment_id"`
	ReceiptNo string `json:"receipt_no"`

	Collected   decimal.Decimal `json:"collected"`
	Pending     decimal.Decimal `json:"pending"`
	IsCollected bool            `json:"is_collected"`
}

type LedgerLine struct {
	LedgerID uint64 `json:"ledger_id"`
	TxnDate  string `json:"txn_date"`
	TxnType  string `json:"txn_type"`

	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`

	PrincipalComponent decimal.Decimal `json:"principal_component"`
	InterestComponent  decimal.Decimal `json:"interest_component"`
	BalanceOutstanding decimal.Decimal `json:"balance_outstanding"`

	Narration string `json:"narration,omitempty"`
}

type StatementResponse struct {
	LoanID         uint64          `json:"loan_id"`
	AccountNo      string          `json:"loan_account_no"`
	Entries        []LedgerLine    `json:"entries"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

type LoanSummaryResponse struct {
	Loan LoanResponse `json:"loan"`

	BalanceOutstanding decimal.Decimal `json:"balance_outstanding"`

	// Cash received against installments and advances; charge money excluded.
	PaymentsReceived decimal.Decimal `json:"payments_received"`

	InstallmentsTotal int `json:"installments_total"`
	InstallmentsPaid  int `json:"installments_paid"`

	NextDue *InstallmentRow `json:"next_due,omitempty"`

	ChargesTotal     decimal.Decimal `json:"charges_total"`
	ChargesWaived    decimal.Decimal `json:"charges_waived"`
	ChargesCollected decimal.Decimal `json:"charges_collected"`
	ChargesPending   decimal.Decimal `json:"charges_pending"`
}

type StatusChangeResult struct {
	LoanID        uint64 `json:"loan_id"`
	Status        string `json:"status"`
	EffectiveDate string `json:"effective_date"`

	// Number of payments re-run through the waterfall on resume.
	ReplayedPayments int `json:"replayed_payments,omitempty"`
}

type CloseResult struct {
	LoanID             uint64          `json:"loan_id"`
	Status             string          `json:"status"`
	ClosingDate        string          `json:"closing_date"`
	BalanceOutstanding decimal.Decimal `json:"balance_outstanding"`
}

type MarkOverdueResult struct {
	AsOf       string `json:"as_of"`
	RowsMarked int64  `json:"rows_marked"`
}

// --- Mapping --- //

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format("2006-01-02")
}

func LoanToResponse(loan *domain.Loan, memberName string) LoanResponse {
	resp := LoanResponse{
		LoanID:            loan.ID,
		AccountNo:         loan.AccountNo,
		MemberID:          loan.MemberID,
		MemberName:        memberName,
		GroupID:           loan.GroupID,
		OfficerID:         loan.OfficerID,
		DisburseDate:      formatDate(loan.DisburseDate),
		FirstDueDate:      formatDate(loan.FirstDueDate),
		DurationWeeks:     loan.DurationWeeks,
		PrincipalAmount:   loan.PrincipalAmount,
		InterestTotal:     loan.InterestTotal,
		TotalOutstanding:  loan.TotalOutstanding,
		InstallmentAmount: loan.InstallmentAmount,
		AdvanceBalance:    loan.AdvanceBalance,
		Status:            string(loan.Status),
		CreatedOn:         loan.CreatedOn.Format(time.RFC3339),
	}
	if loan.ClosingDate != nil {
		resp.ClosingDate = formatDate(*loan.ClosingDate)
	}

	return resp
}

func InstallmentToRow(inst *domain.Installment) InstallmentRow {
	row := InstallmentRow{
		InstallmentID: inst.ID,
		No:            inst.No,
		DueDate:       formatDate(inst.DueDate),
		PrincipalDue:  inst.PrincipalDue,
		InterestDue:   inst.InterestDue,
		TotalDue:      inst.TotalDue,
		TotalPaid:     inst.TotalPaid,
		DueLeft:       inst.DueLeft(),
		Status:        string(inst.Status),
	}
	if inst.PaidDate != nil {
		row.PaidDate = formatDate(*inst.PaidDate)
	}

	return row
}

func ChargeToResponse(charge *domain.Charge) ChargeResponse {
	resp := ChargeResponse{
		ChargeID:        charge.ID,
		LoanID:          charge.LoanID,
		ChargeType:      string(charge.Type),
		ChargeDate:      formatDate(charge.ChargeDate),
		Amount:          charge.Amount,
		WaivedAmount:    charge.WaivedAmount,
		CollectedAmount: charge.CollectedAmount,
		Pending:         charge.Pending(),
		IsCollected:     charge.IsCollected,
		ReceiptNo:       charge.ReceiptNo,
	}
	if charge.CollectedOn != nil {
		resp.CollectedOn = formatDate(*charge.CollectedOn)
	}

	return resp
}

func LedgerToLine(entry *domain.LedgerEntry) LedgerLine {
	return LedgerLine{
		LedgerID:           entry.ID,
		TxnDate:            formatDate(entry.TxnDate),
		TxnType:            string(entry.TxnType),
		Debit:              entry.Debit,
		Credit:             entry.Credit,
		PrincipalComponent: entry.PrincipalComponent,
		InterestComponent:  entry.InterestComponent,
		BalanceOutstanding: entry.BalanceOutstanding,
		Narration:          entry.Narration,
	}
}
