package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type DisburseLoan struct {
	MemberID        uint64          `json:"member_id" validate:"required,gt=0"`
	ProductID       uint64          `json:"product_id" validate:"omitempty,gt=0"`
	PrincipalAmount decimal.Decimal `json:"principal_amount" validate:"required"`
	DisburseDate    string          `json:"disburse_date" validate:"required,datetime=2006-01-02"`
	DurationWeeks   int             `json:"duration_weeks" validate:"required,gt=0"`

	// Generated when empty.
	AccountNo string `json:"loan_account_no,omitempty"`
	// Defaults to one week after the disbursement date.
	FirstDueDate string `json:"first_due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	AllowEarlyClosure bool   `json:"allow_early_closure,omitempty"`
	Remarks           string `json:"remarks,omitempty"`
}

type RecordPayment struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	PaymentDate string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PaymentMode string          `json:"payment_mode,omitempty" validate:"omitempty,oneof=CASH BANK UPI CHEQUE"`
	ReceiptNo   string          `json:"receipt_no,omitempty"`
	Remarks     string          `json:"remarks,omitempty"`
}

type ApplyAdvance struct {
	ValueDate string `json:"value_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Remarks   string `json:"remarks,omitempty"`
}

type CollectCharge struct {
	// Zero means collect the full pending amount.
	Amount      decimal.Decimal `json:"amount,omitempty"`
	PaymentDate string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PaymentMode string          `json:"payment_mode,omitempty" validate:"omitempty,oneof=CASH BANK UPI CHEQUE"`
	ReceiptNo   string          `json:"receipt_no,omitempty"`
	Remarks     string          `json:"remarks,omitempty"`
}

type ChangeStatus struct {
	EffectiveDate string `json:"effective_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Remarks       string `json:"remarks,omitempty"`
}

type CloseLoan struct {
	ClosingDate string `json:"closing_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Remarks     string `json:"remarks,omitempty"`
}

type UpdateTerms struct {
	PrincipalAmount *decimal.Decimal `json:"principal_amount,omitempty"`
	DurationWeeks   int              `json:"duration_weeks,omitempty" validate:"omitempty,gt=0"`
	DisburseDate    string           `json:"disburse_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	FirstDueDate    string           `json:"first_due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type ResumeLoan struct {
	// Due date for the first reinstated installment; defaults to today.
	StartDate string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	// Resequence unpaid due dates weekly from StartDate; when false, unpaid
	// installments just flip back to PENDING in place.
	Resequence *bool `json:"resequence,omitempty"`
	// Replay historical payments through the allocator against the
	// reinstated schedule.
	Reallocate *bool  `json:"reallocate,omitempty"`
	Remarks    string `json:"remarks,omitempty"`
}

type MarkOverdue struct {
	AsOf string `json:"as_of,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// --- Parsing --- //

// ParseDate converts a validated "2006-01-02" string; the zero time stands in
// for an absent optional date.
func ParseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, _ := time.Parse("2006-01-02", value)

	return parsed
}

// DateOrToday resolves an optional date field against the current local
// calendar day.
func DateOrToday(value string) time.Time {
	if value == "" {
		now := time.Now()
		year, month, day := now.Date()

		return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	}

	return ParseDate(value)
}
