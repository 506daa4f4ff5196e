package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanDisbursed LoanStatus = "DISBURSED"
	LoanActive    LoanStatus = "ACTIVE"
	LoanPaused    LoanStatus = "PAUSED"
	LoanInactive  LoanStatus = "INACTIVE"
	LoanClosed    LoanStatus = "CLOSED"
	LoanCancelled LoanStatus = "CANCELLED"
)

// Terminal reports whether a loan in this status accepts no further mutation.
func (s LoanStatus) Terminal() bool {
	return s == LoanClosed || s == LoanCancelled
}

// Payable reports whether installment payments are accepted in this status.
func (s LoanStatus) Payable() bool {
	return s == LoanDisbursed || s == LoanActive
}

type InstallmentStatus string

const (
	InstallmentPending  InstallmentStatus = "PENDING"
	InstallmentOverdue  InstallmentStatus = "OVERDUE"
	InstallmentPartPaid InstallmentStatus = "PART_PAID"
	InstallmentPaid     InstallmentStatus = "PAID"
	InstallmentPaused   InstallmentStatus = "PAUSED"
)

type PaymentPurpose string

const (
	PurposeInstallment PaymentPurpose = "INSTALLMENT"
	PurposeAdvance     PaymentPurpose = "ADVANCE"
	PurposeCharge      PaymentPurpose = "CHARGE"
)

type ChargeType string

const (
	ChargeInsuranceFee  ChargeType = "INSURANCE_FEE"
	ChargeProcessingFee ChargeType = "PROCESSING_FEE"
	ChargeBookPrice     ChargeType = "BOOK_PRICE"
	ChargeOther         ChargeType = "OTHER"
)

type TxnType string

const (
	TxnDisbursement     TxnType = "DISBURSEMENT"
	TxnPayment          TxnType = "PAYMENT"
	TxnAdvanceAdd       TxnType = "ADVANCE_ADD"
	TxnAdvanceApply     TxnType = "ADVANCE_APPLY"
	TxnChargeCollection TxnType = "CHARGE_COLLECTION"
	TxnLoanPaused       TxnType = "LOAN_PAUSED"
	TxnLoanDeactivated  TxnType = "LOAN_DEACTIVATED"
	TxnLoanResumed      TxnType = "LOAN_RESUMED"
	TxnClosure          TxnType = "CLOSURE"
)

type FeeType string

const (
	FeePercent FeeType = "PERCENT"
	FeeFixed   FeeType = "FIXED"
)

// Member is reference data owned by the administrative layer; the engine only
// reads the identifiers and the active flag.
type Member struct {
	ID        uint64
	FullName  string
	GroupID   uint64
	OfficerID uint64
	BranchID  uint64
	RegionID  uint64
	IsActive  bool
}

type Loan struct {
	ID        uint64
	AccountNo string

	MemberID  uint64
	GroupID   uint64
	OfficerID uint64
	BranchID  uint64
	RegionID  uint64
	ProductID uint64

	DisburseDate    time.Time
	FirstDueDate    time.Time
	DurationWeeks   int
	InstallmentType string

	PrincipalAmount   decimal.Decimal
	InterestTotal     decimal.Decimal
	TotalOutstanding  decimal.Decimal
	InstallmentAmount decimal.Decimal

	MinWeeksBeforeClosure int
	AllowEarlyClosure     bool

	// Cash received in excess of current dues, held against future dues.
	AdvanceBalance decimal.Decimal

	Status        LoanStatus
	DeactivatedOn *time.Time
	ClosingDate   *time.Time
	CreatedOn     time.Time

	Installments []Installment
}

type Installment struct {
	ID     uint64
	LoanID uint64
	No     int

	DueDate time.Time

	PrincipalDue decimal.Decimal
	InterestDue  decimal.Decimal
	TotalDue     decimal.Decimal

	PrincipalPaid decimal.Decimal
	InterestPaid  decimal.Decimal
	TotalPaid     decimal.Decimal

	Status   InstallmentStatus
	PaidDate *time.Time
}

// DueLeft is the unpaid remainder of this installment.
func (i *Installment) DueLeft() decimal.Decimal {
	return i.TotalDue.Sub(i.TotalPaid)
}

type Payment struct {
	ID     uint64
	LoanID uint64

	MemberID  uint64
	GroupID   uint64
	OfficerID uint64

	PaymentDate    time.Time
	AmountReceived decimal.Decimal
	PaymentMode    string
	ReceiptNo      string
	Remarks        string

	Purpose  PaymentPurpose
	ChargeID *uint64

	CreatedOn time.Time
}

type PaymentAllocation struct {
	ID        uint64
	PaymentID uint64

	// Nil when the payment funds a charge rather than an installment.
	InstallmentID *uint64

	PrincipalAlloc decimal.Decimal
	InterestAlloc  decimal.Decimal
}

type Charge struct {
	ID     uint64
	LoanID uint64

	Type       ChargeType
	ChargeDate time.Time

	Amount          decimal.Decimal
	WaivedAmount    decimal.Decimal
	CollectedAmount decimal.Decimal
	IsCollected     bool

	PaymentMode string
	ReceiptNo   string
	CollectedOn *time.Time
	Remarks     string
}

// Payable is the amount still chargeable after waivers.
func (c *Charge) Payable() decimal.Decimal {
	return c.Amount.Sub(c.WaivedAmount)
}

// Pending is the uncollected part of the payable amount.
func (c *Charge) Pending() decimal.Decimal {
	return c.Payable().Sub(c.CollectedAmount)
}

type LedgerEntry struct {
	ID     uint64
	LoanID uint64

	TxnDate time.Time
	TxnType TxnType

	RefTable string
	RefID    *uint64

	Debit  decimal.Decimal
	Credit decimal.Decimal

	PrincipalComponent decimal.Decimal
	InterestComponent  decimal.Decimal

	// Outstanding balance after this entry; the newest entry's value is the
	// loan's current balance.
	BalanceOutstanding decimal.Decimal

	Narration string
	CreatedOn time.Time
}
