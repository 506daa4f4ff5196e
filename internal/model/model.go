package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Member represents the members table. The engine never writes it; rows are
// owned by the administrative layer and read here as reference data.
type Member struct {
	ID        uint64 `gorm:"column:member_id;primaryKey;autoIncrement" json:"member_id"`
	FullName  string `gorm:"type:varchar(255);not null" json:"full_name"`
	GroupID   uint64 `gorm:"not null;index" json:"group_id"`
	OfficerID uint64 `gorm:"not null;index" json:"officer_id"`
	BranchID  uint64 `gorm:"index" json:"branch_id"`
	RegionID  uint64 `gorm:"index" json:"region_id"`
	IsActive  bool   `gorm:"not null;default:true" json:"is_active"`
}

// SystemSetting represents the system_settings table: the keyed configuration
// store consumed at disbursement and term-update time.
type SystemSetting struct {
	Key         string    `gorm:"type:varchar(100);primaryKey" json:"key"`
	Value       string    `gorm:"type:varchar(200);not null" json:"value"`
	Description string    `gorm:"type:text" json:"description"`
	UpdatedOn   time.Time `gorm:"autoUpdateTime" json:"updated_on"`
}

// Loan represents the loans table.
type Loan struct {
	ID        uint64 `gorm:"column:loan_id;primaryKey;autoIncrement" json:"loan_id"`
	AccountNo string `gorm:"column:loan_account_no;type:varchar(50);uniqueIndex" json:"loan_account_no"`

	MemberID  uint64 `gorm:"not null;index:ix_loans_member_status" json:"member_id"`
	GroupID   uint64 `gorm:"not null;index" json:"group_id"`
	OfficerID uint64 `gorm:"not null;index" json:"officer_id"`
	BranchID  uint64 `gorm:"index" json:"branch_id"`
	RegionID  uint64 `gorm:"index" json:"region_id"`
	ProductID uint64 `json:"product_id"`

	DisburseDate    time.Time `gorm:"type:date;not null" json:"disburse_date"`
	FirstDueDate    time.Time `gorm:"type:date;not null" json:"first_due_date"`
	DurationWeeks   int       `gorm:"not null" json:"duration_weeks"`
	InstallmentType string    `gorm:"type:varchar(20);not null;default:'WEEKLY'" json:"installment_type"`

	PrincipalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"principal_amount"`
	InterestTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"interest_total"`
	TotalOutstanding  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_outstanding"`
	InstallmentAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"installment_amount"`

	MinWeeksBeforeClosure int  `gorm:"not null;default:0" json:"min_weeks_before_closure"`
	AllowEarlyClosure     bool `gorm:"not null;default:false" json:"allow_early_closure"`

	AdvanceBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"advance_balance"`

	Status        LoanStatus `gorm:"type:varchar(20);not null;default:'DISBURSED';index:ix_loans_member_status" json:"status"`
	DeactivatedOn *time.Time `json:"deactivated_on,omitempty"`
	ClosingDate   *time.Time `gorm:"type:date" json:"closing_date,omitempty"`
	CreatedOn     time.Time  `gorm:"autoCreateTime" json:"created_on"`

	Installments []Installment `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
	Charges      []Charge      `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"charges,omitempty"`
}

// LoanStatus enum for loans.status
type LoanStatus string

// Installment represents the loan_installments table.
type Installment struct {
	ID     uint64 `gorm:"column:installment_id;primaryKey;autoIncrement" json:"installment_id"`
	LoanID uint64 `gorm:"not null;index;uniqueIndex:uq_loan_installment_no" json:"loan_id"`
	No     int    `gorm:"column:installment_no;not null;uniqueIndex:uq_loan_installment_no" json:"installment_no"`

	DueDate time.Time `gorm:"type:date;not null;index" json:"due_date"`

	PrincipalDue decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"principal_due"`
	InterestDue  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"interest_due"`
	TotalDue     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_due"`

	PrincipalPaid decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"principal_paid"`
	InterestPaid  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"interest_paid"`
	TotalPaid     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_paid"`

	Status   string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	PaidDate *time.Time `gorm:"type:date" json:"paid_date,omitempty"`
}

// Payment represents the loan_payments table. Rows are immutable once created.
type Payment struct {
	ID     uint64 `gorm:"column:payment_id;primaryKey;autoIncrement" json:"payment_id"`
	LoanID uint64 `gorm:"not null;index:ix_loan_payments_loan_date" json:"loan_id"`

	MemberID  uint64 `gorm:"not null;index" json:"member_id"`
	GroupID   uint64 `gorm:"not null" json:"group_id"`
	OfficerID uint64 `json:"officer_id"`

	PaymentDate    time.Time       `gorm:"not null;index:ix_loan_payments_loan_date" json:"payment_date"`
	AmountReceived decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_received"`
	PaymentMode    string          `gorm:"type:varchar(20);not null;default:'CASH'" json:"payment_mode"`
	ReceiptNo      string          `gorm:"type:varchar(50)" json:"receipt_no"`
	Remarks        string          `gorm:"type:text" json:"remarks"`

	Purpose  string  `gorm:"column:payment_purpose;type:varchar(20);not null;default:'INSTALLMENT';index" json:"payment_purpose"`
	ChargeID *uint64 `gorm:"index" json:"charge_id,omitempty"`

	CreatedOn time.Time `gorm:"autoCreateTime" json:"created_on"`

	Allocations []PaymentAllocation `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"allocations,omitempty"`
}

// PaymentAllocation represents the loan_payment_allocations table.
type PaymentAllocation struct {
	ID        uint64 `gorm:"column:allocation_id;primaryKey;autoIncrement" json:"allocation_id"`
	PaymentID uint64 `gorm:"not null;index;uniqueIndex:uq_payment_installment_alloc" json:"payment_id"`

	InstallmentID *uint64 `gorm:"index;uniqueIndex:uq_payment_installment_alloc" json:"installment_id,omitempty"`

	PrincipalAlloc decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"principal_alloc"`
	InterestAlloc  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"interest_alloc"`
}

// Charge represents the loan_charges table.
type Charge struct {
	ID     uint64 `gorm:"column:charge_id;primaryKey;autoIncrement" json:"charge_id"`
	LoanID uint64 `gorm:"not null;index" json:"loan_id"`

	Type       string    `gorm:"column:charge_type;type:varchar(30);not null" json:"charge_type"`
	ChargeDate time.Time `gorm:"not null" json:"charge_date"`

	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	WaivedAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"waived_amount"`
	CollectedAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"collected_amount"`
	IsCollected     bool            `gorm:"not null;default:false" json:"is_collected"`

	PaymentMode string     `gorm:"type:varchar(20)" json:"payment_mode"`
	ReceiptNo   string     `gorm:"type:varchar(50)" json:"receipt_no"`
	CollectedOn *time.Time `json:"collected_on,omitempty"`
	Remarks     string     `gorm:"type:text" json:"remarks"`

	CreatedOn time.Time `gorm:"autoCreateTime" json:"created_on"`
}

// LedgerEntry represents the loan_ledger table. Append-only: rows are never
// updated or deleted, corrections are new entries.
type LedgerEntry struct {
	ID     uint64 `gorm:"column:ledger_id;primaryKey;autoIncrement" json:"ledger_id"`
	LoanID uint64 `gorm:"not null;index:ix_loan_ledger_loan_date;index:ix_loan_ledger_loan_type" json:"loan_id"`

	TxnDate time.Time `gorm:"not null;index:ix_loan_ledger_loan_date" json:"txn_date"`
	TxnType string    `gorm:"type:varchar(30);not null;index:ix_loan_ledger_loan_type" json:"txn_type"`

	RefTable string  `gorm:"type:varchar(50)" json:"ref_table"`
	RefID    *uint64 `json:"ref_id,omitempty"`

	Debit  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"debit"`
	Credit decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"credit"`

	PrincipalComponent decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"principal_component"`
	InterestComponent  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"interest_component"`

	BalanceOutstanding decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_outstanding"`

	Narration string    `gorm:"type:text" json:"narration"`
	CreatedOn time.Time `gorm:"autoCreateTime" json:"created_on"`
}

func (Loan) TableName() string              { return "loans" }
func (Installment) TableName() string       { return "loan_installments" }
func (Payment) TableName() string           { return "loan_payments" }
func (PaymentAllocation) TableName() string { return "loan_payment_allocations" }
func (Charge) TableName() string            { return "loan_charges" }
func (LedgerEntry) TableName() string       { return "loan_ledger" }
func (SystemSetting) TableName() string     { return "system_settings" }
func (Member) TableName() string            { return "members" }

// AutoMigrate creates or migrates every table the engine owns or reads.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Member{},
		&SystemSetting{},
		&Loan{},
		&Installment{},
		&Payment{},
		&PaymentAllocation{},
		&Charge{},
		&LedgerEntry{},
	)
}
