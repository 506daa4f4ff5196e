package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/mitrakarya/lending/internal/dto"
	"github.com/mitrakarya/lending/internal/model"
	"github.com/mitrakarya/lending/internal/repository"
	"github.com/mitrakarya/lending/internal/service"
	loansrv "github.com/mitrakarya/lending/internal/service/loan"
	"github.com/mitrakarya/lending/pkg/common"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/metric"
	noop_metric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	noop_trace "go.opentelemetry.io/otel/trace/noop"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type LoanServiceTestSuite struct {
	suite.Suite
	db  *gorm.DB
	ctx context.Context

	loanService           service.LoanService
	loanRepository        repository.LoanRepository
	installmentRepository repository.InstallmentRepository
	paymentRepository     repository.PaymentRepository
	chargeRepository      repository.ChargeRepository
	ledgerRepository      repository.LedgerRepository
	memberRepository      repository.MemberRepository
	settingRepository     repository.SettingRepository

	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger
}

func (suite *LoanServiceTestSuite) SetupSuite() {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/?charset=utf8mb4&parseTime=True&loc=Local",
		common.GetEnv("MYSQL_USER", "root"),
		common.GetEnv("MYSQL_PASSWORD", "rootpassword123"),
		common.GetEnv("MYSQL_HOST", "localhost"),
		common.GetEnv("MYSQL_PORT", "3306"),
	)

	db, err := sql.Open("mysql", dsn)
	suite.Require().NoError(err)

	testDbName := "lending_test"

	_, err = db.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", testDbName))
	suite.Require().NoError(err)

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", testDbName))
	suite.Require().NoError(err)

	db.Close()

	testDSN := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		common.GetEnv("MYSQL_USER", "root"),
		common.GetEnv("MYSQL_PASSWORD", "rootpassword123"),
		common.GetEnv("MYSQL_HOST", "localhost"),
		common.GetEnv("MYSQL_PORT", "3306"),
		testDbName,
	)

	gormDB, err := gorm.Open(mysql.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)

	suite.db = gormDB
	suite.ctx = context.Background()

	suite.log = zap.NewNop()
	noopTracerProvider := noop_trace.NewTracerProvider()
	suite.tracer = noopTracerProvider.Tracer("test-loan-service-tracer")
	noopMeterProvider := noop_metric.NewMeterProvider()
	suite.meter = noopMeterProvider.Meter("test-loan-service-meter")

	err = model.AutoMigrate(suite.db)
	suite.Require().NoError(err)

	suite.loanRepository = repository.NewLoanRepository(suite.db, suite.meter, suite.tracer, suite.log)
	suite.installmentRepository = repository.NewInstallmentRepository(suite.db, suite.meter, suite.tracer, suite.log)
	suite.paymentRepository = repository.NewPaymentRepository(suite.db, suite.meter, suite.tracer, suite.log)
	suite.chargeRepository = repository.NewChargeRepository(suite.db, suite.meter, suite.tracer, suite.log)
	suite.ledgerRepository = repository.NewLedgerRepository(suite.db, suite.meter, suite.tracer, suite.log)
	suite.memberRepository = repository.NewMemberRepository(suite.db, suite.meter, suite.tracer, suite.log)
	suite.settingRepository = repository.NewSettingRepository(suite.db, suite.meter, suite.tracer, suite.log)

	suite.loanService = loansrv.NewLoanService(
		suite.db,
		suite.loanRepository,
		suite.installmentRepository,
		suite.paymentRepository,
		suite.chargeRepository,
		suite.ledgerRepository,
		suite.memberRepository,
		suite.settingRepository,
		suite.meter,
		suite.tracer,
		suite.log,
	)
}

func (suite *LoanServiceTestSuite) TearDownSuite() {
	if suite.db != nil {
		sqlDB, err := suite.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func (suite *LoanServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM loan_payment_allocations")
	suite.db.Exec("DELETE FROM loan_payments")
	suite.db.Exec("DELETE FROM loan_ledger")
	suite.db.Exec("DELETE FROM loan_charges")
	suite.db.Exec("DELETE FROM loan_installments")
	suite.db.Exec("DELETE FROM loans")
	suite.db.Exec("DELETE FROM members")
	suite.db.Exec("DELETE FROM system_settings")

	// Pricing: 10% flat interest, fees off so disbursement creates no charges.
	settings := []model.SystemSetting{
		{Key: "INTEREST_RATE", Value: "10"},
		{Key: "MIN_WEEKS_BEFORE_CLOSURE", Value: "4"},
		{Key: "INSURANCE_FEES", Value: "0"},
		{Key: "PROCESSING_FEES", Value: "0"},
		{Key: "BOOK_PRICE", Value: "0"},
	}
	err := suite.db.Create(&settings).Error
	suite.Require().NoError(err)
}

func (suite *LoanServiceTestSuite) seedMember() *model.Member {
	member := &model.Member{
		FullName:  "Member1",
		GroupID:   11,
		OfficerID: 21,
		BranchID:  31,
		RegionID:  41,
		IsActive:  true,
	}
	err := suite.db.Create(member).Error
	suite.Require().NoError(err)

	return member
}

func (suite *LoanServiceTestSuite) disburse(memberID uint64, principal string, weeks int) *dto.LoanResponse {
	loan, err := suite.loanService.Disburse(suite.ctx, dto.DisburseLoan{
		MemberID:        memberID,
		PrincipalAmount: dec(principal),
		DisburseDate:    "2025-01-06",
		FirstDueDate:    "2025-01-13",
		DurationWeeks:   weeks,
	})
	suite.Require().NoError(err)
	suite.Require().NotNil(loan)

	return loan
}

// --- Disbursement --- //

func (suite *LoanServiceTestSuite) TestDisburse_Success() {
	member := suite.seedMember()

	loan := suite.disburse(member.ID, "10000", 10)

	assert.Equal(suite.T(), "DISBURSED", loan.Status)
	assert.Equal(suite.T(), member.ID, loan.MemberID)
	assert.Equal(suite.T(), "Member1", loan.MemberName)
	assert.True(suite.T(), dec("1000.00").Equal(loan.InterestTotal))
	assert.True(suite.T(), dec("11000.00").Equal(loan.TotalOutstanding))
	assert.True(suite.T(), dec("1100.00").Equal(loan.InstallmentAmount))
	assert.NotEmpty(suite.T(), loan.AccountNo)

	schedule, err := suite.loanService.GetSchedule(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), schedule.Installments, 10)
	assert.Equal(suite.T(), "2025-01-13", schedule.Installments[0].DueDate)
	assert.Equal(suite.T(), "2025-03-17", schedule.Installments[9].DueDate)

	total := decimal.Zero
	for _, row := range schedule.Installments {
		assert.Equal(suite.T(), "PENDING", row.Status)
		total = total.Add(row.TotalDue)
	}
	assert.True(suite.T(), dec("11000.00").Equal(total))

	statement, err := suite.loanService.GetStatement(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), statement.Entries, 1)
	assert.Equal(suite.T(), "DISBURSEMENT", statement.Entries[0].TxnType)
	assert.True(suite.T(), dec("11000.00").Equal(statement.Entries[0].Debit))
	assert.True(suite.T(), dec("11000.00").Equal(statement.Entries[0].BalanceOutstanding))
	assert.True(suite.T(), dec("11000.00").Equal(statement.ClosingBalance))
}

func (suite *LoanServiceTestSuite) TestDisburse_ScheduleRemainderOnLastInstallment() {
	member := suite.seedMember()

	loan := suite.disburse(member.ID, "1000", 3)

	schedule, err := suite.loanService.GetSchedule(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), schedule.Installments, 3)

	assert.True(suite.T(), dec("333.33").Equal(schedule.Installments[0].PrincipalDue))
	assert.True(suite.T(), dec("333.34").Equal(schedule.Installments[2].PrincipalDue))
	assert.True(suite.T(), dec("33.34").Equal(schedule.Installments[2].InterestDue))

	total := decimal.Zero
	for _, row := range schedule.Installments {
		total = total.Add(row.TotalDue)
	}
	assert.True(suite.T(), dec("1100.00").Equal(total))
}

func (suite *LoanServiceTestSuite) TestDisburse_Failure_MemberNotFound() {
	result, err := suite.loanService.Disburse(suite.ctx, dto.DisburseLoan{
		MemberID:        999,
		PrincipalAmount: dec("10000"),
		DisburseDate:    "2025-01-06",
		DurationWeeks:   10,
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrMemberNotFound)
}

func (suite *LoanServiceTestSuite) TestDisburse_Failure_MemberHasActiveLoan() {
	member := suite.seedMember()
	suite.disburse(member.ID, "10000", 10)

	result, err := suite.loanService.Disburse(suite.ctx, dto.DisburseLoan{
		MemberID:        member.ID,
		PrincipalAmount: dec("5000"),
		DisburseDate:    "2025-02-03",
		DurationWeeks:   5,
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrMemberHasActiveLoan)
}

func (suite *LoanServiceTestSuite) TestDisburse_Failure_MemberHasInactiveLoan() {
	// A deactivated loan still holds its balance and can be resumed, so it
	// blocks a new disbursement just like an active one.
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	_, err := suite.loanService.Deactivate(suite.ctx, loan.LoanID, dto.ChangeStatus{
		EffectiveDate: "2025-01-20",
	})
	suite.Require().NoError(err)

	result, err := suite.loanService.Disburse(suite.ctx, dto.DisburseLoan{
		MemberID:        member.ID,
		PrincipalAmount: dec("5000"),
		DisburseDate:    "2025-02-03",
		DurationWeeks:   5,
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrMemberHasActiveLoan)
}

// --- Payments --- //

func (suite *LoanServiceTestSuite) TestRecordPayment_PartialTakesInterestFirst() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	result, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("550"),
		PaymentDate: "2025-01-13",
	})

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), dec("550.00").Equal(result.AppliedTotal))
	assert.True(suite.T(), result.AdvanceAdded.IsZero())
	assert.Equal(suite.T(), 0, result.InstallmentsSettled)
	assert.Equal(suite.T(), "ACTIVE", result.LoanStatus)
	assert.True(suite.T(), dec("10450.00").Equal(result.BalanceOutstanding))

	suite.Require().Len(result.Allocations, 1)
	assert.True(suite.T(), dec("100.00").Equal(result.Allocations[0].Interest))
	assert.True(suite.T(), dec("450.00").Equal(result.Allocations[0].Principal))

	schedule, err := suite.loanService.GetSchedule(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "PENDING", schedule.Installments[0].Status)
	assert.True(suite.T(), dec("550.00").Equal(schedule.Installments[0].TotalPaid))
}

func (suite *LoanServiceTestSuite) TestRecordPayment_OverpaymentBanksAdvanceAndCloses() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "4000", 4)

	result, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("5000"),
		PaymentDate: "2025-02-10",
	})

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), dec("4400.00").Equal(result.AppliedTotal))
	assert.True(suite.T(), dec("600.00").Equal(result.AdvanceAdded))
	assert.Equal(suite.T(), 4, result.InstallmentsSettled)
	assert.True(suite.T(), dec("600.00").Equal(result.AdvanceBalance))
	assert.True(suite.T(), result.BalanceOutstanding.IsZero())
	assert.Equal(suite.T(), "CLOSED", result.LoanStatus)

	statement, err := suite.loanService.GetStatement(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	suite.Require().Len(statement.Entries, 3)

	payment := statement.Entries[1]
	assert.Equal(suite.T(), "PAYMENT", payment.TxnType)
	assert.True(suite.T(), dec("4400.00").Equal(payment.Credit))
	assert.True(suite.T(), payment.BalanceOutstanding.IsZero())

	advance := statement.Entries[2]
	assert.Equal(suite.T(), "ADVANCE_ADD", advance.TxnType)
	assert.True(suite.T(), dec("600.00").Equal(advance.Credit))
	assert.True(suite.T(), advance.BalanceOutstanding.Equal(payment.BalanceOutstanding))
}

func (suite *LoanServiceTestSuite) TestRecordPayment_Failure_LoanNotFound() {
	result, err := suite.loanService.RecordPayment(suite.ctx, 999, dto.RecordPayment{
		Amount:      dec("100"),
		PaymentDate: "2025-01-13",
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrLoanNotFound)
}

func (suite *LoanServiceTestSuite) TestRecordPayment_Failure_ClosedLoan() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "4000", 4)

	_, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("4400"),
		PaymentDate: "2025-02-10",
	})
	suite.Require().NoError(err)

	result, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("100"),
		PaymentDate: "2025-02-17",
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidLoanState)
}

func (suite *LoanServiceTestSuite) TestRecordPayment_Failure_NonPositiveAmount() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	result, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("0"),
		PaymentDate: "2025-01-13",
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidAmount)
}

// --- Advance --- //

func (suite *LoanServiceTestSuite) TestApplyAdvance_ConsumesBankedBalance() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	err := suite.db.Model(&model.Loan{}).
		Where("loan_id = ?", loan.LoanID).
		Update("advance_balance", dec("1500")).Error
	suite.Require().NoError(err)

	result, err := suite.loanService.ApplyAdvance(suite.ctx, loan.LoanID, dto.ApplyAdvance{
		ValueDate: "2025-01-20",
	})

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), dec("1500.00").Equal(result.AppliedTotal))
	assert.True(suite.T(), result.AdvanceBalance.IsZero())
	assert.Equal(suite.T(), 1, result.InstallmentsSettled)
	assert.True(suite.T(), dec("9500.00").Equal(result.BalanceOutstanding))

	schedule, err := suite.loanService.GetSchedule(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "PAID", schedule.Installments[0].Status)
	assert.True(suite.T(), dec("400.00").Equal(schedule.Installments[1].TotalPaid))

	statement, err := suite.loanService.GetStatement(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	last := statement.Entries[len(statement.Entries)-1]
	assert.Equal(suite.T(), "ADVANCE_APPLY", last.TxnType)
	assert.True(suite.T(), dec("1500.00").Equal(last.Credit))
}

func (suite *LoanServiceTestSuite) TestApplyAdvance_NoopWithoutBalance() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	result, err := suite.loanService.ApplyAdvance(suite.ctx, loan.LoanID, dto.ApplyAdvance{})

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), result.AppliedTotal.IsZero())
	assert.True(suite.T(), dec("11000.00").Equal(result.BalanceOutstanding))

	statement, err := suite.loanService.GetStatement(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), statement.Entries, 1)
}

// --- Charges --- //

func (suite *LoanServiceTestSuite) seedCharge(loanID uint64, amount, waived string) *model.Charge {
	charge := &model.Charge{
		LoanID:          loanID,
		Type:            "OTHER",
		ChargeDate:      time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		Amount:          dec(amount),
		WaivedAmount:    dec(waived),
		CollectedAmount: decimal.Zero,
	}
	err := suite.db.Create(charge).Error
	suite.Require().NoError(err)

	return charge
}

func (suite *LoanServiceTestSuite) TestCollectCharge_WaivedPortionReducesPayable() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)
	charge := suite.seedCharge(loan.LoanID, "100", "20")

	result, err := suite.loanService.CollectCharge(suite.ctx, loan.LoanID, charge.ID, dto.CollectCharge{
		Amount:      dec("80"),
		PaymentDate: "2025-01-20",
	})

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), dec("80.00").Equal(result.Collected))
	assert.True(suite.T(), result.Pending.IsZero())
	assert.True(suite.T(), result.IsCollected)

	// Charge money never moves the loan receivable.
	statement, err := suite.loanService.GetStatement(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	last := statement.Entries[len(statement.Entries)-1]
	assert.Equal(suite.T(), "CHARGE_COLLECTION", last.TxnType)
	assert.True(suite.T(), dec("80.00").Equal(last.Credit))
	assert.True(suite.T(), dec("11000.00").Equal(last.BalanceOutstanding))
	assert.True(suite.T(), dec("11000.00").Equal(statement.ClosingBalance))

	// A second collection against a settled charge is rejected.
	second, err := suite.loanService.CollectCharge(suite.ctx, loan.LoanID, charge.ID, dto.CollectCharge{
		Amount:      dec("10"),
		PaymentDate: "2025-01-27",
	})
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), second)
	assert.ErrorIs(suite.T(), err, common.ErrChargeFullyCollected)
}

func (suite *LoanServiceTestSuite) TestCollectCharge_ZeroAmountCollectsFullPending() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)
	charge := suite.seedCharge(loan.LoanID, "150", "0")

	result, err := suite.loanService.CollectCharge(suite.ctx, loan.LoanID, charge.ID, dto.CollectCharge{
		PaymentDate: "2025-01-20",
	})

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), dec("150.00").Equal(result.Collected))
	assert.True(suite.T(), result.IsCollected)
}

func (suite *LoanServiceTestSuite) TestCollectCharge_Failure_Overpayment() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)
	charge := suite.seedCharge(loan.LoanID, "100", "0")

	result, err := suite.loanService.CollectCharge(suite.ctx, loan.LoanID, charge.ID, dto.CollectCharge{
		Amount:      dec("200"),
		PaymentDate: "2025-01-20",
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrChargeOverpayment)
}

func (suite *LoanServiceTestSuite) TestCollectCharge_Failure_ChargeNotFound() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	result, err := suite.loanService.CollectCharge(suite.ctx, loan.LoanID, 999, dto.CollectCharge{
		Amount:      dec("10"),
		PaymentDate: "2025-01-20",
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrChargeNotFound)
}

// --- Closure --- //

func (suite *LoanServiceTestSuite) TestClose_Failure_OutstandingBalance() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "4000", 4)

	_, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("4250"),
		PaymentDate: "2025-02-05",
	})
	suite.Require().NoError(err)

	result, err := suite.loanService.Close(suite.ctx, loan.LoanID, dto.CloseLoan{
		ClosingDate: "2025-02-10",
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrOutstandingBalance)

	// The final payment clears the balance and the loan closes.
	payment, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("150"),
		PaymentDate: "2025-02-10",
	})
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), payment.BalanceOutstanding.IsZero())
	assert.Equal(suite.T(), "CLOSED", payment.LoanStatus)
}

func (suite *LoanServiceTestSuite) TestClose_Failure_MinTenureNotReached() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "4000", 4)

	result, err := suite.loanService.Close(suite.ctx, loan.LoanID, dto.CloseLoan{
		ClosingDate: "2025-01-20",
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrMinTenureNotReached)
}

func (suite *LoanServiceTestSuite) TestClose_Failure_AlreadyClosed() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "4000", 4)

	_, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("4400"),
		PaymentDate: "2025-02-10",
	})
	suite.Require().NoError(err)

	result, err := suite.loanService.Close(suite.ctx, loan.LoanID, dto.CloseLoan{
		ClosingDate: "2025-02-17",
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidLoanState)
}

// --- Pause / Resume --- //

func (suite *LoanServiceTestSuite) TestPauseResume_ReplayRestoresAllocation() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	_, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("1100"),
		PaymentDate: "2025-01-13",
	})
	suite.Require().NoError(err)

	_, err = suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("550"),
		PaymentDate: "2025-01-20",
	})
	suite.Require().NoError(err)

	pause, err := suite.loanService.Pause(suite.ctx, loan.LoanID, dto.ChangeStatus{
		EffectiveDate: "2025-01-25",
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "PAUSED", pause.Status)

	schedule, err := suite.loanService.GetSchedule(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "PAID", schedule.Installments[0].Status)
	for _, row := range schedule.Installments[1:] {
		assert.Equal(suite.T(), "PAUSED", row.Status)
	}

	resume, err := suite.loanService.Resume(suite.ctx, loan.LoanID, dto.ResumeLoan{
		StartDate: "2025-03-02",
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ACTIVE", resume.Status)
	assert.Equal(suite.T(), 2, resume.ReplayedPayments)

	schedule, err = suite.loanService.GetSchedule(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "PAID", schedule.Installments[0].Status)
	assert.True(suite.T(), dec("550.00").Equal(schedule.Installments[1].TotalPaid))
	assert.Equal(suite.T(), "2025-03-02", schedule.Installments[1].DueDate)
	assert.Equal(suite.T(), "2025-03-09", schedule.Installments[2].DueDate)

	// Ledger markers carry the balance forward untouched.
	statement, err := suite.loanService.GetStatement(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	last := statement.Entries[len(statement.Entries)-1]
	assert.Equal(suite.T(), "LOAN_RESUMED", last.TxnType)
	assert.True(suite.T(), last.Debit.IsZero())
	assert.True(suite.T(), last.Credit.IsZero())
	assert.True(suite.T(), dec("9350.00").Equal(last.BalanceOutstanding))
}

func (suite *LoanServiceTestSuite) TestPauseResume_ReplayIsIdempotent() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	_, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("1100"),
		PaymentDate: "2025-01-13",
	})
	suite.Require().NoError(err)

	_, err = suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("550"),
		PaymentDate: "2025-01-20",
	})
	suite.Require().NoError(err)

	snapshot := func() ([]dto.InstallmentRow, decimal.Decimal) {
		schedule, err := suite.loanService.GetSchedule(suite.ctx, loan.LoanID)
		suite.Require().NoError(err)
		summary, err := suite.loanService.GetSummary(suite.ctx, loan.LoanID)
		suite.Require().NoError(err)
		return schedule.Installments, summary.Loan.AdvanceBalance
	}

	_, err = suite.loanService.Pause(suite.ctx, loan.LoanID, dto.ChangeStatus{EffectiveDate: "2025-01-25"})
	suite.Require().NoError(err)
	_, err = suite.loanService.Resume(suite.ctx, loan.LoanID, dto.ResumeLoan{StartDate: "2025-03-02"})
	suite.Require().NoError(err)

	firstRows, firstAdvance := snapshot()

	_, err = suite.loanService.Pause(suite.ctx, loan.LoanID, dto.ChangeStatus{EffectiveDate: "2025-03-05"})
	suite.Require().NoError(err)
	_, err = suite.loanService.Resume(suite.ctx, loan.LoanID, dto.ResumeLoan{StartDate: "2025-03-02"})
	suite.Require().NoError(err)

	secondRows, secondAdvance := snapshot()

	suite.Require().Equal(len(firstRows), len(secondRows))
	for i := range firstRows {
		assert.Equal(suite.T(), firstRows[i].Status, secondRows[i].Status)
		assert.True(suite.T(), firstRows[i].TotalPaid.Equal(secondRows[i].TotalPaid),
			"installment %d: %s vs %s", i+1, firstRows[i].TotalPaid, secondRows[i].TotalPaid)
		assert.Equal(suite.T(), firstRows[i].DueDate, secondRows[i].DueDate)
	}
	assert.True(suite.T(), firstAdvance.Equal(secondAdvance))
}

func (suite *LoanServiceTestSuite) TestDeactivateResume() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	deactivated, err := suite.loanService.Deactivate(suite.ctx, loan.LoanID, dto.ChangeStatus{
		EffectiveDate: "2025-01-20",
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "INACTIVE", deactivated.Status)

	resumed, err := suite.loanService.Resume(suite.ctx, loan.LoanID, dto.ResumeLoan{
		StartDate: "2025-02-02",
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ACTIVE", resumed.Status)
}

// --- Terms --- //

func (suite *LoanServiceTestSuite) TestUpdateTerms_RebuildsScheduleBeforePayments() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	principal := dec("5000")
	updated, err := suite.loanService.UpdateTerms(suite.ctx, loan.LoanID, dto.UpdateTerms{
		PrincipalAmount: &principal,
		DurationWeeks:   5,
	})

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), dec("5000.00").Equal(updated.PrincipalAmount))
	assert.True(suite.T(), dec("500.00").Equal(updated.InterestTotal))
	assert.True(suite.T(), dec("5500.00").Equal(updated.TotalOutstanding))
	assert.Equal(suite.T(), 5, updated.DurationWeeks)

	schedule, err := suite.loanService.GetSchedule(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), schedule.Installments, 5)

	statement, err := suite.loanService.GetStatement(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	suite.Require().Len(statement.Entries, 1)
	assert.Equal(suite.T(), "DISBURSEMENT", statement.Entries[0].TxnType)
	assert.True(suite.T(), dec("5500.00").Equal(statement.ClosingBalance))
}

func (suite *LoanServiceTestSuite) TestUpdateTerms_Failure_LockedAfterPayment() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	_, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("1100"),
		PaymentDate: "2025-01-13",
	})
	suite.Require().NoError(err)

	principal := dec("5000")
	result, err := suite.loanService.UpdateTerms(suite.ctx, loan.LoanID, dto.UpdateTerms{
		PrincipalAmount: &principal,
	})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
	assert.ErrorIs(suite.T(), err, common.ErrTermsLocked)
}

// --- Overdue sweep --- //

func (suite *LoanServiceTestSuite) TestMarkOverdue_SweepIsIdempotent() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	result, err := suite.loanService.MarkOverdue(suite.ctx, dto.MarkOverdue{
		AsOf: "2025-02-01",
	})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), result.RowsMarked)

	schedule, err := suite.loanService.GetSchedule(suite.ctx, loan.LoanID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "OVERDUE", schedule.Installments[0].Status)
	assert.Equal(suite.T(), "OVERDUE", schedule.Installments[2].Status)
	assert.Equal(suite.T(), "PENDING", schedule.Installments[3].Status)

	again, err := suite.loanService.MarkOverdue(suite.ctx, dto.MarkOverdue{
		AsOf: "2025-02-01",
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), again.RowsMarked)
}

// --- Reads --- //

func (suite *LoanServiceTestSuite) TestGetSummary() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)
	suite.seedCharge(loan.LoanID, "100", "20")

	_, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("1100"),
		PaymentDate: "2025-01-13",
	})
	suite.Require().NoError(err)

	summary, err := suite.loanService.GetSummary(suite.ctx, loan.LoanID)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Member1", summary.Loan.MemberName)
	assert.True(suite.T(), dec("9900.00").Equal(summary.BalanceOutstanding))
	assert.True(suite.T(), dec("1100.00").Equal(summary.PaymentsReceived))
	assert.Equal(suite.T(), 10, summary.InstallmentsTotal)
	assert.Equal(suite.T(), 1, summary.InstallmentsPaid)
	suite.Require().NotNil(summary.NextDue)
	assert.Equal(suite.T(), 2, summary.NextDue.No)
	assert.True(suite.T(), dec("100.00").Equal(summary.ChargesTotal))
	assert.True(suite.T(), dec("20.00").Equal(summary.ChargesWaived))
	assert.True(suite.T(), dec("80.00").Equal(summary.ChargesPending))
}

func (suite *LoanServiceTestSuite) TestGetLoan() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "10000", 10)

	found, err := suite.loanService.GetLoan(suite.ctx, loan.LoanID)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), loan.LoanID, found.LoanID)
	assert.Equal(suite.T(), loan.AccountNo, found.AccountNo)
	assert.Equal(suite.T(), "Member1", found.MemberName)
	assert.True(suite.T(), dec("11000.00").Equal(found.TotalOutstanding))

	_, err = suite.loanService.GetLoan(suite.ctx, 999999)
	assert.ErrorIs(suite.T(), err, common.ErrLoanNotFound)
}

func (suite *LoanServiceTestSuite) TestListByMember() {
	member := suite.seedMember()
	loan := suite.disburse(member.ID, "4000", 4)

	// Close the first loan, then open a second one.
	_, err := suite.loanService.RecordPayment(suite.ctx, loan.LoanID, dto.RecordPayment{
		Amount:      dec("4400"),
		PaymentDate: "2025-02-10",
	})
	suite.Require().NoError(err)

	second, err := suite.loanService.Disburse(suite.ctx, dto.DisburseLoan{
		MemberID:        member.ID,
		PrincipalAmount: dec("5000"),
		DisburseDate:    "2025-03-03",
		DurationWeeks:   5,
	})
	suite.Require().NoError(err)

	loans, err := suite.loanService.ListByMember(suite.ctx, member.ID)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), loans, 2)

	ids := []uint64{loans[0].LoanID, loans[1].LoanID}
	assert.Contains(suite.T(), ids, loan.LoanID)
	assert.Contains(suite.T(), ids, second.LoanID)
}

func TestLoanServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LoanServiceTestSuite))
}
