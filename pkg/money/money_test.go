package money_test

import (
	"testing"

	"github.com/mitrakarya/lending/pkg/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound_HalfUp(t *testing.T) {
	assert.True(t, dec("2.35").Equal(money.Round(dec("2.345"))))
	assert.True(t, dec("2.34").Equal(money.Round(dec("2.344"))))
	assert.True(t, dec("0.00").Equal(money.Round(dec("0.004"))))
	assert.True(t, dec("10.00").Equal(money.Round(dec("9.995"))))
}

func TestFlatInterest(t *testing.T) {
	// 10% of 10000, regardless of how many weeks the loan runs.
	interest := money.FlatInterest(dec("10000"), dec("10"))
	assert.True(t, dec("1000.00").Equal(interest))

	interest = money.FlatInterest(dec("7500"), dec("12.5"))
	assert.True(t, dec("937.50").Equal(interest))
}

func TestWeeklySchedule_EvenSplit(t *testing.T) {
	sched, err := money.WeeklySchedule(dec("10000"), dec("1000"), 10, money.Zero)

	assert.NoError(t, err)
	assert.True(t, dec("1000.00").Equal(sched.PrincipalPerWeek))
	assert.True(t, dec("100.00").Equal(sched.InterestPerWeek))
	assert.True(t, dec("1100.00").Equal(sched.BaseInstallment))
	assert.True(t, dec("1000.00").Equal(sched.LastPrincipal))
	assert.True(t, dec("100.00").Equal(sched.LastInterest))
}

func TestWeeklySchedule_RemainderOnLastPeriod(t *testing.T) {
	sched, err := money.WeeklySchedule(dec("1000"), dec("100"), 3, money.Zero)
	assert.NoError(t, err)

	assert.True(t, dec("333.33").Equal(sched.PrincipalPerWeek))
	assert.True(t, dec("33.33").Equal(sched.InterestPerWeek))
	assert.True(t, dec("333.34").Equal(sched.LastPrincipal))
	assert.True(t, dec("33.34").Equal(sched.LastInterest))

	// The schedule must add up to exactly principal + interest.
	totalPrincipal := sched.PrincipalPerWeek.Mul(decimal.NewFromInt(2)).Add(sched.LastPrincipal)
	totalInterest := sched.InterestPerWeek.Mul(decimal.NewFromInt(2)).Add(sched.LastInterest)
	assert.True(t, dec("1000.00").Equal(totalPrincipal))
	assert.True(t, dec("100.00").Equal(totalInterest))
}

func TestWeeklySchedule_SingleWeek(t *testing.T) {
	sched, err := money.WeeklySchedule(dec("500"), dec("50"), 1, money.Zero)

	assert.NoError(t, err)
	assert.True(t, dec("500.00").Equal(sched.LastPrincipal))
	assert.True(t, dec("50.00").Equal(sched.LastInterest))
}

func TestWeeklySchedule_InvalidDuration(t *testing.T) {
	_, err := money.WeeklySchedule(dec("1000"), dec("100"), 0, money.Zero)
	assert.Error(t, err)

	_, err = money.WeeklySchedule(dec("1000"), dec("100"), -4, money.Zero)
	assert.Error(t, err)
}
