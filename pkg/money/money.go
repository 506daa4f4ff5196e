package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// Zero is the canonical two-decimal zero amount.
	Zero = decimal.Zero.Round(2)
)

// Round quantizes any amount to 2 fractional digits, rounding half up.
// Every monetary value must pass through here before it is stored or compared.
func Round(x decimal.Decimal) decimal.Decimal {
	return x.Round(2)
}

// FlatInterest computes tenure-flat interest: a one-time percentage of the
// principal, independent of loan duration. Duration only affects how the
// interest is spread across periods.
func FlatInterest(principal, ratePercent decimal.Decimal) decimal.Decimal {
	return Round(principal.Mul(ratePercent).Div(hundred))
}

// Schedule is the per-period breakdown of a weekly amortization plan.
//
// The even division of principal and interest across periods can leave a
// few cents unassigned; that remainder is pushed onto the final period so
// the schedule always adds up to exactly principal + interest.
type Schedule struct {
	PrincipalPerWeek decimal.Decimal
	InterestPerWeek  decimal.Decimal
	BaseInstallment  decimal.Decimal

	// Final-period amounts including the rounding remainder.
	LastPrincipal decimal.Decimal
	LastInterest  decimal.Decimal

	// FirstWeekExtra is an optional fee load added to period 1's interest
	// bucket. The current configuration tracks fees as separate charges and
	// passes zero here.
	FirstWeekExtra decimal.Decimal
}

// WeeklySchedule splits principal and total flat interest evenly across
// durationWeeks periods.
func WeeklySchedule(principal, interestTotal decimal.Decimal, durationWeeks int, feesTotal decimal.Decimal) (Schedule, error) {
	if durationWeeks <= 0 {
		return Schedule{}, fmt.Errorf("duration weeks must be > 0, got %d", durationWeeks)
	}

	principal = Round(principal)
	interestTotal = Round(interestTotal)
	feesTotal = Round(feesTotal)

	weeks := decimal.NewFromInt(int64(durationWeeks))
	priorWeeks := decimal.NewFromInt(int64(durationWeeks - 1))

	principalWeek := Round(principal.Div(weeks))
	interestWeek := Round(interestTotal.Div(weeks))

	return Schedule{
		PrincipalPerWeek: principalWeek,
		InterestPerWeek:  interestWeek,
		BaseInstallment:  Round(principalWeek.Add(interestWeek)),
		LastPrincipal:    Round(principal.Sub(principalWeek.Mul(priorWeeks))),
		LastInterest:     Round(interestTotal.Sub(interestWeek.Mul(priorWeeks))),
		FirstWeekExtra:   feesTotal,
	}, nil
}
