// Package allocation implements the payment waterfall: money is consumed by
// open installments in ascending sequence order, interest before principal
// within each installment, and whatever survives the waterfall is reported
// back as a remainder for the caller to bank as advance balance. The package
// is pure; it mutates the installments it is given and never touches storage.
package allocation

import (
	"time"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/pkg/money"
	"github.com/shopspring/decimal"
)

// Entry is one installment's share of an allocation pass.
type Entry struct {
	InstallmentID uint64
	InstallmentNo int
	Principal     decimal.Decimal
	Interest      decimal.Decimal
	Settled       bool
}

// Result is the outcome of one waterfall pass.
//
// AppliedTotal + Remaining always equals the input amount; nothing is ever
// silently discarded.
type Result struct {
	Entries      []Entry
	AppliedTotal decimal.Decimal
	Remaining    decimal.Decimal
	SettledCount int
}

// Apply runs the waterfall over the given installments, which must be in
// ascending sequence order. Installments already PAID are skipped; open rows
// whose paid fields already cover the dues are settled in passing. Each
// touched installment has its paid fields and status updated in place; a
// fully covered installment becomes PAID with paidDate set to asOf, a
// partially covered one returns to PENDING.
func Apply(installments []*domain.Installment, amount decimal.Decimal, asOf time.Time) Result {
	remaining := money.Round(amount)

	result := Result{
		Entries:      make([]Entry, 0, len(installments)),
		AppliedTotal: money.Zero,
		Remaining:    remaining,
	}

	for _, inst := range installments {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		if inst.Status == domain.InstallmentPaid {
			continue
		}

		dueLeft := inst.DueLeft()
		if dueLeft.LessThanOrEqual(decimal.Zero) {
			// Already covered by earlier money; settle the row in passing.
			inst.Status = domain.InstallmentPaid
			paid := asOf
			inst.PaidDate = &paid
			continue
		}

		applied := decimal.Min(remaining, dueLeft)

		// Interest first. The interest still owed caps the interest share;
		// the rest reduces principal.
		interestLeft := inst.InterestDue.Sub(inst.InterestPaid)
		if interestLeft.LessThan(decimal.Zero) {
			interestLeft = money.Zero
		}

		interestShare := decimal.Min(applied, interestLeft)
		principalShare := money.Round(applied.Sub(interestShare))

		// The principal share can never exceed what the installment still
		// owes on principal.
		principalLeft := inst.PrincipalDue.Sub(inst.PrincipalPaid)
		if principalShare.GreaterThan(principalLeft) {
			principalShare = principalLeft
		}
		applied = money.Round(interestShare.Add(principalShare))

		inst.InterestPaid = money.Round(inst.InterestPaid.Add(interestShare))
		inst.PrincipalPaid = money.Round(inst.PrincipalPaid.Add(principalShare))
		inst.TotalPaid = money.Round(inst.TotalPaid.Add(applied))

		settled := inst.TotalPaid.GreaterThanOrEqual(inst.TotalDue)
		if settled {
			inst.Status = domain.InstallmentPaid
			paid := asOf
			inst.PaidDate = &paid
			result.SettledCount++
		} else {
			inst.Status = domain.InstallmentPending
		}

		result.Entries = append(result.Entries, Entry{
			InstallmentID: inst.ID,
			InstallmentNo: inst.No,
			Principal:     principalShare,
			Interest:      interestShare,
			Settled:       settled,
		})

		remaining = money.Round(remaining.Sub(applied))
		result.AppliedTotal = money.Round(result.AppliedTotal.Add(applied))
	}

	result.Remaining = remaining

	return result
}
