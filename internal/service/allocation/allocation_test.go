package allocation_test

import (
	"testing"
	"time"

	"github.com/mitrakarya/lending/internal/domain"
	"github.com/mitrakarya/lending/internal/service/allocation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// openInstallments builds n unpaid weekly installments with the given
// per-period principal and interest.
func openInstallments(n int, principal, interest string) []*domain.Installment {
	installments := make([]*domain.Installment, n)
	for i := range n {
		installments[i] = &domain.Installment{
			ID:            uint64(i + 1),
			No:            i + 1,
			PrincipalDue:  dec(principal),
			InterestDue:   dec(interest),
			TotalDue:      dec(principal).Add(dec(interest)),
			PrincipalPaid: decimal.Zero,
			InterestPaid:  decimal.Zero,
			TotalPaid:     decimal.Zero,
			Status:        domain.InstallmentPending,
		}
	}
	return installments
}

func TestApply_InterestFirstWithinInstallment(t *testing.T) {
	installments := openInstallments(1, "1000", "100")

	result := allocation.Apply(installments, dec("550"), time.Now())

	assert.Len(t, result.Entries, 1)
	assert.True(t, dec("100.00").Equal(result.Entries[0].Interest))
	assert.True(t, dec("450.00").Equal(result.Entries[0].Principal))
	assert.False(t, result.Entries[0].Settled)

	assert.True(t, dec("550.00").Equal(installments[0].TotalPaid))
	assert.Equal(t, domain.InstallmentPending, installments[0].Status)
	assert.Nil(t, installments[0].PaidDate)

	assert.True(t, dec("550.00").Equal(result.AppliedTotal))
	assert.True(t, result.Remaining.IsZero())
}

func TestApply_SettlesInOrderAndBanksRemainder(t *testing.T) {
	installments := openInstallments(4, "1000", "100")
	asOf := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	result := allocation.Apply(installments, dec("5000"), asOf)

	assert.Equal(t, 4, result.SettledCount)
	assert.True(t, dec("4400.00").Equal(result.AppliedTotal))
	assert.True(t, dec("600.00").Equal(result.Remaining))

	for _, inst := range installments {
		assert.Equal(t, domain.InstallmentPaid, inst.Status)
		assert.NotNil(t, inst.PaidDate)
		assert.True(t, inst.PaidDate.Equal(asOf))
		assert.True(t, inst.TotalDue.Equal(inst.TotalPaid))
	}
}

func TestApply_SpillsIntoNextInstallment(t *testing.T) {
	installments := openInstallments(3, "1000", "100")

	result := allocation.Apply(installments, dec("1500"), time.Now())

	// First installment fully settled, second takes the rest interest-first.
	assert.Equal(t, 1, result.SettledCount)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, 1, result.Entries[0].InstallmentNo)
	assert.Equal(t, 2, result.Entries[1].InstallmentNo)
	assert.True(t, dec("100.00").Equal(result.Entries[1].Interest))
	assert.True(t, dec("300.00").Equal(result.Entries[1].Principal))

	assert.Equal(t, domain.InstallmentPending, installments[1].Status)
	assert.True(t, installments[2].TotalPaid.IsZero())
}

func TestApply_PartialResetsOverdueToPending(t *testing.T) {
	installments := openInstallments(1, "1000", "100")
	installments[0].Status = domain.InstallmentOverdue

	result := allocation.Apply(installments, dec("550"), time.Now())

	assert.Len(t, result.Entries, 1)
	assert.False(t, result.Entries[0].Settled)
	assert.Equal(t, domain.InstallmentPending, installments[0].Status)
	assert.Nil(t, installments[0].PaidDate)
}

func TestApply_SettlesStaleCoveredRows(t *testing.T) {
	// A row whose paid fields already cover its dues is settled in passing;
	// the money flows to the next open installment.
	installments := openInstallments(2, "1000", "100")
	installments[0].Status = domain.InstallmentOverdue
	installments[0].PrincipalPaid = dec("1000")
	installments[0].InterestPaid = dec("100")
	installments[0].TotalPaid = dec("1100")
	asOf := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)

	result := allocation.Apply(installments, dec("500"), asOf)

	assert.Equal(t, domain.InstallmentPaid, installments[0].Status)
	requirePaidDate(t, installments[0].PaidDate, asOf)

	assert.Len(t, result.Entries, 1)
	assert.Equal(t, 2, result.Entries[0].InstallmentNo)
	assert.True(t, dec("500.00").Equal(result.AppliedTotal))
}

func requirePaidDate(t *testing.T, paidDate *time.Time, want time.Time) {
	t.Helper()
	if assert.NotNil(t, paidDate) {
		assert.True(t, paidDate.Equal(want))
	}
}

func TestApply_SkipsPaidInstallments(t *testing.T) {
	installments := openInstallments(2, "1000", "100")
	installments[0].Status = domain.InstallmentPaid
	installments[0].TotalPaid = dec("1100")

	result := allocation.Apply(installments, dec("500"), time.Now())

	assert.Len(t, result.Entries, 1)
	assert.Equal(t, 2, result.Entries[0].InstallmentNo)
}

func TestApply_ClampsStaleInterestPaid(t *testing.T) {
	// Interest recorded as overpaid must not produce a negative share.
	installments := openInstallments(1, "1000", "100")
	installments[0].InterestPaid = dec("150")
	installments[0].TotalPaid = dec("150")

	result := allocation.Apply(installments, dec("400"), time.Now())

	assert.Len(t, result.Entries, 1)
	assert.True(t, result.Entries[0].Interest.IsZero())
	assert.True(t, dec("400.00").Equal(result.Entries[0].Principal))
}

func TestApply_ConservesAmount(t *testing.T) {
	amounts := []string{"0.01", "549.99", "1100", "3456.78", "9999.99"}

	for _, raw := range amounts {
		installments := openInstallments(5, "333.33", "41.67")
		amount := dec(raw)

		result := allocation.Apply(installments, amount, time.Now())

		assert.True(t, amount.Equal(result.AppliedTotal.Add(result.Remaining)),
			"amount %s: applied %s + remaining %s", raw, result.AppliedTotal, result.Remaining)
	}
}

func TestApply_ZeroAmount(t *testing.T) {
	installments := openInstallments(2, "1000", "100")

	result := allocation.Apply(installments, decimal.Zero, time.Now())

	assert.Empty(t, result.Entries)
	assert.True(t, result.AppliedTotal.IsZero())
	assert.True(t, result.Remaining.IsZero())
}

func TestApply_Deterministic(t *testing.T) {
	first := openInstallments(4, "250", "25")
	second := openInstallments(4, "250", "25")

	a := allocation.Apply(first, dec("700"), time.Now())
	b := allocation.Apply(second, dec("700"), time.Now())

	assert.Equal(t, len(a.Entries), len(b.Entries))
	for i := range a.Entries {
		assert.True(t, a.Entries[i].Principal.Equal(b.Entries[i].Principal))
		assert.True(t, a.Entries[i].Interest.Equal(b.Entries[i].Interest))
	}
}
