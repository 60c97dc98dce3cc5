package journal

import (
	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

// Tolerance is the maximum accepted difference between total debit and total
// credit of an entry. Anything beyond it is an imbalance.
var Tolerance = decimal.NewFromFloat(0.01)

// BalanceReport is the structured result of a balance check: both totals and
// their difference, so an operator can see why an entry fails, not just that
// it fails.
type BalanceReport struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
	Balanced    bool
}

// Balance sums the posting lines and checks the double-entry invariant.
func Balance(lines []model.EntryLine) BalanceReport {
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, line := range lines {
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}
	return report(totalDebit.Round(2), totalCredit.Round(2))
}

// CheckEntry checks the balance invariant on a persisted entry, preferring
// its posting lines and falling back to the stored totals when the lines
// were not loaded.
func CheckEntry(entry *model.JournalEntry) BalanceReport {
	if len(entry.Lines) > 0 {
		return Balance(entry.Lines)
	}
	return report(entry.TotalDebit, entry.TotalCredit)
}

func report(totalDebit, totalCredit decimal.Decimal) BalanceReport {
	diff := totalDebit.Sub(totalCredit).Abs()
	return BalanceReport{
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Difference:  diff,
		Balanced:    diff.LessThanOrEqual(Tolerance),
	}
}
