package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Journal codes by document family.
const (
	JournalAchats = "ACH"
	JournalVentes = "VTE"
	JournalOD     = "OD"
)

// JournalEntry is the header of one double-entry posting generated from an
// invoice. An invoice has at most one non-validated entry at a time, plus any
// validated historical ones.
type JournalEntry struct {
	ID          string
	InvoiceID   string
	JournalCode string
	EntryDate   time.Time
	Reference   string
	Description string

	IsValidated bool
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal

	ValidatedBy string
	ValidatedAt *time.Time
	CreatedAt   time.Time

	Lines []EntryLine
}

// EntryLine is a single debit or credit posting. Exactly one of Debit and
// Credit is nonzero per line by convention.
type EntryLine struct {
	ID       int64
	EntryID  string
	Position int

	AccountCode  string
	AccountLabel string
	Debit        decimal.Decimal
	Credit       decimal.Decimal

	Counterparty    string
	CounterpartyICE string

	// Back-reference to the invoice line this posting was derived from,
	// zero when the posting is a header-level total (payable, receivable).
	InvoiceLineID int64
}

// WellFormed reports whether the line respects the one-sided convention:
// debit >= 0, credit >= 0, not both nonzero.
func (l *EntryLine) WellFormed() bool {
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return false
	}
	return !(l.Debit.IsPositive() && l.Credit.IsPositive())
}

// EntryLinePatch carries a partial manual correction of an entry line.
// Nil fields are preserved; non-nil fields overwrite.
type EntryLinePatch struct {
	AccountCode  *string
	AccountLabel *string
	Debit        *decimal.Decimal
	Credit       *decimal.Decimal
	Counterparty *string
}

// Apply overlays the patch onto the line.
func (p EntryLinePatch) Apply(l *EntryLine) {
	if p.AccountCode != nil {
		l.AccountCode = *p.AccountCode
	}
	if p.AccountLabel != nil {
		l.AccountLabel = *p.AccountLabel
	}
	if p.Debit != nil {
		l.Debit = *p.Debit
	}
	if p.Credit != nil {
		l.Credit = *p.Credit
	}
	if p.Counterparty != nil {
		l.Counterparty = *p.Counterparty
	}
}
