// Package model defines the core domain models used throughout the application.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice in the processing pipeline.
type InvoiceStatus string

// Invoice lifecycle states.
const (
	StatusImported   InvoiceStatus = "IMPORTED"
	StatusExtracted  InvoiceStatus = "EXTRACTED"
	StatusClassified InvoiceStatus = "CLASSIFIED"
	StatusDraft      InvoiceStatus = "DRAFT"
	StatusValidated  InvoiceStatus = "VALIDATED"
	StatusError      InvoiceStatus = "ERROR"
)

// IsTerminal reports whether no further pipeline transitions are allowed.
func (s InvoiceStatus) IsTerminal() bool {
	return s == StatusValidated || s == StatusError
}

// InvoiceType distinguishes the accounting treatment of a document.
type InvoiceType string

// Invoice document types.
const (
	TypeAchat          InvoiceType = "ACHAT"
	TypeVente          InvoiceType = "VENTE"
	TypeAvoir          InvoiceType = "AVOIR"
	TypeNoteFrais      InvoiceType = "NOTE_FRAIS"
	TypeImmobilisation InvoiceType = "IMMOBILISATION"
)

// Invoice represents one uploaded supplier or client document.
type Invoice struct {
	ID        string
	SocieteID int64
	CabinetID int64
	Status    InvoiceStatus

	FileRef      string
	OriginalName string

	// Extracted header fields. Zero values mean "not extracted".
	InvoiceNumber   string
	InvoiceDate     *time.Time
	DueDate         *time.Time
	SupplierName    string
	SupplierICE     string
	SupplierIF      string
	SupplierAddress string
	ClientName      string
	ClientICE       string
	Currency        string
	PaymentTerms    string
	InvoiceType     InvoiceType

	TotalHT  decimal.NullDecimal
	TotalTVA decimal.NullDecimal
	TotalTTC decimal.NullDecimal

	ComplianceFlags []ComplianceFlag

	ValidatedBy  string
	ValidatedAt  *time.Time
	RejectReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizedICE returns the supplier ICE stripped of any non-digit characters.
func (i *Invoice) NormalizedICE() string {
	return DigitsOnly(i.SupplierICE)
}

// TotalsConsistent reports whether HT + TVA matches TTC within the given
// tolerance. Returns true when any of the three totals is absent.
func (i *Invoice) TotalsConsistent(tolerance decimal.Decimal) bool {
	if !i.TotalHT.Valid || !i.TotalTVA.Valid || !i.TotalTTC.Valid {
		return true
	}
	diff := i.TotalHT.Decimal.Add(i.TotalTVA.Decimal).Sub(i.TotalTTC.Decimal)
	return diff.Abs().LessThanOrEqual(tolerance)
}

// DigitsOnly strips everything but ASCII digits from s.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
