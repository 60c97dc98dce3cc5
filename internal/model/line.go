package model

import "github.com/shopspring/decimal"

// InvoiceLine is one product or service line of an invoice.
type InvoiceLine struct {
	ID         int64
	InvoiceID  string
	LineNumber int

	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPriceHT decimal.Decimal
	AmountHT    decimal.Decimal
	VATRate     decimal.Decimal
	VATAmount   decimal.Decimal
	AmountTTC   decimal.Decimal

	// Classification outputs.
	PcmClass             int
	PcmAccountCode       string
	PcmAccountLabel      string
	Confidence           float64
	ClassificationReason string

	// Manual override.
	CorrectedAccountCode string
	IsCorrected          bool
}

// AccountCode returns the effective account for this line: a manual
// correction takes precedence over the classifier's assignment.
func (l *InvoiceLine) AccountCode() string {
	if l.CorrectedAccountCode != "" {
		return l.CorrectedAccountCode
	}
	return l.PcmAccountCode
}

// EffectiveVAT returns the stored VAT amount, deriving it from rate and HT
// when the stored amount is zero but a rate is present.
func (l *InvoiceLine) EffectiveVAT() decimal.Decimal {
	if !l.VATAmount.IsZero() {
		return l.VATAmount
	}
	if l.VATRate.IsZero() || l.AmountHT.IsZero() {
		return decimal.Zero
	}
	return l.AmountHT.Mul(l.VATRate).Div(decimal.NewFromInt(100)).Round(2)
}

// LinePatch carries a partial manual correction of an invoice line.
// Nil fields are preserved; non-nil fields overwrite.
type LinePatch struct {
	Description          *string
	Quantity             *decimal.Decimal
	UnitPriceHT          *decimal.Decimal
	AmountHT             *decimal.Decimal
	VATRate              *decimal.Decimal
	VATAmount            *decimal.Decimal
	AmountTTC            *decimal.Decimal
	CorrectedAccountCode *string
}

// Apply overlays the patch onto the line. Setting a corrected account code
// marks the line as manually corrected.
func (p LinePatch) Apply(l *InvoiceLine) {
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Quantity != nil {
		l.Quantity = *p.Quantity
	}
	if p.UnitPriceHT != nil {
		l.UnitPriceHT = *p.UnitPriceHT
	}
	if p.AmountHT != nil {
		l.AmountHT = *p.AmountHT
	}
	if p.VATRate != nil {
		l.VATRate = *p.VATRate
	}
	if p.VATAmount != nil {
		l.VATAmount = *p.VATAmount
	}
	if p.AmountTTC != nil {
		l.AmountTTC = *p.AmountTTC
	}
	if p.CorrectedAccountCode != nil {
		l.CorrectedAccountCode = *p.CorrectedAccountCode
		l.IsCorrected = true
	}
}
