// Package dgi implements the DGI compliance checks applied to extracted
// invoice headers. Validation is a pure function from fields to flags; the
// pipeline persists the flags but never blocks on them.
package dgi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

// Flag codes. Stable vocabulary consumed by the UI layer.
const (
	CodeICEMissing           = "ICE_MISSING"
	CodeICEInvalid           = "ICE_INVALID"
	CodeIFMissing            = "IF_MISSING"
	CodeInvoiceNumberMissing = "INVOICE_NUMBER_MISSING"
	CodeTotalsMismatch       = "TOTALS_MISMATCH"
	CodeLinesTTCMismatch     = "LINES_TTC_MISMATCH"
	CodeLinesTVAMismatch     = "LINES_TVA_MISMATCH"
	CodeVATRateInvalid       = "VAT_RATE_INVALID"
	CodeDateMissing          = "DATE_MISSING"
)

// iceLength is the mandated length of a Moroccan ICE, digits only.
const iceLength = 15

// Tolerances for monetary consistency checks.
var (
	headerTolerance = decimal.NewFromFloat(0.01)
	linesTolerance  = decimal.NewFromFloat(0.05)
)

var validVATRates = []decimal.Decimal{
	decimal.Zero,
	decimal.NewFromInt(7),
	decimal.NewFromInt(10),
	decimal.NewFromInt(14),
	decimal.NewFromInt(20),
}

// Input is the header+lines field set the validator inspects. Null decimals
// and nil dates mean "not extracted"; absent fields only ever soften a rule,
// never trigger a monetary mismatch.
type Input struct {
	SupplierICE   string
	SupplierIF    string
	InvoiceNumber string
	InvoiceDate   *time.Time
	TotalHT       decimal.NullDecimal
	TotalTVA      decimal.NullDecimal
	TotalTTC      decimal.NullDecimal
	VATRate       decimal.NullDecimal
	LineTTCSum    decimal.NullDecimal
	LineTVASum    decimal.NullDecimal
}

// InputFromInvoice builds a validator input from an invoice and its lines.
func InputFromInvoice(inv *model.Invoice, lines []model.InvoiceLine) Input {
	in := Input{
		SupplierICE:   inv.SupplierICE,
		SupplierIF:    inv.SupplierIF,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   inv.InvoiceDate,
		TotalHT:       inv.TotalHT,
		TotalTVA:      inv.TotalTVA,
		TotalTTC:      inv.TotalTTC,
	}
	if len(lines) > 0 {
		ttc := decimal.Zero
		tva := decimal.Zero
		for _, l := range lines {
			ttc = ttc.Add(l.AmountTTC)
			tva = tva.Add(l.VATAmount)
		}
		in.LineTTCSum = decimal.NewNullDecimal(ttc)
		in.LineTVASum = decimal.NewNullDecimal(tva)

		// A single uniform rate is checkable at header level.
		rate := lines[0].VATRate
		uniform := true
		for _, l := range lines[1:] {
			if !l.VATRate.Equal(rate) {
				uniform = false
				break
			}
		}
		if uniform {
			in.VATRate = decimal.NewNullDecimal(rate)
		}
	}
	return in
}

// Validate applies every rule independently and returns the resulting flags.
// An empty slice means the header is compliant.
func Validate(in Input) []model.ComplianceFlag {
	var flags []model.ComplianceFlag

	add := func(code, message string, severity model.FlagSeverity, field string) {
		flags = append(flags, model.ComplianceFlag{
			Code:     code,
			Message:  message,
			Severity: severity,
			Field:    field,
		})
	}

	// Supplier ICE: required, 15 digits.
	if in.SupplierICE == "" {
		add(CodeICEMissing, "ICE du fournisseur manquant", model.SeverityError, "supplier_ice")
	} else if digits := model.DigitsOnly(in.SupplierICE); len(digits) != iceLength {
		add(CodeICEInvalid,
			fmt.Sprintf("ICE du fournisseur invalide: %d chiffres au lieu de %d", len(digits), iceLength),
			model.SeverityError, "supplier_ice")
	}

	if in.SupplierIF == "" {
		add(CodeIFMissing, "Identifiant fiscal du fournisseur manquant", model.SeverityWarning, "supplier_if")
	}

	if in.InvoiceNumber == "" {
		add(CodeInvoiceNumberMissing, "Numéro de facture manquant", model.SeverityWarning, "invoice_number")
	}

	// HT + TVA must equal TTC when all three are present.
	if in.TotalHT.Valid && in.TotalTVA.Valid && in.TotalTTC.Valid {
		computed := in.TotalHT.Decimal.Add(in.TotalTVA.Decimal)
		if computed.Sub(in.TotalTTC.Decimal).Abs().GreaterThan(headerTolerance) {
			add(CodeTotalsMismatch,
				fmt.Sprintf("HT + TVA (%s) différent du TTC (%s)",
					computed.StringFixed(2), in.TotalTTC.Decimal.StringFixed(2)),
				model.SeverityError, "total_ttc")
		}
	}

	// Line sums against header totals.
	if in.LineTTCSum.Valid && in.TotalTTC.Valid {
		if in.LineTTCSum.Decimal.Sub(in.TotalTTC.Decimal).Abs().GreaterThan(linesTolerance) {
			add(CodeLinesTTCMismatch,
				fmt.Sprintf("Somme des lignes TTC (%s) différente du total TTC (%s)",
					in.LineTTCSum.Decimal.StringFixed(2), in.TotalTTC.Decimal.StringFixed(2)),
				model.SeverityError, "total_ttc")
		} else if in.LineTVASum.Valid && in.TotalTVA.Valid &&
			in.LineTVASum.Decimal.Sub(in.TotalTVA.Decimal).Abs().GreaterThan(linesTolerance) {
			add(CodeLinesTVAMismatch,
				fmt.Sprintf("Somme des lignes TVA (%s) différente du total TVA (%s)",
					in.LineTVASum.Decimal.StringFixed(2), in.TotalTVA.Decimal.StringFixed(2)),
				model.SeverityWarning, "total_tva")
		}
	}

	if in.VATRate.Valid && !isValidVATRate(in.VATRate.Decimal) {
		add(CodeVATRateInvalid,
			fmt.Sprintf("Taux de TVA invalide: %s%% (admis: 0, 7, 10, 14, 20)", in.VATRate.Decimal.String()),
			model.SeverityError, "vat_rate")
	}

	if in.InvoiceDate == nil {
		add(CodeDateMissing, "Date de facture manquante", model.SeverityWarning, "invoice_date")
	}

	return flags
}

func isValidVATRate(rate decimal.Decimal) bool {
	for _, r := range validVATRates {
		if rate.Equal(r) {
			return true
		}
	}
	return false
}
