package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestInvoiceStatus_IsTerminal(t *testing.T) {
	terminal := []InvoiceStatus{StatusValidated, StatusError}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	active := []InvoiceStatus{StatusImported, StatusExtracted, StatusClassified, StatusDraft}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestInvoice_TotalsConsistent(t *testing.T) {
	tolerance := dec("0.01")

	tests := []struct {
		name string
		ht   string
		tva  string
		ttc  string
		want bool
	}{
		{"exact", "1000.00", "200.00", "1200.00", true},
		{"within tolerance", "1000.00", "200.00", "1200.01", true},
		{"beyond tolerance", "1000.00", "200.00", "1200.02", false},
		{"way off", "1000.00", "200.00", "1500.00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := Invoice{
				TotalHT:  nullDec(tt.ht),
				TotalTVA: nullDec(tt.tva),
				TotalTTC: nullDec(tt.ttc),
			}
			if got := inv.TotalsConsistent(tolerance); got != tt.want {
				t.Errorf("TotalsConsistent() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("missing total is consistent", func(t *testing.T) {
		inv := Invoice{TotalHT: nullDec("1000.00"), TotalTTC: nullDec("9999.00")}
		if !inv.TotalsConsistent(tolerance) {
			t.Error("incomplete totals must not be flagged inconsistent")
		}
	})
}

func TestInvoice_NormalizedICE(t *testing.T) {
	inv := Invoice{SupplierICE: "ICE 0012-3456 7000089"}
	if got := inv.NormalizedICE(); got != "001234567000089" {
		t.Errorf("NormalizedICE() = %q", got)
	}
}

func TestDigitsOnly(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"001234567000089", "001234567000089"},
		{"ICE: 001 234 567", "001234567"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := DigitsOnly(tt.in); got != tt.want {
			t.Errorf("DigitsOnly(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInvoiceLine_AccountCode(t *testing.T) {
	line := InvoiceLine{PcmAccountCode: "6111"}
	if got := line.AccountCode(); got != "6111" {
		t.Errorf("AccountCode() = %q, want classifier code", got)
	}

	line.CorrectedAccountCode = "6144"
	if got := line.AccountCode(); got != "6144" {
		t.Errorf("AccountCode() = %q, correction must win", got)
	}
}

func TestInvoiceLine_EffectiveVAT(t *testing.T) {
	stored := InvoiceLine{VATAmount: dec("200.00"), VATRate: dec("10"), AmountHT: dec("1000.00")}
	if got := stored.EffectiveVAT(); !got.Equal(dec("200.00")) {
		t.Errorf("stored VAT should win, got %s", got)
	}

	derived := InvoiceLine{VATRate: dec("20"), AmountHT: dec("1000.00")}
	if got := derived.EffectiveVAT(); !got.Equal(dec("200.00")) {
		t.Errorf("derived VAT = %s, want 200.00", got)
	}

	rounded := InvoiceLine{VATRate: dec("7"), AmountHT: dec("33.33")}
	if got := rounded.EffectiveVAT(); !got.Equal(dec("2.33")) {
		t.Errorf("derived VAT = %s, want 2.33", got)
	}

	none := InvoiceLine{AmountHT: dec("1000.00")}
	if got := none.EffectiveVAT(); !got.IsZero() {
		t.Errorf("no rate no amount should be zero, got %s", got)
	}
}

func TestLinePatch_Apply(t *testing.T) {
	line := InvoiceLine{
		Description:    "Abonnement",
		AmountHT:       dec("1000.00"),
		PcmAccountCode: "6111",
	}

	newHT := dec("1500.00")
	account := "6144"
	patch := LinePatch{AmountHT: &newHT, CorrectedAccountCode: &account}
	patch.Apply(&line)

	if !line.AmountHT.Equal(newHT) {
		t.Errorf("AmountHT = %s, want 1500.00", line.AmountHT)
	}
	if line.Description != "Abonnement" {
		t.Errorf("nil patch field must preserve value, got %q", line.Description)
	}
	if !line.IsCorrected {
		t.Error("setting corrected account must mark line corrected")
	}
	if line.AccountCode() != "6144" {
		t.Errorf("AccountCode() = %q after correction", line.AccountCode())
	}
}

func TestEntryLine_WellFormed(t *testing.T) {
	tests := []struct {
		name   string
		debit  string
		credit string
		want   bool
	}{
		{"debit only", "100.00", "0", true},
		{"credit only", "0", "100.00", true},
		{"both zero", "0", "0", true},
		{"both sides", "100.00", "50.00", false},
		{"negative debit", "-1.00", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := EntryLine{Debit: dec(tt.debit), Credit: dec(tt.credit)}
			if got := line.WellFormed(); got != tt.want {
				t.Errorf("WellFormed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComplianceFlags_HasErrors(t *testing.T) {
	flags := []ComplianceFlag{
		{Code: "X", Severity: SeverityWarning},
	}
	if HasErrors(flags) {
		t.Error("warnings alone are not errors")
	}
	flags = append(flags, ComplianceFlag{Code: "Y", Severity: SeverityError})
	if !HasErrors(flags) {
		t.Error("expected errors")
	}
}
