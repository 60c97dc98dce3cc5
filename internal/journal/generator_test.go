package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/pcm"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func purchaseInvoice() *model.Invoice {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return &model.Invoice{
		ID:            "inv-1",
		SocieteID:     100,
		InvoiceNumber: "FA-2026-001",
		InvoiceDate:   &date,
		SupplierName:  "Maroc Telecom",
		SupplierICE:   "001234567000089",
		InvoiceType:   model.TypeAchat,
		TotalHT:       nullDec("1000.00"),
		TotalTVA:      nullDec("200.00"),
		TotalTTC:      nullDec("1200.00"),
	}
}

func findPosting(t *testing.T, entry *model.JournalEntry, account string) model.EntryLine {
	t.Helper()
	for _, line := range entry.Lines {
		if line.AccountCode == account {
			return line
		}
	}
	t.Fatalf("no posting on account %s in %+v", account, entry.Lines)
	return model.EntryLine{}
}

func TestGenerate_Purchase(t *testing.T) {
	gen := NewGenerator(pcm.Default())
	lines := []model.InvoiceLine{{
		ID:             7,
		LineNumber:     1,
		Description:    "Abonnement fibre",
		AmountHT:       dec("1000.00"),
		VATRate:        dec("20"),
		VATAmount:      dec("200.00"),
		PcmAccountCode: "6111",
		PcmClass:       6,
	}}

	entry, report, err := gen.Generate(purchaseInvoice(), lines)
	require.NoError(t, err)
	require.True(t, report.Balanced, "purchase entry must balance: %+v", report)

	assert.Equal(t, model.JournalAchats, entry.JournalCode)
	assert.Len(t, entry.Lines, 3)

	expense := findPosting(t, entry, "6111")
	assert.True(t, expense.Debit.Equal(dec("1000.00")), "expense debit = %s", expense.Debit)
	assert.Equal(t, int64(7), expense.InvoiceLineID)

	vat := findPosting(t, entry, pcm.AccountVATRecoverable)
	assert.True(t, vat.Debit.Equal(dec("200.00")), "vat debit = %s", vat.Debit)

	payable := findPosting(t, entry, pcm.AccountFournisseurs)
	assert.True(t, payable.Credit.Equal(dec("1200.00")), "payable credit = %s", payable.Credit)
	assert.Equal(t, "Maroc Telecom", payable.Counterparty)
	assert.Equal(t, "001234567000089", payable.CounterpartyICE)

	assert.True(t, entry.TotalDebit.Equal(dec("1200.00")))
	assert.True(t, entry.TotalCredit.Equal(dec("1200.00")))

	// Positions are sequential from 1.
	for i, line := range entry.Lines {
		assert.Equal(t, i+1, line.Position)
	}
}

func TestGenerate_Sale(t *testing.T) {
	gen := NewGenerator(pcm.Default())
	inv := purchaseInvoice()
	inv.InvoiceType = model.TypeVente
	inv.ClientName = "Client SARL"
	inv.ClientICE = "002222222000044"

	lines := []model.InvoiceLine{{
		LineNumber:     1,
		Description:    "Prestation de conseil",
		AmountHT:       dec("1000.00"),
		VATRate:        dec("20"),
		VATAmount:      dec("200.00"),
		PcmAccountCode: "7124",
		PcmClass:       7,
	}}

	entry, report, err := gen.Generate(inv, lines)
	require.NoError(t, err)
	require.True(t, report.Balanced)

	assert.Equal(t, model.JournalVentes, entry.JournalCode)

	receivable := findPosting(t, entry, pcm.AccountClients)
	assert.True(t, receivable.Debit.Equal(dec("1200.00")))
	assert.Equal(t, "Client SARL", receivable.Counterparty)

	revenue := findPosting(t, entry, "7124")
	assert.True(t, revenue.Credit.Equal(dec("1000.00")))

	vat := findPosting(t, entry, pcm.AccountVATCollected)
	assert.True(t, vat.Credit.Equal(dec("200.00")))
}

func TestGenerate_CreditNote(t *testing.T) {
	gen := NewGenerator(pcm.Default())
	inv := purchaseInvoice()
	inv.InvoiceType = model.TypeAvoir

	lines := []model.InvoiceLine{{
		LineNumber:     1,
		Description:    "Avoir sur abonnement",
		AmountHT:       dec("1000.00"),
		VATRate:        dec("20"),
		VATAmount:      dec("200.00"),
		PcmAccountCode: "6111",
	}}

	entry, report, err := gen.Generate(inv, lines)
	require.NoError(t, err)
	require.True(t, report.Balanced)

	payable := findPosting(t, entry, pcm.AccountFournisseurs)
	assert.True(t, payable.Debit.Equal(dec("1200.00")), "credit note reverses the payable")

	expense := findPosting(t, entry, "6111")
	assert.True(t, expense.Credit.Equal(dec("1000.00")))

	vat := findPosting(t, entry, pcm.AccountVATRecoverable)
	assert.True(t, vat.Credit.Equal(dec("200.00")))
}

func TestGenerate_FixedAssetVAT(t *testing.T) {
	gen := NewGenerator(pcm.Default())
	inv := purchaseInvoice()
	inv.InvoiceType = model.TypeImmobilisation
	inv.TotalTTC = nullDec("12000.00")

	lines := []model.InvoiceLine{{
		LineNumber:     1,
		Description:    "Serveur de production",
		AmountHT:       dec("10000.00"),
		VATRate:        dec("20"),
		VATAmount:      dec("2000.00"),
		PcmAccountCode: "2355",
		PcmClass:       2,
	}}

	entry, report, err := gen.Generate(inv, lines)
	require.NoError(t, err)
	require.True(t, report.Balanced)

	// Class 2 purchases carry fixed-asset VAT, not the general account.
	vat := findPosting(t, entry, pcm.AccountVATFixedAssets)
	assert.True(t, vat.Debit.Equal(dec("2000.00")))
}

func TestGenerate_BackfillsUnclassifiedLines(t *testing.T) {
	gen := NewGenerator(pcm.Default())
	lines := []model.InvoiceLine{{
		LineNumber:  1,
		Description: "Ligne sans compte",
		AmountHT:    dec("1000.00"),
		VATAmount:   dec("200.00"),
	}}

	entry, _, err := gen.Generate(purchaseInvoice(), lines)
	require.NoError(t, err)

	assert.Equal(t, "6111", lines[0].PcmAccountCode, "default expense account backfilled")
	assert.Equal(t, 6, lines[0].PcmClass)
	findPosting(t, entry, "6111")
}

func TestGenerate_NeverOverwritesCorrection(t *testing.T) {
	gen := NewGenerator(pcm.Default())
	lines := []model.InvoiceLine{{
		LineNumber:           1,
		Description:          "Publicité",
		AmountHT:             dec("500.00"),
		PcmAccountCode:       "6111",
		CorrectedAccountCode: "6144",
		IsCorrected:          true,
	}}
	inv := purchaseInvoice()
	inv.TotalTTC = nullDec("500.00")

	entry, _, err := gen.Generate(inv, lines)
	require.NoError(t, err)

	// The posting follows the correction; the classifier's code stays put.
	findPosting(t, entry, "6144")
	assert.Equal(t, "6111", lines[0].PcmAccountCode)
}

func TestGenerate_TTCFallsBackToLineSums(t *testing.T) {
	gen := NewGenerator(pcm.Default())
	inv := purchaseInvoice()
	inv.TotalHT = decimal.NullDecimal{}
	inv.TotalTVA = decimal.NullDecimal{}
	inv.TotalTTC = decimal.NullDecimal{}

	lines := []model.InvoiceLine{
		{LineNumber: 1, Description: "A", AmountHT: dec("100.00"), VATAmount: dec("20.00"), AmountTTC: dec("120.00"), PcmAccountCode: "6111"},
		{LineNumber: 2, Description: "B", AmountHT: dec("50.00"), VATAmount: dec("10.00"), AmountTTC: dec("60.00"), PcmAccountCode: "6125"},
	}

	entry, report, err := gen.Generate(inv, lines)
	require.NoError(t, err)
	require.True(t, report.Balanced, "line-sum TTC must balance: %+v", report)

	payable := findPosting(t, entry, pcm.AccountFournisseurs)
	assert.True(t, payable.Credit.Equal(dec("180.00")), "payable = %s", payable.Credit)
}

func TestGenerate_NoLines(t *testing.T) {
	gen := NewGenerator(pcm.Default())
	_, _, err := gen.Generate(purchaseInvoice(), nil)
	require.Error(t, err)
}

func TestBalance(t *testing.T) {
	balanced := []model.EntryLine{
		{Debit: dec("1200.00")},
		{Credit: dec("1000.00")},
		{Credit: dec("200.00")},
	}
	report := Balance(balanced)
	if !report.Balanced {
		t.Errorf("expected balanced, got %+v", report)
	}

	off := []model.EntryLine{
		{Debit: dec("1200.00")},
		{Credit: dec("1000.00")},
		{Credit: dec("199.98")},
	}
	report = Balance(off)
	if report.Balanced {
		t.Errorf("0.02 difference must fail, got %+v", report)
	}
	if !report.Difference.Equal(dec("0.02")) {
		t.Errorf("Difference = %s, want 0.02", report.Difference)
	}

	within := []model.EntryLine{
		{Debit: dec("1200.00")},
		{Credit: dec("1199.99")},
	}
	if report := Balance(within); !report.Balanced {
		t.Errorf("0.01 difference is within tolerance, got %+v", report)
	}
}

func TestCheckEntry_FallsBackToStoredTotals(t *testing.T) {
	entry := &model.JournalEntry{
		TotalDebit:  dec("100.00"),
		TotalCredit: dec("100.00"),
	}
	if report := CheckEntry(entry); !report.Balanced {
		t.Errorf("stored totals should balance, got %+v", report)
	}

	entry.Lines = []model.EntryLine{{Debit: dec("100.00")}, {Credit: dec("50.00")}}
	if report := CheckEntry(entry); report.Balanced {
		t.Errorf("lines take precedence over stored totals, got %+v", report)
	}
}
