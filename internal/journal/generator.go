// Package journal converts classified invoices into balanced double-entry
// journal postings following the Moroccan PCM conventions.
package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/pcm"
)

// Accounts resolves PCM account codes to reference data.
type Accounts interface {
	Get(code string) (*model.PcmAccount, bool)
}

// Default accounts used when a line reaches generation unclassified. The
// generated posting backfills the invoice line so the books and the line
// classification stay aligned.
const (
	defaultExpenseAccount    = "6111"
	defaultRevenueAccount    = "7111"
	defaultFixedAssetAccount = "2332"
)

// Generator builds journal entries from invoices.
type Generator struct {
	accounts Accounts
}

// NewGenerator creates a generator resolving labels against the given chart.
func NewGenerator(accounts Accounts) *Generator {
	return &Generator{accounts: accounts}
}

// Generate builds one journal entry with ordered posting lines for the
// invoice, and reports whether it balances. All monetary math is 2-decimal
// fixed point; amounts are rounded half-up at every aggregation step.
func (g *Generator) Generate(inv *model.Invoice, lines []model.InvoiceLine) (*model.JournalEntry, BalanceReport, error) {
	if len(lines) == 0 {
		return nil, BalanceReport{}, fmt.Errorf("invoice %s has no lines", inv.ID)
	}

	entry := &model.JournalEntry{
		ID:          uuid.New().String(),
		InvoiceID:   inv.ID,
		JournalCode: journalCode(inv.InvoiceType),
		EntryDate:   entryDate(inv),
		Reference:   reference(inv),
		Description: description(inv),
		CreatedAt:   time.Now(),
	}

	switch inv.InvoiceType {
	case model.TypeVente:
		g.generateSale(entry, inv, lines)
	case model.TypeAvoir:
		g.generateCreditNote(entry, inv, lines)
	default:
		g.generatePurchase(entry, inv, lines)
	}

	if len(entry.Lines) == 0 {
		return nil, BalanceReport{}, fmt.Errorf("invoice %s produced no postings (missing amounts)", inv.ID)
	}

	for i := range entry.Lines {
		entry.Lines[i].EntryID = entry.ID
		entry.Lines[i].Position = i + 1
	}

	report := Balance(entry.Lines)
	entry.TotalDebit = report.TotalDebit
	entry.TotalCredit = report.TotalCredit

	return entry, report, nil
}

// generateSale posts: debit Clients for TTC, then per line credit the
// revenue account for HT plus credit TVA facturée for the VAT.
func (g *Generator) generateSale(entry *model.JournalEntry, inv *model.Invoice, lines []model.InvoiceLine) {
	entry.Lines = append(entry.Lines, model.EntryLine{
		AccountCode:     pcm.AccountClients,
		AccountLabel:    g.label(pcm.AccountClients),
		Debit:           invoiceTTC(inv, lines),
		Counterparty:    inv.ClientName,
		CounterpartyICE: inv.ClientICE,
	})

	for i := range lines {
		line := &lines[i]
		code := g.lineAccount(line, defaultRevenueAccount)

		if ht := line.AmountHT.Round(2); ht.IsPositive() {
			entry.Lines = append(entry.Lines, model.EntryLine{
				AccountCode:   code,
				AccountLabel:  g.label(code),
				Credit:        ht,
				InvoiceLineID: line.ID,
			})
		}

		if vat := line.EffectiveVAT().Round(2); vat.IsPositive() {
			entry.Lines = append(entry.Lines, model.EntryLine{
				AccountCode:   pcm.AccountVATCollected,
				AccountLabel:  g.label(pcm.AccountVATCollected),
				Credit:        vat,
				InvoiceLineID: line.ID,
			})
		}
	}
}

// generateCreditNote posts the mirror of a purchase: debit Fournisseurs for
// TTC, then per line credit the expense/asset account for HT plus credit the
// recoverable VAT account for the VAT.
func (g *Generator) generateCreditNote(entry *model.JournalEntry, inv *model.Invoice, lines []model.InvoiceLine) {
	entry.Lines = append(entry.Lines, model.EntryLine{
		AccountCode:     pcm.AccountFournisseurs,
		AccountLabel:    g.label(pcm.AccountFournisseurs),
		Debit:           invoiceTTC(inv, lines),
		Counterparty:    inv.SupplierName,
		CounterpartyICE: inv.SupplierICE,
	})

	for i := range lines {
		line := &lines[i]
		code := g.lineAccount(line, defaultExpenseAccount)

		if ht := line.AmountHT.Round(2); ht.IsPositive() {
			entry.Lines = append(entry.Lines, model.EntryLine{
				AccountCode:   code,
				AccountLabel:  g.label(code),
				Credit:        ht,
				InvoiceLineID: line.ID,
			})
		}

		if vat := line.EffectiveVAT().Round(2); vat.IsPositive() {
			vatAccount := recoverableVATAccount(code)
			entry.Lines = append(entry.Lines, model.EntryLine{
				AccountCode:   vatAccount,
				AccountLabel:  g.label(vatAccount),
				Credit:        vat,
				InvoiceLineID: line.ID,
			})
		}
	}
}

// generatePurchase posts per line: debit the classified account for HT plus
// debit the recoverable VAT account for the VAT, then one credit on
// Fournisseurs for the TTC total.
func (g *Generator) generatePurchase(entry *model.JournalEntry, inv *model.Invoice, lines []model.InvoiceLine) {
	fallback := defaultExpenseAccount
	if inv.InvoiceType == model.TypeImmobilisation {
		fallback = defaultFixedAssetAccount
	}

	for i := range lines {
		line := &lines[i]
		code := g.lineAccount(line, fallback)

		if ht := line.AmountHT.Round(2); ht.IsPositive() {
			entry.Lines = append(entry.Lines, model.EntryLine{
				AccountCode:   code,
				AccountLabel:  g.label(code),
				Debit:         ht,
				InvoiceLineID: line.ID,
			})
		}

		if vat := line.EffectiveVAT().Round(2); vat.IsPositive() {
			vatAccount := recoverableVATAccount(code)
			entry.Lines = append(entry.Lines, model.EntryLine{
				AccountCode:   vatAccount,
				AccountLabel:  g.label(vatAccount),
				Debit:         vat,
				InvoiceLineID: line.ID,
			})
		}
	}

	entry.Lines = append(entry.Lines, model.EntryLine{
		AccountCode:     pcm.AccountFournisseurs,
		AccountLabel:    g.label(pcm.AccountFournisseurs),
		Credit:          invoiceTTC(inv, lines),
		Counterparty:    inv.SupplierName,
		CounterpartyICE: inv.SupplierICE,
	})
}

// lineAccount returns the posting account for a line, backfilling the line's
// PCM code when it had none yet. Existing and manually corrected codes are
// never overwritten.
func (g *Generator) lineAccount(line *model.InvoiceLine, fallback string) string {
	code := line.AccountCode()
	if code == "" {
		code = fallback
	}
	if line.PcmAccountCode == "" && !line.IsCorrected {
		line.PcmAccountCode = code
		line.PcmClass = pcm.ClassOf(code)
		if account, ok := g.accounts.Get(code); ok {
			line.PcmAccountLabel = account.Label
		}
	}
	return code
}

// recoverableVATAccount picks the recoverable VAT account for a purchase
// line: class 2 postings carry fixed-asset VAT, everything else the general
// recoverable account.
func recoverableVATAccount(lineAccount string) string {
	if pcm.ClassOf(lineAccount) == 2 {
		return pcm.AccountVATFixedAssets
	}
	return pcm.AccountVATRecoverable
}

// invoiceTTC returns the header TTC when extracted, otherwise the rounded
// sum of line TTC amounts (falling back to HT + VAT per line).
func invoiceTTC(inv *model.Invoice, lines []model.InvoiceLine) decimal.Decimal {
	if inv.TotalTTC.Valid && inv.TotalTTC.Decimal.IsPositive() {
		return inv.TotalTTC.Decimal.Round(2)
	}

	total := decimal.Zero
	for i := range lines {
		line := &lines[i]
		if line.AmountTTC.IsPositive() {
			total = total.Add(line.AmountTTC.Round(2))
		} else {
			total = total.Add(line.AmountHT.Round(2)).Add(line.EffectiveVAT().Round(2))
		}
	}
	return total.Round(2)
}

func (g *Generator) label(code string) string {
	if account, ok := g.accounts.Get(code); ok {
		return account.Label
	}
	return code
}

func journalCode(t model.InvoiceType) string {
	if t == model.TypeVente {
		return model.JournalVentes
	}
	return model.JournalAchats
}

func entryDate(inv *model.Invoice) time.Time {
	if inv.InvoiceDate != nil {
		return *inv.InvoiceDate
	}
	return time.Now()
}

func reference(inv *model.Invoice) string {
	if inv.InvoiceNumber != "" {
		return inv.InvoiceNumber
	}
	return inv.ID[:8]
}

func description(inv *model.Invoice) string {
	switch {
	case inv.InvoiceNumber != "" && inv.SupplierName != "":
		return fmt.Sprintf("Facture %s - %s", inv.InvoiceNumber, inv.SupplierName)
	case inv.SupplierName != "":
		return "Facture " + inv.SupplierName
	case inv.InvoiceNumber != "":
		return "Facture " + inv.InvoiceNumber
	default:
		return "Facture " + inv.ID[:8]
	}
}
