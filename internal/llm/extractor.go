package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/extract"
	"github.com/kasbahsoft/comptaflow/internal/model"
)

// StructuredExtractor is the primary AI extraction strategy: one call
// returning both header fields and invoice lines as strict JSON.
type StructuredExtractor struct {
	client Client
}

// NewStructuredExtractor creates the primary AI extractor.
func NewStructuredExtractor(client Client) *StructuredExtractor {
	return &StructuredExtractor{client: client}
}

// Name identifies the strategy in logs.
func (e *StructuredExtractor) Name() string { return "ai-structured" }

// ExtractHeader asks the oracle for the invoice header fields.
func (e *StructuredExtractor) ExtractHeader(ctx context.Context, doc extract.Document) (extract.Header, error) {
	text, err := promptText(doc)
	if err != nil {
		return extract.Header{}, err
	}

	resp, err := e.client.Extract(ctx, structuredHeaderPrompt(text))
	if err != nil {
		return extract.Header{}, err
	}
	if len(resp.Fields) == 0 {
		return extract.Header{}, fmt.Errorf("oracle returned no header fields")
	}

	return fieldsToHeader(resp.Fields), nil
}

// ExtractLines asks the oracle for the invoice lines.
func (e *StructuredExtractor) ExtractLines(ctx context.Context, doc extract.Document) ([]extract.Line, error) {
	text, err := promptText(doc)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Extract(ctx, structuredLinesPrompt(text))
	if err != nil {
		return nil, err
	}

	lines := make([]extract.Line, 0, len(resp.Lines))
	for _, fields := range resp.Lines {
		lines = append(lines, mapToLine(fields))
	}
	return lines, nil
}

// LegacyExtractor is the secondary AI strategy kept for documents the
// structured prompt chokes on: a looser prompt, header fields only.
type LegacyExtractor struct {
	client Client
}

// NewLegacyExtractor creates the fallback AI extractor.
func NewLegacyExtractor(client Client) *LegacyExtractor {
	return &LegacyExtractor{client: client}
}

// Name identifies the strategy in logs.
func (e *LegacyExtractor) Name() string { return "ai-legacy" }

// ExtractHeader asks the oracle for whatever header fields it can find.
func (e *LegacyExtractor) ExtractHeader(ctx context.Context, doc extract.Document) (extract.Header, error) {
	text, err := promptText(doc)
	if err != nil {
		return extract.Header{}, err
	}

	prompt := "Extract any of these fields you can find from the invoice text below, as a flat JSON object of strings (omit fields you cannot find): " +
		strings.Join(headerFieldKeys, ", ") + "\n\nInvoice text:\n" + text

	resp, err := e.client.Extract(ctx, prompt)
	if err != nil {
		return extract.Header{}, err
	}
	if len(resp.Fields) == 0 {
		return extract.Header{}, fmt.Errorf("oracle returned no header fields")
	}

	return fieldsToHeader(resp.Fields), nil
}

// ExtractLines is not implemented by the legacy strategy.
func (e *LegacyExtractor) ExtractLines(_ context.Context, _ extract.Document) ([]extract.Line, error) {
	return nil, extract.ErrUnsupported
}

var headerFieldKeys = []string{
	"invoice_number", "invoice_date", "due_date",
	"supplier_name", "supplier_ice", "supplier_if", "supplier_address",
	"client_name", "client_ice",
	"currency", "payment_terms", "invoice_type",
	"total_ht", "total_tva", "total_ttc", "vat_rate",
}

func structuredHeaderPrompt(text string) string {
	return `Extract the invoice header from the text below. Respond with:
{"fields": {"invoice_number": "...", "invoice_date": "YYYY-MM-DD", "due_date": "YYYY-MM-DD", "supplier_name": "...", "supplier_ice": "...", "supplier_if": "...", "supplier_address": "...", "client_name": "...", "client_ice": "...", "currency": "MAD", "payment_terms": "...", "invoice_type": "ACHAT|VENTE|AVOIR|NOTE_FRAIS|IMMOBILISATION", "total_ht": "0.00", "total_tva": "0.00", "total_ttc": "0.00", "vat_rate": "20"}}
Omit any field not present on the document.

Invoice text:
` + text
}

func structuredLinesPrompt(text string) string {
	return `Extract the product/service lines from the invoice text below. Respond with:
{"lines": [{"description": "...", "quantity": "1", "unit": "...", "unit_price_ht": "0.00", "amount_ht": "0.00", "vat_rate": "20", "vat_amount": "0.00", "amount_ttc": "0.00"}]}
Omit any field not present on the document.

Invoice text:
` + text
}

func promptText(doc extract.Document) (string, error) {
	switch {
	case strings.HasPrefix(doc.MIME, "text/"), doc.MIME == "":
		return string(doc.Data), nil
	default:
		return "", fmt.Errorf("%w: mime %s", extract.ErrUnsupported, doc.MIME)
	}
}

// fieldsToHeader converts an oracle field map into a typed header. Unparsable
// values are dropped rather than failing the whole extraction.
func fieldsToHeader(fields map[string]string) extract.Header {
	h := extract.Header{
		InvoiceNumber:   fields["invoice_number"],
		SupplierName:    fields["supplier_name"],
		SupplierICE:     model.DigitsOnly(fields["supplier_ice"]),
		SupplierIF:      fields["supplier_if"],
		SupplierAddress: fields["supplier_address"],
		ClientName:      fields["client_name"],
		ClientICE:       model.DigitsOnly(fields["client_ice"]),
		Currency:        fields["currency"],
		PaymentTerms:    fields["payment_terms"],
	}

	switch model.InvoiceType(strings.ToUpper(fields["invoice_type"])) {
	case model.TypeVente:
		h.InvoiceType = model.TypeVente
	case model.TypeAvoir:
		h.InvoiceType = model.TypeAvoir
	case model.TypeNoteFrais:
		h.InvoiceType = model.TypeNoteFrais
	case model.TypeImmobilisation:
		h.InvoiceType = model.TypeImmobilisation
	default:
		h.InvoiceType = model.TypeAchat
	}

	h.InvoiceDate = parseDateField(fields["invoice_date"])
	h.DueDate = parseDateField(fields["due_date"])
	h.TotalHT = parseDecimalField(fields["total_ht"])
	h.TotalTVA = parseDecimalField(fields["total_tva"])
	h.TotalTTC = parseDecimalField(fields["total_ttc"])
	h.VATRate = parseDecimalField(fields["vat_rate"])

	return h
}

func mapToLine(fields map[string]string) extract.Line {
	line := extract.Line{
		Description: fields["description"],
		Unit:        fields["unit"],
	}
	line.Quantity = parseDecimalField(fields["quantity"]).Decimal
	line.UnitPriceHT = parseDecimalField(fields["unit_price_ht"]).Decimal
	line.AmountHT = parseDecimalField(fields["amount_ht"]).Decimal
	line.VATRate = parseDecimalField(fields["vat_rate"]).Decimal
	line.VATAmount = parseDecimalField(fields["vat_amount"]).Decimal
	line.AmountTTC = parseDecimalField(fields["amount_ttc"]).Decimal
	return line
}

func parseDecimalField(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	s = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

func parseDateField(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return &d
		}
	}
	return nil
}
