package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

// LocalExtractor is the last-resort strategy: plain regex parsing over the
// document text. It only understands text-like payloads (OCR output, text
// PDFs already converted upstream) and a handful of French invoice layouts.
type LocalExtractor struct{}

// NewLocalExtractor creates the regex-based extractor.
func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{}
}

// Name identifies the strategy in logs.
func (e *LocalExtractor) Name() string { return "local-regex" }

var (
	reICE     = regexp.MustCompile(`(?i)\bICE\s*(?:n[°o])?\s*[:.]?\s*([0-9][0-9 ]{10,25})`)
	reIF      = regexp.MustCompile(`(?i)\bI\.?F\.?\s*(?:n[°o])?\s*[:.]?\s*([0-9]{5,10})\b`)
	reNumber  = regexp.MustCompile(`(?i)\bfacture\s*(?:n[°o]\s*)?[:#]?\s*([A-Za-z0-9][A-Za-z0-9/_-]*[0-9])`)
	reTTC     = regexp.MustCompile(`(?i)\btotal\s*T\.?T\.?C\.?\s*[:.]?\s*([0-9][0-9 ]*(?:[.,][0-9]{1,2})?)`)
	reHT      = regexp.MustCompile(`(?i)\btotal\s*H\.?T\.?\s*[:.]?\s*([0-9][0-9 ]*(?:[.,][0-9]{1,2})?)`)
	reTVA     = regexp.MustCompile(`(?i)\b(?:total\s*)?T\.?V\.?A\.?\s*(?:\([0-9 .,%]*\))?\s*[:.]?\s*([0-9][0-9 ]*(?:[.,][0-9]{1,2})?)`)
	reVATRate = regexp.MustCompile(`(?i)\bTVA\s*[(:.]?\s*([0-9]{1,2})\s*%`)
	reDate    = regexp.MustCompile(`\b([0-3][0-9])/([01][0-9])/((?:19|20)[0-9]{2})\b`)
	reAvoir   = regexp.MustCompile(`(?i)\bavoir\b`)
)

// ExtractHeader parses header fields out of the document text.
func (e *LocalExtractor) ExtractHeader(_ context.Context, doc Document) (Header, error) {
	text, err := documentText(doc)
	if err != nil {
		return Header{}, err
	}

	var h Header
	found := false

	if m := reICE.FindStringSubmatch(text); m != nil {
		h.SupplierICE = model.DigitsOnly(m[1])
		found = true
	}
	if m := reIF.FindStringSubmatch(text); m != nil {
		h.SupplierIF = m[1]
		found = true
	}
	if m := reNumber.FindStringSubmatch(text); m != nil {
		h.InvoiceNumber = strings.TrimSpace(m[1])
		found = true
	}
	if m := reTTC.FindStringSubmatch(text); m != nil {
		if amount, ok := parseAmount(m[1]); ok {
			h.TotalTTC = decimal.NewNullDecimal(amount)
			found = true
		}
	}
	if m := reHT.FindStringSubmatch(text); m != nil {
		if amount, ok := parseAmount(m[1]); ok {
			h.TotalHT = decimal.NewNullDecimal(amount)
			found = true
		}
	}
	if h.TotalHT.Valid {
		// The bare TVA pattern also matches "Total TTC"-adjacent digits on
		// some layouts; only trust it when an HT anchor was found.
		if m := reTVA.FindStringSubmatch(text); m != nil {
			if amount, ok := parseAmount(m[1]); ok {
				h.TotalTVA = decimal.NewNullDecimal(amount)
			}
		}
	}
	if m := reVATRate.FindStringSubmatch(text); m != nil {
		if rate, ok := parseAmount(m[1]); ok {
			h.VATRate = decimal.NewNullDecimal(rate)
		}
	}
	if m := reDate.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("02/01/2006", m[0]); err == nil {
			h.InvoiceDate = &d
			found = true
		}
	}

	h.InvoiceType = model.TypeAchat
	if reAvoir.MatchString(text) {
		h.InvoiceType = model.TypeAvoir
	}

	if !found {
		return Header{}, fmt.Errorf("no recognizable invoice fields in %q", doc.Name)
	}
	return h, nil
}

// ExtractLines is not supported by the regex strategy; the chain falls back
// to a synthetic line built from the header totals.
func (e *LocalExtractor) ExtractLines(_ context.Context, _ Document) ([]Line, error) {
	return nil, ErrUnsupported
}

func documentText(doc Document) (string, error) {
	switch {
	case strings.HasPrefix(doc.MIME, "text/"), doc.MIME == "":
		return string(doc.Data), nil
	default:
		return "", fmt.Errorf("%w: mime %s", ErrUnsupported, doc.MIME)
	}
}

// parseAmount handles French formatting: spaces as thousand separators and
// comma as decimal separator.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
