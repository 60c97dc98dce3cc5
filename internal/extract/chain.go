package extract

import (
	"context"
	"log/slog"
)

// Chain tries extractors in priority order until one succeeds. Header and
// line extraction fall back independently: a header from the structured
// oracle can be paired with lines from the local parser.
type Chain struct {
	extractors []Extractor
}

// NewChain creates a fallback chain. Order is priority order.
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// Header runs the chain for header fields. When every strategy fails the
// returned header is empty; extraction failure is recovered here, never
// raised to the caller.
func (c *Chain) Header(ctx context.Context, doc Document) Header {
	for _, ex := range c.extractors {
		header, err := ex.ExtractHeader(ctx, doc)
		if err != nil {
			slog.Warn("Header extraction failed, trying next strategy",
				"extractor", ex.Name(),
				"document", doc.Name,
				"error", err)
			continue
		}
		slog.Info("Header extracted",
			"extractor", ex.Name(),
			"document", doc.Name)
		return header
	}

	slog.Warn("All header extractors exhausted, using empty header", "document", doc.Name)
	return Header{}
}

// Lines runs the chain for invoice lines. When every strategy fails, a
// single synthetic line is fabricated from the header totals so downstream
// classification always has at least one line to work with.
func (c *Chain) Lines(ctx context.Context, doc Document, header Header) []Line {
	for _, ex := range c.extractors {
		lines, err := ex.ExtractLines(ctx, doc)
		if err != nil {
			slog.Warn("Line extraction failed, trying next strategy",
				"extractor", ex.Name(),
				"document", doc.Name,
				"error", err)
			continue
		}
		if len(lines) == 0 {
			continue
		}
		slog.Info("Lines extracted",
			"extractor", ex.Name(),
			"document", doc.Name,
			"count", len(lines))
		return lines
	}

	slog.Warn("All line extractors exhausted, fabricating line from header totals",
		"document", doc.Name)
	return []Line{SyntheticLine(header)}
}

// SyntheticLine builds a stand-in line from header totals.
func SyntheticLine(h Header) Line {
	line := Line{
		Description: h.SupplierName,
		Quantity:    one,
	}
	if line.Description == "" {
		line.Description = "Facture " + h.InvoiceNumber
	}
	if h.TotalHT.Valid {
		line.AmountHT = h.TotalHT.Decimal
		line.UnitPriceHT = h.TotalHT.Decimal
	}
	if h.TotalTVA.Valid {
		line.VATAmount = h.TotalTVA.Decimal
	}
	if h.TotalTTC.Valid {
		line.AmountTTC = h.TotalTTC.Decimal
	}
	if h.VATRate.Valid {
		line.VATRate = h.VATRate.Decimal
	}
	return line
}
