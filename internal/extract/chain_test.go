package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// stubExtractor returns canned results.
type stubExtractor struct {
	name      string
	header    Header
	headerErr error
	lines     []Line
	linesErr  error
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) ExtractHeader(_ context.Context, _ Document) (Header, error) {
	return s.header, s.headerErr
}

func (s *stubExtractor) ExtractLines(_ context.Context, _ Document) ([]Line, error) {
	return s.lines, s.linesErr
}

func TestChain_HeaderFallsBack(t *testing.T) {
	want := Header{InvoiceNumber: "FA-1"}
	chain := NewChain(
		&stubExtractor{name: "first", headerErr: errors.New("boom")},
		&stubExtractor{name: "second", header: want},
	)

	got := chain.Header(context.Background(), Document{Name: "doc"})
	if got.InvoiceNumber != "FA-1" {
		t.Errorf("header = %+v, want second extractor's result", got)
	}
}

func TestChain_HeaderNeverFails(t *testing.T) {
	chain := NewChain(
		&stubExtractor{name: "first", headerErr: errors.New("boom")},
		&stubExtractor{name: "second", headerErr: ErrUnsupported},
	)

	got := chain.Header(context.Background(), Document{Name: "doc"})
	if got != (Header{}) {
		t.Errorf("exhausted chain must return empty header, got %+v", got)
	}
}

func TestChain_HeaderPriorityOrder(t *testing.T) {
	chain := NewChain(
		&stubExtractor{name: "first", header: Header{InvoiceNumber: "FIRST"}},
		&stubExtractor{name: "second", header: Header{InvoiceNumber: "SECOND"}},
	)

	got := chain.Header(context.Background(), Document{})
	if got.InvoiceNumber != "FIRST" {
		t.Errorf("first successful strategy wins, got %q", got.InvoiceNumber)
	}
}

func TestChain_LinesFallBackToSynthetic(t *testing.T) {
	chain := NewChain(
		&stubExtractor{name: "first", linesErr: ErrUnsupported},
		&stubExtractor{name: "second", lines: nil}, // success but empty
	)

	header := Header{
		SupplierName: "Maroc Telecom",
		TotalHT:      decimal.NewNullDecimal(decimal.RequireFromString("1000.00")),
		TotalTVA:     decimal.NewNullDecimal(decimal.RequireFromString("200.00")),
		TotalTTC:     decimal.NewNullDecimal(decimal.RequireFromString("1200.00")),
	}
	lines := chain.Lines(context.Background(), Document{}, header)

	if len(lines) != 1 {
		t.Fatalf("expected 1 synthetic line, got %d", len(lines))
	}
	if lines[0].Description != "Maroc Telecom" {
		t.Errorf("Description = %q", lines[0].Description)
	}
	if !lines[0].AmountHT.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("AmountHT = %s", lines[0].AmountHT)
	}
	if !lines[0].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Quantity = %s", lines[0].Quantity)
	}
}

func TestSyntheticLine_FallbackDescription(t *testing.T) {
	line := SyntheticLine(Header{InvoiceNumber: "FA-7"})
	if line.Description != "Facture FA-7" {
		t.Errorf("Description = %q", line.Description)
	}
}
