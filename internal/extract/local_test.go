package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

const sampleInvoiceText = `
STE ATLAS FOURNITURES SARL
ICE n° : 001234567 000089
I.F. : 12345678

FACTURE N° FA-2026-0042
Date: 15/03/2026

Total HT : 1 250,00
TVA (20%) : 250,00
Total TTC : 1 500,00
`

func TestLocalExtractor_Header(t *testing.T) {
	ex := NewLocalExtractor()
	doc := Document{Data: []byte(sampleInvoiceText), MIME: "text/plain", Name: "facture.txt"}

	h, err := ex.ExtractHeader(context.Background(), doc)
	if err != nil {
		t.Fatalf("ExtractHeader: %v", err)
	}

	if h.SupplierICE != "001234567000089" {
		t.Errorf("SupplierICE = %q", h.SupplierICE)
	}
	if h.SupplierIF != "12345678" {
		t.Errorf("SupplierIF = %q", h.SupplierIF)
	}
	if h.InvoiceNumber != "FA-2026-0042" {
		t.Errorf("InvoiceNumber = %q", h.InvoiceNumber)
	}
	if h.InvoiceDate == nil || h.InvoiceDate.Format("02/01/2006") != "15/03/2026" {
		t.Errorf("InvoiceDate = %v", h.InvoiceDate)
	}
	if !h.TotalHT.Valid || h.TotalHT.Decimal.String() != "1250" {
		t.Errorf("TotalHT = %v", h.TotalHT)
	}
	if !h.TotalTVA.Valid || h.TotalTVA.Decimal.String() != "250" {
		t.Errorf("TotalTVA = %v", h.TotalTVA)
	}
	if !h.TotalTTC.Valid || h.TotalTTC.Decimal.String() != "1500" {
		t.Errorf("TotalTTC = %v", h.TotalTTC)
	}
	if !h.VATRate.Valid || h.VATRate.Decimal.String() != "20" {
		t.Errorf("VATRate = %v", h.VATRate)
	}
	if h.InvoiceType != model.TypeAchat {
		t.Errorf("InvoiceType = %s", h.InvoiceType)
	}
}

func TestLocalExtractor_DetectsCreditNote(t *testing.T) {
	ex := NewLocalExtractor()
	doc := Document{Data: []byte("AVOIR n° AV-1\nTotal TTC : 120,00"), Name: "avoir.txt"}

	h, err := ex.ExtractHeader(context.Background(), doc)
	if err != nil {
		t.Fatalf("ExtractHeader: %v", err)
	}
	if h.InvoiceType != model.TypeAvoir {
		t.Errorf("InvoiceType = %s, want AVOIR", h.InvoiceType)
	}
}

func TestLocalExtractor_NoFields(t *testing.T) {
	ex := NewLocalExtractor()
	doc := Document{Data: []byte("rien d'utile ici"), MIME: "text/plain"}
	if _, err := ex.ExtractHeader(context.Background(), doc); err == nil {
		t.Error("expected error when nothing matches")
	}
}

func TestLocalExtractor_RejectsBinary(t *testing.T) {
	ex := NewLocalExtractor()
	doc := Document{Data: []byte{0x25, 0x50, 0x44, 0x46}, MIME: "application/pdf"}
	if _, err := ex.ExtractHeader(context.Background(), doc); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for pdf, got %v", err)
	}
}

func TestLocalExtractor_LinesUnsupported(t *testing.T) {
	ex := NewLocalExtractor()
	if _, err := ex.ExtractLines(context.Background(), Document{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1 250,00", "1250", true},
		{"1250.50", "1250.5", true},
		{"250", "250", true},
		{"abc", "", false},
	}
	for _, tt := range tests {
		got, ok := parseAmount(tt.in)
		if ok != tt.ok {
			t.Errorf("parseAmount(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("parseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
