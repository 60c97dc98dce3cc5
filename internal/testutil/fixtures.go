package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

// TestSession returns a session for the default test tenant.
func TestSession() model.Session {
	return model.Session{
		AgentID:   1,
		CabinetID: 10,
		SocieteID: 100,
		Username:  "agent.test",
		Role:      model.RoleAgent,
	}
}

// NewInvoice builds a minimal extracted purchase invoice for the default
// test tenant. Callers adjust fields as needed.
func NewInvoice() *model.Invoice {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return &model.Invoice{
		ID:            uuid.NewString(),
		SocieteID:     100,
		CabinetID:     10,
		Status:        model.StatusExtracted,
		FileRef:       "/tmp/facture.pdf",
		OriginalName:  "facture.pdf",
		InvoiceNumber: "FA-2026-001",
		InvoiceDate:   &date,
		SupplierName:  "Maroc Telecom",
		SupplierICE:   "001234567000089",
		SupplierIF:    "12345678",
		InvoiceType:   model.TypeAchat,
		TotalHT:       NullDec("1000.00"),
		TotalTVA:      NullDec("200.00"),
		TotalTTC:      NullDec("1200.00"),
	}
}

// NewInvoiceLine builds one classified purchase line.
func NewInvoiceLine(invoiceID string, number int) model.InvoiceLine {
	return model.InvoiceLine{
		InvoiceID:   invoiceID,
		LineNumber:  number,
		Description: "Abonnement internet fibre",
		Quantity:    Dec("1"),
		UnitPriceHT: Dec("1000.00"),
		AmountHT:    Dec("1000.00"),
		VATRate:     Dec("20"),
		VATAmount:   Dec("200.00"),
		AmountTTC:   Dec("1200.00"),
	}
}

// Dec parses a decimal literal, panicking on malformed input. Test-only.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NullDec parses a decimal literal into a valid NullDecimal. Test-only.
func NullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}
