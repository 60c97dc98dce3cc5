// Package extract turns uploaded invoice documents into structured header
// and line fields. Extraction strategies are polymorphic over a common
// interface and tried in priority order; the chain always yields a usable
// result, so extractor failure alone never surfaces to the client.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

// ErrUnsupported signals that a strategy cannot handle the document at all,
// as opposed to having tried and failed.
var ErrUnsupported = errors.New("document not supported by this extractor")

var one = decimal.NewFromInt(1)

// Document is the raw uploaded file.
type Document struct {
	Data []byte
	MIME string
	Name string
}

// Header is the best-effort field set extracted from an invoice header.
// Zero values and invalid decimals mean "not found".
type Header struct {
	InvoiceNumber   string
	InvoiceDate     *time.Time
	DueDate         *time.Time
	SupplierName    string
	SupplierICE     string
	SupplierIF      string
	SupplierAddress string
	ClientName      string
	ClientICE       string
	Currency        string
	PaymentTerms    string
	InvoiceType     model.InvoiceType
	TotalHT         decimal.NullDecimal
	TotalTVA        decimal.NullDecimal
	TotalTTC        decimal.NullDecimal
	VATRate         decimal.NullDecimal
}

// Line is one extracted product or service line.
type Line struct {
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPriceHT decimal.Decimal
	AmountHT    decimal.Decimal
	VATRate     decimal.Decimal
	VATAmount   decimal.Decimal
	AmountTTC   decimal.Decimal
}

// Extractor is one extraction strategy.
type Extractor interface {
	Name() string
	ExtractHeader(ctx context.Context, doc Document) (Header, error)
	ExtractLines(ctx context.Context, doc Document) ([]Line, error)
}
