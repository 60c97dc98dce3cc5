// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

// InvoiceFilter defines filtering options for invoice queries.
type InvoiceFilter struct {
	Status model.InvoiceStatus
	Limit  int
	Offset int
}

// DuplicateCandidate carries the identity fields of an invoice about to be
// persisted, for duplicate lookup. Date and TTC must both be present for the
// detector to trigger at all; supplier identity matches prefer ICE and fall
// back to exact name.
type DuplicateCandidate struct {
	SocieteID    int64
	ExcludeID    string
	InvoiceDate  *time.Time
	TotalTTC     decimal.NullDecimal
	SupplierICE  string
	SupplierName string
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Invoice operations
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	UpdateInvoiceHeader(ctx context.Context, inv *model.Invoice) error
	UpdateInvoiceStatus(ctx context.Context, id string, status model.InvoiceStatus) error
	MarkInvoiceValidated(ctx context.Context, id, validatedBy string, at time.Time) error
	MarkInvoiceRejected(ctx context.Context, id, reason string) error
	ListInvoices(ctx context.Context, societeID int64, filter InvoiceFilter) ([]model.Invoice, error)
	FindDuplicateInvoice(ctx context.Context, cand DuplicateCandidate) (*model.Invoice, error)

	// Invoice line operations
	ReplaceInvoiceLines(ctx context.Context, invoiceID string, lines []model.InvoiceLine) error
	GetInvoiceLines(ctx context.Context, invoiceID string) ([]model.InvoiceLine, error)
	UpdateLineClassification(ctx context.Context, line *model.InvoiceLine) error
	GetInvoiceLine(ctx context.Context, lineID int64) (*model.InvoiceLine, error)
	PatchInvoiceLine(ctx context.Context, lineID int64, patch model.LinePatch) error

	// Journal entry operations
	SaveJournalEntry(ctx context.Context, entry *model.JournalEntry) error
	GetJournalEntry(ctx context.Context, entryID string) (*model.JournalEntry, error)
	GetEntriesByInvoice(ctx context.Context, invoiceID string) ([]model.JournalEntry, error)
	GetEntryLine(ctx context.Context, lineID int64) (*model.EntryLine, error)
	PatchEntryLine(ctx context.Context, lineID int64, patch model.EntryLinePatch) error
	DeleteDraftEntries(ctx context.Context, invoiceID string) error
	MarkEntriesValidated(ctx context.Context, invoiceID, validatedBy string, at time.Time) error

	// Supplier mapping operations (classification feedback loop)
	GetSupplierMapping(ctx context.Context, cabinetID int64, supplierICE string) (*model.SupplierMapping, error)
	SaveSupplierMapping(ctx context.Context, mapping *model.SupplierMapping) error
	ListSupplierMappings(ctx context.Context, cabinetID int64) ([]model.SupplierMapping, error)
	DeleteSupplierMapping(ctx context.Context, cabinetID int64, supplierICE string) error

	// PCM reference operations
	GetPcmAccount(ctx context.Context, code string) (*model.PcmAccount, error)
	ListPcmAccounts(ctx context.Context) ([]model.PcmAccount, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// ClassificationSuggestion is a single PCM account assignment produced by
// the classification oracle for one invoice line.
type ClassificationSuggestion struct {
	PcmClass     int
	AccountCode  string
	AccountLabel string
	Confidence   float64
	Reason       string
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
