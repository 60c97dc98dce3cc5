// Package storage provides the data persistence layer for the comptaflow
// pipeline.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// queryable abstracts over *sql.DB and *sql.Tx so the same queries serve
// both direct calls and transactional ones.
type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db           *sql.DB
	dbPath       string
	mappingCache map[string]*model.SupplierMapping
	cacheMutex   sync.RWMutex
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:           db,
		dbPath:       dbPath,
		mappingCache: make(map[string]*model.SupplierMapping),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}
	// The transaction may have rewritten mappings the cache still holds.
	t.storage.invalidateMappingCache()
	return nil
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Storage methods delegate to the main storage with the transaction.

func (t *sqliteTransaction) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInvoice(inv); err != nil {
		return err
	}
	return t.storage.createInvoiceTx(ctx, t.tx, inv)
}

func (t *sqliteTransaction) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getInvoiceTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) UpdateInvoiceHeader(ctx context.Context, inv *model.Invoice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInvoice(inv); err != nil {
		return err
	}
	return t.storage.updateInvoiceHeaderTx(ctx, t.tx, inv)
}

func (t *sqliteTransaction) UpdateInvoiceStatus(ctx context.Context, id string, status model.InvoiceStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.updateInvoiceStatusTx(ctx, t.tx, id, status)
}

func (t *sqliteTransaction) MarkInvoiceValidated(ctx context.Context, id, validatedBy string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markInvoiceValidatedTx(ctx, t.tx, id, validatedBy, at)
}

func (t *sqliteTransaction) MarkInvoiceRejected(ctx context.Context, id, reason string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markInvoiceRejectedTx(ctx, t.tx, id, reason)
}

func (t *sqliteTransaction) ListInvoices(ctx context.Context, societeID int64, filter service.InvoiceFilter) ([]model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listInvoicesTx(ctx, t.tx, societeID, filter)
}

func (t *sqliteTransaction) FindDuplicateInvoice(ctx context.Context, cand service.DuplicateCandidate) (*model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.findDuplicateInvoiceTx(ctx, t.tx, cand)
}

func (t *sqliteTransaction) ReplaceInvoiceLines(ctx context.Context, invoiceID string, lines []model.InvoiceLine) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}
	return t.storage.replaceInvoiceLinesTx(ctx, t.tx, invoiceID, lines)
}

func (t *sqliteTransaction) GetInvoiceLines(ctx context.Context, invoiceID string) ([]model.InvoiceLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return nil, err
	}
	return t.storage.getInvoiceLinesTx(ctx, t.tx, invoiceID)
}

func (t *sqliteTransaction) UpdateLineClassification(ctx context.Context, line *model.InvoiceLine) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.updateLineClassificationTx(ctx, t.tx, line)
}

func (t *sqliteTransaction) GetInvoiceLine(ctx context.Context, lineID int64) (*model.InvoiceLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getInvoiceLineTx(ctx, t.tx, lineID)
}

func (t *sqliteTransaction) PatchInvoiceLine(ctx context.Context, lineID int64, patch model.LinePatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.patchInvoiceLineTx(ctx, t.tx, lineID, patch)
}

func (t *sqliteTransaction) SaveJournalEntry(ctx context.Context, entry *model.JournalEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEntry(entry); err != nil {
		return err
	}
	return t.storage.saveJournalEntryTx(ctx, t.tx, entry)
}

func (t *sqliteTransaction) GetJournalEntry(ctx context.Context, entryID string) (*model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(entryID, "entryID"); err != nil {
		return nil, err
	}
	return t.storage.getJournalEntryTx(ctx, t.tx, entryID)
}

func (t *sqliteTransaction) GetEntryLine(ctx context.Context, lineID int64) (*model.EntryLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getEntryLineTx(ctx, t.tx, lineID)
}

func (t *sqliteTransaction) PatchEntryLine(ctx context.Context, lineID int64, patch model.EntryLinePatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.patchEntryLineTx(ctx, t.tx, lineID, patch)
}

func (t *sqliteTransaction) GetEntriesByInvoice(ctx context.Context, invoiceID string) ([]model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return nil, err
	}
	return t.storage.getEntriesByInvoiceTx(ctx, t.tx, invoiceID)
}

func (t *sqliteTransaction) DeleteDraftEntries(ctx context.Context, invoiceID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}
	return t.storage.deleteDraftEntriesTx(ctx, t.tx, invoiceID)
}

func (t *sqliteTransaction) MarkEntriesValidated(ctx context.Context, invoiceID, validatedBy string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markEntriesValidatedTx(ctx, t.tx, invoiceID, validatedBy, at)
}

func (t *sqliteTransaction) GetSupplierMapping(ctx context.Context, cabinetID int64, supplierICE string) (*model.SupplierMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(supplierICE, "supplierICE"); err != nil {
		return nil, err
	}
	return t.storage.getSupplierMappingTx(ctx, t.tx, cabinetID, supplierICE)
}

func (t *sqliteTransaction) SaveSupplierMapping(ctx context.Context, mapping *model.SupplierMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMapping(mapping); err != nil {
		return err
	}
	return t.storage.saveSupplierMappingTx(ctx, t.tx, mapping)
}

func (t *sqliteTransaction) ListSupplierMappings(ctx context.Context, cabinetID int64) ([]model.SupplierMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listSupplierMappingsTx(ctx, t.tx, cabinetID)
}

func (t *sqliteTransaction) DeleteSupplierMapping(ctx context.Context, cabinetID int64, supplierICE string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deleteSupplierMappingTx(ctx, t.tx, cabinetID, supplierICE)
}

func (t *sqliteTransaction) GetPcmAccount(ctx context.Context, code string) (*model.PcmAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}
	return t.storage.getPcmAccountTx(ctx, t.tx, code)
}

func (t *sqliteTransaction) ListPcmAccounts(ctx context.Context) ([]model.PcmAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listPcmAccountsTx(ctx, t.tx)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
