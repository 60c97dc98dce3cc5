package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kasbahsoft/comptaflow/internal/pcm"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS invoices (
					id TEXT PRIMARY KEY,
					societe_id INTEGER NOT NULL,
					cabinet_id INTEGER NOT NULL,
					status TEXT NOT NULL,
					file_ref TEXT NOT NULL,
					original_name TEXT,
					invoice_number TEXT,
					invoice_date DATETIME,
					due_date DATETIME,
					supplier_name TEXT,
					supplier_ice TEXT,
					supplier_if TEXT,
					supplier_address TEXT,
					client_name TEXT,
					client_ice TEXT,
					currency TEXT,
					payment_terms TEXT,
					invoice_type TEXT,
					total_ht TEXT,
					total_tva TEXT,
					total_ttc TEXT,
					compliance_flags TEXT,
					validated_by TEXT,
					validated_at DATETIME,
					reject_reason TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_invoices_societe ON invoices(societe_id, status)`,

				`CREATE TABLE IF NOT EXISTS invoice_lines (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					invoice_id TEXT NOT NULL,
					line_number INTEGER NOT NULL,
					description TEXT,
					quantity TEXT,
					unit TEXT,
					unit_price_ht TEXT,
					amount_ht TEXT,
					vat_rate TEXT,
					vat_amount TEXT,
					amount_ttc TEXT,
					pcm_class INTEGER DEFAULT 0,
					pcm_account_code TEXT,
					pcm_account_label TEXT,
					confidence REAL DEFAULT 0,
					classification_reason TEXT,
					corrected_account_code TEXT,
					is_corrected BOOLEAN DEFAULT 0,
					FOREIGN KEY (invoice_id) REFERENCES invoices(id)
				)`,
				`CREATE INDEX idx_invoice_lines_invoice ON invoice_lines(invoice_id)`,

				`CREATE TABLE IF NOT EXISTS journal_entries (
					id TEXT PRIMARY KEY,
					invoice_id TEXT NOT NULL,
					journal_code TEXT NOT NULL,
					entry_date DATETIME NOT NULL,
					reference TEXT,
					description TEXT,
					is_validated BOOLEAN DEFAULT 0,
					total_debit TEXT,
					total_credit TEXT,
					validated_by TEXT,
					validated_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (invoice_id) REFERENCES invoices(id)
				)`,
				`CREATE INDEX idx_journal_entries_invoice ON journal_entries(invoice_id, is_validated)`,

				`CREATE TABLE IF NOT EXISTS entry_lines (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					entry_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					account_code TEXT NOT NULL,
					account_label TEXT,
					debit TEXT NOT NULL,
					credit TEXT NOT NULL,
					counterparty TEXT,
					counterparty_ice TEXT,
					invoice_line_id INTEGER DEFAULT 0,
					FOREIGN KEY (entry_id) REFERENCES journal_entries(id)
				)`,
				`CREATE INDEX idx_entry_lines_entry ON entry_lines(entry_id)`,

				`CREATE TABLE IF NOT EXISTS supplier_mappings (
					cabinet_id INTEGER NOT NULL,
					supplier_ice TEXT NOT NULL,
					account_code TEXT NOT NULL,
					last_updated DATETIME DEFAULT CURRENT_TIMESTAMP,
					use_count INTEGER DEFAULT 0,
					PRIMARY KEY (cabinet_id, supplier_ice)
				)`,

				`CREATE TABLE IF NOT EXISTS pcm_accounts (
					code TEXT PRIMARY KEY,
					label TEXT NOT NULL,
					class INTEGER NOT NULL,
					group_code TEXT,
					account_type TEXT NOT NULL,
					is_vat BOOLEAN DEFAULT 0,
					vat_kind TEXT
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Seed default PCM chart",
		Up: func(tx *sql.Tx) error {
			for _, account := range pcm.Default().Accounts() {
				_, err := tx.Exec(`
					INSERT OR IGNORE INTO pcm_accounts (code, label, class, group_code, account_type, is_vat, vat_kind)
					VALUES (?, ?, ?, ?, ?, ?, ?)
				`, account.Code, account.Label, account.Class, account.GroupCode, string(account.Type), account.IsVAT, string(account.VATKind))
				if err != nil {
					return fmt.Errorf("failed to seed account %s: %w", account.Code, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Duplicate detection index",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_invoices_duplicate ON invoices(societe_id, invoice_date, total_ttc)`,
				`CREATE INDEX IF NOT EXISTS idx_invoices_supplier_ice ON invoices(supplier_ice)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
