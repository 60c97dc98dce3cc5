package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/model"
)

// SaveJournalEntry persists an entry header and all of its posting lines.
func (s *SQLiteStorage) SaveJournalEntry(ctx context.Context, entry *model.JournalEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEntry(entry); err != nil {
		return err
	}
	return s.saveJournalEntryTx(ctx, s.db, entry)
}

func (s *SQLiteStorage) saveJournalEntryTx(ctx context.Context, q queryable, entry *model.JournalEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO journal_entries (
			id, invoice_id, journal_code, entry_date, reference, description,
			is_validated, total_debit, total_credit, validated_by, validated_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.InvoiceID, entry.JournalCode, entry.EntryDate, entry.Reference, entry.Description,
		entry.IsValidated, entry.TotalDebit, entry.TotalCredit, entry.ValidatedBy, nullTime(entry.ValidatedAt), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save journal entry: %w", err)
	}

	for i := range entry.Lines {
		line := &entry.Lines[i]
		line.EntryID = entry.ID
		if line.Position == 0 {
			line.Position = i + 1
		}

		result, insErr := q.ExecContext(ctx, `
			INSERT INTO entry_lines (
				entry_id, position, account_code, account_label,
				debit, credit, counterparty, counterparty_ice, invoice_line_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			line.EntryID, line.Position, line.AccountCode, line.AccountLabel,
			line.Debit, line.Credit, line.Counterparty, line.CounterpartyICE, line.InvoiceLineID,
		)
		if insErr != nil {
			return fmt.Errorf("failed to save entry line %d: %w", line.Position, insErr)
		}
		if line.ID, insErr = result.LastInsertId(); insErr != nil {
			return fmt.Errorf("failed to get entry line ID: %w", insErr)
		}
	}
	return nil
}

// GetEntriesByInvoice returns all journal entries for an invoice with their
// lines, oldest first.
func (s *SQLiteStorage) GetEntriesByInvoice(ctx context.Context, invoiceID string) ([]model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return nil, err
	}
	return s.getEntriesByInvoiceTx(ctx, s.db, invoiceID)
}

func (s *SQLiteStorage) getEntriesByInvoiceTx(ctx context.Context, q queryable, invoiceID string) ([]model.JournalEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, invoice_id, journal_code, entry_date, reference, description,
			is_validated, total_debit, total_credit, validated_by, validated_at, created_at
		FROM journal_entries
		WHERE invoice_id = ?
		ORDER BY created_at
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.JournalEntry
	for rows.Next() {
		var entry model.JournalEntry
		var validatedAt sql.NullTime
		scanErr := rows.Scan(
			&entry.ID, &entry.InvoiceID, &entry.JournalCode, &entry.EntryDate,
			&entry.Reference, &entry.Description, &entry.IsValidated,
			&entry.TotalDebit, &entry.TotalCredit, &entry.ValidatedBy, &validatedAt, &entry.CreatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", scanErr)
		}
		entry.ValidatedAt = timePtr(validatedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		lines, lineErr := s.getEntryLinesTx(ctx, q, entries[i].ID)
		if lineErr != nil {
			return nil, lineErr
		}
		entries[i].Lines = lines
	}
	return entries, nil
}

func (s *SQLiteStorage) getEntryLinesTx(ctx context.Context, q queryable, entryID string) ([]model.EntryLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, entry_id, position, account_code, account_label,
			debit, credit, counterparty, counterparty_ice, invoice_line_id
		FROM entry_lines
		WHERE entry_id = ?
		ORDER BY position
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []model.EntryLine
	for rows.Next() {
		var line model.EntryLine
		scanErr := rows.Scan(
			&line.ID, &line.EntryID, &line.Position, &line.AccountCode, &line.AccountLabel,
			&line.Debit, &line.Credit, &line.Counterparty, &line.CounterpartyICE, &line.InvoiceLineID,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan entry line: %w", scanErr)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// DeleteDraftEntries removes all non-validated entries for an invoice.
// Validated entries are immutable history.
func (s *SQLiteStorage) DeleteDraftEntries(ctx context.Context, invoiceID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}
	return s.deleteDraftEntriesTx(ctx, s.db, invoiceID)
}

func (s *SQLiteStorage) deleteDraftEntriesTx(ctx context.Context, q queryable, invoiceID string) error {
	if _, err := q.ExecContext(ctx, `
		DELETE FROM entry_lines WHERE entry_id IN (
			SELECT id FROM journal_entries WHERE invoice_id = ? AND is_validated = 0
		)
	`, invoiceID); err != nil {
		return fmt.Errorf("failed to delete draft entry lines: %w", err)
	}

	if _, err := q.ExecContext(ctx, `
		DELETE FROM journal_entries WHERE invoice_id = ? AND is_validated = 0
	`, invoiceID); err != nil {
		return fmt.Errorf("failed to delete draft entries: %w", err)
	}
	return nil
}

// MarkEntriesValidated flips every draft entry of an invoice to validated.
func (s *SQLiteStorage) MarkEntriesValidated(ctx context.Context, invoiceID, validatedBy string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}
	return s.markEntriesValidatedTx(ctx, s.db, invoiceID, validatedBy, at)
}

func (s *SQLiteStorage) markEntriesValidatedTx(ctx context.Context, q queryable, invoiceID, validatedBy string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE journal_entries SET is_validated = 1, validated_by = ?, validated_at = ?
		WHERE invoice_id = ? AND is_validated = 0
	`, validatedBy, at, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to mark entries validated: %w", err)
	}
	return nil
}

// GetJournalEntry fetches one entry with its lines.
func (s *SQLiteStorage) GetJournalEntry(ctx context.Context, entryID string) (*model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(entryID, "entryID"); err != nil {
		return nil, err
	}
	return s.getJournalEntryTx(ctx, s.db, entryID)
}

func (s *SQLiteStorage) getJournalEntryTx(ctx context.Context, q queryable, entryID string) (*model.JournalEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, invoice_id, journal_code, entry_date, reference, description,
			is_validated, total_debit, total_credit, validated_by, validated_at, created_at
		FROM journal_entries
		WHERE id = ?
	`, entryID)

	var entry model.JournalEntry
	var validatedAt sql.NullTime
	err := row.Scan(
		&entry.ID, &entry.InvoiceID, &entry.JournalCode, &entry.EntryDate, &entry.Reference, &entry.Description,
		&entry.IsValidated, &entry.TotalDebit, &entry.TotalCredit, &entry.ValidatedBy, &validatedAt, &entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", entryID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}
	entry.ValidatedAt = timePtr(validatedAt)

	if entry.Lines, err = s.getEntryLinesTx(ctx, q, entry.ID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetEntryLine fetches a single posting line by ID.
func (s *SQLiteStorage) GetEntryLine(ctx context.Context, lineID int64) (*model.EntryLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getEntryLineTx(ctx, s.db, lineID)
}

func (s *SQLiteStorage) getEntryLineTx(ctx context.Context, q queryable, lineID int64) (*model.EntryLine, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, entry_id, position, account_code, account_label,
			debit, credit, counterparty, counterparty_ice, invoice_line_id
		FROM entry_lines
		WHERE id = ?
	`, lineID)

	var line model.EntryLine
	err := row.Scan(
		&line.ID, &line.EntryID, &line.Position, &line.AccountCode, &line.AccountLabel,
		&line.Debit, &line.Credit, &line.Counterparty, &line.CounterpartyICE, &line.InvoiceLineID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry line %d: %w", lineID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry line: %w", err)
	}
	return &line, nil
}

// PatchEntryLine applies a partial correction to a posting line and refreshes
// the parent entry's stored totals from its lines.
func (s *SQLiteStorage) PatchEntryLine(ctx context.Context, lineID int64, patch model.EntryLinePatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.patchEntryLineTx(ctx, s.db, lineID, patch)
}

func (s *SQLiteStorage) patchEntryLineTx(ctx context.Context, q queryable, lineID int64, patch model.EntryLinePatch) error {
	line, err := s.getEntryLineTx(ctx, q, lineID)
	if err != nil {
		return err
	}

	patch.Apply(line)
	if !line.WellFormed() {
		return fmt.Errorf("%w: entry line %d has both debit and credit", ErrInvalidEntity, lineID)
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE entry_lines
		SET account_code = ?, account_label = ?, debit = ?, credit = ?, counterparty = ?
		WHERE id = ?
	`, line.AccountCode, line.AccountLabel, line.Debit, line.Credit, line.Counterparty, lineID); err != nil {
		return fmt.Errorf("failed to patch entry line: %w", err)
	}

	lines, err := s.getEntryLinesTx(ctx, q, line.EntryID)
	if err != nil {
		return err
	}
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i := range lines {
		totalDebit = totalDebit.Add(lines[i].Debit)
		totalCredit = totalCredit.Add(lines[i].Credit)
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE journal_entries SET total_debit = ?, total_credit = ? WHERE id = ?
	`, totalDebit, totalCredit, line.EntryID); err != nil {
		return fmt.Errorf("failed to refresh entry totals: %w", err)
	}
	return nil
}
