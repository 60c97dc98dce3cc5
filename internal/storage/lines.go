package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/model"
)

// ReplaceInvoiceLines drops any existing lines for the invoice and inserts
// the given set. Re-extraction always starts from a clean slate.
func (s *SQLiteStorage) ReplaceInvoiceLines(ctx context.Context, invoiceID string, lines []model.InvoiceLine) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}
	return s.replaceInvoiceLinesTx(ctx, s.db, invoiceID, lines)
}

func (s *SQLiteStorage) replaceInvoiceLinesTx(ctx context.Context, q queryable, invoiceID string, lines []model.InvoiceLine) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM invoice_lines WHERE invoice_id = ?`, invoiceID); err != nil {
		return fmt.Errorf("failed to clear invoice lines: %w", err)
	}

	for i := range lines {
		line := &lines[i]
		line.InvoiceID = invoiceID
		if line.LineNumber == 0 {
			line.LineNumber = i + 1
		}

		result, err := q.ExecContext(ctx, `
			INSERT INTO invoice_lines (
				invoice_id, line_number, description, quantity, unit,
				unit_price_ht, amount_ht, vat_rate, vat_amount, amount_ttc,
				pcm_class, pcm_account_code, pcm_account_label, confidence,
				classification_reason, corrected_account_code, is_corrected
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			line.InvoiceID, line.LineNumber, line.Description, line.Quantity, line.Unit,
			line.UnitPriceHT, line.AmountHT, line.VATRate, line.VATAmount, line.AmountTTC,
			line.PcmClass, line.PcmAccountCode, line.PcmAccountLabel, line.Confidence,
			line.ClassificationReason, line.CorrectedAccountCode, line.IsCorrected,
		)
		if err != nil {
			return fmt.Errorf("failed to insert invoice line %d: %w", line.LineNumber, err)
		}
		if line.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get line ID: %w", err)
		}
	}
	return nil
}

const lineColumns = `
	id, invoice_id, line_number, description, quantity, unit,
	unit_price_ht, amount_ht, vat_rate, vat_amount, amount_ttc,
	pcm_class, pcm_account_code, pcm_account_label, confidence,
	classification_reason, corrected_account_code, is_corrected`

// GetInvoiceLines returns the lines of an invoice in extraction order.
func (s *SQLiteStorage) GetInvoiceLines(ctx context.Context, invoiceID string) ([]model.InvoiceLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return nil, err
	}
	return s.getInvoiceLinesTx(ctx, s.db, invoiceID)
}

func (s *SQLiteStorage) getInvoiceLinesTx(ctx context.Context, q queryable, invoiceID string) ([]model.InvoiceLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT`+lineColumns+` FROM invoice_lines WHERE invoice_id = ? ORDER BY line_number
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []model.InvoiceLine
	for rows.Next() {
		line, scanErr := scanLine(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", scanErr)
		}
		lines = append(lines, *line)
	}
	return lines, rows.Err()
}

// GetInvoiceLine retrieves a single line by ID.
func (s *SQLiteStorage) GetInvoiceLine(ctx context.Context, lineID int64) (*model.InvoiceLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getInvoiceLineTx(ctx, s.db, lineID)
}

func (s *SQLiteStorage) getInvoiceLineTx(ctx context.Context, q queryable, lineID int64) (*model.InvoiceLine, error) {
	row := q.QueryRowContext(ctx, `SELECT`+lineColumns+` FROM invoice_lines WHERE id = ?`, lineID)

	line, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice line %d: %w", lineID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice line: %w", err)
	}
	return line, nil
}

// UpdateLineClassification writes the classifier's verdict onto a line.
func (s *SQLiteStorage) UpdateLineClassification(ctx context.Context, line *model.InvoiceLine) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if line == nil {
		return fmt.Errorf("%w: line", ErrNilParameter)
	}
	return s.updateLineClassificationTx(ctx, s.db, line)
}

func (s *SQLiteStorage) updateLineClassificationTx(ctx context.Context, q queryable, line *model.InvoiceLine) error {
	result, err := q.ExecContext(ctx, `
		UPDATE invoice_lines SET
			pcm_class = ?, pcm_account_code = ?, pcm_account_label = ?,
			confidence = ?, classification_reason = ?
		WHERE id = ?
	`, line.PcmClass, line.PcmAccountCode, line.PcmAccountLabel,
		line.Confidence, line.ClassificationReason, line.ID)
	if err != nil {
		return fmt.Errorf("failed to update line classification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("invoice line %d: %w", line.ID, common.ErrNotFound)
	}
	return nil
}

// PatchInvoiceLine applies a partial manual correction to a line.
func (s *SQLiteStorage) PatchInvoiceLine(ctx context.Context, lineID int64, patch model.LinePatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.patchInvoiceLineTx(ctx, s.db, lineID, patch)
}

func (s *SQLiteStorage) patchInvoiceLineTx(ctx context.Context, q queryable, lineID int64, patch model.LinePatch) error {
	line, err := s.getInvoiceLineTx(ctx, q, lineID)
	if err != nil {
		return err
	}
	patch.Apply(line)

	_, err = q.ExecContext(ctx, `
		UPDATE invoice_lines SET
			description = ?, quantity = ?, unit_price_ht = ?, amount_ht = ?,
			vat_rate = ?, vat_amount = ?, amount_ttc = ?,
			corrected_account_code = ?, is_corrected = ?
		WHERE id = ?
	`, line.Description, line.Quantity, line.UnitPriceHT, line.AmountHT,
		line.VATRate, line.VATAmount, line.AmountTTC,
		line.CorrectedAccountCode, line.IsCorrected, lineID)
	if err != nil {
		return fmt.Errorf("failed to patch invoice line: %w", err)
	}
	return nil
}

func scanLine(row scanner) (*model.InvoiceLine, error) {
	var line model.InvoiceLine
	err := row.Scan(
		&line.ID, &line.InvoiceID, &line.LineNumber, &line.Description, &line.Quantity, &line.Unit,
		&line.UnitPriceHT, &line.AmountHT, &line.VATRate, &line.VATAmount, &line.AmountTTC,
		&line.PcmClass, &line.PcmAccountCode, &line.PcmAccountLabel, &line.Confidence,
		&line.ClassificationReason, &line.CorrectedAccountCode, &line.IsCorrected,
	)
	if err != nil {
		return nil, err
	}
	return &line, nil
}
