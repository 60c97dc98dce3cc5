package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/service"
)

// CreateInvoice persists a freshly uploaded invoice.
func (s *SQLiteStorage) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInvoice(inv); err != nil {
		return err
	}
	return s.createInvoiceTx(ctx, s.db, inv)
}

func (s *SQLiteStorage) createInvoiceTx(ctx context.Context, q queryable, inv *model.Invoice) error {
	now := time.Now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	flags, err := marshalFlags(inv.ComplianceFlags)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO invoices (
			id, societe_id, cabinet_id, status, file_ref, original_name,
			invoice_number, invoice_date, due_date,
			supplier_name, supplier_ice, supplier_if, supplier_address,
			client_name, client_ice, currency, payment_terms, invoice_type,
			total_ht, total_tva, total_ttc, compliance_flags,
			validated_by, validated_at, reject_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.ID, inv.SocieteID, inv.CabinetID, string(inv.Status), inv.FileRef, inv.OriginalName,
		inv.InvoiceNumber, nullTime(inv.InvoiceDate), nullTime(inv.DueDate),
		inv.SupplierName, inv.SupplierICE, inv.SupplierIF, inv.SupplierAddress,
		inv.ClientName, inv.ClientICE, inv.Currency, inv.PaymentTerms, string(inv.InvoiceType),
		inv.TotalHT, inv.TotalTVA, inv.TotalTTC, flags,
		inv.ValidatedBy, nullTime(inv.ValidatedAt), inv.RejectReason, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by ID.
func (s *SQLiteStorage) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getInvoiceTx(ctx, s.db, id)
}

const invoiceColumns = `
	id, societe_id, cabinet_id, status, file_ref, original_name,
	invoice_number, invoice_date, due_date,
	supplier_name, supplier_ice, supplier_if, supplier_address,
	client_name, client_ice, currency, payment_terms, invoice_type,
	total_ht, total_tva, total_ttc, compliance_flags,
	validated_by, validated_at, reject_reason, created_at, updated_at`

func (s *SQLiteStorage) getInvoiceTx(ctx context.Context, q queryable, id string) (*model.Invoice, error) {
	row := q.QueryRowContext(ctx, `SELECT`+invoiceColumns+` FROM invoices WHERE id = ?`, id)

	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// UpdateInvoiceHeader rewrites the extracted header fields of an invoice.
func (s *SQLiteStorage) UpdateInvoiceHeader(ctx context.Context, inv *model.Invoice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInvoice(inv); err != nil {
		return err
	}
	return s.updateInvoiceHeaderTx(ctx, s.db, inv)
}

func (s *SQLiteStorage) updateInvoiceHeaderTx(ctx context.Context, q queryable, inv *model.Invoice) error {
	inv.UpdatedAt = time.Now()

	flags, err := marshalFlags(inv.ComplianceFlags)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE invoices SET
			status = ?,
			invoice_number = ?, invoice_date = ?, due_date = ?,
			supplier_name = ?, supplier_ice = ?, supplier_if = ?, supplier_address = ?,
			client_name = ?, client_ice = ?, currency = ?, payment_terms = ?, invoice_type = ?,
			total_ht = ?, total_tva = ?, total_ttc = ?, compliance_flags = ?,
			updated_at = ?
		WHERE id = ?
	`,
		string(inv.Status),
		inv.InvoiceNumber, nullTime(inv.InvoiceDate), nullTime(inv.DueDate),
		inv.SupplierName, inv.SupplierICE, inv.SupplierIF, inv.SupplierAddress,
		inv.ClientName, inv.ClientICE, inv.Currency, inv.PaymentTerms, string(inv.InvoiceType),
		inv.TotalHT, inv.TotalTVA, inv.TotalTTC, flags,
		inv.UpdatedAt, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice header: %w", err)
	}
	return requireRow(result, inv.ID)
}

// UpdateInvoiceStatus moves an invoice to a new lifecycle state.
func (s *SQLiteStorage) UpdateInvoiceStatus(ctx context.Context, id string, status model.InvoiceStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.updateInvoiceStatusTx(ctx, s.db, id, status)
}

func (s *SQLiteStorage) updateInvoiceStatusTx(ctx context.Context, q queryable, id string, status model.InvoiceStatus) error {
	result, err := q.ExecContext(ctx, `
		UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return requireRow(result, id)
}

// MarkInvoiceValidated stamps an invoice validated.
func (s *SQLiteStorage) MarkInvoiceValidated(ctx context.Context, id, validatedBy string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.markInvoiceValidatedTx(ctx, s.db, id, validatedBy, at)
}

func (s *SQLiteStorage) markInvoiceValidatedTx(ctx context.Context, q queryable, id, validatedBy string, at time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE invoices SET status = ?, validated_by = ?, validated_at = ?, updated_at = ? WHERE id = ?
	`, string(model.StatusValidated), validatedBy, at, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark invoice validated: %w", err)
	}
	return requireRow(result, id)
}

// MarkInvoiceRejected moves an invoice to the terminal ERROR state.
func (s *SQLiteStorage) MarkInvoiceRejected(ctx context.Context, id, reason string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.markInvoiceRejectedTx(ctx, s.db, id, reason)
}

func (s *SQLiteStorage) markInvoiceRejectedTx(ctx context.Context, q queryable, id, reason string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE invoices SET status = ?, reject_reason = ?, updated_at = ? WHERE id = ?
	`, string(model.StatusError), reason, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark invoice rejected: %w", err)
	}
	return requireRow(result, id)
}

// ListInvoices returns a société's invoices, optionally filtered by status,
// newest first.
func (s *SQLiteStorage) ListInvoices(ctx context.Context, societeID int64, filter service.InvoiceFilter) ([]model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listInvoicesTx(ctx, s.db, societeID, filter)
}

func (s *SQLiteStorage) listInvoicesTx(ctx context.Context, q queryable, societeID int64, filter service.InvoiceFilter) ([]model.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE societe_id = ?`
	args := []any{societeID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invoices []model.Invoice
	for rows.Next() {
		inv, scanErr := scanInvoice(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", scanErr)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// FindDuplicateInvoice looks for a DIFFERENT invoice in the same société
// with the same date and TTC total and a matching supplier identity (ICE
// preferred, exact name as fallback). Returns nil when the candidate's date
// or TTC is absent: incomplete data never blocks ingestion.
func (s *SQLiteStorage) FindDuplicateInvoice(ctx context.Context, cand service.DuplicateCandidate) (*model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.findDuplicateInvoiceTx(ctx, s.db, cand)
}

func (s *SQLiteStorage) findDuplicateInvoiceTx(ctx context.Context, q queryable, cand service.DuplicateCandidate) (*model.Invoice, error) {
	if cand.InvoiceDate == nil || !cand.TotalTTC.Valid {
		return nil, nil
	}

	// TTC totals are stored as decimal TEXT; compare numerically so
	// "1200" and "1200.00" match.
	query := `SELECT` + invoiceColumns + ` FROM invoices
		WHERE societe_id = ? AND id != ? AND date(invoice_date) = date(?)
		AND CAST(total_ttc AS REAL) = CAST(? AS REAL)`
	args := []any{cand.SocieteID, cand.ExcludeID, *cand.InvoiceDate, cand.TotalTTC}

	switch {
	case cand.SupplierICE != "":
		query += ` AND supplier_ice = ?`
		args = append(args, cand.SupplierICE)
	case cand.SupplierName != "":
		query += ` AND supplier_name = ?`
		args = append(args, cand.SupplierName)
	default:
		return nil, nil
	}
	query += ` LIMIT 1`

	row := q.QueryRowContext(ctx, query, args...)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up duplicate: %w", err)
	}
	return inv, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row scanner) (*model.Invoice, error) {
	var inv model.Invoice
	var status, invoiceType, flagsJSON string
	var invoiceDate, dueDate, validatedAt sql.NullTime

	err := row.Scan(
		&inv.ID, &inv.SocieteID, &inv.CabinetID, &status, &inv.FileRef, &inv.OriginalName,
		&inv.InvoiceNumber, &invoiceDate, &dueDate,
		&inv.SupplierName, &inv.SupplierICE, &inv.SupplierIF, &inv.SupplierAddress,
		&inv.ClientName, &inv.ClientICE, &inv.Currency, &inv.PaymentTerms, &invoiceType,
		&inv.TotalHT, &inv.TotalTVA, &inv.TotalTTC, &flagsJSON,
		&inv.ValidatedBy, &validatedAt, &inv.RejectReason, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = model.InvoiceStatus(status)
	inv.InvoiceType = model.InvoiceType(invoiceType)
	inv.InvoiceDate = timePtr(invoiceDate)
	inv.DueDate = timePtr(dueDate)
	inv.ValidatedAt = timePtr(validatedAt)

	if flagsJSON != "" {
		if err := json.Unmarshal([]byte(flagsJSON), &inv.ComplianceFlags); err != nil {
			return nil, fmt.Errorf("failed to decode compliance flags: %w", err)
		}
	}
	return &inv, nil
}

func marshalFlags(flags []model.ComplianceFlag) (string, error) {
	if len(flags) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(flags)
	if err != nil {
		return "", fmt.Errorf("failed to encode compliance flags: %w", err)
	}
	return string(raw), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("invoice %s: %w", id, common.ErrNotFound)
	}
	return nil
}
