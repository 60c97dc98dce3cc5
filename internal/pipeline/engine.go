// Package pipeline drives invoices through their lifecycle: upload,
// extraction, classification, entry generation, then validation or
// rejection. Each transition runs in its own database transaction; a failed
// step leaves the invoice exactly where it was.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kasbahsoft/comptaflow/internal/classify"
	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/dgi"
	"github.com/kasbahsoft/comptaflow/internal/extract"
	"github.com/kasbahsoft/comptaflow/internal/journal"
	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/service"
)

// Engine orchestrates the invoice pipeline.
type Engine struct {
	store      service.Storage
	chain      *extract.Chain
	classifier *classify.Service
	generator  *journal.Generator
}

// NewEngine wires the pipeline from its collaborators.
func NewEngine(store service.Storage, chain *extract.Chain, classifier *classify.Service, generator *journal.Generator) *Engine {
	return &Engine{
		store:      store,
		chain:      chain,
		classifier: classifier,
		generator:  generator,
	}
}

// Upload registers a document as a new invoice in IMPORTED state. The
// société and cabinet are always taken from the session, never from the
// caller's payload.
func (e *Engine) Upload(ctx context.Context, sess model.Session, filePath string) (*model.Invoice, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, common.NewUserError("a document file is required", nil)
	}

	inv := &model.Invoice{
		ID:           uuid.NewString(),
		SocieteID:    sess.SocieteID,
		CabinetID:    sess.CabinetID,
		Status:       model.StatusImported,
		FileRef:      filePath,
		OriginalName: filepath.Base(filePath),
	}

	if err := e.store.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to register invoice: %w", err)
	}

	slog.Info("Invoice uploaded",
		"invoice_id", inv.ID,
		"societe_id", inv.SocieteID,
		"file", inv.OriginalName)
	return inv, nil
}

// Extract runs the extraction chain over the invoice's document, checks for
// duplicates, computes compliance flags and persists everything atomically.
// Re-running on an already extracted invoice replaces the previous result.
func (e *Engine) Extract(ctx context.Context, sess model.Session, invoiceID string) (*model.Invoice, error) {
	inv, err := e.ownedInvoice(ctx, sess, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := guard("extract", inv.Status, model.StatusImported, model.StatusExtracted); err != nil {
		return nil, err
	}

	doc, err := loadDocument(inv)
	if err != nil {
		return nil, err
	}

	// Oracle calls are slow; keep them outside the transaction.
	header := e.chain.Header(ctx, doc)
	rawLines := e.chain.Lines(ctx, doc, header)

	applyHeader(inv, header)
	lines := toInvoiceLines(inv.ID, rawLines)
	inv.ComplianceFlags = dgi.Validate(dgi.InputFromInvoice(inv, lines))
	inv.Status = model.StatusExtracted

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	dup, err := tx.FindDuplicateInvoice(ctx, service.DuplicateCandidate{
		SocieteID:    inv.SocieteID,
		ExcludeID:    inv.ID,
		InvoiceDate:  inv.InvoiceDate,
		TotalTTC:     inv.TotalTTC,
		SupplierICE:  inv.NormalizedICE(),
		SupplierName: inv.SupplierName,
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate lookup failed: %w", err)
	}
	if dup != nil {
		fields := []string{"date", "total_ttc"}
		if inv.NormalizedICE() != "" {
			fields = append(fields, "supplier_ice")
		} else {
			fields = append(fields, "supplier_name")
		}
		return nil, &common.DuplicateError{ExistingID: dup.ID, Fields: fields}
	}

	if err := tx.UpdateInvoiceHeader(ctx, inv); err != nil {
		return nil, err
	}
	if err := tx.ReplaceInvoiceLines(ctx, inv.ID, lines); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit extraction: %w", err)
	}

	slog.Info("Invoice extracted",
		"invoice_id", inv.ID,
		"lines", len(lines),
		"flags", len(inv.ComplianceFlags))
	return inv, nil
}

// Classify assigns a PCM account to every line of the invoice. Safe to
// re-run: a second pass reclassifies from the current mappings.
func (e *Engine) Classify(ctx context.Context, sess model.Session, invoiceID string) (classify.Result, error) {
	var result classify.Result

	if e.classifier == nil {
		return result, fmt.Errorf("%w: no classification oracle is configured", common.ErrMissingConfig)
	}

	inv, err := e.ownedInvoice(ctx, sess, invoiceID)
	if err != nil {
		return result, err
	}
	if err := guard("classify", inv.Status, model.StatusExtracted, model.StatusClassified); err != nil {
		return result, err
	}

	lines, err := e.store.GetInvoiceLines(ctx, inv.ID)
	if err != nil {
		return result, err
	}
	if len(lines) == 0 {
		return result, common.ErrNoLines
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return result, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err = e.classifier.ClassifyLines(ctx, tx, sess, inv, lines)
	if err != nil {
		return result, err
	}
	if err := tx.UpdateInvoiceStatus(ctx, inv.ID, model.StatusClassified); err != nil {
		return result, err
	}
	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit classification: %w", err)
	}

	slog.Info("Invoice classified",
		"invoice_id", inv.ID,
		"classified", result.Classified,
		"skipped", result.Skipped,
		"from_mapping", result.FromMapping,
		"line_errors", len(result.LineErrors))
	return result, nil
}

// GenerateEntries builds the double-entry posting for the invoice. Existing
// draft entries are discarded and regenerated; validated entries are never
// touched. The balance report is informational here: an unbalanced draft is
// still persisted so the operator can repair it line by line, and only
// validation enforces the balance invariant.
func (e *Engine) GenerateEntries(ctx context.Context, sess model.Session, invoiceID string) (*model.JournalEntry, journal.BalanceReport, error) {
	var report journal.BalanceReport

	inv, err := e.ownedInvoice(ctx, sess, invoiceID)
	if err != nil {
		return nil, report, err
	}
	if err := guard("generate entries for", inv.Status, model.StatusClassified, model.StatusDraft); err != nil {
		return nil, report, err
	}

	lines, err := e.store.GetInvoiceLines(ctx, inv.ID)
	if err != nil {
		return nil, report, err
	}
	if len(lines) == 0 {
		return nil, report, common.ErrNoLines
	}

	// Remember which lines the generator backfills with a default account.
	hadAccount := make([]bool, len(lines))
	for i := range lines {
		hadAccount[i] = lines[i].PcmAccountCode != ""
	}

	entry, report, err := e.generator.Generate(inv, lines)
	if err != nil {
		return nil, report, err
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, report, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.DeleteDraftEntries(ctx, inv.ID); err != nil {
		return nil, report, err
	}
	if err := tx.SaveJournalEntry(ctx, entry); err != nil {
		return nil, report, err
	}
	for i := range lines {
		if hadAccount[i] || lines[i].PcmAccountCode == "" {
			continue
		}
		if err := tx.UpdateLineClassification(ctx, &lines[i]); err != nil {
			return nil, report, err
		}
	}
	if err := tx.UpdateInvoiceStatus(ctx, inv.ID, model.StatusDraft); err != nil {
		return nil, report, err
	}
	if err := tx.Commit(); err != nil {
		return nil, report, fmt.Errorf("failed to commit entry generation: %w", err)
	}

	if !report.Balanced {
		slog.Warn("Journal entry generated unbalanced",
			"invoice_id", inv.ID,
			"entry_id", entry.ID,
			"difference", report.Difference.StringFixed(2))
	} else {
		slog.Info("Journal entry generated",
			"invoice_id", inv.ID,
			"entry_id", entry.ID,
			"journal", entry.JournalCode,
			"total_debit", entry.TotalDebit.StringFixed(2))
	}
	return entry, report, nil
}

// Validate confirms the invoice's draft entries. Every draft entry must
// balance or nothing is validated. Validation also feeds the classification
// loop: the supplier's account mapping is learned from the invoice's lines.
func (e *Engine) Validate(ctx context.Context, sess model.Session, invoiceID, validatedBy string) error {
	inv, err := e.ownedInvoice(ctx, sess, invoiceID)
	if err != nil {
		return err
	}
	if err := guard("validate", inv.Status, model.StatusDraft, model.StatusClassified); err != nil {
		return err
	}
	if strings.TrimSpace(validatedBy) == "" {
		validatedBy = sess.Username
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	entries, err := tx.GetEntriesByInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	drafts := 0
	for i := range entries {
		if entries[i].IsValidated {
			continue
		}
		drafts++
		report := journal.CheckEntry(&entries[i])
		if !report.Balanced {
			return &common.ImbalanceError{
				EntryID:     entries[i].ID,
				TotalDebit:  report.TotalDebit,
				TotalCredit: report.TotalCredit,
				Difference:  report.Difference,
			}
		}
	}
	if drafts == 0 {
		return common.ErrNoDraftEntries
	}

	now := time.Now()
	if err := tx.MarkEntriesValidated(ctx, inv.ID, validatedBy, now); err != nil {
		return err
	}
	if err := tx.MarkInvoiceValidated(ctx, inv.ID, validatedBy, now); err != nil {
		return err
	}

	lines, err := tx.GetInvoiceLines(ctx, inv.ID)
	if err != nil {
		return err
	}
	if err := classify.RecordMapping(ctx, tx, sess.CabinetID, inv, lines); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit validation: %w", err)
	}

	slog.Info("Invoice validated",
		"invoice_id", inv.ID,
		"validated_by", validatedBy,
		"entries", drafts)
	return nil
}

// Reject pushes the invoice into the terminal ERROR state. A reason is
// mandatory: rejected invoices are audit trail, not garbage.
func (e *Engine) Reject(ctx context.Context, sess model.Session, invoiceID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return common.ErrReasonRequired
	}

	inv, err := e.ownedInvoice(ctx, sess, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status.IsTerminal() {
		return &common.TransitionError{
			Operation: "reject",
			From:      string(inv.Status),
			Allowed:   nonTerminalStates(),
		}
	}

	if err := e.store.MarkInvoiceRejected(ctx, inv.ID, reason); err != nil {
		return err
	}

	slog.Info("Invoice rejected", "invoice_id", inv.ID, "reason", reason)
	return nil
}

// CorrectLine applies a manual correction to one invoice line. Allowed any
// time before the invoice reaches a terminal state; a corrected account code
// takes precedence over the classifier's from then on.
func (e *Engine) CorrectLine(ctx context.Context, sess model.Session, invoiceID string, lineID int64, patch model.LinePatch) (*model.InvoiceLine, error) {
	inv, err := e.ownedInvoice(ctx, sess, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status.IsTerminal() {
		return nil, &common.TransitionError{
			Operation: "correct a line of",
			From:      string(inv.Status),
			Allowed:   nonTerminalStates(),
		}
	}

	line, err := e.store.GetInvoiceLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.InvoiceID != inv.ID {
		return nil, fmt.Errorf("line %d: %w", lineID, common.ErrNotFound)
	}

	if err := e.store.PatchInvoiceLine(ctx, lineID, patch); err != nil {
		return nil, err
	}
	return e.store.GetInvoiceLine(ctx, lineID)
}

// CorrectEntryLine applies a manual correction to one posting line of a
// draft entry. Validated entries are immutable; a correction that breaks
// the balance is caught at validation, not here.
func (e *Engine) CorrectEntryLine(ctx context.Context, sess model.Session, invoiceID string, lineID int64, patch model.EntryLinePatch) (*model.EntryLine, error) {
	inv, err := e.ownedInvoice(ctx, sess, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status.IsTerminal() {
		return nil, &common.TransitionError{
			Operation: "correct an entry line of",
			From:      string(inv.Status),
			Allowed:   nonTerminalStates(),
		}
	}

	line, err := e.store.GetEntryLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	entry, err := e.store.GetJournalEntry(ctx, line.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.InvoiceID != inv.ID {
		return nil, fmt.Errorf("entry line %d: %w", lineID, common.ErrNotFound)
	}
	if entry.IsValidated {
		return nil, common.ErrEntryValidated
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.PatchEntryLine(ctx, lineID, patch); err != nil {
		return nil, err
	}
	line, err = tx.GetEntryLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entry line correction: %w", err)
	}
	return line, nil
}

// GetInvoice returns an invoice the session is allowed to see.
func (e *Engine) GetInvoice(ctx context.Context, sess model.Session, invoiceID string) (*model.Invoice, error) {
	return e.ownedInvoice(ctx, sess, invoiceID)
}

// GetInvoiceLines returns the invoice's lines with their classification.
func (e *Engine) GetInvoiceLines(ctx context.Context, sess model.Session, invoiceID string) ([]model.InvoiceLine, error) {
	if _, err := e.ownedInvoice(ctx, sess, invoiceID); err != nil {
		return nil, err
	}
	return e.store.GetInvoiceLines(ctx, invoiceID)
}

// GetEntries returns the invoice's journal entries with their lines.
func (e *Engine) GetEntries(ctx context.Context, sess model.Session, invoiceID string) ([]model.JournalEntry, error) {
	if _, err := e.ownedInvoice(ctx, sess, invoiceID); err != nil {
		return nil, err
	}
	return e.store.GetEntriesByInvoice(ctx, invoiceID)
}

// ListInvoices lists the session's société invoices.
func (e *Engine) ListInvoices(ctx context.Context, sess model.Session, filter service.InvoiceFilter) ([]model.Invoice, error) {
	return e.store.ListInvoices(ctx, sess.SocieteID, filter)
}

// ownedInvoice fetches an invoice and enforces tenant isolation: an invoice
// from another société is indistinguishable from a missing one.
func (e *Engine) ownedInvoice(ctx context.Context, sess model.Session, invoiceID string) (*model.Invoice, error) {
	inv, err := e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.SocieteID != sess.SocieteID {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, common.ErrNotFound)
	}
	return inv, nil
}

func guard(op string, from model.InvoiceStatus, allowed ...model.InvoiceStatus) error {
	for _, a := range allowed {
		if from == a {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return &common.TransitionError{Operation: op, From: string(from), Allowed: names}
}

func nonTerminalStates() []string {
	return []string{
		string(model.StatusImported),
		string(model.StatusExtracted),
		string(model.StatusClassified),
		string(model.StatusDraft),
	}
}

func loadDocument(inv *model.Invoice) (extract.Document, error) {
	data, err := os.ReadFile(inv.FileRef)
	if err != nil {
		return extract.Document{}, fmt.Errorf("failed to read document %s: %w", inv.FileRef, err)
	}
	return extract.Document{
		Data: data,
		MIME: mime.TypeByExtension(filepath.Ext(inv.FileRef)),
		Name: inv.OriginalName,
	}, nil
}

func applyHeader(inv *model.Invoice, h extract.Header) {
	inv.InvoiceNumber = h.InvoiceNumber
	inv.InvoiceDate = h.InvoiceDate
	inv.DueDate = h.DueDate
	inv.SupplierName = h.SupplierName
	inv.SupplierICE = model.DigitsOnly(h.SupplierICE)
	inv.SupplierIF = h.SupplierIF
	inv.SupplierAddress = h.SupplierAddress
	inv.ClientName = h.ClientName
	inv.ClientICE = model.DigitsOnly(h.ClientICE)
	inv.Currency = h.Currency
	inv.PaymentTerms = h.PaymentTerms
	inv.InvoiceType = h.InvoiceType
	if inv.InvoiceType == "" {
		inv.InvoiceType = model.TypeAchat
	}
	inv.TotalHT = h.TotalHT
	inv.TotalTVA = h.TotalTVA
	inv.TotalTTC = h.TotalTTC
}

func toInvoiceLines(invoiceID string, raw []extract.Line) []model.InvoiceLine {
	lines := make([]model.InvoiceLine, len(raw))
	for i, r := range raw {
		lines[i] = model.InvoiceLine{
			InvoiceID:   invoiceID,
			LineNumber:  i + 1,
			Description: r.Description,
			Quantity:    r.Quantity,
			Unit:        r.Unit,
			UnitPriceHT: r.UnitPriceHT,
			AmountHT:    r.AmountHT,
			VATRate:     r.VATRate,
			VATAmount:   r.VATAmount,
			AmountTTC:   r.AmountTTC,
		}
	}
	return lines
}
