// Package classify assigns PCM accounts to invoice lines. Classification is
// mapping-first: a supplier whose invoices were validated before is resolved
// deterministically from the cabinet's supplier mappings; everything else is
// delegated line by line to the AI oracle.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/service"

	"github.com/shopspring/decimal"
)

// Oracle defines the contract for the external classification capability.
type Oracle interface {
	ClassifyLine(ctx context.Context, description string, amountHT decimal.Decimal, invoiceType model.InvoiceType) (service.ClassificationSuggestion, error)
}

// LineError reports a per-line classification failure. One bad line never
// blocks the rest of the batch.
type LineError struct {
	LineNumber int
	Err        error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.LineNumber, e.Err)
}

// Result summarizes one classification pass over an invoice.
type Result struct {
	Classified  int
	Skipped     int
	FromMapping bool
	LineErrors  []LineError
}

// Service classifies invoice lines.
type Service struct {
	oracle Oracle
}

// NewService creates a classifier backed by the given oracle.
func NewService(oracle Oracle) *Service {
	return &Service{oracle: oracle}
}

// ClassifyLines assigns a PCM account to each line of the invoice and writes
// the assignments through store. Callers pass a transaction as store so the
// whole batch commits together.
func (s *Service) ClassifyLines(ctx context.Context, store service.Storage, sess model.Session, inv *model.Invoice, lines []model.InvoiceLine) (Result, error) {
	var result Result

	if mapping := s.lookupMapping(ctx, store, sess.CabinetID, inv); mapping != nil {
		account, err := store.GetPcmAccount(ctx, mapping.AccountCode)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return result, fmt.Errorf("failed to resolve mapped account: %w", err)
		}
		if account != nil {
			if err := s.applyMapping(ctx, store, inv, lines, mapping, account); err != nil {
				return result, err
			}
			result.Classified = len(lines)
			result.FromMapping = true
			return result, nil
		}
		// The learned account disappeared from the chart; fall through to
		// the oracle and let the next validation relearn the mapping.
		slog.Warn("supplier mapping points at unknown account, ignoring",
			"cabinet_id", mapping.CabinetID,
			"supplier_ice", mapping.SupplierICE,
			"account", mapping.AccountCode)
	}

	for i := range lines {
		line := &lines[i]
		if strings.TrimSpace(line.Description) == "" {
			result.Skipped++
			continue
		}

		suggestion, err := s.oracle.ClassifyLine(ctx, line.Description, line.AmountHT, inv.InvoiceType)
		if err != nil {
			result.LineErrors = append(result.LineErrors, LineError{LineNumber: line.LineNumber, Err: err})
			slog.Warn("line classification failed",
				"invoice_id", inv.ID,
				"line", line.LineNumber,
				"error", err)
			continue
		}

		line.PcmClass = suggestion.PcmClass
		line.PcmAccountCode = suggestion.AccountCode
		line.PcmAccountLabel = suggestion.AccountLabel
		line.Confidence = suggestion.Confidence
		line.ClassificationReason = suggestion.Reason

		if err := store.UpdateLineClassification(ctx, line); err != nil {
			return result, fmt.Errorf("failed to save line classification: %w", err)
		}
		result.Classified++
	}

	return result, nil
}

// lookupMapping fetches the cabinet's learned mapping for the invoice's
// supplier, or nil when there is none.
func (s *Service) lookupMapping(ctx context.Context, store service.Storage, cabinetID int64, inv *model.Invoice) *model.SupplierMapping {
	ice := inv.NormalizedICE()
	if ice == "" {
		return nil
	}

	mapping, err := store.GetSupplierMapping(ctx, cabinetID, ice)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			slog.Warn("supplier mapping lookup failed", "supplier_ice", ice, "error", err)
		}
		return nil
	}
	return mapping
}

// applyMapping assigns the learned account to every line of the invoice with
// full confidence, and bumps the mapping's use count.
func (s *Service) applyMapping(ctx context.Context, store service.Storage, inv *model.Invoice, lines []model.InvoiceLine, mapping *model.SupplierMapping, account *model.PcmAccount) error {
	reason := fmt.Sprintf("learned from supplier ICE %s", mapping.SupplierICE)

	for i := range lines {
		line := &lines[i]
		line.PcmClass = account.Class
		line.PcmAccountCode = account.Code
		line.PcmAccountLabel = account.Label
		line.Confidence = 1.0
		line.ClassificationReason = reason

		if err := store.UpdateLineClassification(ctx, line); err != nil {
			return fmt.Errorf("failed to save line classification: %w", err)
		}
	}

	mapping.UseCount += len(lines)
	mapping.LastUpdated = time.Now()
	if err := store.SaveSupplierMapping(ctx, mapping); err != nil {
		// Use-count bookkeeping only; the classification itself stands.
		slog.Warn("failed to update mapping use count", "supplier_ice", mapping.SupplierICE, "error", err)
	}

	slog.Info("invoice classified from supplier mapping",
		"invoice_id", inv.ID,
		"supplier_ice", mapping.SupplierICE,
		"account", account.Code,
		"lines", len(lines))

	return nil
}

// RecordMapping is the write side of the feedback loop, called when an
// invoice is validated. The FIRST line's effective account (manual
// correction takes precedence) becomes the supplier's learned account.
// Suppliers are assumed mono-category.
func RecordMapping(ctx context.Context, store service.Storage, cabinetID int64, inv *model.Invoice, lines []model.InvoiceLine) error {
	ice := inv.NormalizedICE()
	if ice == "" || len(lines) == 0 {
		return nil
	}

	accountCode := lines[0].AccountCode()
	if accountCode == "" {
		return nil
	}

	mapping, err := store.GetSupplierMapping(ctx, cabinetID, ice)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to look up supplier mapping: %w", err)
	}

	if mapping == nil {
		mapping = &model.SupplierMapping{
			CabinetID:   cabinetID,
			SupplierICE: ice,
		}
	}
	mapping.AccountCode = accountCode
	mapping.LastUpdated = time.Now()

	if err := store.SaveSupplierMapping(ctx, mapping); err != nil {
		return fmt.Errorf("failed to save supplier mapping: %w", err)
	}

	slog.Info("supplier mapping learned",
		"cabinet_id", cabinetID,
		"supplier_ice", ice,
		"account", accountCode)

	return nil
}
