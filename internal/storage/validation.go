package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrInvalidEntity = errors.New("invalid entity")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateInvoice(inv *model.Invoice) error {
	if inv == nil {
		return fmt.Errorf("%w: invoice", ErrNilParameter)
	}
	if inv.ID == "" {
		return fmt.Errorf("%w: invoice missing ID", ErrInvalidEntity)
	}
	if inv.SocieteID == 0 {
		return fmt.Errorf("%w: invoice missing societe ID", ErrInvalidEntity)
	}
	if inv.Status == "" {
		return fmt.Errorf("%w: invoice missing status", ErrInvalidEntity)
	}
	return nil
}

func validateEntry(entry *model.JournalEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: entry missing ID", ErrInvalidEntity)
	}
	if entry.InvoiceID == "" {
		return fmt.Errorf("%w: entry missing invoice ID", ErrInvalidEntity)
	}
	if entry.JournalCode == "" {
		return fmt.Errorf("%w: entry missing journal code", ErrInvalidEntity)
	}
	for i := range entry.Lines {
		if !entry.Lines[i].WellFormed() {
			return fmt.Errorf("%w: entry line %d has both debit and credit", ErrInvalidEntity, i+1)
		}
	}
	return nil
}

func validateMapping(mapping *model.SupplierMapping) error {
	if mapping == nil {
		return fmt.Errorf("%w: mapping", ErrNilParameter)
	}
	if mapping.CabinetID == 0 {
		return fmt.Errorf("%w: mapping missing cabinet ID", ErrInvalidEntity)
	}
	if mapping.SupplierICE == "" {
		return fmt.Errorf("%w: mapping missing supplier ICE", ErrInvalidEntity)
	}
	if mapping.AccountCode == "" {
		return fmt.Errorf("%w: mapping missing account code", ErrInvalidEntity)
	}
	return nil
}
