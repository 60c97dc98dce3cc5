// Package pcm provides the Moroccan chart of accounts (Plan Comptable
// Marocain) reference data. The chart is read-only at pipeline runtime.
package pcm

import (
	"sort"

	"github.com/kasbahsoft/comptaflow/internal/model"
)

// Well-known accounts the journal generator posts to.
const (
	// AccountClients is the generic receivable account (débit on sales).
	AccountClients = "3421"
	// AccountFournisseurs is the generic payable account (crédit on purchases).
	AccountFournisseurs = "4411"
	// AccountVATCollected holds VAT invoiced on sales (État - TVA facturée).
	AccountVATCollected = "4455"
	// AccountVATRecoverable holds recoverable VAT on expenses.
	AccountVATRecoverable = "34552"
	// AccountVATFixedAssets holds recoverable VAT on fixed-asset purchases.
	AccountVATFixedAssets = "34551"
)

// Chart is an in-memory index of PCM accounts by code.
type Chart struct {
	byCode map[string]model.PcmAccount
}

// NewChart builds a chart from a list of accounts.
func NewChart(accounts []model.PcmAccount) *Chart {
	byCode := make(map[string]model.PcmAccount, len(accounts))
	for _, a := range accounts {
		byCode[a.Code] = a
	}
	return &Chart{byCode: byCode}
}

// Get returns the account with the given code, or false if unknown.
func (c *Chart) Get(code string) (*model.PcmAccount, bool) {
	a, ok := c.byCode[code]
	if !ok {
		return nil, false
	}
	return &a, true
}

// Accounts returns all accounts sorted by code.
func (c *Chart) Accounts() []model.PcmAccount {
	out := make([]model.PcmAccount, 0, len(c.byCode))
	for _, a := range c.byCode {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ClassOf returns the PCM class (first digit) of an account code, or 0 when
// the code is empty or malformed.
func ClassOf(code string) int {
	if code == "" {
		return 0
	}
	d := code[0]
	if d < '1' || d > '8' {
		return 0
	}
	return int(d - '0')
}
