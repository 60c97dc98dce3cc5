package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/model"
)

// GetPcmAccount retrieves one chart-of-accounts entry by code.
func (s *SQLiteStorage) GetPcmAccount(ctx context.Context, code string) (*model.PcmAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}
	return s.getPcmAccountTx(ctx, s.db, code)
}

func (s *SQLiteStorage) getPcmAccountTx(ctx context.Context, q queryable, code string) (*model.PcmAccount, error) {
	var account model.PcmAccount
	var accountType, vatKind string

	err := q.QueryRowContext(ctx, `
		SELECT code, label, class, group_code, account_type, is_vat, vat_kind
		FROM pcm_accounts WHERE code = ?
	`, code).Scan(
		&account.Code, &account.Label, &account.Class, &account.GroupCode,
		&accountType, &account.IsVAT, &vatKind,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pcm account %s: %w", code, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pcm account: %w", err)
	}

	account.Type = model.AccountType(accountType)
	account.VATKind = model.VATKind(vatKind)
	return &account, nil
}

// ListPcmAccounts returns the full chart of accounts ordered by code.
func (s *SQLiteStorage) ListPcmAccounts(ctx context.Context) ([]model.PcmAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listPcmAccountsTx(ctx, s.db)
}

func (s *SQLiteStorage) listPcmAccountsTx(ctx context.Context, q queryable) ([]model.PcmAccount, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT code, label, class, group_code, account_type, is_vat, vat_kind
		FROM pcm_accounts ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pcm accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.PcmAccount
	for rows.Next() {
		var account model.PcmAccount
		var accountType, vatKind string
		scanErr := rows.Scan(
			&account.Code, &account.Label, &account.Class, &account.GroupCode,
			&accountType, &account.IsVAT, &vatKind,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan pcm account: %w", scanErr)
		}
		account.Type = model.AccountType(accountType)
		account.VATKind = model.VATKind(vatKind)
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}
