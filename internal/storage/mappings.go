package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/model"
)

func mappingCacheKey(cabinetID int64, supplierICE string) string {
	return fmt.Sprintf("%d|%s", cabinetID, supplierICE)
}

// GetSupplierMapping looks up the learned account for a supplier within a
// cabinet. Served from the in-memory cache when possible.
func (s *SQLiteStorage) GetSupplierMapping(ctx context.Context, cabinetID int64, supplierICE string) (*model.SupplierMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(supplierICE, "supplierICE"); err != nil {
		return nil, err
	}

	s.cacheMutex.RLock()
	cached, ok := s.mappingCache[mappingCacheKey(cabinetID, supplierICE)]
	s.cacheMutex.RUnlock()
	if ok {
		copied := *cached
		return &copied, nil
	}

	mapping, err := s.getSupplierMappingTx(ctx, s.db, cabinetID, supplierICE)
	if err != nil {
		return nil, err
	}
	s.cacheMapping(mapping)
	return mapping, nil
}

func (s *SQLiteStorage) getSupplierMappingTx(ctx context.Context, q queryable, cabinetID int64, supplierICE string) (*model.SupplierMapping, error) {
	var mapping model.SupplierMapping
	err := q.QueryRowContext(ctx, `
		SELECT cabinet_id, supplier_ice, account_code, last_updated, use_count
		FROM supplier_mappings
		WHERE cabinet_id = ? AND supplier_ice = ?
	`, cabinetID, supplierICE).Scan(
		&mapping.CabinetID, &mapping.SupplierICE, &mapping.AccountCode,
		&mapping.LastUpdated, &mapping.UseCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("supplier mapping %s: %w", supplierICE, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier mapping: %w", err)
	}
	return &mapping, nil
}

// SaveSupplierMapping upserts a cabinet's supplier-to-account mapping and
// refreshes the cache.
func (s *SQLiteStorage) SaveSupplierMapping(ctx context.Context, mapping *model.SupplierMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMapping(mapping); err != nil {
		return err
	}
	if err := s.saveSupplierMappingTx(ctx, s.db, mapping); err != nil {
		return err
	}
	s.cacheMapping(mapping)
	return nil
}

func (s *SQLiteStorage) saveSupplierMappingTx(ctx context.Context, q queryable, mapping *model.SupplierMapping) error {
	if mapping.LastUpdated.IsZero() {
		mapping.LastUpdated = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO supplier_mappings (cabinet_id, supplier_ice, account_code, last_updated, use_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cabinet_id, supplier_ice) DO UPDATE SET
			account_code = excluded.account_code,
			last_updated = excluded.last_updated,
			use_count = excluded.use_count
	`, mapping.CabinetID, mapping.SupplierICE, mapping.AccountCode, mapping.LastUpdated, mapping.UseCount)
	if err != nil {
		return fmt.Errorf("failed to save supplier mapping: %w", err)
	}
	return nil
}

// ListSupplierMappings returns every learned mapping for a cabinet, most
// recently updated first.
func (s *SQLiteStorage) ListSupplierMappings(ctx context.Context, cabinetID int64) ([]model.SupplierMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listSupplierMappingsTx(ctx, s.db, cabinetID)
}

func (s *SQLiteStorage) listSupplierMappingsTx(ctx context.Context, q queryable, cabinetID int64) ([]model.SupplierMapping, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT cabinet_id, supplier_ice, account_code, last_updated, use_count
		FROM supplier_mappings
		WHERE cabinet_id = ?
		ORDER BY last_updated DESC
	`, cabinetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.SupplierMapping
	for rows.Next() {
		var mapping model.SupplierMapping
		scanErr := rows.Scan(
			&mapping.CabinetID, &mapping.SupplierICE, &mapping.AccountCode,
			&mapping.LastUpdated, &mapping.UseCount,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan supplier mapping: %w", scanErr)
		}
		mappings = append(mappings, mapping)
	}
	return mappings, rows.Err()
}

// DeleteSupplierMapping removes a learned mapping and purges it from cache.
func (s *SQLiteStorage) DeleteSupplierMapping(ctx context.Context, cabinetID int64, supplierICE string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(supplierICE, "supplierICE"); err != nil {
		return err
	}
	if err := s.deleteSupplierMappingTx(ctx, s.db, cabinetID, supplierICE); err != nil {
		return err
	}
	s.cacheMutex.Lock()
	delete(s.mappingCache, mappingCacheKey(cabinetID, supplierICE))
	s.cacheMutex.Unlock()
	return nil
}

func (s *SQLiteStorage) deleteSupplierMappingTx(ctx context.Context, q queryable, cabinetID int64, supplierICE string) error {
	result, err := q.ExecContext(ctx, `
		DELETE FROM supplier_mappings WHERE cabinet_id = ? AND supplier_ice = ?
	`, cabinetID, supplierICE)
	if err != nil {
		return fmt.Errorf("failed to delete supplier mapping: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("supplier mapping %s: %w", supplierICE, common.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStorage) cacheMapping(mapping *model.SupplierMapping) {
	if mapping == nil {
		return
	}
	copied := *mapping
	s.cacheMutex.Lock()
	s.mappingCache[mappingCacheKey(mapping.CabinetID, mapping.SupplierICE)] = &copied
	s.cacheMutex.Unlock()
}

// invalidateMappingCache drops the whole cache. Called after transactional
// writes that may have touched mappings.
func (s *SQLiteStorage) invalidateMappingCache() {
	s.cacheMutex.Lock()
	s.mappingCache = make(map[string]*model.SupplierMapping)
	s.cacheMutex.Unlock()
}
