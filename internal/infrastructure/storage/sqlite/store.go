package sqlite

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/id"
	"tombstone/internal/infrastructure/storage"
	"tombstone/internal/softdelete"
)

var _ softdelete.Store = (*Store)(nil)

// Store implements softdelete.Store on SQLite.
type Store struct {
	txm *TxManager
	st  storage.Statements
}

// NewStore creates a store bound to txm.
func NewStore(txm *TxManager) *Store {
	return &Store{txm: txm, st: storage.NewStatements(squirrel.Question)}
}

// TableExists reports whether a table or view named table exists.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	return s.exists(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?", table)
}

// ColumnExists reports whether table has column.
func (s *Store) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	return s.exists(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column)
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	if err := s.txm.GetQuerier(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("introspect: %w", err)
	}
	return n > 0, nil
}

// Insert writes a new row.
func (s *Store) Insert(ctx context.Context, desc *softdelete.TypeDescriptor, rec softdelete.Entity) error {
	q, err := s.st.Insert(desc, rec)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.txm.GetQuerier(ctx).ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", desc.Table, err)
	}
	return nil
}

// Select materializes matching rows into fresh records marked persisted.
func (s *Store) Select(ctx context.Context, desc *softdelete.TypeDescriptor, where squirrel.Sqlizer, limit uint64) ([]softdelete.Entity, error) {
	sql, args, err := s.st.Select(desc, where, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.txm.GetQuerier(ctx).QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", desc.Table, err)
	}
	defer rows.Close()

	scanner := sqlscan.NewRowScanner(rows)
	var out []softdelete.Entity
	for rows.Next() {
		rec := desc.New()
		if err := scanner.Scan(rec); err != nil {
			return nil, fmt.Errorf("scan %s: %w", desc.Table, err)
		}
		rec.Base().MarkPersisted()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", desc.Table, err)
	}
	return out, nil
}

// Count returns the number of matching rows.
func (s *Store) Count(ctx context.Context, table string, where squirrel.Sqlizer) (int64, error) {
	sql, args, err := s.st.Count(table, where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := s.txm.GetQuerier(ctx).QueryRowContext(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// UpdateColumns writes values directly by primary key.
func (s *Store) UpdateColumns(ctx context.Context, table string, recID id.ID, values map[string]any) error {
	return s.execOne(ctx, table, recID, s.st.UpdateColumns(table, recID, values))
}

// AdjustCounter adds delta to a counter column.
func (s *Store) AdjustCounter(ctx context.Context, table string, recID id.ID, column string, delta int) error {
	return s.execOne(ctx, table, recID, s.st.AdjustCounter(table, recID, column, delta))
}

// DeleteRow removes the row physically.
func (s *Store) DeleteRow(ctx context.Context, table string, recID id.ID) error {
	return s.execOne(ctx, table, recID, s.st.Delete(table, recID))
}

func (s *Store) execOne(ctx context.Context, table string, recID id.ID, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}
	res, err := s.txm.GetQuerier(ctx).ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", table, err)
	}
	if n == 0 {
		return apperror.NewNotFound(table, recID.String())
	}
	return nil
}
