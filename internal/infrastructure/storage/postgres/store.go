package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/id"
	"tombstone/internal/infrastructure/storage"
	"tombstone/internal/softdelete"
)

var _ softdelete.Store = (*Store)(nil)

// pgForeignKeyViolation is the SQLSTATE raised when a row is still referenced.
const pgForeignKeyViolation = "23503"

// Store implements softdelete.Store on PostgreSQL. Queries run on the
// transaction carried by ctx when there is one.
type Store struct {
	txm *TxManager
	st  storage.Statements
}

// NewStore creates a store bound to txm.
func NewStore(txm *TxManager) *Store {
	return &Store{txm: txm, st: storage.NewStatements(squirrel.Dollar)}
}

// TableExists reports whether a base table or view named table is visible in
// the current schema.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	q := s.st.Builder().
		Select("1").
		From("information_schema.tables").
		Where(squirrel.Expr("table_schema = current_schema()")).
		Where(squirrel.Eq{"table_name": table}).
		Prefix("SELECT EXISTS (").
		Suffix(")")
	return s.exists(ctx, q)
}

// ColumnExists reports whether table has column in the current schema.
func (s *Store) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	q := s.st.Builder().
		Select("1").
		From("information_schema.columns").
		Where(squirrel.Expr("table_schema = current_schema()")).
		Where(squirrel.Eq{"table_name": table, "column_name": column}).
		Prefix("SELECT EXISTS (").
		Suffix(")")
	return s.exists(ctx, q)
}

func (s *Store) exists(ctx context.Context, q squirrel.SelectBuilder) (bool, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var ok bool
	if err := s.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("introspect: %w", err)
	}
	return ok, nil
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
	if _, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return mapError(desc.Table, err)
	}
	return nil
}

// Select materializes matching rows into fresh records marked persisted.
func (s *Store) Select(ctx context.Context, desc *softdelete.TypeDescriptor, where squirrel.Sqlizer, limit uint64) ([]softdelete.Entity, error) {
	sql, args, err := s.st.Select(desc, where, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", desc.Table, err)
	}
	defer rows.Close()

	scanner := pgxscan.NewRowScanner(rows)
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
	if err := s.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
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
	tag, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return mapError(table, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(table, recID.String())
	}
	return nil
}

func mapError(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return apperror.NewConflict(fmt.Sprintf("%s row is still referenced", table)).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	}
	return fmt.Errorf("%s: %w", table, err)
}
