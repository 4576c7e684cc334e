// Package storage holds the statement builders shared by the postgres and
// sqlite stores. Both dialects accept the same SQL apart from placeholders.
package storage

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"

	"github.com/Masterminds/squirrel"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/softdelete"
)

// Statements builds the SQL issued by a softdelete.Store.
type Statements struct {
	sb squirrel.StatementBuilderType
}

// NewStatements creates a builder using the given placeholder format
// (squirrel.Dollar for postgres, squirrel.Question for sqlite).
func NewStatements(ph squirrel.PlaceholderFormat) Statements {
	return Statements{sb: squirrel.StatementBuilder.PlaceholderFormat(ph)}
}

// Builder returns the underlying squirrel builder.
func (s Statements) Builder() squirrel.StatementBuilderType {
	return s.sb
}

// physicalColumn maps a struct column onto the descriptor's configured
// tombstone columns. BaseEntity always tags them with the default names.
func physicalColumn(desc *softdelete.TypeDescriptor, field string) string {
	switch field {
	case softdelete.DefaultFlagColumn:
		return desc.FlagColumn
	case softdelete.DefaultTimestampColumn:
		return desc.TimestampColumn
	default:
		return field
	}
}

// SelectColumns lists the select expressions for desc, aliasing renamed
// tombstone columns back to the struct tag names.
func SelectColumns(desc *softdelete.TypeDescriptor) []string {
	fields := entity.ExtractDBColumns(desc.New())
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if p := physicalColumn(desc, f); p != f {
			cols = append(cols, fmt.Sprintf("%s AS %s", p, f))
			continue
		}
		cols = append(cols, f)
	}
	return cols
}

// Select reads rows of desc matching where (nil = all), ordered by id.
func (s Statements) Select(desc *softdelete.TypeDescriptor, where squirrel.Sqlizer, limit uint64) squirrel.SelectBuilder {
	q := s.sb.Select(SelectColumns(desc)...).
		From(desc.Table).
		OrderBy(softdelete.DefaultKeyColumn)
	if where != nil {
		q = q.Where(where)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// Count counts rows of table matching where.
func (s Statements) Count(table string, where squirrel.Sqlizer) squirrel.SelectBuilder {
	q := s.sb.Select("COUNT(*)").From(table)
	if where != nil {
		q = q.Where(where)
	}
	return q
}

// Insert writes every db-tagged field of rec.
func (s Statements) Insert(desc *softdelete.TypeDescriptor, rec softdelete.Entity) (squirrel.InsertBuilder, error) {
	data := entity.StructToMap(rec)
	if len(data) == 0 {
		return squirrel.InsertBuilder{}, fmt.Errorf("no db tags found in %s", desc.Name)
	}

	fields := make([]string, 0, len(data))
	for f := range data {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	cols := make([]string, 0, len(fields))
	vals := make([]any, 0, len(fields))
	for _, f := range fields {
		v, err := driverValue(data[f])
		if err != nil {
			return squirrel.InsertBuilder{}, fmt.Errorf("column %s: %w", f, err)
		}
		cols = append(cols, physicalColumn(desc, f))
		vals = append(vals, v)
	}

	return s.sb.Insert(desc.Table).Columns(cols...).Values(vals...), nil
}

// UpdateColumns writes values by primary key.
func (s Statements) UpdateColumns(table string, recID id.ID, values map[string]any) squirrel.UpdateBuilder {
	return s.sb.Update(table).
		SetMap(values).
		Where(squirrel.Eq{softdelete.DefaultKeyColumn: recID})
}

// AdjustCounter adds delta to a counter column, treating NULL as zero.
func (s Statements) AdjustCounter(table string, recID id.ID, column string, delta int) squirrel.UpdateBuilder {
	return s.sb.Update(table).
		Set(column, squirrel.Expr(fmt.Sprintf("COALESCE(%s, 0) + ?", column), delta)).
		Where(squirrel.Eq{softdelete.DefaultKeyColumn: recID})
}

// Delete removes a row by primary key.
func (s Statements) Delete(table string, recID id.ID) squirrel.DeleteBuilder {
	return s.sb.Delete(table).
		Where(squirrel.Eq{softdelete.DefaultKeyColumn: recID})
}

// driverValue dereferences pointers and resolves driver.Valuer, leaving
// drivers only plain values to bind.
func driverValue(v any) (any, error) {
	for {
		if v == nil {
			return nil, nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return nil, nil
			}
			v = rv.Elem().Interface()
			continue
		}
		if valuer, ok := v.(driver.Valuer); ok {
			return valuer.Value()
		}
		return v, nil
	}
}
