package softdelete

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
)

// UniquenessScope narrows a uniqueness check to active rows when typeName is
// enrolled, so soft-deleted rows never collide with live ones. Other types
// get base back unchanged.
func UniquenessScope(ctx context.Context, reg *Registry, typeName string, base squirrel.Sqlizer) (squirrel.Sqlizer, error) {
	scopes, err := reg.Scopes(ctx, typeName)
	if err != nil {
		return nil, err
	}
	if !scopes.Enrolled() {
		return base, nil
	}
	return Where(base, scopes.Active()), nil
}

// ValidateUnique fails with a Duplicate error when another active row of
// rec's type holds the same value in column.
func (e *Engine) ValidateUnique(ctx context.Context, rec Entity, column string) error {
	desc, err := e.reg.Descriptor(rec.EntityType())
	if err != nil {
		return err
	}
	value, ok := entity.ColumnValue(rec, column)
	if !ok {
		return apperror.NewInvalidInput("column", column)
	}

	base := squirrel.And{
		squirrel.Eq{column: value},
		squirrel.NotEq{DefaultKeyColumn: rec.Base().ID},
	}
	where, err := UniquenessScope(ctx, e.reg, desc.Name, base)
	if err != nil {
		return err
	}

	n, err := e.store.Count(ctx, desc.Table, where)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperror.NewDuplicate(desc.Name, column, fmt.Sprint(value))
	}
	return nil
}
