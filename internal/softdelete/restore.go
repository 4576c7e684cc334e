package softdelete

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/id"
	"tombstone/pkg/logger"
)

// RestoreOptions controls Restore.
type RestoreOptions struct {
	// Recursive also restores dependent associations.
	Recursive bool `json:"recursive"`
}

// RestoreByIDs restores every listed record of typeName from the Deleted
// scope and returns them in argument order.
//
// Arguments may be ids, id strings, slices of either, or records. Records are
// deprecated and reduced to their id. The batch runs in one transaction and
// stops at the first id with no deleted record, returning NotFound; nothing
// is restored in that case.
func (e *Engine) RestoreByIDs(ctx context.Context, typeName string, opts RestoreOptions, ids ...any) ([]Entity, error) {
	scopes, err := e.reg.Scopes(ctx, typeName)
	if err != nil {
		return nil, err
	}
	if !scopes.Enrolled() {
		return nil, apperror.NewNotSoftDeletable(typeName)
	}

	keys, err := normalizeIDs(ctx, typeName, ids)
	if err != nil {
		return nil, err
	}

	restored := make([]Entity, 0, len(keys))
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, key := range keys {
			rec, err := e.first(ctx, scopes.desc, Where(squirrel.Eq{DefaultKeyColumn: key}, scopes.Deleted()), key)
			if err != nil {
				return err
			}
			if _, err := e.Restore(ctx, rec, opts); err != nil {
				return err
			}
			restored = append(restored, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func normalizeIDs(ctx context.Context, typeName string, args []any) ([]id.ID, error) {
	var (
		out        []id.ID
		deprecated bool
	)

	var walk func(v any) error
	walk = func(v any) error {
		switch t := v.(type) {
		case Entity:
			deprecated = true
			out = append(out, t.Base().ID)
		case []any:
			for _, item := range t {
				if err := walk(item); err != nil {
					return err
				}
			}
		case []id.ID:
			out = append(out, t...)
		case []string:
			for _, s := range t {
				if err := walk(s); err != nil {
					return err
				}
			}
		case []Entity:
			for _, rec := range t {
				if err := walk(rec); err != nil {
					return err
				}
			}
		default:
			key, ok, err := id.FromValue(v)
			if err != nil {
				return apperror.NewInvalidInput("id", fmt.Sprint(v)).WithCause(err)
			}
			if !ok {
				return apperror.NewInvalidInput("id", v)
			}
			out = append(out, key)
		}
		return nil
	}

	for _, arg := range args {
		if err := walk(arg); err != nil {
			return nil, err
		}
	}

	if deprecated {
		logger.Warn(ctx, "passing records to RestoreByIDs is deprecated, pass their ids",
			"entity", typeName,
		)
	}
	if len(out) == 0 {
		return nil, apperror.NewValidation("no ids to restore")
	}
	return out, nil
}
