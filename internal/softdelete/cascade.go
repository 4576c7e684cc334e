package softdelete

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/pkg/logger"
)

// ownerFilter matches the children of owner through a HasOne/HasMany association.
func ownerFilter(assoc Association, owner Entity) squirrel.Sqlizer {
	eq := squirrel.Eq{assoc.ForeignKey: owner.Base().ID}
	if assoc.TypeColumn != "" {
		eq[assoc.TypeColumn] = owner.EntityType()
	}
	return eq
}

// foreignID reads the owner id a BelongsTo association points at.
func foreignID(rec Entity, assoc Association) (id.ID, bool, error) {
	v, ok := entity.ColumnValue(rec, assoc.ForeignKey)
	if !ok {
		return id.Nil(), false, fmt.Errorf("%s has no column %s", rec.EntityType(), assoc.ForeignKey)
	}
	return id.FromValue(v)
}

// Association loads the named association of rec under the target's default
// scope and caches the result on the record. HasMany yields []Entity, HasOne
// and BelongsTo yield Entity or nil.
func (e *Engine) Association(ctx context.Context, rec Entity, name string) (any, error) {
	desc, err := e.reg.Descriptor(rec.EntityType())
	if err != nil {
		return nil, err
	}
	var assoc *Association
	for i := range desc.Associations {
		if desc.Associations[i].Name == name {
			assoc = &desc.Associations[i]
			break
		}
	}
	if assoc == nil {
		return nil, apperror.NewInvalidInput("association", name)
	}
	return e.association(ctx, desc, rec, *assoc)
}

func (e *Engine) association(ctx context.Context, desc *TypeDescriptor, rec Entity, assoc Association) (any, error) {
	base := rec.Base()
	if v, ok := base.CachedAssociation(assoc.Name); ok {
		return v, nil
	}

	target, err := e.reg.target(desc.Name, assoc)
	if err != nil {
		return nil, err
	}
	scopes, err := e.reg.Scopes(ctx, target.Name)
	if err != nil {
		return nil, err
	}

	var value any
	switch assoc.Kind {
	case HasMany:
		rows, err := e.store.Select(ctx, target, Where(ownerFilter(assoc, rec), scopes.Default()), 0)
		if err != nil {
			return nil, err
		}
		value = rows
	case HasOne:
		rows, err := e.store.Select(ctx, target, Where(ownerFilter(assoc, rec), scopes.Default()), 1)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			value = rows[0]
		}
	case BelongsTo:
		ownerID, ok, err := foreignID(rec, assoc)
		if err != nil {
			return nil, err
		}
		if ok {
			rows, err := e.store.Select(ctx, target, Where(squirrel.Eq{DefaultKeyColumn: ownerID}, scopes.Default()), 1)
			if err != nil {
				return nil, err
			}
			if len(rows) > 0 {
				value = rows[0]
			}
		}
	}

	base.CacheAssociation(assoc.Name, value)
	return value, nil
}

// destroyDependents destroys every child reachable through a dependent
// destroy association. A child whose chain halts halts the parent.
func (e *Engine) destroyDependents(ctx context.Context, desc *TypeDescriptor, rec Entity) error {
	for _, assoc := range desc.dependents() {
		loaded, err := e.association(ctx, desc, rec, assoc)
		if err != nil {
			return err
		}
		for _, child := range members(loaded) {
			ok, err := e.destroy(ctx, child, &assoc)
			if err != nil {
				return err
			}
			if !ok {
				return ErrHalt
			}
		}
	}
	return nil
}

// decrementCounters decrements counter caches on owners of rec. The
// association a cascade came through is skipped, as is an owner that is
// missing or already soft-deleted.
func (e *Engine) decrementCounters(ctx context.Context, desc *TypeDescriptor, rec Entity, origin *Association) error {
	for _, assoc := range desc.Associations {
		if assoc.Kind != BelongsTo || assoc.CounterCache == "" {
			continue
		}
		if origin != nil && origin.ForeignKey == assoc.ForeignKey {
			continue
		}

		ownerID, ok, err := foreignID(rec, assoc)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		owner, err := e.reg.target(desc.Name, assoc)
		if err != nil {
			return err
		}
		scopes, err := e.reg.Scopes(ctx, owner.Name)
		if err != nil {
			return err
		}
		n, err := e.store.Count(ctx, owner.Table, Where(squirrel.Eq{DefaultKeyColumn: ownerID}, scopes.Default()))
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		if err := e.store.AdjustCounter(ctx, owner.Table, ownerID, assoc.CounterCache, -1); err != nil {
			return fmt.Errorf("decrement %s.%s: %w", owner.Table, assoc.CounterCache, err)
		}
	}
	return nil
}

// reallyDestroyDependents permanently removes enrolled dependents.
// Collections include soft-deleted members.
func (e *Engine) reallyDestroyDependents(ctx context.Context, desc *TypeDescriptor, rec Entity) error {
	for _, assoc := range desc.dependents() {
		target, err := e.reg.target(desc.Name, assoc)
		if err != nil {
			return err
		}
		scopes, err := e.reg.Scopes(ctx, target.Name)
		if err != nil {
			return err
		}
		if !scopes.Enrolled() {
			continue
		}

		var children []Entity
		if assoc.IsCollection() {
			children, err = e.store.Select(ctx, target, Where(ownerFilter(assoc, rec), scopes.All()), 0)
			if err != nil {
				return err
			}
		} else {
			loaded, err := e.association(ctx, desc, rec, assoc)
			if err != nil {
				return err
			}
			children = members(loaded)
		}

		for _, child := range children {
			ok, err := e.ReallyDestroy(ctx, child)
			if err != nil {
				return err
			}
			if !ok {
				return ErrHalt
			}
		}
	}
	return nil
}

// restoreAssociated restores what a destroy took down with rec: collection
// members found through the Deleted scope, and singular associations either
// loaded directly or, when nothing active is there, looked up among deleted
// rows by foreign key and type discriminator.
func (e *Engine) restoreAssociated(ctx context.Context, desc *TypeDescriptor, rec Entity) error {
	deps := desc.dependents()
	recursive := RestoreOptions{Recursive: true}

	for _, assoc := range deps {
		target, err := e.reg.target(desc.Name, assoc)
		if err != nil {
			return err
		}
		scopes, err := e.reg.Scopes(ctx, target.Name)
		if err != nil {
			return err
		}

		var children []Entity
		switch {
		case assoc.IsCollection():
			if !scopes.Enrolled() {
				continue
			}
			children, err = e.store.Select(ctx, target, Where(ownerFilter(assoc, rec), scopes.Deleted()), 0)
			if err != nil {
				return err
			}
		default:
			loaded, err := e.association(ctx, desc, rec, assoc)
			if err != nil {
				return err
			}
			children = members(loaded)
			if len(children) == 0 && assoc.Kind == HasOne && scopes.Enrolled() {
				children, err = e.store.Select(ctx, target, Where(ownerFilter(assoc, rec), scopes.Deleted()), 1)
				if err != nil {
					return err
				}
			}
			if !scopes.Enrolled() {
				continue
			}
		}

		for _, child := range children {
			ok, err := e.Restore(ctx, child, recursive)
			if err != nil {
				return err
			}
			if !ok {
				logger.Debug(ctx, "dependent restore halted",
					"entity", child.EntityType(),
					"id", child.Base().ID,
					"owner", desc.Name,
				)
			}
		}
	}

	if len(deps) > 0 {
		rec.Base().ClearAssociations()
	}
	return nil
}

func members(loaded any) []Entity {
	switch v := loaded.(type) {
	case nil:
		return nil
	case []Entity:
		return v
	case Entity:
		return []Entity{v}
	default:
		return nil
	}
}
