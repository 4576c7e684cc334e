package softdelete

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/id"
	"tombstone/internal/core/tx"
	"tombstone/pkg/logger"
)

var tracer = otel.Tracer("tombstone/softdelete")

// Outcome classifies the result of a transition for metrics.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeHalted Outcome = "halted"
	OutcomeError  Outcome = "error"
)

// Recorder receives one call per finished transition.
type Recorder interface {
	Transition(entityType string, event Event, outcome Outcome)
}

type nopRecorder struct{}

func (nopRecorder) Transition(string, Event, Outcome) {}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for deletion and touch timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRecorder sets the transition recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// Engine drives the active / soft-deleted / permanently removed lifecycle
// of records whose types are registered in a Registry.
type Engine struct {
	reg      *Registry
	store    Store
	txm      tx.Manager
	now      func() time.Time
	recorder Recorder
}

// NewEngine creates a lifecycle engine.
func NewEngine(reg *Registry, store Store, txm tx.Manager, opts ...Option) *Engine {
	e := &Engine{
		reg:      reg,
		store:    store,
		txm:      txm,
		now:      func() time.Time { return time.Now().UTC() },
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the type registry backing the engine.
func (e *Engine) Registry() *Registry {
	return e.reg
}

func (e *Engine) resolve(ctx context.Context, rec Entity) (*TypeDescriptor, bool, error) {
	if rec == nil {
		return nil, false, apperror.NewValidation("record is nil")
	}
	return e.resolveType(ctx, rec.EntityType())
}

func (e *Engine) resolveType(ctx context.Context, name string) (*TypeDescriptor, bool, error) {
	desc, err := e.reg.Descriptor(name)
	if err != nil {
		return nil, false, err
	}
	enrolled, err := e.reg.Resolve(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return desc, enrolled, nil
}

// transition runs body inside a transaction and the hook dispatch of event.
// A chain halted before body ran reports false without error. ErrHalt
// returned after body ran fails the transition with TransitionHalted.
func (e *Engine) transition(ctx context.Context, desc *TypeDescriptor, event Event, rec Entity, body func(ctx context.Context) error) (bool, error) {
	ctx, span := tracer.Start(ctx, "softdelete."+string(event),
		trace.WithAttributes(
			attribute.String("entity.type", desc.Name),
			attribute.String("entity.id", rec.Base().ID.String()),
		),
	)
	defer span.End()

	hooks, err := e.reg.Hooks(desc.Name)
	if err != nil {
		return false, err
	}

	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ran, err := hooks.Run(ctx, event, rec, body)
		if err != nil {
			if ran && errors.Is(err, ErrHalt) {
				// Nested transitions share the outer transaction, so writes
				// already made cannot be dropped by reporting a halt.
				return apperror.NewTransitionHalted(desc.Name, string(event))
			}
			return err
		}
		if !ran {
			return ErrHalt
		}
		return nil
	})

	switch {
	case err == nil:
		e.recorder.Transition(desc.Name, event, OutcomeOK)
		return true, nil
	case errors.Is(err, ErrHalt):
		span.SetAttributes(attribute.Bool("halted", true))
		e.recorder.Transition(desc.Name, event, OutcomeHalted)
		logger.Debug(ctx, "transition halted", "entity", desc.Name, "id", rec.Base().ID, "event", event)
		return false, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recorder.Transition(desc.Name, event, OutcomeError)
		return false, err
	}
}

// afterCommit queues the after-commit callbacks of event for rec on the
// enclosing transaction.
func (e *Engine) afterCommit(ctx context.Context, desc *TypeDescriptor, event Event, rec Entity) {
	hooks, err := e.reg.Hooks(desc.Name)
	if err != nil {
		return
	}
	callbacks := hooks.commitCallbacks(event)
	if len(callbacks) == 0 {
		return
	}
	e.txm.AfterCommit(ctx, func(ctx context.Context) {
		for _, cb := range callbacks {
			if err := cb(ctx, rec); err != nil {
				logger.Error(ctx, "after commit callback failed",
					"entity", desc.Name,
					"id", rec.Base().ID,
					"event", event,
					"error", err,
				)
			}
		}
	})
}

// Create inserts a new record. Enrolled types start active: the flag is set
// to the sentinel before the insert.
func (e *Engine) Create(ctx context.Context, rec Entity) error {
	desc, enrolled, err := e.resolve(ctx, rec)
	if err != nil {
		return err
	}
	base := rec.Base()
	if base.IsPersisted() {
		return apperror.NewConflict(fmt.Sprintf("%s %s already persisted", desc.Name, base.ID))
	}
	if base.IsReadOnly() {
		return apperror.NewReadOnly(desc.Name)
	}
	if id.IsNil(base.ID) {
		base.ID = id.New()
	}
	if base.UpdatedAt.IsZero() {
		base.Touch(e.now())
	}
	if enrolled {
		base.SetTombstone(desc.Sentinel.Flag(), nil)
	}

	if err := e.store.Insert(ctx, desc, rec); err != nil {
		return fmt.Errorf("insert %s: %w", desc.Name, err)
	}
	base.MarkPersisted()
	return nil
}

// Delete soft-deletes rec without running hooks.
//
// Persisted records get their flag and timestamp written with a direct column
// update; new records that are not frozen only change in memory. Types that
// are not enrolled fall through to a physical delete.
func (e *Engine) Delete(ctx context.Context, rec Entity) error {
	desc, enrolled, err := e.resolve(ctx, rec)
	if err != nil {
		return err
	}
	return e.delete(ctx, desc, enrolled, rec)
}

func (e *Engine) delete(ctx context.Context, desc *TypeDescriptor, enrolled bool, rec Entity) error {
	base := rec.Base()
	if base.IsReadOnly() {
		return apperror.NewReadOnly(desc.Name)
	}

	if !enrolled {
		if base.IsPersisted() {
			if err := e.store.DeleteRow(ctx, desc.Table, base.ID); err != nil {
				return err
			}
		}
		base.MarkDestroyed()
		return nil
	}

	now := e.now()
	switch {
	case base.IsPersisted():
		e.afterCommit(ctx, desc, EventDestroy, rec)
		if err := e.store.UpdateColumns(ctx, desc.Table, base.ID, desc.destroyValues(now)); err != nil {
			return err
		}
		base.SetTombstone(desc.Sentinel.DeletedFlag(), &now)
	case !base.IsFrozen():
		base.SetTombstone(desc.Sentinel.DeletedFlag(), &now)
	}
	return nil
}

// Destroy runs the destroy lifecycle: dependent associations are destroyed
// first, then the record is soft-deleted and counter caches on its owners
// are decremented. It reports false when a callback halted the chain.
func (e *Engine) Destroy(ctx context.Context, rec Entity) (bool, error) {
	return e.destroy(ctx, rec, nil)
}

// destroy is Destroy with the association through which a parent cascade
// reached rec, nil for a direct call.
func (e *Engine) destroy(ctx context.Context, rec Entity, origin *Association) (bool, error) {
	desc, enrolled, err := e.resolve(ctx, rec)
	if err != nil {
		return false, err
	}

	return e.transition(ctx, desc, EventDestroy, rec, func(ctx context.Context) error {
		if rec.Base().IsReadOnly() {
			return apperror.NewReadOnly(desc.Name)
		}
		if err := e.destroyDependents(ctx, desc, rec); err != nil {
			return err
		}
		if err := e.delete(ctx, desc, enrolled, rec); err != nil {
			return err
		}
		if !enrolled {
			return nil
		}
		return e.decrementCounters(ctx, desc, rec, origin)
	})
}

// Restore brings a soft-deleted record back to active. With Recursive set,
// dependent associations destroyed along with it are restored too.
// Restoring an active record rewrites the same values and refreshes the
// touch column.
func (e *Engine) Restore(ctx context.Context, rec Entity, opts RestoreOptions) (bool, error) {
	desc, enrolled, err := e.resolve(ctx, rec)
	if err != nil {
		return false, err
	}
	if !enrolled {
		return false, apperror.NewNotSoftDeletable(desc.Name)
	}

	return e.transition(ctx, desc, EventRestore, rec, func(ctx context.Context) error {
		base := rec.Base()
		if base.IsReadOnly() {
			return apperror.NewReadOnly(desc.Name)
		}
		base.SetTombstone(desc.Sentinel.Flag(), nil)

		if base.IsPersisted() {
			e.afterCommit(ctx, desc, EventRestore, rec)
			if err := e.store.UpdateColumns(ctx, desc.Table, base.ID, desc.restoreValues()); err != nil {
				return err
			}
			if err := e.touch(ctx, desc, rec); err != nil {
				return err
			}
		}

		if opts.Recursive {
			return e.restoreAssociated(ctx, desc, rec)
		}
		return nil
	})
}

func (e *Engine) touch(ctx context.Context, desc *TypeDescriptor, rec Entity) error {
	if desc.TouchColumn == "" {
		return nil
	}
	now := e.now()
	if err := e.store.UpdateColumns(ctx, desc.Table, rec.Base().ID, map[string]any{desc.TouchColumn: now}); err != nil {
		return err
	}
	rec.Base().Touch(now)
	return nil
}

// ReallyDestroy removes rec physically, after permanently removing every
// enrolled dependent, soft-deleted ones included. The transition is terminal.
func (e *Engine) ReallyDestroy(ctx context.Context, rec Entity) (bool, error) {
	desc, _, err := e.resolve(ctx, rec)
	if err != nil {
		return false, err
	}

	return e.transition(ctx, desc, EventRealDestroy, rec, func(ctx context.Context) error {
		base := rec.Base()
		if base.IsReadOnly() {
			return apperror.NewReadOnly(desc.Name)
		}
		if err := e.reallyDestroyDependents(ctx, desc, rec); err != nil {
			return err
		}

		now := e.now()
		base.SetTombstone(desc.Sentinel.DeletedFlag(), &now)
		if base.IsPersisted() {
			e.afterCommit(ctx, desc, EventRealDestroy, rec)
			if err := e.store.DeleteRow(ctx, desc.Table, base.ID); err != nil {
				return err
			}
		}
		base.MarkDestroyed()
		return nil
	})
}

// IsDeleted reports flag != sentinel with plain equality on the in-memory
// value. Unlike the Deleted scope, a NULL flag under the false sentinel
// counts as deleted here and a NULL flag under the null sentinel never does.
func (e *Engine) IsDeleted(rec Entity) bool {
	desc, err := e.reg.Descriptor(rec.EntityType())
	if err != nil {
		return false
	}
	return !desc.Sentinel.Matches(rec.Base().Deleted)
}

// Reload re-reads rec from storage ignoring the default scope. Use it after a
// failed transition, when in-memory state may not match durable state.
func (e *Engine) Reload(ctx context.Context, rec Entity) (Entity, error) {
	desc, _, err := e.resolve(ctx, rec)
	if err != nil {
		return nil, err
	}
	return e.first(ctx, desc, squirrel.Eq{DefaultKeyColumn: rec.Base().ID}, rec.Base().ID)
}

func (e *Engine) first(ctx context.Context, desc *TypeDescriptor, where squirrel.Sqlizer, key any) (Entity, error) {
	rows, err := e.store.Select(ctx, desc, where, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.NewNotFound(desc.Name, key)
	}
	return rows[0], nil
}

// Find loads one record by id under the default scope.
func (e *Engine) Find(ctx context.Context, typeName string, recID id.ID) (Entity, error) {
	scopes, err := e.reg.Scopes(ctx, typeName)
	if err != nil {
		return nil, err
	}
	return e.first(ctx, scopes.desc, Where(squirrel.Eq{DefaultKeyColumn: recID}, scopes.Default()), recID)
}

// Query lists records matching where under the default scope.
func (e *Engine) Query(ctx context.Context, typeName string, where squirrel.Sqlizer, limit uint64) ([]Entity, error) {
	scopes, err := e.reg.Scopes(ctx, typeName)
	if err != nil {
		return nil, err
	}
	return e.store.Select(ctx, scopes.desc, Where(where, scopes.Default()), limit)
}

// WithDeleted lists records matching where with the default scope removed.
func (e *Engine) WithDeleted(ctx context.Context, typeName string, where squirrel.Sqlizer, limit uint64) ([]Entity, error) {
	scopes, err := e.reg.Scopes(ctx, typeName)
	if err != nil {
		return nil, err
	}
	return e.store.Select(ctx, scopes.desc, Where(where, scopes.All()), limit)
}

// OnlyDeleted lists soft-deleted records matching where.
func (e *Engine) OnlyDeleted(ctx context.Context, typeName string, where squirrel.Sqlizer, limit uint64) ([]Entity, error) {
	scopes, err := e.reg.Scopes(ctx, typeName)
	if err != nil {
		return nil, err
	}
	if !scopes.Enrolled() {
		return nil, apperror.NewNotSoftDeletable(typeName)
	}
	return e.store.Select(ctx, scopes.desc, Where(where, scopes.Deleted()), limit)
}
