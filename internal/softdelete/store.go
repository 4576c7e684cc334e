package softdelete

import (
	"context"

	"github.com/Masterminds/squirrel"

	"tombstone/internal/core/id"
)

// Introspector answers schema questions for the eligibility check.
type Introspector interface {
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
}

// Store is the persistence collaborator used by the engine.
// Implementations take the querier from ctx, so calls made inside
// tx.Manager.RunInTransaction join that transaction.
type Store interface {
	Introspector

	// Insert writes a new row from the record's db-tagged fields.
	Insert(ctx context.Context, desc *TypeDescriptor, rec Entity) error

	// Select materializes rows of desc matching where (nil = all), ordered by id.
	// limit 0 means unlimited.
	Select(ctx context.Context, desc *TypeDescriptor, where squirrel.Sqlizer, limit uint64) ([]Entity, error)

	// Count returns the number of rows of table matching where.
	Count(ctx context.Context, table string, where squirrel.Sqlizer) (int64, error)

	// UpdateColumns writes values directly, bypassing any change tracking.
	// Returns a NotFound AppError when no row has recID.
	UpdateColumns(ctx context.Context, table string, recID id.ID, values map[string]any) error

	// AdjustCounter adds delta to a denormalized counter column.
	AdjustCounter(ctx context.Context, table string, recID id.ID, column string, delta int) error

	// DeleteRow removes the row unconditionally.
	DeleteRow(ctx context.Context, table string, recID id.ID) error
}
