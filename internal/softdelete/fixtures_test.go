package softdelete

import (
	"context"
	"errors"
	"sync"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
)

type widget struct {
	entity.BaseEntity
	Name    string `db:"name"`
	OwnerID *id.ID `db:"owner_id"`
}

func (*widget) EntityType() string { return "widget" }

func newWidget(name string) *widget {
	return &widget{BaseEntity: entity.NewBaseEntity(), Name: name}
}

func widgetDescriptor() TypeDescriptor {
	return TypeDescriptor{
		Name:  "widget",
		Table: "widgets",
		New:   func() Entity { return &widget{} },
	}
}

// fakeIntrospector answers from a static table -> columns map and counts calls.
type fakeIntrospector struct {
	mu      sync.Mutex
	tables  map[string][]string
	err     error
	tableQs int
	colQs   int
}

func newFakeIntrospector() *fakeIntrospector {
	return &fakeIntrospector{tables: map[string][]string{
		"widgets": {"id", "name", "owner_id", "deleted", "deleted_at", "updated_at"},
	}}
}

func (f *fakeIntrospector) TableExists(_ context.Context, table string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableQs++
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.tables[table]
	return ok, nil
}

func (f *fakeIntrospector) ColumnExists(_ context.Context, table, column string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.colQs++
	if f.err != nil {
		return false, f.err
	}
	for _, c := range f.tables[table] {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeIntrospector) tableQueries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tableQs
}

var errIntrospection = errors.New("connection reset")
