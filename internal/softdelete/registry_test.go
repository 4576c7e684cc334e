package softdelete

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
)

func newTestRegistry(t *testing.T, cfg Config, conn Introspector, descs ...TypeDescriptor) *Registry {
	t.Helper()
	reg := NewRegistry(cfg, conn)
	for _, d := range descs {
		_, err := reg.Register(d)
		require.NoError(t, err)
	}
	require.NoError(t, reg.Validate())
	return reg
}

func TestRegistry_ResolveMemoized(t *testing.T) {
	conn := newFakeIntrospector()
	reg := newTestRegistry(t, Config{Enabled: true}, conn, widgetDescriptor())
	ctx := context.Background()

	ok, err := reg.Resolve(ctx, "widget")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Resolve(ctx, "widget")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 1, conn.tableQueries())
	assert.Equal(t, 1, reg.introspections())
	assert.Equal(t, ParticipationEnrolled, reg.Participation("widget"))
}

func TestRegistry_ReplaceConnectionRechecks(t *testing.T) {
	first := newFakeIntrospector()
	reg := newTestRegistry(t, Config{Enabled: true}, first, widgetDescriptor())
	ctx := context.Background()

	assert.True(t, reg.IsEnrolled(ctx, "widget"))

	// The new connection lacks the flag column.
	second := newFakeIntrospector()
	second.tables["widgets"] = []string{"id", "name", "deleted_at", "updated_at"}
	reg.ReplaceConnection(second)

	assert.Equal(t, ParticipationUnknown, reg.Participation("widget"))
	assert.False(t, reg.IsEnrolled(ctx, "widget"))
	assert.Equal(t, 1, first.tableQueries())
	assert.Equal(t, 1, second.tableQueries())

	assert.False(t, reg.IsEnrolled(ctx, "widget"))
	assert.Equal(t, 1, second.tableQueries())
}

func TestRegistry_Eligibility(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		mutate  func(d *TypeDescriptor, conn *fakeIntrospector)
		want    bool
		queries int
	}{
		{
			name:    "enrolled",
			cfg:     Config{Enabled: true},
			want:    true,
			queries: 1,
		},
		{
			name: "feature disabled",
			cfg:  Config{Enabled: false},
		},
		{
			name:   "opted out",
			cfg:    Config{Enabled: true},
			mutate: func(d *TypeDescriptor, _ *fakeIntrospector) { d.OptOut = true },
		},
		{
			name:   "abstract",
			cfg:    Config{Enabled: true},
			mutate: func(d *TypeDescriptor, _ *fakeIntrospector) { d.Abstract = true },
		},
		{
			name: "excluded table",
			cfg:  Config{Enabled: true, ExcludedTables: []string{"loans", "widgets"}},
		},
		{
			name: "exclusion is exact",
			cfg:  Config{Enabled: true, ExcludedTables: []string{"widget", "widgets_archive"}},
			want: true, queries: 1,
		},
		{
			name: "missing table",
			cfg:  Config{Enabled: true},
			mutate: func(_ *TypeDescriptor, conn *fakeIntrospector) {
				delete(conn.tables, "widgets")
			},
			queries: 1,
		},
		{
			name: "missing timestamp column",
			cfg:  Config{Enabled: true},
			mutate: func(_ *TypeDescriptor, conn *fakeIntrospector) {
				conn.tables["widgets"] = []string{"id", "deleted"}
			},
			queries: 1,
		},
		{
			name: "custom columns",
			cfg:  Config{Enabled: true},
			mutate: func(d *TypeDescriptor, conn *fakeIntrospector) {
				d.FlagColumn = "is_removed"
				d.TimestampColumn = "removed_at"
				conn.tables["widgets"] = []string{"id", "is_removed", "removed_at"}
			},
			want:    true,
			queries: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeIntrospector()
			d := widgetDescriptor()
			if tt.mutate != nil {
				tt.mutate(&d, conn)
			}
			reg := newTestRegistry(t, tt.cfg, conn, d)

			ok, err := reg.Resolve(context.Background(), "widget")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.queries, conn.tableQueries())
		})
	}
}

func TestRegistry_OptOutParticipation(t *testing.T) {
	d := widgetDescriptor()
	d.OptOut = true
	reg := newTestRegistry(t, Config{Enabled: true}, newFakeIntrospector(), d)

	assert.Equal(t, ParticipationOptedOut, reg.Participation("widget"))
	assert.False(t, reg.IsEnrolled(context.Background(), "widget"))

	reg.Invalidate()
	assert.Equal(t, ParticipationOptedOut, reg.Participation("widget"))
}

func TestRegistry_IntrospectionErrorNotMemoized(t *testing.T) {
	conn := newFakeIntrospector()
	conn.err = errIntrospection
	reg := newTestRegistry(t, Config{Enabled: true}, conn, widgetDescriptor())
	ctx := context.Background()

	ok, err := reg.Resolve(ctx, "widget")
	require.NoError(t, err)
	assert.False(t, ok)

	conn.err = nil
	ok, err = reg.Resolve(ctx, "widget")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, conn.tableQueries())
}

func TestRegistry_UnknownType(t *testing.T) {
	reg := newTestRegistry(t, Config{Enabled: true}, newFakeIntrospector())

	_, err := reg.Resolve(context.Background(), "ghost")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnknownEntityType, appErr.Code)
}

func TestRegistry_ConcurrentResolveChecksOnce(t *testing.T) {
	conn := newFakeIntrospector()
	reg := newTestRegistry(t, Config{Enabled: true}, conn, widgetDescriptor())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, reg.IsEnrolled(ctx, "widget"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, conn.tableQueries())
}

func TestRegistry_RegisterValidation(t *testing.T) {
	reg := NewRegistry(Config{Enabled: true}, newFakeIntrospector())

	_, err := reg.Register(widgetDescriptor())
	require.NoError(t, err)

	_, err = reg.Register(widgetDescriptor())
	assert.Error(t, err, "duplicate name")

	_, err = reg.Register(TypeDescriptor{Name: "nameless"})
	assert.Error(t, err, "missing table")

	bad := TypeDescriptor{
		Name:  "gadget",
		Table: "gadgets",
		New:   func() Entity { return &widget{} },
		Associations: []Association{
			{Name: "parts", Target: "part", Kind: HasMany, ForeignKey: "gadget_id", CounterCache: "parts_count"},
		},
	}
	_, err = reg.Register(bad)
	assert.Error(t, err, "counter cache on has_many")

	dangling := TypeDescriptor{
		Name:  "gizmo",
		Table: "gizmos",
		New:   func() Entity { return &widget{} },
		Associations: []Association{
			{Name: "parts", Target: "part", Kind: HasMany, ForeignKey: "gizmo_id", Dependent: DependentDestroy},
		},
	}
	_, err = reg.Register(dangling)
	require.NoError(t, err)
	assert.ErrorContains(t, reg.Validate(), "unregistered type part")
}

func TestRegistry_Defaults(t *testing.T) {
	reg := newTestRegistry(t, Config{Enabled: true}, newFakeIntrospector(), widgetDescriptor())

	d, err := reg.Descriptor("widget")
	require.NoError(t, err)
	assert.Equal(t, "deleted", d.FlagColumn)
	assert.Equal(t, "deleted_at", d.TimestampColumn)
	assert.Equal(t, "updated_at", d.TouchColumn)
	assert.Equal(t, SentinelFalse, d.Sentinel)

	noTouch := widgetDescriptor()
	noTouch.Name = "quiet"
	noTouch.TouchColumn = "-"
	reg2 := newTestRegistry(t, Config{Enabled: true}, newFakeIntrospector(), noTouch)
	d2, err := reg2.Descriptor("quiet")
	require.NoError(t, err)
	assert.Empty(t, d2.TouchColumn)
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) Notify(_ context.Context, event string, _ Entity) {
	o.events = append(o.events, event)
}

func TestRegistry_RestoreObservers(t *testing.T) {
	reg := newTestRegistry(t, Config{Enabled: true}, newFakeIntrospector(), widgetDescriptor())
	obs := &recordingObserver{}
	reg.Observe(obs)

	hooks, err := reg.Hooks("widget")
	require.NoError(t, err)

	ran, err := hooks.Run(context.Background(), EventRestore, newWidget("a"), func(context.Context) error {
		obs.events = append(obs.events, "body")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []string{"before_restore", "body", "after_restore"}, obs.events)
}

func TestRegistry_ResolveAll(t *testing.T) {
	conn := newFakeIntrospector()
	conn.tables["gadgets"] = []string{"id", "deleted", "deleted_at"}

	gadget := widgetDescriptor()
	gadget.Name = "gadget"
	gadget.Table = "gadgets"
	plain := widgetDescriptor()
	plain.Name = "plain"
	plain.Table = "plains"

	reg := newTestRegistry(t, Config{Enabled: true}, conn, widgetDescriptor(), gadget, plain)
	assert.Equal(t, []string{"gadget", "widget"}, reg.ResolveAll(context.Background()))
}
