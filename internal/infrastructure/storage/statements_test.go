package storage

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/softdelete"
)

type crate struct {
	entity.BaseEntity
	Label string `db:"label"`
	Note  string `db:"-"`
}

func (*crate) EntityType() string { return "crate" }

func crateDescriptor() *softdelete.TypeDescriptor {
	return &softdelete.TypeDescriptor{
		Name:            "crate",
		Table:           "crates",
		FlagColumn:      "deleted",
		TimestampColumn: "deleted_at",
		New:             func() softdelete.Entity { return &crate{} },
	}
}

func TestStatements_Select(t *testing.T) {
	st := NewStatements(squirrel.Dollar)
	desc := crateDescriptor()

	sql, args, err := st.Select(desc, squirrel.Eq{"deleted": false}, 1).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, deleted, deleted_at, updated_at, label FROM crates WHERE deleted = $1 ORDER BY id LIMIT 1", sql)
	assert.Equal(t, []any{false}, args)

	sql, _, err = st.Select(desc, nil, 0).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, deleted, deleted_at, updated_at, label FROM crates ORDER BY id", sql)
}

func TestStatements_SelectAliasesRenamedColumns(t *testing.T) {
	st := NewStatements(squirrel.Question)
	desc := crateDescriptor()
	desc.FlagColumn = "is_removed"
	desc.TimestampColumn = "removed_at"

	sql, _, err := st.Select(desc, nil, 0).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, is_removed AS deleted, removed_at AS deleted_at, updated_at, label FROM crates ORDER BY id", sql)
}

func TestStatements_Insert(t *testing.T) {
	st := NewStatements(squirrel.Question)
	desc := crateDescriptor()
	desc.FlagColumn = "is_removed"

	c := &crate{BaseEntity: entity.NewBaseEntity(), Label: "A-1", Note: "ignored"}
	q, err := st.Insert(desc, c)
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO crates (is_removed,deleted_at,id,label,updated_at) VALUES (?,?,?,?,?)", sql)
	require.Len(t, args, 5)
	assert.Nil(t, args[0], "nil flag pointer binds as NULL")
	assert.Nil(t, args[1])
	assert.Equal(t, c.ID.String(), args[2])
	assert.Equal(t, "A-1", args[3])
}

func TestStatements_Writes(t *testing.T) {
	st := NewStatements(squirrel.Dollar)
	recID := id.New()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		q        squirrel.Sqlizer
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "update columns",
			q:        st.UpdateColumns("crates", recID, map[string]any{"deleted_at": now, "deleted": true}),
			wantSQL:  "UPDATE crates SET deleted = $1, deleted_at = $2 WHERE id = $3",
			wantArgs: []any{true, now, recID.String()},
		},
		{
			name:     "adjust counter",
			q:        st.AdjustCounter("warehouses", recID, "bins_count", -1),
			wantSQL:  "UPDATE warehouses SET bins_count = COALESCE(bins_count, 0) + $1 WHERE id = $2",
			wantArgs: []any{-1, recID.String()},
		},
		{
			name:     "delete",
			q:        st.Delete("crates", recID),
			wantSQL:  "DELETE FROM crates WHERE id = $1",
			wantArgs: []any{recID.String()},
		},
		{
			name:     "count",
			q:        st.Count("crates", squirrel.NotEq{"deleted": nil}),
			wantSQL:  "SELECT COUNT(*) FROM crates WHERE deleted IS NOT NULL",
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.q.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}
