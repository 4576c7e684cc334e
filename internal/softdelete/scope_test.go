package softdelete

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderWhere(t *testing.T, pred squirrel.Sqlizer) (string, []any) {
	t.Helper()
	q := squirrel.Select("id").From("items")
	if pred != nil {
		q = q.Where(pred)
	}
	sql, args, err := q.ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestScopes_Predicates(t *testing.T) {
	falseDesc := TypeDescriptor{Name: "item", Table: "items"}.withDefaults()
	nullDesc := TypeDescriptor{Name: "item", Table: "items", Sentinel: SentinelNull}.withDefaults()

	tests := []struct {
		name     string
		pred     squirrel.Sqlizer
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "active false sentinel",
			pred:     Scopes{desc: &falseDesc, enrolled: true}.Active(),
			wantSQL:  "SELECT id FROM items WHERE deleted = ?",
			wantArgs: []any{false},
		},
		{
			name:    "active null sentinel",
			pred:    Scopes{desc: &nullDesc, enrolled: true}.Active(),
			wantSQL: "SELECT id FROM items WHERE deleted IS NULL",
		},
		{
			name:     "deleted false sentinel matches null flags",
			pred:     Scopes{desc: &falseDesc, enrolled: true}.Deleted(),
			wantSQL:  "SELECT id FROM items WHERE (deleted IS NULL OR deleted <> ?)",
			wantArgs: []any{false},
		},
		{
			name:    "deleted null sentinel",
			pred:    Scopes{desc: &nullDesc, enrolled: true}.Deleted(),
			wantSQL: "SELECT id FROM items WHERE deleted IS NOT NULL",
		},
		{
			name:    "all",
			pred:    Scopes{desc: &falseDesc, enrolled: true}.All(),
			wantSQL: "SELECT id FROM items",
		},
		{
			name:     "default when enrolled",
			pred:     Scopes{desc: &falseDesc, enrolled: true}.Default(),
			wantSQL:  "SELECT id FROM items WHERE deleted = ?",
			wantArgs: []any{false},
		},
		{
			name:    "default when not enrolled",
			pred:    Scopes{desc: &falseDesc}.Default(),
			wantSQL: "SELECT id FROM items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := renderWhere(t, tt.pred)
			assert.Equal(t, tt.wantSQL, sql)
			if len(tt.wantArgs) == 0 {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestScopes_CustomColumns(t *testing.T) {
	desc := TypeDescriptor{Name: "item", Table: "items", FlagColumn: "is_removed"}.withDefaults()
	s := Scopes{desc: &desc, enrolled: true}

	sql, _ := renderWhere(t, s.Deleted())
	assert.Equal(t, "SELECT id FROM items WHERE (is_removed IS NULL OR is_removed <> ?)", sql)
}

func TestWhere(t *testing.T) {
	assert.Nil(t, Where())
	assert.Nil(t, Where(nil, nil))

	single := squirrel.Eq{"a": 1}
	assert.Equal(t, single, Where(nil, single))

	sql, args := renderWhere(t, Where(squirrel.Eq{"a": 1}, nil, squirrel.Eq{"deleted": false}))
	assert.Equal(t, "SELECT id FROM items WHERE (a = ? AND deleted = ?)", sql)
	assert.Equal(t, []any{1, false}, args)
}
