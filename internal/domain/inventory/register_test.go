package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
	"tombstone/internal/softdelete"
)

func TestRegister(t *testing.T) {
	reg := softdelete.NewRegistry(softdelete.Config{Enabled: true}, nil)
	require.NoError(t, Register(reg))

	assert.Equal(t, []string{TypeWarehouse, TypeBin, TypeAddress}, reg.Types())

	bin, err := reg.Descriptor(TypeBin)
	require.NoError(t, err)
	assert.Equal(t, "bins", bin.Table)
	assert.Equal(t, "bins_count", bin.Associations[0].CounterCache)
}

func TestProtectDefaultWarehouse(t *testing.T) {
	ctx := context.Background()

	w := NewWarehouse("MAIN", "Main", TypeMain)
	assert.NoError(t, protectDefaultWarehouse(ctx, w))

	w.IsDefault = true
	assert.True(t, errors.Is(protectDefaultWarehouse(ctx, w), softdelete.ErrHalt))

	assert.NoError(t, protectDefaultWarehouse(ctx, NewBin(w.ID, "A-1", 10)))
}

func TestWarehouse_Validate(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewWarehouse("W1", "North", TypeRetail).Validate(ctx))

	appErr, ok := apperror.AsAppError(NewWarehouse("", "North", TypeRetail).Validate(ctx))
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "code", appErr.Details["field"])

	appErr, ok = apperror.AsAppError(NewWarehouse("W1", "North", WarehouseType("cellar")).Validate(ctx))
	require.True(t, ok)
	assert.Equal(t, "cellar", appErr.Details["value"])
}

func TestSchema(t *testing.T) {
	ddl, err := Schema("sqlite")
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS bins")

	_, err = Schema("mysql")
	assert.Error(t, err)
}
