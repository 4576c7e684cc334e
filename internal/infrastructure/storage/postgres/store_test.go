package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"tombstone/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	fk := &pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "bins_warehouse_id_fkey"}
	err := mapError("warehouses", fk)

	appErr, ok := apperror.AsAppError(err)
	if assert.True(t, ok) {
		assert.Equal(t, apperror.CodeConflict, appErr.Code)
		assert.Equal(t, "bins_warehouse_id_fkey", appErr.Details["constraint"])
	}
	assert.ErrorIs(t, err, fk)

	other := errors.New("connection refused")
	err = mapError("warehouses", other)
	assert.False(t, apperror.IsAppError(err))
	assert.ErrorIs(t, err, other)
}
