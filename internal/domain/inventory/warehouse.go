// Package inventory provides the sample record types served by the admin API:
// warehouses own bins and a postal address, both destroyed with them.
package inventory

import (
	"context"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
)

// Type names used in the registry and in polymorphic discriminator columns.
const (
	TypeWarehouse = "warehouse"
	TypeBin       = "bin"
	TypeAddress   = "address"
)

// WarehouseType defines the type of warehouse.
type WarehouseType string

const (
	TypeMain         WarehouseType = "main"
	TypeDistribution WarehouseType = "distribution"
	TypeRetail       WarehouseType = "retail"
	TypeTransit      WarehouseType = "transit"
)

// Warehouse represents a storage location.
type Warehouse struct {
	entity.BaseEntity

	Code string        `db:"code" json:"code"`
	Name string        `db:"name" json:"name"`
	Type WarehouseType `db:"type" json:"type"`

	// IsDefault marks the warehouse documents fall back to; it cannot be destroyed.
	IsDefault bool `db:"is_default" json:"isDefault"`

	// BinsCount is maintained as a counter cache of active bins.
	BinsCount int `db:"bins_count" json:"binsCount"`
}

// NewWarehouse creates a new Warehouse with required fields.
func NewWarehouse(code, name string, whType WarehouseType) *Warehouse {
	return &Warehouse{
		BaseEntity: entity.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Type:       whType,
	}
}

// EntityType implements softdelete.Entity.
func (*Warehouse) EntityType() string { return TypeWarehouse }

// Validate checks required fields.
func (w *Warehouse) Validate(_ context.Context) error {
	if w.Code == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if w.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if !isValidWarehouseType(w.Type) {
		return apperror.NewValidation("invalid warehouse type").
			WithDetail("field", "type").
			WithDetail("value", string(w.Type))
	}
	return nil
}

func isValidWarehouseType(t WarehouseType) bool {
	switch t {
	case TypeMain, TypeDistribution, TypeRetail, TypeTransit:
		return true
	}
	return false
}
