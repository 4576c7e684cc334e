package inventory

import (
	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
)

// Bin is a storage slot inside a warehouse.
type Bin struct {
	entity.BaseEntity

	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	Label       string `db:"label" json:"label"`
	Capacity    int    `db:"capacity" json:"capacity"`
}

// NewBin creates a bin in warehouse.
func NewBin(warehouse id.ID, label string, capacity int) *Bin {
	return &Bin{
		BaseEntity:  entity.NewBaseEntity(),
		WarehouseID: warehouse,
		Label:       label,
		Capacity:    capacity,
	}
}

// EntityType implements softdelete.Entity.
func (*Bin) EntityType() string { return TypeBin }

// Address is a postal address attached to any owner type.
type Address struct {
	entity.BaseEntity

	AddressableID   id.ID  `db:"addressable_id" json:"addressableId"`
	AddressableType string `db:"addressable_type" json:"addressableType"`
	Line            string `db:"line" json:"line"`
	City            string `db:"city" json:"city"`
}

// NewAddress creates an address owned by the record ownerID of type ownerType.
func NewAddress(ownerType string, ownerID id.ID, line, city string) *Address {
	return &Address{
		BaseEntity:      entity.NewBaseEntity(),
		AddressableID:   ownerID,
		AddressableType: ownerType,
		Line:            line,
		City:            city,
	}
}

// EntityType implements softdelete.Entity.
func (*Address) EntityType() string { return TypeAddress }
