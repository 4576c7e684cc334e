package inventory

import (
	"context"
	"fmt"

	"tombstone/internal/softdelete"
	"tombstone/pkg/logger"
)

// Descriptors returns the type descriptors of the inventory records.
func Descriptors() []softdelete.TypeDescriptor {
	return []softdelete.TypeDescriptor{
		{
			Name:  TypeWarehouse,
			Table: "warehouses",
			New:   func() softdelete.Entity { return &Warehouse{} },
			Associations: []softdelete.Association{
				{
					Name:       "bins",
					Target:     TypeBin,
					Kind:       softdelete.HasMany,
					ForeignKey: "warehouse_id",
					Dependent:  softdelete.DependentDestroy,
				},
				{
					Name:       "address",
					Target:     TypeAddress,
					Kind:       softdelete.HasOne,
					ForeignKey: "addressable_id",
					TypeColumn: "addressable_type",
					Dependent:  softdelete.DependentDestroy,
				},
			},
		},
		{
			Name:  TypeBin,
			Table: "bins",
			New:   func() softdelete.Entity { return &Bin{} },
			Associations: []softdelete.Association{
				{
					Name:         "warehouse",
					Target:       TypeWarehouse,
					Kind:         softdelete.BelongsTo,
					ForeignKey:   "warehouse_id",
					CounterCache: "bins_count",
				},
			},
		},
		{
			Name:  TypeAddress,
			Table: "addresses",
			New:   func() softdelete.Entity { return &Address{} },
		},
	}
}

// Register adds the inventory types to reg and installs their callbacks.
func Register(reg *softdelete.Registry) error {
	for _, d := range Descriptors() {
		hooks, err := reg.Register(d)
		if err != nil {
			return fmt.Errorf("register %s: %w", d.Name, err)
		}
		if d.Name == TypeWarehouse {
			hooks.Before(softdelete.EventDestroy, protectDefaultWarehouse)
			hooks.Before(softdelete.EventRealDestroy, protectDefaultWarehouse)
		}
	}
	return reg.Validate()
}

// protectDefaultWarehouse halts destruction of the default warehouse.
func protectDefaultWarehouse(ctx context.Context, rec softdelete.Entity) error {
	w, ok := rec.(*Warehouse)
	if !ok || !w.IsDefault {
		return nil
	}
	logger.Info(ctx, "refusing to destroy default warehouse", "id", w.ID, "code", w.Code)
	return softdelete.ErrHalt
}
