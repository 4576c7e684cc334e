// Package softdelete implements tombstone semantics for stored records:
// eligibility resolution per entity type, default query scoping, the
// active/deleted/removed lifecycle with cascades, and uniqueness scoping.
package softdelete

import (
	"fmt"

	"tombstone/internal/core/entity"
)

// Default column names.
const (
	DefaultFlagColumn      = "deleted"
	DefaultTimestampColumn = "deleted_at"
	DefaultTouchColumn     = "updated_at"
	DefaultKeyColumn       = "id"
)

// Entity is implemented by every record type managed by the engine.
// Embedding entity.BaseEntity provides Base().
type Entity interface {
	EntityType() string
	Base() *entity.BaseEntity
}

// Sentinel is the flag value that denotes "not deleted".
type Sentinel int

const (
	// SentinelFalse: active rows hold flag = false.
	SentinelFalse Sentinel = iota
	// SentinelNull: active rows hold flag IS NULL.
	SentinelNull
)

// Value returns the sentinel as a query argument.
func (s Sentinel) Value() any {
	if s == SentinelNull {
		return nil
	}
	return false
}

// Flag returns the in-memory flag representation of the sentinel.
func (s Sentinel) Flag() *bool {
	if s == SentinelNull {
		return nil
	}
	f := false
	return &f
}

// DeletedFlag is the logical negation of the sentinel. Both sentinels negate to true.
func (s Sentinel) DeletedFlag() *bool {
	t := true
	return &t
}

// Matches reports flag == sentinel using plain equality, without SQL null semantics.
func (s Sentinel) Matches(flag *bool) bool {
	if s == SentinelNull {
		return flag == nil
	}
	return flag != nil && !*flag
}

func (s Sentinel) String() string {
	if s == SentinelNull {
		return "null"
	}
	return "false"
}

// AssociationKind is the cardinality and owner side of an association.
type AssociationKind int

const (
	// HasMany: children hold ForeignKey pointing at the owner.
	HasMany AssociationKind = iota
	// HasOne: a single child holds ForeignKey pointing at the owner.
	HasOne
	// BelongsTo: the record itself holds ForeignKey pointing at its owner.
	BelongsTo
)

func (k AssociationKind) String() string {
	switch k {
	case HasMany:
		return "has_many"
	case HasOne:
		return "has_one"
	case BelongsTo:
		return "belongs_to"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Dependent is the cascade policy of an association.
type Dependent int

const (
	DependentNone Dependent = iota
	DependentDestroy
)

// Association describes a relationship, resolved at registration time.
type Association struct {
	// Name keys the association cache on the owner.
	Name string
	// Target is the registered name of the associated type.
	Target string
	Kind   AssociationKind
	// ForeignKey is the column holding the owner id (on the child for
	// HasOne/HasMany, on this record for BelongsTo).
	ForeignKey string
	// TypeColumn is the polymorphic discriminator column on the child.
	// It stores the owner's type name.
	TypeColumn string
	Dependent  Dependent
	// CounterCache names the owner column decremented when this record is
	// soft-deleted. BelongsTo only.
	CounterCache string
}

// IsCollection reports whether the association resolves to many records.
func (a Association) IsCollection() bool {
	return a.Kind == HasMany
}

// TypeDescriptor is the static configuration of an entity type.
type TypeDescriptor struct {
	Name  string
	Table string

	FlagColumn      string
	TimestampColumn string
	// TouchColumn is refreshed on restore. "-" disables touch.
	TouchColumn string
	Sentinel    Sentinel

	// OptOut excludes the type from soft delete regardless of schema.
	OptOut bool
	// Abstract marks base kinds that are never enrolled themselves.
	Abstract bool

	Associations []Association

	// New returns an empty record used by stores to materialize rows.
	New func() Entity
}

// withDefaults fills unset column names.
func (d TypeDescriptor) withDefaults() TypeDescriptor {
	if d.FlagColumn == "" {
		d.FlagColumn = DefaultFlagColumn
	}
	if d.TimestampColumn == "" {
		d.TimestampColumn = DefaultTimestampColumn
	}
	switch d.TouchColumn {
	case "":
		d.TouchColumn = DefaultTouchColumn
	case "-":
		d.TouchColumn = ""
	}
	d.Associations = append([]Association(nil), d.Associations...)
	return d
}

func (d TypeDescriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("type descriptor: name is required")
	}
	if d.Table == "" {
		return fmt.Errorf("type descriptor %s: table is required", d.Name)
	}
	if d.New == nil {
		return fmt.Errorf("type descriptor %s: constructor is required", d.Name)
	}
	seen := make(map[string]struct{}, len(d.Associations))
	for _, a := range d.Associations {
		if a.Name == "" || a.Target == "" || a.ForeignKey == "" {
			return fmt.Errorf("type descriptor %s: association needs name, target and foreign key", d.Name)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("type descriptor %s: duplicate association %s", d.Name, a.Name)
		}
		seen[a.Name] = struct{}{}
		if a.CounterCache != "" && a.Kind != BelongsTo {
			return fmt.Errorf("type descriptor %s: counter cache on %s requires belongs_to", d.Name, a.Name)
		}
		if a.Dependent == DependentDestroy && a.Kind == BelongsTo {
			return fmt.Errorf("type descriptor %s: dependent destroy on belongs_to %s is not supported", d.Name, a.Name)
		}
	}
	return nil
}

// dependents returns associations declared with dependent destroy, in declaration order.
func (d *TypeDescriptor) dependents() []Association {
	var out []Association
	for _, a := range d.Associations {
		if a.Dependent == DependentDestroy {
			out = append(out, a)
		}
	}
	return out
}

// destroyValues are the columns written by soft delete.
func (d *TypeDescriptor) destroyValues(now any) map[string]any {
	return map[string]any{
		d.FlagColumn:      true,
		d.TimestampColumn: now,
	}
}

// restoreValues are the columns written by restore.
func (d *TypeDescriptor) restoreValues() map[string]any {
	return map[string]any{
		d.FlagColumn:      d.Sentinel.Value(),
		d.TimestampColumn: nil,
	}
}
