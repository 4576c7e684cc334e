// Package entity provides the record base shared by every soft-deletable type.
package entity

import (
	"time"

	"tombstone/internal/core/id"
)

// BaseEntity contains the identity and tombstone columns of a record.
// Embed it in concrete record types; the db tags name the default columns.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Deleted is the deletion flag. nil models SQL NULL.
	Deleted *bool `db:"deleted" json:"deleted"`

	// DeletedAt records when the row was soft-deleted
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`

	// UpdatedAt is refreshed by touch
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	persisted bool
	readOnly  bool
	frozen    bool
	destroyed bool

	// associations caches loaded association results by association name
	associations map[string]any
}

// NewBaseEntity creates a new, unpersisted BaseEntity with generated ID.
// The deletion flag is left nil; the engine sets it to the type's sentinel on create.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:        id.New(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Base gives access to the embedded BaseEntity.
func (b *BaseEntity) Base() *BaseEntity {
	return b
}

// IsPersisted reports whether the record has a storage-assigned identity.
func (b *BaseEntity) IsPersisted() bool {
	return b.persisted && !b.destroyed
}

// MarkPersisted is called by stores after a row is inserted or materialized.
func (b *BaseEntity) MarkPersisted() {
	b.persisted = true
}

// IsReadOnly reports whether lifecycle writes are forbidden for this instance.
func (b *BaseEntity) IsReadOnly() bool {
	return b.readOnly
}

// SetReadOnly marks the instance read-only (or clears it).
func (b *BaseEntity) SetReadOnly(readOnly bool) {
	b.readOnly = readOnly
}

// IsFrozen reports whether in-memory attributes may no longer change.
func (b *BaseEntity) IsFrozen() bool {
	return b.frozen
}

// Freeze prevents further in-memory attribute assignment for unpersisted records.
func (b *BaseEntity) Freeze() {
	b.frozen = true
}

// IsDestroyed reports whether the row was physically removed.
func (b *BaseEntity) IsDestroyed() bool {
	return b.destroyed
}

// MarkDestroyed records physical removal.
func (b *BaseEntity) MarkDestroyed() {
	b.destroyed = true
}

// SetTombstone assigns the deletion flag and timestamp in memory.
func (b *BaseEntity) SetTombstone(deleted *bool, deletedAt *time.Time) {
	b.Deleted = deleted
	b.DeletedAt = deletedAt
}

// Touch refreshes the modification timestamp in memory.
func (b *BaseEntity) Touch(now time.Time) {
	b.UpdatedAt = now
}

// CachedAssociation returns a previously loaded association result.
func (b *BaseEntity) CachedAssociation(name string) (any, bool) {
	if b.associations == nil {
		return nil, false
	}
	v, ok := b.associations[name]
	return v, ok
}

// CacheAssociation stores a loaded association result.
func (b *BaseEntity) CacheAssociation(name string, value any) {
	if b.associations == nil {
		b.associations = make(map[string]any)
	}
	b.associations[name] = value
}

// ClearAssociations drops every cached association result.
func (b *BaseEntity) ClearAssociations() {
	b.associations = nil
}
