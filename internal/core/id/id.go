// Package id provides UUIDv7 generation for all soft-deletable records.
// UUIDv7 is time-ordered, so ordering by id follows creation order.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used as the primary key of every record.
type ID = uuid.UUID

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return id
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}

// FromValue normalizes a column value holding an identifier.
// Accepts ID, *ID, string and []byte; ok is false for NULL or zero identifiers.
func FromValue(v any) (ID, bool, error) {
	switch val := v.(type) {
	case nil:
		return uuid.Nil, false, nil
	case ID:
		return val, !IsNil(val), nil
	case *ID:
		if val == nil {
			return uuid.Nil, false, nil
		}
		return *val, !IsNil(*val), nil
	case string:
		if val == "" {
			return uuid.Nil, false, nil
		}
		parsed, err := uuid.Parse(val)
		if err != nil {
			return uuid.Nil, false, err
		}
		return parsed, true, nil
	case *string:
		if val == nil {
			return uuid.Nil, false, nil
		}
		return FromValue(*val)
	case []byte:
		parsed, err := uuid.ParseBytes(val)
		if err != nil {
			return uuid.Nil, false, err
		}
		return parsed, true, nil
	default:
		return uuid.Nil, false, fmt.Errorf("unsupported identifier type %T", v)
	}
}
