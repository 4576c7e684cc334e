package softdelete

import (
	"github.com/Masterminds/squirrel"
)

// Scopes builds the query predicates of one entity type.
// A nil predicate means "no filter".
type Scopes struct {
	desc     *TypeDescriptor
	enrolled bool
}

// Enrolled reports whether the type participates in soft delete.
func (s Scopes) Enrolled() bool {
	return s.enrolled
}

// Active matches rows whose flag equals the sentinel.
// For the null sentinel this renders as "flag IS NULL".
func (s Scopes) Active() squirrel.Sqlizer {
	return squirrel.Eq{s.desc.FlagColumn: s.desc.Sentinel.Value()}
}

// All removes the default active-only filter.
func (s Scopes) All() squirrel.Sqlizer {
	return nil
}

// Deleted matches rows that are not active.
//
// With the false sentinel a deleted row may hold NULL in the flag column,
// and NULL <> false is NULL, so NULL is matched explicitly. With the null
// sentinel a NULL flag is active, leaving "flag IS NOT NULL".
func (s Scopes) Deleted() squirrel.Sqlizer {
	col := s.desc.FlagColumn
	if s.desc.Sentinel == SentinelNull {
		return squirrel.NotEq{col: nil}
	}
	return squirrel.Or{
		squirrel.Eq{col: nil},
		squirrel.NotEq{col: s.desc.Sentinel.Value()},
	}
}

// Default is the predicate applied to ordinary queries: Active for
// enrolled types, no filter otherwise.
func (s Scopes) Default() squirrel.Sqlizer {
	if !s.enrolled {
		return nil
	}
	return s.Active()
}

// Where combines predicates with AND, skipping nil ones.
func Where(preds ...squirrel.Sqlizer) squirrel.Sqlizer {
	var and squirrel.And
	for _, p := range preds {
		if p != nil {
			and = append(and, p)
		}
	}
	switch len(and) {
	case 0:
		return nil
	case 1:
		return and[0]
	default:
		return and
	}
}
