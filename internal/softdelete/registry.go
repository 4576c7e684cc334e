package softdelete

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tombstone/internal/core/apperror"
	"tombstone/pkg/logger"
)

// Config is the environment-level switchboard for eligibility.
type Config struct {
	// Enabled turns the whole feature on.
	Enabled bool
	// ExcludedTables are never enrolled, whatever their schema.
	ExcludedTables []string
}

// Participation is the tri-state enrollment of a type.
type Participation int

const (
	ParticipationUnknown Participation = iota
	ParticipationEnrolled
	ParticipationOptedOut
)

func (p Participation) String() string {
	switch p {
	case ParticipationEnrolled:
		return "enrolled"
	case ParticipationOptedOut:
		return "opted_out"
	default:
		return "unknown"
	}
}

// Observer is notified around restores, for audit trails and similar.
type Observer interface {
	Notify(ctx context.Context, event string, rec Entity)
}

type typeState struct {
	desc          *TypeDescriptor
	hooks         *Hooks
	participation Participation
	checked       bool
	targets       map[string]*TypeDescriptor
}

// Registry owns every registered type descriptor together with its
// per-connection eligibility state.
type Registry struct {
	mu        sync.Mutex
	cfg       Config
	excluded  map[string]struct{}
	conn      Introspector
	types     map[string]*typeState
	order     []string
	observers []Observer
	checks    int
}

// NewRegistry creates a registry resolving eligibility against conn.
func NewRegistry(cfg Config, conn Introspector) *Registry {
	excluded := make(map[string]struct{}, len(cfg.ExcludedTables))
	for _, t := range cfg.ExcludedTables {
		excluded[t] = struct{}{}
	}
	return &Registry{
		cfg:      cfg,
		excluded: excluded,
		conn:     conn,
		types:    make(map[string]*typeState),
	}
}

// Register adds a type and returns its hook set.
// Restore observers are wired as before/after restore callbacks.
func (r *Registry) Register(desc TypeDescriptor) (*Hooks, error) {
	d := desc.withDefaults()
	if err := d.validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[d.Name]; exists {
		return nil, fmt.Errorf("type %s already registered", d.Name)
	}

	st := &typeState{desc: &d, hooks: NewHooks()}
	if d.OptOut {
		st.participation = ParticipationOptedOut
	}
	st.hooks.Before(EventRestore, r.notify("before_restore"))
	st.hooks.After(EventRestore, r.notify("after_restore"))

	r.types[d.Name] = st
	r.order = append(r.order, d.Name)
	return st.hooks, nil
}

// MustRegister is Register for package-level wiring; it panics on error.
func (r *Registry) MustRegister(desc TypeDescriptor) *Hooks {
	h, err := r.Register(desc)
	if err != nil {
		panic(err)
	}
	return h
}

// Validate resolves association targets. Call once after all types are registered.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		st := r.types[name]
		st.targets = make(map[string]*TypeDescriptor, len(st.desc.Associations))
		for _, a := range st.desc.Associations {
			target, ok := r.types[a.Target]
			if !ok {
				return fmt.Errorf("type %s: association %s targets unregistered type %s", name, a.Name, a.Target)
			}
			st.targets[a.Name] = target.desc
		}
	}
	return nil
}

// Observe adds a restore observer.
func (r *Registry) Observe(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

func (r *Registry) notify(event string) Callback {
	return func(ctx context.Context, rec Entity) error {
		r.mu.Lock()
		observers := append([]Observer(nil), r.observers...)
		r.mu.Unlock()
		for _, o := range observers {
			o.Notify(ctx, event, rec)
		}
		return nil
	}
}

func (r *Registry) state(name string) (*typeState, error) {
	st, ok := r.types[name]
	if !ok {
		return nil, apperror.NewUnknownEntityType(name)
	}
	return st, nil
}

// Descriptor returns the registered descriptor of name.
func (r *Registry) Descriptor(name string) (*TypeDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.state(name)
	if err != nil {
		return nil, err
	}
	return st.desc, nil
}

// Hooks returns the hook set of name.
func (r *Registry) Hooks(name string) (*Hooks, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.state(name)
	if err != nil {
		return nil, err
	}
	return st.hooks, nil
}

// Types lists registered type names in registration order.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// target returns the descriptor an association of owner points at.
func (r *Registry) target(owner string, assoc Association) (*TypeDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.state(owner)
	if err != nil {
		return nil, err
	}
	if d, ok := st.targets[assoc.Name]; ok {
		return d, nil
	}
	t, err := r.state(assoc.Target)
	if err != nil {
		return nil, err
	}
	return t.desc, nil
}

// Resolve decides, once per connection, whether name participates in soft delete.
//
// Eligibility needs all of: the feature enabled, no opt out, a concrete
// (non-abstract) type, a table outside the exclusion list, and a table that
// exists with both the flag and timestamp columns. A failed check is not an
// error; the type simply behaves as a plain hard-delete type. Introspection
// I/O errors are logged and leave the type unchecked so the next call retries.
// The only error returned is for an unregistered name.
func (r *Registry) Resolve(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.state(name)
	if err != nil {
		return false, err
	}
	if st.checked {
		return st.participation == ParticipationEnrolled, nil
	}

	eligible, err := r.eligible(ctx, st.desc)
	if err != nil {
		logger.Warn(ctx, "soft delete eligibility check failed",
			"entity", name,
			"table", st.desc.Table,
			"error", err,
		)
		return false, nil
	}

	if eligible {
		st.participation = ParticipationEnrolled
		logger.Debug(ctx, "soft delete enabled", "entity", name, "table", st.desc.Table)
	}
	st.checked = true
	return eligible, nil
}

func (r *Registry) eligible(ctx context.Context, d *TypeDescriptor) (bool, error) {
	if d.OptOut || !r.cfg.Enabled || d.Abstract {
		return false, nil
	}
	if _, excluded := r.excluded[d.Table]; excluded {
		return false, nil
	}
	if r.conn == nil {
		return false, nil
	}

	r.checks++

	exists, err := r.conn.TableExists(ctx, d.Table)
	if err != nil || !exists {
		return false, err
	}
	for _, col := range []string{d.TimestampColumn, d.FlagColumn} {
		ok, err := r.conn.ColumnExists(ctx, d.Table, col)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// ResolveAll resolves every registered type and returns the enrolled ones, sorted.
func (r *Registry) ResolveAll(ctx context.Context) []string {
	var enrolled []string
	for _, name := range r.Types() {
		if ok, _ := r.Resolve(ctx, name); ok {
			enrolled = append(enrolled, name)
		}
	}
	sort.Strings(enrolled)
	return enrolled
}

// IsEnrolled is Resolve for callers that treat unknown types as not enrolled.
func (r *Registry) IsEnrolled(ctx context.Context, name string) bool {
	ok, _ := r.Resolve(ctx, name)
	return ok
}

// Participation reports the current tri-state of name without resolving.
func (r *Registry) Participation(name string) Participation {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.types[name]
	if !ok {
		return ParticipationUnknown
	}
	return st.participation
}

// ReplaceConnection swaps the introspection collaborator. Column layout may
// differ on the new connection, so every type is re-checked on next use.
func (r *Registry) ReplaceConnection(conn Introspector) {
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	r.Invalidate()
}

// Invalidate forgets every eligibility decision while keeping the connection.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.types {
		st.checked = false
		if st.desc.OptOut {
			st.participation = ParticipationOptedOut
		} else {
			st.participation = ParticipationUnknown
		}
	}
}

// Scopes returns the predicate builder of name, resolving eligibility first.
func (r *Registry) Scopes(ctx context.Context, name string) (Scopes, error) {
	enrolled, err := r.Resolve(ctx, name)
	if err != nil {
		return Scopes{}, err
	}
	d, err := r.Descriptor(name)
	if err != nil {
		return Scopes{}, err
	}
	return Scopes{desc: d, enrolled: enrolled}, nil
}

// introspections reports how many schema checks have been issued.
func (r *Registry) introspections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checks
}
