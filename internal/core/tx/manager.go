// Package tx provides transaction management abstractions.
// This package defines interfaces that decouple the lifecycle engine from specific
// database implementations.
package tx

import (
	"context"
	"sync"
)

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, and nested transaction support.
//
// The lifecycle engine depends on this interface, not concrete implementations.
// Implementations live in infrastructure/storage/postgres and infrastructure/storage/sqlite.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// AfterCommit registers fn to run once the outermost transaction in ctx commits.
	// Outside a transaction fn runs immediately. Callbacks are dropped on rollback.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}

// CommitCallbacks collects after-commit callbacks for a single transaction.
// Shared by the Manager implementations.
type CommitCallbacks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context)
}

// Add queues fn.
func (c *CommitCallbacks) Add(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.fns = append(c.fns, fn)
	c.mu.Unlock()
}

// Len returns the number of queued callbacks.
func (c *CommitCallbacks) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

// Truncate drops callbacks queued after the first n, used when a savepoint rolls back.
func (c *CommitCallbacks) Truncate(n int) {
	c.mu.Lock()
	if n < len(c.fns) {
		c.fns = c.fns[:n]
	}
	c.mu.Unlock()
}

// Run executes queued callbacks in registration order and clears the queue.
func (c *CommitCallbacks) Run(ctx context.Context) {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}
