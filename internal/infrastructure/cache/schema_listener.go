// Package cache keeps in-process eligibility state in step with the database
// through PostgreSQL LISTEN/NOTIFY.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tombstone/internal/infrastructure/storage/postgres"
	"tombstone/pkg/logger"
)

// Invalidator drops memoized schema-derived state. softdelete.Registry
// implements it.
type Invalidator interface {
	Invalidate()
}

// InvalidationListener is called after each handled notification.
type InvalidationListener func(channel string, payload string)

// SchemaListener invalidates the registry whenever a schema change is
// announced on postgres.SchemaChangedChannel, so tables migrated by
// schizify are picked up without a restart.
type SchemaListener struct {
	pool        *pgxpool.Pool
	invalidator Invalidator
	received    atomic.Int64

	listeners   []InvalidationListener
	listenersMu sync.RWMutex

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewSchemaListener creates a listener invalidating inv.
func NewSchemaListener(pool *pgxpool.Pool, inv Invalidator) *SchemaListener {
	return &SchemaListener{
		pool:        pool,
		invalidator: inv,
		ctx:         context.Background(),
	}
}

// Start begins listening for NOTIFY events.
func (l *SchemaListener) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop()
	logger.Info(l.ctx, "schema listener started", "channel", postgres.SchemaChangedChannel)
}

// Stop gracefully stops the listener.
func (l *SchemaListener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
	logger.Info(context.Background(), "schema listener stopped")
}

// listenLoop holds a dedicated connection subscribed to the channel and
// reconnects after failures.
func (l *SchemaListener) listenLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			logger.Error(l.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		_, err = conn.Exec(l.ctx, "LISTEN "+postgres.SchemaChangedChannel)
		if err != nil {
			logger.Error(l.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		// Changes made while disconnected were missed.
		l.invalidator.Invalidate()

		l.waitForNotifications(conn)
		conn.Release()
	}
}

// waitForNotifications blocks waiting for NOTIFY events.
func (l *SchemaListener) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		// Wait with a timeout so shutdown is noticed
		ctx, cancel := context.WithTimeout(l.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			if conn.Conn().IsClosed() {
				logger.Warn(l.ctx, "LISTEN connection lost", "error", err)
				return
			}
			continue
		}

		l.handleNotification(notification.Channel, notification.Payload)
	}
}

// handleNotification processes a NOTIFY event. The payload names the
// altered table; any change invalidates every type since descriptors may
// share tables.
func (l *SchemaListener) handleNotification(channel, payload string) {
	if channel != postgres.SchemaChangedChannel {
		return
	}
	l.received.Add(1)

	logger.Info(l.ctx, "schema changed, invalidating soft delete eligibility",
		"table", strings.TrimSpace(payload))
	l.invalidator.Invalidate()

	l.listenersMu.RLock()
	for _, listener := range l.listeners {
		func(fn InvalidationListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(l.ctx, "listener panic recovered", "channel", channel, "panic", r)
				}
			}()
			fn(channel, payload)
		}(listener)
	}
	l.listenersMu.RUnlock()
}

// OnInvalidation registers a callback run after each invalidation.
func (l *SchemaListener) OnInvalidation(listener InvalidationListener) {
	l.listenersMu.Lock()
	l.listeners = append(l.listeners, listener)
	l.listenersMu.Unlock()
}

// Received returns the number of schema change notifications handled.
func (l *SchemaListener) Received() int64 {
	return l.received.Load()
}
