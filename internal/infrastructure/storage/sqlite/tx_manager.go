package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"tombstone/internal/core/tx"
	"tombstone/pkg/logger"
)

var _ tx.Manager = (*TxManager)(nil)

// TxManager runs database/sql transactions. Nested calls reuse the
// transaction already in ctx.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a transaction manager over db.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

type txKey struct{}

type txState struct {
	tx        *sql.Tx
	callbacks *tx.CommitCallbacks
}

// RunInTransaction executes fn within a transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.state(ctx) != nil {
		return fn(ctx)
	}

	sqlTx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	st := &txState{tx: sqlTx, callbacks: &tx.CommitCallbacks{}}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	st.callbacks.Run(ctx)
	return nil
}

// AfterCommit queues fn on the transaction in ctx, or runs it now when there is none.
func (m *TxManager) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if st := m.state(ctx); st != nil {
		st.callbacks.Add(fn)
		return
	}
	fn(ctx)
}

func (m *TxManager) state(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetQuerier returns the transaction in ctx, or the database outside a transaction.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if st := m.state(ctx); st != nil {
		return st.tx
	}
	return m.db
}
