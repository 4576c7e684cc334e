package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"tombstone/internal/softdelete"
	"tombstone/pkg/logger"
)

// SchemaChangedChannel is notified after Schizify alters a table, so running
// registries can re-check eligibility.
const SchemaChangedChannel = "tombstone_schema_changed"

// SchizifyConfig controls the bulk retrofit of tombstone columns.
type SchizifyConfig struct {
	FlagColumn      string
	TimestampColumn string
	// ViewSuffix names the active-rows view: <table><suffix>.
	ViewSuffix string
	// ExcludedTables are never touched by Apply.
	ExcludedTables []string
	// SkipRule leaves physical DELETE alone instead of rewriting it into a
	// soft delete.
	SkipRule bool
}

// DefaultSchizifyConfig returns the standard column layout.
func DefaultSchizifyConfig() SchizifyConfig {
	return SchizifyConfig{
		FlagColumn:      softdelete.DefaultFlagColumn,
		TimestampColumn: softdelete.DefaultTimestampColumn,
		ViewSuffix:      "_v",
	}
}

// Schizify adds or removes tombstone columns, the active-rows view and the
// DELETE rewrite rule across tables of the current schema.
type Schizify struct {
	txm      *TxManager
	cfg      SchizifyConfig
	sb       squirrel.StatementBuilderType
	excluded map[string]struct{}
}

// NewSchizify creates a migrator.
func NewSchizify(txm *TxManager, cfg SchizifyConfig) *Schizify {
	excluded := make(map[string]struct{}, len(cfg.ExcludedTables))
	for _, t := range cfg.ExcludedTables {
		excluded[t] = struct{}{}
	}
	return &Schizify{
		txm:      txm,
		cfg:      cfg,
		sb:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		excluded: excluded,
	}
}

// tableKeys is a table with its primary key columns in key order.
type tableKeys struct {
	Table string
	Keys  []string
}

// applyCandidates selects base tables of the current schema that have a
// primary key and lack the flag column.
func (s *Schizify) applyCandidates(tables []string) squirrel.SelectBuilder {
	q := s.sb.Select("tc.table_name", "kc.column_name").
		From("information_schema.table_constraints tc").
		Join("information_schema.key_column_usage kc ON kc.constraint_name = tc.constraint_name AND kc.table_schema = tc.table_schema AND kc.table_name = tc.table_name").
		Join("information_schema.tables t ON t.table_name = tc.table_name AND t.table_schema = tc.table_schema").
		Where(squirrel.Eq{"tc.constraint_type": "PRIMARY KEY"}).
		Where(squirrel.Eq{"t.table_type": "BASE TABLE"}).
		Where("t.table_schema = current_schema()").
		Where("NOT EXISTS (SELECT 1 FROM information_schema.columns c WHERE c.table_schema = t.table_schema AND c.table_name = t.table_name AND c.column_name = ?)", s.cfg.FlagColumn).
		OrderBy("tc.table_name", "kc.ordinal_position")
	if len(tables) > 0 {
		q = q.Where(squirrel.Eq{"t.table_name": tables})
	}
	return q
}

// revertCandidates selects base tables of the current schema carrying the flag column.
func (s *Schizify) revertCandidates() squirrel.SelectBuilder {
	return s.sb.Select("t.table_name").
		From("information_schema.tables t").
		Where(squirrel.Eq{"t.table_type": "BASE TABLE"}).
		Where("t.table_schema = current_schema()").
		Where("EXISTS (SELECT 1 FROM information_schema.columns c WHERE c.table_schema = t.table_schema AND c.table_name = t.table_name AND c.column_name = ?)", s.cfg.FlagColumn).
		OrderBy("t.table_name")
}

func ident(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

// applyStatements retrofits one table.
func (s *Schizify) applyStatements(tk tableKeys) []string {
	t := ident(tk.Table)
	flag := ident(s.cfg.FlagColumn)
	ts := ident(s.cfg.TimestampColumn)

	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s BOOLEAN NOT NULL DEFAULT FALSE", t, flag),
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TIMESTAMP DEFAULT NULL", t, ts),
		fmt.Sprintf("CREATE INDEX %s ON %s (%s)", ident(tk.Table+"_"+s.cfg.FlagColumn), t, flag),
		fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s WHERE %s = false", ident(tk.Table+s.cfg.ViewSuffix), t, flag),
	}
	if s.cfg.SkipRule {
		return stmts
	}

	match := make([]string, 0, len(tk.Keys))
	for _, k := range tk.Keys {
		match = append(match, fmt.Sprintf("%s = OLD.%s", ident(k), ident(k)))
	}
	return append(stmts, fmt.Sprintf(
		"CREATE OR REPLACE RULE %s AS ON DELETE TO %s DO INSTEAD UPDATE %s SET %s = true, %s = NOW() WHERE %s",
		ident("set_"+s.cfg.FlagColumn+"_on_"+tk.Table), t, t, flag, ts, strings.Join(match, " AND "),
	))
}

// revertStatements strips one table. Dropping the flag column cascades to the rule.
func (s *Schizify) revertStatements(table string) []string {
	t := ident(table)
	return []string{
		fmt.Sprintf("DROP VIEW IF EXISTS %s", ident(table+s.cfg.ViewSuffix)),
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s CASCADE", t, ident(s.cfg.FlagColumn)),
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", t, ident(s.cfg.TimestampColumn)),
	}
}

// Apply retrofits the listed tables, or every eligible table when none are
// given. Each table is migrated in its own transaction. It returns the tables
// changed.
func (s *Schizify) Apply(ctx context.Context, tables ...string) ([]string, error) {
	candidates, err := s.loadApplyCandidates(ctx, tables)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, tk := range candidates {
		if _, skip := s.excluded[tk.Table]; skip {
			logger.Info(ctx, "schizify: skipping excluded table", "table", tk.Table)
			continue
		}
		if err := s.exec(ctx, tk.Table, s.applyStatements(tk)); err != nil {
			return done, err
		}
		logger.Info(ctx, "schizify: table retrofitted", "table", tk.Table, "keys", tk.Keys)
		done = append(done, tk.Table)
	}
	return done, nil
}

// Revert removes tombstone columns from the listed tables, or from every
// table carrying the flag column when none are given.
func (s *Schizify) Revert(ctx context.Context, tables ...string) ([]string, error) {
	if len(tables) == 0 {
		var err error
		tables, err = s.loadRevertCandidates(ctx)
		if err != nil {
			return nil, err
		}
	}

	var done []string
	for _, t := range tables {
		if err := s.exec(ctx, t, s.revertStatements(t)); err != nil {
			return done, err
		}
		logger.Info(ctx, "schizify: table reverted", "table", t)
		done = append(done, t)
	}
	return done, nil
}

func (s *Schizify) exec(ctx context.Context, table string, stmts []string) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := s.txm.GetQuerier(ctx)
		for _, stmt := range stmts {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("schizify %s: %w", table, err)
			}
		}
		if _, err := q.Exec(ctx, "SELECT pg_notify($1, $2)", SchemaChangedChannel, table); err != nil {
			return fmt.Errorf("notify %s: %w", table, err)
		}
		return nil
	})
}

func (s *Schizify) loadApplyCandidates(ctx context.Context, tables []string) ([]tableKeys, error) {
	sql, args, err := s.applyCandidates(tables).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var table, key string
		if err := rows.Scan(&table, &key); err != nil {
			return nil, fmt.Errorf("scan tables: %w", err)
		}
		pairs = append(pairs, [2]string{table, key})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	return groupKeys(pairs), nil
}

func (s *Schizify) loadRevertCandidates(ctx context.Context) ([]string, error) {
	sql, args, err := s.revertCandidates().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	return tables, nil
}

// groupKeys folds (table, key column) rows into one entry per table,
// preserving key order within a table.
func groupKeys(pairs [][2]string) []tableKeys {
	byTable := make(map[string]*tableKeys)
	var order []string
	for _, p := range pairs {
		tk, ok := byTable[p[0]]
		if !ok {
			tk = &tableKeys{Table: p[0]}
			byTable[p[0]] = tk
			order = append(order, p[0])
		}
		tk.Keys = append(tk.Keys, p[1])
	}
	sort.Strings(order)

	out := make([]tableKeys, 0, len(order))
	for _, t := range order {
		out = append(out, *byTable[t])
	}
	return out
}
