// Package sqlexec adapts a SQLite database to the executor boundary: it
// answers catalog fetches from PRAGMA introspection, runs statements with
// dynamic column scanning, and applies structured schema changes.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/happydigua/recch/core/alter"
	"github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/sqlbuild"
	"github.com/happydigua/recch/core/sqlite"
	"github.com/happydigua/recch/core/value"
	"github.com/happydigua/recch/internal/logging"
)

// Executor runs against one open SQLite database.
type Executor struct {
	db *sql.DB
}

// Open opens the SQLite database at path and wraps it in an Executor.
func Open(path string) (*Executor, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &Executor{db: db}, nil
}

// New wraps an already open database.
func New(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// DB exposes the underlying handle for callers that need direct access.
func (e *Executor) DB() *sql.DB { return e.db }

// Close closes the underlying database.
func (e *Executor) Close() error { return e.db.Close() }

// Columns returns the table's column definitions from PRAGMA table_info, in
// the engine's declared order. The database qualifier is ignored: a SQLite
// handle is already bound to one database file.
func (e *Executor) Columns(ctx context.Context, table, database string) ([]schema.ColumnDefinition, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", sqlbuild.DialectSQLite.QuoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.ColumnDefinition
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, schema.ColumnDefinition{
			Name:         name,
			TypeName:     typ,
			IsPK:         pk > 0,
			IsNullable:   notNull == 0,
			DefaultValue: dflt.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.NewNotFound("table", table)
	}
	return cols, nil
}

// Indexes returns the table's index definitions from PRAGMA index_list and
// index_info. Indexes created for a PRIMARY KEY constraint carry origin
// "pk" and are flagged accordingly.
func (e *Executor) Indexes(ctx context.Context, table string) ([]schema.IndexDefinition, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", sqlbuild.DialectSQLite.QuoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type indexEntry struct {
		name   string
		unique bool
		origin string
	}
	var entries []indexEntry
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}
		entries = append(entries, indexEntry{name: name, unique: unique == 1, origin: origin})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var idxs []schema.IndexDefinition
	for _, entry := range entries {
		cols, err := e.indexColumns(ctx, entry.name)
		if err != nil {
			return nil, err
		}
		idxs = append(idxs, schema.IndexDefinition{
			Name:     entry.name,
			Columns:  cols,
			IsUnique: entry.unique,
			IsPK:     entry.origin == "pk",
		})
	}
	return idxs, nil
}

func (e *Executor) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", sqlbuild.DialectSQLite.QuoteIdent(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		// Expression index members have a NULL name.
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

// Query executes a statement and returns its rows with every value carried
// in the dynamic Value form. Statements without a result set return an
// empty slice. Failures surface the engine's message verbatim inside an
// ExecutionError; the message is never parsed or retried.
func (e *Executor) Query(ctx context.Context, statement string) ([]value.Row, error) {
	start := time.Now()
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		logging.QueryFailed(ctx, statement, err)
		return nil, errors.NewExecution(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.NewExecution(err)
	}

	var out []value.Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.NewExecution(err)
		}
		row := make(value.Row, len(cols))
		for i, col := range cols {
			row[col] = value.FromAny(raw[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		logging.QueryFailed(ctx, statement, err)
		return nil, errors.NewExecution(err)
	}

	logging.QueryExecuted(ctx, statement, len(out), time.Since(start))
	return out, nil
}

// Alter renders and applies one schema-change operation. SQLite follows the
// default dialect's ALTER grammar; column comments are not a SQLite concept
// and the comment statements render empty here.
func (e *Executor) Alter(ctx context.Context, table string, op alter.Operation) error {
	stmt, err := op.Statement(sqlbuild.DialectSQLite, table)
	if err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		logging.QueryFailed(ctx, stmt, err)
		return errors.NewExecution(err)
	}
	logging.AlterApplied(ctx, string(op.Type), table)
	return nil
}
