// Package browse orchestrates schema-driven table browsing: selecting a
// table loads its catalog, reads go out as count + data page queries, rows
// come back classified for display, and edits flow through the statement
// builders. All executor traffic is single-shot request/response issued by
// the triggering action; the session schedules nothing in the background.
package browse

import (
	"context"
	"errors"
	"sync"

	"github.com/happydigua/recch/core/alter"
	rerrors "github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/present"
	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/sqlbuild"
	"github.com/happydigua/recch/core/value"
)

// Executor is the session's only boundary: a synchronous request/response
// adapter to the actual store. Its Columns/Indexes half satisfies
// schema.Source.
type Executor interface {
	// Columns returns a table's column definitions in display order.
	Columns(ctx context.Context, table, database string) ([]schema.ColumnDefinition, error)

	// Indexes returns a table's index definitions.
	Indexes(ctx context.Context, table string) ([]schema.IndexDefinition, error)

	// Query executes a statement and returns its rows. Statements without a
	// result set return an empty slice.
	Query(ctx context.Context, statement string) ([]value.Row, error)

	// Alter applies one structured schema-change operation to a table.
	Alter(ctx context.Context, table string, op alter.Operation) error
}

var (
	// ErrPending reports that the same operation is already in flight. The
	// gate is advisory: it stops duplicate re-triggers from one control but
	// does not cancel or fence the request already running.
	ErrPending = errors.New("operation already in progress")

	// ErrStaleResponse reports that a read completed after a newer read had
	// already been issued; its response was discarded instead of
	// overwriting the newer one.
	ErrStaleResponse = errors.New("stale response discarded")

	// ErrNoTable reports that no table has been selected yet.
	ErrNoTable = errors.New("no table selected")
)

// Session drives browsing and editing of one table at a time. Methods are
// safe for concurrent use; overlapping reads resolve through the request
// token, with the stale response discarded.
type Session struct {
	exec    Executor
	dialect sqlbuild.Dialect

	mu      sync.Mutex
	catalog schema.Catalog
	sort    sqlbuild.SortState
	page    sqlbuild.PageState
	rows    []value.Row
	total   int64
	loading map[string]bool
	// token orders read requests; a response is applied only while its
	// token is still the newest issued.
	token uint64
}

// NewSession creates a session over exec using the dialect's statement
// conventions. Page size falls back to the default when not positive.
func NewSession(exec Executor, dialect sqlbuild.Dialect, pageSize int) *Session {
	return &Session{
		exec:    exec,
		dialect: dialect,
		page:    sqlbuild.NewPageState(1, pageSize),
		loading: make(map[string]bool),
	}
}

// Catalog returns a snapshot of the loaded schema catalog.
func (s *Session) Catalog() *schema.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat := s.catalog
	return &cat
}

// Rows returns the current data page.
func (s *Session) Rows() []value.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Total returns the row count from the last refresh.
func (s *Session) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Page returns the current page state.
func (s *Session) Page() sqlbuild.PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Sort returns the current sort state.
func (s *Session) Sort() sqlbuild.SortState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sort
}

// SelectTable switches the session to a new table: the catalog is rebuilt
// wholesale, sort and pagination reset, and the first page is fetched. On a
// failed catalog load the session holds no schema and every dependent
// operation stays disabled.
func (s *Session) SelectTable(ctx context.Context, table, database string) error {
	if !s.begin("select") {
		return ErrPending
	}
	defer s.end("select")

	s.mu.Lock()
	s.sort.Clear()
	s.page.Reset()
	s.rows = nil
	s.total = 0
	s.mu.Unlock()

	if err := s.loadCatalog(ctx, table, database); err != nil {
		return err
	}
	return s.refresh(ctx)
}

// ReloadCatalog re-fetches the schema for the current table.
func (s *Session) ReloadCatalog(ctx context.Context) error {
	s.mu.Lock()
	table, database := s.catalog.Table(), s.catalog.Database()
	s.mu.Unlock()

	if table == "" {
		return ErrNoTable
	}
	return s.loadCatalog(ctx, table, database)
}

// loadCatalog fetches the schema into a fresh catalog and swaps it in under
// the lock, so readers never observe a half-loaded catalog. A failed load
// still swaps: the session then holds an empty catalog for the new table.
func (s *Session) loadCatalog(ctx context.Context, table, database string) error {
	var cat schema.Catalog
	err := cat.Load(ctx, s.exec, table, database)

	s.mu.Lock()
	s.catalog = cat
	s.mu.Unlock()
	return err
}

// SetSort applies a sort toggle reported by the caller. Direction none (or
// an empty column) clears the sort. Any change resets the page to 1, since
// changing the ordering invalidates the previous pagination window, and
// re-fetches the data.
func (s *Session) SetSort(ctx context.Context, column string, dir sqlbuild.Direction) error {
	s.mu.Lock()
	changed := s.sort.Apply(column, dir)
	if changed {
		s.page.Reset()
	}
	s.mu.Unlock()
	if !changed {
		return nil
	}
	return s.Refresh(ctx)
}

// SetPage moves to the given 1-based page and re-fetches the data.
func (s *Session) SetPage(ctx context.Context, page int) error {
	s.mu.Lock()
	s.page = sqlbuild.NewPageState(page, s.page.PageSize)
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// Refresh re-runs the count and data queries for the current window. A
// refresh that loses the race to a newer refresh returns ErrStaleResponse
// and leaves the newer result in place.
func (s *Session) Refresh(ctx context.Context) error {
	if !s.begin("refresh") {
		return ErrPending
	}
	defer s.end("refresh")
	return s.refresh(ctx)
}

func (s *Session) refresh(ctx context.Context) error {
	s.mu.Lock()
	if !s.catalog.Loaded() {
		s.mu.Unlock()
		return rerrors.ErrCatalogUnavailable
	}
	s.token++
	token := s.token
	q := sqlbuild.PagedQuery{
		Dialect:  s.dialect,
		Table:    s.catalog.Table(),
		Database: s.catalog.Database(),
		Page:     s.page,
		Sort:     s.sort,
	}
	s.mu.Unlock()

	countRows, err := s.exec.Query(ctx, q.CountQuery())
	if err != nil {
		return err
	}
	total := extractCount(countRows)

	rows, err := s.exec.Query(ctx, q.DataQuery())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		return ErrStaleResponse
	}
	s.total = total
	s.rows = rows
	return nil
}

// extractCount pulls the single scalar out of a COUNT(*) result. Column
// naming differs across engines, so the first value of the first row wins.
func extractCount(rows []value.Row) int64 {
	if len(rows) == 0 {
		return 0
	}
	for _, v := range rows[0] {
		if v.Kind() == value.KindNumber {
			return int64(v.AsNumber())
		}
	}
	return 0
}

// begin marks an operation as in flight. It reports false when that
// operation is already pending.
func (s *Session) begin(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading[op] {
		return false
	}
	s.loading[op] = true
	return true
}

func (s *Session) end(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loading, op)
}

// Loading reports whether the named operation is in flight.
func (s *Session) Loading(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading[op]
}

// PresentedRows classifies the current page for display, one presentation
// per catalog column per row, in catalog column order.
func (s *Session) PresentedRows() [][]present.Presentation {
	s.mu.Lock()
	rows := s.rows
	cols := s.catalog.Columns()
	s.mu.Unlock()

	out := make([][]present.Presentation, 0, len(rows))
	for _, row := range rows {
		view := make([]present.Presentation, 0, len(cols))
		for _, col := range cols {
			v, ok := row[col.Name]
			if !ok {
				v = value.Null()
			}
			view = append(view, present.Classify(v))
		}
		out = append(out, view)
	}
	return out
}

// Insert builds and executes an INSERT for row, then re-fetches schema and
// data. There is no optimistic or incremental update: a successful mutation
// always triggers a full reload.
func (s *Session) Insert(ctx context.Context, row value.Row) error {
	stmt, err := s.mutation().Insert(row)
	if err != nil {
		return err
	}
	return s.execMutation(ctx, stmt)
}

// Update builds and executes an UPDATE for row, addressed by the row's
// current in-memory primary key value, then re-fetches schema and data.
func (s *Session) Update(ctx context.Context, row value.Row) error {
	stmt, err := s.mutation().Update(row)
	if err != nil {
		return err
	}
	return s.execMutation(ctx, stmt)
}

// Delete builds and executes a DELETE by primary key value, then re-fetches
// schema and data.
func (s *Session) Delete(ctx context.Context, pkValue value.Value) error {
	stmt, err := s.mutation().Delete(pkValue)
	if err != nil {
		return err
	}
	return s.execMutation(ctx, stmt)
}

func (s *Session) mutation() sqlbuild.Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat := s.catalog
	return sqlbuild.Mutation{Dialect: s.dialect, Catalog: &cat}
}

func (s *Session) execMutation(ctx context.Context, stmt string) error {
	if !s.begin("mutate") {
		return ErrPending
	}
	defer s.end("mutate")

	if _, err := s.exec.Query(ctx, stmt); err != nil {
		return err
	}
	if err := s.ReloadCatalog(ctx); err != nil {
		return err
	}
	return s.refresh(ctx)
}

// ApplyAlter applies schema-change operations in order, stopping at the
// first failure, then re-fetches schema and data. Order matters: a column
// editor emits rename before modify because the modify payload addresses
// the column by its new name.
func (s *Session) ApplyAlter(ctx context.Context, ops []alter.Operation) error {
	s.mu.Lock()
	loaded := s.catalog.Loaded()
	table := s.catalog.Table()
	s.mu.Unlock()
	if !loaded {
		return rerrors.ErrCatalogUnavailable
	}
	if !s.begin("alter") {
		return ErrPending
	}
	defer s.end("alter")
	for _, op := range ops {
		if err := s.exec.Alter(ctx, table, op); err != nil {
			return err
		}
	}
	if err := s.ReloadCatalog(ctx); err != nil {
		return err
	}
	return s.refresh(ctx)
}
