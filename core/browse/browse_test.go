package browse

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/happydigua/recch/core/alter"
	rerrors "github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/present"
	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/sqlbuild"
	"github.com/happydigua/recch/core/value"
)

// fakeExec is a scripted executor that records every statement it sees.
type fakeExec struct {
	cols []schema.ColumnDefinition
	idxs []schema.IndexDefinition

	colCalls int
	queries  []string
	alters   []alter.Operation

	rows    []value.Row
	total   int64
	onQuery func(stmt string)
}

func (f *fakeExec) Columns(ctx context.Context, table, database string) ([]schema.ColumnDefinition, error) {
	f.colCalls++
	return f.cols, nil
}

func (f *fakeExec) Indexes(ctx context.Context, table string) ([]schema.IndexDefinition, error) {
	return f.idxs, nil
}

func (f *fakeExec) Query(ctx context.Context, statement string) ([]value.Row, error) {
	f.queries = append(f.queries, statement)
	if f.onQuery != nil {
		f.onQuery(statement)
	}
	if strings.HasPrefix(statement, "SELECT COUNT(*)") {
		return []value.Row{{"COUNT(*)": value.Int(f.total)}}, nil
	}
	if strings.HasPrefix(statement, "SELECT * FROM") {
		return f.rows, nil
	}
	return nil, nil
}

func (f *fakeExec) Alter(ctx context.Context, table string, op alter.Operation) error {
	f.alters = append(f.alters, op)
	return nil
}

func (f *fakeExec) lastQuery() string {
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func usersExec() *fakeExec {
	return &fakeExec{
		cols: []schema.ColumnDefinition{
			{Name: "id", TypeName: "INTEGER", IsPK: true},
			{Name: "name", TypeName: "TEXT", IsNullable: true},
		},
		rows: []value.Row{
			{"id": value.Int(1), "name": value.String("alice")},
			{"id": value.Int(2), "name": value.Null()},
		},
		total: 2,
	}
}

func TestSelectTable(t *testing.T) {
	exec := usersExec()
	s := NewSession(exec, sqlbuild.DialectSQLite, 50)

	if err := s.SelectTable(context.Background(), "users", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}

	if !s.Catalog().Loaded() {
		t.Error("catalog not loaded")
	}
	if s.Total() != 2 || len(s.Rows()) != 2 {
		t.Errorf("Total = %d, rows = %d, want 2 and 2", s.Total(), len(s.Rows()))
	}
	if got := exec.lastQuery(); got != "SELECT * FROM users LIMIT 50 OFFSET 0" {
		t.Errorf("data query = %q", got)
	}
}

func TestRefreshWithoutTable(t *testing.T) {
	s := NewSession(usersExec(), sqlbuild.DialectSQLite, 50)
	if err := s.Refresh(context.Background()); !errors.Is(err, rerrors.ErrCatalogUnavailable) {
		t.Errorf("Refresh error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestSetSortResetsPage(t *testing.T) {
	exec := usersExec()
	exec.total = 500
	s := NewSession(exec, sqlbuild.DialectSQLite, 50)
	ctx := context.Background()

	if err := s.SelectTable(ctx, "users", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}
	if err := s.SetPage(ctx, 3); err != nil {
		t.Fatalf("SetPage failed: %v", err)
	}
	if got := exec.lastQuery(); !strings.Contains(got, "OFFSET 100") {
		t.Errorf("page 3 query = %q, want OFFSET 100", got)
	}

	if err := s.SetSort(ctx, "name", sqlbuild.DirectionDescending); err != nil {
		t.Fatalf("SetSort failed: %v", err)
	}
	if got := s.Page().Page; got != 1 {
		t.Errorf("page after sort change = %d, want 1", got)
	}
	want := `SELECT * FROM users ORDER BY "name" DESC LIMIT 50 OFFSET 0`
	if got := exec.lastQuery(); got != want {
		t.Errorf("sorted query = %q, want %q", got, want)
	}
}

func TestSetSortUnchangedSkipsFetch(t *testing.T) {
	exec := usersExec()
	s := NewSession(exec, sqlbuild.DialectSQLite, 50)
	ctx := context.Background()

	if err := s.SelectTable(ctx, "users", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}
	if err := s.SetSort(ctx, "name", sqlbuild.DirectionAscending); err != nil {
		t.Fatalf("SetSort failed: %v", err)
	}

	before := len(exec.queries)
	if err := s.SetSort(ctx, "name", sqlbuild.DirectionAscending); err != nil {
		t.Fatalf("repeat SetSort failed: %v", err)
	}
	if len(exec.queries) != before {
		t.Error("unchanged sort should not re-fetch")
	}
}

func TestClearSortDropsOrderBy(t *testing.T) {
	exec := usersExec()
	s := NewSession(exec, sqlbuild.DialectSQLite, 50)
	ctx := context.Background()

	if err := s.SelectTable(ctx, "users", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}
	if err := s.SetSort(ctx, "name", sqlbuild.DirectionAscending); err != nil {
		t.Fatalf("SetSort failed: %v", err)
	}
	if err := s.SetSort(ctx, "name", sqlbuild.DirectionNone); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if got := exec.lastQuery(); strings.Contains(got, "ORDER BY") {
		t.Errorf("cleared sort query = %q, should have no ORDER BY", got)
	}
}

func TestMutationWithoutPrimaryKeyNeverReachesExecutor(t *testing.T) {
	exec := usersExec()
	exec.cols = []schema.ColumnDefinition{
		{Name: "message", TypeName: "TEXT"},
	}
	exec.rows = []value.Row{{"message": value.String("hi")}}
	exec.total = 1

	s := NewSession(exec, sqlbuild.DialectSQLite, 50)
	ctx := context.Background()
	if err := s.SelectTable(ctx, "logs", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}

	before := len(exec.queries)
	err := s.Update(ctx, value.Row{"message": value.String("bye")})
	if !errors.Is(err, rerrors.ErrNoPrimaryKey) {
		t.Errorf("Update error = %v, want ErrNoPrimaryKey", err)
	}
	err = s.Delete(ctx, value.Int(1))
	if !errors.Is(err, rerrors.ErrNoPrimaryKey) {
		t.Errorf("Delete error = %v, want ErrNoPrimaryKey", err)
	}
	if len(exec.queries) != before {
		t.Errorf("keyless mutation reached the executor: %v", exec.queries[before:])
	}
}

func TestInsertTriggersReload(t *testing.T) {
	exec := usersExec()
	s := NewSession(exec, sqlbuild.DialectSQLite, 50)
	ctx := context.Background()
	if err := s.SelectTable(ctx, "users", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}

	colCallsBefore := len(exec.queries)
	catalogLoads := exec.colCalls
	if err := s.Insert(ctx, value.Row{"name": value.String("bob")}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if exec.queries[colCallsBefore] != "INSERT INTO users (name) VALUES ('bob')" {
		t.Errorf("insert statement = %q", exec.queries[colCallsBefore])
	}
	if exec.colCalls != catalogLoads+1 {
		t.Error("mutation should reload the catalog")
	}
	if got := exec.lastQuery(); !strings.HasPrefix(got, "SELECT * FROM users") {
		t.Errorf("last query = %q, want data re-fetch", got)
	}
}

func TestApplyAlter(t *testing.T) {
	exec := usersExec()
	s := NewSession(exec, sqlbuild.DialectSQLite, 50)
	ctx := context.Background()
	if err := s.SelectTable(ctx, "users", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}

	ops := []alter.Operation{
		alter.Rename("name", "full_name"),
		alter.Modify("full_name", schema.ColumnDefinition{Name: "full_name", TypeName: "TEXT", IsNullable: true}),
	}
	if err := s.ApplyAlter(ctx, ops); err != nil {
		t.Fatalf("ApplyAlter failed: %v", err)
	}

	if len(exec.alters) != 2 {
		t.Fatalf("got %d alter calls, want 2", len(exec.alters))
	}
	if exec.alters[0].Type != alter.OpRename || exec.alters[1].Type != alter.OpModify {
		t.Errorf("alter order = %v, %v; want rename then modify", exec.alters[0].Type, exec.alters[1].Type)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	exec := usersExec()
	s := NewSession(exec, sqlbuild.DialectSQLite, 50)
	ctx := context.Background()
	if err := s.SelectTable(ctx, "users", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}

	// While the outer refresh is between its queries, a table switch issues
	// a newer request. The outer result must be discarded, not applied over
	// the newer one.
	fired := false
	exec.onQuery = func(stmt string) {
		if !fired && strings.HasPrefix(stmt, "SELECT * FROM") {
			fired = true
			exec.rows = []value.Row{{"id": value.Int(9), "name": value.String("newer")}}
			if err := s.SelectTable(ctx, "users", ""); err != nil {
				t.Errorf("inner SelectTable failed: %v", err)
			}
		}
	}

	err := s.Refresh(ctx)
	if !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("Refresh error = %v, want ErrStaleResponse", err)
	}

	rows := s.Rows()
	if len(rows) != 1 || rows[0]["name"].AsString() != "newer" {
		t.Errorf("rows = %v, want the newer response to win", rows)
	}
}

func TestPresentedRows(t *testing.T) {
	exec := usersExec()
	exec.rows = []value.Row{
		{"id": value.Int(1), "name": value.Null()},
		{"id": value.Int(2)}, // missing column fills as null
	}
	s := NewSession(exec, sqlbuild.DialectSQLite, 50)
	if err := s.SelectTable(context.Background(), "users", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}

	views := s.PresentedRows()
	if len(views) != 2 {
		t.Fatalf("got %d rows, want 2", len(views))
	}
	if views[0][0].Kind != present.KindLiteral || views[0][0].Preview != "1" {
		t.Errorf("cell (0,0) = %+v, want literal 1", views[0][0])
	}
	if views[0][1].Kind != present.KindNullMarker {
		t.Errorf("cell (0,1) = %+v, want null marker", views[0][1])
	}
	if views[1][1].Kind != present.KindNullMarker {
		t.Errorf("missing column cell = %+v, want null marker", views[1][1])
	}
}

// syncExec is a threadsafe executor for concurrency tests; the scripted
// fakeExec records state without locking and cannot be shared.
type syncExec struct {
	mu   sync.Mutex
	cols []schema.ColumnDefinition
	rows []value.Row
}

func (f *syncExec) Columns(ctx context.Context, table, database string) ([]schema.ColumnDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cols, nil
}

func (f *syncExec) Indexes(ctx context.Context, table string) ([]schema.IndexDefinition, error) {
	return nil, nil
}

func (f *syncExec) Query(ctx context.Context, statement string) ([]value.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.HasPrefix(statement, "SELECT COUNT(*)") {
		return []value.Row{{"COUNT(*)": value.Int(int64(len(f.rows)))}}, nil
	}
	return f.rows, nil
}

func (f *syncExec) Alter(ctx context.Context, table string, op alter.Operation) error {
	return nil
}

func TestConcurrentReadsAndSelects(t *testing.T) {
	exec := &syncExec{
		cols: []schema.ColumnDefinition{
			{Name: "id", TypeName: "INTEGER", IsPK: true},
			{Name: "name", TypeName: "TEXT", IsNullable: true},
		},
		rows: []value.Row{
			{"id": value.Int(1), "name": value.String("alice")},
		},
	}
	s := NewSession(exec, sqlbuild.DialectSQLite, 50)
	ctx := context.Background()
	if err := s.SelectTable(ctx, "users", ""); err != nil {
		t.Fatalf("SelectTable failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				switch (g + i) % 3 {
				case 0:
					err := s.SelectTable(ctx, "users", "")
					if err != nil && !errors.Is(err, ErrPending) && !errors.Is(err, ErrStaleResponse) {
						t.Errorf("SelectTable error = %v", err)
					}
				case 1:
					s.PresentedRows()
					s.Catalog().Columns()
					s.Total()
				case 2:
					err := s.Refresh(ctx)
					if err != nil && !errors.Is(err, ErrPending) && !errors.Is(err, ErrStaleResponse) {
						t.Errorf("Refresh error = %v", err)
					}
				}
			}
		}(g)
	}
	wg.Wait()

	if !s.Catalog().Loaded() {
		t.Error("catalog should remain loaded after concurrent access")
	}
}
