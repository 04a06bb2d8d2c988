package alter

import (
	"testing"

	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/sqlbuild"
)

func TestStatementAddColumn(t *testing.T) {
	tests := []struct {
		name    string
		dialect sqlbuild.Dialect
		col     schema.ColumnDefinition
		want    string
	}{
		{
			name:    "mysql nullable with comment",
			dialect: sqlbuild.DialectMySQL,
			col: schema.ColumnDefinition{
				Name: "nickname", TypeName: "VARCHAR(64)", IsNullable: true, Comment: "display name",
			},
			want: "ALTER TABLE users ADD COLUMN nickname VARCHAR(64) NULL COMMENT 'display name'",
		},
		{
			name:    "mysql not null with default",
			dialect: sqlbuild.DialectMySQL,
			col: schema.ColumnDefinition{
				Name: "age", TypeName: "INT", DefaultValue: "0",
			},
			want: "ALTER TABLE users ADD COLUMN age INT NOT NULL DEFAULT 0",
		},
		{
			name:    "postgres not null with default",
			dialect: sqlbuild.DialectPostgres,
			col: schema.ColumnDefinition{
				Name: "age", TypeName: "integer", DefaultValue: "0",
			},
			want: "ALTER TABLE users ADD COLUMN age integer NOT NULL DEFAULT 0",
		},
		{
			name:    "sqlite nullable",
			dialect: sqlbuild.DialectSQLite,
			col: schema.ColumnDefinition{
				Name: "note", TypeName: "TEXT", IsNullable: true,
			},
			want: "ALTER TABLE users ADD COLUMN note TEXT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Add(tt.col).Statement(tt.dialect, "users")
			if err != nil {
				t.Fatalf("Statement failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Statement = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatementModifyColumn(t *testing.T) {
	col := schema.ColumnDefinition{Name: "age", TypeName: "BIGINT", IsNullable: true}

	got, err := Modify("age", col).Statement(sqlbuild.DialectMySQL, "users")
	if err != nil {
		t.Fatalf("Statement failed: %v", err)
	}
	want := "ALTER TABLE users MODIFY COLUMN age BIGINT NULL"
	if got != want {
		t.Errorf("mysql = %q, want %q", got, want)
	}

	got, err = Modify("age", col).Statement(sqlbuild.DialectPostgres, "users")
	if err != nil {
		t.Fatalf("Statement failed: %v", err)
	}
	want = "ALTER TABLE users ALTER COLUMN age TYPE BIGINT"
	if got != want {
		t.Errorf("postgres = %q, want %q", got, want)
	}
}

func TestStatementDropAndRename(t *testing.T) {
	got, err := Drop("age").Statement(sqlbuild.DialectSQLite, "users")
	if err != nil {
		t.Fatalf("Statement failed: %v", err)
	}
	if want := "ALTER TABLE users DROP COLUMN age"; got != want {
		t.Errorf("drop = %q, want %q", got, want)
	}

	got, err = Rename("age", "years").Statement(sqlbuild.DialectSQLite, "users")
	if err != nil {
		t.Fatalf("Statement failed: %v", err)
	}
	if want := "ALTER TABLE users RENAME COLUMN age TO years"; got != want {
		t.Errorf("rename = %q, want %q", got, want)
	}
}

func TestStatementIndexes(t *testing.T) {
	idx := schema.IndexDefinition{Name: "idx_users_name", Columns: []string{"name", "age"}, IsUnique: true}

	got, err := AddIndex(idx).Statement(sqlbuild.DialectSQLite, "users")
	if err != nil {
		t.Fatalf("Statement failed: %v", err)
	}
	if want := "CREATE UNIQUE INDEX idx_users_name ON users (name, age)"; got != want {
		t.Errorf("add index = %q, want %q", got, want)
	}

	// MySQL addresses the table in DROP INDEX; everyone else drops by name.
	got, err = DropIndex("idx_users_name").Statement(sqlbuild.DialectMySQL, "users")
	if err != nil {
		t.Fatalf("Statement failed: %v", err)
	}
	if want := "DROP INDEX idx_users_name ON users"; got != want {
		t.Errorf("mysql drop index = %q, want %q", got, want)
	}

	got, err = DropIndex("idx_users_name").Statement(sqlbuild.DialectPostgres, "users")
	if err != nil {
		t.Fatalf("Statement failed: %v", err)
	}
	if want := "DROP INDEX idx_users_name"; got != want {
		t.Errorf("postgres drop index = %q, want %q", got, want)
	}
}

func TestStatementValidation(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
	}{
		{"add without definition", Operation{Type: OpAdd}},
		{"modify without definition", Operation{Type: OpModify, ColumnName: "x"}},
		{"drop without name", Operation{Type: OpDrop}},
		{"rename without target", Operation{Type: OpRename, ColumnName: "x"}},
		{"add index without columns", Operation{Type: OpAddIndex, Index: &schema.IndexDefinition{Name: "i"}}},
		{"drop index without name", Operation{Type: OpDropIndex}},
		{"unknown type", Operation{Type: "explode"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.op.Statement(sqlbuild.DialectSQLite, "users"); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestCommentStatements(t *testing.T) {
	col := schema.ColumnDefinition{Name: "age", TypeName: "integer", Comment: "years since birth"}

	stmts := Add(col).CommentStatements(sqlbuild.DialectPostgres, "users")
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	want := "COMMENT ON COLUMN users.age IS 'years since birth'"
	if stmts[0] != want {
		t.Errorf("comment = %q, want %q", stmts[0], want)
	}

	// MySQL carries the comment inline.
	if stmts := Add(col).CommentStatements(sqlbuild.DialectMySQL, "users"); stmts != nil {
		t.Errorf("mysql CommentStatements = %v, want nil", stmts)
	}
	if stmts := Drop("age").CommentStatements(sqlbuild.DialectPostgres, "users"); stmts != nil {
		t.Errorf("drop CommentStatements = %v, want nil", stmts)
	}
}

func TestColumnEditorAdd(t *testing.T) {
	e := NewAddColumn()
	if !e.Working.IsNullable {
		t.Error("add template should start nullable")
	}

	e.Working.Name = "nickname"
	e.Working.TypeName = "TEXT"

	ops, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(ops) != 1 || ops[0].Type != OpAdd {
		t.Errorf("ops = %+v, want single add", ops)
	}
}

func TestColumnEditorEditRenameOrder(t *testing.T) {
	e := NewEditColumn(schema.ColumnDefinition{Name: "age", TypeName: "INT", IsNullable: true})
	e.Working.Name = "years"
	e.Working.TypeName = "BIGINT"

	ops, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops, want rename then modify", len(ops))
	}
	if ops[0].Type != OpRename || ops[0].ColumnName != "age" || ops[0].NewName != "years" {
		t.Errorf("ops[0] = %+v, want rename age to years", ops[0])
	}
	// The modify must address the column by its new name.
	if ops[1].Type != OpModify || ops[1].ColumnName != "years" {
		t.Errorf("ops[1] = %+v, want modify on years", ops[1])
	}
}

func TestColumnEditorEditWithoutRename(t *testing.T) {
	e := NewEditColumn(schema.ColumnDefinition{Name: "age", TypeName: "INT"})
	e.Working.TypeName = "BIGINT"

	ops, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(ops) != 1 || ops[0].Type != OpModify {
		t.Errorf("ops = %+v, want single modify", ops)
	}
}

func TestColumnEditorValidation(t *testing.T) {
	e := NewAddColumn()
	if _, err := e.Submit(); err == nil {
		t.Error("empty name should fail")
	}
	e.Working.Name = "x"
	if _, err := e.Submit(); err == nil {
		t.Error("empty type should fail")
	}
}

func TestIndexEditor(t *testing.T) {
	e := NewAddIndex()
	if _, err := e.Submit(); err == nil {
		t.Error("empty index should fail")
	}

	e.Working.Name = "idx_users_name"
	if _, err := e.Submit(); err == nil {
		t.Error("index without columns should fail")
	}

	e.Working.Columns = []string{"name"}
	op, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if op.Type != OpAddIndex || op.Index.Name != "idx_users_name" {
		t.Errorf("op = %+v, want add_index", op)
	}
}

func TestDropEligible(t *testing.T) {
	if DropEligible(schema.IndexDefinition{Name: "pk", IsPK: true}) {
		t.Error("primary key index must not be drop-eligible")
	}
	if !DropEligible(schema.IndexDefinition{Name: "idx"}) {
		t.Error("ordinary index should be drop-eligible")
	}

	if _, err := SubmitDropIndex(schema.IndexDefinition{Name: "pk", IsPK: true}); err == nil {
		t.Error("dropping a pk index should fail")
	}
	op, err := SubmitDropIndex(schema.IndexDefinition{Name: "idx"})
	if err != nil {
		t.Fatalf("SubmitDropIndex failed: %v", err)
	}
	if op.Type != OpDropIndex || op.IndexName != "idx" {
		t.Errorf("op = %+v, want drop_index idx", op)
	}
}
