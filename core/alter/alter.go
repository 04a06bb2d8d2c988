// Package alter models structured schema-change operations: add, drop,
// modify and rename column, and add/drop index. Operations are built from
// form edits and rendered to dialect-specific ALTER statements; the executor
// applies them one at a time with no transaction scope.
package alter

import (
	"fmt"
	"strings"

	"github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/sqlbuild"
)

// OpType tags an Operation variant.
type OpType string

const (
	// OpAdd adds a column.
	OpAdd OpType = "add"
	// OpDrop drops a column.
	OpDrop OpType = "drop"
	// OpModify changes a column's definition in place.
	OpModify OpType = "modify"
	// OpRename renames a column.
	OpRename OpType = "rename"
	// OpAddIndex creates an index.
	OpAddIndex OpType = "add_index"
	// OpDropIndex drops an index.
	OpDropIndex OpType = "drop_index"
)

// Operation is one structured schema-change intent. Exactly the fields the
// tagged variant needs are set; the rest stay zero.
type Operation struct {
	Type OpType `json:"op_type"`

	// ColumnName targets drop, modify and rename.
	ColumnName string `json:"column_name,omitempty"`
	// NewName is the rename target.
	NewName string `json:"new_name,omitempty"`
	// Column carries the definition for add and modify.
	Column *schema.ColumnDefinition `json:"column_def,omitempty"`
	// Index carries the definition for add_index.
	Index *schema.IndexDefinition `json:"index_def,omitempty"`
	// IndexName targets drop_index.
	IndexName string `json:"index_name,omitempty"`
}

// Add builds an add-column operation.
func Add(col schema.ColumnDefinition) Operation {
	return Operation{Type: OpAdd, Column: &col}
}

// Drop builds a drop-column operation.
func Drop(columnName string) Operation {
	return Operation{Type: OpDrop, ColumnName: columnName}
}

// Modify builds a modify-column operation. The definition addresses the
// column by its current name.
func Modify(columnName string, col schema.ColumnDefinition) Operation {
	return Operation{Type: OpModify, ColumnName: columnName, Column: &col}
}

// Rename builds a rename-column operation.
func Rename(oldName, newName string) Operation {
	return Operation{Type: OpRename, ColumnName: oldName, NewName: newName}
}

// AddIndex builds an add-index operation.
func AddIndex(idx schema.IndexDefinition) Operation {
	return Operation{Type: OpAddIndex, Index: &idx}
}

// DropIndex builds a drop-index operation.
func DropIndex(indexName string) Operation {
	return Operation{Type: OpDropIndex, IndexName: indexName}
}

// Statement renders the operation as an ALTER/CREATE/DROP statement for the
// dialect. Identifiers come from the trusted catalog and are interpolated
// as-is, matching the rest of the statement builders.
func (op Operation) Statement(d sqlbuild.Dialect, table string) (string, error) {
	switch op.Type {
	case OpAdd:
		if op.Column == nil {
			return "", errors.NewValidation("column_def", "missing column definition")
		}
		return addColumnStmt(d, table, *op.Column), nil
	case OpModify:
		if op.Column == nil {
			return "", errors.NewValidation("column_def", "missing column definition")
		}
		return modifyColumnStmt(d, table, *op.Column), nil
	case OpDrop:
		if op.ColumnName == "" {
			return "", errors.NewValidation("column_name", "missing column name")
		}
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, op.ColumnName), nil
	case OpRename:
		if op.ColumnName == "" || op.NewName == "" {
			return "", errors.NewValidation("column_name", "missing rename names")
		}
		return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", table, op.ColumnName, op.NewName), nil
	case OpAddIndex:
		if op.Index == nil || len(op.Index.Columns) == 0 {
			return "", errors.NewValidation("index_def", "missing index definition")
		}
		return addIndexStmt(*op.Index, table), nil
	case OpDropIndex:
		if op.IndexName == "" {
			return "", errors.NewValidation("index_name", "missing index name")
		}
		if d == sqlbuild.DialectMySQL {
			return fmt.Sprintf("DROP INDEX %s ON %s", op.IndexName, table), nil
		}
		return fmt.Sprintf("DROP INDEX %s", op.IndexName), nil
	default:
		return "", errors.NewValidation("op_type", fmt.Sprintf("unknown operation %q", op.Type))
	}
}

// CommentStatements returns follow-up statements the dialect needs to attach
// a column comment, for dialects where the column clause itself cannot carry
// one. MySQL embeds comments inline and returns nothing here.
func (op Operation) CommentStatements(d sqlbuild.Dialect, table string) []string {
	if d != sqlbuild.DialectPostgres || op.Column == nil || op.Column.Comment == "" {
		return nil
	}
	switch op.Type {
	case OpAdd, OpModify:
		return []string{fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
			table, op.Column.Name, sqlbuild.QuoteString(op.Column.Comment))}
	}
	return nil
}

func addColumnStmt(d sqlbuild.Dialect, table string, col schema.ColumnDefinition) string {
	switch d {
	case sqlbuild.DialectMySQL:
		parts := []string{"ALTER TABLE " + table + " ADD COLUMN " + col.Name + " " + col.TypeName}
		parts = append(parts, nullClause(col))
		if col.DefaultValue != "" {
			parts = append(parts, "DEFAULT "+col.DefaultValue)
		}
		if col.IsPK {
			parts = append(parts, "PRIMARY KEY")
		}
		if col.Comment != "" {
			parts = append(parts, "COMMENT "+sqlbuild.QuoteString(col.Comment))
		}
		return strings.Join(parts, " ")
	default:
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.Name, col.TypeName)
		if !col.IsNullable {
			stmt += " NOT NULL"
		}
		if col.DefaultValue != "" {
			stmt += " DEFAULT " + col.DefaultValue
		}
		return stmt
	}
}

func modifyColumnStmt(d sqlbuild.Dialect, table string, col schema.ColumnDefinition) string {
	switch d {
	case sqlbuild.DialectMySQL:
		parts := []string{"ALTER TABLE " + table + " MODIFY COLUMN " + col.Name + " " + col.TypeName}
		parts = append(parts, nullClause(col))
		if col.DefaultValue != "" {
			parts = append(parts, "DEFAULT "+col.DefaultValue)
		}
		if col.Comment != "" {
			parts = append(parts, "COMMENT "+sqlbuild.QuoteString(col.Comment))
		}
		return strings.Join(parts, " ")
	default:
		// PostgreSQL (and SQLite's limited ALTER) change the type in place;
		// nullability and defaults take separate statements that the caller
		// issues when it needs them.
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", table, col.Name, col.TypeName)
	}
}

func nullClause(col schema.ColumnDefinition) string {
	if col.IsNullable {
		return "NULL"
	}
	return "NOT NULL"
}

func addIndexStmt(idx schema.IndexDefinition, table string) string {
	unique := ""
	if idx.IsUnique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, idx.Name, table, strings.Join(idx.Columns, ", "))
}
