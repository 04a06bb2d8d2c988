package sqlbuild

import (
	"strings"

	"github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/value"
)

// Mutation builds insert, update and delete statements for the table a
// catalog was loaded for. Update and delete address rows through the
// catalog's primary key; when the table has none they fail fast with
// NoPrimaryKeyError before any statement is built, so the operation never
// reaches the executor.
type Mutation struct {
	Dialect Dialect
	Catalog *schema.Catalog
}

// Insert builds an INSERT covering only the row entries whose value is
// neither Null nor the empty string. Omitted columns are left to the store's
// default-value mechanism. Columns appear in catalog order.
func (m Mutation) Insert(row value.Row) (string, error) {
	if !m.Catalog.Loaded() {
		return "", errors.ErrCatalogUnavailable
	}

	var cols, lits []string
	for _, def := range m.Catalog.Columns() {
		v, ok := row[def.Name]
		if !ok || v.IsNull() {
			continue
		}
		if v.Kind() == value.KindString && v.AsString() == "" {
			continue
		}
		cols = append(cols, def.Name)
		lits = append(lits, RenderLiteral(v))
	}
	if len(cols) == 0 {
		return "", errors.NewValidation("row", "no insertable values")
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(m.Catalog.Table())
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(lits, ", "))
	b.WriteString(")")
	return b.String(), nil
}

// Update builds an UPDATE setting every row entry except the primary key,
// addressed by the row's current in-memory primary key value. A Null value
// renders as the NULL keyword, never as a quoted string.
func (m Mutation) Update(row value.Row) (string, error) {
	if !m.Catalog.Loaded() {
		return "", errors.ErrCatalogUnavailable
	}
	pk, ok := m.Catalog.PrimaryKey()
	if !ok {
		return "", errors.NewNoPrimaryKey(m.Catalog.Table(), "update")
	}
	pkVal, ok := row[pk]
	if !ok {
		return "", errors.NewValidation(pk, "row is missing its primary key value")
	}

	var sets []string
	for _, def := range m.Catalog.Columns() {
		if def.Name == pk {
			continue
		}
		v, ok := row[def.Name]
		if !ok {
			continue
		}
		sets = append(sets, def.Name+" = "+RenderLiteral(v))
	}
	if len(sets) == 0 {
		return "", errors.NewValidation("row", "no columns to update")
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(m.Catalog.Table())
	b.WriteString(" SET ")
	b.WriteString(strings.Join(sets, ", "))
	b.WriteString(" WHERE ")
	b.WriteString(pk)
	b.WriteString(" = ")
	b.WriteString(RenderLiteral(pkVal))
	return b.String(), nil
}

// Delete builds a DELETE addressed by primary key value.
func (m Mutation) Delete(pkValue value.Value) (string, error) {
	if !m.Catalog.Loaded() {
		return "", errors.ErrCatalogUnavailable
	}
	pk, ok := m.Catalog.PrimaryKey()
	if !ok {
		return "", errors.NewNoPrimaryKey(m.Catalog.Table(), "delete")
	}
	return "DELETE FROM " + m.Catalog.Table() + " WHERE " + pk + " = " + RenderLiteral(pkValue), nil
}
