// Package schema holds the runtime-discovered column and index catalog for
// one table. Nothing about the schema is known at build time: every
// definition is fetched from the backing store when a table is selected, and
// all read/write access is synthesized from the fetched catalog.
package schema

import (
	"context"

	"github.com/happydigua/recch/core/errors"
)

// ColumnDefinition describes one column as reported by the backing store.
// TypeName is the backend's own type token and may be free-form; it is never
// normalized to a canonical type enum.
type ColumnDefinition struct {
	Name         string `json:"name"`
	TypeName     string `json:"type_name"`
	IsPK         bool   `json:"is_pk"`
	IsNullable   bool   `json:"is_nullable"`
	DefaultValue string `json:"default_value,omitempty"`
	Comment      string `json:"comment,omitempty"`
}

// IndexDefinition describes one index as reported by the backing store.
type IndexDefinition struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	IsUnique bool     `json:"is_unique"`
	IsPK     bool     `json:"is_pk"`
	Comment  string   `json:"comment,omitempty"`
}

// Source fetches catalog metadata for a table. It is the read-only slice of
// the executor boundary this package needs.
type Source interface {
	// Columns returns the table's column definitions in display order.
	Columns(ctx context.Context, table, database string) ([]ColumnDefinition, error)

	// Indexes returns the table's index definitions.
	Indexes(ctx context.Context, table string) ([]IndexDefinition, error)
}

// Catalog is the loaded schema for one table. A Catalog is rebuilt in full on
// every table or database switch; it is never merged with a stale catalog, so
// columns from a previous table can never leak into the new one.
type Catalog struct {
	table    string
	database string
	columns  []ColumnDefinition
	indexes  []IndexDefinition
	loaded   bool
}

// Load fetches the catalog for table (optionally qualified by database)
// through src. The previous contents are invalidated before the fetch; on
// failure the catalog is left empty and a CatalogFetchError is returned.
// Callers must treat a failed load as "no schema known" and suppress
// dependent operations rather than retry.
func (c *Catalog) Load(ctx context.Context, src Source, table, database string) error {
	// Invalidate first so a fetch failure cannot leave the old table's
	// schema visible under the new table's name.
	c.table = table
	c.database = database
	c.columns = nil
	c.indexes = nil
	c.loaded = false

	cols, err := src.Columns(ctx, table, database)
	if err != nil {
		return errors.NewCatalogFetch(table, database, err)
	}
	idxs, err := src.Indexes(ctx, table)
	if err != nil {
		return errors.NewCatalogFetch(table, database, err)
	}

	c.columns = cols
	c.indexes = idxs
	c.loaded = true
	return nil
}

// Loaded reports whether the catalog holds a successfully fetched schema.
func (c *Catalog) Loaded() bool { return c.loaded }

// Table returns the table the catalog was loaded for.
func (c *Catalog) Table() string { return c.table }

// Database returns the optional database qualifier, if any.
func (c *Catalog) Database() string { return c.database }

// Columns returns the column definitions in display order.
func (c *Catalog) Columns() []ColumnDefinition { return c.columns }

// Indexes returns the index definitions.
func (c *Catalog) Indexes() []IndexDefinition { return c.indexes }

// Column returns the definition for name, if present.
func (c *Catalog) Column(name string) (ColumnDefinition, bool) {
	for _, col := range c.columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnDefinition{}, false
}

// PrimaryKey returns the column name used for row-level mutations: the first
// catalog entry flagged as primary key, in catalog order. The second return
// is false when the table has no primary key column; mutations must then be
// disabled entirely, never attempted with a fallback key.
func (c *Catalog) PrimaryKey() (string, bool) {
	for _, col := range c.columns {
		if col.IsPK {
			return col.Name, true
		}
	}
	return "", false
}
