package sqlbuild

import (
	"fmt"
	"strings"
)

// PagedQuery builds the count and data queries for one page of a table.
// The table name (and optional database qualifier) are interpolated as-is;
// only the sort column goes through identifier quoting, because it is the
// only identifier that may be toggled at display time.
type PagedQuery struct {
	Dialect  Dialect
	Table    string
	Database string // optional qualifier, rendered as database.table
	Page     PageState
	Sort     SortState
}

// target renders the FROM target.
func (q PagedQuery) target() string {
	if q.Database != "" {
		return q.Database + "." + q.Table
	}
	return q.Table
}

// CountQuery returns the query counting all rows in the table. There is no
// row-level filter concept beyond full-table paging.
func (q PagedQuery) CountQuery() string {
	return "SELECT COUNT(*) FROM " + q.target()
}

// DataQuery returns the query fetching the current page. When no sort is
// active the ORDER BY clause is omitted entirely; the resulting order is
// whatever the engine returns and is explicitly unstable across pages.
func (q PagedQuery) DataQuery() string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(q.target())
	if q.Sort.Active() {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.Dialect.QuoteIdent(q.Sort.Column()))
		b.WriteString(" ")
		b.WriteString(q.Sort.Direction().String())
	}
	fmt.Fprintf(&b, " LIMIT %d OFFSET %d", q.Page.PageSize, q.Page.Offset())
	return b.String()
}
