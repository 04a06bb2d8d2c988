// Package sqlbuild synthesizes read and write statements from a
// runtime-discovered schema: paginated, sorted SELECTs, and insert/update/
// delete statements addressed by the catalog's primary key.
//
// Trust boundary: table names and column identifiers are interpolated using
// only the dialect's identifier quoting; the literal renderer in this
// package is the sole escaping applied to values. Identifiers must therefore
// come from the trusted schema catalog, never from free-form user text.
package sqlbuild

import (
	"strconv"
	"strings"

	"github.com/happydigua/recch/core/value"
)

// Dialect selects the identifier-quoting convention of the target store.
type Dialect int

const (
	// DialectMySQL quotes identifiers with backticks.
	DialectMySQL Dialect = iota
	// DialectPostgres quotes identifiers with double quotes.
	DialectPostgres
	// DialectSQLite quotes identifiers with double quotes.
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectMySQL:
		return "mysql"
	case DialectPostgres:
		return "postgresql"
	case DialectSQLite:
		return "sqlite"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// ParseDialect maps a driver tag ("mysql", "postgresql", "sqlite") to a
// Dialect. Unknown tags fall back to SQLite quoting, which is also valid
// standard SQL.
func ParseDialect(tag string) Dialect {
	switch strings.ToLower(tag) {
	case "mysql":
		return DialectMySQL
	case "postgres", "postgresql":
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

// QuoteIdent quotes a column identifier using the dialect's convention,
// doubling any embedded quote character.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// RenderLiteral converts a typed value into the textual form embedded in a
// generated statement. The complete escaping contract: strings are wrapped
// in single quotes with every embedded single quote doubled, numbers and
// booleans render as their literal token, and null renders as the bare NULL
// keyword. No other escaping is performed.
func RenderLiteral(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "NULL"
	case value.KindBool:
		if v.AsBool() {
			return "TRUE"
		}
		return "FALSE"
	case value.KindNumber:
		n := v.AsNumber()
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return QuoteString(v.AsString())
	}
}

// QuoteString renders a string literal: single quotes around the text with
// every embedded single quote doubled.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
