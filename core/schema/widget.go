package schema

import "strings"

// WidgetKind names the input control an editor should use for a column.
type WidgetKind int

const (
	// WidgetText is a single-line text input, the fallback for unknown types.
	WidgetText WidgetKind = iota
	// WidgetNumber is a numeric input.
	WidgetNumber
	// WidgetCheckbox is a boolean toggle.
	WidgetCheckbox
	// WidgetTextarea is a multi-line text input for long or structured text.
	WidgetTextarea
	// WidgetDateTime is a date/time picker.
	WidgetDateTime
)

// widgetRule matches a substring of the backend-reported type token.
type widgetRule struct {
	substr string
	kind   WidgetKind
}

// widgetRules is an ordered list: the first matching substring wins. Type
// tokens are free-form backend strings ("VARCHAR(255)", "int unsigned",
// "timestamp with time zone"), so matching is by substring, case-insensitive.
// BOOL must precede the integer rules so "boolean" stored as "tinyint(1)"
// backends still get a checkbox when they report a bool token, and TEXT/JSON
// must precede CHAR so "text" does not fall into the single-line bucket.
var widgetRules = []widgetRule{
	{"BOOL", WidgetCheckbox},
	{"JSON", WidgetTextarea},
	{"TEXT", WidgetTextarea},
	{"BLOB", WidgetTextarea},
	{"TIMESTAMP", WidgetDateTime},
	{"DATETIME", WidgetDateTime},
	{"DATE", WidgetDateTime},
	{"TIME", WidgetDateTime},
	{"TINYINT", WidgetNumber},
	{"SMALLINT", WidgetNumber},
	{"MEDIUMINT", WidgetNumber},
	{"BIGINT", WidgetNumber},
	{"INT", WidgetNumber},
	{"SERIAL", WidgetNumber},
	{"DECIMAL", WidgetNumber},
	{"NUMERIC", WidgetNumber},
	{"FLOAT", WidgetNumber},
	{"DOUBLE", WidgetNumber},
	{"REAL", WidgetNumber},
	{"CHAR", WidgetText},
}

// WidgetFor maps a backend type token to the input widget an editor should
// present. The catalog cannot guarantee canonical type names across stores,
// so this stays an ordered substring rule list rather than a type enum.
func WidgetFor(typeName string) WidgetKind {
	upper := strings.ToUpper(typeName)
	for _, r := range widgetRules {
		if strings.Contains(upper, r.substr) {
			return r.kind
		}
	}
	return WidgetText
}
