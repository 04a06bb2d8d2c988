// Package present classifies and renders cell values for display. Detection
// of structured content is by content shape, never by declared column type:
// the same data may legitimately live in a genuine JSON-typed column or in a
// text column that happens to hold JSON, and the backend's type tokens are
// free-form strings that cannot be trusted to name "json" consistently.
package present

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/happydigua/recch/core/value"
)

// Kind is the display classification of one value.
type Kind int

const (
	// KindNullMarker renders the dedicated null placeholder.
	KindNullMarker Kind = iota
	// KindStructured renders a collapsed/expandable structured preview.
	KindStructured
	// KindTruncated renders a shortened preview with the full text behind it.
	KindTruncated
	// KindLiteral renders the value as-is.
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindNullMarker:
		return "null_marker"
	case KindStructured:
		return "structured"
	case KindTruncated:
		return "truncated"
	default:
		return "literal"
	}
}

// All limits count characters, not bytes, so multibyte text truncates on a
// rune boundary and previews stay valid UTF-8.
const (
	// structuredPreviewLen bounds the collapsed form of structured values.
	structuredPreviewLen = 50
	// truncateThreshold is the length beyond which plain text is shortened.
	truncateThreshold = 100
	// truncatePreviewLen is the prefix kept when shortening plain text.
	truncatePreviewLen = 80
)

// capRunes shortens s to at most limit runes.
func capRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// Presentation is the display form of one value.
type Presentation struct {
	Kind Kind
	// Preview is the collapsed display text.
	Preview string
	// Full is the expanded display text (indented for structured values,
	// the original text for truncated ones). Empty for null and literal.
	Full string
	// Value is the classified value, untouched.
	Value value.Value
}

// Classify is total and precedence-ordered: null first, then shape-detected
// structured text, then long-text truncation, then the literal fallback.
// A string holding the word "null" is a literal, and a string that merely
// looks structured but fails to parse falls through to the text rules.
func Classify(v value.Value) Presentation {
	if v.IsNull() {
		return Presentation{Kind: KindNullMarker, Preview: "NULL", Value: v}
	}

	if v.Kind() == value.KindString {
		s := v.AsString()
		if p, ok := classifyStructuredText(s); ok {
			p.Value = v
			return p
		}
		if utf8.RuneCountInString(s) > truncateThreshold {
			return Presentation{
				Kind:    KindTruncated,
				Preview: capRunes(s, truncatePreviewLen) + "...",
				Full:    s,
				Value:   v,
			}
		}
	}

	return Presentation{Kind: KindLiteral, Preview: v.String(), Value: v}
}

// ClassifyAny classifies a raw executor value. Native maps and arrays are
// structured directly, with no parse step; scalars go through Classify.
func ClassifyAny(x any) Presentation {
	switch x.(type) {
	case map[string]any, []any:
		return structuredFromParsed(x, value.Null())
	}
	return Classify(value.FromAny(x))
}

// classifyStructuredText detects JSON- or XML-shaped text. Only text whose
// trimmed form is brace-, bracket- or angle-delimited is even attempted; a
// failed parse reports !ok so the caller falls through to the text rules.
func classifyStructuredText(s string) (Presentation, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return Presentation{}, false
	}

	jsonShaped := (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"))
	if jsonShaped {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return structuredFromParsed(parsed, value.Null()), true
		}
		return Presentation{}, false
	}

	if strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">") {
		if p, ok := classifyXML(trimmed); ok {
			return p, true
		}
	}

	return Presentation{}, false
}

// structuredFromParsed builds the collapsed and expanded forms of parsed
// structured data: a compact serialization capped at the preview length, and
// an indented serialization for the full view.
func structuredFromParsed(parsed any, v value.Value) Presentation {
	compact, err := json.Marshal(parsed)
	if err != nil {
		// Parsed JSON always re-marshals; this path is unreachable for
		// data that came in through Unmarshal.
		return Presentation{Kind: KindLiteral, Preview: v.String(), Value: v}
	}
	indented, _ := json.MarshalIndent(parsed, "", "  ")

	preview := string(compact)
	if utf8.RuneCountInString(preview) > structuredPreviewLen {
		preview = capRunes(preview, structuredPreviewLen) + "..."
	}

	return Presentation{
		Kind:    KindStructured,
		Preview: preview,
		Full:    string(indented),
		Value:   v,
	}
}
