package present

import (
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// elementExpr matches any element node. xmlquery is lenient and will parse
// plain text as a document holding a single text node, so a successful parse
// alone does not prove the value is XML; requiring at least one element does.
var elementExpr = xpath.MustCompile("//*")

// classifyXML detects well-formed XML content and builds its preview. The
// collapsed form is the single-line serialization capped at the preview
// length; the full form keeps the original text, which already carries the
// author's layout.
func classifyXML(trimmed string) (Presentation, bool) {
	doc, err := xmlquery.Parse(strings.NewReader(trimmed))
	if err != nil {
		return Presentation{}, false
	}
	if xmlquery.QuerySelector(doc, elementExpr) == nil {
		return Presentation{}, false
	}

	compact := oneLine(doc.OutputXML(false))
	preview := compact
	if utf8.RuneCountInString(preview) > structuredPreviewLen {
		preview = capRunes(preview, structuredPreviewLen) + "..."
	}

	return Presentation{
		Kind:    KindStructured,
		Preview: preview,
		Full:    trimmed,
	}, true
}

// oneLine collapses whitespace runs so the preview stays a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
