package searchcore

import (
	"regexp"
	"strings"

	"github.com/justSteve/coding-agent-session-search/query"
)

// snippetRadius is the number of bytes kept on each side of the
// first matching span.
const snippetRadius = 60

// GenerateSnippet builds a short excerpt around the first match, with the
// matched span wrapped in "**...**" markers. When root is a single,
// boolean-free prefix query, a fast literal-prefix scan is used instead
// of walking every leaf (spec §4.2 "a fast prefix-based snippet scanner
// is used to avoid constructing a general snippet generator"). Every
// returned span is a verbatim substring of content/title (spec §8
// invariant 8), since it is sliced directly from the same string it was
// found in.
func GenerateSnippet(root *query.Node, title, content string) string {
	text := content
	if text == "" {
		text = title
	}
	if text == "" {
		return ""
	}
	if root == nil || root.IsEmpty() {
		return truncateSnippet(text, snippetRadius*2)
	}

	if root.Kind == query.KindPrefix {
		if span := findLiteralSpan(text, root.Text); span != nil {
			return highlightSpan(text, span[0], span[1])
		}
		return truncateSnippet(text, snippetRadius*2)
	}

	for _, leaf := range root.Leaves() {
		if span := findLeafSpan(text, leaf); span != nil {
			return highlightSpan(text, span[0], span[1])
		}
	}
	return truncateSnippet(text, snippetRadius*2)
}

func findLeafSpan(text string, leaf *query.Node) []int {
	switch leaf.Kind {
	case query.KindTerm, query.KindPrefix:
		return findLiteralSpan(text, leaf.Text)
	case query.KindPhrase:
		return findLiteralSpan(text, strings.Join(leaf.Phrase, " "))
	case query.KindRegex:
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(strings.Trim(leaf.Text, "*")))
		if err != nil {
			return nil
		}
		return re.FindStringIndex(text)
	default:
		return nil
	}
}

func findLiteralSpan(text, literal string) []int {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(literal))
	if idx < 0 {
		return nil
	}
	return []int{idx, idx + len(literal)}
}

func highlightSpan(text string, start, end int) string {
	left := start - snippetRadius
	if left < 0 {
		left = 0
	}
	right := end + snippetRadius
	if right > len(text) {
		right = len(text)
	}
	var b strings.Builder
	if left > 0 {
		b.WriteString("…")
	}
	b.WriteString(text[left:start])
	b.WriteString("**")
	b.WriteString(text[start:end])
	b.WriteString("**")
	b.WriteString(text[end:right])
	if right < len(text) {
		b.WriteString("…")
	}
	return b.String()
}

func truncateSnippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n] + "…"
}
