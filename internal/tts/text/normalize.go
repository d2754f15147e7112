// Package text normalizes script text before it is wrapped in speech markup.
//
// Normalization preserves inline markup: only the text between tags is
// rewritten.
package text

import (
	"regexp"
	"strings"
)

const (
	whitespaceRegexPattern = `\s+`
	repeatedRegexPattern   = `([!?,;])[!?,;]+`
	tagRegexPattern        = `<[^>]*>`
)

// Punctuation constants.
const (
	emDash       = "\u2014"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
	nbsp         = "\u00a0"
)

// Normalizer rewrites announcer scripts into a form the oracle reads cleanly.
type Normalizer struct {
	whitespacePattern    *regexp.Regexp
	repeatedPattern      *regexp.Regexp
	tagPattern           *regexp.Regexp
	abbreviationReplacer *strings.Replacer
	punctuationReplacer  *strings.Replacer
}

// NewNormalizer creates a normalizer with compiled patterns and replacers.
func NewNormalizer() *Normalizer {
	abbreviations := []string{
		"Mr. ", "Mister ",
		"Mrs. ", "Misses ",
		"Dr. ", "Doctor ",
		"St. ", "Saint ",
		"approx. ", "approximately ",
		"vs. ", "versus ",
	}

	return &Normalizer{
		whitespacePattern:    regexp.MustCompile(whitespaceRegexPattern),
		repeatedPattern:      regexp.MustCompile(repeatedRegexPattern),
		tagPattern:           regexp.MustCompile(tagRegexPattern),
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
		punctuationReplacer: strings.NewReplacer(
			emDash, " - ",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			nbsp, " ",
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize collapses whitespace, straightens quotes and dashes, expands a
// few abbreviations and collapses repeated punctuation. Tags pass through
// untouched.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return text
	}

	var builder strings.Builder

	last := 0
	for _, loc := range n.tagPattern.FindAllStringIndex(text, -1) {
		builder.WriteString(n.normalizeSpan(text[last:loc[0]]))
		builder.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}

	builder.WriteString(n.normalizeSpan(text[last:]))

	return strings.TrimSpace(n.whitespacePattern.ReplaceAllString(builder.String(), " "))
}

func (n *Normalizer) normalizeSpan(span string) string {
	span = n.punctuationReplacer.Replace(span)
	span = n.whitespacePattern.ReplaceAllString(span, " ")
	span = n.abbreviationReplacer.Replace(span)

	return n.repeatedPattern.ReplaceAllString(span, "$1")
}
