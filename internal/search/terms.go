// Package search splits a grid's global search string into terms,
// keeping quoted phrases whole and classifying field-qualified tokens.
package search

import (
	"fmt"
	"strings"
)

// TermKind distinguishes free terms from field-qualified ones.
type TermKind int

const (
	// Free terms match against every searchable column.
	Free TermKind = iota
	// FieldQualified terms of the shape alias:value target one field.
	FieldQualified
)

// Term is one parsed search token.
type Term struct {
	Raw    string
	Kind   TermKind
	Alias  string // set only for FieldQualified
	Value  string
	Quoted bool // the value came from a quoted span
}

// Placeholders never contain a colon or whitespace, so quoted content
// is invisible to both the splitter and the colon classifier.
const placeholderPrefix = "\x00q"

// Parse tokenizes a search string. Quoted spans (single or double)
// survive whitespace splitting as single terms with the quotes
// stripped. A term containing exactly one colon outside quotes is
// split into alias and value; zero or two-or-more colons leave the
// term free and literal.
func Parse(input string) []Term {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	working, quoted := extractQuotedSpans(input)

	var terms []Term
	for _, token := range strings.Fields(working) {
		terms = append(terms, classify(token, quoted))
	}
	return terms
}

// extractQuotedSpans replaces every quoted span with a unique
// placeholder so strings.Fields cannot break phrases apart. The
// returned map holds the unquoted originals.
func extractQuotedSpans(input string) (string, map[string]string) {
	quoted := make(map[string]string)
	var b strings.Builder
	b.Grow(len(input))

	for i := 0; i < len(input); {
		c := input[i]
		if c == '"' || c == '\'' {
			if end := strings.IndexByte(input[i+1:], c); end >= 0 {
				placeholder := fmt.Sprintf("%s%d\x00", placeholderPrefix, len(quoted))
				quoted[placeholder] = input[i+1 : i+1+end]
				b.WriteString(placeholder)
				i += end + 2
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), quoted
}

// classify works on the placeholder form: colons that were inside a
// quoted span are hidden in the placeholder and never count.
func classify(token string, quoted map[string]string) Term {
	if strings.Count(token, ":") == 1 {
		idx := strings.IndexByte(token, ':')
		alias, _ := restore(token[:idx], quoted)
		value, valueQuoted := restore(token[idx+1:], quoted)
		if alias != "" && value != "" {
			raw, _ := restore(token, quoted)
			return Term{Raw: raw, Kind: FieldQualified, Alias: alias, Value: value, Quoted: valueQuoted}
		}
	}
	raw, wasQuoted := restore(token, quoted)
	return Term{Raw: raw, Kind: Free, Value: raw, Quoted: wasQuoted}
}

func restore(token string, quoted map[string]string) (string, bool) {
	wasQuoted := false
	for placeholder, original := range quoted {
		if strings.Contains(token, placeholder) {
			token = strings.ReplaceAll(token, placeholder, original)
			wasQuoted = true
		}
	}
	return token, wasQuoted
}
