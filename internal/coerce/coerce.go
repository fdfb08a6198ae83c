// Package coerce turns a raw search value and a declared semantic type
// into a typed comparison: an exact value, an operator
// comparison, a range, or a case-insensitive pattern. Operator-prefix
// parsing lives here and nowhere else.
package coerce

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"grid-tools/internal/schema"
)

// Kind selects the shape of a Spec.
type Kind int

const (
	// Exact matches the value as-is.
	Exact Kind = iota
	// Compare applies Op against Value.
	Compare
	// NumberRange is the closed interval [Low, High].
	NumberRange
	// DayRange is the half-open instant interval [From, To).
	// A zero From or To means that side is unbounded.
	DayRange
	// Pattern is a case-insensitive substring match on Text.
	Pattern
	// Phrase is a case-insensitive exact-phrase match on Text with all
	// metacharacters escaped, anchored at word boundaries where the
	// phrase edges are word characters.
	Phrase
)

// Op is a comparison operator recognized in search values.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Spec is the result of coercing one raw value.
type Spec struct {
	Kind  Kind
	Op    Op
	Value any
	Low   float64
	High  float64
	From  time.Time
	To    time.Time
	Text  string
}

// Longest prefixes first so ">=10" is never read as ">" with "=10".
var operatorPrefixes = []struct {
	prefix string
	op     Op
}{
	{">=", OpGte},
	{"<=", OpLte},
	{"!=", OpNe},
	{">", OpGt},
	{"<", OpLt},
	{"=", OpEq},
}

var (
	truthy = map[string]bool{"true": true, "yes": true, "1": true, "t": true, "y": true}
	falsy  = map[string]bool{"false": true, "no": true, "0": true, "f": true, "n": true}
)

// Value coerces a raw search value by semantic type. rawQuoted marks a
// value that arrived in quotes, which requests exact matching for the
// text-shaped types. Any parse failure falls back to a pattern match
// against the original raw string.
func Value(fieldType schema.FieldType, raw string, rawQuoted bool) Spec {
	switch fieldType {
	case schema.TypeNumber:
		return number(raw)
	case schema.TypeDate:
		return date(raw)
	case schema.TypeBoolean:
		return boolean(raw)
	default:
		// text, array, object, identifier and undeclared fields.
		if inner, ok := unquote(raw); ok {
			return Spec{Kind: Exact, Value: inner}
		}
		if rawQuoted {
			return Spec{Kind: Exact, Value: raw}
		}
		return Spec{Kind: Pattern, Text: raw}
	}
}

// ExactPhrase builds the word-boundary anchored pattern used for quoted
// phrases in the free-text fallback path.
func ExactPhrase(term string) Spec {
	return Spec{Kind: Phrase, Text: term}
}

// PhraseRegex renders a Phrase spec as a regular expression source.
// Metacharacters in the user's term match literally. \b only matches
// next to a word character, so an anchor is emitted per edge only when
// the phrase edge is one; a punctuation edge needs no anchor.
func (s Spec) PhraseRegex() string {
	pattern := regexp.QuoteMeta(s.Text)
	if s.Text == "" {
		return pattern
	}
	if isWordByte(s.Text[0]) {
		pattern = `\b` + pattern
	}
	if isWordByte(s.Text[len(s.Text)-1]) {
		pattern += `\b`
	}
	return pattern
}

// isWordByte mirrors the regexp \w class so anchor placement agrees
// with how \b evaluates.
func isWordByte(b byte) bool {
	return b == '_' ||
		'0' <= b && b <= '9' ||
		'a' <= b && b <= 'z' ||
		'A' <= b && b <= 'Z'
}

func number(raw string) Spec {
	op, rest := splitOperator(raw)
	if op != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
			return Spec{Kind: Compare, Op: op, Value: v}
		}
		return Spec{Kind: Pattern, Text: raw}
	}

	// A hyphen not at either end is range syntax: low-high.
	if idx := strings.Index(raw, "-"); idx > 0 && idx < len(raw)-1 {
		low, errLow := strconv.ParseFloat(strings.TrimSpace(raw[:idx]), 64)
		high, errHigh := strconv.ParseFloat(strings.TrimSpace(raw[idx+1:]), 64)
		if errLow == nil && errHigh == nil {
			return Spec{Kind: NumberRange, Low: low, High: high}
		}
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return Spec{Kind: Exact, Value: v}
	}
	return Spec{Kind: Pattern, Text: raw}
}

const isoDay = "2006-01-02"

// date parses an optional operator prefix plus an ISO YYYY-MM-DD
// literal. Exact and bounded comparisons always span whole calendar
// days in UTC.
func date(raw string) Spec {
	op, rest := splitOperator(raw)
	// Only ordering operators and equality apply to day spans.
	if op == OpNe {
		return Spec{Kind: Pattern, Text: raw}
	}
	day, err := time.Parse(isoDay, strings.TrimSpace(rest))
	if err != nil {
		return Spec{Kind: Pattern, Text: raw}
	}
	midnight := day.UTC()
	nextMidnight := midnight.AddDate(0, 0, 1)

	switch op {
	case OpGt:
		return Spec{Kind: DayRange, From: nextMidnight}
	case OpGte:
		return Spec{Kind: DayRange, From: midnight}
	case OpLt:
		return Spec{Kind: DayRange, To: midnight}
	case OpLte:
		return Spec{Kind: DayRange, To: nextMidnight}
	default:
		// "=" or no operator: the whole day.
		return Spec{Kind: DayRange, From: midnight, To: nextMidnight}
	}
}

func boolean(raw string) Spec {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if truthy[lowered] {
		return Spec{Kind: Exact, Value: true}
	}
	if falsy[lowered] {
		return Spec{Kind: Exact, Value: false}
	}
	return Spec{Kind: Pattern, Text: raw}
}

// BooleanShaped reports whether a raw term is a recognized boolean
// synonym. Free-text search uses it to decide whether a boolean column
// participates at all.
func BooleanShaped(raw string) bool {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	return truthy[lowered] || falsy[lowered]
}

func splitOperator(raw string) (Op, string) {
	for _, candidate := range operatorPrefixes {
		if strings.HasPrefix(raw, candidate.prefix) {
			return candidate.op, raw[len(candidate.prefix):]
		}
	}
	return "", raw
}

// unquote strips one pair of matching surrounding quote characters.
func unquote(raw string) (string, bool) {
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if first == last && (first == '"' || first == '\'') {
			return raw[1 : len(raw)-1], true
		}
	}
	return raw, false
}
