// Package filter composes the match stage of a grid query. The
// expression format is a map tree the store executes directly:
//
//	{"and": [...]}, {"or": [...]}, {"text": {"search": "..."}}
//	leaf: {"field": path, "op": op, "value": v}
//
// An empty expression matches everything.
package filter

import (
	"strconv"
	"strings"
	"time"

	"grid-tools/internal/coerce"
	"grid-tools/internal/request"
	"grid-tools/internal/schema"
	"grid-tools/internal/search"
)

// Expr is one node of a filter expression tree.
type Expr = map[string]any

// Comparison operators understood by the expression executor.
const (
	OpEqual              = "="
	OpNotEqual           = "!="
	OpGreaterThan        = ">"
	OpGreaterThanOrEqual = ">="
	OpLessThan           = "<"
	OpLessThanOrEqual    = "<="
	OpLike               = "like"
	OpBetween            = "between"
	OpRegex              = "regex"
)

// Node key names.
const (
	KeyAnd   = "and"
	KeyOr    = "or"
	KeyText  = "text"
	KeyField = "field"
	KeyOp    = "op"
	KeyValue = "value"
)

// Leaf builds a single comparison node.
func Leaf(field, op string, value any) Expr {
	return Expr{KeyField: field, KeyOp: op, KeyValue: value}
}

// And combines expressions conjunctively. Zero inputs yield the empty
// match-everything expression; a single input is returned un-nested.
func And(exprs ...Expr) Expr {
	return combine(KeyAnd, exprs)
}

// Or combines expressions disjunctively with the same un-nesting rule.
func Or(exprs ...Expr) Expr {
	return combine(KeyOr, exprs)
}

func combine(key string, exprs []Expr) Expr {
	nonEmpty := make([]any, 0, len(exprs))
	for _, e := range exprs {
		if len(e) > 0 {
			nonEmpty = append(nonEmpty, e)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return Expr{}
	case 1:
		return nonEmpty[0].(Expr)
	default:
		return Expr{key: nonEmpty}
	}
}

// TextSearch builds the native full-text node.
func TextSearch(query string) Expr {
	return Expr{KeyText: map[string]any{"search": query}}
}

// Build composes the four clause sources into one expression:
// the caller's base filter, per-column structured searches,
// colon-qualified terms and the free-text condition. Each non-empty
// source contributes one element to a top-level conjunction.
//
// trace, when non-nil, receives one entry per clause-strategy decision.
func Build(
	base Expr,
	view *request.View,
	fs *schema.FieldSchema,
	terms []search.Term,
	textIndexAvailable bool,
	useTextIndex bool,
	trace func(event string, fields map[string]any),
) Expr {
	sources := make([]Expr, 0, 4)

	if len(base) > 0 {
		sources = append(sources, base)
	}

	if cond := columnConditions(view, fs); len(cond) > 0 {
		sources = append(sources, cond)
	}

	if cond := qualifiedConditions(view, fs, terms); len(cond) > 0 {
		sources = append(sources, cond)
	}

	freeTerms := collectFree(terms)
	if len(freeTerms) > 0 {
		useText := useTextIndex && textIndexAvailable
		if trace != nil {
			searchType := "regex_fallback"
			if useText {
				searchType = "text_index"
			}
			trace("global_search", map[string]any{
				"used_text_index": useText,
				"search_type":     searchType,
				"term_count":      len(freeTerms),
			})
		}
		var cond Expr
		if useText {
			cond = TextSearch(textQuery(freeTerms))
		} else {
			cond = regexFallback(freeTerms, view, fs)
		}
		if len(cond) > 0 {
			sources = append(sources, cond)
		}
	}

	return And(sources...)
}

// columnConditions handles the per-column search boxes. A column that
// explicitly requests regex semantics bypasses type coercion.
func columnConditions(view *request.View, fs *schema.FieldSchema) Expr {
	var conds []Expr
	for _, col := range view.Columns {
		if !col.Searchable || col.Data == "" || col.SearchValue == "" {
			continue
		}
		path := fs.ResolveAlias(col.Data)
		if col.SearchRegex {
			conds = append(conds, Leaf(path, OpRegex, col.SearchValue))
			continue
		}
		conds = append(conds, specExpr(path, coerce.Value(fs.TypeOf(path), col.SearchValue, false)))
	}
	return And(conds...)
}

// qualifiedConditions handles alias:value search terms. Terms naming an
// unknown or non-searchable field are dropped, never an error.
func qualifiedConditions(view *request.View, fs *schema.FieldSchema, terms []search.Term) Expr {
	searchable := make(map[string]bool, len(view.Columns))
	for _, path := range view.SearchableColumns() {
		searchable[fs.ResolveAlias(path)] = true
	}

	var conds []Expr
	for _, term := range terms {
		if term.Kind != search.FieldQualified {
			continue
		}
		path := fs.ResolveAlias(term.Alias)
		if !searchable[path] {
			continue
		}
		conds = append(conds, specExpr(path, coerce.Value(fs.TypeOf(path), term.Value, term.Quoted)))
	}
	return And(conds...)
}

// regexFallback synthesizes the no-index global search: every free term
// must match in at least one searchable column, with leaves typed by
// each column's declared type. Date columns never participate here;
// number and boolean columns participate only when the term is shaped
// for them.
func regexFallback(freeTerms []search.Term, view *request.View, fs *schema.FieldSchema) Expr {
	var perTerm []Expr
	for _, term := range freeTerms {
		var alternatives []Expr
		for _, data := range view.SearchableColumns() {
			path := fs.ResolveAlias(data)
			switch fs.TypeOf(path) {
			case schema.TypeNumber:
				if v, err := strconv.ParseFloat(strings.TrimSpace(term.Value), 64); err == nil {
					alternatives = append(alternatives, Leaf(path, OpEqual, v))
				}
			case schema.TypeDate:
				// Dates are reachable only via column or alias:value search.
			case schema.TypeBoolean:
				if coerce.BooleanShaped(term.Value) {
					alternatives = append(alternatives, specExpr(path, coerce.Value(schema.TypeBoolean, term.Value, false)))
				}
			default:
				if term.Quoted {
					alternatives = append(alternatives, Leaf(path, OpRegex, coerce.ExactPhrase(term.Value).PhraseRegex()))
				} else {
					alternatives = append(alternatives, Leaf(path, OpLike, term.Value))
				}
			}
		}
		if len(alternatives) > 0 {
			perTerm = append(perTerm, Or(alternatives...))
		}
	}
	return And(perTerm...)
}

// textQuery renders free terms as one native search expression; quoted
// phrases keep their quotes so the index engine applies phrase
// semantics.
func textQuery(freeTerms []search.Term) string {
	parts := make([]string, 0, len(freeTerms))
	for _, term := range freeTerms {
		if term.Quoted {
			parts = append(parts, `"`+term.Value+`"`)
		} else {
			parts = append(parts, term.Value)
		}
	}
	return strings.Join(parts, " ")
}

func collectFree(terms []search.Term) []search.Term {
	var free []search.Term
	for _, term := range terms {
		if term.Kind == search.Free {
			free = append(free, term)
		}
	}
	return free
}

// specExpr renders one coercion result as an expression on a field.
func specExpr(path string, spec coerce.Spec) Expr {
	switch spec.Kind {
	case coerce.Exact:
		return Leaf(path, OpEqual, spec.Value)
	case coerce.Compare:
		return Leaf(path, string(spec.Op), spec.Value)
	case coerce.NumberRange:
		return Leaf(path, OpBetween, []any{spec.Low, spec.High})
	case coerce.DayRange:
		var bounds []Expr
		if !spec.From.IsZero() {
			bounds = append(bounds, Leaf(path, OpGreaterThanOrEqual, spec.From.Format(time.RFC3339)))
		}
		if !spec.To.IsZero() {
			bounds = append(bounds, Leaf(path, OpLessThan, spec.To.Format(time.RFC3339)))
		}
		return And(bounds...)
	case coerce.Phrase:
		return Leaf(path, OpRegex, spec.PhraseRegex())
	default:
		return Leaf(path, OpLike, spec.Text)
	}
}
