package store

import (
	"strings"
	"sync"
	"unicode"
)

// textIndex is an inverted token index over a fixed set of field
// paths. It backs the store's full-text search: the candidate pass
// unions the posting lists of every query token, then each candidate
// document is verified against the query's phrase and term semantics.
type textIndex struct {
	mu       sync.RWMutex
	fields   []string
	postings map[string]map[string]struct{} // token -> document ids
}

func newTextIndex(fields []string) *textIndex {
	return &textIndex{
		fields:   append([]string(nil), fields...),
		postings: make(map[string]map[string]struct{}),
	}
}

func (t *textIndex) add(id string, doc map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, token := range t.documentTokens(doc) {
		ids, found := t.postings[token]
		if !found {
			ids = make(map[string]struct{})
			t.postings[token] = ids
		}
		ids[id] = struct{}{}
	}
}

func (t *textIndex) remove(id string, doc map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, token := range t.documentTokens(doc) {
		if ids, found := t.postings[token]; found {
			delete(ids, id)
			if len(ids) == 0 {
				delete(t.postings, token)
			}
		}
	}
}

// candidates unions the posting lists of every token in the query, a
// superset of the documents that can match.
func (t *textIndex) candidates(query textQuery) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	matched := make(map[string]struct{})
	collect := func(token string) {
		for id := range t.postings[token] {
			matched[id] = struct{}{}
		}
	}
	for _, term := range query.terms {
		collect(term)
	}
	for _, phrase := range query.phrases {
		for _, token := range tokenize(phrase) {
			collect(token)
		}
	}
	return setToSlice(matched)
}

// matches verifies one document: every phrase must appear verbatim
// (case-insensitive) in at least one indexed field, and when loose
// terms are present at least one must appear as a token.
func (t *textIndex) matches(doc map[string]any, query textQuery) bool {
	fieldText := t.fieldStrings(doc)

	for _, phrase := range query.phrases {
		found := false
		lowered := strings.ToLower(phrase)
		for _, text := range fieldText {
			if strings.Contains(strings.ToLower(text), lowered) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(query.terms) == 0 {
		return len(query.phrases) > 0
	}

	tokens := make(map[string]struct{})
	for _, text := range fieldText {
		for _, token := range tokenize(text) {
			tokens[token] = struct{}{}
		}
	}
	for _, term := range query.terms {
		if _, found := tokens[term]; found {
			return true
		}
	}
	return false
}

func (t *textIndex) documentTokens(doc map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, text := range t.fieldStrings(doc) {
		for _, token := range tokenize(text) {
			if _, dup := seen[token]; !dup {
				seen[token] = struct{}{}
				out = append(out, token)
			}
		}
	}
	return out
}

func (t *textIndex) fieldStrings(doc map[string]any) []string {
	var out []string
	for _, field := range t.fields {
		if value, ok := valueAtPath(doc, field); ok {
			if s, isString := value.(string); isString {
				out = append(out, s)
			}
		}
	}
	return out
}

// textQuery is the parsed form of a native search expression: quoted
// spans become required phrases, everything else loose terms.
type textQuery struct {
	phrases []string
	terms   []string
}

func parseTextQuery(raw string) textQuery {
	var q textQuery
	var rest strings.Builder

	for i := 0; i < len(raw); {
		if raw[i] == '"' {
			if end := strings.IndexByte(raw[i+1:], '"'); end >= 0 {
				q.phrases = append(q.phrases, raw[i+1:i+1+end])
				i += end + 2
				continue
			}
		}
		rest.WriteByte(raw[i])
		i++
	}
	q.terms = tokenize(rest.String())
	return q
}

// tokenize lowercases and splits on anything that is not a letter or
// digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
