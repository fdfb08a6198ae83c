package store

import (
	"reflect"
	"sort"
	"testing"

	"grid-tools/internal/filter"
	"grid-tools/internal/plan"
)

func seedOrders(t *testing.T) *Collection {
	t.Helper()
	c := NewCollection("orders", 4)
	docs := []map[string]any{
		{"_id": "a", "name": "Alpha Widget", "total": 10.0, "created": "2024-03-14T09:00:00Z", "active": true, "customer": map[string]any{"name": "Smith"}},
		{"_id": "b", "name": "Beta Gadget", "total": 25.0, "created": "2024-03-15T12:00:00Z", "active": false, "customer": map[string]any{"name": "Jones"}},
		{"_id": "c", "name": "Gamma Widget", "total": 40.0, "created": "2024-03-16T08:00:00Z", "active": true, "customer": map[string]any{"name": "Brown"}},
	}
	for _, doc := range docs {
		if _, err := c.Insert(doc); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	return c
}

func matchedIDs(t *testing.T, c *Collection, expr filter.Expr) []string {
	t.Helper()
	docs, err := c.Query(expr, nil, 0, nil, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc["_id"].(string))
	}
	sort.Strings(ids)
	return ids
}

func TestCountEmptyExpressionMatchesAll(t *testing.T) {
	c := seedOrders(t)
	n, err := c.Count(filter.Expr{})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestMatchOperators(t *testing.T) {
	c := seedOrders(t)

	tests := []struct {
		name string
		expr filter.Expr
		want []string
	}{
		{"equality", filter.Leaf("total", filter.OpEqual, 25.0), []string{"b"}},
		{"equality via numeric string", filter.Leaf("total", filter.OpEqual, "25"), []string{"b"}},
		{"not equal", filter.Leaf("total", filter.OpNotEqual, 25.0), []string{"a", "c"}},
		{"not equal matches missing field", filter.Leaf("ghost", filter.OpNotEqual, 1.0), []string{"a", "b", "c"}},
		{"greater than", filter.Leaf("total", filter.OpGreaterThan, 10.0), []string{"b", "c"}},
		{"greater or equal", filter.Leaf("total", filter.OpGreaterThanOrEqual, 25.0), []string{"b", "c"}},
		{"less than", filter.Leaf("total", filter.OpLessThan, 25.0), []string{"a"}},
		{"less or equal", filter.Leaf("total", filter.OpLessThanOrEqual, 25.0), []string{"a", "b"}},
		{"like is case-insensitive substring", filter.Leaf("name", filter.OpLike, "widget"), []string{"a", "c"}},
		{"between is inclusive", filter.Leaf("total", filter.OpBetween, []any{10.0, 25.0}), []string{"a", "b"}},
		{"regex is case-insensitive", filter.Leaf("name", filter.OpRegex, "^beta"), []string{"b"}},
		{"word boundary regex", filter.Leaf("name", filter.OpRegex, `\bWidget\b`), []string{"a", "c"}},
		{"nested path equality", filter.Leaf("customer.name", filter.OpEqual, "Smith"), []string{"a"}},
		{"boolean equality", filter.Leaf("active", filter.OpEqual, true), []string{"a", "c"}},
		{"missing field never equals", filter.Leaf("ghost", filter.OpEqual, "x"), []string{}},
		{"invalid regex matches nothing", filter.Leaf("name", filter.OpRegex, "("), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchedIDs(t, c, tt.expr); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("matched = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchComposition(t *testing.T) {
	c := seedOrders(t)

	tests := []struct {
		name string
		expr filter.Expr
		want []string
	}{
		{
			"conjunction",
			filter.Expr{filter.KeyAnd: []any{
				filter.Leaf("total", filter.OpGreaterThan, 10.0),
				filter.Leaf("name", filter.OpLike, "widget"),
			}},
			[]string{"c"},
		},
		{
			"disjunction",
			filter.Expr{filter.KeyOr: []any{
				filter.Leaf("total", filter.OpEqual, 10.0),
				filter.Leaf("total", filter.OpEqual, 40.0),
			}},
			[]string{"a", "c"},
		},
		{
			"negation",
			filter.Expr{"not": filter.Leaf("name", filter.OpLike, "widget")},
			[]string{"b"},
		},
		{
			"day range over stored date strings",
			filter.Expr{filter.KeyAnd: []any{
				filter.Leaf("created", filter.OpGreaterThanOrEqual, "2024-03-15T00:00:00Z"),
				filter.Leaf("created", filter.OpLessThan, "2024-03-16T00:00:00Z"),
			}},
			[]string{"b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchedIDs(t, c, tt.expr); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("matched = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuerySort(t *testing.T) {
	c := seedOrders(t)

	tests := []struct {
		name string
		keys []plan.SortKey
		want []string
	}{
		{"numeric descending", []plan.SortKey{{Field: "total", Direction: "desc"}}, []string{"c", "b", "a"}},
		{"string ascending", []plan.SortKey{{Field: "name", Direction: "asc"}}, []string{"a", "b", "c"}},
		{"nested path", []plan.SortKey{{Field: "customer.name", Direction: "asc"}}, []string{"c", "b", "a"}},
		{"id tiebreaker", []plan.SortKey{{Field: "active", Direction: "desc"}, {Field: "_id", Direction: "asc"}}, []string{"a", "c", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := c.Query(filter.Expr{}, tt.keys, 0, nil, nil)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			got := make([]string, len(docs))
			for i, doc := range docs {
				got[i] = doc["_id"].(string)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuerySortMissingFieldFirst(t *testing.T) {
	c := seedOrders(t)
	if _, err := c.Insert(map[string]any{"_id": "d", "name": "No Total"}); err != nil {
		t.Fatal(err)
	}

	docs, err := c.Query(filter.Expr{}, []plan.SortKey{{Field: "total", Direction: "asc"}}, 0, nil, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if docs[0]["_id"] != "d" {
		t.Errorf("first document = %v, want the one missing the sort field", docs[0]["_id"])
	}
}

func TestQueryPaging(t *testing.T) {
	c := seedOrders(t)
	byTotal := []plan.SortKey{{Field: "total", Direction: "asc"}}
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name  string
		skip  int
		limit *int
		want  []string
	}{
		{"nil limit returns everything", 0, nil, []string{"a", "b", "c"}},
		{"window", 1, intPtr(1), []string{"b"}},
		{"zero limit returns nothing", 0, intPtr(0), []string{}},
		{"skip past the end", 9, intPtr(5), []string{}},
		{"limit past the end", 2, intPtr(10), []string{"c"}},
		{"negative skip clamps", -3, intPtr(2), []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := c.Query(filter.Expr{}, byTotal, tt.skip, tt.limit, nil)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			got := make([]string, 0, len(docs))
			for _, doc := range docs {
				got = append(got, doc["_id"].(string))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("page = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryProjection(t *testing.T) {
	c := seedOrders(t)

	t.Run("flat fields", func(t *testing.T) {
		docs, err := c.Query(filter.Leaf("_id", filter.OpEqual, "a"), nil, 0, nil, []string{"_id", "total"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		want := map[string]any{"_id": "a", "total": 10.0}
		if !reflect.DeepEqual(docs[0], want) {
			t.Errorf("projected doc = %#v, want %#v", docs[0], want)
		}
	})

	t.Run("nested path rebuilds parent", func(t *testing.T) {
		docs, err := c.Query(filter.Leaf("_id", filter.OpEqual, "a"), nil, 0, nil, []string{"_id", "customer.name"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		customer, ok := docs[0]["customer"].(map[string]any)
		if !ok {
			t.Fatalf("customer = %#v, want nested object", docs[0]["customer"])
		}
		if customer["name"] != "Smith" {
			t.Errorf("customer.name = %v, want Smith", customer["name"])
		}
	})

	t.Run("parent covers child paths", func(t *testing.T) {
		docs, err := c.Query(filter.Leaf("_id", filter.OpEqual, "a"), nil, 0, nil, []string{"_id", "customer", "customer.name"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		customer := docs[0]["customer"].(map[string]any)
		if customer["name"] != "Smith" {
			t.Errorf("customer.name = %v, want Smith", customer["name"])
		}
	})

	t.Run("absent fields are omitted", func(t *testing.T) {
		docs, err := c.Query(filter.Leaf("_id", filter.OpEqual, "a"), nil, 0, nil, []string{"_id", "ghost"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if _, present := docs[0]["ghost"]; present {
			t.Error("projection invented a missing field")
		}
	})
}

func TestIndexNarrowedQueries(t *testing.T) {
	c := seedOrders(t)
	c.CreateIndex("total")
	c.CreateIndex("created")

	tests := []struct {
		name string
		expr filter.Expr
		want []string
	}{
		{"indexed equality", filter.Leaf("total", filter.OpEqual, 25.0), []string{"b"}},
		{"indexed range", filter.Leaf("total", filter.OpGreaterThan, 10.0), []string{"b", "c"}},
		{"indexed between", filter.Leaf("total", filter.OpBetween, []any{10.0, 25.0}), []string{"a", "b"}},
		{"indexed string range", filter.Leaf("created", filter.OpGreaterThanOrEqual, "2024-03-15T00:00:00Z"), []string{"b", "c"}},
		{
			"conjunction mixes indexed and scanned clauses",
			filter.Expr{filter.KeyAnd: []any{
				filter.Leaf("total", filter.OpGreaterThanOrEqual, 10.0),
				filter.Leaf("name", filter.OpLike, "widget"),
			}},
			[]string{"a", "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchedIDs(t, c, tt.expr); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("matched = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("update survives an indexed array field", func(t *testing.T) {
		tagged := NewCollection("tagged", 2)
		id, err := tagged.Insert(map[string]any{"tags": []any{"a", "b"}, "note": "first"})
		if err != nil {
			t.Fatal(err)
		}
		tagged.CreateIndex("tags")
		if err := tagged.UpdateOne(id, map[string]any{"note": "second"}); err != nil {
			t.Fatalf("UpdateOne() error = %v", err)
		}
		doc, found := tagged.Get(id)
		if !found || doc["note"] != "second" {
			t.Errorf("Get() after update = %v, %v", doc, found)
		}
	})

	t.Run("index follows updates and deletes", func(t *testing.T) {
		if err := c.UpdateOne("a", map[string]any{"total": 99.0}); err != nil {
			t.Fatal(err)
		}
		if err := c.DeleteOne("b"); err != nil {
			t.Fatal(err)
		}
		got := matchedIDs(t, c, filter.Leaf("total", filter.OpGreaterThan, 30.0))
		want := []string{"a", "c"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("matched after update/delete = %v, want %v", got, want)
		}
	})
}

func TestIndexCreationPreservesMatches(t *testing.T) {
	c := NewCollection("mixed", 2)
	for _, doc := range []map[string]any{
		{"_id": "n", "total": 42.0},
		{"_id": "s", "total": "42"},
		{"_id": "o", "total": 7.0},
	} {
		if _, err := c.Insert(doc); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		expr filter.Expr
	}{
		{"equality meets numeric string", filter.Leaf("total", filter.OpEqual, 42.0)},
		{"range meets numeric string", filter.Leaf("total", filter.OpGreaterThan, 10.0)},
		{"between meets numeric string", filter.Leaf("total", filter.OpBetween, []any{40.0, 45.0})},
	}

	before := make([][]string, len(tests))
	for i, tt := range tests {
		before[i] = matchedIDs(t, c, tt.expr)
	}

	c.CreateIndex("total")

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after := matchedIDs(t, c, tt.expr)
			if !reflect.DeepEqual(after, before[i]) {
				t.Errorf("index changed matches: before %v, after %v", before[i], after)
			}
			if want := []string{"n", "s"}; !reflect.DeepEqual(after, want) {
				t.Errorf("matched = %v, want %v", after, want)
			}
		})
	}
}

func TestTextSearchExecution(t *testing.T) {
	c := seedOrders(t)
	c.EnsureTextIndex("name", "customer.name")

	tests := []struct {
		name string
		expr filter.Expr
		want []string
	}{
		{"single token", filter.TextSearch("widget"), []string{"a", "c"}},
		{"token from nested field", filter.TextSearch("smith"), []string{"a"}},
		{"phrase must appear verbatim", filter.TextSearch(`"Beta Gadget"`), []string{"b"}},
		{"phrase across words does not match", filter.TextSearch(`"Gadget Beta"`), []string{}},
		{"unknown token", filter.TextSearch("zeppelin"), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchedIDs(t, c, tt.expr); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("matched = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("text node without an index matches nothing", func(t *testing.T) {
		bare := NewCollection("bare", 2)
		bare.Insert(map[string]any{"name": "widget"})
		if got := matchedIDs(t, bare, filter.TextSearch("widget")); len(got) != 0 {
			t.Errorf("matched = %v, want none", got)
		}
	})
}
