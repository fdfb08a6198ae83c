package filter

import (
	"reflect"
	"testing"

	"grid-tools/internal/request"
	"grid-tools/internal/schema"
	"grid-tools/internal/search"
)

func testSchema(t *testing.T) *schema.FieldSchema {
	t.Helper()
	fs, err := schema.New(
		schema.FieldDeclaration{StoragePath: "name", Type: schema.TypeText},
		schema.FieldDeclaration{StoragePath: "total", Type: schema.TypeNumber},
		schema.FieldDeclaration{StoragePath: "created", Type: schema.TypeDate},
		schema.FieldDeclaration{StoragePath: "active", Type: schema.TypeBoolean},
		schema.FieldDeclaration{StoragePath: "customer.name", Type: schema.TypeText, Alias: "customer"},
	)
	if err != nil {
		t.Fatalf("schema.New() error = %v", err)
	}
	return fs
}

func viewWithColumns(data ...string) *request.View {
	columns := make([]any, 0, len(data))
	for _, d := range data {
		columns = append(columns, map[string]any{"data": d, "searchable": true})
	}
	return request.Parse(map[string]any{"columns": columns})
}

func TestCombinators(t *testing.T) {
	a := Leaf("x", OpEqual, 1)
	b := Leaf("y", OpEqual, 2)

	tests := []struct {
		name string
		got  Expr
		want Expr
	}{
		{"empty and matches everything", And(), Expr{}},
		{"single and un-nests", And(a), a},
		{"empty members are dropped", And(Expr{}, a, Expr{}), a},
		{"two members nest", And(a, b), Expr{KeyAnd: []any{a, b}}},
		{"or nests the same way", Or(a, b), Expr{KeyOr: []any{a, b}}},
		{"all empty collapses", Or(Expr{}, Expr{}), Expr{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %#v, want %#v", tt.got, tt.want)
			}
		})
	}
}

func TestBuildEmptyRequest(t *testing.T) {
	fs := testSchema(t)
	got := Build(nil, request.Parse(nil), fs, nil, false, false, nil)
	if len(got) != 0 {
		t.Errorf("Build() = %#v, want empty expression", got)
	}
}

func TestBuildBaseFilterOnly(t *testing.T) {
	fs := testSchema(t)
	base := Leaf("tenant", OpEqual, "acme")
	got := Build(base, request.Parse(nil), fs, nil, false, false, nil)
	if !reflect.DeepEqual(got, base) {
		t.Errorf("Build() = %#v, want base filter unchanged", got)
	}
}

func TestBuildColumnConditions(t *testing.T) {
	fs := testSchema(t)

	tests := []struct {
		name   string
		column map[string]any
		want   Expr
	}{
		{
			name:   "text column searches as pattern",
			column: map[string]any{"data": "name", "searchable": true, "search": map[string]any{"value": "wid"}},
			want:   Leaf("name", OpLike, "wid"),
		},
		{
			name:   "number column with operator",
			column: map[string]any{"data": "total", "searchable": true, "search": map[string]any{"value": ">=10"}},
			want:   Leaf("total", OpGreaterThanOrEqual, 10.0),
		},
		{
			name:   "number range becomes between",
			column: map[string]any{"data": "total", "searchable": true, "search": map[string]any{"value": "10-20"}},
			want:   Leaf("total", OpBetween, []any{10.0, 20.0}),
		},
		{
			name:   "regex flag bypasses coercion",
			column: map[string]any{"data": "total", "searchable": true, "search": map[string]any{"value": "^1.*", "regex": true}},
			want:   Leaf("total", OpRegex, "^1.*"),
		},
		{
			name:   "alias resolves to storage path",
			column: map[string]any{"data": "customer", "searchable": true, "search": map[string]any{"value": "smith"}},
			want:   Leaf("customer.name", OpLike, "smith"),
		},
		{
			name:   "non-searchable column is ignored",
			column: map[string]any{"data": "name", "searchable": false, "search": map[string]any{"value": "wid"}},
			want:   Expr{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := request.Parse(map[string]any{"columns": []any{tt.column}})
			got := Build(nil, view, fs, nil, false, false, nil)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Build() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBuildDateColumnSpansDay(t *testing.T) {
	fs := testSchema(t)
	view := request.Parse(map[string]any{"columns": []any{
		map[string]any{"data": "created", "searchable": true, "search": map[string]any{"value": "2024-03-15"}},
	}})
	got := Build(nil, view, fs, nil, false, false, nil)

	want := Expr{KeyAnd: []any{
		Leaf("created", OpGreaterThanOrEqual, "2024-03-15T00:00:00Z"),
		Leaf("created", OpLessThan, "2024-03-16T00:00:00Z"),
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build() = %#v, want %#v", got, want)
	}
}

func TestBuildQualifiedTerms(t *testing.T) {
	fs := testSchema(t)
	view := viewWithColumns("name", "total")

	t.Run("searchable alias contributes a clause", func(t *testing.T) {
		terms := search.Parse("total:>=10")
		got := Build(nil, view, fs, terms, false, false, nil)
		want := Leaf("total", OpGreaterThanOrEqual, 10.0)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Build() = %#v, want %#v", got, want)
		}
	})

	t.Run("unknown alias is dropped silently", func(t *testing.T) {
		terms := search.Parse("ghost:value")
		got := Build(nil, view, fs, terms, false, false, nil)
		if len(got) != 0 {
			t.Errorf("Build() = %#v, want empty", got)
		}
	})

	t.Run("non-searchable column is dropped", func(t *testing.T) {
		limited := request.Parse(map[string]any{"columns": []any{
			map[string]any{"data": "total", "searchable": false},
		}})
		terms := search.Parse("total:5")
		got := Build(nil, limited, fs, terms, false, false, nil)
		if len(got) != 0 {
			t.Errorf("Build() = %#v, want empty", got)
		}
	})
}

func TestBuildRegexFallback(t *testing.T) {
	fs := testSchema(t)

	t.Run("text term matches text columns only", func(t *testing.T) {
		view := viewWithColumns("name", "total", "created")
		terms := search.Parse("widget")
		got := Build(nil, view, fs, terms, false, false, nil)
		// "widget" is not numeric and dates never join the fallback, so
		// the single alternative un-nests.
		want := Leaf("name", OpLike, "widget")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Build() = %#v, want %#v", got, want)
		}
	})

	t.Run("numeric term also targets number columns", func(t *testing.T) {
		view := viewWithColumns("name", "total")
		terms := search.Parse("42")
		got := Build(nil, view, fs, terms, false, false, nil)
		want := Expr{KeyOr: []any{
			Leaf("name", OpLike, "42"),
			Leaf("total", OpEqual, 42.0),
		}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Build() = %#v, want %#v", got, want)
		}
	})

	t.Run("boolean column joins only for boolean-shaped terms", func(t *testing.T) {
		view := viewWithColumns("name", "active")
		got := Build(nil, view, fs, search.Parse("yes"), false, false, nil)
		want := Expr{KeyOr: []any{
			Leaf("name", OpLike, "yes"),
			Leaf("active", OpEqual, true),
		}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Build() = %#v, want %#v", got, want)
		}

		got = Build(nil, view, fs, search.Parse("widget"), false, false, nil)
		want = Leaf("name", OpLike, "widget")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Build() = %#v, want %#v", got, want)
		}
	})

	t.Run("every term must match somewhere", func(t *testing.T) {
		view := viewWithColumns("name")
		got := Build(nil, view, fs, search.Parse("red widget"), false, false, nil)
		want := Expr{KeyAnd: []any{
			Leaf("name", OpLike, "red"),
			Leaf("name", OpLike, "widget"),
		}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Build() = %#v, want %#v", got, want)
		}
	})

	t.Run("quoted phrase becomes word-boundary regex", func(t *testing.T) {
		view := viewWithColumns("name")
		got := Build(nil, view, fs, search.Parse(`"red widget"`), false, false, nil)
		want := Leaf("name", OpRegex, `\bred widget\b`)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Build() = %#v, want %#v", got, want)
		}
	})
}

func TestBuildTextIndexPath(t *testing.T) {
	fs := testSchema(t)
	view := viewWithColumns("name")
	terms := search.Parse(`urgent "red widget"`)

	t.Run("uses native search when enabled and available", func(t *testing.T) {
		got := Build(nil, view, fs, terms, true, true, nil)
		want := TextSearch(`urgent "red widget"`)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Build() = %#v, want %#v", got, want)
		}
	})

	t.Run("falls back when index is missing", func(t *testing.T) {
		got := Build(nil, view, fs, terms, false, true, nil)
		if _, isText := got[KeyText]; isText {
			t.Errorf("Build() used text node without an index: %#v", got)
		}
	})

	t.Run("falls back when disabled", func(t *testing.T) {
		got := Build(nil, view, fs, terms, true, false, nil)
		if _, isText := got[KeyText]; isText {
			t.Errorf("Build() used text node while disabled: %#v", got)
		}
	})
}

func TestBuildComposesAllSources(t *testing.T) {
	fs := testSchema(t)
	base := Leaf("tenant", OpEqual, "acme")
	view := request.Parse(map[string]any{"columns": []any{
		map[string]any{"data": "name", "searchable": true, "search": map[string]any{"value": "wid"}},
		map[string]any{"data": "total", "searchable": true},
	}})
	terms := search.Parse("total:>5 urgent")

	got := Build(base, view, fs, terms, false, false, nil)
	conds, ok := got[KeyAnd].([]any)
	if !ok {
		t.Fatalf("Build() = %#v, want top-level conjunction", got)
	}
	if len(conds) != 4 {
		t.Fatalf("Build() composed %d sources, want 4: %#v", len(conds), conds)
	}
	if !reflect.DeepEqual(conds[0], base) {
		t.Errorf("first clause = %#v, want base filter", conds[0])
	}
}

func TestBuildTrace(t *testing.T) {
	fs := testSchema(t)
	view := viewWithColumns("name")
	events := map[string]map[string]any{}
	trace := func(event string, fields map[string]any) { events[event] = fields }

	Build(nil, view, fs, search.Parse("widget"), false, false, trace)

	fields, ok := events["global_search"]
	if !ok {
		t.Fatal("no global_search trace event recorded")
	}
	if fields["search_type"] != "regex_fallback" || fields["used_text_index"] != false {
		t.Errorf("trace fields = %#v", fields)
	}
}
