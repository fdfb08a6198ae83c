package plan

import (
	"reflect"
	"testing"

	"grid-tools/internal/request"
	"grid-tools/internal/schema"
)

func testSchema(t *testing.T) *schema.FieldSchema {
	t.Helper()
	fs, err := schema.New(
		schema.FieldDeclaration{StoragePath: "name", Type: schema.TypeText},
		schema.FieldDeclaration{StoragePath: "customer.name", Type: schema.TypeText, Alias: "customer"},
		schema.FieldDeclaration{StoragePath: "total", Type: schema.TypeNumber},
	)
	if err != nil {
		t.Fatalf("schema.New() error = %v", err)
	}
	return fs
}

func TestSort(t *testing.T) {
	fs := testSchema(t)

	tests := []struct {
		name         string
		raw          map[string]any
		defaultField string
		want         []SortKey
	}{
		{
			name: "explicit order resolves aliases",
			raw: map[string]any{
				"columns": []any{
					map[string]any{"data": "customer"},
					map[string]any{"data": "total"},
				},
				"order": []any{
					map[string]any{"column": float64(1), "dir": "desc"},
					map[string]any{"column": float64(0), "dir": "asc"},
				},
			},
			want: []SortKey{
				{Field: "total", Direction: "desc"},
				{Field: "customer.name", Direction: "asc"},
				{Field: IDField, Direction: "asc"},
			},
		},
		{
			name: "out of range index is skipped",
			raw: map[string]any{
				"columns": []any{map[string]any{"data": "name"}},
				"order": []any{
					map[string]any{"column": float64(7), "dir": "asc"},
					map[string]any{"column": float64(-1), "dir": "asc"},
				},
			},
			want: []SortKey{{Field: IDField, Direction: "asc"}},
		},
		{
			name: "column without data is skipped",
			raw: map[string]any{
				"columns": []any{map[string]any{"data": ""}},
				"order":   []any{map[string]any{"column": float64(0), "dir": "asc"}},
			},
			want: []SortKey{{Field: IDField, Direction: "asc"}},
		},
		{
			name: "non-orderable column is skipped",
			raw: map[string]any{
				"columns": []any{
					map[string]any{"data": "total", "orderable": false},
					map[string]any{"data": "name"},
				},
				"order": []any{
					map[string]any{"column": float64(0), "dir": "desc"},
					map[string]any{"column": float64(1), "dir": "asc"},
				},
			},
			want: []SortKey{
				{Field: "name", Direction: "asc"},
				{Field: IDField, Direction: "asc"},
			},
		},
		{
			name:         "default field when nothing usable",
			raw:          map[string]any{},
			defaultField: "name",
			want: []SortKey{
				{Field: "name", Direction: "asc"},
				{Field: IDField, Direction: "asc"},
			},
		},
		{
			name: "no duplicate id tiebreaker",
			raw: map[string]any{
				"columns": []any{map[string]any{"data": IDField}},
				"order":   []any{map[string]any{"column": float64(0), "dir": "desc"}},
			},
			want: []SortKey{{Field: IDField, Direction: "desc"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := request.Parse(tt.raw)
			got := Sort(view, fs, tt.defaultField, nil)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sort() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPaging(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name string
		raw  map[string]any
		want Page
	}{
		{"unbounded by default", map[string]any{}, Page{Skip: 0, Limit: nil}},
		{"explicit window", map[string]any{"start": float64(20), "length": float64(10)}, Page{Skip: 20, Limit: intPtr(10)}},
		{"zero length stays zero", map[string]any{"length": float64(0)}, Page{Skip: 0, Limit: intPtr(0)}},
		{"negative start clamps", map[string]any{"start": float64(-5), "length": float64(10)}, Page{Skip: 0, Limit: intPtr(10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paging(request.Parse(tt.raw))
			if got.Skip != tt.want.Skip {
				t.Errorf("Skip = %d, want %d", got.Skip, tt.want.Skip)
			}
			switch {
			case got.Limit == nil && tt.want.Limit == nil:
			case got.Limit == nil || tt.want.Limit == nil:
				t.Errorf("Limit = %v, want %v", got.Limit, tt.want.Limit)
			case *got.Limit != *tt.want.Limit:
				t.Errorf("Limit = %d, want %d", *got.Limit, *tt.want.Limit)
			}
		})
	}
}

func TestProjection(t *testing.T) {
	fs := testSchema(t)

	tests := []struct {
		name string
		raw  map[string]any
		want []string
	}{
		{
			name: "no columns projects identifier only",
			raw:  map[string]any{},
			want: []string{IDField},
		},
		{
			name: "nested path includes parent prefixes",
			raw: map[string]any{
				"columns": []any{
					map[string]any{"data": "customer"},
					map[string]any{"data": "total"},
				},
			},
			want: []string{IDField, "customer", "customer.name", "total"},
		},
		{
			name: "duplicates collapse",
			raw: map[string]any{
				"columns": []any{
					map[string]any{"data": "total"},
					map[string]any{"data": "total"},
				},
			},
			want: []string{IDField, "total"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Projection(request.Parse(tt.raw), fs)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Projection() = %v, want %v", got, tt.want)
			}
		})
	}
}
