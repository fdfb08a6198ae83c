// Package grid runs the read pipeline for one table request: parse the
// request, build the match/sort/page/project plan, execute it against a
// collection handle and reshape the documents into the widget's
// response envelope.
package grid

import (
	"log"

	"grid-tools/internal/filter"
	"grid-tools/internal/plan"
	"grid-tools/internal/request"
	"grid-tools/internal/result"
	"grid-tools/internal/schema"
	"grid-tools/internal/search"
)

// Collection is the document-store handle the pipeline executes
// against. The pipeline never opens or closes it; the caller supplies
// one per invocation.
type Collection interface {
	Count(expr filter.Expr) (int, error)
	Query(expr filter.Expr, sort []plan.SortKey, skip int, limit *int, projection []string) ([]map[string]any, error)
	Insert(doc map[string]any) (string, error)
	UpdateOne(id string, fields map[string]any) error
	DeleteOne(id string) error
	HasTextIndex() bool
}

// Options configure one processor.
type Options struct {
	// BaseFilter is AND-ed into every query verbatim.
	BaseFilter filter.Expr
	// DefaultSortField sorts ascending when the request carries no
	// usable order keys.
	DefaultSortField string
	// UseTextIndex prefers the collection's full-text index for global
	// search when one exists.
	UseTextIndex bool
	// Debug attaches a query_stats block to the response.
	Debug bool
}

// Processor serves grid read requests for one collection. It holds no
// mutable state between calls; the schema it shares is read-only.
type Processor struct {
	col  Collection
	fs   *schema.FieldSchema
	opts Options
}

// New builds a processor around a collection handle and field schema.
func New(col Collection, fs *schema.FieldSchema, opts Options) *Processor {
	return &Processor{col: col, fs: fs, opts: opts}
}

// Rows executes one grid request and returns the response envelope.
// Malformed request fragments degrade to defaults and backend failures
// degrade to an empty result set; this method never fails.
func (p *Processor) Rows(raw map[string]any) map[string]any {
	view := request.Parse(raw)
	terms := search.Parse(view.SearchValue)

	var stats map[string]any
	var trace func(event string, fields map[string]any)
	if p.opts.Debug {
		stats = make(map[string]any)
		trace = func(event string, fields map[string]any) {
			stats[event] = fields
		}
	}

	matchExpr := filter.Build(
		p.opts.BaseFilter,
		view,
		p.fs,
		terms,
		p.col.HasTextIndex(),
		p.opts.UseTextIndex,
		trace,
	)
	sortKeys := plan.Sort(view, p.fs, p.opts.DefaultSortField, trace)
	page := plan.Paging(view)
	projection := plan.Projection(view, p.fs)

	// One count per distinct filter within this request: an empty match
	// expression means filtered and total are the same number.
	total := p.count(filter.Expr{})
	filtered := total
	if len(matchExpr) > 0 {
		filtered = p.count(matchExpr)
	}

	rows := make([]map[string]any, 0)
	docs, err := p.col.Query(matchExpr, sortKeys, page.Skip, page.Limit, projection)
	if err != nil {
		log.Printf("Grid query failed, returning empty page: %v", err)
		docs = nil
	}
	for _, doc := range docs {
		rows = append(rows, result.Normalize(doc))
	}

	envelope := map[string]any{
		"draw":            view.Draw,
		"recordsTotal":    total,
		"recordsFiltered": filtered,
		"data":            rows,
	}
	if p.opts.Debug {
		stats["page"] = map[string]any{"skip": page.Skip, "limit": limitValue(page.Limit)}
		stats["projection"] = projection
		envelope["query_stats"] = stats
	}
	return envelope
}

func (p *Processor) count(expr filter.Expr) int {
	n, err := p.col.Count(expr)
	if err != nil {
		log.Printf("Grid count failed, reporting zero: %v", err)
		return 0
	}
	return n
}

func limitValue(limit *int) any {
	if limit == nil {
		return nil
	}
	return *limit
}
