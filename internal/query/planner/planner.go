// Package planner combines entity selection, compiled predicate, sort
// spec, and cursor position into a single bounded query request against
// the storage boundary.
package planner

import (
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/errors"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query/filter"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/schema"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/storage"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// Page size policy: requests above the maximum are clamped, not
// rejected, favoring availability over strict input rejection.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Planner builds storage queries. Zero values for the size fields fall
// back to the package defaults.
type Planner struct {
	DefaultPageSize int
	MaxPageSize     int
}

// ClampPageSize applies the default and maximum page-size policy.
func (p *Planner) ClampPageSize(requested int) int {
	def := p.DefaultPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	max := p.MaxPageSize
	if max <= 0 {
		max = MaxPageSize
	}
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

// EffectiveSort validates a requested sort spec against the schema and
// appends the entity's stable tiebreaker if absent, guaranteeing a total
// order. An empty request sorts by the tiebreaker alone.
func EffectiveSort(sch *schema.EntitySchema, requested []types.SortField) (types.SortSpec, error) {
	spec := make(types.SortSpec, 0, len(requested)+1)
	seenTiebreaker := false

	for _, s := range requested {
		f, ok := sch.Field(s.Field)
		if !ok {
			return nil, errors.Newf(errors.ErrCategorySchema, errors.CodeUnknownField,
				"entity %q has no field %q", sch.Name, s.Field)
		}
		if !f.Sortable {
			return nil, errors.Newf(errors.ErrCategorySchema, errors.CodeUnknownField,
				"field %q is not sortable", s.Field)
		}
		dir := s.Direction
		if dir == "" {
			dir = types.Ascending
		}
		if !dir.Valid() {
			return nil, errors.Newf(errors.ErrCategorySchema, errors.CodeUnknownField,
				"invalid sort direction %q for field %q", s.Direction, s.Field)
		}
		if s.Field == sch.Tiebreaker {
			seenTiebreaker = true
		}
		spec = append(spec, types.SortField{Field: s.Field, Direction: dir})
	}

	if !seenTiebreaker {
		spec = append(spec, types.SortField{Field: sch.Tiebreaker, Direction: types.Ascending})
	}
	return spec, nil
}

// Plan builds the bounded storage query for one page. lastKey is the
// decoded cursor position (nil for the first page), ordered to match the
// sort spec. The planner requests pageSize+1 rows so the caller can
// determine has_more without a count query.
func (p *Planner) Plan(sch *schema.EntitySchema, expr filter.Expr, sort types.SortSpec, lastKey []any, pageSize int) (*storage.StorageQuery, error) {
	size := p.ClampPageSize(pageSize)

	predicate := expr
	if lastKey != nil {
		if len(lastKey) != len(sort) {
			return nil, errors.New(errors.ErrCategoryCursor, errors.CodeCursorMismatch,
				"cursor key does not match the sort spec")
		}
		seek := seekPredicate(sort, lastKey)
		if predicate == nil {
			predicate = seek
		} else {
			predicate = &filter.Combinator{Op: filter.CombineAnd, Children: []filter.Expr{predicate, seek}}
		}
	}

	return &storage.StorageQuery{
		Entity:    sch.Name,
		Table:     sch.Table,
		Columns:   projection(sch, sort),
		Predicate: predicate,
		Sort:      sort,
		Limit:     size + 1,
	}, nil
}

// seekPredicate builds the keyset continuation condition for a sort key
// tuple (k1..kn):
//
//	(s1 > k1) OR (s1 = k1 AND s2 > k2) OR ... OR (s1 = k1 AND ... AND sn > kn)
//
// with > flipped to < for descending fields. The comparison is strict:
// the cursor names the last row already returned, so resuming never
// revisits it, and the total order guarantees no row is skipped.
func seekPredicate(sort types.SortSpec, lastKey []any) filter.Expr {
	var clauses []filter.Expr
	for i := range sort {
		var parts []filter.Expr
		for j := 0; j < i; j++ {
			parts = append(parts, &filter.Leaf{Field: sort[j].Field, Op: filter.OpEq, Value: lastKey[j]})
		}
		cmp := filter.OpGt
		if sort[i].Direction == types.Descending {
			cmp = filter.OpLt
		}
		parts = append(parts, &filter.Leaf{Field: sort[i].Field, Op: cmp, Value: lastKey[i]})

		if len(parts) == 1 {
			clauses = append(clauses, parts[0])
		} else {
			clauses = append(clauses, &filter.Combinator{Op: filter.CombineAnd, Children: parts})
		}
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return &filter.Combinator{Op: filter.CombineOr, Children: clauses}
}

// projection returns the columns to read: output-visible fields plus any
// sort fields needed to build the next cursor.
func projection(sch *schema.EntitySchema, sort types.SortSpec) []string {
	cols := sch.OutputFields()
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	for _, s := range sort {
		if !have[s.Field] {
			cols = append(cols, s.Field)
			have[s.Field] = true
		}
	}
	return cols
}
