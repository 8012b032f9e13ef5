package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/query/filter"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// MemoryWarehouse is an in-memory Warehouse used by tests and local
// development. It evaluates the compiled predicate tree directly over
// loaded rows with SQL three-valued logic: a comparison against null
// is unknown, and unknown rows are excluded, even under NOT.
type MemoryWarehouse struct {
	mu     sync.RWMutex
	tables map[string][]types.Row
}

// NewMemoryWarehouse creates an empty in-memory warehouse.
func NewMemoryWarehouse() *MemoryWarehouse {
	return &MemoryWarehouse{tables: make(map[string][]types.Row)}
}

// Load replaces the rows of a table.
func (m *MemoryWarehouse) Load(table string, rows []types.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = rows
}

// Execute evaluates the query over the loaded rows.
func (m *MemoryWarehouse) Execute(ctx context.Context, q *StorageQuery) ([]types.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	src := m.tables[q.Table]
	m.mu.RUnlock()

	var matched []types.Row
	for _, row := range src {
		if evalExpr(q.Predicate, row) {
			matched = append(matched, row)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return lessRows(matched[i], matched[j], q.Sort)
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	// Project the requested columns; unknown columns come back nil.
	out := make([]types.Row, len(matched))
	for i, row := range matched {
		pr := make(types.Row, len(q.Columns))
		for _, col := range q.Columns {
			pr[col] = row[col]
		}
		out[i] = pr
	}
	return out, nil
}

// Close implements Warehouse.
func (m *MemoryWarehouse) Close() error {
	return nil
}

// ternary carries SQL three-valued logic through the predicate tree.
// Only tTrue admits a row; tUnknown stays unknown under NOT, matching
// how SQL engines treat null-involved comparisons.
type ternary int

const (
	tFalse ternary = iota
	tTrue
	tUnknown
)

func fromBool(b bool) ternary {
	if b {
		return tTrue
	}
	return tFalse
}

// evalExpr reports whether a row satisfies the predicate tree. A nil
// expression matches everything.
func evalExpr(expr filter.Expr, row types.Row) bool {
	return eval(expr, row) == tTrue
}

func eval(expr filter.Expr, row types.Row) ternary {
	switch e := expr.(type) {
	case nil:
		return tTrue
	case *filter.Leaf:
		return evalLeaf(e, row)
	case *filter.Combinator:
		switch e.Op {
		case filter.CombineAnd:
			out := tTrue
			for _, ch := range e.Children {
				switch eval(ch, row) {
				case tFalse:
					return tFalse
				case tUnknown:
					out = tUnknown
				}
			}
			return out
		case filter.CombineOr:
			out := tFalse
			for _, ch := range e.Children {
				switch eval(ch, row) {
				case tTrue:
					return tTrue
				case tUnknown:
					out = tUnknown
				}
			}
			return out
		case filter.CombineNot:
			if len(e.Children) != 1 {
				return tFalse
			}
			switch eval(e.Children[0], row) {
			case tTrue:
				return tFalse
			case tFalse:
				return tTrue
			}
			return tUnknown
		}
	}
	return tFalse
}

func evalLeaf(leaf *filter.Leaf, row types.Row) ternary {
	v, ok := row[leaf.Field]
	if !ok || v == nil {
		return tUnknown
	}

	switch leaf.Op {
	case filter.OpEq:
		return fromBool(v == leaf.Value)
	case filter.OpNe:
		return fromBool(v != leaf.Value)
	case filter.OpLt:
		c, ok := compareValues(v, leaf.Value)
		return fromBool(ok && c < 0)
	case filter.OpLte:
		c, ok := compareValues(v, leaf.Value)
		return fromBool(ok && c <= 0)
	case filter.OpGt:
		c, ok := compareValues(v, leaf.Value)
		return fromBool(ok && c > 0)
	case filter.OpGte:
		c, ok := compareValues(v, leaf.Value)
		return fromBool(ok && c >= 0)
	case filter.OpIn:
		for _, cand := range leaf.Values {
			if v == cand {
				return tTrue
			}
		}
		return tFalse
	case filter.OpContains:
		s, sok := v.(string)
		sub, cok := leaf.Value.(string)
		return fromBool(sok && cok && strings.Contains(s, sub))
	}
	return tFalse
}

// compareValues compares two values of the same kind. The second result
// is false when the kinds are incomparable.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// lessRows orders rows by the sort spec. Nulls sort first under asc,
// matching SQLite.
func lessRows(a, b types.Row, spec types.SortSpec) bool {
	for _, s := range spec {
		av, bv := a[s.Field], b[s.Field]
		if av == nil && bv == nil {
			continue
		}
		var c int
		switch {
		case av == nil:
			c = -1
		case bv == nil:
			c = 1
		default:
			var ok bool
			c, ok = compareValues(av, bv)
			if !ok {
				continue
			}
		}
		if c == 0 {
			continue
		}
		if s.Direction == types.Descending {
			return c > 0
		}
		return c < 0
	}
	return false
}
