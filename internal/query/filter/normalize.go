package filter

import "sort"

// Normalize rewrites a predicate tree into its canonical form:
//
//   - nested and/and and or/or combinators are flattened
//   - empty combinators are eliminated
//   - single-child and/or combinators collapse to the child
//   - double negation is eliminated
//   - and/or children are ordered by canonical encoding
//   - in-lists are sorted and deduplicated
//
// Two logically-equivalent trees that differ only in combinator nesting
// or child order normalize to the same tree, so their fingerprints match.
func Normalize(expr Expr) Expr {
	switch e := expr.(type) {
	case nil:
		return nil

	case *Leaf:
		if e.Op == OpIn {
			e.Values = sortValues(e.Values)
		}
		return e

	case *Combinator:
		if e.Op == CombineNot {
			if len(e.Children) == 0 {
				return nil
			}
			child := Normalize(e.Children[0])
			if child == nil {
				return nil
			}
			if inner, ok := child.(*Combinator); ok && inner.Op == CombineNot {
				return inner.Children[0]
			}
			return &Combinator{Op: CombineNot, Children: []Expr{child}}
		}

		var children []Expr
		for _, ch := range e.Children {
			norm := Normalize(ch)
			if norm == nil {
				continue
			}
			// Splice same-operator combinators into the parent.
			if c, ok := norm.(*Combinator); ok && c.Op == e.Op {
				children = append(children, c.Children...)
				continue
			}
			children = append(children, norm)
		}

		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}

		sort.SliceStable(children, func(i, j int) bool {
			return children[i].String() < children[j].String()
		})
		children = dedupeChildren(children)
		if len(children) == 1 {
			return children[0]
		}
		return &Combinator{Op: e.Op, Children: children}

	default:
		return expr
	}
}

// dedupeChildren removes adjacent duplicates from a sorted child list.
func dedupeChildren(children []Expr) []Expr {
	out := children[:1]
	for _, ch := range children[1:] {
		if ch.String() != out[len(out)-1].String() {
			out = append(out, ch)
		}
	}
	return out
}
