// Package filter compiles user-supplied filter expressions into validated,
// storage-agnostic predicate trees. Compilation validates every leaf
// against the target entity schema, normalizes combinator trees into a
// canonical form, and enforces a nesting depth limit.
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Operator is a comparison operator in a filter leaf.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
)

// CombineOp is a logical combinator over child expressions.
type CombineOp string

const (
	CombineAnd CombineOp = "and"
	CombineOr  CombineOp = "or"
	CombineNot CombineOp = "not"
)

// Expr is a node in a compiled predicate tree. It is either a *Leaf or
// a *Combinator; validation and translation dispatch on the concrete type.
type Expr interface {
	exprNode()
	// String returns the canonical encoding of the node. Two semantically
	// identical normalized trees produce identical strings, which is what
	// the cursor fingerprint is computed over.
	String() string
}

// Leaf is a single field comparison.
type Leaf struct {
	Field string
	Op    Operator

	// Value holds the typed comparison value for scalar operators.
	// One of: string, int64, bool.
	Value any

	// Values holds the typed value list for the in operator.
	Values []any
}

func (l *Leaf) exprNode() {}

// String returns the canonical encoding of the leaf.
func (l *Leaf) String() string {
	if l.Op == OpIn {
		parts := make([]string, len(l.Values))
		for i, v := range l.Values {
			parts[i] = encodeValue(v)
		}
		return fmt.Sprintf("(%s in [%s])", l.Field, strings.Join(parts, ","))
	}
	return fmt.Sprintf("(%s %s %s)", l.Field, l.Op, encodeValue(l.Value))
}

// Combinator combines child expressions with a logical operator.
// A not combinator has exactly one child.
type Combinator struct {
	Op       CombineOp
	Children []Expr
}

func (c *Combinator) exprNode() {}

// String returns the canonical encoding of the combinator.
func (c *Combinator) String() string {
	parts := make([]string, len(c.Children))
	for i, ch := range c.Children {
		parts[i] = ch.String()
	}
	return fmt.Sprintf("%s(%s)", c.Op, strings.Join(parts, " "))
}

// encodeValue renders a typed value deterministically for canonical encoding.
func encodeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// sortValues orders a value list by canonical encoding and removes
// duplicates. Used to canonicalize in-lists.
func sortValues(values []any) []any {
	sort.Slice(values, func(i, j int) bool {
		return encodeValue(values[i]) < encodeValue(values[j])
	})
	out := values[:0]
	var prev string
	for i, v := range values {
		enc := encodeValue(v)
		if i == 0 || enc != prev {
			out = append(out, v)
		}
		prev = enc
	}
	return out
}
