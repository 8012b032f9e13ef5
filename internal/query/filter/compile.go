package filter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/errors"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/schema"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// DefaultMaxDepth is the default combinator nesting limit.
const DefaultMaxDepth = 10

// RawNode is the wire form of a filter expression node. Exactly one of
// the leaf form (Field+Op+Value) or a combinator (And, Or, Not) may be set.
type RawNode struct {
	Field string          `json:"field,omitempty"`
	Op    string          `json:"op,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`

	And []RawNode `json:"and,omitempty"`
	Or  []RawNode `json:"or,omitempty"`
	Not *RawNode  `json:"not,omitempty"`
}

// Compiler validates and compiles raw filter expressions against an
// entity schema. A zero MaxDepth means DefaultMaxDepth.
type Compiler struct {
	MaxDepth int
}

// Compile translates a raw filter into a normalized predicate tree.
// A nil raw filter compiles to a nil expression (match everything).
func (c *Compiler) Compile(sch *schema.EntitySchema, raw *RawNode) (Expr, error) {
	if raw == nil {
		return nil, nil
	}

	maxDepth := c.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if depth(raw) > maxDepth {
		return nil, errors.Newf(errors.ErrCategoryFilter, errors.CodeFilterTooComplex,
			"filter nesting exceeds the maximum depth of %d", maxDepth)
	}

	expr, err := compileNode(sch, raw)
	if err != nil {
		return nil, err
	}
	return Normalize(expr), nil
}

// depth returns the nesting depth of the raw tree. A leaf has depth 1.
func depth(n *RawNode) int {
	max := 0
	for i := range n.And {
		if d := depth(&n.And[i]); d > max {
			max = d
		}
	}
	for i := range n.Or {
		if d := depth(&n.Or[i]); d > max {
			max = d
		}
	}
	if n.Not != nil {
		if d := depth(n.Not); d > max {
			max = d
		}
	}
	return max + 1
}

func compileNode(sch *schema.EntitySchema, n *RawNode) (Expr, error) {
	forms := 0
	if n.Field != "" || n.Op != "" {
		forms++
	}
	if len(n.And) > 0 {
		forms++
	}
	if len(n.Or) > 0 {
		forms++
	}
	if n.Not != nil {
		forms++
	}
	if forms > 1 {
		return nil, errors.New(errors.ErrCategoryFilter, errors.CodeInvalidFilterField,
			"filter node must be exactly one of: leaf, and, or, not")
	}

	switch {
	case len(n.And) > 0:
		children, err := compileChildren(sch, n.And)
		if err != nil {
			return nil, err
		}
		return &Combinator{Op: CombineAnd, Children: children}, nil
	case len(n.Or) > 0:
		children, err := compileChildren(sch, n.Or)
		if err != nil {
			return nil, err
		}
		return &Combinator{Op: CombineOr, Children: children}, nil
	case n.Not != nil:
		child, err := compileNode(sch, n.Not)
		if err != nil {
			return nil, err
		}
		return &Combinator{Op: CombineNot, Children: []Expr{child}}, nil
	case n.Field != "" || n.Op != "":
		return compileLeaf(sch, n)
	default:
		// {} is an empty combinator; normalization eliminates it.
		return nil, nil
	}
}

func compileChildren(sch *schema.EntitySchema, nodes []RawNode) ([]Expr, error) {
	children := make([]Expr, 0, len(nodes))
	for i := range nodes {
		child, err := compileNode(sch, &nodes[i])
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}
	return children, nil
}

func compileLeaf(sch *schema.EntitySchema, n *RawNode) (Expr, error) {
	spec, ok := sch.Field(n.Field)
	if !ok {
		return nil, errors.Newf(errors.ErrCategoryFilter, errors.CodeInvalidFilterField,
			"entity %q has no field %q", sch.Name, n.Field)
	}
	if !spec.Filterable {
		return nil, errors.Newf(errors.ErrCategoryFilter, errors.CodeInvalidFilterField,
			"field %q is not filterable", n.Field)
	}

	op := Operator(n.Op)
	if err := validateOperator(op, spec); err != nil {
		return nil, err
	}

	if len(n.Value) == 0 {
		return nil, errors.Newf(errors.ErrCategoryFilter, errors.CodeFilterTypeMismatch,
			"field %q: missing value for operator %q", n.Field, op)
	}

	leaf := &Leaf{Field: n.Field, Op: op}
	if op == OpIn {
		var raws []json.RawMessage
		if err := json.Unmarshal(n.Value, &raws); err != nil {
			return nil, errors.Newf(errors.ErrCategoryFilter, errors.CodeFilterTypeMismatch,
				"field %q: in requires an array of values", n.Field)
		}
		if len(raws) == 0 {
			return nil, errors.Newf(errors.ErrCategoryFilter, errors.CodeFilterTypeMismatch,
				"field %q: in requires a non-empty array", n.Field)
		}
		for _, r := range raws {
			v, err := parseValue(spec, r)
			if err != nil {
				return nil, err
			}
			leaf.Values = append(leaf.Values, v)
		}
		return leaf, nil
	}

	v, err := parseValue(spec, n.Value)
	if err != nil {
		return nil, err
	}
	leaf.Value = v
	return leaf, nil
}

// validateOperator checks that the operator exists and is valid for the
// field's type: contains applies only to string fields, ordering
// operators never apply to booleans.
func validateOperator(op Operator, spec *schema.FieldSpec) error {
	switch op {
	case OpEq, OpNe, OpIn:
		return nil
	case OpLt, OpLte, OpGt, OpGte:
		if spec.Type == types.FieldBoolean {
			return errors.Newf(errors.ErrCategoryFilter, errors.CodeUnsupportedOperator,
				"operator %q is not valid for boolean field %q", op, spec.Name)
		}
		return nil
	case OpContains:
		if spec.Type != types.FieldString {
			return errors.Newf(errors.ErrCategoryFilter, errors.CodeUnsupportedOperator,
				"operator contains is not valid for %s field %q", spec.Type, spec.Name)
		}
		return nil
	default:
		return errors.Newf(errors.ErrCategoryFilter, errors.CodeUnsupportedOperator,
			"unknown operator %q", op)
	}
}

// parseValue decodes a raw JSON value as the field's declared type.
func parseValue(spec *schema.FieldSpec, raw json.RawMessage) (any, error) {
	mismatch := func(want string) error {
		return errors.Newf(errors.ErrCategoryFilter, errors.CodeFilterTypeMismatch,
			"field %q: value %s does not parse as %s", spec.Name, strings.TrimSpace(string(raw)), want)
	}

	switch spec.Type {
	case types.FieldString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, mismatch("string")
		}
		return s, nil

	case types.FieldInteger:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, mismatch("integer")
		}
		i, err := n.Int64()
		if err != nil {
			return nil, mismatch("integer")
		}
		return i, nil

	case types.FieldDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, mismatch("date")
		}
		if _, err := time.Parse(types.DateLayout, s); err != nil {
			return nil, mismatch("date (" + types.DateLayout + ")")
		}
		return s, nil

	case types.FieldEnum:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, mismatch("enum")
		}
		for _, allowed := range spec.Values {
			if s == allowed {
				return s, nil
			}
		}
		return nil, errors.Newf(errors.ErrCategoryFilter, errors.CodeFilterTypeMismatch,
			"field %q: %q is not one of the allowed enum values", spec.Name, s)

	case types.FieldBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, mismatch("boolean")
		}
		return b, nil

	default:
		return nil, errors.Newf(errors.ErrCategoryInternal, errors.CodeUnexpected,
			"field %q has unhandled type %q", spec.Name, spec.Type)
	}
}
