package filter

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// genLeaf builds a random compiled leaf over a small field vocabulary.
func genLeaf(rng *rand.Rand) Expr {
	fields := []string{"county", "age", "status"}
	field := fields[rng.Intn(len(fields))]
	switch field {
	case "age":
		ops := []Operator{OpEq, OpNe, OpLt, OpGte}
		return &Leaf{Field: field, Op: ops[rng.Intn(len(ops))], Value: int64(rng.Intn(100))}
	default:
		values := []string{"Travis", "Dallas", "Harris", "active", "inactive"}
		return &Leaf{Field: field, Op: OpEq, Value: values[rng.Intn(len(values))]}
	}
}

// genTree builds a random predicate tree of bounded depth.
func genTree(rng *rand.Rand, depth int) Expr {
	if depth <= 0 || rng.Intn(3) == 0 {
		return genLeaf(rng)
	}
	switch rng.Intn(3) {
	case 0:
		return &Combinator{Op: CombineNot, Children: []Expr{genTree(rng, depth-1)}}
	default:
		op := CombineAnd
		if rng.Intn(2) == 0 {
			op = CombineOr
		}
		n := 2 + rng.Intn(3)
		children := make([]Expr, n)
		for i := range children {
			children[i] = genTree(rng, depth-1)
		}
		return &Combinator{Op: op, Children: children}
	}
}

// shuffleTree returns a structurally reordered copy of a tree: child
// order is permuted and and/or runs are arbitrarily re-nested. The
// result is logically equivalent to the input.
func shuffleTree(rng *rand.Rand, expr Expr) Expr {
	switch e := expr.(type) {
	case *Leaf:
		cp := *e
		if cp.Op == OpIn {
			vals := append([]any(nil), cp.Values...)
			rng.Shuffle(len(vals), func(i, j int) { vals[i], vals[j] = vals[j], vals[i] })
			cp.Values = vals
		}
		return &cp
	case *Combinator:
		children := make([]Expr, len(e.Children))
		for i, ch := range e.Children {
			children[i] = shuffleTree(rng, ch)
		}
		rng.Shuffle(len(children), func(i, j int) { children[i], children[j] = children[j], children[i] })
		// Occasionally re-nest a prefix into a same-operator child.
		if e.Op != CombineNot && len(children) > 2 && rng.Intn(2) == 0 {
			k := 1 + rng.Intn(len(children)-1)
			nested := &Combinator{Op: e.Op, Children: children[:k]}
			children = append([]Expr{nested}, children[k:]...)
		}
		return &Combinator{Op: e.Op, Children: children}
	default:
		return expr
	}
}

// TestProperty_NormalizationOrderIndependence validates that logically
// equivalent combinator trees normalize to identical canonical encodings,
// and therefore identical fingerprints.
func TestProperty_NormalizationOrderIndependence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	sortSpec := types.SortSpec{
		{Field: "registered_date", Direction: types.Ascending},
		{Field: "id", Direction: types.Ascending},
	}

	properties.Property("shuffled trees share a fingerprint", prop.ForAll(
		func(seed int64, shuffleSeed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			tree := genTree(rng, 4)
			shuffled := shuffleTree(rand.New(rand.NewSource(shuffleSeed)), tree)

			a := Normalize(tree)
			b := Normalize(shuffled)
			if (a == nil) != (b == nil) {
				return false
			}
			if a == nil {
				return true
			}
			if a.String() != b.String() {
				return false
			}
			return Fingerprint("voter", a, sortSpec) == Fingerprint("voter", b, sortSpec)
		},
		gen.Int64(),
		gen.Int64(),
	))

	properties.Property("normalization is idempotent", prop.ForAll(
		func(seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			once := Normalize(genTree(rng, 4))
			twice := Normalize(once)
			if (once == nil) != (twice == nil) {
				return false
			}
			if once == nil {
				return true
			}
			return once.String() == twice.String()
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
