package filter

import (
	"io"

	"github.com/spaolacci/murmur3"

	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// Fingerprint computes a deterministic 64-bit hash over the entity name,
// the canonical encoding of a normalized predicate tree, and the
// effective sort spec. A cursor is valid only for the exact fingerprint
// it was issued under.
func Fingerprint(entity string, expr Expr, sort types.SortSpec) uint64 {
	h := murmur3.New64()
	io.WriteString(h, entity)
	h.Write([]byte{0})
	if expr != nil {
		io.WriteString(h, expr.String())
	}
	h.Write([]byte{0})
	for _, s := range sort {
		io.WriteString(h, s.Field)
		h.Write([]byte{':'})
		io.WriteString(h, string(s.Direction))
		h.Write([]byte{';'})
	}
	return h.Sum64()
}
