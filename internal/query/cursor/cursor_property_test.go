package cursor

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	verrors "github.com/ion-oset/Electorate-Vanadium-Backend/internal/errors"
)

// TestProperty_CursorRoundTrip validates the codec laws:
// decode(encode(entity, fp, key), entity, fp) recovers key exactly, and
// decoding under any other fingerprint fails with CURSOR_MISMATCH.
func TestProperty_CursorRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("round-trip recovers the key exactly", prop.ForAll(
		func(entity string, fp uint64, s string, i int64, b bool) bool {
			key := []any{s, i, b}
			token, err := Encode(entity, fp, key)
			if err != nil {
				return false
			}
			got, err := Decode(token, entity, fp, len(key))
			if err != nil {
				return false
			}
			return got[0] == s && got[1] == i && got[2] == b
		},
		gen.AlphaString(),
		gen.UInt64(),
		gen.AnyString(),
		gen.Int64(),
		gen.Bool(),
	))

	properties.Property("different fingerprint always mismatches", prop.ForAll(
		func(entity string, fp uint64, other uint64, s string) bool {
			if fp == other {
				other = fp + 1
			}
			token, err := Encode(entity, fp, []any{s})
			if err != nil {
				return false
			}
			_, err = Decode(token, entity, other, 1)
			return verrors.GetCode(err) == verrors.CodeCursorMismatch
		},
		gen.AlphaString(),
		gen.UInt64(),
		gen.UInt64(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
