// Package shaper maps raw storage rows into response records per the
// schema's declared output shape.
package shaper

import (
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/schema"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// Result is one shaped page of records plus what the orchestrator needs
// to build the next cursor.
type Result struct {
	// Records are the shaped output rows, at most pageSize of them.
	Records []types.Record

	// LastRow is the raw row backing the final record, nil when the page
	// is empty. Its sort key seeds the next cursor.
	LastRow types.Row

	// HasMore reports whether storage returned more than pageSize rows.
	HasMore bool
}

// Shape projects raw rows onto the entity's output fields. Storage is
// asked for pageSize+1 rows; the extra row, if present, is dropped and
// only signals that another page exists.
//
// Nullable handling: an output field absent from a raw row appears in
// the record with an explicit nil value, preserving the distinction
// between "empty" and "unknown".
func Shape(sch *schema.EntitySchema, rows []types.Row, pageSize int) *Result {
	res := &Result{}
	if len(rows) > pageSize {
		res.HasMore = true
		rows = rows[:pageSize]
	}
	if len(rows) == 0 {
		return res
	}

	outputs := sch.OutputFields()
	res.Records = make([]types.Record, len(rows))
	for i, row := range rows {
		rec := make(types.Record, len(outputs))
		for _, field := range outputs {
			v, ok := row[field]
			if !ok {
				rec[field] = nil
				continue
			}
			rec[field] = v
		}
		res.Records[i] = rec
	}
	res.LastRow = rows[len(rows)-1]
	return res
}
