// Package types provides core data types shared across the Vanadium query engine.
package types

// FieldType enumerates the value types a warehouse field can carry.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldDate    FieldType = "date"
	FieldEnum    FieldType = "enum"
	FieldBoolean FieldType = "boolean"
)

// Valid reports whether the field type is one of the supported types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldInteger, FieldDate, FieldEnum, FieldBoolean:
		return true
	}
	return false
}

// DateLayout is the canonical wire format for date values.
// Dates are carried as strings in this layout so that lexicographic
// ordering equals chronological ordering.
const DateLayout = "2006-01-02"

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Valid reports whether the direction is asc or desc.
func (d Direction) Valid() bool {
	return d == Ascending || d == Descending
}

// SortField is a single (field, direction) pair in a sort specification.
type SortField struct {
	Field     string    `json:"field" yaml:"field"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// SortSpec is an ordered sequence of sort fields. The registry's stable
// tiebreaker field is appended by the planner if absent, guaranteeing a
// total order over rows.
type SortSpec []SortField

// Row is a raw storage row as returned by a warehouse adapter.
// Values are one of: string, int64, bool, nil.
type Row map[string]any

// Record is a shaped output row. Nullable fields that are absent in the
// source row appear with an explicit nil value, never an empty string.
type Record map[string]any

// Page is the result of one query call. It is constructed per request
// and never persisted.
type Page struct {
	Records    []Record `json:"records"`
	NextCursor string   `json:"next_cursor,omitempty"`
	HasMore    bool     `json:"has_more"`
}
