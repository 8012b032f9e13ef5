// Package schema provides the entity schema registry for the Vanadium
// query engine. The registry declares which fields exist per queryable
// entity, their types, and which are filterable, sortable, and visible
// in query output. It is immutable after initialization; hot reload is
// an atomic swap of an entire snapshot.
package schema

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/errors"
	"github.com/ion-oset/Electorate-Vanadium-Backend/pkg/types"
)

// FieldSpec declares a single field of an entity.
type FieldSpec struct {
	// Name is the field name, unique within the entity.
	Name string `yaml:"name"`

	// Type is the value type of the field.
	Type types.FieldType `yaml:"type"`

	// Filterable controls whether the field may appear in filter leaves.
	Filterable bool `yaml:"filterable"`

	// Sortable controls whether the field may appear in sort specs.
	// Sortable fields must be non-nullable: their values become
	// pagination cursor keys.
	Sortable bool `yaml:"sortable"`

	// Nullable indicates whether the field may be absent in storage rows.
	Nullable bool `yaml:"nullable"`

	// Output controls whether the field is projected into query results.
	// Fields can be filterable or sortable without being output-visible.
	Output bool `yaml:"output"`

	// Values lists the allowed values for enum fields.
	Values []string `yaml:"values,omitempty"`
}

// EntitySchema declares one queryable entity.
type EntitySchema struct {
	// Name is the entity name as used in query requests.
	Name string `yaml:"name"`

	// Table is the warehouse table (or view) backing the entity.
	Table string `yaml:"table"`

	// Tiebreaker is the sortable field appended to every sort spec to
	// guarantee a total order. Defaults to the first sortable field.
	Tiebreaker string `yaml:"tiebreaker"`

	// Fields is the ordered field list.
	Fields []FieldSpec `yaml:"fields"`

	index map[string]*FieldSpec
}

// Field returns the spec for a field name.
func (e *EntitySchema) Field(name string) (*FieldSpec, bool) {
	f, ok := e.index[name]
	return f, ok
}

// OutputFields returns the names of output-visible fields in declaration order.
func (e *EntitySchema) OutputFields() []string {
	var out []string
	for i := range e.Fields {
		if e.Fields[i].Output {
			out = append(out, e.Fields[i].Name)
		}
	}
	return out
}

// validate checks the schema invariants and builds the field index.
func (e *EntitySchema) validate() error {
	if e.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if e.Table == "" {
		e.Table = e.Name
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entity %s: at least one field is required", e.Name)
	}

	e.index = make(map[string]*FieldSpec, len(e.Fields))
	sortable := ""
	for i := range e.Fields {
		f := &e.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("entity %s: field name is required", e.Name)
		}
		if _, dup := e.index[f.Name]; dup {
			return fmt.Errorf("entity %s: duplicate field %s", e.Name, f.Name)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("entity %s: field %s has invalid type %q", e.Name, f.Name, f.Type)
		}
		if f.Type == types.FieldEnum && len(f.Values) == 0 {
			return fmt.Errorf("entity %s: enum field %s declares no values", e.Name, f.Name)
		}
		// Sort keys seed pagination cursors; a null key has no strict
		// successor, so sortable fields must be non-nullable.
		if f.Sortable && f.Nullable {
			return fmt.Errorf("entity %s: sortable field %s cannot be nullable", e.Name, f.Name)
		}
		if f.Sortable && sortable == "" {
			sortable = f.Name
		}
		e.index[f.Name] = f
	}

	if sortable == "" {
		return fmt.Errorf("entity %s: at least one sortable field is required", e.Name)
	}
	if e.Tiebreaker == "" {
		e.Tiebreaker = sortable
	}
	tb, ok := e.index[e.Tiebreaker]
	if !ok {
		return fmt.Errorf("entity %s: tiebreaker %s is not a declared field", e.Name, e.Tiebreaker)
	}
	if !tb.Sortable {
		return fmt.Errorf("entity %s: tiebreaker %s is not sortable", e.Name, e.Tiebreaker)
	}
	return nil
}

// snapshot is one immutable registry generation.
type snapshot struct {
	entities map[string]*EntitySchema
	names    []string
}

// Registry holds the process-wide entity schema set. Reads are lock-free;
// Replace swaps the whole snapshot atomically.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry builds a registry from the given entity schemas.
func NewRegistry(schemas ...*EntitySchema) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(schemas...); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace validates the schemas and swaps them in as the new snapshot.
// Requests already reading the previous snapshot are unaffected.
func (r *Registry) Replace(schemas ...*EntitySchema) error {
	snap := &snapshot{entities: make(map[string]*EntitySchema, len(schemas))}
	for _, s := range schemas {
		if err := s.validate(); err != nil {
			return err
		}
		if _, dup := snap.entities[s.Name]; dup {
			return fmt.Errorf("duplicate entity %s", s.Name)
		}
		snap.entities[s.Name] = s
		snap.names = append(snap.names, s.Name)
	}
	sort.Strings(snap.names)
	r.snap.Store(snap)
	return nil
}

// Lookup returns the schema for an entity name.
func (r *Registry) Lookup(entity string) (*EntitySchema, error) {
	snap := r.snap.Load()
	s, ok := snap.entities[entity]
	if !ok {
		return nil, errors.Newf(errors.ErrCategorySchema, errors.CodeUnknownEntity,
			"unknown entity %q", entity)
	}
	return s, nil
}

// FieldSpec returns the spec for a field of an entity.
func (r *Registry) FieldSpec(entity, field string) (*FieldSpec, error) {
	s, err := r.Lookup(entity)
	if err != nil {
		return nil, err
	}
	f, ok := s.Field(field)
	if !ok {
		return nil, errors.Newf(errors.ErrCategorySchema, errors.CodeUnknownField,
			"entity %q has no field %q", entity, field)
	}
	return f, nil
}

// Entities returns all registered schemas sorted by name.
func (r *Registry) Entities() []*EntitySchema {
	snap := r.snap.Load()
	out := make([]*EntitySchema, 0, len(snap.names))
	for _, name := range snap.names {
		out = append(out, snap.entities[name])
	}
	return out
}
