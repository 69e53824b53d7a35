// Package detection contains the pure change-detection logic: fingerprinting
// referential entities, diffing their fields and classifying deltas against
// stored snapshots. This is part of the Functional Core - no I/O, only pure functions.
package detection

import "sort"

// Canonical field names of a referential entity.
const (
	FieldTitle      = "title"
	FieldDefinition = "definition"
	FieldAccess     = "access"
	FieldSkills     = "skills"
	FieldContexts   = "contexts"
	FieldDomain     = "domain"
	FieldUpdatedAt  = "updated_at"
)

// Entity is one referential entity flattened to named string fields.
// List-valued fields are expected to be canonicalised by the adapter.
type Entity struct {
	Code   string
	Fields map[string]string
}

// Field returns the named field or "".
func (e Entity) Field(name string) string {
	return e.Fields[name]
}

// FieldNames returns the entity's field names in sorted order.
func (e Entity) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
