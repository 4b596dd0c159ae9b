package dto

import "reflect"

// ModelKind is the introspection contract a family of model types provides.
// Implementations must be safe for concurrent use.
type ModelKind interface {
	// Name identifies the kind in logs and errors.
	Name() string

	// Detect reports whether t belongs to this kind.
	Detect(t reflect.Type) bool

	// FieldDefinitions enumerates the fields of t in declared order.
	FieldDefinitions(t reflect.Type) ([]*DTOFieldDefinition, error)

	// Get reads field f from model, which has the type passed to FieldDefinitions.
	Get(model reflect.Value, f *DTOFieldDefinition) reflect.Value

	// Build constructs a model of type t from field values keyed by field
	// name. Fields absent from values take their default, if any.
	Build(t reflect.Type, values map[string]reflect.Value) (reflect.Value, error)
}

// Annotator lets a model override the annotations derived from its Go field
// types, keyed by field name. It is how unions, heterogeneous tuples and
// default factories are declared.
type Annotator interface {
	DTOAnnotations() map[string]*FieldDefinition
}
