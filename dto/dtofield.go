package dto

import "strings"

// Mark controls the visibility of a field on the wire.
type Mark string

// Field marks.
const (
	MarkNone      Mark = ""
	MarkPrivate   Mark = "private"
	MarkReadOnly  Mark = "read-only"
	MarkWriteOnly Mark = "write-only"
)

// ForType is the direction a backend, or a single field, serves.
type ForType string

// Directions. ForBoth is only meaningful on a field.
const (
	ForBoth   ForType = ""
	ForData   ForType = "data"
	ForReturn ForType = "return"
)

func (f ForType) String() string {
	if f == ForBoth {
		return "both"
	}
	return string(f)
}

// DTOField is the per-field DTO configuration.
type DTOField struct {
	Mark Mark
}

// DTOFieldDefinition is a model field as the DTO layer sees it.
type DTOFieldDefinition struct {
	*FieldDefinition

	// ModelName is the unique name of the owning model.
	ModelName string
	DTOField  DTOField
	DTOFor    ForType

	// Index is the reflect field index for struct-backed model kinds.
	Index []int
}

// UniqueName is the field name qualified by its model's unique name.
func (d *DTOFieldDefinition) UniqueName() string {
	return d.ModelName + "." + d.Name()
}

func (d *DTOFieldDefinition) withMark(m Mark) *DTOFieldDefinition {
	c := *d
	c.DTOField.Mark = m
	return &c
}

// ShouldMarkPrivate reports whether f is private by the underscore
// convention: the flag is set, the name starts with an underscore and the
// field carries no explicit mark.
func ShouldMarkPrivate(f *DTOFieldDefinition, underscoreFieldsPrivate bool) bool {
	return underscoreFieldsPrivate && strings.HasPrefix(f.Name(), "_") && f.DTOField.Mark == MarkNone
}

// TransferFieldDefinition is a DTOFieldDefinition after parsing for one direction.
type TransferFieldDefinition struct {
	*DTOFieldDefinition

	// SerializationName is the key used on the wire.
	SerializationName string
	TransferType      TransferType

	// IsExcluded fields are part of the model but never of the transfer model.
	IsExcluded bool

	// IsPartial fields may be absent from inbound data.
	IsPartial bool

	slot int
}

// Slot is the index of the field in the transfer model, or -1 when excluded.
func (f *TransferFieldDefinition) Slot() int { return f.slot }

// IsRequired reports whether inbound data must carry the field.
func (f *TransferFieldDefinition) IsRequired() bool { return required(f) }

// excludedFor reports whether a field with mark m is hidden for direction dir.
func excludedFor(m Mark, dir ForType) bool {
	//exhaustive:ignore
	switch m {
	case MarkPrivate:
		return true
	case MarkReadOnly:
		return dir == ForData
	case MarkWriteOnly:
		return dir == ForReturn
	default:
		return false
	}
}
