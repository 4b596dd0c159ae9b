package dto

import "reflect"

// TransferType describes how values of one annotation cross the DTO
// boundary. The variants mirror the annotation shapes: SimpleType,
// CollectionType, MappingType, TupleType and UnionType. CompositeType is the
// abstract shape; it never comes out of classification.
type TransferType interface {
	// Definition returns the annotation the transfer type was built from.
	Definition() *FieldDefinition

	// HasNested reports whether any reachable leaf is a nested model.
	HasNested() bool
}

// NestedFieldInfo is a nested model's synthesized transfer model and the
// field definitions it was built from.
type NestedFieldInfo struct {
	// Model is the transfer model type.
	Model reflect.Type

	// Name is the unique name of the transfer model.
	Name string

	// ModelType is the model the transfer model stands for.
	ModelType reflect.Type
	Kind      ModelKind

	FieldDefinitions []*TransferFieldDefinition
}

// SimpleType is a leaf. NestedFieldInfo is set when the leaf is a model.
type SimpleType struct {
	Field           *FieldDefinition
	NestedFieldInfo *NestedFieldInfo
}

func (t *SimpleType) Definition() *FieldDefinition { return t.Field }
func (t *SimpleType) HasNested() bool              { return t.NestedFieldInfo != nil }

// CompositeType is a shape without a synthesis rule of its own.
type CompositeType struct {
	Field  *FieldDefinition
	Nested bool
}

func (t *CompositeType) Definition() *FieldDefinition { return t.Field }
func (t *CompositeType) HasNested() bool              { return t.Nested }

// CollectionType is a homogeneous sequence: a slice or a variadic tuple.
type CollectionType struct {
	Field     *FieldDefinition
	InnerType TransferType
}

func (t *CollectionType) Definition() *FieldDefinition { return t.Field }
func (t *CollectionType) HasNested() bool              { return t.InnerType.HasNested() }

// MappingType is a map.
type MappingType struct {
	Field     *FieldDefinition
	KeyType   TransferType
	ValueType TransferType
}

func (t *MappingType) Definition() *FieldDefinition { return t.Field }
func (t *MappingType) HasNested() bool {
	return t.KeyType.HasNested() || t.ValueType.HasNested()
}

// TupleType is a fixed-length tuple with one transfer type per position.
type TupleType struct {
	Field      *FieldDefinition
	InnerTypes []TransferType
}

func (t *TupleType) Definition() *FieldDefinition { return t.Field }
func (t *TupleType) HasNested() bool              { return anyNested(t.InnerTypes) }

// UnionType has one transfer type per union member, in declared order.
type UnionType struct {
	Field      *FieldDefinition
	InnerTypes []TransferType
}

func (t *UnionType) Definition() *FieldDefinition { return t.Field }
func (t *UnionType) HasNested() bool              { return anyNested(t.InnerTypes) }

func anyNested(types []TransferType) bool {
	for _, t := range types {
		if t.HasNested() {
			return true
		}
	}
	return false
}
