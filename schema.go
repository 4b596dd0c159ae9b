package dtoapi

import (
	"encoding"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bjaus/dtoapi/dto"
)

// JSONSchema represents a JSON Schema object (subset for OpenAPI 3.1).
type JSONSchema struct {
	Type        string                `json:"type,omitempty"`
	Format      string                `json:"format,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty"`
	PrefixItems []JSONSchema          `json:"prefixItems,omitempty"`
	OneOf       []JSONSchema          `json:"oneOf,omitempty"`
	Required    []string              `json:"required,omitempty"`
	Description string                `json:"description,omitempty"`
	Enum        []string              `json:"enum,omitempty"`
	Ref         string                `json:"$ref,omitempty"`

	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"`
	MinItems  *int     `json:"minItems,omitempty"`
	MaxItems  *int     `json:"maxItems,omitempty"`

	// AdditionalProperties can be true (any) or a schema.
	AdditionalProperties *JSONSchema `json:"additionalProperties,omitempty"`
}

const componentPrefix = "#/components/schemas/"

// schemaRegistry collects the component schemas referenced while building
// the operations of one document.
type schemaRegistry struct {
	defs map[string]JSONSchema
}

func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{defs: make(map[string]JSONSchema)}
}

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	textType     = reflect.TypeFor[encoding.TextMarshaler]()
)

// typeToSchema converts a reflect.Type to a JSONSchema. Structs are inlined.
func (s *schemaRegistry) typeToSchema(t reflect.Type) JSONSchema {
	if t == nil {
		return JSONSchema{}
	}
	if t.Kind() == reflect.Pointer {
		return s.typeToSchema(t.Elem())
	}

	switch t {
	case timeType:
		return JSONSchema{Type: "string", Format: "date-time"}
	case durationType:
		return JSONSchema{Type: "string", Format: "duration"}
	case uuidType:
		return JSONSchema{Type: "string", Format: "uuid"}
	case reflect.TypeFor[Void]():
		return JSONSchema{}
	}
	if t.Implements(textType) || reflect.PointerTo(t).Implements(textType) {
		return JSONSchema{Type: "string"}
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return JSONSchema{Type: "string"}
	case reflect.Bool:
		return JSONSchema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return JSONSchema{Type: "integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return JSONSchema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return JSONSchema{Type: "number"}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", Format: "byte"}
		}
		items := s.typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Array:
		items := s.typeToSchema(t.Elem())
		n := t.Len()
		return JSONSchema{Type: "array", Items: &items, MinItems: &n, MaxItems: &n}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		valSchema := s.typeToSchema(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &valSchema}
	case reflect.Struct:
		return s.structToSchema(t)
	default:
		return JSONSchema{}
	}
}

// structToSchema converts a struct type to a JSONSchema with properties.
// Parameter fields are left to the operation's parameters.
func (s *schemaRegistry) structToSchema(t reflect.Type) JSONSchema {
	schema := JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema),
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || isParamField(f) {
			continue
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		prop := s.typeToSchema(f.Type)
		applyFieldTags(&prop, f)
		schema.Properties[name] = prop

		if f.Tag.Get("required") == "true" {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

// transferSchema converts a transfer type tree to a JSONSchema. Nested
// models become references to components named after their transfer models.
func (s *schemaRegistry) transferSchema(tt dto.TransferType) JSONSchema {
	switch t := tt.(type) {
	case *dto.SimpleType:
		if t.NestedFieldInfo != nil {
			return s.modelRef(t.NestedFieldInfo)
		}
		if t.Field.Kind() == dto.KindNone {
			return JSONSchema{Type: "null"}
		}
		return s.typeToSchema(t.Field.Type())
	case *dto.CollectionType:
		items := s.transferSchema(t.InnerType)
		return JSONSchema{Type: "array", Items: &items}
	case *dto.TupleType:
		prefix := make([]JSONSchema, len(t.InnerTypes))
		for i, inner := range t.InnerTypes {
			prefix[i] = s.transferSchema(inner)
		}
		n := len(prefix)
		return JSONSchema{Type: "array", PrefixItems: prefix, MinItems: &n, MaxItems: &n}
	case *dto.MappingType:
		if key := t.KeyType.Definition().Type(); key == nil || key.Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		value := s.transferSchema(t.ValueType)
		return JSONSchema{Type: "object", AdditionalProperties: &value}
	case *dto.UnionType:
		members := make([]JSONSchema, len(t.InnerTypes))
		for i, inner := range t.InnerTypes {
			members[i] = s.transferSchema(inner)
		}
		return JSONSchema{OneOf: members}
	default:
		return JSONSchema{}
	}
}

// modelRef registers the component of a transfer model and returns a
// reference to it.
func (s *schemaRegistry) modelRef(info *dto.NestedFieldInfo) JSONSchema {
	if _, ok := s.defs[info.Name]; !ok {
		// Placeholder so self-referencing models terminate.
		s.defs[info.Name] = JSONSchema{Type: "object"}
		s.defs[info.Name] = s.transferModelSchema(info)
	}
	return JSONSchema{Ref: componentPrefix + info.Name}
}

func (s *schemaRegistry) transferModelSchema(info *dto.NestedFieldInfo) JSONSchema {
	schema := JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema),
	}
	model, isStruct := structType(info.ModelType)

	for _, f := range info.FieldDefinitions {
		if f.IsExcluded {
			continue
		}
		prop := s.transferSchema(f.TransferType)
		if isStruct && len(f.Index) > 0 {
			applyFieldTags(&prop, model.FieldByIndex(f.Index))
		}
		schema.Properties[f.SerializationName] = prop
		if f.IsRequired() {
			schema.Required = append(schema.Required, f.SerializationName)
		}
	}
	return schema
}

// applyFieldTags copies the doc tag and the constraint tags of f onto a
// schema. References cannot carry siblings and are left alone.
func applyFieldTags(s *JSONSchema, f reflect.StructField) {
	if s.Ref != "" {
		return
	}
	if doc := f.Tag.Get("doc"); doc != "" {
		s.Description = doc
	}
	if n, ok := intTag(f, "minLength"); ok {
		s.MinLength = &n
	}
	if n, ok := intTag(f, "maxLength"); ok {
		s.MaxLength = &n
	}
	if p := f.Tag.Get("pattern"); p != "" {
		s.Pattern = p
	}
	if e := f.Tag.Get("enum"); e != "" {
		s.Enum = strings.Split(e, ",")
	}
	if v, ok := floatTag(f, "minimum"); ok {
		s.Minimum = &v
	}
	if v, ok := floatTag(f, "maximum"); ok {
		s.Maximum = &v
	}
	if n, ok := intTag(f, "minItems"); ok {
		s.MinItems = &n
	}
	if n, ok := intTag(f, "maxItems"); ok {
		s.MaxItems = &n
	}
}

func intTag(f reflect.StructField, name string) (int, bool) {
	tag := f.Tag.Get(name)
	if tag == "" {
		return 0, false
	}
	n, err := strconv.Atoi(tag)
	return n, err == nil
}

func floatTag(f reflect.StructField, name string) (float64, bool) {
	tag := f.Tag.Get(name)
	if tag == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tag, 64)
	return v, err == nil
}
