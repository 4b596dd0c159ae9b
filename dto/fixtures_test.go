package dto_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/dtoapi/dto"
)

type Author struct {
	ID    int    `json:"id" dto:"read-only"`
	Name  string `json:"name"`
	Email string `json:"email" dto:"write-only"`
}

type Book struct {
	ID     int      `json:"id" dto:"read-only"`
	Title  string   `json:"title"`
	Author Author   `json:"author"`
	Tags   []string `json:"tags,omitempty" default:"[]"`
	Secret string   `json:"_secret"`
}

type Page struct {
	Items []Book `json:"items"`
	Total int    `json:"total"`
}

type Node struct {
	Name     string `json:"name"`
	Children []Node `json:"children"`
}

type Cat struct {
	Name string `json:"name"`
}

type Dog struct {
	Name string `json:"name"`
}

type Fish struct {
	Fins int `json:"fins"`
}

type Zoo struct {
	Resident any `json:"resident"`
}

func (Zoo) DTOAnnotations() map[string]*dto.FieldDefinition {
	return map[string]*dto.FieldDefinition{
		"resident": dto.Union(dto.Of[Cat](), dto.Of[Dog]()),
	}
}

type Tank struct {
	Pet any `json:"pet"`
}

func (Tank) DTOAnnotations() map[string]*dto.FieldDefinition {
	return map[string]*dto.FieldDefinition{
		"pet": dto.Union(dto.Of[Fish](), dto.Of[string]()),
	}
}

type Settings struct {
	Level int      `json:"level" default:"3"`
	Mode  string   `json:"mode" default:"fast"`
	Tags  []string `json:"tags"`
}

func (Settings) DTOAnnotations() map[string]*dto.FieldDefinition {
	return map[string]*dto.FieldDefinition{
		"tags": dto.Of[[]string]().WithDefaultFactory(func() any { return []string{"default"} }),
	}
}

type Shapes struct {
	Pair   [2]any         `json:"pair"`
	Coords [2]float64     `json:"coords"`
	Scores map[string]int `json:"scores"`
	ByID   map[int]string `json:"by_id"`
	Value  any            `json:"value"`
	Blob   []byte         `json:"blob"`
	Note   *string        `json:"note"`
}

func (Shapes) DTOAnnotations() map[string]*dto.FieldDefinition {
	return map[string]*dto.FieldDefinition{
		"pair":  dto.Tuple(dto.Of[string](), dto.Of[int]()),
		"value": dto.Union(dto.Of[int](), dto.Of[string]()),
	}
}

type Event struct {
	ID    uuid.UUID     `json:"id"`
	At    time.Time     `json:"at"`
	Every time.Duration `json:"every"`
}

type Direction struct {
	A int    `json:"a" dto:"data"`
	B string `json:"b" dto:"return"`
	C bool   `json:"c"`
}

// newRegistry returns a registry with the fixture models registered.
func newRegistry(t *testing.T) *dto.Registry {
	t.Helper()
	reg := dto.NewRegistry()
	require.NoError(t, reg.Register(
		reflect.TypeFor[Author](),
		reflect.TypeFor[Book](),
		reflect.TypeFor[Node](),
		reflect.TypeFor[Cat](),
		reflect.TypeFor[Dog](),
		reflect.TypeFor[Fish](),
	))
	return reg
}

func newBackend[T any](t *testing.T, p dto.BackendParams) *dto.Backend {
	t.Helper()
	p.ModelType = reflect.TypeFor[T]()
	b, err := dto.NewBackend(newRegistry(t), p)
	require.NoError(t, err)
	return b
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func fieldNames(fields []*dto.TransferFieldDefinition) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}
	return names
}

func field(t *testing.T, b *dto.Backend, name string) *dto.TransferFieldDefinition {
	t.Helper()
	for _, f := range b.FieldDefinitions() {
		if f.Name() == name {
			return f
		}
	}
	require.FailNow(t, "field not found", name)
	return nil
}
