package dtoapi_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/dtoapi"
)

func TestRequestShape(t *testing.T) {
	t.Parallel()

	type params struct {
		ID     string `path:"id"`
		Limit  int    `query:"limit"`
		Tenant string `header:"X-Tenant"`
		Token  string `cookie:"token"`
	}
	type hiddenParams struct {
		id string `path:"id"`
	}
	type mixed struct {
		ID   string `path:"id"`
		Body []book
	}
	type bodyOnly struct {
		Body book `json:"body"`
	}
	type hiddenBody struct {
		ID   string `path:"id"`
		body book
	}

	tests := map[string]struct {
		typ      reflect.Type
		params   bool
		hasBody  bool
		bodyType reflect.Type
	}{
		"dto model":        {typ: typeOf[book](), bodyType: typeOf[book]()},
		"pointer to model": {typ: typeOf[*book](), bodyType: typeOf[*book]()},
		"params":           {typ: typeOf[params](), params: true},
		"unexported param": {typ: typeOf[hiddenParams](), bodyType: typeOf[hiddenParams]()},
		"mixed":            {typ: typeOf[mixed](), params: true, hasBody: true, bodyType: typeOf[[]book]()},
		"body field only":  {typ: typeOf[bodyOnly](), hasBody: true, bodyType: typeOf[book]()},
		"unexported body":  {typ: typeOf[hiddenBody](), params: true},
		"void":             {typ: typeOf[dtoapi.Void]()},
		"not a struct":     {typ: typeOf[[]book](), bodyType: typeOf[[]book]()},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.params, dtoapi.HasParamTags(tc.typ), "params")
			assert.Equal(t, tc.hasBody, dtoapi.HasBodyField(tc.typ), "body field")
			assert.Equal(t, tc.bodyType, dtoapi.BodyType(tc.typ), "body type")
		})
	}
}

func TestTagOptions(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		tag      string
		name     string
		required bool
	}{
		"bare":         {tag: "X-Tenant", name: "X-Tenant"},
		"required":     {tag: "session_id,required", name: "session_id", required: true},
		"later option": {tag: "limit,omitempty,required", name: "limit", required: true},
		"prefix only":  {tag: "limit,requiredish", name: "limit"},
		"options only": {tag: ",required", required: true},
		"empty":        {tag: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			gotName, opts := dtoapi.TagOptions(tc.tag)
			assert.Equal(t, tc.name, gotName)
			assert.Equal(t, tc.required, dtoapi.TagContains(opts, "required"))
		})
	}
}

func TestModelOf(t *testing.T) {
	t.Parallel()

	type model struct{ Name string }

	tests := map[string]reflect.Type{
		"struct":          reflect.TypeFor[model](),
		"pointer":         reflect.TypeFor[*model](),
		"slice":           reflect.TypeFor[[]model](),
		"slice of ptr":    reflect.TypeFor[[]*model](),
		"array":           reflect.TypeFor[[2]model](),
		"map value":       reflect.TypeFor[map[string]model](),
		"nested wrappers": reflect.TypeFor[*map[string][]*model](),
	}

	for name, typ := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, reflect.TypeFor[model](), dtoapi.ModelOf(typ))
		})
	}
}

func TestJSONFieldName(t *testing.T) {
	t.Parallel()

	type sample struct {
		Tagged  string `json:"tagged,omitempty"`
		Bare    string
		Skipped string `json:"-"`
		Opts    string `json:",omitempty"`
	}
	st := reflect.TypeFor[sample]()

	tests := map[string]string{
		"Tagged":  "tagged",
		"Bare":    "Bare",
		"Skipped": "-",
		"Opts":    "Opts",
	}

	for field, want := range tests {
		t.Run(field, func(t *testing.T) {
			t.Parallel()

			sf, ok := st.FieldByName(field)
			require.True(t, ok)
			assert.Equal(t, want, dtoapi.JSONFieldName(sf))
		})
	}
}
