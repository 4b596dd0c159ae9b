// Package dto derives wire shapes from model types. For one model and one
// direction ("data" for request payloads, "return" for responses) a Backend
// synthesizes a transfer model, a struct type holding only the fields that
// cross the wire, and converts between model values and transfer values.
//
// Models are registered with a Registry; any registered type found inside
// another model's fields is nested and gets a transfer model of its own:
//
//	reg := dto.NewRegistry()
//	_ = dto.RegisterModel[Author](reg)
//	b, err := dto.NewBackend(reg, dto.BackendParams{
//	    ModelType: reflect.TypeFor[Book](),
//	    Config:    dto.Config{Exclude: []string{"author.email"}},
//	})
//	out, err := b.EncodeData(book)
//
// Field annotations are normalized once into FieldDefinition values. Go
// types map onto annotations directly (pointers are optional, slices are
// collections, arrays are tuples, maps are mappings); unions and
// heterogeneous tuples are declared through Annotator.
//
// Fields are marked with the dto struct tag:
//
//	type User struct {
//	    ID       int    `json:"id" dto:"read-only"`
//	    Password string `json:"password" dto:"write-only"`
//	    Secret   string `json:"_secret"`
//	}
//
// A field named with a leading underscore is private unless it carries an
// explicit mark.
package dto
