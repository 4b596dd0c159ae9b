package dtogen_test

import (
	"bytes"
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/dtoapi/dto"
	"github.com/bjaus/dtoapi/dto/dtogen"
)

type Author struct {
	ID    int    `json:"id" dto:"read-only"`
	Name  string `json:"name"`
	Email string `json:"email" dto:"write-only"`
}

type Book struct {
	ID        int               `json:"id" dto:"read-only"`
	Title     string            `json:"title"`
	Author    Author            `json:"author"`
	CoAuthors []Author          `json:"co_authors"`
	Editor    *Author           `json:"editor"`
	Labels    map[string]string `json:"labels"`
	Published time.Time         `json:"published"`
}

func newRegistry(t *testing.T) *dto.Registry {
	t.Helper()
	reg := dto.NewRegistry()
	require.NoError(t, dto.RegisterModel[Author](reg))
	require.NoError(t, dto.RegisterModel[Book](reg))
	return reg
}

func generate(t *testing.T, params ...dto.BackendParams) (string, map[string]*ast.StructType) {
	t.Helper()

	var buf bytes.Buffer
	err := dtogen.New(newRegistry(t), "models").Render(context.Background(), &buf, params)
	require.NoError(t, err)

	file, err := parser.ParseFile(token.NewFileSet(), "models.go", buf.Bytes(), parser.ParseComments)
	require.NoError(t, err, buf.String())
	assert.Equal(t, "models", file.Name.Name)

	types := make(map[string]*ast.StructType)
	ast.Inspect(file, func(n ast.Node) bool {
		if ts, ok := n.(*ast.TypeSpec); ok {
			if st, ok := ts.Type.(*ast.StructType); ok {
				types[ts.Name.Name] = st
			}
		}
		return true
	})
	return buf.String(), types
}

func fieldNames(st *ast.StructType) []string {
	var names []string
	for _, f := range st.Fields.List {
		for _, n := range f.Names {
			names = append(names, n.Name)
		}
	}
	return names
}

func TestGenerator_Render(t *testing.T) {
	t.Parallel()

	src, types := generate(t,
		dto.BackendParams{ModelType: reflect.TypeFor[Book](), HandlerID: "get_book"},
		dto.BackendParams{ModelType: reflect.TypeFor[Book](), HandlerID: "create_book", IsDataField: true},
	)

	assert.Contains(t, src, "// Code generated by dtogen. DO NOT EDIT.")
	assert.Contains(t, src, "// GetBookBookResponseBody is the return transfer model of dtogen_test.Book.")
	assert.Contains(t, src, `"time"`)

	tests := map[string][]string{
		"GetBookBookResponseBody":   {"Id", "Title", "Author", "CoAuthors", "Editor", "Labels", "Published"},
		"CreateBookBookRequestBody": {"Title", "Author", "CoAuthors", "Editor", "Labels", "Published"},
		"AuthorReturn":              {"Id", "Name"},
		"AuthorData":                {"Name", "Email"},
	}
	assert.Len(t, types, len(tests))
	for name, fields := range tests {
		st, ok := types[name]
		if assert.True(t, ok, name) {
			assert.Equal(t, fields, fieldNames(st), name)
		}
	}

	for _, line := range []string{
		`Author\s+AuthorReturn\s+` + "`" + `json:"author" yaml:"author"` + "`",
		`CoAuthors\s+\[\]AuthorReturn\s+`,
		`Editor\s+\*AuthorReturn\s+`,
		`Labels\s+map\[string\]string\s+`,
		`Published\s+time\.Time\s+`,
		`CoAuthors\s+\[\]AuthorData\s+`,
	} {
		assert.Regexp(t, regexp.MustCompile(line), src)
	}
}

type Cat struct {
	Name string `json:"name"`
}

type Dog struct {
	Name string `json:"name"`
}

type Household struct {
	Cat Cat `json:"cat"`
	Dog Dog `json:"dog"`
}

func TestGenerator_Render_identicalModels(t *testing.T) {
	t.Parallel()

	reg := dto.NewRegistry()
	require.NoError(t, dto.RegisterModel[Cat](reg))
	require.NoError(t, dto.RegisterModel[Dog](reg))
	require.NoError(t, dto.RegisterModel[Household](reg))

	var buf bytes.Buffer
	err := dtogen.New(reg, "models").Render(context.Background(), &buf,
		[]dto.BackendParams{{ModelType: reflect.TypeFor[Household](), HandlerID: "home"}})
	require.NoError(t, err)

	_, err = parser.ParseFile(token.NewFileSet(), "models.go", buf.Bytes(), 0)
	require.NoError(t, err, buf.String())

	src := buf.String()
	assert.Regexp(t, regexp.MustCompile(`type CatReturn struct`), src)
	assert.Regexp(t, regexp.MustCompile(`type DogReturn = CatReturn`), src)
	assert.Regexp(t, regexp.MustCompile(`Dog\s+CatReturn\s+`), src)
}

func TestGenerator_Backends(t *testing.T) {
	t.Parallel()

	params := make([]dto.BackendParams, 8)
	for i := range params {
		params[i] = dto.BackendParams{ModelType: reflect.TypeFor[Book](), IsDataField: i%2 == 1}
	}

	backends, err := dtogen.New(newRegistry(t), "models").Backends(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, backends, len(params))
	for i, b := range backends {
		assert.Equal(t, params[i].IsDataField, b.Direction() == dto.ForData)
	}
}

func TestGenerator_errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		ctx    func() context.Context
		params []dto.BackendParams
		errIs  error
	}{
		"unsupported model": {
			ctx:    context.Background,
			params: []dto.BackendParams{{ModelType: reflect.TypeFor[int]()}},
			errIs:  dto.ErrUnsupportedModel,
		},
		"canceled": {
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			params: []dto.BackendParams{{ModelType: reflect.TypeFor[Book]()}},
			errIs:  context.Canceled,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := dtogen.New(newRegistry(t), "models").Generate(tc.ctx(), tc.params)
			require.ErrorIs(t, err, tc.errIs)
		})
	}
}
