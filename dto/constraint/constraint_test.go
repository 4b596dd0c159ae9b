package constraint_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/dtoapi/dto"
	"github.com/bjaus/dtoapi/dto/constraint"
)

type Signup struct {
	Username string   `json:"user_name" minLength:"3" maxLength:"8" pattern:"^[a-z]+$"`
	Plan     string   `json:"plan" enum:"free,pro"`
	Age      int      `json:"age" minimum:"13" maximum:"130"`
	Score    float64  `json:"score" maximum:"1.5"`
	Seats    uint     `json:"seats" minimum:"1"`
	Tags     []string `json:"tags" minItems:"1" maxItems:"2"`
	Nickname *string  `json:"nickname" minLength:"2"`
}

type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r *Range) Validate() error {
	if r.From > r.To {
		return &dto.FieldError{Path: "from", Message: "must not exceed to", Value: r.From}
	}
	return nil
}

type Plain struct {
	Name string `json:"name"`
}

func valid() Signup {
	return Signup{Username: "ann", Plan: "free", Age: 30, Score: 1, Seats: 1, Tags: []string{"a"}}
}

func ptr(s string) *string { return &s }

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		mutate  func(*Signup)
		path    string
		message string
	}{
		"too short": {
			mutate:  func(s *Signup) { s.Username = "ab" },
			path:    "user_name",
			message: "must be at least 3 characters",
		},
		"too long": {
			mutate:  func(s *Signup) { s.Username = "abcdefghi" },
			path:    "user_name",
			message: "must be at most 8 characters",
		},
		"pattern": {
			mutate:  func(s *Signup) { s.Username = "Ann" },
			path:    "user_name",
			message: "must match pattern ^[a-z]+$",
		},
		"enum": {
			mutate:  func(s *Signup) { s.Plan = "gold" },
			path:    "plan",
			message: "must be one of [free,pro]",
		},
		"minimum": {
			mutate:  func(s *Signup) { s.Age = 12 },
			path:    "age",
			message: "must be at least 13",
		},
		"maximum": {
			mutate:  func(s *Signup) { s.Age = 131 },
			path:    "age",
			message: "must be at most 130",
		},
		"float maximum": {
			mutate:  func(s *Signup) { s.Score = 1.6 },
			path:    "score",
			message: "must be at most 1.5",
		},
		"uint minimum": {
			mutate:  func(s *Signup) { s.Seats = 0 },
			path:    "seats",
			message: "must be at least 1",
		},
		"min items": {
			mutate:  func(s *Signup) { s.Tags = nil },
			path:    "tags",
			message: "must have at least 1 items",
		},
		"max items": {
			mutate:  func(s *Signup) { s.Tags = []string{"a", "b", "c"} },
			path:    "tags",
			message: "must have at most 2 items",
		},
		"pointer": {
			mutate:  func(s *Signup) { s.Nickname = ptr("x") },
			path:    "nickname",
			message: "must be at least 2 characters",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := valid()
			tc.mutate(&s)
			err := constraint.Check(s)

			var ve *dto.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Len(t, ve.Errors, 1)
			assert.Equal(t, tc.path, ve.Errors[0].Path)
			assert.Equal(t, tc.message, ve.Errors[0].Message)
		})
	}
}

func TestCheck_valid(t *testing.T) {
	t.Parallel()

	s := valid()
	require.NoError(t, constraint.Check(s))
	require.NoError(t, constraint.Check(&s))
	require.NoError(t, constraint.Check((*Signup)(nil)))
	require.NoError(t, constraint.Check(42))
}

func TestCheck_collectsAll(t *testing.T) {
	t.Parallel()

	err := constraint.Check(Signup{Username: "A", Plan: "x", Age: 1, Seats: 1, Tags: []string{"a"}})

	var ve *dto.ValidationError
	require.ErrorAs(t, err, &ve)
	paths := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		paths[i] = fe.Path
	}
	assert.Equal(t, []string{"user_name", "user_name", "plan", "age"}, paths)
}

func TestCheckExcept(t *testing.T) {
	t.Parallel()

	type Req struct {
		Limit int `query:"limit" maximum:"10"`
		Body  Signup
	}

	req := Req{Limit: 5, Body: Signup{Username: "A"}}
	require.NoError(t, constraint.CheckExcept(req, "Body"))

	req.Limit = 11
	var ve *dto.ValidationError
	require.ErrorAs(t, constraint.CheckExcept(&req, "Body"), &ve)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "Limit", ve.Errors[0].Path)

	require.ErrorAs(t, constraint.Check(req), &ve)
	assert.Greater(t, len(ve.Errors), 1)
}

func TestCheck_nested(t *testing.T) {
	t.Parallel()

	type Address struct {
		City string `json:"city" minLength:"2"`
	}
	type Order struct {
		Ship    Address  `json:"ship"`
		Bill    *Address `json:"bill"`
		Ignored Address  `json:"-"`
	}

	tests := map[string]struct {
		input Order
		paths []string
	}{
		"valid": {
			input: Order{Ship: Address{City: "NYC"}},
		},
		"nested value": {
			input: Order{Ship: Address{City: "a"}},
			paths: []string{"ship.city"},
		},
		"nested pointer": {
			input: Order{Ship: Address{City: "NYC"}, Bill: &Address{City: "b"}},
			paths: []string{"bill.city"},
		},
		"skipped field": {
			input: Order{Ship: Address{City: "NYC"}, Ignored: Address{City: "c"}},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := constraint.Check(tc.input)
			if len(tc.paths) == 0 {
				require.NoError(t, err)
				return
			}
			var ve *dto.ValidationError
			require.ErrorAs(t, err, &ve)
			paths := make([]string, len(ve.Errors))
			for i, fe := range ve.Errors {
				paths[i] = fe.Path
			}
			assert.Equal(t, tc.paths, paths)
		})
	}
}

func TestKind_Detect(t *testing.T) {
	t.Parallel()

	k := constraint.Kind{}
	assert.Equal(t, "constraint", k.Name())
	assert.True(t, k.Detect(reflect.TypeFor[Signup]()))
	assert.True(t, k.Detect(reflect.TypeFor[Range]()))
	assert.False(t, k.Detect(reflect.TypeFor[Plain]()))
	assert.False(t, k.Detect(reflect.TypeFor[string]()))
}

func newBackend[T any](t *testing.T, cfg ...dto.Config) *dto.Backend {
	t.Helper()
	p := dto.BackendParams{
		ModelType:   reflect.TypeFor[T](),
		IsDataField: true,
	}
	if len(cfg) > 0 {
		p.Config = cfg[0]
	}
	reg := dto.NewRegistry(dto.WithModelKinds(constraint.Kind{}, dto.StructKind{}))
	b, err := dto.NewBackend(reg, p)
	require.NoError(t, err)
	return b
}

func TestKind_Build(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raw      string
		paths    []string
		messages []string
	}{
		"valid": {
			raw: `{"user_name":"ann","plan":"pro","age":20,"score":0,"seats":2,"tags":["go"],"nickname":null}`,
		},
		"violations use wire names": {
			raw:      `{"user_name":"Ann","plan":"gold","age":20,"score":0,"seats":2,"tags":["go"],"nickname":null}`,
			paths:    []string{"user_name", "plan"},
			messages: []string{"must match pattern ^[a-z]+$", "must be one of [free,pro]"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			b := newBackend[Signup](t)
			got, err := b.ParseRaw([]byte(tc.raw), dto.ConnectionContext{})
			if len(tc.paths) == 0 {
				require.NoError(t, err)
				assert.IsType(t, Signup{}, got)
				return
			}

			var ve *dto.ValidationError
			require.ErrorAs(t, err, &ve)
			paths := make([]string, len(ve.Errors))
			messages := make([]string, len(ve.Errors))
			for i, fe := range ve.Errors {
				paths[i] = fe.Path
				messages[i] = fe.Message
			}
			assert.Equal(t, tc.paths, paths)
			assert.Equal(t, tc.messages, messages)
		})
	}
}

func TestKind_Build_partial(t *testing.T) {
	t.Parallel()

	b := newBackend[Signup](t, dto.Config{Partial: true})

	got, err := b.ParseRaw([]byte(`{"plan":"pro"}`), dto.ConnectionContext{})
	require.NoError(t, err, "absent fields are not checked")
	assert.Equal(t, Signup{Plan: "pro"}, got)

	_, err = b.ParseRaw([]byte(`{"age":7}`), dto.ConnectionContext{})
	var ve *dto.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "age", ve.Errors[0].Path)
}

func TestKind_Build_selfValidator(t *testing.T) {
	t.Parallel()

	b := newBackend[Range](t)

	got, err := b.ParseRaw([]byte(`{"from":1,"to":2}`), dto.ConnectionContext{})
	require.NoError(t, err)
	assert.Equal(t, Range{From: 1, To: 2}, got)

	_, err = b.ParseRaw([]byte(`{"from":3,"to":2}`), dto.ConnectionContext{})
	var ve *dto.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "from", ve.Errors[0].Path)
	assert.Equal(t, "must not exceed to", ve.Errors[0].Message)
}

type opaque struct{}

func (*opaque) Validate() error { return errors.New("rejected") }

type Opaque struct {
	opaque
	Name string `json:"name"`
}

func TestKind_Build_plainError(t *testing.T) {
	t.Parallel()

	b := newBackend[Opaque](t)
	_, err := b.ParseRaw([]byte(`{"name":"x"}`), dto.ConnectionContext{})

	var ve *dto.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 1)
	assert.Empty(t, ve.Errors[0].Path)
	assert.Equal(t, "rejected", ve.Errors[0].Message)
}
