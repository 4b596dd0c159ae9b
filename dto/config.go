package dto

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/imdario/mergo"
)

// RenameStrategy transforms field names into serialization names.
type RenameStrategy string

// Rename strategies. Field names are split on underscores.
const (
	RenameUpper  RenameStrategy = "upper"
	RenameLower  RenameStrategy = "lower"
	RenameCamel  RenameStrategy = "camel"
	RenamePascal RenameStrategy = "pascal"
	RenameKebab  RenameStrategy = "kebab"
)

// Config is the per-backend DTO configuration. The zero value is usable.
type Config struct {
	// Exclude and Include name fields by their model name. Nested fields use
	// dotted paths ("author.email"). Exclude wins over Include; an empty
	// Include admits every field.
	Exclude []string
	Include []string

	// RenameFields maps field names (dotted for nested fields) to
	// serialization names. It takes precedence over RenameStrategy.
	RenameFields   map[string]string
	RenameStrategy RenameStrategy

	// MaxNestedDepth bounds nested model expansion; nested fields found at
	// this depth are dropped. Zero means 1, negative means no nesting.
	MaxNestedDepth int

	// UnderscoreFieldsPrivate marks fields named with a leading underscore
	// private unless they carry an explicit mark. Nil means true.
	UnderscoreFieldsPrivate *bool

	// Partial makes every inbound field optional.
	Partial bool

	// ForbidUnknownFields rejects inbound objects carrying keys the transfer
	// model does not declare.
	ForbidUnknownFields bool
}

// Bool returns a pointer to b, for Config.UnderscoreFieldsPrivate.
func Bool(b bool) *bool { return &b }

// WithDefaults returns c with every zero field filled from defaults.
func (c Config) WithDefaults(defaults Config) (Config, error) {
	out := c
	out.Exclude = slices.Clone(c.Exclude)
	out.Include = slices.Clone(c.Include)
	out.RenameFields = maps.Clone(c.RenameFields)
	if err := mergo.Merge(&out, defaults, mergo.WithTransformers(keepSetFlags{})); err != nil {
		return Config{}, fmt.Errorf("merge dto config: %w", err)
	}
	return out, nil
}

// keepSetFlags stops mergo from merging into a *bool that is already set,
// which would turn an explicit false into the default.
type keepSetFlags struct{}

func (keepSetFlags) Transformer(t reflect.Type) func(dst, src reflect.Value) error {
	if t != reflect.TypeFor[*bool]() {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if dst.IsNil() && dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}

func (c Config) maxNestedDepth() int {
	switch {
	case c.MaxNestedDepth == 0:
		return 1
	case c.MaxNestedDepth < 0:
		return 0
	default:
		return c.MaxNestedDepth
	}
}

func (c Config) underscoreFieldsPrivate() bool {
	return c.UnderscoreFieldsPrivate == nil || *c.UnderscoreFieldsPrivate
}

// fingerprint identifies the parts of c, other than per-field renames, that
// change parsed shapes.
func (c Config) fingerprint() string {
	return fmt.Sprintf("%s|%d|%t|%t|%t",
		c.RenameStrategy, c.maxNestedDepth(),
		c.underscoreFieldsPrivate(), c.Partial, c.ForbidUnknownFields)
}

// renamesUnder lists the RenameFields entries inside the nested field at
// path, relative to it.
func (c Config) renamesUnder(path string) string {
	prefix := path + "."
	var renames []string
	for _, k := range slices.Sorted(maps.Keys(c.RenameFields)) {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			renames = append(renames, rest+"="+c.RenameFields[k])
		}
	}
	return strings.Join(renames, ",")
}

// serializationName resolves the wire name of the field at path.
func (c Config) serializationName(path, name string) string {
	if renamed, ok := c.RenameFields[path]; ok {
		return renamed
	}
	return c.RenameStrategy.Apply(name)
}

// Apply renames name. Unknown and empty strategies leave it untouched.
func (s RenameStrategy) Apply(name string) string {
	//exhaustive:ignore
	switch s {
	case RenameUpper:
		return strings.ToUpper(name)
	case RenameLower:
		return strings.ToLower(name)
	case RenameCamel:
		words := strings.Split(name, "_")
		for i := 1; i < len(words); i++ {
			words[i] = capitalize(words[i])
		}
		return strings.Join(words, "")
	case RenamePascal:
		words := strings.Split(name, "_")
		for i := range words {
			words[i] = capitalize(words[i])
		}
		return strings.Join(words, "")
	case RenameKebab:
		return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	default:
		return name
	}
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if size == 0 {
		return word
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}

// filter is the include/exclude set in effect for one model.
type filter struct {
	exclude []string
	include []string
}

func (f filter) key() string {
	return strings.Join(f.exclude, ",") + "|" + strings.Join(f.include, ",")
}

// excludes reports whether the field name is filtered out.
func (f filter) excludes(name string) bool {
	for _, e := range f.exclude {
		if e == name {
			return true
		}
	}
	if len(f.include) == 0 {
		return false
	}
	for _, in := range f.include {
		if in == name || strings.HasPrefix(in, name+".") {
			return false
		}
	}
	return true
}

// nested returns the filter that applies inside the field name.
func (f filter) nested(name string) filter {
	prefix := name + "."
	var out filter
	for _, e := range f.exclude {
		if rest, ok := strings.CutPrefix(e, prefix); ok {
			out.exclude = append(out.exclude, rest)
		}
	}
	for _, in := range f.include {
		if rest, ok := strings.CutPrefix(in, prefix); ok {
			out.include = append(out.include, rest)
		}
	}
	return out
}
