package dto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bjaus/dtoapi/dto"
)

func TestShouldMarkPrivate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name                    string
		mark                    dto.Mark
		underscoreFieldsPrivate bool
		expect                  bool
	}{
		"underscore private": {
			name: "_secret", underscoreFieldsPrivate: true, expect: true,
		},
		"underscore with flag off": {
			name: "_secret", underscoreFieldsPrivate: false, expect: false,
		},
		"explicit mark wins": {
			name: "_secret", mark: dto.MarkReadOnly, underscoreFieldsPrivate: true, expect: false,
		},
		"explicit mark with flag off": {
			name: "_secret", mark: dto.MarkWriteOnly, underscoreFieldsPrivate: false, expect: false,
		},
		"plain name": {
			name: "secret", underscoreFieldsPrivate: true, expect: false,
		},
		"explicit private is not inferred": {
			name: "_secret", mark: dto.MarkPrivate, underscoreFieldsPrivate: true, expect: false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := &dto.DTOFieldDefinition{
				FieldDefinition: dto.Of[string]().WithName(tc.name),
				ModelName:       "Model",
				DTOField:        dto.DTOField{Mark: tc.mark},
			}
			assert.Equal(t, tc.expect, dto.ShouldMarkPrivate(f, tc.underscoreFieldsPrivate))
		})
	}
}

func TestDTOFieldDefinition_UniqueName(t *testing.T) {
	t.Parallel()

	f := &dto.DTOFieldDefinition{
		FieldDefinition: dto.Of[int]().WithName("id"),
		ModelName:       "dto_test.Book",
	}
	assert.Equal(t, "dto_test.Book.id", f.UniqueName())
}
