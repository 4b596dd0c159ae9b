// Package pgxrow provides a model kind for row structs scanned by pgx.
//
// Row structs name their fields with db tags, as pgx.RowToStructByName
// expects, so the column name is also the DTO field name:
//
//	type UserRow struct {
//		ID        int64     `db:"user_id" dto:"read-only"`
//		Name      string    `db:"display_name"`
//		CreatedAt time.Time `db:"created_at"`
//	}
package pgxrow

import (
	"reflect"

	"github.com/jackc/pgx/v5"

	"github.com/bjaus/dtoapi/dto"
)

var rowKind = dto.StructKind{NameTag: "db"}

// Kind is the model kind for pgx row structs. It detects structs with at
// least one db-tagged field, so it can be listed ahead of a plain
// dto.StructKind.
type Kind struct{}

func (Kind) Name() string { return "pgxrow" }

func (Kind) Detect(t reflect.Type) bool {
	if !rowKind.Detect(t) {
		return false
	}
	for i := range t.NumField() {
		sf := t.Field(i)
		if _, ok := sf.Tag.Lookup("db"); ok && sf.IsExported() {
			return true
		}
	}
	return false
}

func (Kind) FieldDefinitions(t reflect.Type) ([]*dto.DTOFieldDefinition, error) {
	return rowKind.FieldDefinitions(t)
}

func (Kind) Get(model reflect.Value, f *dto.DTOFieldDefinition) reflect.Value {
	return rowKind.Get(model, f)
}

func (Kind) Build(t reflect.Type, values map[string]reflect.Value) (reflect.Value, error) {
	return rowKind.Build(t, values)
}

// Collect scans every row into a T and closes rows.
func Collect[T any](rows pgx.Rows) ([]T, error) {
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

// CollectOne scans exactly one row into a T. It returns pgx.ErrNoRows when
// rows is empty.
func CollectOne[T any](rows pgx.Rows) (T, error) {
	return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
}

// Encode collects rows and encodes them through b, whose payload must be a
// collection of T.
func Encode[T any](b *dto.Backend, rows pgx.Rows) (any, error) {
	items, err := Collect[T](rows)
	if err != nil {
		return nil, err
	}
	return b.EncodeData(items)
}
