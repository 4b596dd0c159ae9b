package dto

import (
	"errors"
	"fmt"
	"reflect"
)

// errNestedDepthExceeded drops a field whose nested model lies beyond the
// configured depth.
var errNestedDepthExceeded = errors.New("nested depth exceeded")

// leafFunc resolves the nested model info of a simple annotation, or nil
// when the annotation is not a model.
type leafFunc func(fd *FieldDefinition) (*NestedFieldInfo, error)

// classify builds the transfer type tree of fd.
func classify(fd *FieldDefinition, leaf leafFunc) (TransferType, error) {
	//exhaustive:ignore
	switch fd.kind {
	case KindUnion:
		inner, err := classifyAll(fd.inner, leaf)
		if err != nil {
			return nil, err
		}
		return &UnionType{Field: fd, InnerTypes: inner}, nil

	case KindTuple:
		if fd.variadic {
			inner, err := classify(fd.inner[0], leaf)
			if err != nil {
				return nil, err
			}
			return &CollectionType{Field: fd, InnerType: inner}, nil
		}
		inner, err := classifyAll(fd.inner, leaf)
		if err != nil {
			return nil, err
		}
		return &TupleType{Field: fd, InnerTypes: inner}, nil

	case KindMapping:
		key, err := classify(fd.inner[0], leaf)
		if err != nil {
			return nil, err
		}
		value, err := classify(fd.inner[1], leaf)
		if err != nil {
			return nil, err
		}
		return &MappingType{Field: fd, KeyType: key, ValueType: value}, nil

	case KindCollection:
		inner, err := classify(fd.inner[0], leaf)
		if err != nil {
			return nil, err
		}
		return &CollectionType{Field: fd, InnerType: inner}, nil

	default:
		info, err := leaf(fd)
		if err != nil {
			return nil, err
		}
		return &SimpleType{Field: fd, NestedFieldInfo: info}, nil
	}
}

func classifyAll(defs []*FieldDefinition, leaf leafFunc) ([]TransferType, error) {
	out := make([]TransferType, len(defs))
	for i, d := range defs {
		tt, err := classify(d, leaf)
		if err != nil {
			return nil, err
		}
		out[i] = tt
	}
	return out, nil
}

// createTransferType classifies the annotation of the model field at path,
// found at depth, with f the include/exclude set that applies inside it.
func (b *Backend) createTransferType(fd *FieldDefinition, f filter, path string, depth int) (TransferType, error) {
	return classify(fd, func(leaf *FieldDefinition) (*NestedFieldInfo, error) {
		return b.nestedFieldInfo(leaf.typ, f, path, depth)
	})
}

func (b *Backend) nestedFieldInfo(t reflect.Type, f filter, path string, depth int) (*NestedFieldInfo, error) {
	kind, ok := b.registry.KindFor(t)
	if !ok {
		return nil, nil
	}
	if depth >= b.cfg.maxNestedDepth() {
		return nil, errNestedDepthExceeded
	}

	key := nestedKey{
		model:  t,
		dir:    b.dir,
		filter: f.key() + "|" + b.cfg.renamesUnder(path),
		depth:  depth + 1,
		config: b.cfg.fingerprint(),
	}
	if info, ok := b.registry.loadNested(key); ok {
		return info, nil
	}

	fields, err := b.parseModel(t, kind, f, path, depth+1)
	if err != nil {
		return nil, err
	}

	name := b.registry.reserveName(identifier(t.Name())+directionSuffix(b.dir), key)
	model, err := b.CreateTransferModelType(name, fields)
	if err != nil {
		return nil, fmt.Errorf("nested model %s at %s: %w", t, path, err)
	}

	return b.registry.storeNested(key, &NestedFieldInfo{
		Model:            model,
		Name:             name,
		ModelType:        t,
		Kind:             kind,
		FieldDefinitions: fields,
	}), nil
}

func directionSuffix(dir ForType) string {
	if dir == ForData {
		return "Data"
	}
	return "Return"
}
