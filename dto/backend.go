package dto

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// BackendParams describes the payload a Backend serves.
type BackendParams struct {
	// Kind is the model kind of ModelType. Nil means the kind ModelType is
	// registered with; unregistered model types are registered on the fly.
	Kind ModelKind

	// IsDataField selects the inbound "data" direction. Otherwise the
	// backend serves the outbound "return" direction.
	IsDataField bool

	// FieldDefinition is the payload annotation: the model itself, a
	// collection of models, an optional model, or a wrapper struct. Nil
	// means the model itself.
	FieldDefinition *FieldDefinition
	ModelType       reflect.Type

	// WrapperAttributeName names the field of a wrapper payload that holds
	// the models. Only the return direction supports wrappers.
	WrapperAttributeName string

	// HandlerID prefixes the transfer model name.
	HandlerID string

	Config Config
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithLogger sets the logger for model synthesis events.
func WithLogger(l *slog.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = l
	}
}

// Backend converts one model type in one direction between model instances
// and transfer instances. Everything is computed by NewBackend; conversions
// only read it and are safe for concurrent use.
type Backend struct {
	registry *Registry
	kind     ModelKind
	dir      ForType
	params   BackendParams
	cfg      Config
	logger   *slog.Logger

	fields        []*TransferFieldDefinition
	transferModel reflect.Type
	info          *NestedFieldInfo
	payload       TransferType
	wrapper       *wrapper

	annotations sync.Map // TransferType -> *FieldDefinition
}

// NewBackend parses p.ModelType for one direction and synthesizes its
// transfer model. Any misconfiguration surfaces here rather than at request time.
func NewBackend(reg *Registry, p BackendParams, opts ...BackendOption) (*Backend, error) {
	if p.ModelType == nil {
		return nil, fmt.Errorf("%w: no model type", ErrUnsupportedModel)
	}

	b := &Backend{
		registry: reg,
		kind:     p.Kind,
		dir:      ForReturn,
		params:   p,
		cfg:      p.Config,
		logger:   slog.New(slog.DiscardHandler),
	}
	if p.IsDataField {
		b.dir = ForData
	}
	for _, opt := range opts {
		opt(b)
	}

	if !reg.IsModel(p.ModelType) {
		if err := reg.Register(p.ModelType); err != nil {
			return nil, err
		}
	}
	if b.kind == nil {
		b.kind, _ = reg.KindFor(p.ModelType)
	}

	fields, err := b.ParseModel(nil, b.cfg.Exclude, b.cfg.Include)
	if err != nil {
		return nil, err
	}
	b.fields = fields

	name := identifier(p.HandlerID) + identifier(p.ModelType.Name()) + bodySuffix(b.dir)
	if b.transferModel, err = b.CreateTransferModelType(name, fields); err != nil {
		return nil, err
	}
	b.info = &NestedFieldInfo{
		Model:            b.transferModel,
		Name:             name,
		ModelType:        p.ModelType,
		Kind:             b.kind,
		FieldDefinitions: fields,
	}

	if err := b.buildPayload(); err != nil {
		return nil, err
	}
	return b, nil
}

func bodySuffix(dir ForType) string {
	if dir == ForData {
		return "RequestBody"
	}
	return "ResponseBody"
}

// buildPayload classifies the payload annotation, with occurrences of the
// backend's model resolving to its own transfer model.
func (b *Backend) buildPayload() error {
	fd := b.params.FieldDefinition
	if fd == nil {
		fd = FromType(b.params.ModelType)
	}

	var w reflect.Type
	var attr reflect.StructField
	if name := b.params.WrapperAttributeName; name != "" {
		if b.dir == ForData {
			return fmt.Errorf("%w: wrappers are only supported for return data", ErrInvalidWrapper)
		}
		var err error
		if w, attr, err = wrapperAttribute(fd.Type(), name); err != nil {
			return err
		}
		fd = FromType(attr.Type)
	}

	payload, err := classify(fd, func(leaf *FieldDefinition) (*NestedFieldInfo, error) {
		if leaf.typ == b.params.ModelType {
			return b.info, nil
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	b.payload = payload
	if _, err := b.transferAnnotation(payload); err != nil {
		return err
	}

	if w != nil {
		b.wrapper, err = b.newWrapper(w, attr)
	}
	return err
}

// ParseModel returns the transfer field definitions of modelType for the
// backend's direction, filtered by exclude and include. A nil modelType
// means the backend's own model.
func (b *Backend) ParseModel(modelType reflect.Type, exclude, include []string) ([]*TransferFieldDefinition, error) {
	kind := b.kind
	if modelType == nil {
		modelType = b.params.ModelType
	} else if modelType != b.params.ModelType {
		var ok bool
		if kind, ok = b.registry.KindFor(modelType); !ok {
			return nil, fmt.Errorf("%w: %s is not registered", ErrUnsupportedModel, modelType)
		}
	}
	return b.parseModel(modelType, kind, filter{exclude: exclude, include: include}, "", 0)
}

func (b *Backend) parseModel(t reflect.Type, kind ModelKind, f filter, path string, depth int) ([]*TransferFieldDefinition, error) {
	if kind == nil {
		return nil, fmt.Errorf("%w: %s has no model kind", ErrUnsupportedModel, t)
	}
	defs, err := kind.FieldDefinitions(t)
	if err != nil {
		return nil, err
	}

	out := make([]*TransferFieldDefinition, 0, len(defs))
	wire := make(map[string]string, len(defs))
	slot := 0
	for _, d := range defs {
		if ShouldMarkPrivate(d, b.cfg.underscoreFieldsPrivate()) {
			d = d.withMark(MarkPrivate)
		}
		if d.DTOFor != ForBoth && d.DTOFor != b.dir {
			continue
		}
		if f.excludes(d.Name()) {
			continue
		}

		fieldPath := joinPath(path, d.Name())
		tt, err := b.createTransferType(d.FieldDefinition, f.nested(d.Name()), fieldPath, depth)
		if errors.Is(err, errNestedDepthExceeded) {
			b.logger.Debug("dto field dropped at max nested depth",
				"model", t.String(), "field", fieldPath, "depth", depth)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.UniqueName(), err)
		}

		tf := &TransferFieldDefinition{
			DTOFieldDefinition: d,
			SerializationName:  b.cfg.serializationName(fieldPath, d.Name()),
			TransferType:       tt,
			IsExcluded:         excludedFor(d.DTOField.Mark, b.dir),
			IsPartial:          b.cfg.Partial && b.dir == ForData,
			slot:               -1,
		}
		if !tf.IsExcluded {
			if prev, ok := wire[tf.SerializationName]; ok {
				return nil, fmt.Errorf("%w: %s: fields %s and %s both serialize as %q",
					ErrUnsupportedModel, t, prev, d.Name(), tf.SerializationName)
			}
			wire[tf.SerializationName] = d.Name()
			tf.slot = slot
			slot++
		}
		out = append(out, tf)
	}
	return out, nil
}

// Direction returns the direction the backend serves.
func (b *Backend) Direction() ForType { return b.dir }

// ModelType returns the model type the backend serves.
func (b *Backend) ModelType() reflect.Type { return b.params.ModelType }

// FieldDefinitions returns the parsed fields of the backend's model.
func (b *Backend) FieldDefinitions() []*TransferFieldDefinition { return b.fields }

// TransferModelType returns the synthesized transfer model.
func (b *Backend) TransferModelType() reflect.Type { return b.transferModel }

// TransferModelName returns the unique name of the transfer model.
func (b *Backend) TransferModelName() string { return b.info.Name }

// Payload returns the transfer type of the payload annotation.
func (b *Backend) Payload() TransferType { return b.payload }

// Annotation returns the wire annotation of the payload: the transfer model,
// or a collection or optional of it, or the synthesized wrapper.
func (b *Backend) Annotation() *FieldDefinition {
	if b.wrapper != nil {
		return FromType(b.wrapper.transfer)
	}
	fd, _ := b.transferAnnotation(b.payload)
	return fd
}

// identifier turns s into an exported Go identifier.
func identifier(s string) string {
	var sb strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
