package dtoapi

import (
	"reflect"
	"time"

	"github.com/bjaus/dtoapi/dto"
)

// Test-only exports for internal functions.
var (
	HasParamTags = hasParamTags
	HasBodyField = hasBodyField
	TagOptions   = tagOptions
	TagContains  = tagContains
	BodyType     = bodyType
	ModelOf      = modelOf

	JSONFieldName       = jsonFieldName
	GenerateOperationID = generateOperationID
	ComponentPrefix     = componentPrefix
)

// TestSchemaRegistry wraps schemaRegistry for external tests.
type TestSchemaRegistry struct {
	reg  *schemaRegistry
	Defs map[string]JSONSchema
}

// NewSchemaRegistry creates a TestSchemaRegistry for testing.
func NewSchemaRegistry() *TestSchemaRegistry {
	r := newSchemaRegistry()
	return &TestSchemaRegistry{reg: r, Defs: r.defs}
}

// TypeToSchema delegates to the internal registry.
func (t *TestSchemaRegistry) TypeToSchema(typ reflect.Type) JSONSchema {
	return t.reg.typeToSchema(typ)
}

// TransferSchema delegates to the internal registry.
func (t *TestSchemaRegistry) TransferSchema(tt dto.TransferType) JSONSchema {
	return t.reg.transferSchema(tt)
}

// LimiterSet wraps limiterSet for external tests.
type LimiterSet struct{ s *limiterSet }

// NewLimiterSet creates a LimiterSet for testing.
func NewLimiterSet(cfg RateLimitConfig) *LimiterSet {
	return &LimiterSet{s: newLimiterSet(cfg)}
}

// Allow delegates to the internal set.
func (l *LimiterSet) Allow(key string, now time.Time) (float64, bool) {
	return l.s.allow(key, now)
}

// Len reports how many keys hold a limiter.
func (l *LimiterSet) Len() int { return l.s.len() }
