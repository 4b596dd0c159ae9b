package dtoapi

import (
	"slices"

	"github.com/bjaus/dtoapi/dto"
)

// Group registers routes under a shared path prefix. Groups nest: a child
// inherits its parent's prefix, middleware, tags, documented errors and DTO
// defaults, and adds its own after them.
type Group struct {
	parent Registrar
	own    scope
}

// GroupOption configures a Group.
type GroupOption func(*scope)

// WithGroupTags adds tags to every route in the group.
func WithGroupTags(tags ...string) GroupOption {
	return func(s *scope) {
		s.tags = append(s.tags, tags...)
	}
}

// WithGroupMiddleware wraps every route in the group. It runs after the
// router's middleware and only for requests the group's routes match.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(s *scope) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithGroupErrors documents error statuses on every route in the group.
func WithGroupErrors(codes ...int) GroupOption {
	return func(s *scope) {
		s.errors = append(s.errors, codes...)
	}
}

// WithGroupDTODefaults sets DTO configuration for the group's DTO routes.
// A route's own DTOConfig wins over it, and it wins over enclosing groups
// and the router's WithDTODefaults.
func WithGroupDTODefaults(cfg dto.Config) GroupOption {
	return func(s *scope) {
		s.dto = append(s.dto, cfg)
	}
}

// Group creates a route group with the given prefix and options.
func (r *Router) Group(prefix string, opts ...GroupOption) *Group {
	return newGroup(r, prefix, opts)
}

// Group creates a group nested under g.
func (g *Group) Group(prefix string, opts ...GroupOption) *Group {
	return newGroup(g, prefix, opts)
}

func newGroup(parent Registrar, prefix string, opts []GroupOption) *Group {
	g := &Group{parent: parent, own: scope{prefix: prefix}}
	for _, opt := range opts {
		opt(&g.own)
	}
	return g
}

func (g *Group) getRouter() *Router { return g.parent.getRouter() }

func (g *Group) scope() scope {
	outer := g.parent.scope()
	return scope{
		prefix:     outer.prefix + g.own.prefix,
		middleware: slices.Concat(outer.middleware, g.own.middleware),
		tags:       slices.Concat(outer.tags, g.own.tags),
		errors:     slices.Concat(outer.errors, g.own.errors),
		// Innermost first, so the closest group is merged first.
		dto: slices.Concat(g.own.dto, outer.dto),
	}
}

// scope is what a Registrar contributes to the routes registered on it.
type scope struct {
	prefix     string
	middleware []Middleware
	tags       []string
	errors     []int
	dto        []dto.Config
}
