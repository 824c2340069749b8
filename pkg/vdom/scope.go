package vdom

// Scope carries values from a component down to its descendants during a
// tree walk. Scopes are immutable: With returns a child scope and never
// modifies the receiver, so siblings cannot observe each other's values.
// A nil *Scope is valid and empty.
type Scope struct {
	parent *Scope
	key    any
	value  any
}

// With returns a child scope that maps key to value.
func (s *Scope) With(key, value any) *Scope {
	return &Scope{parent: s, key: key, value: value}
}

// Value returns the innermost value bound to key, or nil.
func (s *Scope) Value(key any) any {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.key == key {
			return cur.value
		}
	}
	return nil
}

// Provider is a component that binds values for its subtree.
type Provider interface {
	Component
	Provide(*Scope) *Scope
}

// ScopedComponent is a component that reads values bound by an ancestor
// Provider. RenderScoped is used instead of Render whenever the caller walks
// the tree with a scope.
type ScopedComponent interface {
	Component
	RenderScoped(*Scope) *VNode
}

// Expand renders c within s and returns its output together with the scope
// its children must be walked with.
func Expand(c Component, s *Scope) (*VNode, *Scope) {
	if c == nil {
		return nil, s
	}
	if p, ok := c.(Provider); ok {
		s = p.Provide(s)
	}
	if sc, ok := c.(ScopedComponent); ok {
		return sc.RenderScoped(s), s
	}
	return c.Render(), s
}
