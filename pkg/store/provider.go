package store

import "github.com/vango-dev/ssrdata/pkg/vdom"

type storeKey struct{}

// WithStore binds st in scope.
func WithStore(scope *vdom.Scope, st *Store) *vdom.Scope {
	return scope.With(storeKey{}, st)
}

// StoreFrom returns the store bound by the nearest Provider, or nil.
func StoreFrom(scope *vdom.Scope) *Store {
	st, _ := scope.Value(storeKey{}).(*Store)
	return st
}

type provider struct {
	store    *Store
	children []any
}

// Provider makes st available to every component below it.
func Provider(st *Store, children ...any) *vdom.VNode {
	return vdom.Comp(&provider{store: st, children: children})
}

func (p *provider) Render() *vdom.VNode { return vdom.Fragment(p.children...) }

func (p *provider) Provide(s *vdom.Scope) *vdom.Scope { return WithStore(s, p.store) }

// Select renders from the store in scope. fn receives the zero State when
// no store is bound.
func Select(fn func(State) *vdom.VNode) *vdom.VNode {
	return vdom.Comp(&selector{fn: fn})
}

type selector struct {
	fn func(State) *vdom.VNode
}

func (c *selector) Render() *vdom.VNode { return c.fn(State{}) }

func (c *selector) RenderScoped(s *vdom.Scope) *vdom.VNode {
	st := StoreFrom(s)
	if st == nil {
		return c.Render()
	}
	return c.fn(st.GetState())
}
