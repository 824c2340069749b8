package query

import (
	"context"
	"errors"

	"github.com/vango-dev/ssrdata/pkg/vdom"
)

// ErrNoClient is reported when a query component is rendered or drained
// outside a Provider.
var ErrNoClient = errors.New("query: no client in scope (missing Provider)")

type clientKey struct{}

// WithClient binds client in scope.
func WithClient(scope *vdom.Scope, client *Client) *vdom.Scope {
	return scope.With(clientKey{}, client)
}

// ClientFrom returns the client bound by the nearest Provider, or nil.
func ClientFrom(scope *vdom.Scope) *Client {
	c, _ := scope.Value(clientKey{}).(*Client)
	return c
}

type provider struct {
	client   *Client
	children []any
}

// Provider is the data-provider boundary: every query component below it
// reads from and fetches through client.
func Provider(client *Client, children ...any) *vdom.VNode {
	return vdom.Comp(&provider{client: client, children: children})
}

func (p *provider) Render() *vdom.VNode { return vdom.Fragment(p.children...) }

func (p *provider) Provide(s *vdom.Scope) *vdom.Scope { return WithClient(s, p.client) }

// queryComponent declares a data dependency on req.
type queryComponent struct {
	req    Request
	render func(Result) *vdom.VNode
}

// Use declares that the subtree produced by render depends on req. During
// the server drain the request is fetched before render is called; at
// render time the result is read from the client's cache.
func Use(req Request, render func(Result) *vdom.VNode) *vdom.VNode {
	return vdom.Comp(&queryComponent{req: req, render: render})
}

// Request returns the declared request.
func (q *queryComponent) Request() Request { return q.req }

// Render is used when no scope is available.
func (q *queryComponent) Render() *vdom.VNode {
	return q.render(Result{Err: ErrNoClient})
}

// RenderScoped renders from the cache of the client in scope.
func (q *queryComponent) RenderScoped(s *vdom.Scope) *vdom.VNode {
	c := ClientFrom(s)
	if c == nil {
		return q.Render()
	}
	res, _ := c.Read(q.req)
	return q.render(res)
}

// FetchData resolves the request through the client in scope.
func (q *queryComponent) FetchData(ctx context.Context, s *vdom.Scope) error {
	c := ClientFrom(s)
	if c == nil {
		return ErrNoClient
	}
	_, err := c.Query(ctx, q.req)
	return err
}
