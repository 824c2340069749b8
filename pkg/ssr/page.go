package ssr

import (
	"context"
	"reflect"

	"github.com/vango-dev/ssrdata/pkg/query"
	"github.com/vango-dev/ssrdata/pkg/vdom"
)

// Page is the component wrapped by WithData.
type Page interface {
	Render(props Props) *vdom.VNode
}

// Initializer is implemented by pages that compute initial props. The
// client is the one the tree will be drained with, so queries made here
// are part of the snapshot.
type Initializer interface {
	InitialProps(ctx context.Context, ec *Context, client *query.Client) (Props, error)
}

// Named is implemented by pages that report their own display name.
type Named interface {
	DisplayName() string
}

// PageFunc adapts a render function to Page.
type PageFunc func(Props) *vdom.VNode

// Render implements Page.
func (f PageFunc) Render(props Props) *vdom.VNode { return f(props) }

func displayName(page any) string {
	if n, ok := page.(Named); ok {
		if name := n.DisplayName(); name != "" {
			return name
		}
	}
	return typeName(page)
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "Unknown"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "Unknown"
	}
	return t.Name()
}
