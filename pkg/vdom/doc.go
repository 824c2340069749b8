// Package vdom provides the virtual DOM used by ssrdata pages.
//
// # Core Types
//
// VNode is the fundamental building block representing elements, text,
// fragments, components, and raw HTML. Props holds attributes and event
// handlers. Attr and EventHandler are used to build Props.
//
// # Element API
//
// Elements are created using variadic factory functions:
//
//	Div(Class("card"), ID("main"),
//	    H1(Text("Title")),
//	    P(Text("Content")),
//	    OnClick(handler),
//	)
//
// # Scopes
//
// A Scope carries values bound by a Provider component to every component
// below it. Expand is the single place where a component is turned into its
// output, so the HTML renderer and the data drain walk identical trees:
//
//	out, scope := vdom.Expand(node.Comp, scope)
//
// # Hydration
//
// The renderer assigns hydration IDs to interactive elements (those with
// event handlers). These IDs link server VNodes to client DOM.
package vdom
