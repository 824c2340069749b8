// Package render provides server-side rendering (SSR) of vdom trees.
//
// The render package converts VNode trees into HTML strings or streams:
//
//   - Text and attribute escaping
//   - Void and boolean attribute handling
//   - Hydration IDs for elements with event handlers
//   - Full page rendering with an embedded JSON state payload
//
// # Basic Usage
//
//	renderer := render.NewRenderer(render.RendererConfig{})
//	html, err := renderer.RenderToString(node)
//
// Component nodes are expanded with vdom.Expand, so values bound by a
// provider (for example the query client) are visible to every descendant.
//
// # Full Page Rendering
//
//	err := renderer.RenderPage(w, render.PageData{
//	    Body:  bodyNode,
//	    Title: "My Page",
//	    State: props,
//	})
//
// State is written as <script id="__SSR_DATA__" type="application/json">.
// EncodeState escapes the payload so it can never close the script element.
//
// # Streaming
//
// For large pages, use StreamingRenderer to flush content incrementally:
//
//	sr := render.NewStreamingRenderer(w, config)
//	err := sr.RenderPage(page)
package render
