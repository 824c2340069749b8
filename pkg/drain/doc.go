// Package drain resolves every data fetch declared in a component tree
// before the tree is rendered.
//
// Components that load data implement Fetcher. The drain walks the tree
// exactly as the renderer will (through vdom.Expand, so Provider scopes
// apply), fetches what it finds, renders the fetched components and keeps
// going until no fetch is left. A fetch that is only reachable below
// another fetch's result is still resolved.
package drain
