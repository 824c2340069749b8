// Package ssr resolves a page's data on the server and hydrates it on the
// client.
//
// Wrap a page to get a WithData. On the server, InitialProps builds a
// fresh query client for the request, runs the page's own initializer,
// renders the page inside the data-provider boundary and drains the tree so
// every query in it, however deeply nested, is in the client's cache. The
// cache is returned under the serverState prop:
//
//	{"serverState": {"query": {"data": {...}}}, ...page props}
//
// Mount rebuilds a client and a store from those props. Both start from
// exactly the server snapshot, so the first render paints the same markup
// without any network round trip.
//
// Nothing is shared between initializations except what the injected
// query.Factory chooses to share, typically a transport.
package ssr
