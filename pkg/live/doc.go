// Package live mounts wrapped pages over a WebSocket.
//
// The browser sends the route it is on together with the payload the server
// embedded in the page:
//
//	{"page": "/posts/{id}", "payload": {"serverState": {...}, "url": {...}}}
//
// The handler mounts the page from that payload with the cookies of the
// upgrade request, resolves anything the snapshot did not cover and replies
// with the markup:
//
//	{"html": "<article>...</article>", "fetches": 0}
//
// A fetch count of zero means the snapshot was complete. Failures are
// reported in the reply and the connection stays open.
package live
