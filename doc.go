// Package ssrdata serves pages whose data is resolved on the server.
//
// A page declares its queries in its component tree with query.Use. Before
// the page is rendered, every query in the tree is fetched (including
// queries that only appear once other data has arrived), the normalized
// results are captured as a snapshot and the snapshot is embedded in the
// page. The browser mounts the same page from that snapshot without
// fetching anything again.
//
//	app, _ := ssrdata.NewApp(cfg)
//	app.Page("/posts", PostsPage{})
//	app.ListenAndServe(ctx)
//
// The building blocks live in pkg/: query (client and normalized cache),
// store (state mirror), drain (tree resolution), ssr (the page wrapper) and
// live (WebSocket mounts).
package ssrdata
