// Package query is the data layer rendered pages fetch through.
//
// A Client executes GraphQL requests over a Transport and stores the
// results in a normalized cache: objects carrying __typename and id are
// stored once under "Type:id" and referenced from everywhere else, root
// results live in the ROOT_QUERY record under Request.Key. The cache is the
// Snapshot that ssr embeds into the page and mounts from on the client.
//
// Components declare dependencies with Use inside a Provider:
//
//	query.Provider(client,
//	    query.Use(postsRequest, func(r query.Result) *vdom.VNode {
//	        if r.Loading {
//	            return vdom.P("loading")
//	        }
//	        return renderPosts(r.Data)
//	    }),
//	)
//
// Clients are per render. Build them through a Factory; PooledFactory
// shares only the transport between renders.
package query
