// Package store holds the per-render application state.
//
// A Store is bound to one query.Client: every client event is dispatched as
// a reserved action, so State.Query.Data always mirrors the client cache.
// That slice is what the server extracts as the page snapshot. Application
// reducers own State.App and never see the query slice.
package store
