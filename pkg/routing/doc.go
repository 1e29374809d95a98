// Package routing resolves inbound requests against an ordered route
// table.
//
// A Route pairs a Pattern (host/pathname matcher with named captures)
// with an asynchronous module loader. Match walks the table in
// registration order: the first route whose pattern matches wins, its
// module is loaded, and its optional data loader runs. The result is
// either a RenderContext for the render pipeline or a Response that
// short-circuits it (for example an auth redirect issued by a loader).
package routing
