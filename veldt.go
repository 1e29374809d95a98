// Package veldt is the server-side rendering and route-resolution core
// of the veldt web framework.
//
// An App matches inbound requests against an ordered route table, runs
// the matched route's data loader, invokes an externally supplied SSR
// callback, and produces the response by rewriting a base HTML
// template with element-level insertion and replacement over a byte
// stream, never a DOM tree.
//
//	app := veldt.New(veldt.Config{
//	    Template: "index.html",
//	    Static:   veldt.StaticConfig{Dir: "public"},
//	})
//	app.Route("/posts/:id", "routes/post.js", loadPostModule)
//	app.Render(ssrCallback)
//	http.ListenAndServe(":8080", app)
package veldt

import (
	"github.com/veldt-dev/veldt/pkg/rewrite"
	"github.com/veldt-dev/veldt/pkg/routing"
	"github.com/veldt-dev/veldt/pkg/session"
)

// Re-exports so simple applications only import the root package.

// RenderContext is the per-request bundle handed to the SSR callback.
type RenderContext = routing.RenderContext

// SSROutput is what the SSR callback returns: markup plus head
// fragments.
type SSROutput = rewrite.SSROutput

// Module is a loaded route module.
type Module = routing.Module

// Loader is the optional data-loader object a route module exports.
type Loader = routing.Loader

// Response is a short-circuit response produced by a data loader.
type Response = routing.Response

// Session is the cookie-addressed server-held session.
type Session = session.Session

// SessionStore is the pluggable session persistence backend.
type SessionStore = session.Store

// NewMemoryStore creates the default in-process session backend.
var NewMemoryStore = session.NewMemoryStore
