package routing

import (
	"context"
	"net/http"
)

// Route is one immutable entry of the route table. Tables are static for
// the process lifetime and order is significant: the first route whose
// pattern matches a request wins.
type Route struct {
	// Pattern tests a host/pathname pair and yields named captures.
	Pattern *Pattern

	// Load resolves the route module. It is invoked only after the
	// pattern matched, once per matched request.
	Load func(ctx context.Context) (*Module, error)

	// File identifies the route's source module, served to the client
	// for hydration.
	File string

	// RawPattern is the pattern as registered, e.g. "/posts/:id".
	RawPattern string
}

// Module is a loaded route module: its optional data loader and its
// default render export.
type Module struct {
	// Loader is the module's exported data-loader object, if any.
	Loader *Loader

	// Default is the module's default export, the render entry point.
	// It is opaque to the matcher and handed through to the SSR
	// callback.
	Default any
}

// Loader is the data-loader contract a route module may export. All
// fields are optional.
type Loader struct {
	// All is the collective pre-fetch. It runs before Get and may
	// short-circuit the whole pipeline by returning a Response
	// (e.g. an auth redirect).
	All func(r *http.Request) (*Response, error)

	// Get is the per-request fetch. It may return a *Response
	// (200 bodies are parsed as JSON data, anything else propagates
	// verbatim) or any JSON-marshalable value used as the data payload
	// directly.
	Get func(r *http.Request, lc *LoaderContext) (any, error)

	// CacheTTL is the cache-expiry duration in seconds declared by the
	// loader. Zero means no TTL.
	CacheTTL int
}

// LoaderContext is the opaque per-request object handed to Get.
type LoaderContext struct {
	// Params are the pattern's captured groups.
	Params map[string]string

	// Values carries caller-defined request-scoped state.
	Values map[string]any
}

// Response is a short-circuit HTTP response produced by a data loader.
// It is propagated verbatim as the final response; non-200 statuses are
// deliberate, not errors.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse creates a Response with an initialized header map.
func NewResponse(status int) *Response {
	return &Response{Status: status, Header: make(http.Header)}
}

// Write writes the response to w.
func (r *Response) Write(w http.ResponseWriter) error {
	for k, vv := range r.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(r.Body)
	return err
}

// ClientRoute is the reduced, client-safe projection of a route's
// metadata embedded into rendered documents.
type ClientRoute struct {
	Pattern string `json:"pattern"`
	File    string `json:"file"`
}

// ClientRoutes projects a route table for the client.
func ClientRoutes(routes []*Route) []ClientRoute {
	out := make([]ClientRoute, len(routes))
	for i, rt := range routes {
		out[i] = ClientRoute{Pattern: rt.RawPattern, File: rt.File}
	}
	return out
}
