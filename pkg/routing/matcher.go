package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RenderContext is the request-scoped bundle handed to the SSR callback
// and the document rewriter. It is created once per request and never
// persisted.
type RenderContext struct {
	// URL is the original request URL with captured pattern groups
	// merged in as query parameters.
	URL *url.URL

	// Module is the matched route's loaded module. Nil when no route
	// matched; the caller then falls back to serving the base document
	// unmodified.
	Module *Module

	// File is the matched route's source module identifier.
	File string

	// Data is the JSON-encoded payload produced by the route's data
	// loader, or nil when the loader declared none.
	Data json.RawMessage

	// CacheTTL is the loader-declared cache-expiry duration in
	// seconds. Zero means no TTL was declared.
	CacheTTL int
}

// Match resolves a request against the route table.
//
// The request path is normalized, then routes are walked in registration
// order; the first structural match wins and no further pattern is
// tried. The winning route's module is loaded and its data loader runs:
// All first (a returned Response short-circuits everything), then Get.
// A 200 Response from Get contributes its body as the data payload;
// any other Response propagates verbatim. Loader calls run
// sequentially, never concurrently.
//
// When no route matches, Match returns a minimal RenderContext carrying
// only the resolved URL.
func Match(ctx context.Context, r *http.Request, routes []*Route) (*RenderContext, *Response, error) {
	path := NormalizePath(r.URL.Path)

	for _, rt := range routes {
		params, ok := rt.Pattern.Match(r.Host, path)
		if !ok {
			continue
		}
		return resolve(ctx, r, rt, params)
	}

	return &RenderContext{URL: cloneURL(r.URL)}, nil, nil
}

func resolve(ctx context.Context, r *http.Request, rt *Route, params map[string]string) (*RenderContext, *Response, error) {
	resolved := cloneURL(r.URL)
	mergeParams(resolved, params)

	module, err := rt.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("routing: load module for %q: %w", rt.RawPattern, err)
	}

	rc := &RenderContext{
		URL:    resolved,
		Module: module,
		File:   rt.File,
	}

	loader := module.Loader
	if loader == nil {
		return rc, nil, nil
	}
	rc.CacheTTL = loader.CacheTTL

	derived, err := derivedRequest(ctx, r, resolved)
	if err != nil {
		return nil, nil, err
	}

	// The collective pre-fetch is awaited to completion before the
	// per-request fetch begins, so it can short-circuit.
	if loader.All != nil {
		resp, err := loader.All(derived)
		if err != nil {
			return nil, nil, fmt.Errorf("routing: loader All for %q: %w", rt.RawPattern, err)
		}
		if resp != nil {
			return nil, resp, nil
		}
	}

	if loader.Get != nil {
		result, err := loader.Get(derived, &LoaderContext{
			Params: params,
			Values: make(map[string]any),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("routing: loader Get for %q: %w", rt.RawPattern, err)
		}
		switch v := result.(type) {
		case nil:
		case *Response:
			if v.Status != 0 && v.Status != http.StatusOK {
				return nil, v, nil
			}
			// A 200 body is the data payload and must parse as JSON;
			// anything else would be embedded verbatim and break the
			// client's decode.
			if len(v.Body) > 0 {
				if !json.Valid(v.Body) {
					return nil, nil, fmt.Errorf("routing: loader Get for %q: 200 response body is not valid JSON", rt.RawPattern)
				}
				rc.Data = json.RawMessage(v.Body)
			}
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, nil, fmt.Errorf("routing: encode loader data for %q: %w", rt.RawPattern, err)
			}
			rc.Data = data
		}
	}

	return rc, nil, nil
}

// derivedRequest builds the request handed to data loaders from the
// resolved URL.
func derivedRequest(ctx context.Context, r *http.Request, resolved *url.URL) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, resolved.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("routing: derive loader request: %w", err)
	}
	req.Header = r.Header.Clone()
	req.Host = r.Host
	return req, nil
}

// NormalizePath collapses redundant separators and strips the trailing
// slash, keeping "/" for the root.
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}

	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}

	out := b.String()
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

func cloneURL(u *url.URL) *url.URL {
	clone := *u
	return &clone
}

func mergeParams(u *url.URL, params map[string]string) {
	if len(params) == 0 {
		return
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
}
