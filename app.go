package veldt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/veldt-dev/veldt/internal/metrics"
	"github.com/veldt-dev/veldt/pkg/rewrite"
	"github.com/veldt-dev/veldt/pkg/routing"
	"github.com/veldt-dev/veldt/pkg/session"
)

// RenderFunc is the externally supplied SSR callback. It receives the
// per-request render context and returns the markup plus any head
// fragments it recorded, or nil to decline (the app then falls back to
// serving the base document without SSR substitutions).
type RenderFunc func(rc *routing.RenderContext) (*rewrite.SSROutput, error)

// =============================================================================
// App Type
// =============================================================================

// App is the server-side rendering core: it resolves requests against
// the route table, drives the external SSR callback and the document
// rewriter, and assembles the final HTTP response.
//
//	app := veldt.New(veldt.Config{Template: "index.html"})
//	app.Route("/posts/:id", "routes/post.js", loadPostModule)
//	app.Render(renderFn)
//	http.ListenAndServe(":8080", app)
type App struct {
	routes   []*routing.Route
	renderFn RenderFunc

	// Memoized one-time engine initialization. sync.Once gates all
	// callers: concurrent first requests wait for the single run and
	// share its result.
	initOnce sync.Once
	initErr  error

	staticFS http.FileSystem

	config  Config
	logger  *slog.Logger
	metrics *metrics.Render
	tracer  trace.Tracer
}

// New creates an App with the given configuration.
func New(cfg Config) *App {
	if cfg.Template == "" {
		cfg.Template = "index.html"
	}
	if cfg.Static.Prefix == "" {
		cfg.Static.Prefix = "/"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("veldt"),
	}
	if !cfg.Metrics.Disabled {
		app.metrics = metrics.NewRender(cfg.Metrics.Registry)
	}
	if cfg.Static.Dir != "" {
		app.staticFS = http.Dir(cfg.Static.Dir)
	}
	return app
}

// =============================================================================
// Route Registration
// =============================================================================

// Route registers a route. Routes match in registration order; the
// first structural match wins.
func (a *App) Route(pattern, file string, load func(ctx context.Context) (*routing.Module, error)) {
	a.routes = append(a.routes, &routing.Route{
		Pattern:    routing.MustCompilePattern(pattern),
		Load:       load,
		File:       file,
		RawPattern: pattern,
	})
}

// Add appends a pre-built route to the table.
func (a *App) Add(route *routing.Route) {
	a.routes = append(a.routes, route)
}

// Render sets the external SSR callback. Without one, every request
// takes the static-fallback path.
func (a *App) Render(fn RenderFunc) {
	a.renderFn = fn
}

// Routes returns the registered route table.
func (a *App) Routes() []*routing.Route {
	return a.routes
}

// =============================================================================
// http.Handler Implementation
// =============================================================================

// ServeHTTP implements http.Handler. Static assets are served first;
// everything else goes through the render pipeline behind a single
// error boundary.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.staticFS != nil && a.hasAsset(r.URL.Path) {
		a.serveAsset(w, r)
		return
	}

	start := time.Now()
	ctx, span := a.tracer.Start(r.Context(), "veldt.render",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
	defer span.End()

	outcome, err := a.renderRequest(ctx, w, r.WithContext(ctx))
	if err != nil {
		outcome = metrics.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.renderError(w, err)
	}
	span.SetAttributes(attribute.String("veldt.outcome", outcome))
	a.metrics.Observe(outcome, time.Since(start))
}

// renderRequest runs the pipeline for one request and reports the
// outcome label. Every failure propagates here as an error; nothing
// below writes a 500 itself.
func (a *App) renderRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (outcome string, err error) {
	// Handler and loader faults surface as errors at this single
	// boundary, including panics out of user-supplied callbacks.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in render pipeline: %v", rec)
		}
	}()

	if err := a.ensureInit(ctx); err != nil {
		return "", fmt.Errorf("engine init: %w", err)
	}

	rc, resp, err := routing.Match(ctx, r, a.routes)
	if err != nil {
		return "", err
	}
	if resp != nil {
		// Deliberate loader response (redirects and the like):
		// propagated verbatim, never treated as an error.
		if err := resp.Write(w); err != nil {
			return "", err
		}
		return metrics.OutcomeLoader, nil
	}

	if a.renderFn != nil && rc.Module != nil {
		out, err := a.renderFn(rc)
		if err != nil {
			return "", err
		}
		if out != nil && out.Markup != "" {
			return metrics.OutcomeSSR, a.writeSSR(w, rc, out)
		}
	}

	return a.writeStatic(w, r)
}

// writeSSR rewrites the base document with SSR output and caching
// headers derived from the loader's TTL.
func (a *App) writeSSR(w http.ResponseWriter, rc *routing.RenderContext, out *rewrite.SSROutput) error {
	doc, err := os.ReadFile(a.config.Template)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	body, err := rewrite.New(a.rewriteInput(rc, out)).RewriteBytes(doc)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if rc.CacheTTL > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", rc.CacheTTL))
	} else {
		w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")
	}
	_, err = w.Write(body)
	return err
}

// writeStatic serves the base document without SSR substitutions,
// honoring conditional GETs against its modification time.
func (a *App) writeStatic(w http.ResponseWriter, r *http.Request) (string, error) {
	info, err := os.Stat(a.config.Template)
	if err != nil {
		return "", fmt.Errorf("stat template: %w", err)
	}
	modTime := info.ModTime().Truncate(time.Second)

	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !modTime.After(t) {
			w.WriteHeader(http.StatusNotModified)
			return metrics.OutcomeNotModified, nil
		}
	}

	doc, err := os.ReadFile(a.config.Template)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}

	body, err := rewrite.New(a.rewriteInput(nil, nil)).RewriteBytes(doc)
	if err != nil {
		return "", err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")
	w.Header().Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
	_, err = w.Write(body)
	return metrics.OutcomeStatic, err
}

// rewriteInput assembles the rewriter input for one render. rc and out
// are nil on the static-fallback path.
func (a *App) rewriteInput(rc *routing.RenderContext, out *rewrite.SSROutput) *rewrite.Input {
	in := &rewrite.Input{
		SSR:    out,
		Routes: routing.ClientRoutes(a.routes),
		Dev:    a.config.DevMode,
	}
	if rc != nil {
		in.Data = rc.Data
		in.CacheTTL = rc.CacheTTL
		in.File = rc.File
	}
	return in
}

// ensureInit runs the configured engine initialization exactly once.
func (a *App) ensureInit(ctx context.Context) error {
	a.initOnce.Do(func() {
		if a.config.Init != nil {
			a.initErr = a.config.Init(ctx)
		}
	})
	return a.initErr
}

// renderError is the outermost error boundary: full detail to the log,
// a generic 500 to the caller. Development mode exposes the first line
// of the error message.
func (a *App) renderError(w http.ResponseWriter, err error) {
	a.logger.Error("render failed", "error", err)

	body := "Internal Server Error"
	if a.config.DevMode {
		if line, _, found := strings.Cut(err.Error(), "\n"); found || line != "" {
			body = line
		}
	}
	http.Error(w, body, http.StatusInternalServerError)
}

// =============================================================================
// Sessions
// =============================================================================

// Session returns the request's session, keyed by the configured
// cookie. A request without the cookie gets a fresh random id; the
// session is persisted only once Update runs.
func (a *App) Session(r *http.Request) *session.Session {
	opts := a.config.Session.sessionOptions()

	name := opts.Cookie.Name
	if name == "" {
		name = "sid"
	}
	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		return session.New(c.Value, opts)
	}
	return session.New(newSessionID(), opts)
}

var errShortRead = errors.New("veldt: short read from entropy source")

// newSessionID returns a 32-hex-char random id.
func newSessionID() string {
	buf := make([]byte, 16)
	if n, err := rand.Read(buf); err != nil || n != len(buf) {
		// crypto/rand never fails on supported platforms.
		panic(errShortRead)
	}
	return hex.EncodeToString(buf)
}
