package veldt

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veldt-dev/veldt/pkg/session"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the main application configuration.
type Config struct {
	// Template is the path to the base HTML document that every render
	// rewrites. Default: "index.html".
	Template string

	// Static configures static asset serving.
	Static StaticConfig

	// Session configures cookie-addressed server-held sessions.
	Session SessionConfig

	// Metrics configures Prometheus instrumentation of the render
	// pipeline.
	Metrics MetricsConfig

	// Init is the one-time heavy-engine initialization hook. It runs
	// at most once per process, before the first render; concurrent
	// first requests all wait on the same invocation.
	Init func(ctx context.Context) error

	// DevMode enables development behavior: live-reload registrations
	// in rewritten documents and error details in 500 bodies.
	DevMode bool

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// StaticConfig configures static asset serving.
type StaticConfig struct {
	// Dir is the directory containing static assets (e.g. "public").
	// Empty disables static serving.
	Dir string

	// Prefix is the URL path prefix for static assets. Default: "/".
	Prefix string

	// CacheControl selects the cache header policy for assets.
	CacheControl CacheControlMode

	// Headers are extra headers stamped on every asset response.
	Headers map[string]string
}

// CacheControlMode selects the cache policy for static assets.
type CacheControlMode int

const (
	// CacheControlNone disables asset caching. Useful in development.
	CacheControlNone CacheControlMode = iota

	// CacheControlProduction caches fingerprinted assets immutably for
	// a year and everything else briefly with revalidation.
	CacheControlProduction
)

// SessionConfig configures the session subsystem.
type SessionConfig struct {
	// MaxAge is the rolling session lifetime.
	// Default: session.DefaultMaxAge (30 minutes).
	MaxAge time.Duration

	// Cookie holds the session cookie attributes.
	Cookie session.CookieOptions

	// Store is the persistence backend. If nil a process-local
	// in-memory store is used.
	Store session.Store
}

// MetricsConfig configures Prometheus instrumentation.
type MetricsConfig struct {
	// Registry receives the render metrics.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Disabled turns instrumentation off entirely.
	Disabled bool
}

// sessionOptions converts the app-level config into session.Options.
func (c SessionConfig) sessionOptions() session.Options {
	return session.Options{
		MaxAge: c.MaxAge,
		Cookie: c.Cookie,
		Store:  c.Store,
	}
}
