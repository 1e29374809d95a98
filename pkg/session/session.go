package session

import (
	"context"
	"maps"
	"net/http"
	"time"
)

// DefaultMaxAge is the rolling session lifetime applied when Options
// leaves MaxAge unset.
const DefaultMaxAge = 1800 * time.Second

// Options configures a Session. The zero value is usable with defaults
// filled in by New.
type Options struct {
	// MaxAge is the rolling lifetime. Every Update pushes the stored
	// expiry to now+MaxAge. Default: DefaultMaxAge.
	MaxAge time.Duration

	// Cookie holds the attributes of the issued session cookie. The
	// cookie value is always the session id.
	Cookie CookieOptions

	// Store is the persistence backend. Default: a process-local
	// MemoryStore shared by sessions created without one.
	Store Store
}

// CookieOptions are the attributes stamped onto the Set-Cookie header.
type CookieOptions struct {
	Name     string // default "sid"
	Path     string // default "/"
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// defaultStore backs sessions whose Options carry no explicit Store.
var defaultStore = NewMemoryStore()

// Session wraps one session id with a cached payload. The cache mirrors
// the last read or write; persistence is delegated to the Store.
//
// A Session is not safe for concurrent use; it is request-scoped state.
type Session struct {
	id     string
	opts   Options
	cache  Payload
	inited bool
}

// New creates a session around an externally assigned id, typically the
// value of the session cookie.
func New(id string, opts Options) *Session {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Cookie.Name == "" {
		opts.Cookie.Name = "sid"
	}
	if opts.Cookie.Path == "" {
		opts.Cookie.Path = "/"
	}
	if opts.Store == nil {
		opts.Store = defaultStore
	}
	return &Session{id: id, opts: opts}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Payload returns the cached payload. It is nil before Init on a fresh
// session and after End.
func (s *Session) Payload() Payload { return s.cache }

// Init populates the cache from storage. It is idempotent; only the
// first call hits the backend.
func (s *Session) Init(ctx context.Context) error {
	if s.inited {
		return nil
	}
	payload, ok, err := s.opts.Store.Get(ctx, s.id)
	if err != nil {
		return err
	}
	if ok {
		s.cache = payload
	}
	s.inited = true
	return nil
}

// Update computes the next payload and persists it with a refreshed
// expiry of now+MaxAge. next is either a Payload (or map[string]any)
// used literally, or a func(Payload) Payload applied to the current
// cached payload. Any other argument fails with *ValidationError before
// any I/O.
func (s *Session) Update(ctx context.Context, next any) error {
	var computed Payload
	switch v := next.(type) {
	case Payload:
		computed = v
	case map[string]any:
		computed = Payload(v)
	case func(Payload) Payload:
		computed = v(maps.Clone(s.cache))
	default:
		return &ValidationError{Got: next}
	}

	if err := s.opts.Store.Set(ctx, s.id, computed, time.Now().Add(s.opts.MaxAge)); err != nil {
		return err
	}
	s.cache = computed
	return nil
}

// End removes the persisted record if the cached payload is empty, then
// clears the cache. Ending a session that was never populated (or was
// already cleared) is the only deletion trigger besides expiry.
func (s *Session) End(ctx context.Context) error {
	if len(s.cache) == 0 {
		if err := s.opts.Store.Delete(ctx, s.id); err != nil {
			return err
		}
	}
	s.cache = nil
	return nil
}

// Redirect writes a 302 response carrying the session cookie. The cookie
// expires at now+MaxAge when the cached payload is non-empty; an empty
// cache instructs the client to discard the cookie by expiring it at the
// epoch.
func (s *Session) Redirect(w http.ResponseWriter, target string) {
	expires := time.Unix(0, 0)
	if len(s.cache) > 0 {
		expires = time.Now().Add(s.opts.MaxAge)
	}
	http.SetCookie(w, s.cookie(expires))
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusFound)
}

func (s *Session) cookie(expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     s.opts.Cookie.Name,
		Value:    s.id,
		Path:     s.opts.Cookie.Path,
		Domain:   s.opts.Cookie.Domain,
		Secure:   s.opts.Cookie.Secure,
		HttpOnly: s.opts.Cookie.HTTPOnly,
		SameSite: s.opts.Cookie.SameSite,
		Expires:  expires,
	}
	return c
}
