package dyncors

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/jub0bs/dyncors/internal/headers"
)

// A Middleware is a CORS middleware.
// Call its [*Middleware.Wrap] method to apply it to a [http.Handler].
//
// The zero value is ready to use but is a mere "passthrough" middleware,
// i.e. a middleware that simply delegates to the handler(s) it wraps.
// To obtain a proper CORS middleware, you should call [NewMiddleware]
// and pass it a [Config].
//
// For each request, a Middleware
//  1. resolves the configured [Origin] into a [Decision];
//  2. composes the CORS response headers warranted by that decision;
//  3. writes those headers to the response; and
//  4. either terminates the response (preflight requests, and denied
//     requests if [Config.DenyStatus] is set) or invokes the wrapped handler.
//
// All of the above happens before the wrapped handler gets invoked;
// in particular, preflight requests never reach the wrapped handler.
//
// A Middleware must not be copied after first use.
//
// Middleware are safe for concurrent use by multiple goroutines.
// No state is shared between requests other than the (immutable)
// configuration snapshot.
type Middleware struct {
	icfg atomic.Pointer[internalConfig]
}

// NewMiddleware creates a CORS middleware that behaves in accordance with cfg.
// If cfg is invalid, it returns a nil [*Middleware] and some non-nil error.
// Otherwise, it returns a pointer to a CORS [Middleware] and a nil error.
//
// Mutating the fields of cfg after NewMiddleware has returned a functioning
// middleware does not alter the latter's behavior.
// However, you can reconfigure a [Middleware] via its
// [*Middleware.Reconfigure] method.
//
// If you need to programmatically handle the configuration errors constitutive
// of the resulting error, rely on package [github.com/jub0bs/dyncors/cfgerrors].
func NewMiddleware(cfg Config) (*Middleware, error) {
	icfg, err := newInternalConfig(&cfg)
	if err != nil {
		return nil, err
	}
	var m Middleware
	m.icfg.Store(icfg)
	return &m, nil
}

// Reconfigure reconfigures m in accordance with cfg.
// If cfg is nil, it turns m into a passthrough middleware.
// If *cfg is invalid, it leaves m unchanged and returns some non-nil error.
// Otherwise, it successfully reconfigures m and returns a nil error.
//
// You can safely reconfigure a middleware
// even as it's concurrently processing requests:
// each request is processed entirely in accordance with either the old or
// the new configuration.
//
// Mutating the fields of cfg after Reconfigure has returned does not alter
// m's behavior.
func (m *Middleware) Reconfigure(cfg *Config) error {
	icfg, err := newInternalConfig(cfg)
	if err != nil {
		return err
	}
	m.icfg.Store(icfg)
	return nil
}

// Wrap applies the CORS middleware to the specified handler.
func (m *Middleware) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		icfg := m.icfg.Load()
		if icfg == nil { // passthrough middleware
			h.ServeHTTP(w, r)
			return
		}
		ev, err := icfg.evaluate(r.Context(), r)
		if err != nil {
			icfg.handleResolutionError(w, r, err)
			return
		}
		// Set rather than add: outer middleware may have set some of those
		// headers already, and ours must win. Vary is the exception.
		hdrs := w.Header()
		for k, v := range ev.Header {
			if k == headers.Vary {
				hdrs[k] = append(hdrs[k], v...)
				continue
			}
			hdrs[k] = v
		}
		if ev.State == ShortCircuited {
			w.WriteHeader(ev.Status)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (icfg *internalConfig) handleResolutionError(w http.ResponseWriter, r *http.Request, err error) {
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		// The client is gone, or the server is shutting down;
		// the response won't be sent anyway.
		icfg.logger.Debug(
			"origin resolution abandoned",
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"error", err,
		)
		return
	}
	icfg.logger.Error(
		"origin resolution failed",
		"method", r.Method,
		"uri", r.URL.RequestURI(),
		"error", err,
	)
	icfg.onError(w, r, err)
}

// Evaluate runs m's policy against r without writing anything to any
// response. It is useful for troubleshooting and testing CORS
// configurations. Origin resolution is bound to ctx.
// If m is a passthrough middleware, Evaluate returns nil, nil.
// If origin resolution fails, Evaluate returns the resolver's error
// unmodified.
func (m *Middleware) Evaluate(ctx context.Context, r *http.Request) (*Evaluation, error) {
	icfg := m.icfg.Load()
	if icfg == nil {
		return nil, nil
	}
	return icfg.evaluate(ctx, r)
}

// Config returns a pointer to a deep copy of m's current configuration;
// if m is a passthrough middleware, it simply returns nil.
// The following statement is guaranteed to be a no-op
// (albeit a relatively expensive one):
//
//	m.Reconfigure(m.Config())
//
// Mutating the fields of the result does not alter m's behavior.
func (m *Middleware) Config() *Config {
	return newConfig(m.icfg.Load())
}

// An Evaluation is the outcome of the processing of one request by a
// [Middleware]. It is owned by that request alone.
type Evaluation struct {
	// Decision is the outcome of origin resolution.
	Decision Decision
	// Header holds the CORS response headers to write;
	// it holds none if Decision denies the request.
	// If [Config.Vary] is set, it may also hold a Vary header,
	// which the middleware adds to any existing one.
	Header http.Header
	// State is the final state of the request (never Pending).
	State State
	// Status is the status code to respond with if State is ShortCircuited,
	// and 0 otherwise.
	Status int
}

// A State represents the progress of a request through a [Middleware].
//
//	Pending ──┬─> ShortCircuited   (preflight, or denied with a DenyStatus)
//	          └─> PassThrough      (all other requests)
type State uint8

const (
	// Pending is the state of a request whose origin is being resolved.
	Pending State = iota
	// ShortCircuited is the state of a request to which the middleware
	// responds on its own, without invoking the wrapped handler.
	ShortCircuited
	// PassThrough is the state of a request that the middleware hands
	// over to the wrapped handler.
	PassThrough
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case ShortCircuited:
		return "short-circuited"
	case PassThrough:
		return "pass-through"
	default:
		return "unknown"
	}
}

// preflightStatus is the status of responses to preflight requests.
// According to the Fetch standard, any 2xx status code is acceptable
// to mark a preflight response as successful;
// 204 (No Content) is arguably the most appropriate one.
const preflightStatus = http.StatusNoContent

func (icfg *internalConfig) evaluate(ctx context.Context, r *http.Request) (*Evaluation, error) {
	ev := Evaluation{State: Pending}
	d, err := icfg.resolve(ctx, r)
	if err != nil {
		return nil, err
	}
	ev.Decision = d
	ev.Header = icfg.compose(d, r.Header)
	if icfg.vary != "" {
		// The response depends on the request whether or not it is allowed.
		ev.Header[headers.Vary] = []string{icfg.vary}
	}
	_, allowed := d.Origin()
	switch {
	case isPreflight(r):
		// Preflight requests get a 204 even when their origin is denied;
		// the absence of CORS headers suffices for the browser to fail
		// the CORS check.
		ev.State = ShortCircuited
		ev.Status = preflightStatus
	case !allowed && icfg.denyStatus != 0:
		ev.State = ShortCircuited
		ev.Status = icfg.denyStatus
	default:
		ev.State = PassThrough
	}
	return &ev, nil
}

// isPreflight reports whether r is to be treated as a preflight request.
// Method names are case-sensitive; "options" is not OPTIONS.
func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions
}
