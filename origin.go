package dyncors

import (
	"context"
	"errors"
	"net/http"

	"github.com/jub0bs/dyncors/internal/headers"
)

// An Origin describes how a [Middleware] decides, for each request,
// which value (if any) to send in the Access-Control-Allow-Origin header.
// Obtain one via [AnyOrigin], [FixedOrigin], [ReflectOrigin], [DenyOrigin],
// or [DynamicOrigin].
//
// The zero value is equivalent to [AnyOrigin].
type Origin struct {
	kind     originKind
	value    string   // only for fixedOrigin
	resolver Resolver // only for dynamicOrigin; never nil
}

type originKind uint8

const (
	wildcardOrigin originKind = iota
	fixedOrigin
	reflectOrigin
	deniedOrigin
	dynamicOrigin
)

// AnyOrigin returns an Origin that allows all origins;
// the resulting Access-Control-Allow-Origin value is always "*".
func AnyOrigin() Origin {
	return Origin{}
}

// FixedOrigin returns an Origin that always allows the specified origin,
// regardless of the request's Origin header.
// An empty origin is tantamount to [AnyOrigin].
func FixedOrigin(origin string) Origin {
	if origin == "" || origin == headers.ValueWildcard {
		return AnyOrigin()
	}
	return Origin{kind: fixedOrigin, value: origin}
}

// ReflectOrigin returns an Origin that echoes the value of the request's
// Origin header, or "*" if that header is absent.
//
// Reflecting the request's origin amounts to allowing all origins;
// if you also enable credentialed access, make sure you understand the
// implications.
func ReflectOrigin() Origin {
	return Origin{kind: reflectOrigin}
}

// DenyOrigin returns an Origin that never allows any origin;
// a [Middleware] configured with it never emits CORS response headers.
func DenyOrigin() Origin {
	return Origin{kind: deniedOrigin}
}

// DynamicOrigin returns an Origin that delegates the decision to r,
// once per request. A nil r is a configuration defect;
// the result then denies all origins.
func DynamicOrigin(r Resolver) Origin {
	if r == nil {
		return DenyOrigin()
	}
	return Origin{kind: dynamicOrigin, resolver: r}
}

// String returns a human-readable description of o.
func (o Origin) String() string {
	switch o.kind {
	case fixedOrigin:
		return o.value
	case reflectOrigin:
		return "reflect"
	case deniedOrigin:
		return "deny"
	case dynamicOrigin:
		return "dynamic"
	default:
		return headers.ValueWildcard
	}
}

// A Decision is the outcome of origin resolution for a single request.
// The zero value denies the request's origin.
type Decision struct {
	origin  string
	allowed bool
}

// Allow returns a Decision that allows the request and instructs the
// middleware to send origin in the Access-Control-Allow-Origin header.
// An empty origin is replaced by "*".
func Allow(origin string) Decision {
	if origin == "" {
		origin = headers.ValueWildcard
	}
	return Decision{origin: origin, allowed: true}
}

// Deny returns a Decision that denies the request's origin.
func Deny() Decision {
	return Decision{}
}

// Origin returns the value to send in the Access-Control-Allow-Origin header
// and true if d allows the request; otherwise, it returns "", false.
func (d Decision) Origin() (string, bool) {
	return d.origin, d.allowed
}

// A Resolver decides, for a given request, whether its origin is allowed.
//
// ResolveOrigin may block, e.g. to consult some remote allow-list;
// it should then honor ctx, which is done when the request is cancelled.
// A non-nil error aborts the processing of the request;
// [Middleware] never retry resolution.
//
// Resolvers must not modify r and must be safe for concurrent use by
// multiple goroutines.
type Resolver interface {
	ResolveOrigin(ctx context.Context, r *http.Request) (Decision, error)
}

// The ResolverFunc type is an adapter to allow the use of ordinary functions
// as resolvers.
type ResolverFunc func(ctx context.Context, r *http.Request) (Decision, error)

// ResolveOrigin calls f(ctx, r).
func (f ResolverFunc) ResolveOrigin(ctx context.Context, r *http.Request) (Decision, error) {
	return f(ctx, r)
}

// An Outcome is the eventual result of an asynchronous origin resolution.
type Outcome struct {
	Decision Decision
	Err      error
}

// The AsyncResolverFunc type is an adapter to allow the use of functions
// that deliver their decision on a channel as resolvers.
// The function should send exactly one Outcome on the channel it returns;
// a buffered channel of capacity 1 lets the sender complete even if the
// request is abandoned.
type AsyncResolverFunc func(r *http.Request) <-chan Outcome

// ResolveOrigin calls f(r) and waits for the resulting Outcome.
// If ctx is done first, ResolveOrigin abandons the resolution and returns
// ctx.Err(). If the channel is nil or gets closed without delivering an
// Outcome, ResolveOrigin returns [ErrNoOutcome].
func (f AsyncResolverFunc) ResolveOrigin(ctx context.Context, r *http.Request) (Decision, error) {
	ch := f(r)
	if ch == nil {
		// Receiving from a nil channel would block until ctx is done.
		return Deny(), ErrNoOutcome
	}
	select {
	case out, ok := <-ch:
		if !ok {
			return Deny(), ErrNoOutcome
		}
		return out.Decision, out.Err
	case <-ctx.Done():
		return Deny(), ctx.Err()
	}
}

// ErrNoOutcome indicates that an [AsyncResolverFunc] closed its channel
// without delivering any [Outcome].
var ErrNoOutcome = errors.New("dyncors: origin resolver delivered no outcome")

// resolve evaluates icfg's origin policy against r, exactly once.
// Errors from dynamic resolvers are returned unmodified.
func (icfg *internalConfig) resolve(ctx context.Context, r *http.Request) (Decision, error) {
	switch o := icfg.origin; o.kind {
	case fixedOrigin:
		return Allow(o.value), nil
	case reflectOrigin:
		origin, _ := headers.First(r.Header, headers.Origin)
		return Allow(origin), nil
	case deniedOrigin:
		return Deny(), nil
	case dynamicOrigin:
		return o.resolver.ResolveOrigin(ctx, r)
	default:
		return Allow(headers.ValueWildcard), nil
	}
}
