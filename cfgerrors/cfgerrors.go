/*
Package cfgerrors provides functionalities for programmatically handling
configuration errors produced by package [github.com/jub0bs/dyncors].

Most users of package [github.com/jub0bs/dyncors] have no use for this
package. However, services that let their tenants edit origin allow-lists
(e.g. via some Web portal or some command-line interface) may find this
package useful: it indeed allows them to report each rejected origin
pattern individually, perhaps in a natural language other than English.
*/
package cfgerrors

import (
	"fmt"
	"iter"
)

// An UnacceptableOriginPatternError indicates an unacceptable origin pattern.
// The Reason field may take one of three values:
//   - "missing": no origin pattern was specified;
//   - "invalid": the origin pattern is invalid;
//   - "prohibited": the origin pattern is prohibited by this library.
//
// For more details, see [github.com/jub0bs/dyncors.AllowOrigins].
type UnacceptableOriginPatternError struct {
	Value  string // the unacceptable value that was specified
	Reason string // missing | invalid | prohibited
}

func (err *UnacceptableOriginPatternError) Error() string {
	if err.Reason == "missing" {
		return "dyncors: at least one origin pattern must be specified"
	}
	const tmpl = "dyncors: %s origin pattern %q"
	return fmt.Sprintf(tmpl, err.Reason, err.Value)
}

// An IncompatibleOriginPatternError indicates an origin pattern that
// encompasses arbitrary subdomains of a [public suffix] (Reason == "psl").
//
// For more details, see [github.com/jub0bs/dyncors.AllowOrigins].
//
// [public suffix]: https://publicsuffix.org/
type IncompatibleOriginPatternError struct {
	Value  string // the offending origin pattern
	Reason string // psl
}

func (err *IncompatibleOriginPatternError) Error() string {
	if err.Reason == "psl" {
		const tmpl = "dyncors: for security reasons, origin patterns like %q that encompass subdomains of a public suffix are prohibited"
		return fmt.Sprintf(tmpl, err.Value)
	}
	// We never produce such errors.
	return "dyncors: unknown issue"
}

// A DenyStatusOutOfBoundsError indicates a deny status that is not a valid
// HTTP status code.
//
// For more details, see [github.com/jub0bs/dyncors.Config].
type DenyStatusOutOfBoundsError struct {
	Value int // the unacceptable value that was specified
	Min   int // smallest acceptable status code
	Max   int // largest acceptable status code
}

func (err *DenyStatusOutOfBoundsError) Error() string {
	const tmpl = "dyncors: out-of-bounds deny status %d (min: %d; max: %d; 0 lets denied requests through)"
	return fmt.Sprintf(tmpl, err.Value, err.Min, err.Max)
}

// All returns an iterator over the configuration errors contained in
// err's error tree. The order is unspecified and may change from one release
// to the next. All only supports error values returned by
// [github.com/jub0bs/dyncors.NewMiddleware],
// [github.com/jub0bs/dyncors.Middleware.Reconfigure], and
// [github.com/jub0bs/dyncors.AllowOrigins];
// it should not be called on any other error value.
func All(err error) iter.Seq[error] {
	return func(yield func(error) bool) {
		every(err, yield)
	}
}

func every(err error, f func(error) bool) bool {
	switch err := err.(type) {
	// Errors are only ever joined, never wrapped.
	case interface{ Unwrap() []error }:
		for _, err := range err.Unwrap() {
			if !every(err, f) {
				return false
			}
		}
		return true
	default:
		return f(err)
	}
}
