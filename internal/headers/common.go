package headers

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// header names in canonical format
const (
	// request headers
	Origin = "Origin"
	ACRH   = "Access-Control-Request-Headers"

	// response headers
	ACAO = "Access-Control-Allow-Origin"
	ACAC = "Access-Control-Allow-Credentials"
	ACAM = "Access-Control-Allow-Methods"
	ACAH = "Access-Control-Allow-Headers"
	ACEH = "Access-Control-Expose-Headers"
	ACMA = "Access-Control-Max-Age"
	Vary = "Vary"

	// Non-standard variant of ACMA emitted by some older CORS middleware
	// and still expected by a few legacy clients.
	LegacyACMA = "Access-Control-Allow-Max-Age"
)

const (
	ValueTrue     = "true"
	ValueWildcard = "*"
)

// The elements of a header-field value may be separated simply by commas;
// since whitespace is optional, we don't use any.
// See https://httpwg.org/specs/rfc9110.html#abnf.extension.recipient.
const ValueSep = ","

// IsValid reports whether name is a valid header name,
// [per the Fetch standard].
//
// [per the Fetch standard]: https://fetch.spec.whatwg.org/#header-name
func IsValid(name string) bool {
	return httpguts.ValidHeaderFieldName(name)
}

// First, if k is present in hdrs, returns the value associated to k in hdrs
// and true; otherwise, First returns "", false.
// Precondition: k is in canonical format (see [http.CanonicalHeaderKey]).
//
// Contrary to [http.Header.Get], First distinguishes between an absent
// header and a header whose value is empty.
func First(hdrs http.Header, k string) (string, bool) {
	v, found := hdrs[k]
	if !found || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Combine returns the value of the list-based field k in hdrs.
// Some intermediaries split such a field across multiple field lines;
// Combine joins those lines back with [ValueSep].
// Precondition: k is in canonical format (see [http.CanonicalHeaderKey]).
func Combine(hdrs http.Header, k string) string {
	v := hdrs[k]
	switch len(v) {
	case 0:
		return ""
	case 1:
		return v[0]
	default:
		return strings.Join(v, ValueSep)
	}
}

// Join joins elems with [ValueSep], preserving their order.
func Join(elems []string) string {
	return strings.Join(elems, ValueSep)
}
