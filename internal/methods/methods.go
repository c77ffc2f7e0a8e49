package methods

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// IsValid reports whether name is a valid method, [per the Fetch standard].
//
// [per the Fetch standard]: https://fetch.spec.whatwg.org/#concept-method
func IsValid(name string) bool {
	// Note: the production is identical to that of header names.
	return httpguts.ValidHeaderFieldName(name)
}

// IsForbidden reports whether name is a forbidden method,
// [per the Fetch standard]. Browsers never issue requests that use such
// methods, so listing them in Access-Control-Allow-Methods is pointless.
//
// [per the Fetch standard]: https://fetch.spec.whatwg.org/#forbidden-method
func IsForbidden(name string) bool {
	return strings.EqualFold(name, http.MethodConnect) ||
		strings.EqualFold(name, http.MethodTrace) ||
		strings.EqualFold(name, "TRACK")
}

// Defaults returns the methods allowed when none are configured,
// in the order in which they appear in Access-Control-Allow-Methods.
func Defaults() []string {
	return []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPut,
		http.MethodPost,
		http.MethodDelete,
	}
}
