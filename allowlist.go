package dyncors

import (
	"context"
	"errors"
	"net/http"

	"github.com/jub0bs/dyncors/cfgerrors"
	"github.com/jub0bs/dyncors/internal/headers"
	"github.com/jub0bs/dyncors/internal/origins"
)

// AllowOrigins returns a [Resolver] that allows the [Web origins]
// encompassed by the specified origin patterns, and denies all others.
// Use it along with [DynamicOrigin]:
//
//	allowed, err := dyncors.AllowOrigins(
//	  "https://example.com",
//	  "https://*.example.com",
//	)
//	if err != nil {
//	  // handle configuration error
//	}
//	cfg := dyncors.Config{Origin: dyncors.DynamicOrigin(allowed)}
//
// Allowed requests get their own origin echoed in the
// Access-Control-Allow-Origin header; requests without an Origin header,
// or with a malformed one, are denied.
//
// Security considerations: Bear in mind that, by allowing Web origins,
// you engage in a trust relationship with those origins.
// Malicious actors may be able to exploit some Web vulnerabilities (including
// [cross-site scripting] and [subdomain takeover]) on those origins and mount
// [cross-origin attacks] against your users from there.
//
// Omitting to specify at least one origin pattern is prohibited;
// so is specifying one or more invalid or prohibited origin pattern(s).
// All valid schemes (no longer than 64 bytes) other than file are permitted:
//
//	http://example.com    // permitted
//	https://example.com   // permitted
//	connector://localhost // permitted
//	file:///somepath      // prohibited
//
// Origins must be specified in [ASCII serialized form]; Unicode is prohibited:
//
//	https://www.xn--xample-9ua.com // permitted (Punycode)
//	https://www.résumé.com         // prohibited (Unicode)
//
// The null origin is prohibited, and so is the single asterisk;
// use [AnyOrigin] to allow all origins.
//
// Hosts that are IPv4 addresses must be specified in dotted-quad notation;
// hosts that are IPv6 addresses must be specified in their compressed form:
//
//	http://255.0.0.0         // permitted
//	http://0xFF000000        // prohibited
//	http://[::1]:9090        // permitted
//	http://[0:0:0:0:0:0:0:1] // prohibited
//
// Default ports (80 for http, 443 for https) must be elided.
//
// A leading asterisk followed by a period (.) in a host pattern
// denotes one or more period-separated arbitrary DNS labels;
// an asterisk in place of a port denotes an arbitrary (possibly implicit)
// port. For instance,
//
//	https://*.example.com:*
//
// encompasses https://foo.example.com and https://bar.foo.example.com:8080
// (among others). No other forms of origin patterns are supported.
//
// Allowing arbitrary subdomains of a base domain that happens to be a
// [public suffix] is dangerous; as such, doing so is prohibited:
//
//	https://*.example.com // permitted: example.com is not a public suffix
//	https://*.com         // prohibited: com is a public suffix
//	https://*.github.io   // prohibited: github.io is a public suffix
//
// If you need to programmatically handle the errors constitutive of the
// resulting error, rely on package [github.com/jub0bs/dyncors/cfgerrors].
//
// [ASCII serialized form]: https://html.spec.whatwg.org/multipage/browsers.html#ascii-serialisation-of-an-origin
// [Web origins]: https://developer.mozilla.org/en-US/docs/Glossary/Origin
// [cross-origin attacks]: https://portswigger.net/research/exploiting-cors-misconfigurations-for-bitcoins-and-bounties
// [cross-site scripting]: https://owasp.org/www-community/attacks/xss/
// [public suffix]: https://publicsuffix.org/
// [subdomain takeover]: https://labs.detectify.com/writeups/hostile-subdomain-takeover-using-heroku-github-desk-more/
func AllowOrigins(patterns ...string) (Resolver, error) {
	if len(patterns) == 0 {
		err := &cfgerrors.UnacceptableOriginPatternError{
			Reason: "missing",
		}
		return nil, errors.Join(err)
	}
	var (
		al   allowList
		errs []error
	)
	for _, raw := range patterns {
		if raw == headers.ValueWildcard {
			errs = append(errs, prohibitedPatternError(raw))
			continue
		}
		p, err := origins.ParsePattern(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if p.Kind == origins.ArbitrarySubdomains && p.HostIsEffectiveTLD() {
			err := &cfgerrors.IncompatibleOriginPatternError{
				Value:  raw,
				Reason: "psl",
			}
			errs = append(errs, err)
			continue
		}
		al.add(&p)
	}
	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}
	return &al, nil
}

func prohibitedPatternError(raw string) error {
	return &cfgerrors.UnacceptableOriginPatternError{
		Value:  raw,
		Reason: "prohibited",
	}
}

// An allowList is a set of origin patterns.
// Patterns that encompass a single origin are indexed by their serialized
// form; all others are scanned in order.
type allowList struct {
	exact    map[string]struct{}
	patterns []*origins.Pattern
}

func (al *allowList) add(p *origins.Pattern) {
	if p.Kind != origins.ArbitrarySubdomains && p.Port != -1 {
		if al.exact == nil {
			al.exact = make(map[string]struct{})
		}
		al.exact[p.String()] = struct{}{}
		return
	}
	al.patterns = append(al.patterns, p)
}

func (al *allowList) contains(raw string) bool {
	if _, found := al.exact[raw]; found {
		return true
	}
	o, ok := origins.Parse(raw)
	if !ok {
		return false
	}
	for _, p := range al.patterns {
		if p.Matches(&o) {
			return true
		}
	}
	return false
}

// ResolveOrigin implements [Resolver]. It never blocks and never fails.
func (al *allowList) ResolveOrigin(_ context.Context, r *http.Request) (Decision, error) {
	origin, found := headers.First(r.Header, headers.Origin)
	if !found || !al.contains(origin) {
		return Deny(), nil
	}
	return Allow(origin), nil
}
