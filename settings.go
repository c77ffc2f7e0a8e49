package dyncors

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/jub0bs/dyncors/internal/headers"
	"github.com/jub0bs/dyncors/internal/methods"
)

// Settings is a loosely typed CORS configuration, as obtained from a
// configuration file or from code that predates [Config].
// The following keys are recognized:
//
//	origin                      see below
//	methods, allowMethods       list of method names
//	headers, allowHeaders       list of request-header names
//	expose, exposeHeaders       list of response-header names
//	credentials                 bool
//	maxAge                      int (seconds)
//	legacyMaxAge                bool
//	denyStatus                  int (HTTP status code)
//	vary                        bool
//
// A list is either a comma-separated string or a sequence of strings.
// A list that is empty or holds no valid element is treated as absent;
// in particular, an empty headers list reflects the request's
// Access-Control-Request-Headers.
// When both a key and its alias are present, the former wins.
//
// The origin key accepts
//   - "*" (or the empty string), which allows all origins;
//   - any other string, which is sent verbatim (see [FixedOrigin]);
//   - true, which reflects the request's origin (see [ReflectOrigin]);
//   - false, which denies all origins (see [DenyOrigin]);
//   - an [Origin];
//   - a [Resolver], a func(context.Context, *http.Request) ([Decision], error),
//     a func(*http.Request) (string, bool), or a
//     func(*http.Request) <-chan [Outcome] (see [DynamicOrigin]);
//   - a sequence of origin patterns (see [AllowOrigins]).
type Settings map[string]any

// ParseSettings converts s into a [Config]. It never fails:
// values that cannot be interpreted are replaced by the corresponding
// defaults, and each such defect is reported to logger (if non-nil) at warn
// level. In particular, an origin allow-list that contains invalid or
// prohibited patterns results in all origins being denied.
//
// The Logger field of the result is set to logger.
func ParseSettings(s Settings, logger *slog.Logger) Config {
	if logger == nil {
		logger = discardLogger
	}
	p := settingsParser{logger: logger}
	var cfg Config
	for _, k := range slices.Sorted(maps.Keys(s)) {
		if !knownSettings[k] {
			logger.Warn("unknown setting ignored", "key", k)
		}
	}
	if v, found := s[keyOrigin]; found {
		cfg.Origin = p.origin(v)
	}
	if v, k, found := lookup(s, keyMethods, keyAllowMethods); found {
		cfg.Methods = p.list(k, v, methods.IsValid)
	}
	if v, k, found := lookup(s, keyHeaders, keyAllowHeaders); found {
		cfg.RequestHeaders = p.list(k, v, headers.IsValid)
	}
	if v, k, found := lookup(s, keyExpose, keyExposeHeaders); found {
		cfg.ResponseHeaders = p.list(k, v, headers.IsValid)
	}
	if v, found := s[keyCredentials]; found {
		cfg.Credentialed = p.boolean(keyCredentials, v)
	}
	if v, found := s[keyMaxAge]; found {
		cfg.MaxAgeInSeconds = p.integer(keyMaxAge, v)
	}
	if v, found := s[keyLegacyMaxAge]; found {
		cfg.LegacyMaxAgeHeader = p.boolean(keyLegacyMaxAge, v)
	}
	if v, found := s[keyVary]; found {
		cfg.Vary = p.boolean(keyVary, v)
	}
	if v, found := s[keyDenyStatus]; found {
		cfg.DenyStatus = p.integer(keyDenyStatus, v)
		if validateDenyStatus(cfg.DenyStatus) != nil {
			logger.Warn("out-of-bounds deny status ignored", "key", keyDenyStatus, "value", v)
			cfg.DenyStatus = 0
		}
	}
	if logger != discardLogger {
		cfg.Logger = logger
	}
	return cfg
}

const (
	keyOrigin        = "origin"
	keyMethods       = "methods"
	keyAllowMethods  = "allowMethods"
	keyHeaders       = "headers"
	keyAllowHeaders  = "allowHeaders"
	keyExpose        = "expose"
	keyExposeHeaders = "exposeHeaders"
	keyCredentials   = "credentials"
	keyMaxAge        = "maxAge"
	keyLegacyMaxAge  = "legacyMaxAge"
	keyDenyStatus    = "denyStatus"
	keyVary          = "vary"
)

var knownSettings = map[string]bool{
	keyOrigin:        true,
	keyMethods:       true,
	keyAllowMethods:  true,
	keyHeaders:       true,
	keyAllowHeaders:  true,
	keyExpose:        true,
	keyExposeHeaders: true,
	keyCredentials:   true,
	keyMaxAge:        true,
	keyLegacyMaxAge:  true,
	keyDenyStatus:    true,
	keyVary:          true,
}

// lookup returns the value associated with the first of keys present in s,
// along with that key.
func lookup(s Settings, keys ...string) (any, string, bool) {
	for _, k := range keys {
		if v, found := s[k]; found {
			return v, k, true
		}
	}
	return nil, "", false
}

type settingsParser struct {
	logger *slog.Logger
}

func (p *settingsParser) origin(v any) Origin {
	switch v := v.(type) {
	case nil:
		return AnyOrigin()
	case Origin:
		return v
	case string:
		return FixedOrigin(v)
	case bool:
		if v {
			return ReflectOrigin()
		}
		return DenyOrigin()
	case Resolver:
		return DynamicOrigin(v)
	case func(context.Context, *http.Request) (Decision, error):
		return DynamicOrigin(ResolverFunc(v))
	case func(*http.Request) <-chan Outcome:
		return DynamicOrigin(AsyncResolverFunc(v))
	case func(*http.Request) (string, bool):
		f := func(_ context.Context, r *http.Request) (Decision, error) {
			origin, ok := v(r)
			if !ok {
				return Deny(), nil
			}
			return Allow(origin), nil
		}
		return DynamicOrigin(ResolverFunc(f))
	case []string, []any:
		patterns, err := cast.ToStringSliceE(v)
		if err != nil {
			p.logger.Warn("uncoercible origin patterns; denying all origins", "error", err)
			return DenyOrigin()
		}
		al, err := AllowOrigins(patterns...)
		if err != nil {
			p.logger.Warn("invalid origin allow-list; denying all origins", "error", err)
			return DenyOrigin()
		}
		return DynamicOrigin(al)
	default:
		p.logger.Warn("unsupported origin setting; allowing all origins", "type", fmt.Sprintf("%T", v))
		return AnyOrigin()
	}
}

// list coerces v to a list of tokens and drops those that do not satisfy
// valid. The result is nil if v cannot be coerced to a list or if no valid
// token remains, so that the default for key applies.
func (p *settingsParser) list(key string, v any, valid func(string) bool) []string {
	var elems []string
	switch v := v.(type) {
	case string:
		elems = splitList(v)
	default:
		var err error
		elems, err = cast.ToStringSliceE(v)
		if err != nil {
			p.logger.Warn("uncoercible list setting ignored", "key", key, "error", err)
			return nil
		}
	}
	res := make([]string, 0, len(elems))
	for _, elem := range elems {
		if !valid(elem) {
			p.logger.Warn("invalid list element dropped", "key", key, "value", elem)
			continue
		}
		res = append(res, elem)
	}
	if len(res) == 0 {
		if len(elems) > 0 {
			p.logger.Warn("no valid list element; default applies", "key", key)
		}
		return nil
	}
	return res
}

// splitList splits a comma-separated list, trimming optional whitespace
// around each element. Empty elements are dropped.
func splitList(str string) []string {
	var res []string
	for elem := range strings.SplitSeq(str, headers.ValueSep) {
		elem = strings.Trim(elem, " \t")
		if elem == "" {
			continue
		}
		res = append(res, elem)
	}
	return res
}

func (p *settingsParser) boolean(key string, v any) bool {
	b, err := cast.ToBoolE(v)
	if err != nil {
		p.logger.Warn("uncoercible boolean setting ignored", "key", key, "error", err)
		return false
	}
	return b
}

func (p *settingsParser) integer(key string, v any) int {
	n, err := cast.ToIntE(v)
	if err != nil {
		p.logger.Warn("uncoercible integer setting ignored", "key", key, "error", err)
		return 0
	}
	return n
}
