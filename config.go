package dyncors

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/jub0bs/dyncors/cfgerrors"
	"github.com/jub0bs/dyncors/internal/headers"
	"github.com/jub0bs/dyncors/internal/methods"
)

// A Config configures a Middleware. The mechanics of and interplay between
// this type's various fields are explained below.
//
// Configuration mistakes other than an out-of-bounds DenyStatus never cause
// a failure to build the middleware; instead, they are tolerated and
// replaced by the documented defaults, and reported to the Logger
// (if any) at warn level.
//
// # Origin
//
// Origin determines, for each request, the value of the
// Access-Control-Allow-Origin response header, or whether to omit CORS
// response headers altogether. See [Origin]. The zero value allows all
// origins:
//
//	Access-Control-Allow-Origin: *
//
// # Credentialed
//
// Credentialed, when set, causes the middleware to include
//
//	Access-Control-Allow-Credentials: true
//
// in responses to allowed requests.
//
// Browsers reject credentialed responses whose Access-Control-Allow-Origin
// value is the wildcard. The middleware does not attempt to correct such
// a configuration: if you enable credentialed access, you are responsible
// for using an Origin ([FixedOrigin], [ReflectOrigin], or [DynamicOrigin])
// that produces a concrete origin.
//
// # Methods
//
// Methods lists the methods sent, comma-separated and in the specified
// order, in the Access-Control-Allow-Methods header. Method names are
// case-sensitive. If Methods is empty, it defaults to
//
//	GET,HEAD,PUT,POST,DELETE
//
// # RequestHeaders
//
// RequestHeaders lists the request-header names sent, comma-separated and
// in the specified order, in the Access-Control-Allow-Headers header.
// If RequestHeaders is nil, the middleware instead echoes the value of the
// request's Access-Control-Request-Headers header (if any) verbatim.
// A non-nil but empty RequestHeaders suppresses the header.
//
// # MaxAgeInSeconds
//
// MaxAgeInSeconds, when positive, instructs browsers to cache preflight
// responses for no longer than the specified number of seconds.
// The zero value omits the max-age header; negative values are ignored.
// The header is named Access-Control-Max-Age unless LegacyMaxAgeHeader is
// set, in which case it is named Access-Control-Allow-Max-Age, a
// non-standard name that only some legacy clients understand.
//
// # ResponseHeaders
//
// ResponseHeaders lists the response-header names sent, comma-separated and
// in the specified order, in the Access-Control-Expose-Headers header.
// If ResponseHeaders is empty, that header is omitted.
//
// # DenyStatus
//
// DenyStatus determines the fate of non-preflight requests whose origin is
// denied. The zero value lets them through to the wrapped handler (without
// any CORS response headers); any other value, which must lie in the
// 100-599 range, causes the middleware to respond with that status code
// without invoking the wrapped handler.
//
// # Vary
//
// Vary, when set, causes the middleware to add to the Vary header of every
// response the names of the request headers on which its CORS response
// headers depend: Origin if Origin is [ReflectOrigin] or [DynamicOrigin],
// and Access-Control-Request-Headers if RequestHeaders is nil.
// Existing Vary values, such as those set by outer middleware, are kept.
// Vary is unset by default.
//
// # ErrorHandler
//
// ErrorHandler is invoked with the error returned by a [Resolver], in which
// case no CORS response headers are written and the wrapped handler is not
// invoked. If ErrorHandler is nil, the middleware replies with a
// 500 Internal Server Error. ErrorHandler is not invoked for requests
// whose context got cancelled during resolution; nothing at all is written
// to the response of such requests.
//
// # Logger
//
// Logger, if non-nil, receives reports of configuration defects and
// resolution failures.
type Config struct {
	// Precludes comparability, unkeyed struct literals, and conversion to and
	// from third-party types.
	_ [0]func()

	Origin             Origin
	Credentialed       bool
	Methods            []string
	RequestHeaders     []string
	MaxAgeInSeconds    int
	ResponseHeaders    []string
	LegacyMaxAgeHeader bool
	DenyStatus         int
	Vary               bool
	ErrorHandler       func(http.ResponseWriter, *http.Request, error)
	Logger             *slog.Logger
}

// internalConfig is the immutable snapshot of a Config that a Middleware
// consults for each request. All derived header values are computed once,
// in newInternalConfig; nothing ever writes to an internalConfig afterwards.
type internalConfig struct {
	origin       Origin
	credentialed bool
	acam         string // never empty
	reflectACRH  bool   // reflectACRH => acah == ""
	acah         string
	aceh         string
	acmaName     string
	acma         string
	denyStatus   int
	vary         string // names for the Vary header; empty if none
	onError      func(http.ResponseWriter, *http.Request, error)
	logger       *slog.Logger

	// Defensive copies of the corresponding Config fields,
	// retained only for newConfig.
	methods         []string
	reqHdrs         []string
	resHdrs         []string
	maxAge          int
	legacyMaxAge    bool
	varyOpt         bool
	customOnError   bool
	customLogger    bool
	defaultsApplied bool // Methods was empty
}

func newInternalConfig(cfg *Config) (*internalConfig, error) {
	if cfg == nil {
		return nil, nil
	}
	if err := validateDenyStatus(cfg.DenyStatus); err != nil {
		return nil, err
	}
	icfg := internalConfig{
		origin:        cfg.Origin,
		credentialed:  cfg.Credentialed,
		denyStatus:    cfg.DenyStatus,
		onError:       cfg.ErrorHandler,
		logger:        cfg.Logger,
		legacyMaxAge:  cfg.LegacyMaxAgeHeader,
		customOnError: cfg.ErrorHandler != nil,
		customLogger:  cfg.Logger != nil,
	}
	if icfg.logger == nil {
		icfg.logger = discardLogger
	}
	if icfg.onError == nil {
		icfg.onError = defaultErrorHandler
	}
	if icfg.origin.kind == dynamicOrigin && icfg.origin.resolver == nil {
		// Only reachable via a hand-crafted Origin literal; see DynamicOrigin.
		icfg.logger.Warn("nil origin resolver; denying all origins")
		icfg.origin = DenyOrigin()
	}
	if icfg.credentialed && icfg.origin.kind == wildcardOrigin {
		icfg.logger.Warn(
			"credentialed access enabled along with the wildcard origin; " +
				"browsers will reject credentialed responses",
		)
	}

	icfg.setMethods(cfg.Methods)
	icfg.setRequestHeaders(cfg.RequestHeaders)
	icfg.setResponseHeaders(cfg.ResponseHeaders)
	icfg.setMaxAge(cfg.MaxAgeInSeconds)
	icfg.setVary(cfg.Vary)
	return &icfg, nil
}

func validateDenyStatus(status int) error {
	const (
		minStatus = 100
		maxStatus = 599
	)
	if status != 0 && (status < minStatus || maxStatus < status) {
		err := &cfgerrors.DenyStatusOutOfBoundsError{
			Value: status,
			Min:   minStatus,
			Max:   maxStatus,
		}
		return errors.Join(err)
	}
	return nil
}

func (icfg *internalConfig) setMethods(names []string) {
	if len(names) == 0 {
		names = methods.Defaults()
		icfg.defaultsApplied = true
	} else {
		names = slices.Clone(names)
	}
	for _, name := range names {
		if !methods.IsValid(name) {
			icfg.logger.Warn("invalid method name", "method", name)
		} else if methods.IsForbidden(name) {
			icfg.logger.Warn("browsers never use forbidden method", "method", name)
		}
	}
	icfg.methods = names
	icfg.acam = headers.Join(names)
}

func (icfg *internalConfig) setRequestHeaders(names []string) {
	if names == nil {
		icfg.reflectACRH = true
		return
	}
	icfg.reqHdrs = slices.Clone(names)
	icfg.acah = headers.Join(names)
}

func (icfg *internalConfig) setResponseHeaders(names []string) {
	if len(names) == 0 {
		return
	}
	icfg.resHdrs = slices.Clone(names)
	icfg.aceh = headers.Join(names)
}

func (icfg *internalConfig) setMaxAge(delta int) {
	icfg.acmaName = headers.ACMA
	if icfg.legacyMaxAge {
		icfg.acmaName = headers.LegacyACMA
	}
	switch {
	case delta < 0:
		icfg.logger.Warn("negative max-age ignored", "max_age", delta)
	case delta > 0:
		icfg.maxAge = delta
		icfg.acma = strconv.Itoa(delta)
	}
}

// setVary must be called after the origin and the request headers are set.
func (icfg *internalConfig) setVary(enabled bool) {
	icfg.varyOpt = enabled
	if !enabled {
		return
	}
	var names []string
	switch icfg.origin.kind {
	case reflectOrigin, dynamicOrigin:
		names = append(names, headers.Origin)
	}
	if icfg.reflectACRH {
		names = append(names, headers.ACRH)
	}
	icfg.vary = headers.Join(names)
}

var discardLogger = slog.New(slog.DiscardHandler)

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	const status = http.StatusInternalServerError
	http.Error(w, http.StatusText(status), status)
}

// newConfig returns a Config on the basis of icfg.
// The soundness of the result is guaranteed only if icfg is the result of a
// previous call to newInternalConfig.
func newConfig(icfg *internalConfig) *Config {
	if icfg == nil {
		return nil
	}

	// Note: do not hold (in cfg) any references to mutable fields of icfg;
	// use defensive copying if required.
	cfg := Config{
		Origin:             icfg.origin,
		Credentialed:       icfg.credentialed,
		RequestHeaders:     slices.Clone(icfg.reqHdrs),
		MaxAgeInSeconds:    icfg.maxAge,
		ResponseHeaders:    slices.Clone(icfg.resHdrs),
		LegacyMaxAgeHeader: icfg.legacyMaxAge,
		DenyStatus:         icfg.denyStatus,
		Vary:               icfg.varyOpt,
	}
	if !icfg.defaultsApplied {
		cfg.Methods = slices.Clone(icfg.methods)
	}
	if !icfg.reflectACRH && cfg.RequestHeaders == nil {
		// RequestHeaders was non-nil but empty.
		cfg.RequestHeaders = []string{}
	}
	if icfg.customOnError {
		cfg.ErrorHandler = icfg.onError
	}
	if icfg.customLogger {
		cfg.Logger = icfg.logger
	}
	return &cfg
}
