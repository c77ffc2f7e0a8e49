package config

import (
	"strconv"
	"strings"
)

const (
	EnvCORSOrigin       = "DYNCORS_CORS_ORIGIN"
	EnvCORSMethods      = "DYNCORS_CORS_METHODS"
	EnvCORSHeaders      = "DYNCORS_CORS_HEADERS"
	EnvCORSExpose       = "DYNCORS_CORS_EXPOSE"
	EnvCORSCredentials  = "DYNCORS_CORS_CREDENTIALS"
	EnvCORSMaxAge       = "DYNCORS_CORS_MAX_AGE"
	EnvCORSLegacyMaxAge = "DYNCORS_CORS_LEGACY_MAX_AGE"
	EnvCORSDenyStatus   = "DYNCORS_CORS_DENY_STATUS"
	EnvCORSVary         = "DYNCORS_CORS_VARY"
)

// corsEnv maps settings keys to the environment variables overriding them.
var corsEnv = map[string]string{
	"origin":       EnvCORSOrigin,
	"methods":      EnvCORSMethods,
	"headers":      EnvCORSHeaders,
	"expose":       EnvCORSExpose,
	"credentials":  EnvCORSCredentials,
	"maxAge":       EnvCORSMaxAge,
	"legacyMaxAge": EnvCORSLegacyMaxAge,
	"denyStatus":   EnvCORSDenyStatus,
	"vary":         EnvCORSVary,
}

// envValue converts the raw value of a CORS environment variable into
// the settings value it stands for. Only the origin needs help: other
// settings are coerced from strings downstream.
func envValue(key, v string) any {
	if key != "origin" {
		return v
	}
	switch v = strings.TrimSpace(v); {
	case v == "*":
		return v
	case strings.Contains(v, ","):
		var patterns []any
		for p := range strings.SplitSeq(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		return patterns
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}
