package origins

import "strings"

const (
	schemeHostSep = "://"     // scheme-host separator
	hostPortSep   = ':'       // host-port separator
	labelSep      = '.'       // DNS-label separator
	maxUint16     = 1<<16 - 1 // maximum value for uint16 type
)

const (
	// maxHostLen is the maximum length of a host, which is dominated by
	// the maximum length of an (absolute) domain name (253);
	// see https://devblogs.microsoft.com/oldnewthing/20120412-00/?p=7873.
	maxHostLen = 253
	// maxSchemeLen is the maximum tolerated length for schemes.
	// Its value is somewhat arbitrary but covers the great majority of
	// commonly used schemes.
	maxSchemeLen = 64
	// maxPortLen is the maximum length of a port's decimal representation.
	maxPortLen = len("65535")
	// maxHostPortLen is the maximum length of an origin's host-port part.
	maxHostPortLen = maxHostLen + 1 + maxPortLen // 1 for colon character
	// maxOriginLen is the maximum length of an origin.
	maxOriginLen = maxSchemeLen + len(schemeHostSep) + maxHostPortLen
)

// Origin represents a (tuple) [Web origin].
//
// [Web origin]: https://developer.mozilla.org/en-US/docs/Glossary/Origin
type Origin struct {
	// Scheme is the origin's scheme.
	Scheme string
	// Host is the origin's host; brackets around IPv6 addresses are elided.
	Host string
	// Port is the origin's port (if any).
	// The zero value marks the absence of an explicit port.
	Port int
}

// Parse parses str into an [Origin] structure.
// It is lenient insofar as it performs just enough validation for
// [Pattern.Matches] to know what to do with the resulting Origin value.
// In particular, the scheme and port of the resulting origin are guaranteed
// to be valid, but its host isn't.
func Parse(str string) (Origin, bool) {
	if len(str) > maxOriginLen {
		return Origin{}, false
	}
	scheme, rest, ok := parseScheme(str)
	if !ok {
		return Origin{}, false
	}
	rest, ok = strings.CutPrefix(rest, schemeHostSep)
	if !ok {
		return Origin{}, false
	}
	host, rest, ok := scanHost(rest)
	if !ok {
		return Origin{}, false
	}
	var port int // assume no port at first
	if rest != "" {
		rest, ok = strings.CutPrefix(rest, string(hostPortSep))
		if !ok {
			return Origin{}, false
		}
		port, ok = parsePort(rest)
		if !ok {
			return Origin{}, false
		}
	}
	o := Origin{
		Scheme: scheme,
		Host:   host,
		Port:   port,
	}
	return o, true
}

// scanHost scans a host (IPv6 addresses in brackets, or a sequence of
// domain bytes otherwise) at the start of str. It returns the host, the
// unconsumed part of str, and reports whether the host is non-empty.
func scanHost(str string) (host, rest string, ok bool) {
	if str != "" && str[0] == '[' {
		host, rest, ok = strings.Cut(str[1:], "]")
		return host, rest, ok && host != ""
	}
	i := 0
	for ; i < len(str) && isDomainByte(str[i]); i++ {
		// deliberately empty
	}
	return str[:i], str[i:], i > 0
}

// parseScheme parses a URI scheme. If successful, it returns the scheme,
// the unconsumed part of str, and true; otherwise, its ok result is false.
func parseScheme(str string) (scheme, rest string, ok bool) {
	// See https://www.rfc-editor.org/rfc/rfc3986.html#section-3.1.
	if str == "" || !isLowerAlpha(str[0]) {
		return
	}
	end := min(maxSchemeLen, len(str))
	i := 1
	for ; i < end && isSubsequentSchemeByte(str[i]); i++ {
		// deliberately empty
	}
	return str[:i], str[i:], true
}

// parsePort parses the decimal representation of a port number, which must
// consume the whole of str. It returns the port number and reports whether
// parsing succeeded.
func parsePort(str string) (int, bool) {
	if str == "" || len(str) > maxPortLen || str[0] == '0' {
		return 0, false
	}
	var port int
	for i := range len(str) {
		if !isDigit(str[i]) {
			return 0, false
		}
		port = 10*port + int(str[i]-'0')
	}
	if port > maxUint16 {
		return 0, false
	}
	return port, true
}

// isLowerAlpha reports whether c is in the 0x61-0x7A ASCII range.
func isLowerAlpha(c byte) bool {
	return 'a' <= c && c <= 'z'
}

// isDigit reports whether c is in the 0x30-0x39 ASCII range.
func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// isSubsequentSchemeByte reports whether c is a valid byte at index >= 1 in
// a scheme.
func isSubsequentSchemeByte(c byte) bool {
	// See https://www.rfc-editor.org/rfc/rfc3986.html#section-3.1.
	const mask = 0 |
		1<<'+' |
		1<<'-' |
		1<<'.' |
		(1<<10-1)<<'0' |
		(1<<26-1)<<'a'
	return ((uint64(1)<<c)&(mask&(1<<64-1)) |
		(uint64(1)<<(c-64))&(mask>>64)) != 0
}

// isDomainByte reports whether c is an ASCII lowercase letter, an ASCII digit,
// a hyphen (0x2D), a period (0x2E), or an underscore (0x5F).
func isDomainByte(c byte) bool {
	const mask = 0 |
		1<<'-' |
		1<<labelSep |
		(1<<10-1)<<'0' |
		(1<<26-1)<<'a' |
		1<<'_' // see https://stackoverflow.com/q/2180465
	return ((uint64(1)<<c)&(mask&(1<<64-1)) |
		(uint64(1)<<(c-64))&(mask>>64)) != 0
}
