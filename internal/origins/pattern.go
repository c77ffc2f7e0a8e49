package origins

import (
	"net/netip"
	"strconv"
	"strings"
	"sync"

	"github.com/jub0bs/dyncors/cfgerrors"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

const (
	subdomainWildcard = "*" // marks one or more period-separated DNS labels
	wildcardSeq       = subdomainWildcard + string(labelSep)
	portWildcard      = "*" // marks an arbitrary (possibly implicit) port number
)

const (
	absentPort = 0
	// arbitraryPort is a sentinel value that subsumes all other port numbers.
	arbitraryPort = -1
)

// Kind represents the kind of a host pattern.
type Kind uint8

const (
	Domain              Kind = iota // exact domain
	ArbitrarySubdomains             // arbitrary subdomains of a domain
	IP                              // IP address
)

// A Pattern represents an origin pattern.
// The zero value does not correspond to a valid pattern.
type Pattern struct {
	// Scheme is the scheme of this origin pattern.
	Scheme string
	// Host is the host of this origin pattern, without any leading *.
	// sequence and without brackets around IPv6 addresses.
	Host string
	// Port is the positive port number (if any) of this origin pattern.
	// The zero value marks the absence of an explicit port.
	// -1 is used as a sentinel value to indicate that all ports are allowed.
	Port int
	// Kind is the kind of this origin pattern's host.
	Kind Kind
}

// ParsePattern parses str into a fully valid [Pattern] structure.
// If it fails, it returns a non-nil error and some invalid pattern.
// Note that origin pattern "*" is handled elsewhere.
func ParsePattern(str string) (p Pattern, err error) {
	// As a defensive measure against maliciously long origin patterns,
	// let's first check the length of str.
	if len(str) > maxOriginLen {
		err = invalidOriginPatternError(str)
		return
	}
	if str == "null" {
		err = prohibitedOriginPatternError(str)
		return
	}
	var (
		rest string
		ok   bool
	)
	p.Scheme, rest, ok = parseScheme(str)
	if !ok {
		err = invalidOriginPatternError(str)
		return
	}
	if p.Scheme == "file" {
		err = prohibitedOriginPatternError(str)
		return
	}
	rest, ok = strings.CutPrefix(rest, schemeHostSep)
	if !ok {
		err = invalidOriginPatternError(str)
		return
	}
	p.Host, p.Kind, rest, err = parseHostPattern(rest, str)
	if err != nil {
		return
	}
	if rest == "" {
		return p, nil
	}
	rest, ok = strings.CutPrefix(rest, string(hostPortSep))
	if !ok {
		err = invalidOriginPatternError(str)
		return
	}
	if rest == portWildcard {
		p.Port = arbitraryPort
		return p, nil
	}
	p.Port, ok = parsePort(rest)
	if !ok {
		err = invalidOriginPatternError(str)
		return
	}
	if isDefaultPortForScheme(p.Scheme, p.Port) {
		err = prohibitedOriginPatternError(str)
		return
	}
	return p, nil
}

func prohibitedOriginPatternError(pattern string) error {
	return &cfgerrors.UnacceptableOriginPatternError{
		Value:  pattern,
		Reason: "prohibited",
	}
}

func invalidOriginPatternError(pattern string) error {
	return &cfgerrors.UnacceptableOriginPatternError{
		Value:  pattern,
		Reason: "invalid",
	}
}

// parseHostPattern scans and validates a host pattern in str.
// If it succeeds, it returns the host (stripped of any *. prefix), its kind,
// the unconsumed part of str, and nil;
// otherwise, its err result is some non-nil error.
func parseHostPattern(str, rawPattern string) (host string, kind Kind, rest string, err error) {
	if str != "" && str[0] == '[' { // str must be an IPv6 address.
		host, rest, ok := strings.Cut(str[1:], "]")
		if !ok {
			return "", 0, "", invalidOriginPatternError(rawPattern)
		}
		ip, err := netip.ParseAddr(host)
		if err != nil || !ip.Is6() || ip.Zone() != "" {
			return "", 0, "", invalidOriginPatternError(rawPattern)
		}
		// Only the compressed form (RFC 5952) is accepted,
		// because that's the form that browsers send.
		if ip.Is4In6() || host != ip.String() {
			return "", 0, "", prohibitedOriginPatternError(rawPattern)
		}
		return host, IP, rest, nil
	}
	host, wildcardSubs := strings.CutPrefix(str, wildcardSeq)
	host, rest, ok := scanHost(host)
	if !ok {
		return "", 0, "", invalidOriginPatternError(rawPattern)
	}
	// If the rightmost label starts with a digit, assume an IPv4 address,
	// since no TLD starts with a digit
	// (see https://www.iana.org/domains/root/db).
	if _, label, _ := lastCutByte(host, labelSep); label != "" && isDigit(label[0]) {
		if wildcardSubs {
			return "", 0, "", invalidOriginPatternError(rawPattern)
		}
		ip, err := netip.ParseAddr(host)
		if err != nil || !ip.Is4() {
			return "", 0, "", invalidOriginPatternError(rawPattern)
		}
		return host, IP, rest, nil
	}
	if wildcardSubs && len(host) > maxHostLen-len(wildcardSeq) {
		return "", 0, "", invalidOriginPatternError(rawPattern)
	}
	profileOnce.Do(initProfile)
	if ascii, err := profile.ToASCII(host); err != nil || ascii != host {
		return "", 0, "", prohibitedOriginPatternError(rawPattern)
	}
	if wildcardSubs {
		kind = ArbitrarySubdomains
	}
	return host, kind, rest, nil
}

// lastCutByte slices s around the last instance of sep, returning the text
// before and after sep. The found result reports whether sep appears in s.
// If sep does not appear in s, lastCutByte returns "", s, false.
func lastCutByte(s string, sep byte) (before, after string, found bool) {
	if i := strings.LastIndexByte(s, sep); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return "", s, false
}

var (
	profileOnce sync.Once     // guards init of profile via initProfile
	profile     *idna.Profile // lazily initialized
)

func initProfile() {
	profile = idna.New(
		idna.BidiRule(),
		idna.ValidateLabels(true),
		idna.StrictDomainName(true),
		idna.VerifyDNSLength(true),
	)
}

// isDefaultPortForScheme returns true for the following combinations
//   - (https, 443)
//   - (http, 80)
//
// and false otherwise.
func isDefaultPortForScheme(scheme string, port int) bool {
	return port == 80 && scheme == "http" ||
		port == 443 && scheme == "https"
}

// Matches reports whether p encompasses o.
func (p *Pattern) Matches(o *Origin) bool {
	if o.Scheme != p.Scheme {
		return false
	}
	if p.Port != arbitraryPort && o.Port != p.Port {
		return false
	}
	if p.Kind != ArbitrarySubdomains {
		return o.Host == p.Host
	}
	// At least one non-empty label must precede the base domain.
	n := len(o.Host) - len(p.Host)
	return n > 1 &&
		o.Host[n-1] == labelSep &&
		o.Host[n-2] != labelSep &&
		o.Host[n:] == p.Host
}

// HostIsEffectiveTLD reports whether p's host is an effective top-level
// domain (eTLD), also known as [public suffix].
//
// [public suffix]: https://publicsuffix.org/list/
func (p *Pattern) HostIsEffectiveTLD() bool {
	if p.Kind == IP {
		return false
	}
	// For cases like of a Web origin that ends with a full stop,
	// we need to trim the latter for this check.
	host := strings.TrimSuffix(p.Host, string(labelSep))
	// We ignore the second (boolean) result because
	// it's false for some listed eTLDs (e.g. github.io).
	etld, _ := publicsuffix.PublicSuffix(host)
	return etld == host
}

// String returns the serialized form of p, i.e. the origin pattern that
// [ParsePattern] parsed p from.
func (p *Pattern) String() string {
	var sb strings.Builder
	sb.WriteString(p.Scheme)
	sb.WriteString(schemeHostSep)
	switch {
	case p.Kind == ArbitrarySubdomains:
		sb.WriteString(wildcardSeq)
		sb.WriteString(p.Host)
	case p.Kind == IP && strings.IndexByte(p.Host, hostPortSep) >= 0:
		sb.WriteByte('[')
		sb.WriteString(p.Host)
		sb.WriteByte(']')
	default:
		sb.WriteString(p.Host)
	}
	switch p.Port {
	case absentPort:
	case arbitraryPort:
		sb.WriteByte(hostPortSep)
		sb.WriteString(portWildcard)
	default:
		sb.WriteByte(hostPortSep)
		sb.WriteString(strconv.Itoa(p.Port))
	}
	return sb.String()
}
