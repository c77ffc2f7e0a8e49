package origins_test

import (
	"strings"
	"testing"

	"github.com/jub0bs/dyncors/internal/origins"
)

func FuzzPatternWithoutWildcardMatchesItself(f *testing.F) {
	for _, c := range parsePatternCases {
		f.Add(c.input)
	}
	for _, c := range parseCases {
		f.Add(c.input)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		p, err := origins.ParsePattern(raw)
		if err != nil ||
			p.Kind == origins.ArbitrarySubdomains ||
			strings.HasSuffix(raw, ":*") {
			t.Skip()
		}
		o, ok := origins.Parse(raw)
		if !ok {
			const tmpl = "pattern without wildcard %q fails to parse as an origin"
			t.Fatalf(tmpl, raw)
		}
		if !p.Matches(&o) {
			t.Errorf("pattern %q does not match origin %q", raw, raw)
		}
	})
}

func FuzzParsePatternRoundTrip(f *testing.F) {
	for _, c := range parsePatternCases {
		f.Add(c.input)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		p, err := origins.ParsePattern(raw)
		if err != nil {
			t.Skip()
		}
		if got := p.String(); got != raw {
			t.Errorf("ParsePattern(%q).String(): got %q", raw, got)
		}
	})
}
