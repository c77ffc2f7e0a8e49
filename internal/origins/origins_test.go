package origins_test

import (
	"testing"

	"github.com/jub0bs/dyncors/internal/origins"
)

var parseCases = []struct {
	desc    string
	input   string
	want    origins.Origin
	failure bool
}{
	{
		desc:    "empty",
		input:   "",
		failure: true,
	}, {
		desc:    "null origin",
		input:   "null",
		failure: true,
	}, {
		desc:    "no scheme-host separator",
		input:   "example.com",
		failure: true,
	}, {
		desc:    "uppercase scheme",
		input:   "HTTPS://example.com",
		failure: true,
	}, {
		desc:    "empty host",
		input:   "https://",
		failure: true,
	}, {
		desc:  "domain without port",
		input: "https://example.com",
		want: origins.Origin{
			Scheme: "https",
			Host:   "example.com",
		},
	}, {
		desc:  "domain with port",
		input: "http://localhost:8080",
		want: origins.Origin{
			Scheme: "http",
			Host:   "localhost",
			Port:   8080,
		},
	}, {
		desc:  "IPv4 with port",
		input: "http://127.0.0.1:9090",
		want: origins.Origin{
			Scheme: "http",
			Host:   "127.0.0.1",
			Port:   9090,
		},
	}, {
		desc:  "IPv6 with port",
		input: "http://[::1]:9090",
		want: origins.Origin{
			Scheme: "http",
			Host:   "::1",
			Port:   9090,
		},
	}, {
		desc:    "unmatched bracket",
		input:   "http://[::1:9090",
		failure: true,
	}, {
		desc:    "port zero",
		input:   "https://example.com:0",
		failure: true,
	}, {
		desc:    "port with leading zero",
		input:   "https://example.com:0443",
		failure: true,
	}, {
		desc:    "port too large",
		input:   "https://example.com:65536",
		failure: true,
	}, {
		desc:    "empty port",
		input:   "https://example.com:",
		failure: true,
	}, {
		desc:    "path",
		input:   "https://example.com/index.html",
		failure: true,
	}, {
		desc:    "trailing garbage after port",
		input:   "https://example.com:80a",
		failure: true,
	},
}

func TestParse(t *testing.T) {
	for _, tc := range parseCases {
		f := func(t *testing.T) {
			o, ok := origins.Parse(tc.input)
			if ok == tc.failure {
				const tmpl = "%q: got ok %t; want %t"
				t.Fatalf(tmpl, tc.input, ok, !tc.failure)
			}
			if !tc.failure && o != tc.want {
				const tmpl = "%q: got %#v; want %#v"
				t.Errorf(tmpl, tc.input, o, tc.want)
			}
		}
		t.Run(tc.desc, f)
	}
}
