package cfgerrors_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/jub0bs/dyncors/cfgerrors"
)

func TestAll(t *testing.T) {
	missing := &cfgerrors.UnacceptableOriginPatternError{Reason: "missing"}
	null := &cfgerrors.UnacceptableOriginPatternError{Value: "null", Reason: "prohibited"}
	psl := &cfgerrors.IncompatibleOriginPatternError{Value: "https://*.com", Reason: "psl"}
	status := &cfgerrors.DenyStatusOutOfBoundsError{Value: 42, Min: 100, Max: 599}
	cases := []struct {
		desc string
		err  error
		stop error // error on which iteration stops (if any)
		want []error
	}{
		{
			desc: "nil",
			want: []error{nil},
		}, {
			desc: "unjoined",
			err:  status,
			want: []error{status},
		}, {
			desc: "joined singleton",
			err:  errors.Join(missing),
			want: []error{missing},
		}, {
			desc: "joined singleton with early break",
			err:  errors.Join(missing),
			stop: missing,
			want: []error{},
		}, {
			desc: "allow-list errors",
			err:  errors.Join(null, psl),
			want: []error{null, psl},
		}, {
			desc: "allow-list errors with early break",
			err:  errors.Join(null, psl),
			stop: psl,
			want: []error{null},
		}, {
			desc: "allow-list and middleware errors",
			err:  errors.Join(errors.Join(null, psl), errors.Join(status)),
			want: []error{null, psl, status},
		},
	}
	for _, tc := range cases {
		f := func(t *testing.T) {
			got := []error{}
			for err := range cfgerrors.All(tc.err) {
				if tc.stop != nil && err == tc.stop {
					break
				}
				got = append(got, err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("got %v; want %v", got, tc.want)
			}
		}
		t.Run(tc.desc, f)
	}
}

func TestPackageNamePrefixInErrorMessages(t *testing.T) {
	errs := []error{
		&cfgerrors.UnacceptableOriginPatternError{Reason: "missing"},
		&cfgerrors.UnacceptableOriginPatternError{Value: "foo", Reason: "invalid"},
		&cfgerrors.UnacceptableOriginPatternError{Value: "null", Reason: "prohibited"},
		&cfgerrors.IncompatibleOriginPatternError{Value: "https://*.com", Reason: "psl"},
		&cfgerrors.IncompatibleOriginPatternError{Reason: "unknown"},
		&cfgerrors.DenyStatusOutOfBoundsError{Value: 42, Min: 100, Max: 599},
	}
	const wantPrefix = "dyncors: "
	for _, err := range errs {
		if msg := err.Error(); !strings.HasPrefix(msg, wantPrefix) {
			t.Errorf("missing package-name prefix in %q", msg)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{
			err:  &cfgerrors.UnacceptableOriginPatternError{Reason: "missing"},
			want: "dyncors: at least one origin pattern must be specified",
		}, {
			err:  &cfgerrors.UnacceptableOriginPatternError{Value: "https://exa mple.com", Reason: "invalid"},
			want: `dyncors: invalid origin pattern "https://exa mple.com"`,
		}, {
			err:  &cfgerrors.DenyStatusOutOfBoundsError{Value: 1000, Min: 100, Max: 599},
			want: "dyncors: out-of-bounds deny status 1000 (min: 100; max: 599; 0 lets denied requests through)",
		},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("got %q; want %q", got, tc.want)
		}
	}
}

// comparability checks
var (
	_ map[cfgerrors.UnacceptableOriginPatternError]struct{}
	_ map[cfgerrors.IncompatibleOriginPatternError]struct{}
	_ map[cfgerrors.DenyStatusOutOfBoundsError]struct{}
)
