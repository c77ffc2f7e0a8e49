package dyncors_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jub0bs/dyncors"
)

func TestOriginResolution(t *testing.T) {
	syncRes := dyncors.ResolverFunc(func(_ context.Context, r *http.Request) (dyncors.Decision, error) {
		if r.Header.Get(headerOrigin) == "https://example.com" {
			return dyncors.Allow("https://example.com"), nil
		}
		return dyncors.Deny(), nil
	})
	asyncRes := dyncors.AsyncResolverFunc(func(r *http.Request) <-chan dyncors.Outcome {
		ch := make(chan dyncors.Outcome, 1)
		origin := r.Header.Get(headerOrigin)
		go func() {
			ch <- dyncors.Outcome{Decision: dyncors.Allow(origin)}
		}()
		return ch
	})
	cases := []struct {
		desc       string
		origin     dyncors.Origin
		reqOrigin  string
		wantOrigin string
		wantAllow  bool
	}{
		{
			desc:       "zero value",
			reqOrigin:  "https://example.com",
			wantOrigin: wildcard,
			wantAllow:  true,
		}, {
			desc:       "any",
			origin:     dyncors.AnyOrigin(),
			reqOrigin:  "https://example.com",
			wantOrigin: wildcard,
			wantAllow:  true,
		}, {
			desc:       "fixed",
			origin:     dyncors.FixedOrigin("https://example.org"),
			reqOrigin:  "https://example.com",
			wantOrigin: "https://example.org",
			wantAllow:  true,
		}, {
			desc:       "fixed empty",
			origin:     dyncors.FixedOrigin(""),
			reqOrigin:  "https://example.com",
			wantOrigin: wildcard,
			wantAllow:  true,
		}, {
			desc:       "reflect with origin",
			origin:     dyncors.ReflectOrigin(),
			reqOrigin:  "https://example.com",
			wantOrigin: "https://example.com",
			wantAllow:  true,
		}, {
			desc:       "reflect without origin",
			origin:     dyncors.ReflectOrigin(),
			wantOrigin: wildcard,
			wantAllow:  true,
		}, {
			desc:      "deny",
			origin:    dyncors.DenyOrigin(),
			reqOrigin: "https://example.com",
		}, {
			desc:      "nil resolver",
			origin:    dyncors.DynamicOrigin(nil),
			reqOrigin: "https://example.com",
		}, {
			desc:       "synchronous resolver allows",
			origin:     dyncors.DynamicOrigin(syncRes),
			reqOrigin:  "https://example.com",
			wantOrigin: "https://example.com",
			wantAllow:  true,
		}, {
			desc:      "synchronous resolver denies",
			origin:    dyncors.DynamicOrigin(syncRes),
			reqOrigin: "https://example.org",
		}, {
			desc:       "asynchronous resolver",
			origin:     dyncors.DynamicOrigin(asyncRes),
			reqOrigin:  "https://example.com",
			wantOrigin: "https://example.com",
			wantAllow:  true,
		}, {
			desc:       "asynchronous resolver with empty decision",
			origin:     dyncors.DynamicOrigin(asyncRes),
			wantOrigin: wildcard,
			wantAllow:  true,
		},
	}
	for _, tc := range cases {
		f := func(t *testing.T) {
			mw, err := dyncors.NewMiddleware(dyncors.Config{Origin: tc.origin})
			if err != nil {
				t.Fatalf("failure to build CORS middleware: %v", err)
			}
			var reqHeaders http.Header
			if tc.reqOrigin != "" {
				reqHeaders = http.Header{headerOrigin: {tc.reqOrigin}}
			}
			req := newRequest("GET", reqHeaders)
			ev, err := mw.Evaluate(req.Context(), req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			origin, allowed := ev.Decision.Origin()
			if origin != tc.wantOrigin || allowed != tc.wantAllow {
				const tmpl = "got (%q, %t); want (%q, %t)"
				t.Errorf(tmpl, origin, allowed, tc.wantOrigin, tc.wantAllow)
			}
		}
		t.Run(tc.desc, f)
	}
}

func TestAsyncResolverFunc(t *testing.T) {
	t.Run("closed channel", func(t *testing.T) {
		f := dyncors.AsyncResolverFunc(func(*http.Request) <-chan dyncors.Outcome {
			ch := make(chan dyncors.Outcome)
			close(ch)
			return ch
		})
		d, err := f.ResolveOrigin(context.Background(), newRequest("GET", nil))
		if !errors.Is(err, dyncors.ErrNoOutcome) {
			t.Errorf("got error %v; want %v", err, dyncors.ErrNoOutcome)
		}
		if _, allowed := d.Origin(); allowed {
			t.Error("got allowing decision; want denying decision")
		}
	})
	t.Run("nil channel", func(t *testing.T) {
		f := dyncors.AsyncResolverFunc(func(*http.Request) <-chan dyncors.Outcome {
			return nil
		})
		d, err := f.ResolveOrigin(context.Background(), newRequest("GET", nil))
		if !errors.Is(err, dyncors.ErrNoOutcome) {
			t.Errorf("got error %v; want %v", err, dyncors.ErrNoOutcome)
		}
		if _, allowed := d.Origin(); allowed {
			t.Error("got allowing decision; want denying decision")
		}
	})
	t.Run("outcome with error", func(t *testing.T) {
		errBoom := errors.New("boom")
		f := dyncors.AsyncResolverFunc(func(*http.Request) <-chan dyncors.Outcome {
			ch := make(chan dyncors.Outcome, 1)
			ch <- dyncors.Outcome{Err: errBoom}
			return ch
		})
		_, err := f.ResolveOrigin(context.Background(), newRequest("GET", nil))
		if err != errBoom {
			t.Errorf("got error %v; want %v", err, errBoom)
		}
	})
	t.Run("deadline exceeded", func(t *testing.T) {
		f := dyncors.AsyncResolverFunc(func(*http.Request) <-chan dyncors.Outcome {
			return make(chan dyncors.Outcome) // never delivers
		})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := f.ResolveOrigin(ctx, newRequest("GET", nil))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("got error %v; want %v", err, context.DeadlineExceeded)
		}
	})
}

func TestDecision(t *testing.T) {
	cases := []struct {
		desc       string
		d          dyncors.Decision
		wantOrigin string
		wantAllow  bool
	}{
		{desc: "zero value"},
		{desc: "deny", d: dyncors.Deny()},
		{
			desc:       "allow",
			d:          dyncors.Allow("https://example.com"),
			wantOrigin: "https://example.com",
			wantAllow:  true,
		}, {
			desc:       "allow empty",
			d:          dyncors.Allow(""),
			wantOrigin: wildcard,
			wantAllow:  true,
		},
	}
	for _, tc := range cases {
		f := func(t *testing.T) {
			origin, allowed := tc.d.Origin()
			if origin != tc.wantOrigin || allowed != tc.wantAllow {
				const tmpl = "got (%q, %t); want (%q, %t)"
				t.Errorf(tmpl, origin, allowed, tc.wantOrigin, tc.wantAllow)
			}
		}
		t.Run(tc.desc, f)
	}
}

func TestOriginString(t *testing.T) {
	cases := []struct {
		origin dyncors.Origin
		want   string
	}{
		{dyncors.Origin{}, "*"},
		{dyncors.AnyOrigin(), "*"},
		{dyncors.FixedOrigin("*"), "*"},
		{dyncors.FixedOrigin("https://example.com"), "https://example.com"},
		{dyncors.ReflectOrigin(), "reflect"},
		{dyncors.DenyOrigin(), "deny"},
		{dyncors.DynamicOrigin(nil), "deny"},
		{dyncors.DynamicOrigin(dyncors.ResolverFunc(nil)), "dynamic"},
	}
	for _, tc := range cases {
		if got := tc.origin.String(); got != tc.want {
			t.Errorf("got %q; want %q", got, tc.want)
		}
	}
}
