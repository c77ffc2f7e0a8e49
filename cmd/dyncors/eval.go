package main

import (
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/jub0bs/dyncors"
	"github.com/jub0bs/dyncors/internal/config"
	"github.com/spf13/cobra"
)

type evalOptions struct {
	method  string
	origin  string
	headers []string
}

func newEvalCmd(root *rootOptions) *cobra.Command {
	var opts evalOptions
	cmd := &cobra.Command{
		Use:   "eval [URL]",
		Short: "Evaluate the CORS policy against a synthetic request",
		Example: `  dyncors eval -c cors.toml -X OPTIONS --origin https://example.com \
    -H 'Access-Control-Request-Method: PUT' https://api.example.com/users`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, err := config.Load(root.configPaths...)
			if err != nil {
				return err
			}
			mw, err := newMiddleware(cfg, logger)
			if err != nil {
				return err
			}
			target := "http://localhost/"
			if len(args) > 0 {
				target = args[0]
			}
			req, err := opts.newRequest(cmd, target)
			if err != nil {
				return err
			}
			ev, err := mw.Evaluate(req.Context(), req)
			if err != nil {
				return fmt.Errorf("origin resolution: %w", err)
			}
			printEvaluation(cmd.OutOrStdout(), ev)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.method, "method", "X", http.MethodGet, "Request method")
	flags.StringVar(&opts.origin, "origin", "", "Value of the request's Origin header")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, `Request header, as "Name: value" (repeatable)`)
	return cmd
}

func (o *evalOptions) newRequest(cmd *cobra.Command, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), o.method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	for _, h := range o.headers {
		name, value, found := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid header %q: want \"Name: value\"", h)
		}
		req.Header.Add(name, strings.TrimSpace(value))
	}
	if o.origin != "" {
		req.Header.Set("Origin", o.origin)
	}
	return req, nil
}

func printEvaluation(w io.Writer, ev *dyncors.Evaluation) {
	if ev == nil {
		fmt.Fprintln(w, "state: pass-through (no CORS policy)")
		return
	}
	if origin, allowed := ev.Decision.Origin(); allowed {
		fmt.Fprintf(w, "decision: allow %s\n", origin)
	} else {
		fmt.Fprintln(w, "decision: deny")
	}
	fmt.Fprintf(w, "state: %s\n", ev.State)
	if ev.State == dyncors.ShortCircuited {
		fmt.Fprintf(w, "status: %d\n", ev.Status)
	}
	for _, name := range slices.Sorted(maps.Keys(ev.Header)) {
		for _, v := range ev.Header[name] {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
}
