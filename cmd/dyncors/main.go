// Command dyncors serves HTTP traffic behind a dyncors CORS middleware
// and evaluates CORS policies against synthetic requests.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPaths []string
	logLevel    string
	logFormat   string
}

func (o *rootOptions) newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", o.logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(o.logFormat) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", o.logFormat)
	}
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	root := &cobra.Command{
		Use:           "dyncors",
		Short:         "Per-request CORS policy evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringSliceVarP(&opts.configPaths, "config", "c", nil, "Config files (TOML, YAML or JSON), later ones overlaying earlier ones (overrides env DYNCORS_CONFIG)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(newServeCmd(&opts), newEvalCmd(&opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dyncors:", err)
		os.Exit(1)
	}
}
