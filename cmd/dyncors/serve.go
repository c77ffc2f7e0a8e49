package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jub0bs/dyncors"
	"github.com/jub0bs/dyncors/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve HTTP traffic behind the CORS middleware",
		Long: `Serve HTTP traffic behind the CORS middleware.

Requests are proxied to the configured upstream, or answered by a
built-in echo handler if no upstream is set. Send SIGHUP to reload
the CORS policy from the config files without dropping connections.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := opts.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts.configPaths, logger)
		},
	}
}

func runServe(ctx context.Context, paths []string, logger *slog.Logger) error {
	cfg, err := config.Load(paths...)
	if err != nil {
		return err
	}
	mw, err := newMiddleware(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newServerHandler(mw, cfg.Server.UpstreamURL(), logger),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr, "upstream", cfg.Server.Upstream)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeoutDuration())
		defer cancel()
		logger.Info("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		reloadOnHangup(gctx, paths, mw, logger)
		return nil
	})
	return g.Wait()
}

func newMiddleware(cfg *config.Config, logger *slog.Logger) (*dyncors.Middleware, error) {
	mw, err := dyncors.NewMiddleware(dyncors.ParseSettings(cfg.CORS, logger))
	if err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}
	return mw, nil
}

func newServerHandler(mw *dyncors.Middleware, upstream *url.URL, logger *slog.Logger) http.Handler {
	var h http.Handler = http.HandlerFunc(handleEcho)
	if upstream != nil {
		h = newProxy(upstream, logger)
	}
	return h2c.NewHandler(requestLogger(logger)(mw.Wrap(h)), &http2.Server{})
}

func reloadOnHangup(ctx context.Context, paths []string, mw *dyncors.Middleware, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := reload(paths, mw, logger); err != nil {
				logger.Error("CORS policy reload failed; keeping current policy", "error", err)
				continue
			}
			logger.Info("CORS policy reloaded")
		}
	}
}

// reload only updates the CORS policy; server settings require a restart.
func reload(paths []string, mw *dyncors.Middleware, logger *slog.Logger) error {
	cfg, err := config.Load(paths...)
	if err != nil {
		return err
	}
	settings := dyncors.ParseSettings(cfg.CORS, logger)
	return mw.Reconfigure(&settings)
}

// newProxy forwards requests to upstream. CORS headers set by upstream
// are dropped: the middleware owns them.
func newProxy(upstream *url.URL, logger *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		ModifyResponse: func(res *http.Response) error {
			for name := range res.Header {
				if strings.HasPrefix(name, "Access-Control-") {
					delete(res.Header, name)
				}
			}
			return nil
		},
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

func handleEcho(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Method string `json:"method"`
		Path   string `json:"path"`
		Origin string `json:"origin,omitempty"`
	}{
		Method: r.Method,
		Path:   r.URL.Path,
		Origin: r.Header.Get("Origin"),
	})
}
