package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-dossier/infrastructure/middleware"
	"github.com/ahrav/go-dossier/internal/api"
	"github.com/ahrav/go-dossier/internal/ports"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve POST /api/query, GET /api/stats, GET /api/share, GET /healthz and,
when enabled, Prometheus metrics. The server refuses to start when a
credential for a configured provider is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.bindFlag(cmd, "server.addr", "addr"); err != nil {
				return err
			}
			return a.serve(cmd)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	cfg, err := a.config(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, a.logger)
	if err != nil {
		a.logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			a.logger.Warn("flush traces", "error", err)
		}
	}()

	var (
		collector ports.MetricsCollector
		prom      *middleware.PrometheusMetrics
	)
	if cfg.Metrics.Enabled {
		prom = middleware.NewPrometheusMetrics(nil)
		collector = prom
	}

	svc, err := buildQueryService(cfg, a.logger, collector)
	if err != nil {
		return err
	}

	opts := api.Options{
		Addr:              cfg.Server.Addr,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		PublicURL:         cfg.Server.PublicURL,
		CORSOrigin:        cfg.Server.CORSOrigin,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		MetricsPath:       cfg.Metrics.Path,
		Limiter:           buildLimiter(cfg.RateLimit, a.logger, collector),
		Logger:            a.logger,
	}
	if prom != nil {
		opts.Metrics = prom.Handler()
	}
	srv := api.NewServer(svc, opts)

	l, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "dossier %s listening on %s\n", Version, l.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(l)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
