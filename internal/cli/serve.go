package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"visitor-tracker/internal/config"
	"visitor-tracker/internal/logger"
	"visitor-tracker/internal/metrics"
	"visitor-tracker/internal/server"
	"visitor-tracker/internal/storage"
	"visitor-tracker/middleware/clientip"
	"visitor-tracker/middleware/ratelimit"
	"visitor-tracker/middleware/ratelimit/domain"
	"visitor-tracker/middleware/ratelimit/infra"
	"visitor-tracker/session"
	"visitor-tracker/visitlog"
	"visitor-tracker/visitlog/application"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the tracking listener and the ops listener",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	logStartup(log, cfg)

	if err := storage.Prepare(cfg.Storage.Dir); err != nil {
		return err
	}

	d := &deps{}
	defer d.Close()

	opts, err := buildOptions(ctx, cfg, log, d)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	public := server.NewHTTPServer(cfg.ListenAddr, server.NewPublic(opts))
	g.Go(func() error { return server.Run(gctx, public, log.WithField("listener", "public")) })
	if cfg.OpsAddr != "" {
		ops := server.NewHTTPServer(cfg.OpsAddr, server.NewOps(opts))
		g.Go(func() error { return server.Run(gctx, ops, log.WithField("listener", "ops")) })
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("visitortracker stopped")
	return nil
}

func buildOptions(ctx context.Context, cfg *config.Config, log *logger.Logger, d *deps) (server.Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return server.Options{}, err
	}

	opts := server.Options{
		Logger:   log,
		Metrics:  metrics.New(),
		ClientIP: clientip.Resolver{Sources: clientip.ParseSources(cfg.ClientIP.Sources)},
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.Concurrency.Max,
			AcquireTimeout: cfg.Concurrency.Timeout,
		},
	}

	if cfg.RateLimit.Enabled {
		store, err := d.rateStore(ctx, cfg)
		if err != nil {
			return server.Options{}, err
		}
		if ms, ok := store.(*infra.MemoryStore); ok {
			ms.StartJanitor(ctx)
		}
		stats, snap, err := d.stats(ctx, cfg)
		if err != nil {
			return server.Options{}, err
		}
		opts.Stats = snap
		opts.RateLimit = &ratelimit.Options{
			Store:               store,
			Policy:              domain.Policy{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window},
			Stats:               stats,
			KeyHeader:           cfg.RateLimit.KeyHeader,
			AddRateLimitHeaders: cfg.RateLimit.Headers,
			FailClosed:          cfg.RateLimit.FailClosed,
		}
	}

	sess, err := d.sessionStore(ctx, cfg)
	if err != nil {
		return server.Options{}, err
	}
	opts.Session = session.Options{
		Store:      sess,
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
	}

	vlog, err := d.visitLog(ctx, cfg)
	if err != nil {
		return server.Options{}, err
	}
	opts.VisitLog = visitlog.Options{
		Service: application.Service{
			Log:      vlog,
			Notifier: notifier(cfg, log),
			Location: loc,
		},
		ContinueOnError: cfg.VisitLog.ContinueOnError,
	}

	if opts.Upstream, err = upstreamURL(cfg); err != nil {
		return server.Options{}, err
	}

	log.Debug("server options ready", zap.Bool("stats_endpoint", opts.Stats != nil))
	return opts, nil
}
