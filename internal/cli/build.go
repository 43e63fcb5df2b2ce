package cli

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"visitor-tracker/internal/config"
	"visitor-tracker/internal/logger"
	"visitor-tracker/middleware/ratelimit/domain"
	"visitor-tracker/middleware/ratelimit/infra"
	"visitor-tracker/notify"
	"visitor-tracker/session"
	visitdomain "visitor-tracker/visitlog/domain"
	visitinfra "visitor-tracker/visitlog/infra"
)

// rateStore é o que todos os backends de janela implementam.
type rateStore interface {
	domain.WindowStore
	domain.Admin
}

// deps guarda as conexões abertas para fechar no fim.
type deps struct {
	rdb     *redis.Client
	closers []func() error
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func (d *deps) redisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if d.rdb != nil {
		return d.rdb, nil
	}
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis.url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	d.rdb = rdb
	d.closers = append(d.closers, rdb.Close)
	return rdb, nil
}

func (d *deps) rateStore(ctx context.Context, cfg *config.Config) (rateStore, error) {
	switch cfg.RateLimit.Backend {
	case "memory":
		return infra.NewMemoryStore(), nil
	case "redis":
		rdb, err := d.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return infra.NewRedisStore(rdb), nil
	default:
		return infra.NewFileStore(cfg.RateLimitPath()), nil
	}
}

// stats devolve o store configurado (nil para "none") e quem sabe fazer Snapshot.
func (d *deps) stats(ctx context.Context, cfg *config.Config) (domain.StatsStore, infra.StatsSnapshotter, error) {
	rl := cfg.RateLimit
	switch rl.Stats {
	case "memory":
		s := infra.NewMemoryStatsStore(infra.WithTrackKeys(rl.StatsTrackKeys))
		return s, s, nil
	case "redis":
		rdb, err := d.redisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		s := infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(rl.StatsPrefix),
			infra.WithStatsTTL(rl.StatsTTL),
			infra.WithStatsBucket(rl.StatsBucket),
			infra.WithStatsTrackKeys(rl.StatsTrackKeys),
		)
		return s, s, nil
	default:
		return nil, nil, nil
	}
}

func (d *deps) sessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if cfg.Session.Backend == "redis" {
		rdb, err := d.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return session.NewRedisStore(rdb, cfg.Session.TTL), nil
	}
	s := session.NewMemoryStore(cfg.Session.TTL)
	s.StartJanitor(ctx, time.Minute)
	return s, nil
}

func (d *deps) visitLog(ctx context.Context, cfg *config.Config) (visitdomain.Log, error) {
	switch cfg.VisitLog.Backend {
	case "redis":
		rdb, err := d.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return visitinfra.NewRedisLog(rdb, ""), nil
	case "postgres":
		l, err := visitinfra.OpenSQLLog(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, l.Close)
		if err := l.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return l, nil
	default:
		return visitinfra.NewFileLog(cfg.VisitLogPath()), nil
	}
}

func notifier(cfg *config.Config, log *logger.Logger) visitdomain.Notifier {
	n := cfg.Notify
	if !n.Enabled {
		return nil
	}
	tpl := notify.Template{
		From:           n.From,
		To:             n.To,
		CCEnabled:      n.CCEnabled,
		CC:             n.CC,
		Subject:        n.Subject,
		Body:           n.Message,
		IncludeDetails: n.IncludeDetails,
	}

	var inner visitdomain.Notifier
	if n.SMTPAddr == "" {
		log.Warn("notify.smtp_addr not set, notifications go to the log")
		inner = &notify.LogNotifier{Log: log, Template: tpl}
	} else {
		inner = &notify.SMTPNotifier{
			Addr:     n.SMTPAddr,
			Username: n.SMTPUsername,
			Password: n.SMTPPassword,
			Template: tpl,
		}
	}
	return notify.NewThrottled(inner, n.PerMinute)
}

func upstreamURL(cfg *config.Config) (*url.URL, error) {
	if cfg.UpstreamURL == "" {
		return nil, nil
	}
	u, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream_url: %w", err)
	}
	return u, nil
}

func logStartup(log *logger.Logger, cfg *config.Config) {
	log.Info("visitortracker starting",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("ops_addr", cfg.OpsAddr),
		zap.String("upstream", cfg.UpstreamURL),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.String("rate_backend", cfg.RateLimit.Backend),
		zap.Int("rate_limit_max", cfg.RateLimit.Limit),
		zap.Duration("rate_window", cfg.RateLimit.Window),
		zap.String("visit_log_backend", cfg.VisitLog.Backend),
		zap.String("session_backend", cfg.Session.Backend),
		zap.Bool("notify", cfg.Notify.Enabled),
		zap.Int("concurrency_max", cfg.Concurrency.Max),
	)
}
