// Package config carrega a configuração do visitortracker: defaults, arquivo YAML
// opcional, .env e variáveis de ambiente VISITOR_* (nessa ordem de precedência crescente).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "VISITOR"

var ErrInvalid = errors.New("invalid config")

type Config struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	OpsAddr     string `mapstructure:"ops_addr"`
	UpstreamURL string `mapstructure:"upstream_url"`
	LogLevel    string `mapstructure:"log_level"`
	Timezone    string `mapstructure:"timezone"`

	Storage     Storage     `mapstructure:"storage"`
	Redis       Redis       `mapstructure:"redis"`
	Postgres    Postgres    `mapstructure:"postgres"`
	RateLimit   RateLimit   `mapstructure:"rate_limit"`
	ClientIP    ClientIP    `mapstructure:"client_ip"`
	Session     Session     `mapstructure:"session"`
	VisitLog    VisitLog    `mapstructure:"visit_log"`
	Notify      Notify      `mapstructure:"notify"`
	Concurrency Concurrency `mapstructure:"concurrency"`
}

type Storage struct {
	Dir           string `mapstructure:"dir"`
	VisitLogFile  string `mapstructure:"visit_log_file"`
	RateLimitFile string `mapstructure:"rate_limit_file"`
}

type Redis struct {
	URL string `mapstructure:"url"`
}

type Postgres struct {
	DSN string `mapstructure:"dsn"`
}

type RateLimit struct {
	Enabled        bool          `mapstructure:"enabled"`
	Backend        string        `mapstructure:"backend"`
	Limit          int           `mapstructure:"limit"`
	Window         time.Duration `mapstructure:"window"`
	KeyHeader      string        `mapstructure:"key_header"`
	FailClosed     bool          `mapstructure:"fail_closed"`
	Headers        bool          `mapstructure:"headers"`
	Stats          string        `mapstructure:"stats"`
	StatsPrefix    string        `mapstructure:"stats_prefix"`
	StatsTTL       time.Duration `mapstructure:"stats_ttl"`
	StatsBucket    string        `mapstructure:"stats_bucket"`
	StatsTrackKeys bool          `mapstructure:"stats_track_keys"`
}

type ClientIP struct {
	Sources []string `mapstructure:"sources"`
}

type Session struct {
	Backend    string        `mapstructure:"backend"`
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type VisitLog struct {
	Backend         string `mapstructure:"backend"`
	ContinueOnError bool   `mapstructure:"continue_on_error"`
}

type Notify struct {
	Enabled        bool   `mapstructure:"enabled"`
	SMTPAddr       string `mapstructure:"smtp_addr"`
	SMTPUsername   string `mapstructure:"smtp_username"`
	SMTPPassword   string `mapstructure:"smtp_password"`
	From           string `mapstructure:"from"`
	To             string `mapstructure:"to"`
	CCEnabled      bool   `mapstructure:"cc_enabled"`
	CC             string `mapstructure:"cc"`
	Subject        string `mapstructure:"subject"`
	Message        string `mapstructure:"message"`
	IncludeDetails bool   `mapstructure:"include_details"`
	PerMinute      int    `mapstructure:"per_minute"`
}

type Concurrency struct {
	Max     int           `mapstructure:"max"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("ops_addr", ":9090")
	v.SetDefault("upstream_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "Local")

	v.SetDefault("storage.dir", "./logs")
	v.SetDefault("storage.visit_log_file", "visitor.json")
	v.SetDefault("storage.rate_limit_file", "rate_limit.json")

	v.SetDefault("redis.url", "")
	v.SetDefault("postgres.dsn", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "file")
	v.SetDefault("rate_limit.limit", 100)
	v.SetDefault("rate_limit.window", time.Hour)
	v.SetDefault("rate_limit.key_header", "")
	v.SetDefault("rate_limit.fail_closed", false)
	v.SetDefault("rate_limit.headers", false)
	v.SetDefault("rate_limit.stats", "none")
	v.SetDefault("rate_limit.stats_prefix", "ratelimit:stats")
	v.SetDefault("rate_limit.stats_ttl", 24*time.Hour)
	v.SetDefault("rate_limit.stats_bucket", "minute")
	v.SetDefault("rate_limit.stats_track_keys", false)

	v.SetDefault("client_ip.sources", []string{
		"Client-IP", "X-Forwarded-For", "X-Forwarded", "Forwarded-For", "Forwarded", "remote-addr",
	})

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.cookie_name", "VTSESSID")
	v.SetDefault("session.ttl", 30*time.Minute)

	v.SetDefault("visit_log.backend", "file")
	v.SetDefault("visit_log.continue_on_error", false)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.smtp_addr", "")
	v.SetDefault("notify.smtp_username", "")
	v.SetDefault("notify.smtp_password", "")
	v.SetDefault("notify.from", "sender-email@example.com")
	v.SetDefault("notify.to", "your-email@example.com")
	v.SetDefault("notify.cc_enabled", false)
	v.SetDefault("notify.cc", "")
	v.SetDefault("notify.subject", "New Visitor Alert")
	v.SetDefault("notify.message", "A new visitor has accessed the site.")
	v.SetDefault("notify.include_details", false)
	v.SetDefault("notify.per_minute", 60)

	v.SetDefault("concurrency.max", 100)
	v.SetDefault("concurrency.timeout", time.Duration(0))
}

// Options controla de onde Load lê.
type Options struct {
	// File é um YAML opcional; vazio pula o arquivo.
	File string
	// EnvFile é carregado com godotenv se existir (padrão ".env").
	EnvFile string
}

// Load monta e valida a configuração.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	rl := c.RateLimit
	if rl.Limit <= 0 {
		return invalid("rate_limit.limit must be > 0")
	}
	if rl.Window < time.Second {
		return invalid("rate_limit.window must be at least 1s")
	}
	if !oneOf(rl.Backend, "file", "memory", "redis") {
		return invalid("rate_limit.backend %q (want file, memory or redis)", rl.Backend)
	}
	if !oneOf(rl.Stats, "none", "memory", "redis") {
		return invalid("rate_limit.stats %q (want none, memory or redis)", rl.Stats)
	}
	if !oneOf(rl.StatsBucket, "minute", "none") {
		return invalid("rate_limit.stats_bucket %q (want minute or none)", rl.StatsBucket)
	}
	if !oneOf(c.Session.Backend, "memory", "redis") {
		return invalid("session.backend %q (want memory or redis)", c.Session.Backend)
	}
	if !oneOf(c.VisitLog.Backend, "file", "redis", "postgres") {
		return invalid("visit_log.backend %q (want file, redis or postgres)", c.VisitLog.Backend)
	}
	if c.NeedsRedis() && strings.TrimSpace(c.Redis.URL) == "" {
		return invalid("redis.url is required by the selected backends")
	}
	if c.VisitLog.Backend == "postgres" && strings.TrimSpace(c.Postgres.DSN) == "" {
		return invalid("postgres.dsn is required when visit_log.backend=postgres")
	}
	if c.UpstreamURL != "" {
		u, err := url.Parse(c.UpstreamURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("upstream_url %q is not an absolute URL", c.UpstreamURL)
		}
	}
	if c.Notify.Enabled && c.Notify.SMTPAddr != "" && strings.TrimSpace(c.Notify.To) == "" {
		return invalid("notify.to is required when smtp_addr is set")
	}
	if c.Concurrency.Max < 0 {
		return invalid("concurrency.max must be >= 0")
	}
	if _, err := c.Location(); err != nil {
		return invalid("timezone %q: %v", c.Timezone, err)
	}
	return nil
}

// NeedsRedis diz se algum backend configurado usa Redis.
func (c *Config) NeedsRedis() bool {
	return (c.RateLimit.Enabled && (c.RateLimit.Backend == "redis" || c.RateLimit.Stats == "redis")) ||
		c.Session.Backend == "redis" ||
		c.VisitLog.Backend == "redis"
}

// Location resolve Timezone ("Local" e "" usam o fuso do sistema).
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// VisitLogPath e RateLimitPath juntam o diretório de storage ao nome do arquivo.
func (c *Config) VisitLogPath() string  { return filepath.Join(c.Storage.Dir, c.Storage.VisitLogFile) }
func (c *Config) RateLimitPath() string { return filepath.Join(c.Storage.Dir, c.Storage.RateLimitFile) }
