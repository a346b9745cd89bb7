package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
)

// Config holds service configuration.
type Config struct {
	StoreDriver string
	DatabaseURL string
	BoltPath    string
	ServerAddr  string
	LogLevel    string

	BackendURL          string
	BackendToken        string
	BackendTimeout      time.Duration
	BackendShortTimeout time.Duration

	HeartbeatInterval   time.Duration
	StreamIdleTimeout   time.Duration
	OutboxFlushInterval time.Duration
	OutboxMaxBackoff    time.Duration
	OnlinePullInterval  time.Duration
	OfflinePullInterval time.Duration
	SweepInterval       time.Duration
	CommandTimeout      time.Duration

	CampaignRequireOnline bool
	// APITokens maps token names to bcrypt hashes.
	APITokens map[string]string
}

var defaults = map[string]any{
	"store_driver":            StorePostgres,
	"bolt_path":               "data/fleetdispatch.db",
	"server_addr":             "0.0.0.0:8080",
	"log_level":               "info",
	"backend_timeout":         "30s",
	"backend_short_timeout":   "5s",
	"heartbeat_interval":      "30s",
	"stream_idle_timeout":     "8h",
	"outbox_flush_interval":   "1m",
	"outbox_max_backoff":      "0s",
	"online_pull_interval":    "2s",
	"offline_pull_interval":   "1h",
	"timeout_sweep_interval":  "1h",
	"command_timeout":         "24h",
	"campaign_require_online": false,
	"postgres_user":           "fleetdispatch",
	"postgres_password":       "fleetdispatch",
	"postgres_db":             "fleetdispatch",
	"postgres_host":           "localhost",
	"postgres_port":           "5432",
	"database_sslmode":        "disable",
}

// Load reads configuration from environment, an optional config file and
// any flags bound from the command line. Environment keys are the upper-case
// forms (DATABASE_URL, SERVER_ADDR, ...).
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	dsn := v.GetString("database_url")
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			v.GetString("postgres_user"), v.GetString("postgres_password"),
			v.GetString("postgres_host"), v.GetString("postgres_port"),
			v.GetString("postgres_db"), v.GetString("database_sslmode"))
	}

	tokens, err := parseTokens(v.GetString("api_tokens"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StoreDriver:           strings.ToLower(v.GetString("store_driver")),
		DatabaseURL:           dsn,
		BoltPath:              v.GetString("bolt_path"),
		ServerAddr:            v.GetString("server_addr"),
		LogLevel:              v.GetString("log_level"),
		BackendURL:            strings.TrimRight(v.GetString("backend_url"), "/"),
		BackendToken:          v.GetString("backend_token"),
		BackendTimeout:        v.GetDuration("backend_timeout"),
		BackendShortTimeout:   v.GetDuration("backend_short_timeout"),
		HeartbeatInterval:     v.GetDuration("heartbeat_interval"),
		StreamIdleTimeout:     v.GetDuration("stream_idle_timeout"),
		OutboxFlushInterval:   v.GetDuration("outbox_flush_interval"),
		OutboxMaxBackoff:      v.GetDuration("outbox_max_backoff"),
		OnlinePullInterval:    v.GetDuration("online_pull_interval"),
		OfflinePullInterval:   v.GetDuration("offline_pull_interval"),
		SweepInterval:         v.GetDuration("timeout_sweep_interval"),
		CommandTimeout:        v.GetDuration("command_timeout"),
		CampaignRequireOnline: v.GetBool("campaign_require_online"),
		APITokens:             tokens,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StorePostgres, StoreBolt:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	for name, d := range map[string]time.Duration{
		"heartbeat_interval":     c.HeartbeatInterval,
		"outbox_flush_interval":  c.OutboxFlushInterval,
		"online_pull_interval":   c.OnlinePullInterval,
		"offline_pull_interval":  c.OfflinePullInterval,
		"timeout_sweep_interval": c.SweepInterval,
		"command_timeout":        c.CommandTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// parseTokens reads comma separated name=hash pairs.
func parseTokens(raw string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, hash, ok := strings.Cut(pair, "=")
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("invalid api token entry %q", pair)
		}
		tokens[name] = hash
	}
	return tokens, nil
}
