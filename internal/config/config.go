// Package config loads GovGuard configuration from defaults, an optional
// YAML file and GOVGUARD_* environment variables, in that order of
// precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// GOVGUARD_SERVER_PORT overrides server.port.
const EnvPrefix = "GOVGUARD"

// Load reads configuration into a fresh domain.Config. An empty path
// searches ./govguard.yaml and $HOME/.config/govguard/govguard.yaml; a
// missing file is not an error unless path was given explicitly.
func Load(v *viper.Viper, path string) (*domain.Config, error) {
	if v == nil {
		v = viper.New()
	}

	SetDefaults(v, domain.DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("govguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/govguard")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SetDefaults registers every key of cfg so environment overrides apply
// even when no config file sets the key.
func SetDefaults(v *viper.Viper, cfg *domain.Config) {
	defaults := map[string]any{
		"server.host":          cfg.Server.Host,
		"server.port":          cfg.Server.Port,
		"server.read_timeout":  cfg.Server.ReadTimeout,
		"server.write_timeout": cfg.Server.WriteTimeout,

		"history.enabled":           cfg.History.Enabled,
		"history.driver":            cfg.History.Driver,
		"history.sqlite_path":       cfg.History.SQLitePath,
		"history.postgres_host":     cfg.History.PostgresHost,
		"history.postgres_port":     cfg.History.PostgresPort,
		"history.postgres_user":     cfg.History.PostgresUser,
		"history.postgres_password": cfg.History.PostgresPassword,
		"history.postgres_db":       cfg.History.PostgresDB,
		"history.postgres_ssl_mode": cfg.History.PostgresSSLMode,
		"history.max_open_conns":    cfg.History.MaxOpenConns,
		"history.max_idle_conns":    cfg.History.MaxIdleConns,
		"history.conn_max_lifetime": cfg.History.ConnMaxLifetime,
		"history.lookback":          cfg.History.Lookback,

		"cache.type":             cfg.Cache.Type,
		"cache.local_max_size":   cfg.Cache.LocalMaxSize,
		"cache.local_ttl":        cfg.Cache.LocalTTL,
		"cache.redis_addr":       cfg.Cache.RedisAddr,
		"cache.redis_password":   cfg.Cache.RedisPassword,
		"cache.redis_db":         cfg.Cache.RedisDB,
		"cache.enable_two_phase": cfg.Cache.EnableTwoPhase,
		"cache.replay_ttl":       cfg.Cache.ReplayTTL,

		"event_bus.type":                cfg.EventBus.Type,
		"event_bus.channel_buffer_size": cfg.EventBus.ChannelBufferSize,
		"event_bus.nats_url":            cfg.EventBus.NATSUrl,
		"event_bus.nats_token":          cfg.EventBus.NATSToken,
		"event_bus.nats_max_reconnects": cfg.EventBus.NATSMaxReconnects,
		"event_bus.nats_reconnect_wait": cfg.EventBus.NATSReconnectWait,

		"tally.type":           cfg.Tally.Type,
		"tally.redis_addr":     cfg.Tally.RedisAddr,
		"tally.redis_password": cfg.Tally.RedisPassword,
		"tally.redis_db":       cfg.Tally.RedisDB,
		"tally.redis_key":      cfg.Tally.RedisKey,

		"explainer.type":    cfg.Explainer.Type,
		"explainer.api_key": cfg.Explainer.APIKey,
		"explainer.model":   cfg.Explainer.Model,

		"logging.level":  cfg.Logging.Level,
		"logging.format": cfg.Logging.Format,

		"tracing.enabled":      cfg.Tracing.Enabled,
		"tracing.service_name": cfg.Tracing.ServiceName,
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
