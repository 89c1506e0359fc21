package domain

import (
	"fmt"
	"time"
)

// Config holds the complete GovGuard configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	History   HistoryConfig   `mapstructure:"history" json:"history"`
	Cache     CacheConfig     `mapstructure:"cache" json:"cache"`
	EventBus  EventBusConfig  `mapstructure:"event_bus" json:"eventBus"`
	Tally     TallyConfig     `mapstructure:"tally" json:"tally"`
	Explainer ExplainerConfig `mapstructure:"explainer" json:"explainer"`

	// Observability
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `mapstructure:"host" json:"host"`
	Port         int    `mapstructure:"port" json:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout" json:"readTimeout"`   // seconds
	WriteTimeout int    `mapstructure:"write_timeout" json:"writeTimeout"` // seconds
}

// TallyConfig selects where running totals are accumulated.
type TallyConfig struct {
	// Type is "memory" or "redis".
	Type string `mapstructure:"type" json:"type"`

	RedisAddr     string `mapstructure:"redis_addr" json:"redisAddr"`
	RedisPassword string `mapstructure:"redis_password" json:"-"`
	RedisDB       int    `mapstructure:"redis_db" json:"redisDb"`
	RedisKey      string `mapstructure:"redis_key" json:"redisKey"`
}

// ExplainerConfig holds reviewer explanation settings.
type ExplainerConfig struct {
	// Type is "template" or "gemini".
	Type   string `mapstructure:"type" json:"type"`
	APIKey string `mapstructure:"api_key" json:"-"`
	Model  string `mapstructure:"model" json:"model"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	ServiceName string `mapstructure:"service_name" json:"serviceName"`
}

// DefaultConfig returns a single-node configuration: SQLite history,
// in-memory cache and tally, channel event bus, template explanations.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		History: HistoryConfig{
			Enabled:    true,
			Driver:     "sqlite",
			SQLitePath: "./govguard.db",
			Lookback:   365 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			ReplayTTL:    24 * time.Hour,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Tally: TallyConfig{
			Type:     "memory",
			RedisKey: "govguard:tally",
		},
		Explainer: ExplainerConfig{
			Type:  "template",
			Model: "gemini-2.5-flash",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "govguard",
		},
	}
}

// Validate rejects unknown component types and drivers.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.History.Enabled {
		switch c.History.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("unsupported history driver: %s", c.History.Driver)
		}
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}
	switch c.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("unsupported event bus type: %s", c.EventBus.Type)
	}
	switch c.Tally.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported tally type: %s", c.Tally.Type)
	}
	switch c.Explainer.Type {
	case "template":
	case "gemini":
		if c.Explainer.APIKey == "" {
			return fmt.Errorf("explainer.api_key is required for gemini explanations")
		}
	default:
		return fmt.Errorf("unsupported explainer type: %s", c.Explainer.Type)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Logging.Format)
	}
	return nil
}
