// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay service.
package server

import (
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key read from the environment,
// e.g. RELAY_ADDR or RELAY_RATE_LIMIT_BURST.
const EnvPrefix = "RELAY"

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Addr             string
	HTTPAddr         string
	AllowedOrigins   []string
	MaxMessageSize   int64
	SendBuffer       int
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	RateLimit        RateLimitConfig
	LogLevel         string
	LogFormat        string
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Addr:     ":2345",
		HTTPAddr: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 64 << 10,
		SendBuffer:     256,
		WriteTimeout:   10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          20,
			RefillInterval: time.Second,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// NewViper returns a viper instance with defaults registered and environment
// lookup enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("max_message_size", d.MaxMessageSize)
	v.SetDefault("send_buffer", d.SendBuffer)
	v.SetDefault("write_timeout", d.WriteTimeout)
	v.SetDefault("handshake_timeout", d.HandshakeTimeout)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("rate_limit.refill_interval", d.RateLimit.RefillInterval)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)
}

// LoadConfig reads the configuration from v, reading the config file first
// when one was set with SetConfigFile.
func LoadConfig(v *viper.Viper) (Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, oops.In("config").With("file", v.ConfigFileUsed()).Wrapf(err, "read config file")
		}
	}

	cfg := Config{
		Addr:             v.GetString("addr"),
		HTTPAddr:         v.GetString("http_addr"),
		AllowedOrigins:   originsFrom(v),
		MaxMessageSize:   v.GetInt64("max_message_size"),
		SendBuffer:       v.GetInt("send_buffer"),
		WriteTimeout:     v.GetDuration("write_timeout"),
		HandshakeTimeout: v.GetDuration("handshake_timeout"),
		RateLimit: RateLimitConfig{
			Burst:          v.GetInt("rate_limit.burst"),
			RefillInterval: v.GetDuration("rate_limit.refill_interval"),
		},
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
	}
	return sanitizeConfig(cfg), nil
}

func sanitizeConfig(cfg Config) Config {
	d := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = d.Addr
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = d.MaxMessageSize
	}

	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = d.SendBuffer
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = d.WriteTimeout
	}

	if cfg.HandshakeTimeout < 0 {
		cfg.HandshakeTimeout = 0
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = d.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = d.RateLimit.RefillInterval
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Environment values arrive as one comma-separated string; files and defaults
// give a list.
func originsFrom(v *viper.Viper) []string {
	if raw, ok := v.Get("allowed_origins").(string); ok {
		return parseOrigins(raw)
	}
	return v.GetStringSlice("allowed_origins")
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
