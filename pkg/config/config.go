package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envRedisAddr         = "CHATCART_REDIS_ADDR"
	envDatabasePath      = "CHATCART_DB_PATH"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Channels ChannelsConfig `json:"channels"`
	Redis    RedisConfig    `json:"redis"`
	Database DatabaseConfig `json:"database"`
	Engine   EngineConfig   `json:"engine"`
	Commerce CommerceConfig `json:"commerce"`
	Gateway  GatewayConfig  `json:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allow_from"`
}

// RedisConfig configures the durable key-value store used for
// idempotency records, rate windows, and flow state.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// DatabaseConfig configures the SQLite business-record store.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// EngineConfig tunes message-processing behavior.
//
// Zero values fall back to engine defaults, so a minimal config.json
// can omit this section entirely.
type EngineConfig struct {
	MinResponseSpacingMS int    `json:"min_response_spacing_ms,omitempty"`
	ProcessTimeoutMS     int    `json:"process_timeout_ms,omitempty"`
	DedupTTLSeconds      int    `json:"dedup_ttl_seconds,omitempty"`
	DedupCacheSize       int    `json:"dedup_cache_size,omitempty"`
	FlowTTLSeconds       int    `json:"flow_ttl_seconds,omitempty"`
	DefaultLang          string `json:"default_lang,omitempty"`
}

// CommerceConfig holds pricing and payment policy.
type CommerceConfig struct {
	Currency        string  `json:"currency,omitempty"`
	CODMax          float64 `json:"cod_max,omitempty"`
	OnlineFeePct    float64 `json:"online_fee_pct,omitempty"`
	FreeShippingMin float64 `json:"free_shipping_min,omitempty"`
	ShippingFee     float64 `json:"shipping_fee,omitempty"`
}

// GatewayConfig configures HTTP health endpoint bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Engine policy defaults, applied where config.json leaves a field unset.
const (
	DefaultMinResponseSpacing = 900 * time.Millisecond
	DefaultProcessTimeout     = 5 * time.Second
	DefaultDedupTTL           = time.Hour
	DefaultDedupCacheSize     = 4096
	DefaultFlowTTL            = time.Hour
	DefaultLang               = "en"
)

// Commerce policy defaults.
const (
	DefaultCODMax          = 10000
	DefaultOnlineFeePct    = 2
	DefaultFreeShippingMin = 500
	DefaultShippingFee     = 50
	DefaultCurrency        = "INR"
)

// MinResponseSpacing returns the configured spacing or the default.
func (c EngineConfig) MinResponseSpacing() time.Duration {
	if c.MinResponseSpacingMS > 0 {
		return time.Duration(c.MinResponseSpacingMS) * time.Millisecond
	}
	return DefaultMinResponseSpacing
}

// ProcessTimeout returns the per-event processing timeout.
func (c EngineConfig) ProcessTimeout() time.Duration {
	if c.ProcessTimeoutMS > 0 {
		return time.Duration(c.ProcessTimeoutMS) * time.Millisecond
	}
	return DefaultProcessTimeout
}

// DedupTTL returns the idempotency record lifetime.
func (c EngineConfig) DedupTTL() time.Duration {
	if c.DedupTTLSeconds > 0 {
		return time.Duration(c.DedupTTLSeconds) * time.Second
	}
	return DefaultDedupTTL
}

// CacheSize returns the in-process dedup cache capacity.
func (c EngineConfig) CacheSize() int {
	if c.DedupCacheSize > 0 {
		return c.DedupCacheSize
	}
	return DefaultDedupCacheSize
}

// FlowTTL returns the flow-state inactivity expiry window.
func (c EngineConfig) FlowTTL() time.Duration {
	if c.FlowTTLSeconds > 0 {
		return time.Duration(c.FlowTTLSeconds) * time.Second
	}
	return DefaultFlowTTL
}

// Lang returns the configured default language code.
func (c EngineConfig) Lang() string {
	if value := strings.TrimSpace(c.DefaultLang); value != "" {
		return value
	}
	return DefaultLang
}

// Policy applies commerce defaults on top of configured values.
func (c CommerceConfig) Policy() CommerceConfig {
	out := c
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	if out.CODMax <= 0 {
		out.CODMax = DefaultCODMax
	}
	if out.OnlineFeePct <= 0 {
		out.OnlineFeePct = DefaultOnlineFeePct
	}
	if out.FreeShippingMin <= 0 {
		out.FreeShippingMin = DefaultFreeShippingMin
	}
	if out.ShippingFee <= 0 {
		out.ShippingFee = DefaultShippingFee
	}
	return out
}

// LoadConfig resolves config.json, unmarshals it, and applies environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if addr := strings.TrimSpace(os.Getenv(envRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
	}

	if path := strings.TrimSpace(os.Getenv(envDatabasePath)); path != "" {
		cfg.Database.Path = path
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is CHATCART_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("CHATCART_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("CHATCART_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
