package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "channels": {"telegram": {"enabled": true, "token": "file-token"}},
	  "redis": {"addr": "127.0.0.1:6379"},
	  "database": {"path": "chatcart.db"},
	  "engine": {"min_response_spacing_ms": 500, "flow_ttl_seconds": 120},
	  "commerce": {"currency": "INR", "cod_max": 5000},
	  "gateway": {"host": "0.0.0.0", "port": 18790},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CHATCART_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf("redis.addr = %q, want %q", cfg.Redis.Addr, "127.0.0.1:6379")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if got := cfg.Engine.MinResponseSpacing(); got != 500*time.Millisecond {
		t.Fatalf("engine spacing = %v, want 500ms", got)
	}
	if got := cfg.Engine.FlowTTL(); got != 2*time.Minute {
		t.Fatalf("engine flow ttl = %v, want 2m", got)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv("CHATCART_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "channels": {"telegram": {"enabled": true, "token": "file-token"}},
	  "redis": {"addr": "127.0.0.1:6379"},
	  "database": {"path": "file.db"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CHATCART_CONFIG", path)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_ALLOW_FROM", "100, 200 ,,300")
	t.Setenv("CHATCART_REDIS_ADDR", "redis:6380")
	t.Setenv("CHATCART_DB_PATH", "/tmp/env.db")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Channels.Telegram.Token != "env-token" {
		t.Fatalf("telegram token = %q, want env override", cfg.Channels.Telegram.Token)
	}
	if len(cfg.Channels.Telegram.AllowFrom) != 3 {
		t.Fatalf("allow_from = %v, want 3 entries", cfg.Channels.Telegram.AllowFrom)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Fatalf("redis.addr = %q, want env override", cfg.Redis.Addr)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Fatalf("database.path = %q, want env override", cfg.Database.Path)
	}
}

func TestEngineConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg EngineConfig
	if got := cfg.MinResponseSpacing(); got != DefaultMinResponseSpacing {
		t.Fatalf("spacing = %v, want default", got)
	}
	if got := cfg.ProcessTimeout(); got != DefaultProcessTimeout {
		t.Fatalf("timeout = %v, want default", got)
	}
	if got := cfg.DedupTTL(); got != DefaultDedupTTL {
		t.Fatalf("dedup ttl = %v, want default", got)
	}
	if got := cfg.CacheSize(); got != DefaultDedupCacheSize {
		t.Fatalf("cache size = %d, want default", got)
	}
	if got := cfg.Lang(); got != DefaultLang {
		t.Fatalf("lang = %q, want default", got)
	}
}

func TestCommercePolicyDefaults(t *testing.T) {
	t.Parallel()

	policy := CommerceConfig{}.Policy()
	if policy.Currency != DefaultCurrency {
		t.Fatalf("currency = %q, want %q", policy.Currency, DefaultCurrency)
	}
	if policy.CODMax != DefaultCODMax {
		t.Fatalf("cod_max = %v, want %v", policy.CODMax, float64(DefaultCODMax))
	}

	partial := CommerceConfig{CODMax: 2500, Currency: "USD"}.Policy()
	if partial.CODMax != 2500 || partial.Currency != "USD" {
		t.Fatalf("configured values overridden: %+v", partial)
	}
	if partial.ShippingFee != DefaultShippingFee {
		t.Fatalf("shipping_fee = %v, want default", partial.ShippingFee)
	}
}
