// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileEnv は設定ファイルのパスを指定する環境変数。
const ConfigFileEnv = "CONFIG_FILE"

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string        `koanf:"port"`
	DatabaseURL        string        `koanf:"database_url"`
	LogLevel           string        `koanf:"log_level"`
	PhigrateBin        string        `koanf:"phigrate_bin"`
	MigrateTimeout     time.Duration `koanf:"migrate_timeout"`
	DBTimeout          time.Duration `koanf:"db_timeout"`
	OutputLimit        int           `koanf:"output_limit"`
	CacheTTL           time.Duration `koanf:"cache_ttl"`
	WatchMigrations    bool          `koanf:"watch_migrations"`
	GoogleCloudProject string        `koanf:"google_cloud_project"`
	OtelEnabled        bool          `koanf:"otel_enabled"`
	OtelEndpoint       string        `koanf:"otel_endpoint"`
	OtelServiceName    string        `koanf:"otel_service_name"`
	OtelSamplingRate   float64       `koanf:"otel_sampling_rate"`
}

// defaults は環境変数が未設定の場合の値。
var defaults = map[string]interface{}{
	"port":               "8080",
	"database_url":       "sqlite://phigrate-web.db",
	"log_level":          "INFO",
	"phigrate_bin":       "phigrate",
	"migrate_timeout":    "10m",
	"db_timeout":         "10s",
	"output_limit":       1 << 20,
	"cache_ttl":          "5m",
	"watch_migrations":   true,
	"otel_enabled":       false,
	"otel_endpoint":      "localhost:4317",
	"otel_service_name":  "phigrate-web",
	"otel_sampling_rate": 1.0,
}

// knownKeys は環境変数から読み込むキー。
var knownKeys = func() map[string]bool {
	keys := make(map[string]bool, len(defaults))
	for k := range defaults {
		keys[k] = true
	}
	keys["google_cloud_project"] = true
	return keys
}()

// Load はデフォルト値、設定ファイル(YAML)、環境変数の順に設定を読み込む。
// 後から読み込んだ値が優先される。
// 例: DATABASE_URL -> database_url, OTEL_ENABLED -> otel_enabled
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !knownKeys[key] {
			return ""
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}
