package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App     `json:"app"     toml:"app"`
		API     `json:"api"     toml:"api"`
		Scan    `json:"scan"    toml:"scan"`
		Storage `json:"storage" toml:"storage"`
		HTTP    `json:"http"    toml:"http"`
		DB      `json:"db"      toml:"db"`
		Redis   `json:"redis"   toml:"redis"`
		Log     `json:"logger"  toml:"logger"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME" env-default:"omnisafe-gateway"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME" env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"    env-default:"false"`
	}

	API struct {
		BaseURL          string  `json:"base_url"           toml:"base_url"           env:"OMNISAFE_API_BASE"          env-default:"http://localhost:8000"`
		AccessToken      string  `json:"access_token"       toml:"access_token"       env:"OMNISAFE_ACCESS_TOKEN"`
		AdminAccessToken string  `json:"admin_access_token" toml:"admin_access_token" env:"OMNISAFE_ADMIN_ACCESS_TOKEN"`
		RequestTimeout   int     `json:"request_timeout"    toml:"request_timeout"    env:"OMNISAFE_REQUEST_TIMEOUT"   env-default:"30"`
		RateLimit        float64 `json:"rate_limit"         toml:"rate_limit"         env:"OMNISAFE_RATE_LIMIT"        env-default:"10"`
		RateBurst        int     `json:"rate_burst"         toml:"rate_burst"         env:"OMNISAFE_RATE_BURST"        env-default:"20"`
	}

	Scan struct {
		PollInterval    int    `json:"poll_interval_ms"   toml:"poll_interval_ms"   env:"SCAN_POLL_INTERVAL_MS"   env-default:"2000"`
		CacheExpiry     int    `json:"cache_expiry_min"   toml:"cache_expiry_min"   env:"SCAN_CACHE_EXPIRY_MIN"   env-default:"30"`
		CacheKey        string `json:"cache_key"          toml:"cache_key"          env:"SCAN_CACHE_KEY"          env-default:"last_scan_result"`
		DefaultLanguage string `json:"default_language"   toml:"default_language"   env:"SCAN_DEFAULT_LANGUAGE"   env-default:"zh"`
		UserRefresh     int    `json:"user_refresh_ms"    toml:"user_refresh_ms"    env:"SCAN_USER_REFRESH_MS"    env-default:"1500"`
	}

	Storage struct {
		Backend       string `json:"backend"        toml:"backend"        env:"STORAGE_BACKEND"        env-default:"file"`
		Dir           string `json:"dir"            toml:"dir"            env:"STORAGE_DIR"            env-default:".omnisafe"`
		SweepInterval int    `json:"sweep_interval" toml:"sweep_interval" env:"STORAGE_SWEEP_INTERVAL" env-default:"60"`
	}

	HTTP struct {
		Port           string   `json:"port"            toml:"port"            env:"HTTP_PORT"            env-default:"8080"`
		AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-default:"*"`
	}

	DB struct {
		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL"`
		MigrationsPath    string `json:"migrations_path"     toml:"migrations_path"     env:"MIGRATIONS_PATH"      env-default:"./migrations"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX"          env-default:"10"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK"  env-default:"1"`
	}

	Redis struct {
		URL      string `json:"url"      toml:"url"      env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
		Password string `json:"password" toml:"password" env:"REDIS_PASSWORD"`
	}

	Log struct {
		Level  slog.Level `json:"level"  toml:"level"  env:"LOG_LEVEL"`
		Format string     `json:"format" toml:"format" env:"LOG_FORMAT" env-default:"text"`
	}
)

// PollEvery returns the interval between detection status requests.
func (s Scan) PollEvery() time.Duration {
	return time.Duration(s.PollInterval) * time.Millisecond
}

// ExpiryWindow returns how long a cached scan stays fresh.
func (s Scan) ExpiryWindow() time.Duration {
	return time.Duration(s.CacheExpiry) * time.Minute
}

// UserRefreshEvery returns how often the token store is checked for changes.
func (s Scan) UserRefreshEvery() time.Duration {
	return time.Duration(s.UserRefresh) * time.Millisecond
}

// Timeout returns the per-request timeout of the API client.
func (a API) Timeout() time.Duration {
	return time.Duration(a.RequestTimeout) * time.Second
}

// SweepEvery returns how often expired storage entries are removed.
func (s Storage) SweepEvery() time.Duration {
	return time.Duration(s.SweepInterval) * time.Second
}

// LoadConfig reads the file at path, or config.toml / config.json next to
// this package when path is empty, then applies environment overrides.
// A missing default file is not an error: defaults and env are enough.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
		return cfg, nil
	}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	for _, name := range []string{"config.toml", "config.json"} {
		candidate := filepath.Join(basePath, name)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := cleanenv.ReadConfig(candidate, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	return cfg, nil
}
