// config - источник конфигурации quest-gateway.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
//
// ENV-переменные всегда накладываются поверх значений из YAML.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Типы хранилища сессий.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Backend  BackendConfig `yaml:"backend"`
	Auth     AuthConfig    `yaml:"auth"`
	Session  SessionConfig `yaml:"session"`
	Redis    RedisConfig   `yaml:"redis"`
	Upload   UploadConfig  `yaml:"upload"`
	Sentry   SentryConfig  `yaml:"sentry"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Pages    PagesConfig   `yaml:"pages"`
}

// TimeoutConfig - общий дедлайн входящего запроса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"TIMEOUT_SERVICE" env-default:"15s"`
}

// HTTPConfig - публичный HTTP-сервер шлюза.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"3000"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// BackendConfig - REST API бэкенда, к которому проксируются запросы.
type BackendConfig struct {
	BaseURL    string        `yaml:"base_url"    env:"BACKEND_BASE_URL"    env-default:"http://127.0.0.1:8000/api"`
	AuthScheme string        `yaml:"auth_scheme" env:"BACKEND_AUTH_SCHEME" env-default:"Bearer"`
	Timeout    time.Duration `yaml:"timeout"     env:"BACKEND_TIMEOUT"     env-default:"10s"`
	UserAgent  string        `yaml:"user_agent"  env:"BACKEND_USER_AGENT"  env-default:"quest-gateway"`
}

// AuthConfig - параметры жизненного цикла токенов.
// AccessTokenTTL задаётся локально: бэкенд не сообщает срок жизни access-токена.
type AuthConfig struct {
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"30m"`
	Providers      []string      `yaml:"providers"        env:"AUTH_PROVIDERS"   env-default:"google"`
}

// SessionConfig - подписанная cookie и серверное хранилище сессий.
type SessionConfig struct {
	Secret        string        `yaml:"secret"         env:"SESSION_SECRET" env-required:"true"`
	CookieName    string        `yaml:"cookie_name"    env:"SESSION_COOKIE_NAME" env-default:"qg_session"`
	CookieSecure  bool          `yaml:"cookie_secure"  env:"SESSION_COOKIE_SECURE" env-default:"false"`
	CookieDomain  string        `yaml:"cookie_domain"  env:"SESSION_COOKIE_DOMAIN"`
	MaxAge        time.Duration `yaml:"max_age"        env:"SESSION_MAX_AGE" env-default:"720h"`
	Store         string        `yaml:"store"          env:"SESSION_STORE" env-default:"memory"`
	JanitorPeriod time.Duration `yaml:"janitor_period" env:"SESSION_JANITOR_PERIOD" env-default:"10m"`
}

// RedisConfig - используется при session.store=redis.
type RedisConfig struct {
	URL    string `yaml:"url"    env:"REDIS_URL" env-default:"redis://127.0.0.1:6379/0"`
	Prefix string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"qg:sess:"`
}

// UploadConfig - ограничения на фото выполнения квеста (до base64-кодирования).
type UploadConfig struct {
	MaxImageBytes int64 `yaml:"max_image_bytes" env:"UPLOAD_MAX_IMAGE_BYTES" env-default:"5242880"`
}

// SentryConfig - пустой DSN отключает отправку.
type SentryConfig struct {
	DSN string `yaml:"dsn" env:"SENTRY_DSN"`
}

// PagesConfig - каталог со статикой страниц; пустой - страницы не обслуживаются.
type PagesConfig struct {
	Dir string `yaml:"dir" env:"PAGES_DIR"`
}

// MustLoad - паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validate(&cfg)
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return validate(&cfg)
}

// validate проверяет значения, которые cleanenv проверить не может.
func validate(cfg *Config) (*Config, error) {
	if cfg.Session.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}

	switch cfg.Session.Store {
	case StoreMemory, StoreRedis:
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}

	if cfg.Auth.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("access_token_ttl must be positive")
	}

	if len(cfg.Auth.Providers) == 0 {
		return nil, fmt.Errorf("at least one auth provider is required")
	}

	return cfg, nil
}
