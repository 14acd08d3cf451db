package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	Token         TokenConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Stripe        StripeConfig
	Mailgun       MailgunConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PIZZERIA_APP_ENV" default:"dev"`
	Port         string `envconfig:"PIZZERIA_APP_PORT" default:"3000"`
	LogLevel     string `envconfig:"PIZZERIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PIZZERIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Driver string `envconfig:"PIZZERIA_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"PIZZERIA_DB_DSN" default:"pizzeria.db"`

	MaxOpenConns    int           `envconfig:"PIZZERIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PIZZERIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PIZZERIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PIZZERIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PIZZERIA_REDIS_URL"`
	Address      string        `envconfig:"PIZZERIA_REDIS_ADDR"`
	Password     string        `envconfig:"PIZZERIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"PIZZERIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PIZZERIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PIZZERIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PIZZERIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PIZZERIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PIZZERIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint is configured at all. The API can
// run without redis; login rate limiting is skipped in that case.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type TokenConfig struct {
	TTL      time.Duration `envconfig:"PIZZERIA_TOKEN_TTL" default:"1h"`
	IDLength int           `envconfig:"PIZZERIA_TOKEN_ID_LENGTH" default:"20"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PIZZERIA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PIZZERIA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PIZZERIA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PIZZERIA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PIZZERIA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"PIZZERIA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"PIZZERIA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"PIZZERIA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"PIZZERIA_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"PIZZERIA_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"PIZZERIA_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"PIZZERIA_STRIPE_API_KEY"`
	Currency string `envconfig:"PIZZERIA_STRIPE_CURRENCY" default:"usd"`
	Env      string `envconfig:"PIZZERIA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type MailgunConfig struct {
	APIKey  string `envconfig:"PIZZERIA_MAILGUN_API_KEY"`
	Domain  string `envconfig:"PIZZERIA_MAILGUN_DOMAIN"`
	From    string `envconfig:"PIZZERIA_MAILGUN_FROM"`
	BaseURL string `envconfig:"PIZZERIA_MAILGUN_BASE_URL" default:"https://api.mailgun.net"`
}
