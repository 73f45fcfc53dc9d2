package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	DLQ       DLQConfig       `yaml:"dlq"`
	Forecast  ForecastConfig  `yaml:"forecast"`
	Budget    BudgetConfig    `yaml:"budget"`
	Audit     AuditConfig     `yaml:"audit"`
	Redis     RedisConfig     `yaml:"redis"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuthConfig struct {
	JWT    JWTConfig    `yaml:"jwt"`
	APIKey APIKeyConfig `yaml:"api_key"`
}

type JWTConfig struct {
	Secret         string `yaml:"secret"`
	Issuer         string `yaml:"iss"`
	Audience       string `yaml:"aud"`
	AccessExpHour  int    `yaml:"access_exp_hour"`
	RefreshExpHour int    `yaml:"refresh_exp_hour"`
}

type APIKeyConfig struct {
	Prefix    string `yaml:"prefix"`
	KeyLength int    `yaml:"key_length"` // random portion, excluding prefix
}

type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
	Burst       int           `yaml:"burst"`
	Store       string        `yaml:"store"` // memory, redis
	FailClosed  bool          `yaml:"fail_closed"`
}

type DLQConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	TTL             time.Duration `yaml:"ttl"`
	ProcessInterval time.Duration `yaml:"process_interval"`
	Backoff         BackoffConfig `yaml:"backoff"`
}

type BackoffConfig struct {
	Strategy   string        `yaml:"strategy"` // fixed, linear, exponential
	Base       time.Duration `yaml:"base"`
	Increment  time.Duration `yaml:"increment"`
	Multiplier float64       `yaml:"multiplier"`
	Max        time.Duration `yaml:"max"`
	Jitter     bool          `yaml:"jitter"`
}

type ForecastConfig struct {
	ConfidenceLevel float64 `yaml:"confidence_level"`
	MinDataPoints   int     `yaml:"min_data_points"`
}

type BudgetConfig struct {
	WarningThreshold  float64 `yaml:"warning_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
	GatingThreshold   float64 `yaml:"gating_threshold"`
}

type AuditConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// RedisConfig for the async retry queue and the optional rate-limit store.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "costwatch.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				Secret:         "costwatch-secret-key-change-in-production",
				Issuer:         "costwatch",
				Audience:       "costwatch-api",
				AccessExpHour:  1,
				RefreshExpHour: 168,
			},
			APIKey: APIKeyConfig{
				Prefix:    "cw_",
				KeyLength: 32,
			},
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 100,
			Window:      time.Minute,
			Burst:       10,
			Store:       "memory",
			FailClosed:  false,
		},
		DLQ: DLQConfig{
			MaxRetries:      3,
			TTL:             24 * time.Hour,
			ProcessInterval: 30 * time.Second,
			Backoff: BackoffConfig{
				Strategy:   "exponential",
				Base:       time.Second,
				Increment:  time.Second,
				Multiplier: 2.0,
				Max:        time.Hour,
				Jitter:     true,
			},
		},
		Forecast: ForecastConfig{
			ConfidenceLevel: 0.95,
			MinDataPoints:   10,
		},
		Budget: BudgetConfig{
			WarningThreshold:  0.80,
			CriticalThreshold: 0.95,
			GatingThreshold:   1.0,
		},
		Audit: AuditConfig{
			RetentionDays: 90,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWT.Secret = secret
	}
	if iss := os.Getenv("JWT_ISSUER"); iss != "" {
		c.Auth.JWT.Issuer = iss
	}
	if aud := os.Getenv("JWT_AUDIENCE"); aud != "" {
		c.Auth.JWT.Audience = aud
	}
	if prefix := os.Getenv("API_KEY_PREFIX"); prefix != "" {
		c.Auth.APIKey.Prefix = prefix
	}
	if v := os.Getenv("RATE_LIMIT_MAX_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.MaxRequests = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RateLimit.Window = d
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.Burst = n
		}
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	// Remove redis:// prefix
	url := strings.TrimPrefix(redisURL, "redis://")

	// Extract password if present
	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	// Extract db number if present
	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	// Remaining is host:port
	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
