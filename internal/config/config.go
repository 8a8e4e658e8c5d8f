package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds settings shared by the Lambda API and the websocket gateway.
// Values come from defaults, then an optional YAML file, then environment
// variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Identity IdentityConfig `yaml:"identity"`
	Cache    CacheConfig    `yaml:"cache"`
	Auth     AuthConfig     `yaml:"auth"`
	Typing   TypingConfig   `yaml:"typing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

type StoreConfig struct {
	Backend      string        `yaml:"backend"`
	Table        string        `yaml:"table"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type IdentityConfig struct {
	DatabaseURL string `yaml:"database_url"`
	// DatabaseURLParam names an SSM parameter holding the DSN; it wins over
	// DatabaseURL when both are set.
	DatabaseURLParam string `yaml:"database_url_param"`
}

type CacheConfig struct {
	RedisURL      string        `yaml:"redis_url"`
	RedisURLParam string        `yaml:"redis_url_param"`
	TTL        time.Duration `yaml:"ttl"`
	MissingTTL time.Duration `yaml:"missing_ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// JWTSecretParam names an SSM parameter holding the secret; it wins
	// over JWTSecret when both are set.
	JWTSecretParam string `yaml:"jwt_secret_param"`
	// ParamPrefix is prepended to every relative *_param name.
	ParamPrefix string `yaml:"param_prefix"`
}

type TypingConfig struct {
	Expiry time.Duration `yaml:"expiry"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: ":8080"},
		Store:  StoreConfig{Backend: BackendDynamoDB, PollInterval: 2 * time.Second},
		Cache:  CacheConfig{TTL: 10 * time.Minute, MissingTTL: time.Minute},
		Typing: TypingConfig{Expiry: 3 * time.Second},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config. path may be empty, in which case only defaults and
// the environment are used. ${VAR} references in the file are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnv(cfg *Config) error {
	envString("HTTP_ADDR", &cfg.Server.HTTPAddr)
	envString("STORE_BACKEND", &cfg.Store.Backend)
	envString("STATE_TABLE", &cfg.Store.Table)
	envString("DATABASE_URL", &cfg.Identity.DatabaseURL)
	envString("DATABASE_URL_PARAM", &cfg.Identity.DatabaseURLParam)
	envString("REDIS_URL", &cfg.Cache.RedisURL)
	envString("REDIS_URL_PARAM", &cfg.Cache.RedisURLParam)
	envString("JWT_SECRET", &cfg.Auth.JWTSecret)
	envString("JWT_SECRET_PARAM", &cfg.Auth.JWTSecretParam)
	envString("PARAM_PREFIX", &cfg.Auth.ParamPrefix)
	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)

	for key, dst := range map[string]*time.Duration{
		"POLL_INTERVAL":     &cfg.Store.PollInterval,
		"PROFILE_CACHE_TTL": &cfg.Cache.TTL,
		"TYPING_EXPIRY":     &cfg.Typing.Expiry,
	} {
		if err := envDuration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// envDuration accepts Go durations ("2s") or a bare number of milliseconds.
func envDuration(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendDynamoDB:
		if c.Store.Table == "" {
			return errors.New("store.table is required for the dynamodb backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend %q is not one of %s, %s", c.Store.Backend, BackendDynamoDB, BackendMemory)
	}
	if c.Store.PollInterval <= 0 {
		return errors.New("store.poll_interval must be positive")
	}
	if c.Typing.Expiry <= 0 {
		return errors.New("typing.expiry must be positive")
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWTSecretParam == "" {
		return errors.New("auth.jwt_secret or auth.jwt_secret_param is required")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// UsesParameterStore reports whether any setting is read from SSM.
func (c *Config) UsesParameterStore() bool {
	return c.Auth.JWTSecretParam != "" || c.Identity.DatabaseURLParam != "" || c.Cache.RedisURLParam != ""
}

// NewLogger builds the process logger described by c.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
