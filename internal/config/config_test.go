package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:9000"
store:
  backend: dynamodb
  table: jobboard-messaging
  poll_interval: 500ms
identity:
  database_url: postgres://app@db/jobboard
cache:
  redis_url: redis://cache:6379/0
  ttl: 5m
auth:
  jwt_secret: dev-secret
typing:
  expiry: 4s
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	require.Equal(t, "jobboard-messaging", cfg.Store.Table)
	require.Equal(t, 500*time.Millisecond, cfg.Store.PollInterval)
	require.Equal(t, "postgres://app@db/jobboard", cfg.Identity.DatabaseURL)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.Equal(t, time.Minute, cfg.Cache.MissingTTL, "unset keys keep defaults")
	require.Equal(t, 4*time.Second, cfg.Typing.Expiry)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ExpandsEnvVarsInFile(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")
	path := writeConfig(t, `
store:
  backend: memory
auth:
  jwt_secret: "${TEST_JWT_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("STATE_TABLE", "messages")
	t.Setenv("JWT_SECRET_PARAM", "/jobboard/jwt")
	t.Setenv("POLL_INTERVAL", "250")
	t.Setenv("TYPING_EXPIRY", "5s")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendDynamoDB, cfg.Store.Backend)
	require.Equal(t, "messages", cfg.Store.Table)
	require.Equal(t, 250*time.Millisecond, cfg.Store.PollInterval)
	require.Equal(t, 5*time.Second, cfg.Typing.Expiry)
	require.Equal(t, "/jobboard/jwt", cfg.Auth.JWTSecretParam)
}

func TestLoad_ParameterNames(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("JWT_SECRET", "s")
	path := writeConfig(t, `
identity:
  database_url_param: identity/dsn
cache:
  redis_url_param: cache/url
auth:
  param_prefix: /jobboard/prod
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "identity/dsn", cfg.Identity.DatabaseURLParam)
	require.Equal(t, "cache/url", cfg.Cache.RedisURLParam)
	require.True(t, cfg.UsesParameterStore())

	t.Setenv("REDIS_URL_PARAM", "/shared/redis")
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "/shared/redis", cfg.Cache.RedisURLParam)
}

func TestConfig_UsesParameterStore(t *testing.T) {
	cfg := Default()
	require.False(t, cfg.UsesParameterStore())
	cfg.Identity.DatabaseURLParam = "dsn"
	require.True(t, cfg.UsesParameterStore())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "warn")
	path := writeConfig(t, `
store:
  backend: dynamodb
  table: t
auth:
  jwt_secret: s
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.Store.Backend)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		content string
		want    string
	}{
		{name: "missing table", env: map[string]string{"JWT_SECRET": "s"}, want: "store.table"},
		{name: "missing secret", env: map[string]string{"STORE_BACKEND": "memory"}, want: "jwt_secret"},
		{name: "unknown backend", env: map[string]string{"STORE_BACKEND": "sqlite", "JWT_SECRET": "s"}, want: "not one of"},
		{name: "bad duration", env: map[string]string{"STORE_BACKEND": "memory", "JWT_SECRET": "s", "TYPING_EXPIRY": "soon"}, want: "TYPING_EXPIRY"},
		{name: "zero expiry", env: map[string]string{"STORE_BACKEND": "memory", "JWT_SECRET": "s", "TYPING_EXPIRY": "0"}, want: "typing.expiry"},
		{name: "bad level", env: map[string]string{"STORE_BACKEND": "memory", "JWT_SECRET": "s", "LOG_LEVEL": "loud"}, want: "logging.level"},
		{name: "invalid yaml", content: "store: [", want: "parsing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.content != "" {
				path = writeConfig(t, tc.content)
			}
			_, err := Load(path)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "reading")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("EXPAND_A", "alpha")
	require.Equal(t, "x: alpha, y: ", expandEnvVars("x: ${EXPAND_A}, y: ${EXPAND_UNSET_FOR_TEST}"))
	require.Equal(t, "no vars", expandEnvVars("no vars"))
}

func TestLoggingConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	LoggingConfig{Level: "warn", Format: "text"}.NewLogger(&buf).Info("hidden")
	require.Empty(t, buf.String())

	LoggingConfig{Level: "debug", Format: "json"}.NewLogger(&buf).Debug("shown", "k", "v")
	require.Contains(t, buf.String(), `"msg":"shown"`)
	require.Contains(t, buf.String(), `"k":"v"`)
}
