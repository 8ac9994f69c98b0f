package goGate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1440*time.Second, cfg.Session.InactivityTimeout)
	assert.Equal(t, 604800*time.Second, cfg.Session.RememberMeDuration)
	assert.Equal(t, "/login", cfg.Login.Path)
	assert.Equal(t, "gogate_session", cfg.Cookie.Name)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{"casbin backend", func(c *Config) { c.Policy.Backend = PolicyBackendCasbin }, true},
		{"unknown backend", func(c *Config) { c.Policy.Backend = "ldap" }, false},
		{"max bits 128", func(c *Config) { c.Policy.MaxBits = 128 }, true},
		{"max bits 256", func(c *Config) { c.Policy.MaxBits = 256 }, false},
		{"zero inactivity", func(c *Config) { c.Session.InactivityTimeout = 0 }, false},
		{"remember shorter than idle", func(c *Config) { c.Session.RememberMeDuration = time.Minute }, false},
		{"absolute below idle", func(c *Config) { c.Session.AbsoluteSessionLifetime = time.Minute }, false},
		{"absolute lifetime", func(c *Config) { c.Session.AbsoluteSessionLifetime = 12 * time.Hour }, true},
		{"login path relative", func(c *Config) { c.Login.Path = "login" }, false},
		{"policy login path drift", func(c *Config) { c.Policy.Rules.LoginPath = "/signin" }, false},
		{"duplicate field names", func(c *Config) { c.Login.SecretField = c.Login.IdentityField }, false},
		{"same site none insecure", func(c *Config) { c.Cookie.SameSite = "none"; c.Cookie.Secure = false }, false},
		{"bad same site", func(c *Config) { c.Cookie.SameSite = "loose" }, false},
		{"hash key not hex", func(c *Config) { c.Cookie.HashKey = "zz" }, false},
		{"hash key 32 bytes", func(c *Config) { c.Cookie.HashKey = hex64() }, true},
		{"block key 64 bytes", func(c *Config) { c.Cookie.BlockKey = hex64() + hex64() }, false},
		{"weak argon2", func(c *Config) { c.Password.Argon2.Memory = 1024 }, false},
		{"zero attempts", func(c *Config) { c.Security.MaxLoginAttempts = 0 }, false},
		{"audit without buffer", func(c *Config) { c.Audit = AuditConfig{Enabled: true} }, false},
		{"no redis", func(c *Config) { c.Redis.Addr = "" }, false},
		{"embedded redis", func(c *Config) { c.Redis.Addr = ""; c.Redis.Embedded = true }, true},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, false},
		{"inheritance cycle", func(c *Config) {
			c.Policy.Rules.Roles[0].Inherits = []string{"admin"}
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func hex64() string {
	return "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
}

func TestCloneConfigIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	cp := cloneConfig(cfg)
	cp.Policy.Rules.Roles[0].Resources[0] = "mutated"
	cp.Policy.Rules.Public[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Policy.Rules.Roles[0].Resources[0])
	assert.NotEqual(t, "mutated", cfg.Policy.Rules.Public[0])
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Name: "app", Host: "db", Port: 5432, User: "gate", Password: "p@ss", SSLMode: "disable"}
	assert.Equal(t, "postgres://gate:p%40ss@db:5432/app?sslmode=disable", d.DSN())
	assert.Empty(t, DatabaseConfig{}.DSN())
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gogate.yaml")
	yaml := `
session:
  inactivity_timeout: 30m
login:
  default_landing: /home
cookie:
  secure: false
policy:
  backend: casbin
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("PGSQL_DB_NAME", "legacy")
	t.Setenv("PGSQL_DB_HOST", "pg.internal")
	t.Setenv("PGSQL_DB_USER", "app")
	t.Setenv("PGSQL_DB_PASS", "secret")
	t.Setenv("GOGATE_SECURITY__MAX_LOGIN_ATTEMPTS", "9")
	t.Setenv("GOGATE_LOG__LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Session.InactivityTimeout)
	assert.Equal(t, 604800*time.Second, cfg.Session.RememberMeDuration, "defaults survive partial files")
	assert.Equal(t, "/home", cfg.Login.DefaultLanding)
	assert.False(t, cfg.Cookie.Secure)
	assert.Equal(t, PolicyBackendCasbin, cfg.Policy.Backend)
	assert.Len(t, cfg.Policy.Rules.Roles, 2)

	assert.Equal(t, "legacy", cfg.Database.Name)
	assert.Equal(t, "pg.internal", cfg.Database.Host)
	assert.Equal(t, "app", cfg.Database.User)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, 9, cfg.Security.MaxLoginAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  inactivity_timeout: 0s\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.name", envKey("PGSQL_DB_NAME"))
	assert.Equal(t, "session.redis_prefix", envKey("GOGATE_SESSION__REDIS_PREFIX"))
	assert.Equal(t, "", envKey("HOME"))
	assert.Equal(t, "", envKey(ConfigPathEnvVar))
}
