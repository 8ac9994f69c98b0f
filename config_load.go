package goGate

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file path searched by LoadConfig.
const ConfigPathEnvVar = "GOGATE_CONFIG"

// EnvPrefix marks environment variables that map onto config keys:
// GOGATE_SESSION__INACTIVITY_TIMEOUT -> session.inactivity_timeout.
const EnvPrefix = "GOGATE_"

// DefaultConfigPaths are searched in order when no explicit path is given.
var DefaultConfigPaths = []string{
	"gogate.yaml",
	"gogate.yml",
	"/etc/gogate/config.yaml",
}

// legacyEnv maps the connection variables existing deployments already
// exports onto database keys.
var legacyEnv = map[string]string{
	"PGSQL_DB_NAME": "database.name",
	"PGSQL_DB_HOST": "database.host",
	"PGSQL_DB_USER": "database.user",
	"PGSQL_DB_PASS": "database.password",
	"PGSQL_DB_PORT": "database.port",
}

// sliceKeys are split on commas when they arrive from the environment.
var sliceKeys = []string{
	"policy.rules.public",
}

// LoadConfig layers DefaultConfig, an optional YAML file, and the
// environment, in that order, and validates the result. An empty path
// searches ConfigPathEnvVar and then DefaultConfigPaths.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}
	if err := splitSliceKeys(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey returns "" for variables that do not belong to goGate, which
// makes the provider skip them. A double underscore separates sections so
// single underscores can stay inside key names.
func envKey(name string) string {
	if key, ok := legacyEnv[name]; ok {
		return key
	}
	if !strings.HasPrefix(name, EnvPrefix) || name == ConfigPathEnvVar {
		return ""
	}
	rest := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(rest, "__", ".")
}

func splitSliceKeys(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}
