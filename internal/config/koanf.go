package config

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

const (
	ConfigPathEnvVar = "CONFIG_PATH"
	EnvPrefix        = "NETVIZ_"
)

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/netviz/config.yaml",
}

// Flat variable names kept from the env-only configuration.
var legacyEnv = map[string]string{
	"HTTP_ADDR":    "server.addr",
	"LOG_LEVEL":    "log.level",
	"DATABASE_URL": "database.url",
}

var sliceConfigPaths = []string{
	"oauth.scopes",
	"cors.allowed_origins",
}

// Load layers defaults, the config file, legacy env names and NETVIZ_ variables, in that order,
// then validates the result. NETVIZ_SERVER__MOCK_MODE maps to server.mock_mode.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", legacyEnvKey), nil); err != nil {
		return nil, fmt.Errorf("load legacy environment: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
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

func legacyEnvKey(key string) string {
	return legacyEnv[key]
}

func envKey(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(key, "__", "."))
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
