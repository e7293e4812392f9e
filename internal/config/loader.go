package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. BUCKETD_SERVER_PORT.
const envPrefix = "BUCKETD"

var (
	configMu     sync.RWMutex
	globalConfig *Config
)

// Load builds a Config from defaults, the optional config file, BUCKETD_*
// environment variables, and any runtime overrides, then stores it as the
// process config.
//
// Overrides are nested maps matching the config structure and take highest
// precedence. The loaded config is also retrievable via GetConfig.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", overrides...)
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the working directory and /etc/bucketd for bucketd.yaml; a missing file is
// not an error, a named-but-unreadable one is.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("bucketd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/bucketd")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for _, override := range overrides {
		if err := v.MergeConfigMap(override); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	configMu.Lock()
	globalConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded config, nil before Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.pid_file", "")

	v.SetDefault("store.bucket", "")
	v.SetDefault("store.region", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.profile", "")
	v.SetDefault("store.force_path_style", false)
	v.SetDefault("store.existence_ttl", "5s")

	v.SetDefault("stats.snapshot_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("admin.reload_token", "")
}
