package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "GRIDWATCH",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "GRIDWATCH",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (GRIDWATCH_*)
// 3. Config file (gridwatch.yaml in current directory or ~/.config/gridwatch)
// 4. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("gridwatch")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "gridwatch"))
		}
	}

	// Read config file (ignore not found)
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Diagnostics.PluginProperties == nil {
		cfg.Diagnostics.PluginProperties = map[string]string{}
	}

	if err := NewValidator().Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path of the config file viper actually read,
// or empty when configuration came from defaults and environment only.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("node.name", "")
	l.v.SetDefault("node.partition_runners", 4)
	l.v.SetDefault("node.generic_runners", 2)
	l.v.SetDefault("node.heartbeat_broadcast_millis", 15000)

	l.v.SetDefault("diagnostics.enabled", false)
	l.v.SetDefault("diagnostics.max_rolled_file_size_mb", DefaultMaxRolledFileSizeMB)
	l.v.SetDefault("diagnostics.max_rolled_file_count", DefaultMaxRolledFileCount)
	l.v.SetDefault("diagnostics.include_epoch_time", DefaultIncludeEpochTime)
	l.v.SetDefault("diagnostics.log_directory", ".")
	l.v.SetDefault("diagnostics.file_name_prefix", "")
	l.v.SetDefault("diagnostics.output_type", string(DefaultOutputType))
}
