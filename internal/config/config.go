package config

// Config holds all node configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Node        NodeConfig        `mapstructure:"node"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NodeConfig configures the local member and its operation executor.
type NodeConfig struct {
	Name                     string `mapstructure:"name"`
	PartitionRunners         int    `mapstructure:"partition_runners"`
	GenericRunners           int    `mapstructure:"generic_runners"`
	HeartbeatBroadcastMillis int    `mapstructure:"heartbeat_broadcast_millis"`
}

// OutputType selects where diagnostics sections are written.
type OutputType string

const (
	// OutputTypeFile writes to a ring of rolling files in LogDirectory.
	OutputTypeFile OutputType = "file"
	// OutputTypeStdout writes to standard output.
	OutputTypeStdout OutputType = "stdout"
	// OutputTypeLogger writes through the node logger.
	OutputTypeLogger OutputType = "logger"
)

// Defaults for the diagnostics output.
const (
	DefaultMaxRolledFileSizeMB = 50
	DefaultMaxRolledFileCount  = 10
	DefaultIncludeEpochTime    = true
	DefaultOutputType          = OutputTypeFile
)

// DiagnosticsConfig configures the diagnostics service and its plugins.
//
// PluginProperties carries per-plugin settings keyed by dotted names, e.g.
// "heartbeat.period.seconds" or "sampler.include-name". Unknown keys are
// ignored by plugins; each plugin snapshots the values it cares about when
// it is constructed.
type DiagnosticsConfig struct {
	Enabled             bool              `mapstructure:"enabled"`
	MaxRolledFileSizeMB int               `mapstructure:"max_rolled_file_size_mb"`
	MaxRolledFileCount  int               `mapstructure:"max_rolled_file_count"`
	IncludeEpochTime    bool              `mapstructure:"include_epoch_time"`
	LogDirectory        string            `mapstructure:"log_directory"`
	FileNamePrefix      string            `mapstructure:"file_name_prefix"`
	OutputType          OutputType        `mapstructure:"output_type"`
	PluginProperties    map[string]string `mapstructure:"plugin_properties"`
}

// DefaultDiagnosticsConfig returns a disabled diagnostics configuration
// with all output defaults applied.
func DefaultDiagnosticsConfig() DiagnosticsConfig {
	return DiagnosticsConfig{
		Enabled:             false,
		MaxRolledFileSizeMB: DefaultMaxRolledFileSizeMB,
		MaxRolledFileCount:  DefaultMaxRolledFileCount,
		IncludeEpochTime:    DefaultIncludeEpochTime,
		LogDirectory:        ".",
		OutputType:          DefaultOutputType,
		PluginProperties:    map[string]string{},
	}
}
