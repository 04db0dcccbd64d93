package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateNode(&cfg.Node)
	v.validateDiagnostics(&cfg.Diagnostics)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "", "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}
	switch cfg.Format {
	case "", "auto", "text", "json":
	default:
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateNode(cfg *NodeConfig) {
	if cfg.PartitionRunners <= 0 {
		v.addError("node.partition_runners", cfg.PartitionRunners, "must be positive")
	}
	if cfg.GenericRunners <= 0 {
		v.addError("node.generic_runners", cfg.GenericRunners, "must be positive")
	}
	if cfg.HeartbeatBroadcastMillis <= 0 {
		v.addError("node.heartbeat_broadcast_millis", cfg.HeartbeatBroadcastMillis, "must be positive")
	}
}

func (v *Validator) validateDiagnostics(cfg *DiagnosticsConfig) {
	if cfg.MaxRolledFileSizeMB <= 0 {
		v.addError("diagnostics.max_rolled_file_size_mb", cfg.MaxRolledFileSizeMB, "must be positive")
	}
	if cfg.MaxRolledFileCount <= 0 {
		v.addError("diagnostics.max_rolled_file_count", cfg.MaxRolledFileCount, "must be positive")
	}
	switch cfg.OutputType {
	case OutputTypeFile, OutputTypeStdout, OutputTypeLogger:
	default:
		v.addError("diagnostics.output_type", cfg.OutputType, "must be one of: file, stdout, logger")
	}
	if cfg.OutputType == OutputTypeFile && cfg.LogDirectory == "" {
		v.addError("diagnostics.log_directory", cfg.LogDirectory, "must not be empty for file output")
	}

	// Plugin periods are duration-like values; negative values are caught
	// here so they never reach the plugin framework. Period keys end in
	// "seconds" or "millis" regardless of separator, e.g.
	// "heartbeat.period.seconds" and "sampler.sampler-period-millis".
	for key, raw := range cfg.PluginProperties {
		if !strings.HasSuffix(key, "seconds") && !strings.HasSuffix(key, "millis") {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			v.addError("diagnostics.plugin_properties."+key, raw, "must be an integer")
			continue
		}
		if n < 0 {
			v.addError("diagnostics.plugin_properties."+key, raw, "must not be negative")
		}
	}
}
